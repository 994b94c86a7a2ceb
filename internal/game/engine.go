// internal/game/engine.go
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/events"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/models"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/quiz"
)

const (
	// QuestionSeconds is the answer window per question.
	QuestionSeconds = 10
	// LoadingSeconds is the pause between a resolved question and the next.
	LoadingSeconds = 3
	// CountdownSeconds is the lead-in between GAME_START and the first question.
	CountdownSeconds = 3
	// QuickMatchQuestions is the fixed length of a matchmade game.
	QuickMatchQuestions = 3
	// WinnerStreakBonus is credited to a sole winner's streak.
	WinnerStreakBonus = 10
)

// Engine drives every live session: question delivery, the per-question
// clock, answer arbitration and end-of-game settlement. It owns a lock per
// room; every mutation of a room's session, including scheduled callbacks,
// runs under that lock.
type Engine struct {
	log     *logrus.Logger
	pub     events.Publisher
	source  quiz.Source
	members models.MemberStore
	sched   *Scheduler

	mu        sync.Mutex
	sessions  map[string]*Session
	roomLocks map[string]*sync.Mutex
	timers    map[string][]*Task

	// OnSessionEnd runs after a session is settled and removed, outside the
	// room lock. The room registry uses it to disband finished rooms.
	OnSessionEnd func(roomID string)
}

// NewEngine wires an engine over the given publisher, question source and
// member store.
func NewEngine(logger *logrus.Logger, pub events.Publisher, source quiz.Source, members models.MemberStore) *Engine {
	return &Engine{
		log:       logger,
		pub:       pub,
		source:    source,
		members:   members,
		sched:     NewScheduler(),
		sessions:  make(map[string]*Session),
		roomLocks: make(map[string]*sync.Mutex),
		timers:    make(map[string][]*Task),
	}
}

// Session returns the live session for the room, if any.
func (e *Engine) Session(roomID string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[roomID]
	return s, ok
}

// HasSession reports whether the room has a live session.
func (e *Engine) HasSession(roomID string) bool {
	_, ok := e.Session(roomID)
	return ok
}

// StartQuickMatch begins a matchmade game: general-knowledge questions at the
// fixed quick-match length.
func (e *Engine) StartQuickMatch(ctx context.Context, roomID string, roster []string) error {
	return e.StartGame(ctx, roomID, roster, quiz.CategoryAll, QuickMatchQuestions)
}

// StartGame fetches the question batch and opens the session. GAME_START is
// broadcast immediately; the first question follows after the countdown.
// Starting a room that already has a session is an error.
func (e *Engine) StartGame(ctx context.Context, roomID string, roster []string, category quiz.Category, count int) error {
	if len(roster) < 2 {
		return fmt.Errorf("game: room %s needs at least two players", roomID)
	}

	questions, err := e.source.Fetch(ctx, category, count)
	if err != nil {
		return fmt.Errorf("failed to fetch questions for room %s: %w", roomID, err)
	}

	e.mu.Lock()
	if _, exists := e.sessions[roomID]; exists {
		e.mu.Unlock()
		return fmt.Errorf("game: room %s already has a running session", roomID)
	}
	session := NewSession(roomID, questions, roster)
	e.sessions[roomID] = session
	e.roomLocks[roomID] = &sync.Mutex{}
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"room":      roomID,
		"players":   len(roster),
		"questions": len(questions),
		"category":  category,
	}).Info("game started")

	e.pub.Broadcast(roomID, events.Event{
		Type: events.EventGameStart,
		Payload: map[string]interface{}{
			"totalQuestions":   session.TotalQuestions(),
			"countdownSeconds": CountdownSeconds,
		},
	})

	e.scheduleRoom(roomID, CountdownSeconds*time.Second, func() {
		e.withRoom(roomID, func(s *Session) {
			e.sendCurrentQuestion(s)
		})
	})
	return nil
}

// SubmitAnswer processes one submission. Stale indexes (a question that has
// already advanced) are ignored silently. Every live submission gets an
// ANSWER_RESULT broadcast; the first correct one additionally stops the
// clock, broadcasts the leaderboard and moves the game forward.
func (e *Engine) SubmitAnswer(roomID, identity string, questionIndex, selected int) error {
	lock, session, ok := e.room(roomID)
	if !ok {
		return fmt.Errorf("game: no running session for room %s", roomID)
	}
	lock.Lock()
	defer lock.Unlock()

	if session.Finished() {
		return fmt.Errorf("game: session for room %s is finished", roomID)
	}
	if !session.IsParticipant(identity) {
		return fmt.Errorf("game: %s is not in room %s", identity, roomID)
	}
	if questionIndex != session.CurrentIndex() {
		e.log.WithFields(logrus.Fields{
			"room":     roomID,
			"identity": identity,
			"got":      questionIndex,
			"current":  session.CurrentIndex(),
		}).Debug("stale answer ignored")
		return nil
	}

	won := session.TryAnswerCorrect(identity, selected)
	payload := map[string]interface{}{
		"email":         identity,
		"name":          e.memberName(identity),
		"questionIndex": questionIndex,
		"selected":      selected,
		"correct":       won,
	}
	if won {
		// Reveal the answer only once the question is resolved.
		if q, ok := session.CurrentQuestion(); ok {
			payload["answer"] = q.Answer
		}
	}
	e.pub.Broadcast(roomID, events.Event{Type: events.EventAnswerResult, Payload: payload})
	if !won {
		return nil
	}

	e.cancelRoomTimers(roomID)
	session.StopTimer()
	e.pub.Broadcast(roomID, events.Event{Type: events.EventTimerStop})
	e.broadcastLeaderboard(session)

	e.advance(session)
	return nil
}

// ResendCurrentQuestion unicasts the in-flight question to one identity, for
// a client that resubscribed mid-question. Non-participants are ignored and
// the clock is untouched.
func (e *Engine) ResendCurrentQuestion(roomID, identity string) {
	lock, session, ok := e.room(roomID)
	if !ok {
		return
	}
	lock.Lock()
	defer lock.Unlock()

	if !session.IsParticipant(identity) {
		return
	}
	q, ok := session.CurrentQuestion()
	if !ok {
		return
	}
	e.pub.Unicast(identity, questionEvent(session, q))
}

// ClearRoom tears down the room's session and pending timers without
// settlement, for rooms that empty out mid-game.
func (e *Engine) ClearRoom(roomID string) {
	e.cancelRoomTimers(roomID)
	e.mu.Lock()
	delete(e.sessions, roomID)
	delete(e.roomLocks, roomID)
	delete(e.timers, roomID)
	e.mu.Unlock()
}

// sendCurrentQuestion broadcasts the question at the session's index and arms
// its clock. Caller holds the room lock.
func (e *Engine) sendCurrentQuestion(session *Session) {
	q, ok := session.CurrentQuestion()
	if !ok {
		return
	}
	e.pub.Broadcast(session.RoomID, questionEvent(session, q))
	e.startQuestionTimer(session)
}

func questionEvent(session *Session, q models.Question) events.Event {
	return events.Event{
		Type: events.EventQuestion,
		Payload: map[string]interface{}{
			"questionIndex":  session.CurrentIndex(),
			"totalQuestions": session.TotalQuestions(),
			"question":       q.Text,
			"options":        q.Options,
			"timeLimit":      QuestionSeconds,
		},
	}
}

// startQuestionTimer schedules the per-second ticks and the expiry for the
// session's current question. Every callback validates the question index and
// the timer flag, so a question resolved early turns the whole set into
// no-ops even if cancellation loses the race. Caller holds the room lock.
func (e *Engine) startQuestionTimer(session *Session) {
	if !session.TryStartTimer() {
		return
	}
	roomID := session.RoomID
	index := session.CurrentIndex()

	for i := 1; i < QuestionSeconds; i++ {
		remaining := QuestionSeconds - i
		e.scheduleRoom(roomID, time.Duration(i)*time.Second, func() {
			e.withRoom(roomID, func(s *Session) {
				if s != session || !s.TimerRunning() || s.CurrentIndex() != index {
					return
				}
				e.pub.Broadcast(roomID, events.Event{
					Type:    events.EventTimerTick,
					Payload: map[string]interface{}{"remainingSeconds": remaining},
				})
			})
		})
	}

	e.scheduleRoom(roomID, QuestionSeconds*time.Second, func() {
		e.withRoom(roomID, func(s *Session) {
			e.handleTimeout(s, index)
		})
	})
}

// handleTimeout resolves a question nobody answered in time. Caller holds the
// room lock; stale firings (the index moved on, or the clock was stopped) are
// dropped.
func (e *Engine) handleTimeout(session *Session, questionIndex int) {
	if !session.TimerRunning() || session.CurrentIndex() != questionIndex {
		return
	}
	session.StopTimer()

	e.pub.Broadcast(session.RoomID, events.Event{
		Type:    events.EventTimeUp,
		Payload: map[string]interface{}{"questionIndex": questionIndex},
	})
	e.broadcastLeaderboard(session)

	e.advance(session)
}

// advance moves the session forward: settle it if the last question is done,
// otherwise run the loading pause and send the next question. Caller holds
// the room lock.
func (e *Engine) advance(session *Session) {
	if !session.TryAdvance() {
		return
	}
	if session.Finished() {
		e.finishGame(session)
		return
	}

	roomID := session.RoomID
	e.pub.Broadcast(roomID, events.Event{
		Type:    events.EventLoading,
		Payload: map[string]interface{}{"seconds": LoadingSeconds},
	})
	e.scheduleRoom(roomID, LoadingSeconds*time.Second, func() {
		e.withRoom(roomID, func(s *Session) {
			if s != session {
				return
			}
			e.sendCurrentQuestion(s)
		})
	})
}

// broadcastLeaderboard pushes the live standings after each resolved question.
func (e *Engine) broadcastLeaderboard(session *Session) {
	scores := session.Scores()
	e.pub.Broadcast(session.RoomID, events.Event{
		Type: events.EventLeaderboard,
		Payload: map[string]interface{}{
			"leader": session.CurrentLeader(),
			"scores": scores,
			"names":  e.resolveNames(scores),
		},
	})
}

// finishGame settles the session: broadcast the final tie-aware ranking,
// credit a sole winner's streak, drop the session and fire OnSessionEnd.
// Caller holds the room lock.
func (e *Engine) finishGame(session *Session) {
	roomID := session.RoomID
	scores := session.Scores()
	names := e.resolveNames(scores)
	ranking := BuildRanking(scores, func(email string) string { return names[email] })

	e.pub.Broadcast(roomID, events.Event{
		Type: events.EventGameEndRanking,
		Payload: map[string]interface{}{
			"ranking": ranking.Entries,
			"hasTie":  ranking.HasTie,
		},
	})

	if !ranking.HasTie && ranking.MaxScore > 0 {
		winner := ranking.Winners()[0]
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.members.IncrementStreak(ctx, winner, WinnerStreakBonus); err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{
				"room":   roomID,
				"winner": winner,
			}).Error("failed to credit winner streak")
		}
		cancel()
	}

	e.log.WithFields(logrus.Fields{
		"room":   roomID,
		"hasTie": ranking.HasTie,
		"max":    ranking.MaxScore,
	}).Info("game finished")

	e.cancelRoomTimers(roomID)
	e.mu.Lock()
	delete(e.sessions, roomID)
	delete(e.roomLocks, roomID)
	e.mu.Unlock()

	if e.OnSessionEnd != nil {
		// Outside the room lock: the callback may re-enter the engine.
		go e.OnSessionEnd(roomID)
	}
}

func (e *Engine) resolveNames(scores map[string]int) map[string]string {
	names := make(map[string]string, len(scores))
	for email := range scores {
		names[email] = e.memberName(email)
	}
	return names
}

// memberName resolves a display name, falling back to the email itself.
func (e *Engine) memberName(email string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	member, err := e.members.GetMemberByEmail(ctx, email)
	if err != nil || member == nil || member.Name == "" {
		return email
	}
	return member.Name
}

// room fetches the lock and session pair for a room.
func (e *Engine) room(roomID string) (*sync.Mutex, *Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	session, ok := e.sessions[roomID]
	if !ok {
		return nil, nil, false
	}
	lock, ok := e.roomLocks[roomID]
	if !ok {
		return nil, nil, false
	}
	return lock, session, true
}

// withRoom runs fn under the room lock if the room still has a session.
// Scheduled callbacks go through here so a cleared room is a no-op.
func (e *Engine) withRoom(roomID string, fn func(*Session)) {
	lock, session, ok := e.room(roomID)
	if !ok {
		return
	}
	lock.Lock()
	defer lock.Unlock()
	fn(session)
}

// scheduleRoom registers a delayed callback under the room's timer set so
// cancelRoomTimers can sweep it. Handles whose callback already ran are
// dropped here, so the set stays bounded across questions that expire without
// a winner.
func (e *Engine) scheduleRoom(roomID string, d time.Duration, fn func()) {
	task := e.sched.After(d, fn)
	e.mu.Lock()
	kept := e.timers[roomID][:0]
	for _, t := range e.timers[roomID] {
		if !t.Done() {
			kept = append(kept, t)
		}
	}
	e.timers[roomID] = append(kept, task)
	e.mu.Unlock()
}

// cancelRoomTimers cancels every pending callback for the room. Callbacks
// that already fired revalidate against session state and drop themselves.
func (e *Engine) cancelRoomTimers(roomID string) {
	e.mu.Lock()
	tasks := e.timers[roomID]
	delete(e.timers, roomID)
	e.mu.Unlock()
	for _, t := range tasks {
		t.Cancel()
	}
}
