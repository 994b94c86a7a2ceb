// internal/game/session.go
package game

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/models"
)

// Session is the per-room state machine: the question sequence, the score
// table and the atomic flags that make answer arbitration and question
// advancement exactly-once.
//
// The claim flags are lock-free because the answer path is hot: many wrong
// submissions can race for the same question, but only one claim ever
// succeeds. Scores and the index are guarded by an internal mutex; the engine
// additionally serializes all mutating calls per room.
type Session struct {
	RoomID string

	questions    []models.Question
	participants map[string]struct{}

	mu           sync.Mutex
	currentIndex int
	finished     bool
	scores       map[string]int

	correctAnswered atomic.Bool
	transition      atomic.Bool
	timerRunning    atomic.Bool
}

// NewSession creates a session over the given questions with every roster
// member seeded at score 0.
func NewSession(roomID string, questions []models.Question, roster []string) *Session {
	s := &Session{
		RoomID:       roomID,
		questions:    questions,
		participants: make(map[string]struct{}, len(roster)),
		scores:       make(map[string]int, len(roster)),
	}
	for _, identity := range roster {
		s.participants[identity] = struct{}{}
		s.scores[identity] = 0
	}
	return s
}

// CurrentQuestion returns the question at the current index, or ok=false once
// the session has run past the last question.
func (s *Session) CurrentQuestion() (models.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentIndex >= len(s.questions) {
		return models.Question{}, false
	}
	return s.questions[s.currentIndex], true
}

// CurrentIndex returns the zero-based index of the current question.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

// TotalQuestions returns the length of the question sequence.
func (s *Session) TotalQuestions() int { return len(s.questions) }

// Finished reports whether the session has advanced past its last question.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// IsParticipant reports whether identity belongs to the session roster.
func (s *Session) IsParticipant(identity string) bool {
	_, ok := s.participants[identity]
	return ok
}

// TryAnswerCorrect arbitrates a submission for the current question. It
// returns false if the session is finished, a winner is already recorded for
// this index, the identity is not on the roster, or the selected option is
// wrong. Among concurrent correct submissions exactly one caller wins the
// atomic claim and is credited one point; every other caller gets false with
// no side effects.
func (s *Session) TryAnswerCorrect(identity string, selected int) bool {
	if s.Finished() || s.correctAnswered.Load() {
		return false
	}
	if !s.IsParticipant(identity) {
		return false
	}
	q, ok := s.CurrentQuestion()
	if !ok || !q.IsCorrect(selected) {
		return false
	}
	if !s.correctAnswered.CompareAndSwap(false, true) {
		return false
	}

	s.mu.Lock()
	s.scores[identity]++
	s.mu.Unlock()
	return true
}

// TryAdvance moves the session to the next question exactly once per index.
// The transition flag guarantees that when the timer-expiry path and the
// answer-acceptance path race, only one of them advances; the loser gets
// false and must not act further. Advancing resets the winner claim and
// flips finished once the index reaches the question count.
func (s *Session) TryAdvance() bool {
	if !s.transition.CompareAndSwap(false, true) {
		return false
	}
	defer s.transition.Store(false)

	s.mu.Lock()
	s.currentIndex++
	if s.currentIndex >= len(s.questions) {
		s.finished = true
	}
	s.mu.Unlock()

	s.correctAnswered.Store(false)
	return true
}

// TryStartTimer claims the per-question timer start-once flag. Only the first
// caller after a question is (re)sent gets true and may schedule the clock.
func (s *Session) TryStartTimer() bool {
	return s.timerRunning.CompareAndSwap(false, true)
}

// StopTimer clears the timer flag so pending tick/timeout callbacks become
// no-ops and the next question may schedule a fresh clock.
func (s *Session) StopTimer() { s.timerRunning.Store(false) }

// TimerRunning reports whether the current question's clock is live.
func (s *Session) TimerRunning() bool { return s.timerRunning.Load() }

// Scores returns a copy of the score table.
func (s *Session) Scores() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.scores))
	for k, v := range s.scores {
		out[k] = v
	}
	return out
}

// Roster returns the session participants in sorted order.
func (s *Session) Roster() []string {
	out := make([]string, 0, len(s.participants))
	for identity := range s.participants {
		out = append(out, identity)
	}
	sort.Strings(out)
	return out
}

// Winner returns the identity with the maximum score. Ties resolve to the
// lexicographically smallest identity; the tie-aware result is the final
// ranking, not this.
func (s *Session) Winner() string { return s.topScorer() }

// CurrentLeader returns the identity currently leading the score table, for
// live leaderboard display only. Tie handling matches Winner.
func (s *Session) CurrentLeader() string { return s.topScorer() }

func (s *Session) topScorer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	leader := ""
	best := -1
	for identity, score := range s.scores {
		if score > best || (score == best && (leader == "" || identity < leader)) {
			leader = identity
			best = score
		}
	}
	return leader
}
