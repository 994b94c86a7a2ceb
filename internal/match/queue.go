// internal/match/queue.go
package match

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/events"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/models"
)

const (
	matchingInterval = 1 * time.Second
	sweepInterval    = 10 * time.Second
)

// ErrAlreadyQueued rejects a duplicate enqueue for an identity still waiting.
var ErrAlreadyQueued = errors.New("match: already in queue")

// Queue pairs waiting players first-come-first-served. Order lives in a FIFO
// slice, membership in a set; the two are mutated together under one lock so
// an identity is either fully queued or fully out, and a cancel-then-enqueue
// rejoins at the back rather than inheriting the old slot.
type Queue struct {
	log     *logrus.Logger
	pub     events.Publisher
	members models.MemberStore

	mu     sync.Mutex
	fifo   []string
	queued map[string]struct{}

	// OnMatch runs outside the lock for every formed pair, after both
	// players were notified. The caller opens the matched room.
	OnMatch func(roomID string, players []string)
}

// NewQueue returns an empty matchmaking queue. The member store supplies the
// opponent profiles attached to MATCH_FOUND.
func NewQueue(logger *logrus.Logger, pub events.Publisher, members models.MemberStore) *Queue {
	return &Queue{
		log:     logger,
		pub:     pub,
		members: members,
		queued:  make(map[string]struct{}),
	}
}

// Enqueue adds identity to the back of the queue and runs an opportunistic
// matching pass, so a waiting player is paired without waiting for the next
// tick.
func (q *Queue) Enqueue(identity string) error {
	q.mu.Lock()
	if _, ok := q.queued[identity]; ok {
		q.mu.Unlock()
		return ErrAlreadyQueued
	}
	q.fifo = append(q.fifo, identity)
	q.queued[identity] = struct{}{}
	q.log.WithFields(logrus.Fields{"identity": identity, "depth": len(q.queued)}).
		Info("queued for match")
	q.mu.Unlock()

	q.MatchingPass()
	return nil
}

// Cancel withdraws identity from the queue. Unknown identities are a no-op.
func (q *Queue) Cancel(identity string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queued[identity]; !ok {
		return
	}
	delete(q.queued, identity)
	for i, id := range q.fifo {
		if id == identity {
			q.fifo = append(q.fifo[:i], q.fifo[i+1:]...)
			break
		}
	}
}

// Queued reports whether identity is waiting.
func (q *Queue) Queued(identity string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.queued[identity]
	return ok
}

// Len returns the number of waiting players.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queued)
}

// MatchingPass forms as many pairs as the queue allows. Each candidate is
// probed before pairing; a dead candidate is evicted and the survivor goes
// back to the front so they keep their place. Both players of a formed pair
// get MATCH_FOUND with the new room id.
func (q *Queue) MatchingPass() {
	for {
		pair, ok := q.takePair()
		if !ok {
			return
		}
		a, b := pair[0], pair[1]

		// Cannot happen while the set stays in sync with the FIFO, but a
		// self-match must never form.
		if a == b {
			q.requeueFront(a)
			return
		}

		if q.pub.Probe(a) != nil {
			q.log.WithField("identity", a).Info("evicting dead queue entry")
			q.requeueFront(b)
			continue
		}
		if q.pub.Probe(b) != nil {
			q.log.WithField("identity", b).Info("evicting dead queue entry")
			q.requeueFront(a)
			continue
		}

		roomID := uuid.New().String()
		q.log.WithFields(logrus.Fields{"room": roomID, "a": a, "b": b}).Info("match formed")
		q.pub.Unicast(a, q.matchFoundEvent(roomID, b))
		q.pub.Unicast(b, q.matchFoundEvent(roomID, a))
		if q.OnMatch != nil {
			q.OnMatch(roomID, []string{a, b})
		}
	}
}

// takePair pops the two oldest entries. Both are removed from the set; a
// probe failure re-adds the survivor.
func (q *Queue) takePair() ([2]string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var pair [2]string
	n := 0
	for len(q.fifo) > 0 && n < 2 {
		head := q.fifo[0]
		q.fifo = q.fifo[1:]
		if _, ok := q.queued[head]; !ok {
			continue
		}
		delete(q.queued, head)
		pair[n] = head
		n++
	}
	if n < 2 {
		// Not enough players; put the odd one back where they were.
		if n == 1 {
			q.fifo = append([]string{pair[0]}, q.fifo...)
			q.queued[pair[0]] = struct{}{}
		}
		return pair, false
	}
	return pair, true
}

// matchFoundEvent builds MATCH_FOUND with the opponent's public profile.
func (q *Queue) matchFoundEvent(roomID, opponent string) events.Event {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	profile, err := q.members.GetMemberByEmail(ctx, opponent)
	if err != nil || profile == nil {
		profile = &models.Member{Email: opponent}
	}
	return events.Event{
		Type: events.EventMatchFound,
		Payload: map[string]interface{}{
			"roomID":   roomID,
			"opponent": profile,
		},
	}
}

func (q *Queue) requeueFront(identity string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fifo = append([]string{identity}, q.fifo...)
	q.queued[identity] = struct{}{}
}

// LivenessSweep probes every waiting identity and drops the dead ones.
func (q *Queue) LivenessSweep() {
	q.mu.Lock()
	waiting := make([]string, 0, len(q.queued))
	for identity := range q.queued {
		waiting = append(waiting, identity)
	}
	q.mu.Unlock()

	for _, identity := range waiting {
		if q.pub.Probe(identity) != nil {
			q.log.WithField("identity", identity).Info("sweeping dead queue entry")
			q.Cancel(identity)
		}
	}
}

// Run drives the matching pass and the liveness sweep until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	matching := time.NewTicker(matchingInterval)
	sweep := time.NewTicker(sweepInterval)
	defer matching.Stop()
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-matching.C:
			q.MatchingPass()
		case <-sweep.C:
			q.LivenessSweep()
		}
	}
}
