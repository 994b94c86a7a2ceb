// internal/presence/tracker.go
package presence

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/events"
)

// Tracker watches who is subscribed to each room topic. Matched rooms
// auto-start the moment both expected players are present; a resubscribe
// during a running game triggers a question resend; the last disconnect
// reports the room empty so the engine can reclaim it.
type Tracker struct {
	log *logrus.Logger
	pub events.Publisher

	mu    sync.Mutex
	rooms map[string]*roomPresence

	// OnAutoStart fires exactly once per matched room, when the full
	// expected pair is present. Runs outside the lock.
	OnAutoStart func(roomID string, players []string)
	// OnResend fires when an identity resubscribes to a room whose game is
	// already running.
	OnResend func(roomID, identity string)
	// OnEmpty fires when the last subscriber of a room disconnects.
	OnEmpty func(roomID string)
}

type roomPresence struct {
	expected map[string]struct{}
	present  map[string]struct{}
	started  bool
}

// NewTracker returns an empty tracker announcing arrivals and departures
// on pub.
func NewTracker(logger *logrus.Logger, pub events.Publisher) *Tracker {
	return &Tracker{
		log:   logger,
		pub:   pub,
		rooms: make(map[string]*roomPresence),
	}
}

// ExpectMatch registers a matchmade room and the pair that must show up
// before its game auto-starts.
func (t *Tracker) ExpectMatch(roomID string, players []string) {
	expected := make(map[string]struct{}, len(players))
	for _, p := range players {
		expected[p] = struct{}{}
	}
	t.mu.Lock()
	t.rooms[roomID] = &roomPresence{
		expected: expected,
		present:  make(map[string]struct{}),
	}
	t.mu.Unlock()
}

// MarkStarted flags a room's game as running, so later subscribes are treated
// as reconnects. Invite rooms call this from the host-start path.
func (t *Tracker) MarkStarted(roomID string) {
	t.mu.Lock()
	if rp, ok := t.rooms[roomID]; ok {
		rp.started = true
	} else {
		t.rooms[roomID] = &roomPresence{
			present: make(map[string]struct{}),
			started: true,
		}
	}
	t.mu.Unlock()
}

// HandleSubscribe records identity as present in the room. For a matched room
// it fires OnAutoStart when the expected pair is complete; for a running game
// it fires OnResend so the reconnecting client catches up.
func (t *Tracker) HandleSubscribe(roomID, identity string) {
	t.mu.Lock()
	rp, ok := t.rooms[roomID]
	if !ok {
		rp = &roomPresence{present: make(map[string]struct{})}
		t.rooms[roomID] = rp
	}
	rejoin := false
	_, was := rp.present[identity]
	if was || rp.started {
		rejoin = rp.started
	}
	rp.present[identity] = struct{}{}

	autoStart := false
	var players []string
	if !rp.started && rp.expected != nil {
		complete := true
		for p := range rp.expected {
			if _, here := rp.present[p]; !here {
				complete = false
				break
			}
		}
		if complete {
			rp.started = true
			autoStart = true
			for p := range rp.expected {
				players = append(players, p)
			}
		}
	}
	t.mu.Unlock()

	if !was {
		t.pub.Broadcast(roomID, events.Event{
			Type:    events.EventPlayerJoined,
			Payload: map[string]interface{}{"email": identity},
		})
	}
	if rejoin && t.OnResend != nil {
		t.log.WithFields(logrus.Fields{"room": roomID, "identity": identity}).
			Info("resubscribe during running game")
		t.OnResend(roomID, identity)
		return
	}
	if autoStart && t.OnAutoStart != nil {
		t.log.WithField("room", roomID).Info("matched pair present, auto-starting")
		t.OnAutoStart(roomID, players)
	}
}

// HandleDisconnect removes identity from the room and fires OnEmpty when
// nobody is left.
func (t *Tracker) HandleDisconnect(roomID, identity string) {
	t.mu.Lock()
	rp, ok := t.rooms[roomID]
	if !ok {
		t.mu.Unlock()
		return
	}
	_, was := rp.present[identity]
	delete(rp.present, identity)
	empty := len(rp.present) == 0
	if empty {
		delete(t.rooms, roomID)
	}
	t.mu.Unlock()

	if was {
		t.pub.Broadcast(roomID, events.Event{
			Type:    events.EventPlayerLeft,
			Payload: map[string]interface{}{"email": identity},
		})
	}
	if empty && t.OnEmpty != nil {
		t.log.WithField("room", roomID).Info("room empty")
		t.OnEmpty(roomID)
	}
}

// Expects reports whether identity is part of the room's expected match pair.
func (t *Tracker) Expects(roomID, identity string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rp, ok := t.rooms[roomID]
	if !ok || rp.expected == nil {
		return false
	}
	_, ok = rp.expected[identity]
	return ok
}

// Present returns how many identities are subscribed to the room.
func (t *Tracker) Present(roomID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	rp, ok := t.rooms[roomID]
	if !ok {
		return 0
	}
	return len(rp.present)
}
