// internal/events/hub.go
package events

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrSubscriberGone is returned by Probe when the identity has no live
// subscription or its delivery channel is saturated (a stuck consumer).
var ErrSubscriberGone = errors.New("events: subscriber gone")

// subscriberBuffer is the per-connection outbound queue depth. A full buffer
// means the write pump stopped draining; messages are dropped rather than
// blocking the engine.
const subscriberBuffer = 64

// Subscriber is one identity's live delivery channel for a single room topic.
// The transport layer owns the read side (its write pump) and must call
// Hub.Unsubscribe when the connection dies.
type Subscriber struct {
	Identity string
	RoomID   string
	Out      chan Event
}

// Hub is the in-process Publisher: a topic-keyed fan-out of buffered channels,
// one per connected participant. All delivery is non-blocking.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[string]*Subscriber
	users map[string]*Subscriber
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[string]*Subscriber),
		users: make(map[string]*Subscriber),
	}
}

// Subscribe registers identity on the room topic and returns its delivery
// channel. A second subscribe for the same identity+room replaces the old
// subscriber and closes its channel so a stale write pump exits.
func (h *Hub) Subscribe(roomID, identity string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[string]*Subscriber)
		h.rooms[roomID] = subs
	}
	if old, ok := subs[identity]; ok {
		close(old.Out)
	}
	sub := &Subscriber{Identity: identity, RoomID: roomID, Out: make(chan Event, subscriberBuffer)}
	subs[identity] = sub
	h.users[identity] = sub
	return sub
}

// Unsubscribe drops the identity's subscription on the room topic and closes
// its channel. It reports whether it removed the live subscription: a stale
// handle, already replaced by a reconnect, is left alone and returns false so
// the caller skips presence teardown for a player who is still connected.
func (h *Hub) Unsubscribe(roomID, identity string, sub *Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	cur, ok := subs[identity]
	if !ok || cur != sub {
		return false
	}
	delete(subs, identity)
	if len(subs) == 0 {
		delete(h.rooms, roomID)
	}
	if h.users[identity] == sub {
		delete(h.users, identity)
	}
	close(sub.Out)
	return true
}

// Broadcast sends the event to every subscriber of the room topic,
// non-blockingly. A subscriber with a full buffer has the message dropped.
func (h *Hub) Broadcast(roomID string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.rooms[roomID] {
		h.send(sub, ev)
	}
}

// Unicast sends the event to a single identity, wherever it is subscribed.
func (h *Hub) Unicast(identity string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.users[identity]
	if !ok {
		log.WithFields(log.Fields{"identity": identity, "event": ev.Type}).
			Debug("unicast dropped: no subscriber")
		return
	}
	h.send(sub, ev)
}

// Probe checks that the identity still has a subscription with room in its
// buffer. The match queue treats an error as a dead entrant.
func (h *Hub) Probe(identity string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.users[identity]
	if !ok {
		return ErrSubscriberGone
	}
	if len(sub.Out) == cap(sub.Out) {
		return ErrSubscriberGone
	}
	return nil
}

func (h *Hub) send(sub *Subscriber, ev Event) {
	select {
	case sub.Out <- ev:
	default:
		log.WithFields(log.Fields{"identity": sub.Identity, "room": sub.RoomID, "event": ev.Type}).
			Warn("subscriber buffer full, event dropped")
	}
}
