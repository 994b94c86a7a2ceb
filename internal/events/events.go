// internal/events/events.go
package events

// Type identifies an outbound event published by the engine.
type Type string

const (
	// Matchmaking.
	EventMatchFound Type = "MATCH_FOUND"

	// Room lifecycle.
	EventRoomCreated  Type = "ROOM_CREATED"
	EventPlayerJoined Type = "PLAYER_JOINED"
	EventPlayerLeft   Type = "PLAYER_LEFT"

	// Game progression.
	EventGameStart      Type = "GAME_START"
	EventQuestion       Type = "QUESTION"
	EventTimerTick      Type = "TIMER_TICK"
	EventTimeUp         Type = "TIME_UP"
	EventTimerStop      Type = "TIMER_STOP"
	EventAnswerResult   Type = "ANSWER_RESULT"
	EventLeaderboard    Type = "LEADERBOARD"
	EventLoading        Type = "LOADING"
	EventGameEndRanking Type = "GAME_END_RANKING"

	EventError Type = "ERROR"
)

// Event is the unit of fan-out. Payload carries event-specific fields; the
// engine never reads an event back, so a loose map keeps the wire format
// flexible for clients.
type Event struct {
	Type    Type                   `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Publisher delivers events to connected clients. Both methods are
// fire-and-forget: the engine must never block on delivery, and delivery
// failures are the publisher's problem to log.
//
// Probe reports whether a recipient still has a live delivery channel; the
// match queue uses it to evict disconnected entrants.
type Publisher interface {
	Broadcast(roomID string, ev Event)
	Unicast(identity string, ev Event)
	Probe(identity string) error
}

// ErrorEvent builds a standard ERROR event with a human-readable message.
func ErrorEvent(msg string) Event {
	return Event{Type: EventError, Payload: map[string]interface{}{"message": msg}}
}
