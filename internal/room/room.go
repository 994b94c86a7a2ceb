// internal/room/room.go
package room

import (
	"time"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/quiz"
)

// Room is a private lobby joined through an invite code. The first joiner
// becomes the host; the host picks when to start and the room dies with the
// host's departure. All fields are guarded by the registry's lock.
type Room struct {
	ID            string        `json:"roomID"`
	InviteCode    string        `json:"inviteCode"`
	Host          string        `json:"host"`
	Category      quiz.Category `json:"category"`
	QuestionCount int           `json:"questionCount"`
	MaxPlayers    int           `json:"maxPlayers"`
	Started       bool          `json:"started"`
	Members       []string      `json:"members"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// HasMember reports whether identity already joined.
func (r *Room) HasMember(identity string) bool {
	for _, m := range r.Members {
		if m == identity {
			return true
		}
	}
	return false
}

// Full reports whether the room reached capacity.
func (r *Room) Full() bool {
	return len(r.Members) >= r.MaxPlayers
}

func (r *Room) removeMember(identity string) {
	for i, m := range r.Members {
		if m == identity {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return
		}
	}
}

// snapshot copies the room for use outside the registry lock.
func (r *Room) snapshot() *Room {
	cp := *r
	cp.Members = append([]string(nil), r.Members...)
	return &cp
}
