// internal/models/member.go
package models

import "context"

// Member is the public profile snapshot of a participant. The engine keys
// everything on Email; Name and Picture are display-only fields attached to
// outbound events.
type Member struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Streak  int    `json:"streak,omitempty"`
}

// MemberStore resolves participant identities to profiles and records the
// end-of-game winner bonus. The production implementation lives in
// internal/database; tests use in-memory fakes.
type MemberStore interface {
	GetMemberByEmail(ctx context.Context, email string) (*Member, error)
	IncrementStreak(ctx context.Context, email string, amount int) error
}
