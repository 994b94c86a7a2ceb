// internal/database/members.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/models"
)

// MemberStore reads member profiles and settles winner streaks against the
// members table owned by the account service.
type MemberStore struct {
	pool *pgxpool.Pool
}

// NewMemberStore wraps a connected pool.
func NewMemberStore(pool *pgxpool.Pool) *MemberStore {
	return &MemberStore{pool: pool}
}

// GetMemberByEmail loads one member's profile.
func (s *MemberStore) GetMemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	var m models.Member
	q := `
	SELECT email, name, picture, streak
	FROM members
	WHERE email=$1
	`
	err := s.pool.QueryRow(ctx, q, email).Scan(&m.Email, &m.Name, &m.Picture, &m.Streak)
	if err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", email, err)
	}
	return &m, nil
}

// IncrementStreak adds amount to the member's streak inside a transaction.
func (s *MemberStore) IncrementStreak(ctx context.Context, email string, amount int) error {
	q := `UPDATE members SET streak = streak + $2 WHERE email = $1`

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, execErr := tx.Exec(ctx, q, email, amount)
		if execErr != nil {
			return execErr
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("no member with email %s", email)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update streak for %s: %w", email, err)
	}
	return nil
}
