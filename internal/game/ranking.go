// internal/game/ranking.go
package game

import "sort"

// RankingEntry is one row of the final standings.
type RankingEntry struct {
	Rank     int    `json:"rank"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	IsWinner bool   `json:"isWinner"`
}

// Ranking is the tie-aware final result of a session.
type Ranking struct {
	Entries  []RankingEntry `json:"ranking"`
	HasTie   bool           `json:"hasTie"`
	MaxScore int            `json:"-"`
}

// Winners returns the emails of every entry marked as a winner.
func (r Ranking) Winners() []string {
	var out []string
	for _, e := range r.Entries {
		if e.IsWinner {
			out = append(out, e.Email)
		}
	}
	return out
}

// BuildRanking orders the score table descending and assigns competition
// ranks: tied scores share a rank and the next distinct score skips past
// them (1, 1, 3). An entry is a winner when it holds the maximum score and
// that score is positive; an all-zero game has no winner. HasTie is set when
// more than one entry holds the maximum positive score.
//
// nameOf resolves an email to a display name; it may return "" and the email
// is used as-is.
func BuildRanking(scores map[string]int, nameOf func(email string) string) Ranking {
	entries := make([]RankingEntry, 0, len(scores))
	for email, score := range scores {
		name := ""
		if nameOf != nil {
			name = nameOf(email)
		}
		if name == "" {
			name = email
		}
		entries = append(entries, RankingEntry{Email: email, Name: name, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Email < entries[j].Email
	})

	maxScore := 0
	if len(entries) > 0 {
		maxScore = entries[0].Score
	}

	winners := 0
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = i + 1
		}
		if entries[i].Score == maxScore && maxScore > 0 {
			entries[i].IsWinner = true
			winners++
		}
	}

	return Ranking{
		Entries:  entries,
		HasTie:   winners > 1,
		MaxScore: maxScore,
	}
}
