// internal/models/question.go
package models

// Question is a single trivia question with four options. Answer holds the
// zero-based index of the correct option.
type Question struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
	Answer  int      `json:"-"`
}

// IsCorrect reports whether the submitted zero-based option index matches the
// answer marker.
func (q Question) IsCorrect(selected int) bool {
	return selected >= 0 && selected < len(q.Options) && selected == q.Answer
}
