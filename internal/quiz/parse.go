// internal/quiz/parse.go
package quiz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/models"
)

// ErrMalformed reports that upstream output could not be parsed into a
// complete question. Callers retry once before surfacing it.
var ErrMalformed = errors.New("quiz: malformed question text")

// ParseQuestion parses a generated question in the labelled format
//
//	Question: <text>
//	1. <option>
//	2. <option>
//	3. <option>
//	4. <option>
//	Answer: <1-4>
//
// either line-per-field or as a single "[a , b , c]" comma-joined line.
func ParseQuestion(raw string) (models.Question, error) {
	var parts []string
	if strings.Contains(raw, " , ") {
		cleaned := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(raw), "["), "]")
		parts = strings.Split(cleaned, " , ")
	} else {
		parts = strings.Split(raw, "\n")
	}

	var text, answer string
	options := make([]string, 4)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "Question:"):
			text = strings.TrimSpace(strings.TrimPrefix(part, "Question:"))
		case strings.HasPrefix(part, "1."):
			options[0] = strings.TrimSpace(strings.TrimPrefix(part, "1."))
		case strings.HasPrefix(part, "2."):
			options[1] = strings.TrimSpace(strings.TrimPrefix(part, "2."))
		case strings.HasPrefix(part, "3."):
			options[2] = strings.TrimSpace(strings.TrimPrefix(part, "3."))
		case strings.HasPrefix(part, "4."):
			options[3] = strings.TrimSpace(strings.TrimPrefix(part, "4."))
		case strings.HasPrefix(part, "Answer:"):
			answer = strings.TrimSpace(strings.TrimPrefix(part, "Answer:"))
		}
	}

	if text == "" || answer == "" {
		return models.Question{}, fmt.Errorf("%w: missing question or answer", ErrMalformed)
	}
	for i, opt := range options {
		if opt == "" {
			return models.Question{}, fmt.Errorf("%w: missing option %d", ErrMalformed, i+1)
		}
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > 4 {
		return models.Question{}, fmt.Errorf("%w: answer marker %q out of range", ErrMalformed, answer)
	}

	return models.Question{Text: text, Options: options, Answer: n - 1}, nil
}
