// internal/quiz/source.go
package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/models"
)

// Source produces question batches for a game session. Fetch is a blocking
// upstream call; malformed single questions are retried once internally
// before the whole batch fails.
type Source interface {
	Fetch(ctx context.Context, category Category, count int) ([]models.Question, error)
}

const questionPromptTemplate = `Write one multiple-choice trivia question about %s.
Respond with exactly these six lines and nothing else:
Question: <the question>
1. <option one>
2. <option two>
3. <option three>
4. <option four>
Answer: <the number of the correct option, 1-4>`

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ChatSource generates questions through an OpenAI-compatible chat completion
// endpoint, one request per question.
type ChatSource struct {
	BaseURL string
	APIKey  string
	Model   string

	client *http.Client
	log    *logrus.Logger
}

// NewChatSource builds a ChatSource against baseURL (e.g.
// "https://api.openai.com/v1").
func NewChatSource(logger *logrus.Logger, baseURL, apiKey, model string) *ChatSource {
	return &ChatSource{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     logger,
	}
}

// Fetch generates count questions for the category. Each question is
// requested separately; an unparseable completion is retried exactly once,
// then the batch fails.
func (s *ChatSource) Fetch(ctx context.Context, category Category, count int) ([]models.Question, error) {
	if count <= 0 {
		return nil, fmt.Errorf("quiz: invalid question count %d", count)
	}
	prompt := fmt.Sprintf(questionPromptTemplate, category.Topic())

	questions := make([]models.Question, 0, count)
	for i := 0; i < count; i++ {
		q, err := s.generateOne(ctx, prompt)
		if errors.Is(err, ErrMalformed) {
			s.log.WithError(err).WithField("category", category).Warn("malformed question, retrying once")
			q, err = s.generateOne(ctx, prompt)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to generate question %d/%d: %w", i+1, count, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (s *ChatSource) generateOne(ctx context.Context, prompt string) (models.Question, error) {
	content, err := s.complete(ctx, prompt)
	if err != nil {
		return models.Question{}, err
	}
	return ParseQuestion(content)
}

func (s *ChatSource) complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return "", errors.New("quiz: API key is not configured")
	}

	payload, err := json.Marshal(chatRequest{
		Model:       s.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 1.0,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(s.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("completion request failed (%d)", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse completion response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", fmt.Errorf("upstream error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrMalformed)
	}
	return parsed.Choices[0].Message.Content, nil
}
