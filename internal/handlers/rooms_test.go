// internal/handlers/rooms_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/auth"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/events"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/game"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/match"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/models"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/presence"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/quiz"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/room"
)

const testSecret = "handler-test-secret"

type stubSource struct{}

func (stubSource) Fetch(ctx context.Context, category quiz.Category, count int) ([]models.Question, error) {
	qs := make([]models.Question, count)
	for i := range qs {
		qs[i] = models.Question{Text: "q", Options: []string{"a", "b", "c", "d"}, Answer: 0}
	}
	return qs, nil
}

type stubMembers struct{}

func (stubMembers) GetMemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	return &models.Member{Email: email, Name: email}, nil
}

func (stubMembers) IncrementStreak(ctx context.Context, email string, amount int) error {
	return nil
}

// testEnv exposes the wired components behind the handler for tests that need
// to observe or steer them directly.
type testEnv struct {
	handler http.Handler
	hub     *events.Hub
	tracker *presence.Tracker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	verifier, err := auth.NewVerifier(testSecret)
	require.NoError(t, err)

	hub := events.NewHub()
	engine := game.NewEngine(logger, hub, stubSource{}, stubMembers{})
	registry := room.NewRegistry(logger, hub)
	queue := match.NewQueue(logger, hub, stubMembers{})
	tracker := presence.NewTracker(logger, hub)

	return &testEnv{
		handler: NewServer(logger, hub, registry, queue, engine, tracker, verifier).Handler(),
		hub:     hub,
		tracker: tracker,
	}
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	return newTestEnv(t).handler
}

func testToken(t *testing.T, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": email})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, h http.Handler, method, path, email string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if email != "" {
		req.Header.Set("Authorization", "Bearer "+testToken(t, email))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAPIRequiresAuth(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, "POST", "/api/rooms", "", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("POST", "/api/rooms", bytes.NewBufferString("{}"))
	req.Header.Set("Authorization", "Bearer bogus")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateJoinAndStartRoomFlow(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, "POST", "/api/rooms", "host@x", map[string]interface{}{
		"category":      "HISTORY",
		"questionCount": 3,
		"maxPlayers":    4,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created room.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.InviteCode)

	// Preview the code before joining.
	w = doJSON(t, h, "GET", "/api/invites/"+created.InviteCode, "host@x", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var v room.Validation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.True(t, v.Valid)

	// First joiner becomes host.
	w = doJSON(t, h, "POST", "/api/rooms/join", "host@x", map[string]string{"inviteCode": created.InviteCode})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var joined room.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &joined))
	assert.Equal(t, "host@x", joined.Host)

	// A lone host cannot start.
	w = doJSON(t, h, "POST", "/api/rooms/"+created.ID+"/start", "host@x", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, h, "POST", "/api/rooms/join", "guest@x", map[string]string{"inviteCode": created.InviteCode})
	require.Equal(t, http.StatusOK, w.Code)

	// Only the host can start.
	w = doJSON(t, h, "POST", "/api/rooms/"+created.ID+"/start", "guest@x", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, h, "POST", "/api/rooms/"+created.ID+"/start", "host@x", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCreateRoomRejectsBadBounds(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, "POST", "/api/rooms", "a@x", map[string]interface{}{
		"questionCount": 100,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestJoinUnknownCode(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, "POST", "/api/rooms/join", "a@x", map[string]string{"inviteCode": "ZZZZZZ"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMatchQueueEndpoints(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, "POST", "/api/match", "a@x", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(t, h, "POST", "/api/match", "a@x", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "double enqueue is rejected")

	w = doJSON(t, h, "DELETE", "/api/match", "a@x", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, "POST", "/api/match", "a@x", nil)
	assert.Equal(t, http.StatusAccepted, w.Code, "re-enqueue after cancel works")
}

func TestHealthIsPublic(t *testing.T) {
	h := newTestHandler(t)
	w := doJSON(t, h, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
