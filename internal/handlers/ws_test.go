// internal/handlers/ws_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/room"
)

func wsURL(srv *httptest.Server, roomID, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/" + roomID + "?token=" + token
}

func dialRoom(t *testing.T, srv *httptest.Server, roomID, email string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, wsURL(srv, roomID, testToken(t, email)), &websocket.DialOptions{
		Subprotocols: []string{"buzzle"},
	})
	require.NoError(t, err)
	return c
}

func createAndJoinRoom(t *testing.T, h http.Handler, email string) room.Room {
	t.Helper()
	w := doJSON(t, h, "POST", "/api/rooms", email, map[string]interface{}{
		"questionCount": 3,
		"maxPlayers":    4,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created room.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(t, h, "POST", "/api/rooms/join", email, map[string]string{"inviteCode": created.InviteCode})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return created
}

func TestRoomSocketUpgradesThroughFullHandlerChain(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	created := createAndJoinRoom(t, env.handler, "a@x")

	// The dial goes through logging + auth middleware, so the upgrade must
	// survive the wrapped ResponseWriter.
	c := dialRoom(t, srv, created.ID, "a@x")
	defer c.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return env.tracker.Present(created.ID) == 1 },
		time.Second, 10*time.Millisecond)
}

func TestRoomSocketRejectsOutsiders(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	created := createAndJoinRoom(t, env.handler, "a@x")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, resp, err := websocket.Dial(ctx, wsURL(srv, created.ID, testToken(t, "ghost@x")), nil)
	require.Error(t, err)
	if c != nil {
		c.Close(websocket.StatusNormalClosure, "")
	}
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, env.tracker.Present(created.ID))
}

func TestFastReconnectKeepsPresenceAlive(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	emptied := make(chan string, 4)
	env.tracker.OnEmpty = func(roomID string) { emptied <- roomID }

	created := createAndJoinRoom(t, env.handler, "a@x")

	first := dialRoom(t, srv, created.ID, "a@x")
	defer first.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return env.tracker.Present(created.ID) == 1 },
		time.Second, 10*time.Millisecond)

	// A second socket for the same identity replaces the first subscription;
	// the stale handler's teardown must not evict the live connection.
	second := dialRoom(t, srv, created.ID, "a@x")
	defer second.Close(websocket.StatusNormalClosure, "")

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, env.tracker.Present(created.ID))
	select {
	case roomID := <-emptied:
		t.Fatalf("room %s reported empty while a socket is live", roomID)
	default:
	}
}
