// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/events"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/middleware"
)

const wsWriteTimeout = 3 * time.Second

// clientMessage is the envelope for everything a player sends over the room
// socket.
type clientMessage struct {
	Type          string `json:"type"`
	QuestionIndex int    `json:"questionIndex"`
	Selected      int    `json:"selected"`
}

// handleRoomSocket upgrades to a websocket, registers the caller on the room
// topic and pumps engine events out while reading answer submissions in.
// Presence bookkeeping (auto-start, resend, empty-room teardown) hangs off
// the subscribe/disconnect pair.
func (s *Server) handleRoomSocket(w http.ResponseWriter, r *http.Request) {
	identity := middleware.Identity(r.Context())
	roomID := r.PathValue("roomID")

	if !s.canJoinRoom(roomID, identity) {
		writeError(w, http.StatusForbidden, "not a member of this room")
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"buzzle"},
		OriginPatterns: []string{"*"}, // Adjust for production security.
	})
	if err != nil {
		s.log.WithError(err).WithField("room", roomID).Warn("websocket accept failed")
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler exit")

	middleware.LogSocketConnect(s.log, r.RemoteAddr, roomID)

	sub := s.hub.Subscribe(roomID, identity)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Write pump: drain the subscriber channel onto the socket. A closed
	// channel (replacement or unsubscribe) ends the connection.
	go func() {
		defer cancel()
		for ev := range sub.Out {
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.WithError(err).WithField("event", ev.Type).Error("failed to marshal event")
				continue
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			writeCancel()
			if err != nil {
				return
			}
		}
	}()

	// Presence after the subscription is live, so a resend lands in the
	// fresh channel.
	s.presence.HandleSubscribe(roomID, identity)

	readErr := s.readRoomMessages(ctx, c, roomID, identity)

	// A fast reconnect replaces the subscription before this teardown runs;
	// only the handler that still owns the live subscription may report the
	// player gone.
	if s.hub.Unsubscribe(roomID, identity, sub) {
		s.presence.HandleDisconnect(roomID, identity)
	}
	middleware.LogSocketDisconnect(s.log, r.RemoteAddr, roomID, readErr)
}

// canJoinRoom limits the room topic to actual players: invite-room members,
// the expected pair of a matched room, or the roster of a running session.
func (s *Server) canJoinRoom(roomID, identity string) bool {
	if got, err := s.rooms.Get(roomID); err == nil && got.HasMember(identity) {
		return true
	}
	if s.presence.Expects(roomID, identity) {
		return true
	}
	if session, ok := s.engine.Session(roomID); ok && session.IsParticipant(identity) {
		return true
	}
	return false
}

func (s *Server) readRoomMessages(ctx context.Context, c *websocket.Conn, roomID, identity string) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendSocketError(ctx, c, "invalid JSON")
			continue
		}

		switch msg.Type {
		case "submit_answer":
			if err := s.engine.SubmitAnswer(roomID, identity, msg.QuestionIndex, msg.Selected); err != nil {
				s.sendSocketError(ctx, c, err.Error())
			}
		case "request_resend":
			s.engine.ResendCurrentQuestion(roomID, identity)
		case "ping":
			s.sendSocketMessage(ctx, c, events.Event{Type: "PONG"})
		default:
			s.sendSocketError(ctx, c, "unknown message type: "+msg.Type)
		}
	}
}

func (s *Server) sendSocketMessage(ctx context.Context, c *websocket.Conn, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.log.WithError(err).Error("failed to marshal socket message")
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := c.Write(writeCtx, websocket.MessageText, data); err != nil {
		s.log.WithError(err).Debug("socket write failed")
	}
}

func (s *Server) sendSocketError(ctx context.Context, c *websocket.Conn, msg string) {
	s.sendSocketMessage(ctx, c, events.ErrorEvent(msg))
}
