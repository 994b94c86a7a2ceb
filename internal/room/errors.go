// internal/room/errors.go
package room

import "errors"

var (
	// ErrNotFound means no room exists for the given id or invite code.
	ErrNotFound = errors.New("room: not found")
	// ErrGameAlreadyStarted rejects joins and second starts on a live room.
	ErrGameAlreadyStarted = errors.New("room: game already started")
	// ErrRoomFull rejects joins past the room's capacity.
	ErrRoomFull = errors.New("room: full")
	// ErrAlreadyJoined rejects a duplicate join by the same identity.
	ErrAlreadyJoined = errors.New("room: already joined")
	// ErrNotHost rejects host-only operations from other members.
	ErrNotHost = errors.New("room: only the host can do that")
	// ErrCannotStart rejects a start on a room without enough players.
	ErrCannotStart = errors.New("room: need at least two players to start")
	// ErrNotMember rejects operations by identities outside the room.
	ErrNotMember = errors.New("room: not a member")
	// ErrValidation rejects room parameters outside the allowed bounds.
	ErrValidation = errors.New("room: invalid parameters")
)
