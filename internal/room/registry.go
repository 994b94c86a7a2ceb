// internal/room/registry.go
package room

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/events"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/quiz"
)

const (
	inviteCodeLength   = 6
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// Room size and game length bounds; out-of-range requests are rejected.
	MinPlayers       = 2
	MaxPlayersLimit  = 10
	MinQuestions     = 3
	MaxQuestions     = 20
	DefaultQuestions = 5

	// DefaultMaxPlayers caps a private room when the creator gives no limit.
	DefaultMaxPlayers = 8

	// staleRoomAge is how long an un-started room may sit before the sweep
	// reclaims it and its invite code.
	staleRoomAge = 30 * time.Minute
	sweepEvery   = 5 * time.Minute
)

// Invite-code validation reasons, reported to clients previewing a code
// before joining.
const (
	ReasonNotFound       = "NOT_FOUND"
	ReasonAlreadyStarted = "ALREADY_STARTED"
	ReasonFull           = "FULL"
)

// Validation is the preview result for an invite code. On success it carries
// enough of the room for a join screen.
type Validation struct {
	Valid         bool          `json:"valid"`
	Reason        string        `json:"reason,omitempty"`
	RoomID        string        `json:"roomID,omitempty"`
	Host          string        `json:"host,omitempty"`
	Players       int           `json:"players,omitempty"`
	MaxPlayers    int           `json:"maxPlayers,omitempty"`
	Category      quiz.Category `json:"category,omitempty"`
	QuestionCount int           `json:"questionCount,omitempty"`
}

// Registry tracks every open private room and its invite code. One mutex
// guards both indexes; room operations are short and never block on I/O.
type Registry struct {
	log *logrus.Logger
	pub events.Publisher

	mu     sync.Mutex
	rooms  map[string]*Room
	byCode map[string]*Room

	// OnGameStart runs after a room flips to started, outside the registry
	// lock, with a snapshot of the room. The engine hangs question fetching
	// and session setup off this.
	OnGameStart func(room *Room)

	// OnDisband runs after a room is removed through any path (host leave,
	// sweep, explicit disband), so live session state can be reclaimed.
	OnDisband func(roomID string)
}

// NewRegistry returns an empty registry publishing lifecycle events on pub.
func NewRegistry(logger *logrus.Logger, pub events.Publisher) *Registry {
	return &Registry{
		log:    logger,
		pub:    pub,
		rooms:  make(map[string]*Room),
		byCode: make(map[string]*Room),
	}
}

// CreateRoom opens a new room with a fresh invite code. The creator is NOT
// added here; they join through the code like everyone else and become host
// as the first member. Zero values pick defaults; explicit out-of-bounds
// values are rejected with ErrValidation.
func (r *Registry) CreateRoom(category quiz.Category, questionCount, maxPlayers int) (*Room, error) {
	if !category.Valid() {
		category = quiz.CategoryAll
	}
	if questionCount == 0 {
		questionCount = DefaultQuestions
	}
	if maxPlayers == 0 {
		maxPlayers = DefaultMaxPlayers
	}
	if questionCount < MinQuestions || questionCount > MaxQuestions {
		return nil, fmt.Errorf("%w: questionCount %d out of range [%d,%d]",
			ErrValidation, questionCount, MinQuestions, MaxQuestions)
	}
	if maxPlayers < MinPlayers || maxPlayers > MaxPlayersLimit {
		return nil, fmt.Errorf("%w: maxPlayers %d out of range [%d,%d]",
			ErrValidation, maxPlayers, MinPlayers, MaxPlayersLimit)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := r.freshInviteCode()
	if err != nil {
		return nil, err
	}
	room := &Room{
		ID:            uuid.New().String(),
		InviteCode:    code,
		Category:      category,
		QuestionCount: questionCount,
		MaxPlayers:    maxPlayers,
		CreatedAt:     time.Now(),
	}
	r.rooms[room.ID] = room
	r.byCode[code] = room

	r.log.WithFields(logrus.Fields{
		"room":     room.ID,
		"code":     code,
		"category": category,
	}).Info("room created")
	return room.snapshot(), nil
}

// freshInviteCode draws 6-character A-Z0-9 codes until one is unused. Caller
// holds the lock.
func (r *Registry) freshInviteCode() (string, error) {
	for {
		code, err := randomCode(inviteCodeLength)
		if err != nil {
			return "", err
		}
		if _, taken := r.byCode[code]; !taken {
			return code, nil
		}
	}
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = inviteCodeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

// ValidateInviteCode previews whether a code is joinable without joining.
func (r *Registry) ValidateInviteCode(code string) Validation {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.byCode[code]
	if !ok {
		return Validation{Reason: ReasonNotFound}
	}
	if room.Started {
		return Validation{Reason: ReasonAlreadyStarted, RoomID: room.ID}
	}
	if room.Full() {
		return Validation{Reason: ReasonFull, RoomID: room.ID}
	}
	return Validation{
		Valid:         true,
		RoomID:        room.ID,
		Host:          room.Host,
		Players:       len(room.Members),
		MaxPlayers:    room.MaxPlayers,
		Category:      room.Category,
		QuestionCount: room.QuestionCount,
	}
}

// Join adds identity to the room behind the invite code. The first joiner
// becomes host. PLAYER_JOINED is broadcast to the room afterwards.
func (r *Registry) Join(code, identity string) (*Room, error) {
	r.mu.Lock()
	room, ok := r.byCode[code]
	if !ok {
		r.mu.Unlock()
		return nil, ErrNotFound
	}
	if room.Started {
		r.mu.Unlock()
		return nil, ErrGameAlreadyStarted
	}
	if room.HasMember(identity) {
		r.mu.Unlock()
		return nil, ErrAlreadyJoined
	}
	if room.Full() {
		r.mu.Unlock()
		return nil, ErrRoomFull
	}
	room.Members = append(room.Members, identity)
	if room.Host == "" {
		room.Host = identity
	}
	snap := room.snapshot()
	r.mu.Unlock()

	r.pub.Broadcast(snap.ID, events.Event{
		Type: events.EventPlayerJoined,
		Payload: map[string]interface{}{
			"email":   identity,
			"host":    snap.Host,
			"members": snap.Members,
		},
	})
	return snap, nil
}

// Leave removes identity from its room. A departing host disbands the whole
// room; otherwise the remaining members get PLAYER_LEFT.
func (r *Registry) Leave(roomID, identity string) error {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if !room.HasMember(identity) {
		r.mu.Unlock()
		return ErrNotMember
	}

	// A departing host takes the room with them, mid-game included.
	if identity == room.Host {
		r.removeLocked(room)
		r.mu.Unlock()
		r.pub.Broadcast(roomID, events.Event{
			Type: events.EventPlayerLeft,
			Payload: map[string]interface{}{
				"email":     identity,
				"disbanded": true,
			},
		})
		r.log.WithField("room", roomID).Info("host left, room disbanded")
		r.disbanded(roomID)
		return nil
	}

	room.removeMember(identity)
	snap := room.snapshot()
	empty := len(room.Members) == 0
	if empty {
		r.removeLocked(room)
	}
	r.mu.Unlock()

	r.pub.Broadcast(roomID, events.Event{
		Type: events.EventPlayerLeft,
		Payload: map[string]interface{}{
			"email":   identity,
			"host":    snap.Host,
			"members": snap.Members,
		},
	})
	if empty {
		r.disbanded(roomID)
	}
	return nil
}

func (r *Registry) disbanded(roomID string) {
	if r.OnDisband != nil {
		r.OnDisband(roomID)
	}
}

// Start flips the room to started on behalf of the host and hands a snapshot
// to OnGameStart. A second start, a non-host caller and a lone player are all
// rejected.
func (r *Registry) Start(roomID, identity string) error {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if room.Started {
		r.mu.Unlock()
		return ErrGameAlreadyStarted
	}
	if identity != room.Host {
		r.mu.Unlock()
		return ErrNotHost
	}
	if len(room.Members) < 2 {
		r.mu.Unlock()
		return ErrCannotStart
	}
	room.Started = true
	snap := room.snapshot()
	r.mu.Unlock()

	if r.OnGameStart != nil {
		r.OnGameStart(snap)
	}
	return nil
}

// Get returns a snapshot of the room.
func (r *Registry) Get(roomID string) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return room.snapshot(), nil
}

// Disband drops a room and frees its invite code, for rooms whose game has
// finished.
func (r *Registry) Disband(roomID string) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if ok {
		r.removeLocked(room)
	}
	r.mu.Unlock()
	if ok {
		r.log.WithField("room", roomID).Info("room disbanded")
		r.disbanded(roomID)
	}
}

// PruneStale reclaims un-started rooms older than cutoff and returns how many
// it removed.
func (r *Registry) PruneStale(cutoff time.Duration) int {
	deadline := time.Now().Add(-cutoff)
	r.mu.Lock()
	var removed []string
	for _, room := range r.rooms {
		if !room.Started && room.CreatedAt.Before(deadline) {
			r.removeLocked(room)
			removed = append(removed, room.ID)
		}
	}
	r.mu.Unlock()

	for _, id := range removed {
		r.disbanded(id)
	}
	if len(removed) > 0 {
		r.log.WithField("count", len(removed)).Info("stale rooms pruned")
	}
	return len(removed)
}

// Run sweeps stale rooms until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.PruneStale(staleRoomAge)
		}
	}
}

// removeLocked drops the room from both indexes. Caller holds the lock.
func (r *Registry) removeLocked(room *Room) {
	delete(r.rooms, room.ID)
	delete(r.byCode, room.InviteCode)
}
