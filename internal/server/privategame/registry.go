package privategame

import (
	"errors"
	"log"
	"strings"
	"time"

	"trust-platform/backend/internal/protocol"
	"trust-platform/backend/internal/server/dispatch"
	"trust-platform/backend/internal/validation"
)

// roomTimeout is how long an unmatched room waits for a guest.
const roomTimeout = 10 * time.Minute

const (
	StatusWaiting = "waiting"
	StatusMatched = "matched"
)

var (
	ErrRoomExists   = errors.New("a game with this code already exists")
	ErrRoomNotFound = errors.New("game not found")
	ErrOwnRoom      = errors.New("cannot join your own game")
)

// Room is one pending private game keyed by its share code.
type Room struct {
	Code         string
	HostClientID string
	HostPlayer   protocol.Player
	Guest        *protocol.Player
	Status       string
	CreatedAt    time.Time

	timeout *dispatch.Timer
}

// Registry maps share codes to pending rooms. Mutated only on the dispatcher
// loop.
type Registry struct {
	loop  *dispatch.Loop
	rooms map[string]*Room

	onExpire func(room *Room)
}

func NewRegistry(loop *dispatch.Loop) *Registry {
	return &Registry{
		loop:  loop,
		rooms: make(map[string]*Room),
	}
}

// SetOnExpireCallback registers the handler invoked when a waiting room times
// out before a guest arrives.
func (r *Registry) SetOnExpireCallback(fn func(room *Room)) {
	r.onExpire = fn
}

// Create opens a room under a host-chosen code.
func (r *Registry) Create(code, hostClientID string, host protocol.Player) (*Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := validation.ValidateGameCode(code); err != nil {
		return nil, err
	}
	if _, exists := r.rooms[code]; exists {
		return nil, ErrRoomExists
	}

	room := &Room{
		Code:         code,
		HostClientID: hostClientID,
		HostPlayer:   host,
		Status:       StatusWaiting,
		CreatedAt:    time.Now(),
	}
	room.timeout = r.loop.After(roomTimeout, func() {
		r.expire(code)
	})
	r.rooms[code] = room

	log.Printf("[PRIVATE] Room %s created by %s", code, hostClientID)
	return room, nil
}

// Join resolves a waiting room to a matched pair and removes it from the
// registry. The caller creates the match.
func (r *Registry) Join(code, guestClientID string, guest protocol.Player) (*Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := validation.ValidateGameCode(code); err != nil {
		return nil, err
	}
	room, exists := r.rooms[code]
	if !exists || room.Status != StatusWaiting {
		return nil, ErrRoomNotFound
	}
	if room.HostClientID == guestClientID {
		return nil, ErrOwnRoom
	}

	room.timeout.Stop()
	room.Guest = &guest
	room.Status = StatusMatched
	delete(r.rooms, code)

	log.Printf("[PRIVATE] Room %s matched: %s vs %s", code, room.HostClientID, guestClientID)
	return room, nil
}

// Cancel removes a waiting room, host-initiated or on host disconnect.
func (r *Registry) Cancel(code string) bool {
	room, exists := r.rooms[code]
	if !exists {
		return false
	}
	room.timeout.Stop()
	delete(r.rooms, code)
	return true
}

// CancelByHost drops every waiting room owned by a client.
func (r *Registry) CancelByHost(hostClientID string) int {
	removed := 0
	for code, room := range r.rooms {
		if room.HostClientID == hostClientID {
			room.timeout.Stop()
			delete(r.rooms, code)
			removed++
		}
	}
	return removed
}

// Get returns a live room by code.
func (r *Registry) Get(code string) (*Room, bool) {
	room, ok := r.rooms[strings.ToUpper(code)]
	return room, ok
}

// Count returns the number of pending rooms.
func (r *Registry) Count() int {
	return len(r.rooms)
}

func (r *Registry) expire(code string) {
	room, exists := r.rooms[code]
	if !exists || room.Status != StatusWaiting {
		return
	}
	delete(r.rooms, code)
	log.Printf("[PRIVATE] Room %s expired unmatched", code)
	if r.onExpire != nil {
		r.onExpire(room)
	}
}
