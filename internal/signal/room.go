package signal

import (
	"errors"
	"sync"
)

// RoomCapacity is fixed: a call pairs exactly two participants. A third
// join is rejected, never queued.
const RoomCapacity = 2

var (
	ErrRoomFull   = errors.New("room is full")
	ErrRoomClosed = errors.New("room is closed")
)

// Room is the rendezvous point for one call, keyed by connection id. Its
// mutex guards membership only; unrelated rooms never contend on it.
type Room struct {
	id string

	mu           sync.Mutex
	participants map[string]*Participant
	closed       bool
}

func NewRoom(id string) *Room {
	return &Room{
		id:           id,
		participants: make(map[string]*Participant),
	}
}

func (r *Room) ID() string {
	return r.id
}

// AddParticipant inserts a participant. Re-adding an existing connection id
// overwrites in place and does not count against capacity, so a reconnect
// with the same identity succeeds. Returns ErrRoomClosed when the registry
// already tore the room down; the caller should retry with a fresh room.
func (r *Room) AddParticipant(connectionID string, p *Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if _, member := r.participants[connectionID]; !member && len(r.participants) >= RoomCapacity {
		return ErrRoomFull
	}

	r.participants[connectionID] = p
	return nil
}

// RemoveParticipant deletes and returns the member for connectionID.
func (r *Room) RemoveParticipant(connectionID string) (*Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, member := r.participants[connectionID]
	if !member {
		return nil, false
	}
	delete(r.participants, connectionID)
	return p, true
}

// OtherParticipant returns the single member whose connection id differs
// from the excluded one. With capacity 2 this is a direct lookup.
func (r *Room) OtherParticipant(excludeConnectionID string) (*Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, p := range r.participants {
		if id != excludeConnectionID {
			return p, true
		}
	}
	return nil, false
}

func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants) == 0
}

func (r *Room) IsFull() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants) >= RoomCapacity
}

func (r *Room) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// closeIfEmpty marks the room closed when it has no members. A closed room
// rejects late joins that still hold a stale pointer to it.
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.participants) > 0 {
		return false
	}
	r.closed = true
	return true
}

// RoomInfo is the REST projection of a room.
type RoomInfo struct {
	RoomID       string            `json:"roomId"`
	Participants []ParticipantInfo `json:"participants"`
}

func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	participants := make([]ParticipantInfo, 0, len(r.participants))
	for _, p := range r.participants {
		participants = append(participants, p.Info())
	}

	return RoomInfo{
		RoomID:       r.id,
		Participants: participants,
	}
}
