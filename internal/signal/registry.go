package signal

import (
	"log/slog"
	"sync"

	"go.uber.org/fx"
)

// Registry is the process-wide room map. Its mutex guards the map itself
// plus the empty-check-then-delete sequence; per-room membership stays
// behind each room's own mutex.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	logger *slog.Logger
}

type newRegistry_Params struct {
	fx.In

	Logger *slog.Logger
}

func NewRegistry(params newRegistry_Params) *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		logger: params.Logger,
	}
}

// GetOrCreate returns the room for roomID, creating it on first join.
// Exactly one Room instance ever exists per id at any instant.
func (s *Registry) GetOrCreate(roomID string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room, exist := s.rooms[roomID]; exist {
		return room
	}

	room := NewRoom(roomID)
	s.rooms[roomID] = room
	s.logger.Debug("created room", slog.String("room_id", roomID))
	return room
}

// Get looks a room up without creating it.
func (s *Registry) Get(roomID string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exist := s.rooms[roomID]
	return room, exist
}

// RemoveParticipant takes connectionID out of its room and tears the room
// down when that removal empties it. Performed under the registry mutex so
// the empty check can never interleave with a concurrent join adding to the
// same room: the join either lands before the check or observes the closed
// room and retries against a fresh one.
func (s *Registry) RemoveParticipant(roomID, connectionID string) (removed, remaining *Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exist := s.rooms[roomID]
	if !exist {
		return nil, nil
	}

	p, member := room.RemoveParticipant(connectionID)
	if !member {
		return nil, nil
	}
	removed = p

	if other, exist := room.OtherParticipant(connectionID); exist {
		remaining = other
	}

	if room.closeIfEmpty() {
		delete(s.rooms, roomID)
		s.logger.Debug("removed empty room", slog.String("room_id", roomID))
	}
	return removed, remaining
}

func (s *Registry) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// List snapshots every live room for the REST surface.
func (s *Registry) List() []RoomInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]RoomInfo, 0, len(s.rooms))
	for _, room := range s.rooms {
		result = append(result, room.Info())
	}
	return result
}
