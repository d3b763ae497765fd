package app

import (
	"cmp"
	"slices"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Lookup tells whether GetOrCreate found a room or made one.
type Lookup int

const (
	Found Lookup = iota
	Created
)

func (l Lookup) String() string {
	if l == Created {
		return "created"
	}
	return "found"
}

// RoomManager owns every room. Not threadsafe: the broker goroutine is its only caller.
type RoomManager struct {
	rooms      map[domain.RoomID]*core.ChatRoom
	maxClients int
}

func NewRoomManager(maxClients int) *RoomManager {
	if maxClients <= 0 {
		maxClients = domain.DefaultMaxClients
	}
	return &RoomManager{
		rooms:      make(map[domain.RoomID]*core.ChatRoom),
		maxClients: maxClients,
	}
}

// Seed creates a permanent room with a fresh id.
func (m *RoomManager) Seed(name domain.RoomName) *core.ChatRoom {
	id := domain.RoomID(uuid.NewString())
	room := core.NewChatRoom(domain.Room{ID: id, Name: name, MaxClients: m.maxClients}, true)
	m.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("name", string(name)).Msg("seeded room")
	return room
}

// GetOrCreate resolves id, creating the room when it is unknown.
// An empty id always creates a room with a fresh id.
func (m *RoomManager) GetOrCreate(id domain.RoomID, name domain.RoomName) (*core.ChatRoom, Lookup) {
	if id != "" {
		if room, ok := m.rooms[id]; ok {
			return room, Found
		}
	} else {
		id = domain.RoomID(uuid.NewString())
	}
	room := core.NewChatRoom(domain.Room{ID: id, Name: name, MaxClients: m.maxClients}, false)
	m.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("name", string(name)).Msg("created room")
	return room, Created
}

func (m *RoomManager) Get(id domain.RoomID) (*core.ChatRoom, bool) {
	room, ok := m.rooms[id]
	return room, ok
}

// List returns a snapshot sorted by name, then id.
func (m *RoomManager) List() []domain.RoomInfo {
	out := make([]domain.RoomInfo, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r.Info())
	}
	slices.SortFunc(out, func(a, b domain.RoomInfo) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (m *RoomManager) Delete(id domain.RoomID) {
	delete(m.rooms, id)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("deleted room")
}

func (m *RoomManager) Len() int { return len(m.rooms) }

// MemberTotal sums membership over every room.
func (m *RoomManager) MemberTotal() int {
	n := 0
	for _, r := range m.rooms {
		n += r.MemberCount()
	}
	return n
}
