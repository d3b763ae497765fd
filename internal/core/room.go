package core

import (
	"github.com/dkeye/Chat/internal/domain"
)

// ChatRoom is the in-memory state of one room.
// It is not threadsafe: the broker goroutine is its only owner.
type ChatRoom struct {
	room    domain.Room
	seeded  bool
	members map[SessionID]string
	typing  map[SessionID]struct{}
	history []domain.Message
}

func NewChatRoom(room domain.Room, seeded bool) *ChatRoom {
	if room.MaxClients <= 0 {
		room.MaxClients = domain.DefaultMaxClients
	}
	return &ChatRoom{
		room:    room,
		seeded:  seeded,
		members: make(map[SessionID]string),
		typing:  make(map[SessionID]struct{}),
	}
}

func (r *ChatRoom) Room() domain.Room { return r.room }
func (r *ChatRoom) ID() domain.RoomID { return r.room.ID }
func (r *ChatRoom) Seeded() bool      { return r.seeded }
func (r *ChatRoom) MemberCount() int  { return len(r.members) }
func (r *ChatRoom) Full() bool        { return len(r.members) >= r.room.MaxClients }

func (r *ChatRoom) Info() domain.RoomInfo {
	return domain.RoomInfo{
		ID:               r.room.ID,
		Name:             r.room.Name,
		ConnectedClients: len(r.members),
		MaxClients:       r.room.MaxClients,
	}
}

func (r *ChatRoom) AddMember(sid SessionID, name string) { r.members[sid] = name }

// RemoveMember drops sid from membership and the typing set.
func (r *ChatRoom) RemoveMember(sid SessionID) (string, bool) {
	name, ok := r.members[sid]
	if !ok {
		return "", false
	}
	delete(r.members, sid)
	delete(r.typing, sid)
	return name, true
}

// Member resolves sid to the user it joined as.
func (r *ChatRoom) Member(sid SessionID) (domain.User, bool) {
	name, ok := r.members[sid]
	if !ok {
		return domain.User{}, false
	}
	return domain.User{ID: sid.UserID(), Name: name}, true
}

func (r *ChatRoom) NameTaken(name string) bool {
	for _, n := range r.members {
		if n == name {
			return true
		}
	}
	return false
}

// MemberIDs returns every member except the given ones.
func (r *ChatRoom) MemberIDs(except ...SessionID) []SessionID {
	out := make([]SessionID, 0, len(r.members))
	for sid := range r.members {
		if containsSID(except, sid) {
			continue
		}
		out = append(out, sid)
	}
	return out
}

// MembersSnapshot returns users for every member except the given ones.
func (r *ChatRoom) MembersSnapshot(except ...SessionID) []domain.User {
	out := make([]domain.User, 0, len(r.members))
	for sid, name := range r.members {
		if containsSID(except, sid) {
			continue
		}
		out = append(out, domain.User{ID: sid.UserID(), Name: name})
	}
	return out
}

func (r *ChatRoom) SetTyping(sid SessionID, typing bool) {
	if typing {
		r.typing[sid] = struct{}{}
		return
	}
	delete(r.typing, sid)
}

// ClearTyping reports whether sid was flagged typing.
func (r *ChatRoom) ClearTyping(sid SessionID) bool {
	if _, ok := r.typing[sid]; !ok {
		return false
	}
	delete(r.typing, sid)
	return true
}

func (r *ChatRoom) TypingSnapshot() []domain.User {
	out := make([]domain.User, 0, len(r.typing))
	for sid := range r.typing {
		if name, ok := r.members[sid]; ok {
			out = append(out, domain.User{ID: sid.UserID(), Name: name})
		}
	}
	return out
}

func (r *ChatRoom) Append(m domain.Message) { r.history = append(r.history, m) }

// History returns a copy; callers may keep it after the room changes.
func (r *ChatRoom) History() []domain.Message {
	out := make([]domain.Message, len(r.history))
	copy(out, r.history)
	return out
}

func containsSID(list []SessionID, sid SessionID) bool {
	for _, s := range list {
		if s == sid {
			return true
		}
	}
	return false
}
