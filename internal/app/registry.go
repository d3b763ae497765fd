package app

import (
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	RoomID domain.RoomID
	Outbox core.Outbox
}

// Registry maps joined sessions to their outbox and room.
// Not threadsafe: only the broker goroutine may touch it.
type Registry struct {
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*sessionEntry)}
}

func (r *Registry) Bind(sid core.SessionID, roomID domain.RoomID, out core.Outbox) {
	r.sessions[sid] = &sessionEntry{RoomID: roomID, Outbox: out}
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(roomID)).Msg("bound session")
}

// Unbind removes sid and returns the room it was bound to.
func (r *Registry) Unbind(sid core.SessionID) (domain.RoomID, bool) {
	e, ok := r.sessions[sid]
	if !ok {
		return "", false
	}
	delete(r.sessions, sid)
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return e.RoomID, true
}

func (r *Registry) Outbox(sid core.SessionID) (core.Outbox, bool) {
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	return e.Outbox, true
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	e, ok := r.sessions[sid]
	if !ok {
		return "", false
	}
	return e.RoomID, true
}

func (r *Registry) Len() int { return len(r.sessions) }
