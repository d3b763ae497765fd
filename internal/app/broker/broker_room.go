package broker

import (
	"cmp"
	"context"
	"slices"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/proto"
	"github.com/rs/zerolog/log"
)

// ListRooms returns a snapshot of every room.
func (b *Broker) ListRooms(ctx context.Context) ([]domain.RoomInfo, error) {
	req := listRoomsRequest{reply: make(chan []domain.RoomInfo, 1)}
	if err := b.submit(ctx, req); err != nil {
		return nil, err
	}
	return await(b, req.reply)
}

// Members returns the users currently in roomID, sorted by name.
func (b *Broker) Members(ctx context.Context, roomID domain.RoomID) ([]domain.User, error) {
	req := membersRequest{roomID: roomID, reply: make(chan membersResult, 1)}
	if err := b.submit(ctx, req); err != nil {
		return nil, err
	}
	res, err := await(b, req.reply)
	if err != nil {
		return nil, err
	}
	return res.users, res.err
}

// Join puts sid into roomID under name, creating the room when roomID is
// unknown or empty. It returns the id of the joined room. The "joined" event
// itself is delivered through out. ctx bounds only queuing the request: once
// accepted, Join waits for the outcome, so an error always means no change.
func (b *Broker) Join(ctx context.Context, sid core.SessionID, out core.Outbox, roomID domain.RoomID, name string) (domain.RoomID, error) {
	req := joinRequest{sid: sid, out: out, roomID: roomID, name: name, reply: make(chan joinResult, 1)}
	if err := b.submit(ctx, req); err != nil {
		return "", err
	}
	res, err := await(b, req.reply)
	if err != nil {
		return "", err
	}
	return res.roomID, res.err
}

// Disconnect removes sid from its room. Unknown sessions are ignored, so
// duplicate disconnects are harmless.
func (b *Broker) Disconnect(ctx context.Context, sid core.SessionID, roomID domain.RoomID) error {
	return b.submit(ctx, disconnectRequest{sid: sid, roomID: roomID})
}

func (b *Broker) members(roomID domain.RoomID) membersResult {
	room, ok := b.rooms.Get(roomID)
	if !ok {
		return membersResult{err: ErrRoomNotFound}
	}
	users := room.MembersSnapshot()
	slices.SortFunc(users, func(x, y domain.User) int {
		if c := cmp.Compare(x.Name, y.Name); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return membersResult{users: users}
}

func (b *Broker) join(r joinRequest) joinResult {
	if _, ok := b.sessions.RoomOf(r.sid); ok {
		log.Warn().Str("module", "broker").Str("sid", string(r.sid)).Msg("join while still in a room, leaving first")
		b.disconnect(r.sid, "")
	}

	room, lookup := b.rooms.GetOrCreate(r.roomID, domain.DerivedRoomName(r.name))
	if lookup == app.Found {
		if room.NameTaken(r.name) {
			log.Info().Str("module", "broker").Str("sid", string(r.sid)).Str("room", string(room.ID())).Msg("join rejected: name taken")
			return joinResult{err: ErrNameTaken}
		}
		if !b.policy.AdmitJoin(room) {
			log.Info().Str("module", "broker").Str("sid", string(r.sid)).Str("room", string(room.ID())).Msg("join rejected: room full")
			return joinResult{err: ErrRoomFull}
		}
	}

	user := domain.User{ID: r.sid.UserID(), Name: r.name}

	// Peers hear about the joiner before membership changes, so the joiner
	// never receives its own user-joined.
	b.broadcast(room, proto.UserJoined(user), r.sid)

	b.sessions.Bind(r.sid, room.ID(), r.out)
	room.AddMember(r.sid, r.name)

	b.sendEvent(room, r.sid, proto.Joined(
		user,
		room.MembersSnapshot(r.sid),
		room.History(),
		room.TypingSnapshot(),
	))
	b.observeState()

	log.Info().Str("module", "broker").Str("sid", string(r.sid)).Str("room", string(room.ID())).Str("lookup", lookup.String()).Int("members", room.MemberCount()).Msg("joined")
	return joinResult{roomID: room.ID()}
}

func (b *Broker) disconnect(sid core.SessionID, roomID domain.RoomID) {
	bound, ok := b.sessions.Unbind(sid)
	if !ok {
		log.Debug().Str("module", "broker").Str("sid", string(sid)).Msg("disconnect for unknown session")
		return
	}
	if roomID != "" && roomID != bound {
		log.Warn().Str("module", "broker").Str("sid", string(sid)).Str("room", string(roomID)).Str("bound", string(bound)).Msg("disconnect room mismatch, using bound room")
	}

	room, ok := b.rooms.Get(bound)
	if !ok {
		log.Warn().Str("module", "broker").Str("sid", string(sid)).Str("room", string(bound)).Msg("disconnect from missing room")
		return
	}
	user, ok := room.Member(sid)
	if !ok {
		log.Warn().Str("module", "broker").Str("sid", string(sid)).Str("room", string(bound)).Msg("disconnect for non-member")
		return
	}

	// typing-stopped must reach peers before user-left.
	if room.ClearTyping(sid) {
		b.broadcast(room, proto.UserTyping(proto.TypingStopped, user), sid)
	}
	room.RemoveMember(sid)
	b.broadcast(room, proto.UserLeft(user), sid)

	if b.policy.DeleteWhenEmpty(room) {
		b.rooms.Delete(room.ID())
	}
	b.observeState()

	log.Info().Str("module", "broker").Str("sid", string(sid)).Str("room", string(bound)).Int("members", room.MemberCount()).Msg("left")
}
