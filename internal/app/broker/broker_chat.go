package broker

import (
	"context"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/proto"
	"github.com/rs/zerolog/log"
)

// Typing flags or unflags sid as composing and tells the other members.
func (b *Broker) Typing(ctx context.Context, sid core.SessionID, roomID domain.RoomID, status proto.TypingStatus) error {
	return b.submit(ctx, typingRequest{sid: sid, roomID: roomID, status: status})
}

// Post appends body to the room history. The author receives "posted",
// every other member "user-posted", both with the same message.
func (b *Broker) Post(ctx context.Context, sid core.SessionID, roomID domain.RoomID, body string) error {
	return b.submit(ctx, postRequest{sid: sid, roomID: roomID, body: body})
}

func (b *Broker) typing(sid core.SessionID, roomID domain.RoomID, status proto.TypingStatus) {
	room, ok := b.rooms.Get(roomID)
	if !ok {
		log.Debug().Str("module", "broker").Str("sid", string(sid)).Str("room", string(roomID)).Msg("typing in missing room")
		return
	}
	user, ok := room.Member(sid)
	if !ok {
		log.Debug().Str("module", "broker").Str("sid", string(sid)).Str("room", string(roomID)).Msg("typing from non-member")
		return
	}
	room.SetTyping(sid, status == proto.TypingStarted)
	b.broadcast(room, proto.UserTyping(status, user), sid)
}

func (b *Broker) post(sid core.SessionID, roomID domain.RoomID, body string) {
	room, ok := b.rooms.Get(roomID)
	if !ok {
		log.Warn().Str("module", "broker").Str("sid", string(sid)).Str("room", string(roomID)).Msg("post to missing room dropped")
		return
	}
	user, ok := room.Member(sid)
	if !ok {
		log.Warn().Str("module", "broker").Str("sid", string(sid)).Str("room", string(roomID)).Msg("post from non-member dropped")
		return
	}

	msg := domain.Message{
		ID:        domain.MessageID(b.newID()),
		User:      user,
		Body:      body,
		CreatedAt: b.now().UTC(),
	}
	room.Append(msg)
	b.metrics.MessagePosted()

	b.broadcast(room, proto.UserPosted(msg), sid)
	b.sendEvent(room, sid, proto.Posted(msg))
}
