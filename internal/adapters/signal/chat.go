package signal

import (
	"context"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/proto"
	"github.com/rs/zerolog/log"
)

func (s *session) handlePost(ctx context.Context, p proto.PostRequest) error {
	room := s.currentRoom()
	if room == "" {
		s.sendError(proto.CodeNotJoined)
		return nil
	}
	if err := domain.ValidateBody(p.Message, s.ctl.Opts.MaxMessageLen); err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", string(s.id)).Msg("post rejected")
		s.sendError(proto.CodeInvalidMessageBody)
		return nil
	}
	return s.ctl.Broker.Post(ctx, s.id, room, p.Message)
}

func (s *session) handleTyping(ctx context.Context, p proto.TypingRequest) error {
	room := s.currentRoom()
	if room == "" {
		s.sendError(proto.CodeNotJoined)
		return nil
	}
	return s.ctl.Broker.Typing(ctx, s.id, room, p.Status)
}
