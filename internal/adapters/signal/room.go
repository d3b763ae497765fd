package signal

import (
	"context"
	"errors"

	"github.com/dkeye/Chat/internal/app/broker"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/proto"
	"github.com/rs/zerolog/log"
)

func (s *session) sendRooms(ctx context.Context) error {
	rooms, err := s.ctl.Broker.ListRooms(ctx)
	if err != nil {
		return err
	}
	s.sendEvent(proto.Rooms(rooms))
	return nil
}

func (s *session) handleJoin(ctx context.Context, p proto.JoinRequest) error {
	name, err := domain.NormalizeUsername(p.Username, s.ctl.Opts.MaxNameLen)
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", string(s.id)).Msg("join with invalid name")
		s.sendError(proto.CodeInvalidName)
		return nil
	}

	// A session is in at most one room: leave before joining another.
	if cur := s.currentRoom(); cur != "" {
		if err := s.ctl.Broker.Disconnect(ctx, s.id, cur); err != nil {
			return err
		}
		s.setRoom("")
	}

	log.Info().Str("module", "signal").Str("sid", string(s.id)).Str("room_id", string(p.Room)).Msg("join")
	roomID, err := s.ctl.Broker.Join(ctx, s.id, s.out, p.Room, name)
	switch {
	case errors.Is(err, broker.ErrNameTaken):
		s.sendError(proto.CodeNameTaken)
		return nil
	case errors.Is(err, broker.ErrRoomFull):
		s.sendError(proto.CodeRoomFull)
		return nil
	case err != nil:
		return err
	}
	return s.commitRoom(roomID)
}

// handleLeave exits the current room; the connection stays open and goes back
// to browsing the room list.
func (s *session) handleLeave(ctx context.Context) error {
	log.Info().Str("module", "signal").Str("sid", string(s.id)).Msg("leave")
	if cur := s.currentRoom(); cur != "" {
		if err := s.ctl.Broker.Disconnect(ctx, s.id, cur); err != nil {
			return err
		}
		s.setRoom("")
	}
	return s.sendRooms(ctx)
}
