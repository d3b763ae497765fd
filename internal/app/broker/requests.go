package broker

import (
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/proto"
)

type request any

type listRoomsRequest struct {
	reply chan []domain.RoomInfo
}

type membersResult struct {
	users []domain.User
	err   error
}

type membersRequest struct {
	roomID domain.RoomID
	reply  chan membersResult
}

type joinResult struct {
	roomID domain.RoomID
	err    error
}

type joinRequest struct {
	sid    core.SessionID
	out    core.Outbox
	roomID domain.RoomID
	name   string
	reply  chan joinResult
}

type disconnectRequest struct {
	sid    core.SessionID
	roomID domain.RoomID
}

type typingRequest struct {
	sid    core.SessionID
	roomID domain.RoomID
	status proto.TypingStatus
}

type postRequest struct {
	sid    core.SessionID
	roomID domain.RoomID
	body   string
}
