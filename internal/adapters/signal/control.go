package signal

import "github.com/dkeye/Chat/internal/proto"

func (s *session) sendError(code proto.ErrorCode) {
	s.ctl.Metrics.ProtocolError(string(code))
	s.sendEvent(proto.Error(code))
}
