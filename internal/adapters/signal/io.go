package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/proto"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	errHeartbeatTimeout = errors.New("heartbeat timeout")
	errKicked           = errors.New("outbox closed by broker")
	errClosing          = errors.New("session closing")
)

// session bridges one websocket connection to the broker.
type session struct {
	ctl  *SignalWSController
	id   core.SessionID
	conn *websocket.Conn
	out  *wsOutbox

	lastSeen atomic.Int64

	mu      sync.Mutex
	room    domain.RoomID
	closing bool

	closeOnce sync.Once
}

func newSession(ctl *SignalWSController, sid core.SessionID, conn *websocket.Conn) *session {
	return &session{
		ctl:  ctl,
		id:   sid,
		conn: conn,
		out:  newOutbox(ctl.Opts.SendBuffer),
	}
}

func (s *session) touch()          { s.lastSeen.Store(time.Now().UnixNano()) }
func (s *session) seen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

func (s *session) setRoom(id domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = id
}

func (s *session) currentRoom() domain.RoomID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// commitRoom records a successful join. A join that completed after
// terminate already notified the broker is undone right away.
func (s *session) commitRoom(id domain.RoomID) error {
	s.mu.Lock()
	if !s.closing {
		s.room = id
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), s.ctl.Opts.WriteWait)
	defer cancel()
	if err := s.ctl.Broker.Disconnect(ctx, s.id, id); err != nil {
		return err
	}
	return errClosing
}

// run blocks until the connection is done. Read, write and heartbeat loops
// share one errgroup: the first to fail cancels the rest.
func (s *session) run(ctx context.Context, scoped *proto.JoinRequest) {
	s.ctl.Metrics.SessionOpened()
	defer s.ctl.Metrics.SessionClosed()

	s.touch()
	if s.ctl.Opts.ReadLimit > 0 {
		s.conn.SetReadLimit(s.ctl.Opts.ReadLimit)
	}
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})
	s.conn.SetPingHandler(func(data string) error {
		s.touch()
		err := s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(s.ctl.Opts.WriteWait))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			log.Debug().Err(err).Str("module", "signal").Str("sid", string(s.id)).Msg("pong write")
		}
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readPump(gctx, scoped) })
	g.Go(func() error { return s.writePump(gctx) })
	g.Go(func() error { return s.heartbeat(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		s.terminate()
		return nil
	})

	err := g.Wait()
	log.Info().Err(err).Str("module", "signal").Str("sid", string(s.id)).Msg("session closed")
}

// terminate notifies the broker once, then tears the transport down.
func (s *session) terminate() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		room := s.room
		s.room = ""
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.ctl.Opts.WriteWait)
		defer cancel()
		if err := s.ctl.Broker.Disconnect(ctx, s.id, room); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(s.id)).Msg("disconnect notify")
		}
		s.out.Close()
		_ = s.conn.Close()
	})
}

func (s *session) writePump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.out.done:
			log.Info().Str("module", "signal").Str("sid", string(s.id)).Msg("writePump outbox closed")
			return errKicked
		case data := <-s.out.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.ctl.Opts.WriteWait)); err != nil {
				return fmt.Errorf("set write deadline: %w", err)
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}

func (s *session) readPump(ctx context.Context, scoped *proto.JoinRequest) error {
	if err := s.sendRooms(ctx); err != nil {
		return err
	}
	if scoped != nil {
		if err := s.handleJoin(ctx, *scoped); err != nil {
			return err
		}
	}

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(s.id)).Msg("readPump read error")
			}
			return fmt.Errorf("read: %w", err)
		}
		s.touch()
		if mt != websocket.TextMessage {
			log.Debug().Str("module", "signal").Str("sid", string(s.id)).Int("type", mt).Msg("ignoring non-text frame")
			continue
		}
		if err := s.handleSignal(ctx, data); err != nil {
			return err
		}
	}
}

func (s *session) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(s.ctl.Opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Since(s.seen()) > s.ctl.Opts.ClientTimeout {
				log.Info().Str("module", "signal").Str("sid", string(s.id)).Msg("heartbeat failed, disconnecting")
				s.ctl.Metrics.HeartbeatTimeout()
				return errHeartbeatTimeout
			}
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.ctl.Opts.WriteWait)); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// handleSignal decodes one frame and dispatches it. A non-nil error ends the session.
func (s *session) handleSignal(ctx context.Context, data []byte) error {
	req, err := proto.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(s.id)).Msg("bad request")
		s.sendError(proto.CodeInvalidPayload)
		return nil
	}

	switch r := req.(type) {
	case proto.JoinRequest:
		return s.handleJoin(ctx, r)
	case proto.LeaveRequest:
		return s.handleLeave(ctx)
	case proto.PostRequest:
		return s.handlePost(ctx, r)
	case proto.TypingRequest:
		return s.handleTyping(ctx, r)
	default:
		log.Warn().Str("module", "signal").Str("type", req.RequestType()).Msg("unknown signal")
		return nil
	}
}

// sendEvent queues ev for this connection only.
func (s *session) sendEvent(ev proto.Event) {
	b, err := proto.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendEvent marshal")
		return
	}
	if err := s.out.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(s.id)).Str("type", ev.Type).Msg("sendEvent dropped")
	}
}
