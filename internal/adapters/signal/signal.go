package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/metrics"
	"github.com/dkeye/Chat/internal/proto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Broker is the part of the room broker a session talks to.
type Broker interface {
	ListRooms(ctx context.Context) ([]domain.RoomInfo, error)
	Join(ctx context.Context, sid core.SessionID, out core.Outbox, roomID domain.RoomID, name string) (domain.RoomID, error)
	Disconnect(ctx context.Context, sid core.SessionID, roomID domain.RoomID) error
	Typing(ctx context.Context, sid core.SessionID, roomID domain.RoomID, status proto.TypingStatus) error
	Post(ctx context.Context, sid core.SessionID, roomID domain.RoomID, body string) error
}

type Options struct {
	ReadLimit     int64
	PingPeriod    time.Duration
	ClientTimeout time.Duration
	WriteWait     time.Duration
	SendBuffer    int
	MaxNameLen    int
	MaxMessageLen int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ReadLimit:     cfg.ReadLimit,
		PingPeriod:    cfg.PingPeriod,
		ClientTimeout: cfg.ClientTimeout,
		WriteWait:     cfg.WriteWait,
		SendBuffer:    cfg.SendBuffer,
		MaxNameLen:    cfg.MaxNameLen,
		MaxMessageLen: cfg.MaxMessageLen,
	}
}

func (o Options) withDefaults() Options {
	if o.PingPeriod <= 0 {
		o.PingPeriod = 5 * time.Second
	}
	if o.ClientTimeout <= 0 {
		o.ClientTimeout = 2 * o.PingPeriod
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

type SignalWSController struct {
	Broker   Broker
	Opts     Options
	Metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

func NewSignalWSController(b Broker, opts Options, m *metrics.Metrics) *SignalWSController {
	return &SignalWSController{
		Broker:  b,
		Opts:    opts.withDefaults(),
		Metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// wsOutbox is the broker-facing side of a connection's write queue.
// The send channel is never closed; done signals shutdown instead.
type wsOutbox struct {
	send chan core.Frame
	done chan struct{}
	once sync.Once
}

func newOutbox(size int) *wsOutbox {
	return &wsOutbox{
		send: make(chan core.Frame, size),
		done: make(chan struct{}),
	}
}

func (o *wsOutbox) TrySend(f core.Frame) error {
	select {
	case <-o.done:
		return core.ErrOutboxClosed
	default:
	}
	select {
	case o.send <- f:
		return nil
	default:
		return core.ErrBackpressure
	}
}

func (o *wsOutbox) Close() {
	o.once.Do(func() { close(o.done) })
}

// HandleSignal upgrades the request and runs a session until it terminates
// or ctx ends. A request carrying ?username= (and optionally ?room=) joins
// right away.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("remote", c.ClientIP()).Msg("new WS connection")

	var scoped *proto.JoinRequest
	if name := c.Query("username"); name != "" {
		scoped = &proto.JoinRequest{Username: name, Room: domain.RoomID(c.Query("room"))}
	}

	sess := newSession(ctl, sid, ws)
	go sess.run(ctx, scoped)
}
