// Package broker is the single owner of room, membership, typing and history
// state. All mutations happen on the goroutine running Broker.Run; callers talk
// to it only through requests, and read only snapshot copies.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/metrics"
	"github.com/dkeye/Chat/internal/proto"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrBrokerStopped = errors.New("broker stopped")
	ErrNameTaken     = errors.New("name taken")
	ErrRoomFull      = errors.New("room full")
	ErrRoomNotFound  = errors.New("room not found")
)

const defaultRequestBuffer = 256

type Options struct {
	RequestBuffer int
	MaxClients    int
	Seed          []domain.RoomName
	Policy        app.Policy
	Metrics       *metrics.Metrics
	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

type Broker struct {
	requests chan request
	done     chan struct{}

	rooms    *app.RoomManager
	sessions *app.Registry
	policy   app.Policy
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

func New(opts Options) *Broker {
	if opts.RequestBuffer <= 0 {
		opts.RequestBuffer = defaultRequestBuffer
	}
	if opts.Policy == nil {
		opts.Policy = app.SimplePolicy{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	b := &Broker{
		requests: make(chan request, opts.RequestBuffer),
		done:     make(chan struct{}),
		rooms:    app.NewRoomManager(opts.MaxClients),
		sessions: app.NewRegistry(),
		policy:   opts.Policy,
		metrics:  opts.Metrics,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	for _, name := range opts.Seed {
		b.rooms.Seed(name)
	}
	b.observeState()
	return b
}

// Run processes requests until ctx is done. It must be called exactly once.
func (b *Broker) Run(ctx context.Context) {
	defer close(b.done)
	log.Info().Str("module", "broker").Int("rooms", b.rooms.Len()).Msg("broker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "broker").Msg("broker stopped")
			return
		case req := <-b.requests:
			b.handle(req)
		}
	}
}

func (b *Broker) handle(req request) {
	switch r := req.(type) {
	case listRoomsRequest:
		r.reply <- b.rooms.List()
	case membersRequest:
		r.reply <- b.members(r.roomID)
	case joinRequest:
		r.reply <- b.join(r)
	case disconnectRequest:
		b.disconnect(r.sid, r.roomID)
	case typingRequest:
		b.typing(r.sid, r.roomID, r.status)
	case postRequest:
		b.post(r.sid, r.roomID, r.body)
	default:
		log.Error().Str("module", "broker").Msgf("unknown request %T", req)
	}
}

func (b *Broker) submit(ctx context.Context, req request) error {
	select {
	case b.requests <- req:
		return nil
	case <-b.done:
		return ErrBrokerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await waits for the reply of a request already submitted. A queued request
// is always processed, so only broker shutdown ends the wait early.
// Reply channels are buffered so the broker never blocks on the send.
func await[T any](b *Broker, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-b.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrBrokerStopped
		}
	}
}

// send delivers one frame to sid. Unroutable ids and dead outboxes are logged and ignored.
func (b *Broker) send(room *core.ChatRoom, sid core.SessionID, frame core.Frame) {
	out, ok := b.sessions.Outbox(sid)
	if !ok {
		log.Debug().Str("module", "broker").Str("sid", string(sid)).Msg("no outbox for session")
		b.metrics.EventDropped("unroutable")
		return
	}
	err := out.TrySend(frame)
	switch {
	case err == nil:
		b.metrics.EventSent()
	case errors.Is(err, core.ErrBackpressure):
		b.metrics.EventDropped("backpressure")
		switch b.policy.OnBackpressure(room, sid) {
		case app.KickMember:
			log.Warn().Str("module", "broker").Str("sid", string(sid)).Msg("slow session kicked")
			out.Close()
		case app.DropFrame, app.NoAction:
			log.Debug().Str("module", "broker").Str("sid", string(sid)).Msg("frame dropped for slow session")
		}
	default:
		b.metrics.EventDropped("closed")
		log.Debug().Err(err).Str("module", "broker").Str("sid", string(sid)).Msg("delivery failed")
	}
}

func (b *Broker) sendEvent(room *core.ChatRoom, sid core.SessionID, ev proto.Event) {
	frame, ok := encode(ev)
	if !ok {
		return
	}
	b.send(room, sid, frame)
}

// broadcast encodes ev once and offers it to every member of room except the given ones.
func (b *Broker) broadcast(room *core.ChatRoom, ev proto.Event, except ...core.SessionID) {
	recipients := room.MemberIDs(except...)
	if len(recipients) == 0 {
		return
	}
	frame, ok := encode(ev)
	if !ok {
		return
	}
	for _, sid := range recipients {
		b.send(room, sid, frame)
	}
	log.Debug().Str("module", "broker").Str("room", string(room.ID())).Str("type", ev.Type).Int("sent_to", len(recipients)).Msg("broadcast")
}

func encode(ev proto.Event) (core.Frame, bool) {
	data, err := proto.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "broker").Str("type", ev.Type).Msg("encode event")
		return nil, false
	}
	return data, true
}

func (b *Broker) observeState() {
	b.metrics.SetRooms(b.rooms.Len())
	b.metrics.SetRoomMembers(b.rooms.MemberTotal())
}
