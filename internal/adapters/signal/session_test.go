package signal_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Chat/internal/adapters/signal"
	"github.com/dkeye/Chat/internal/app/broker"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/proto"
)

const readTimeout = 2 * time.Second

type wireEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type harness struct {
	broker *broker.Broker
	url    string
}

func newHarness(t *testing.T, opts signal.Options) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := broker.New(broker.Options{Seed: []domain.RoomName{"Default room"}})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()

	ctrl := signal.NewSignalWSController(b, opts, nil)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctrl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return &harness{broker: b, url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"}
}

func (h *harness) dial(t *testing.T, query url.Values) *websocket.Conn {
	t.Helper()
	u := h.url
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// connect dials and consumes the initial room listing.
func (h *harness) connect(t *testing.T) (*websocket.Conn, []domain.RoomInfo) {
	t.Helper()
	conn := h.dial(t, nil)
	rooms := expect[proto.RoomsPayload](t, conn, proto.TypeRooms)
	return conn, rooms.Rooms
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	require.NoError(t, conn.WriteJSON(msg))
}

func read(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	var ev wireEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func expect[T any](t *testing.T, conn *websocket.Conn, typ string) T {
	t.Helper()
	ev := read(t, conn)
	require.Equal(t, typ, ev.Type, "payload: %s", ev.Payload)
	var p T
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	return p
}

func expectError(t *testing.T, conn *websocket.Conn, code proto.ErrorCode) {
	t.Helper()
	assert.Equal(t, code, expect[proto.ErrorPayload](t, conn, proto.TypeError).Code)
}

func joinRoom(t *testing.T, conn *websocket.Conn, name string, room domain.RoomID) proto.JoinedPayload {
	t.Helper()
	send(t, conn, proto.TypeJoin, map[string]any{"username": name, "room": room})
	return expect[proto.JoinedPayload](t, conn, proto.TypeJoined)
}

func TestSession_GreetsWithRoomList(t *testing.T) {
	h := newHarness(t, signal.Options{})
	_, rooms := h.connect(t)

	require.Len(t, rooms, 1)
	assert.Equal(t, domain.RoomName("Default room"), rooms[0].Name)
	assert.Equal(t, 0, rooms[0].ConnectedClients)
	assert.Equal(t, domain.DefaultMaxClients, rooms[0].MaxClients)
}

func TestSession_ChatRoundTrip(t *testing.T) {
	h := newHarness(t, signal.Options{})
	alice, rooms := h.connect(t)
	bob, _ := h.connect(t)
	room := rooms[0].ID

	joinedA := joinRoom(t, alice, "alice", room)
	assert.Equal(t, "alice", joinedA.User.Name)
	assert.Empty(t, joinedA.Others)

	joinedB := joinRoom(t, bob, "bob", room)
	require.Len(t, joinedB.Others, 1)
	assert.Equal(t, joinedA.User, joinedB.Others[0])
	assert.Equal(t, joinedB.User, expect[proto.UserPayload](t, alice, proto.TypeUserJoined).User)

	send(t, alice, proto.TypeTyping, "started")
	typing := expect[proto.TypingPayload](t, bob, proto.TypeUserTyping)
	assert.Equal(t, proto.TypingStarted, typing.Status)
	assert.Equal(t, joinedA.User, typing.User)

	send(t, alice, proto.TypePost, map[string]any{"message": "hi"})
	own := expect[proto.MessagePayload](t, alice, proto.TypePosted)
	peer := expect[proto.MessagePayload](t, bob, proto.TypeUserPosted)
	assert.Equal(t, own, peer)
	assert.Equal(t, "hi", own.Message.Body)
	assert.Equal(t, joinedA.User, own.Message.User)

	members, err := h.broker.Members(context.Background(), room)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestSession_LeaveReturnsToBrowsing(t *testing.T) {
	h := newHarness(t, signal.Options{})
	alice, rooms := h.connect(t)
	bob, _ := h.connect(t)
	room := rooms[0].ID

	joinRoom(t, alice, "alice", room)
	joinedB := joinRoom(t, bob, "bob", room)
	expect[proto.UserPayload](t, alice, proto.TypeUserJoined)

	send(t, bob, proto.TypeLeave, nil)
	listing := expect[proto.RoomsPayload](t, bob, proto.TypeRooms)
	require.Len(t, listing.Rooms, 1)
	assert.Equal(t, 1, listing.Rooms[0].ConnectedClients)
	assert.Equal(t, joinedB.User, expect[proto.UserPayload](t, alice, proto.TypeUserLeft).User)

	// The connection is still usable after leaving.
	send(t, bob, proto.TypePost, map[string]any{"message": "anyone?"})
	expectError(t, bob, proto.CodeNotJoined)
}

func TestSession_TransportCloseLeavesRoom(t *testing.T) {
	h := newHarness(t, signal.Options{})
	alice, rooms := h.connect(t)
	bob, _ := h.connect(t)
	room := rooms[0].ID

	joinRoom(t, alice, "alice", room)
	joinRoom(t, bob, "bob", room)
	expect[proto.UserPayload](t, alice, proto.TypeUserJoined)

	send(t, alice, proto.TypeTyping, map[string]any{"status": "started"})
	assert.Equal(t, proto.TypingStarted, expect[proto.TypingPayload](t, bob, proto.TypeUserTyping).Status)

	require.NoError(t, alice.Close())

	stopped := expect[proto.TypingPayload](t, bob, proto.TypeUserTyping)
	assert.Equal(t, proto.TypingStopped, stopped.Status)
	assert.Equal(t, "alice", stopped.User.Name)
	assert.Equal(t, "alice", expect[proto.UserPayload](t, bob, proto.TypeUserLeft).User.Name)
}

func TestSession_ProtocolErrors(t *testing.T) {
	h := newHarness(t, signal.Options{MaxMessageLen: 5})
	conn, rooms := h.connect(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	expectError(t, conn, proto.CodeInvalidPayload)

	send(t, conn, "dance", nil)
	expectError(t, conn, proto.CodeInvalidPayload)

	send(t, conn, proto.TypePost, map[string]any{"message": "hi"})
	expectError(t, conn, proto.CodeNotJoined)

	send(t, conn, proto.TypeTyping, "started")
	expectError(t, conn, proto.CodeNotJoined)

	send(t, conn, proto.TypeJoin, map[string]any{"username": "   ", "room": rooms[0].ID})
	expectError(t, conn, proto.CodeInvalidName)

	joinRoom(t, conn, "alice", rooms[0].ID)

	send(t, conn, proto.TypePost, map[string]any{"message": ""})
	expectError(t, conn, proto.CodeInvalidMessageBody)

	send(t, conn, proto.TypePost, map[string]any{"message": "too long"})
	expectError(t, conn, proto.CodeInvalidMessageBody)

	send(t, conn, proto.TypePost, map[string]any{"message": "ok"})
	expect[proto.MessagePayload](t, conn, proto.TypePosted)
}

func TestSession_NameTaken(t *testing.T) {
	h := newHarness(t, signal.Options{})
	alice, rooms := h.connect(t)
	impostor, _ := h.connect(t)

	joinRoom(t, alice, "alice", rooms[0].ID)
	send(t, impostor, proto.TypeJoin, map[string]any{"username": "alice", "room": rooms[0].ID})
	expectError(t, impostor, proto.CodeNameTaken)

	// A different name still gets in.
	joinRoom(t, impostor, "alice2", rooms[0].ID)
}

func TestSession_ScopedJoin(t *testing.T) {
	h := newHarness(t, signal.Options{})
	conn := h.dial(t, url.Values{"username": {"dave"}, "room": {"team"}})

	expect[proto.RoomsPayload](t, conn, proto.TypeRooms)
	joined := expect[proto.JoinedPayload](t, conn, proto.TypeJoined)
	assert.Equal(t, "dave", joined.User.Name)

	members, err := h.broker.Members(context.Background(), "team")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, joined.User, members[0])
}

func TestSession_HeartbeatTimeout(t *testing.T) {
	h := newHarness(t, signal.Options{PingPeriod: 50 * time.Millisecond, ClientTimeout: 500 * time.Millisecond})
	// silent never reads again, so it never answers pings.
	silent, rooms := h.connect(t)
	room := rooms[0].ID
	send(t, silent, proto.TypeJoin, map[string]any{"username": "ghost", "room": room})
	require.Eventually(t, func() bool {
		members, err := h.broker.Members(context.Background(), room)
		return err == nil && len(members) == 1
	}, readTimeout, 10*time.Millisecond)

	watcher, _ := h.connect(t)
	joined := joinRoom(t, watcher, "watcher", room)
	require.Len(t, joined.Others, 1)

	left := expect[proto.UserPayload](t, watcher, proto.TypeUserLeft)
	assert.Equal(t, "ghost", left.User.Name)

	members, err := h.broker.Members(context.Background(), room)
	require.NoError(t, err)
	assert.Equal(t, []domain.User{joined.User}, members)
}
