package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Chat/internal/app/broker"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/metrics"
)

type nopOutbox struct{}

func (nopOutbox) TrySend(core.Frame) error { return nil }
func (nopOutbox) Close()                   {}

func newTestRouter(t *testing.T) (*gin.Engine, *broker.Broker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>chat</h1>"), 0o600))

	m := metrics.New("test")
	b := broker.New(broker.Options{Seed: []domain.RoomName{"Default room"}, Metrics: m})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	cfg := &config.Config{Mode: "test", StaticPath: static}
	return SetupRouter(ctx, cfg, b, m), b
}

func get(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter_Healthz(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := get(t, r, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_Index(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := get(t, r, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chat")
}

func TestRouter_RoomsAndMembers(t *testing.T) {
	r, b := newTestRouter(t)
	_, err := b.Join(context.Background(), "A", nopOutbox{}, "R", "alice")
	require.NoError(t, err)

	rec := get(t, r, "/api/rooms")
	require.Equal(t, http.StatusOK, rec.Code)
	var rooms struct {
		Rooms []domain.RoomInfo `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rooms))
	require.Len(t, rooms.Rooms, 2)
	assert.Equal(t, domain.RoomName("Default room"), rooms.Rooms[0].Name)
	assert.Equal(t, domain.RoomInfo{ID: "R", Name: "alice's room", ConnectedClients: 1, MaxClients: domain.DefaultMaxClients}, rooms.Rooms[1])

	rec = get(t, r, "/api/rooms/R/members")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"members":[{"id":"A","name":"alice"}]}`, rec.Body.String())

	rec = get(t, r, "/api/rooms/nope/members")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	r, _ := newTestRouter(t)
	get(t, r, "/healthz")

	rec := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_rooms 1")
	assert.Contains(t, rec.Body.String(), `test_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestRouter_WebSocketPaths(t *testing.T) {
	r, _ := newTestRouter(t)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	for _, path := range []string{"/ws", "/ws/"} {
		t.Run(path, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(base+path, nil)
			require.NoError(t, err)
			defer conn.Close()
			assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

			require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
			var ev struct {
				Type string `json:"type"`
			}
			require.NoError(t, conn.ReadJSON(&ev))
			assert.Equal(t, "rooms", ev.Type)
		})
	}
}
