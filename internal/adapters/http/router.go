package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/Chat/internal/adapters/signal"
	"github.com/dkeye/Chat/internal/app/broker"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Broker is what the HTTP surface needs from the room broker.
type Broker interface {
	signal.Broker
	Members(ctx context.Context, roomID domain.RoomID) ([]domain.User, error)
}

func SetupRouter(ctx context.Context, cfg *config.Config, b Broker, m *metrics.Metrics) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(m.Middleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(b, signal.OptionsFromConfig(cfg), m)
	wsHandler := func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("remote", c.ClientIP()).Msg("ws endpoint hit")
		ctrl.HandleSignal(ctx, c)
	}
	// Registered with and without the trailing slash: websocket clients do not follow redirects.
	r.GET("/ws", wsHandler)
	r.GET("/ws/", wsHandler)

	api := r.Group("/api")
	api.GET("/rooms", func(c *gin.Context) {
		rooms, err := b.ListRooms(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("list rooms")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rooms": rooms})
	})
	api.GET("/rooms/:id/members", func(c *gin.Context) {
		users, err := b.Members(c.Request.Context(), domain.RoomID(c.Param("id")))
		switch {
		case errors.Is(err, broker.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		case err != nil:
			log.Error().Err(err).Str("module", "adapters.http").Msg("room members")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"members": users})
	})

	return r
}
