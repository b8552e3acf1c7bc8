// Package server exposes the local control API and the browser-extension relay.
package server

import (
	"context"

	"github.com/navid-fn/tradesniper/internal/credentials"
	"github.com/navid-fn/tradesniper/internal/faulttolerance"
	"github.com/navid-fn/tradesniper/internal/flags"
	"github.com/navid-fn/tradesniper/internal/governor"
	"github.com/navid-fn/tradesniper/internal/grant"
	"github.com/navid-fn/tradesniper/internal/history"
	"github.com/navid-fn/tradesniper/internal/jsonvalue"
	"github.com/navid-fn/tradesniper/internal/models"
	"github.com/navid-fn/tradesniper/internal/teleport"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Pipeline is the purchase controller as seen by the API.
type Pipeline interface {
	HandleEvent(ctx context.Context, ev models.Event) teleport.Decision
	Status() teleport.Status
	SendWhisper(ctx context.Context, token string) error
}

// TradeFetcher is the shared fetch queue.
type TradeFetcher interface {
	Fetch(ctx context.Context, tradeID string) (jsonvalue.Value, error)
	Len() int
}

// ProfileSource reads the grant-backend account.
type ProfileSource interface {
	Profile(ctx context.Context, authToken string) (*grant.Profile, error)
}

// StreamState reports the live-search connection, if one is configured.
type StreamState interface {
	Connected() bool
	Frames() int
}

type Config struct {
	Pipeline    Pipeline
	Fetcher     TradeFetcher
	Profiles    ProfileSource
	Driver      teleport.Driver
	Credentials *credentials.Store
	Flags       *flags.Memory
	Recent      *history.Recent
	Health      *faulttolerance.HealthMonitor
	Governor    *governor.Governor
	Stream      StreamState
	Logger      *logrus.Logger
	DebugMode   bool
}

// NewRouter builds the gin engine with every /v1 route registered.
func NewRouter(cfg *Config) *gin.Engine {
	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))

	h := &Handler{cfg: cfg}
	api := router.Group("/v1/")
	registerStatusRoutes(api, h)
	registerControlRoutes(api, h)
	api.GET("/relay", h.Relay)

	return router
}

func registerStatusRoutes(router *gin.RouterGroup, h *Handler) {
	router.GET("/status", h.GetStatus)
	router.GET("/health", h.GetHealth)
	router.GET("/attempts", h.GetAttempts)
	router.GET("/profile", h.GetProfile)
}

func registerControlRoutes(router *gin.RouterGroup, h *Handler) {
	router.PUT("/credentials", h.PutCredentials)
	router.PUT("/flags", h.PutFlags)

	autobuy := router.Group("/autobuy")
	{
		autobuy.POST("/stop", h.StopAutobuy)
		autobuy.POST("/pause", h.PauseAutobuy)
		autobuy.POST("/resume", h.ResumeAutobuy)
	}

	router.POST("/trades/:id/fetch", h.FetchTrade)
	router.POST("/whisper", h.Whisper)
}

// requestLogger logs one line per request at debug level.
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Debug("api request")
	}
}
