package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/navid-fn/tradesniper/internal/extract"
	"github.com/navid-fn/tradesniper/internal/failure"
	"github.com/navid-fn/tradesniper/internal/faulttolerance"
	"github.com/navid-fn/tradesniper/internal/flags"
	"github.com/navid-fn/tradesniper/internal/models"
	"github.com/navid-fn/tradesniper/internal/teleport"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	cfg *Config
}

func (h *Handler) GetStatus(c *gin.Context) {
	pacing := gin.H{}
	if h.cfg.Governor != nil {
		for ch, wait := range h.cfg.Governor.Snapshot() {
			pacing[string(ch)] = gin.H{
				"interval_ms": h.cfg.Governor.Interval(ch).Milliseconds(),
				"wait_ms":     wait.Milliseconds(),
			}
		}
	}

	stream := gin.H{"configured": h.cfg.Stream != nil}
	if h.cfg.Stream != nil {
		stream["connected"] = h.cfg.Stream.Connected()
		stream["frames"] = h.cfg.Stream.Frames()
	}

	c.JSON(http.StatusOK, gin.H{
		"pipeline":    h.cfg.Pipeline.Status(),
		"credentials": h.cfg.Credentials.Status(),
		"flags":       h.cfg.Flags.Snapshot(),
		"pacing":      pacing,
		"fetch_queue": h.cfg.Fetcher.Len(),
		"stream":      stream,
		"totals":      h.cfg.Recent.Totals(),
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	if h.cfg.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": faulttolerance.HealthHealthy})
		return
	}

	overall := h.cfg.Health.Overall()
	code := http.StatusOK
	if overall == faulttolerance.HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": overall,
		"checks": h.cfg.Health.Checks(),
	})
}

func (h *Handler) GetAttempts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	c.JSON(http.StatusOK, h.cfg.Recent.List(limit))
}

func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.cfg.Profiles.Profile(c.Request.Context(), h.cfg.Credentials.Get().AuthorizationToken)
	if err != nil {
		abortWithFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type credentialsRequest struct {
	POESESSID          *string `json:"poesessid"`
	CFClearance        string  `json:"cf_clearance"`
	AuthorizationToken *string `json:"authorization_token"`
}

func (h *Handler) PutCredentials(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.POESESSID == nil && req.AuthorizationToken == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "poesessid or authorization_token is required"})
		return
	}

	if req.POESESSID != nil {
		h.cfg.Credentials.SetSession(*req.POESESSID, req.CFClearance)
		h.cfg.Logger.WithField("poesessid", failure.Mask(*req.POESESSID)).Info("Session cookie updated")
	}
	if req.AuthorizationToken != nil {
		h.cfg.Credentials.SetAuthorizationToken(*req.AuthorizationToken)
		h.cfg.Logger.Info("Authorization token updated")
	}
	c.JSON(http.StatusOK, h.cfg.Credentials.Status())
}

type flagsRequest struct {
	Teleport *bool `json:"teleport"`
	Autobuy  *bool `json:"autobuy"`
}

func (h *Handler) PutFlags(c *gin.Context) {
	var req flagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Teleport != nil {
		h.cfg.Flags.Set(flags.Teleport, *req.Teleport)
	}
	if req.Autobuy != nil {
		h.cfg.Flags.Set(flags.Autobuy, *req.Autobuy)
	}
	c.JSON(http.StatusOK, h.cfg.Flags.Snapshot())
}

func (h *Handler) StopAutobuy(c *gin.Context) {
	h.cfg.Driver.Stop()
	c.JSON(http.StatusOK, h.cfg.Driver.Status())
}

func (h *Handler) PauseAutobuy(c *gin.Context) {
	h.cfg.Driver.Pause()
	c.JSON(http.StatusOK, h.cfg.Driver.Status())
}

func (h *Handler) ResumeAutobuy(c *gin.Context) {
	h.cfg.Driver.Resume()
	c.JSON(http.StatusOK, h.cfg.Driver.Status())
}

// FetchTrade queues a fetch and waits for its turn; the listing is parsed when possible.
func (h *Handler) FetchTrade(c *gin.Context) {
	id := c.Param("id")
	if !extract.IsTradeID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trade id must be 64 hex characters"})
		return
	}

	body, err := h.cfg.Fetcher.Fetch(c.Request.Context(), id)
	if err != nil {
		abortWithFailure(c, err)
		return
	}

	resp := gin.H{"trade_id": id, "result": body}
	if listing, err := models.ParseListing(body); err == nil {
		resp["listing"] = listing
	}
	c.JSON(http.StatusOK, resp)
}

type whisperRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *Handler) Whisper(c *gin.Context) {
	var req whisperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.cfg.Pipeline.SendWhisper(c.Request.Context(), req.Token)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"sent": true})
	case errors.Is(err, teleport.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, teleport.ErrDuplicateToken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		abortWithFailure(c, err)
	}
}

// abortWithFailure maps a pipeline failure to an HTTP response.
func abortWithFailure(c *gin.Context, err error) {
	reason, upstream := failure.ReasonOf(err)
	body := gin.H{"error": err.Error(), "reason": reason}
	if upstream != 0 {
		body["upstream_status"] = upstream
	}

	code := http.StatusInternalServerError
	switch reason {
	case failure.ReasonCooldown:
		code = http.StatusTooManyRequests
		var local *failure.RateLimitedLocallyError
		if errors.As(err, &local) {
			body["retry_after_ms"] = local.RetryAfter.Milliseconds()
		}
	case failure.ReasonRateLimited:
		code = http.StatusTooManyRequests
	case failure.ReasonMissingCredential:
		code = http.StatusPreconditionFailed
	case failure.ReasonNotAuthenticated:
		code = http.StatusUnauthorized
	case failure.ReasonGrantDenied:
		code = http.StatusForbidden
	case failure.ReasonHTTP, failure.ReasonParse:
		code = http.StatusBadGateway
	case failure.ReasonTimeout:
		code = http.StatusGatewayTimeout
	}
	c.AbortWithStatusJSON(code, body)
}
