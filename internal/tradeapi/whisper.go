package tradeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/navid-fn/tradesniper/internal/failure"
	"github.com/navid-fn/tradesniper/internal/governor"
	"github.com/navid-fn/tradesniper/internal/jsonvalue"
	"github.com/navid-fn/tradesniper/internal/models"
)

type whisperRequest struct {
	Token    string `json:"token"`
	Continue bool   `json:"continue"`
}

// Whisper sends a purchase-intent for token. On cooldown it returns
// RateLimitedLocallyError without touching the network.
func (c *Client) Whisper(ctx context.Context, token string, cred models.Credential) (jsonvalue.Value, error) {
	if !cred.HasSession() {
		return nil, &failure.MissingCredentialError{What: "session cookie"}
	}
	if err := c.acquire(governor.Whisper); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(whisperRequest{Token: token, Continue: true})
	if err != nil {
		return nil, fmt.Errorf("encode whisper: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WhisperURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build whisper request: %w", err)
	}
	c.setHeaders(req, cred.SessionCookie)
	req.Header.Set("Content-Type", "application/json")

	log := c.logger.WithField("token", failure.Mask(token))
	log.Info("Sending whisper")

	body, err := c.do(req, false)
	if err != nil {
		log.WithField("error", err).Warn("Whisper failed")
		return nil, err
	}
	log.Info("Whisper sent")
	return body, nil
}
