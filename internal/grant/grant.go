// Package grant is the client for the metered-access backend that issues
// per-purchase grants against a user's credits or subscription.
package grant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/navid-fn/tradesniper/internal/failure"

	"github.com/sirupsen/logrus"
)

const maxResponseBody = 1 << 20

// Profile is the user's account state on the backend.
type Profile struct {
	TokenCount   int            `json:"tokenCount"`
	DailyCount   int            `json:"dailyCount"`
	DailyLimit   int            `json:"dailyLimit"`
	IsSubscribed bool           `json:"isSubscribed"`
	User         map[string]any `json:"profile,omitempty"`
}

type generateResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client calls the grant backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Generate consumes one grant. 401 and 404 mean the token is not accepted, 403 that
// no credits or subscription remain.
func (c *Client) Generate(ctx context.Context, authToken string) (string, error) {
	if strings.TrimSpace(authToken) == "" {
		return "", &failure.NotAuthenticatedError{}
	}

	var out generateResponse
	if err := c.call(ctx, http.MethodPost, "/generate", authToken, []byte("{}"), &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &failure.GrantDeniedError{Message: "no token in response"}
	}

	c.logger.WithField("grant", failure.Mask(out.Token)).Info("Access grant issued")
	return out.Token, nil
}

// Profile fetches the user's remaining credits.
func (c *Client) Profile(ctx context.Context, authToken string) (*Profile, error) {
	if strings.TrimSpace(authToken) == "" {
		return nil, &failure.NotAuthenticatedError{}
	}
	var p Profile
	if err := c.call(ctx, http.MethodGet, "/user/profile", authToken, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) call(ctx context.Context, method, path, authToken string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &failure.HTTPError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &failure.HTTPError{Status: resp.StatusCode, Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusNotFound:
		return &failure.NotAuthenticatedError{}
	case http.StatusForbidden:
		return &failure.GrantDeniedError{Message: errorMessage(raw)}
	default:
		return &failure.HTTPError{Status: resp.StatusCode, Body: errorMessage(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &failure.ParseError{Err: err}
	}
	return nil
}

func errorMessage(raw []byte) string {
	var e errorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
		return e.Error
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return string(raw)
}
