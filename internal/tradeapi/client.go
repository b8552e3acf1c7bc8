// Package tradeapi talks to the trade site: listing detail fetches and whisper requests.
// Every call is paced by the shared governor before any network activity happens.
package tradeapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/navid-fn/tradesniper/internal/failure"
	"github.com/navid-fn/tradesniper/internal/governor"
	"github.com/navid-fn/tradesniper/internal/jsonvalue"

	"github.com/sirupsen/logrus"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxErrorBody          = 512
	maxResponseBody       = 8 << 20
)

// Config describes the trade site endpoints and client identity.
type Config struct {
	FetchURL   string
	WhisperURL string
	QueryID    string
	Realm      string
	Origin     string
	UserAgent  string

	// RequestTimeout bounds each HTTP call (0 = 10s).
	RequestTimeout time.Duration
}

// Client performs authenticated trade-site calls.
type Client struct {
	cfg        Config
	httpClient *http.Client
	governor   *governor.Governor
	logger     *logrus.Logger
}

// NewClient creates a client sharing gov with every other caller in the process.
func NewClient(cfg Config, gov *governor.Governor, logger *logrus.Logger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		governor:   gov,
		logger:     logger,
	}
}

// acquire takes a governor permit or returns RateLimitedLocallyError.
func (c *Client) acquire(ch governor.Channel) error {
	granted, retryAfter := c.governor.TryAcquire(ch)
	if !granted {
		return &failure.RateLimitedLocallyError{Channel: string(ch), RetryAfter: retryAfter}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, cookie string) {
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.cfg.Origin != "" {
		req.Header.Set("Origin", c.cfg.Origin)
	}
	req.Header.Set("Cookie", cookie)
}

// do executes req and classifies the outcome. A 200 body is parsed into a Value.
func (c *Client) do(req *http.Request, serverLimit bool) (jsonvalue.Value, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &failure.HTTPError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, &failure.HTTPError{Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxResponseBody {
		return nil, &failure.HTTPError{Status: resp.StatusCode, Err: fmt.Errorf("response body exceeds %d bytes", maxResponseBody)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests && serverLimit:
		return nil, &failure.RateLimitedByServerError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		return nil, &failure.HTTPError{Status: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}

	if len(body) == 0 {
		return jsonvalue.Null{}, nil
	}
	v, err := jsonvalue.Parse(body)
	if err != nil {
		return nil, &failure.ParseError{Err: err}
	}
	return v, nil
}

func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(h); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
