package tradeapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/navid-fn/tradesniper/internal/failure"
	"github.com/navid-fn/tradesniper/internal/governor"
	"github.com/navid-fn/tradesniper/internal/jsonvalue"
	"github.com/navid-fn/tradesniper/internal/models"

	"github.com/sirupsen/logrus"
)

// Fetch performs one listing detail request. It never retries: a 429 comes back as
// RateLimitedByServerError and the caller decides what to do with the trade id.
func (c *Client) Fetch(ctx context.Context, tradeID string, cred models.Credential) (jsonvalue.Value, error) {
	if !cred.HasSession() {
		return nil, &failure.MissingCredentialError{What: "session cookie"}
	}
	if err := c.acquire(governor.Fetch); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fetchURL(tradeID), nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	c.setHeaders(req, cred.SessionCookie)

	c.logger.WithField("trade_id", tradeID).Debug("Fetching listing")

	body, err := c.do(req, true)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"trade_id": tradeID,
			"error":    err,
		}).Warn("Listing fetch failed")
		return nil, err
	}
	return body, nil
}

func (c *Client) fetchURL(tradeID string) string {
	q := url.Values{}
	q.Set("query", c.cfg.QueryID)
	q.Set("realm", c.cfg.Realm)
	return strings.TrimSuffix(c.cfg.FetchURL, "/") + "/" + url.PathEscape(tradeID) + "?" + q.Encode()
}
