// Package failure defines the classified errors of the purchase pipeline.
// Every error that can end an attempt maps to a reason tag via ReasonOf.
package failure

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Reason tags reported for failed attempts.
const (
	ReasonMissingCredential = "missing_credential"
	ReasonNotAuthenticated  = "not_authenticated"
	ReasonCooldown          = "cooldown"
	ReasonRateLimited       = "rate_limited"
	ReasonHTTP              = "http_error"
	ReasonParse             = "parse_error"
	ReasonMalformedListing  = "malformed_listing"
	ReasonGrantDenied       = "grant_denied"
	ReasonTimeout           = "timeout"
	ReasonUnknown           = "unknown"
)

// MissingCredentialError means the session cookie is empty.
type MissingCredentialError struct {
	What string
}

func (e *MissingCredentialError) Error() string {
	if e.What == "" {
		return "missing credential"
	}
	return "missing credential: " + e.What
}

// NotAuthenticatedError means the grant backend has no valid authorization token for us.
type NotAuthenticatedError struct{}

func (e *NotAuthenticatedError) Error() string { return "not authenticated" }

// RateLimitedLocallyError is returned when the rate governor denied an action.
// No network call was made.
type RateLimitedLocallyError struct {
	Channel    string
	RetryAfter time.Duration
}

func (e *RateLimitedLocallyError) Error() string {
	return fmt.Sprintf("%s on cooldown, retry after %dms", e.Channel, e.RetryAfter.Milliseconds())
}

// RateLimitedByServerError is an HTTP 429 from the trade site.
type RateLimitedByServerError struct {
	RetryAfter time.Duration // from the Retry-After header, zero if absent
}

func (e *RateLimitedByServerError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by server, retry after %s", e.RetryAfter)
	}
	return "rate limited by server"
}

// HTTPError is any other non-200 response. Transport failures such as client
// timeouts are reported with Status 0 and the cause in Err.
type HTTPError struct {
	Status int
	Body   string
	Err    error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return "http request failed: " + e.Err.Error()
	}
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Status)
	}
	return fmt.Sprintf("http status %d: %s", e.Status, e.Body)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// ParseError wraps a response body that is not valid JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse response: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// MalformedListingError means the fetched listing lacks the data needed to whisper.
type MalformedListingError struct {
	Missing string
}

func (e *MalformedListingError) Error() string {
	return "malformed listing: missing " + e.Missing
}

// GrantDeniedError is a refused metered-access grant (credits exhausted, no subscription).
type GrantDeniedError struct {
	Message string
}

func (e *GrantDeniedError) Error() string {
	if e.Message == "" {
		return "grant denied"
	}
	return "grant denied: " + e.Message
}

// ReasonOf classifies err into a reason tag and, for HTTP failures, the status code.
func ReasonOf(err error) (reason string, status int) {
	var (
		missing   *MissingCredentialError
		notAuth   *NotAuthenticatedError
		local     *RateLimitedLocallyError
		server    *RateLimitedByServerError
		httpErr   *HTTPError
		parseErr  *ParseError
		malformed *MalformedListingError
		denied    *GrantDeniedError
	)

	switch {
	case err == nil:
		return "", 0
	case errors.As(err, &missing):
		return ReasonMissingCredential, 0
	case errors.As(err, &notAuth):
		return ReasonNotAuthenticated, 401
	case errors.As(err, &local):
		return ReasonCooldown, 0
	case errors.As(err, &server):
		return ReasonRateLimited, 429
	case isTimeout(err):
		return ReasonTimeout, 0
	case errors.As(err, &httpErr):
		return ReasonHTTP, httpErr.Status
	case errors.As(err, &parseErr):
		return ReasonParse, 0
	case errors.As(err, &malformed):
		return ReasonMalformedListing, 0
	case errors.As(err, &denied):
		return ReasonGrantDenied, 403
	default:
		return ReasonUnknown, 0
	}
}

// isTimeout matches context deadlines and net/http client timeouts.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// Mask shortens a secret for log output.
func Mask(secret string) string {
	if len(secret) <= 12 {
		if secret == "" {
			return ""
		}
		return "***"
	}
	return secret[:12] + "..."
}
