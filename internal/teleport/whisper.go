package teleport

import (
	"context"
	"errors"
	"fmt"

	"github.com/navid-fn/tradesniper/internal/dedup"
	"github.com/navid-fn/tradesniper/internal/extract"
	"github.com/navid-fn/tradesniper/internal/failure"
)

var (
	ErrInvalidToken   = errors.New("not a whisper token")
	ErrDuplicateToken = errors.New("whisper token already used")
)

// SendWhisper whispers a token supplied by the operator, outside any attempt.
// It shares the whisper cooldown and the token history with automatic attempts.
func (c *Controller) SendWhisper(ctx context.Context, token string) error {
	if !extract.IsWhisperToken(token) {
		return ErrInvalidToken
	}
	if !c.Filter.TryMark(dedup.Tokens, token) {
		return ErrDuplicateToken
	}

	_, err := c.Whisperer.Whisper(ctx, token, c.Creds.Get())

	var (
		local   *failure.RateLimitedLocallyError
		missing *failure.MissingCredentialError
	)
	if errors.As(err, &local) || errors.As(err, &missing) {
		// nothing was sent, the token is still usable
		c.Filter.Unmark(dedup.Tokens, token)
	}
	if err != nil {
		return fmt.Errorf("manual whisper: %w", err)
	}
	return nil
}
