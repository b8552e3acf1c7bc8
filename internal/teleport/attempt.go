package teleport

import (
	"context"
	"fmt"

	"github.com/navid-fn/tradesniper/internal/dedup"
	"github.com/navid-fn/tradesniper/internal/extract"
	"github.com/navid-fn/tradesniper/internal/failure"
	"github.com/navid-fn/tradesniper/internal/models"

	"github.com/sirupsen/logrus"
)

// run drives one attempt from AwaitingGrant to a terminal state.
// Every failure is recovered here; nothing propagates past the controller.
func (c *Controller) run(a *attempt) {
	ctx := c.ctx
	log := c.Logger.WithFields(logrus.Fields{
		"attempt":  a.record.ID,
		"trade_id": a.record.TradeID,
	})

	cred := c.Creds.Get()
	if !cred.HasSession() {
		c.release(a.candidates[1:])
		c.fail(a, &failure.MissingCredentialError{What: "POESESSID"})
		return
	}
	if !cred.HasAuthorization() {
		c.release(a.candidates[1:])
		c.fail(a, &failure.NotAuthenticatedError{})
		return
	}

	if _, err := c.Granter.Generate(ctx, cred.AuthorizationToken); err != nil {
		c.release(a.candidates[1:])
		c.fail(a, fmt.Errorf("access grant: %w", err))
		return
	}

	// burst ids are fetched in arrival order until one listing is usable
	var token string
	for i, id := range a.candidates {
		c.setTradeID(a, id)
		t, err := c.resolve(ctx, a)
		if err == nil {
			token = t
			c.release(a.candidates[i+1:])
			break
		}
		if i == len(a.candidates)-1 || !listingSpecific(err) {
			c.release(a.candidates[i+1:])
			c.fail(a, err)
			return
		}
		reason, status := failure.ReasonOf(err)
		log.WithFields(logrus.Fields{
			"trade_id": id,
			"reason":   reason,
			"status":   status,
			"error":    err,
		}).Warn("Listing unusable, trying next trade id")
	}

	c.transition(a, models.StateWhispering)
	log.WithFields(logrus.Fields{
		"trade_id": a.record.TradeID,
		"item":     a.record.Item,
		"account":  a.record.Account,
		"token":    failure.Mask(token),
	}).Info("Whispering seller")

	if _, err := c.Whisperer.Whisper(ctx, token, c.Creds.Get()); err != nil {
		c.fail(a, fmt.Errorf("whisper: %w", err))
		return
	}

	c.succeed(a)
}

// resolve fetches the current candidate and extracts its listing and a fresh token.
func (c *Controller) resolve(ctx context.Context, a *attempt) (string, error) {
	c.transition(a, models.StateFetching)
	body, err := c.Fetcher.Fetch(ctx, a.record.TradeID)
	if err != nil {
		return "", fmt.Errorf("fetch listing: %w", err)
	}

	c.transition(a, models.StateExtracting)
	listing, err := models.ParseListing(body)
	if err != nil {
		return "", err
	}

	var token string
	for t := range extract.NewWhisperTokens(body, c.Filter) {
		token = t
		break
	}
	if token == "" {
		return "", &failure.MalformedListingError{Missing: "whisper token"}
	}

	c.mu.Lock()
	a.listing = listing
	a.record.Item = listing.Item.DisplayName()
	a.record.Account = listing.Account
	stash := listing.Stash
	a.record.Stash = &stash
	if listing.Price.Currency != "" {
		price := listing.Price
		a.record.Price = &price
	}
	c.mu.Unlock()
	return token, nil
}

// listingSpecific reports whether err concerns only the fetched listing, so the
// next trade id of the same burst is still worth a try.
func listingSpecific(err error) bool {
	switch reason, status := failure.ReasonOf(err); reason {
	case failure.ReasonHTTP:
		return status != 0
	case failure.ReasonParse, failure.ReasonMalformedListing:
		return true
	}
	return false
}

func (c *Controller) setTradeID(a *attempt, id string) {
	c.mu.Lock()
	a.record.TradeID = id
	c.mu.Unlock()
}

// release gives back trade ids the attempt claimed but never fetched, so a later
// frame carrying them can still be bought.
func (c *Controller) release(ids []string) {
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		c.Filter.Unmark(dedup.TradeIDs, id)
	}
	c.Logger.WithFields(logrus.Fields{
		"count":     len(ids),
		"trade_ids": ids,
	}).Info("Released unfetched trade ids")
}

func (c *Controller) fail(a *attempt, err error) {
	reason, status := failure.ReasonOf(err)

	c.mu.Lock()
	a.record.State = models.StateFailed
	a.record.Reason = reason
	a.record.Status = status
	a.record.Error = err.Error()
	a.record.FinishedAt = c.cfg.Now()
	c.state = models.StateIdle
	c.current = nil
	record := a.record
	c.mu.Unlock()

	c.Reporter.Report(record)
}

func (c *Controller) succeed(a *attempt) {
	c.mu.Lock()
	now := c.cfg.Now()
	c.lastSuccess = now
	a.record.State = models.StateSucceeded
	a.record.FinishedAt = now
	c.state = models.StateIdle
	c.current = nil
	record := a.record
	c.mu.Unlock()

	// the whisper already claims the item, clicking on an old position would misfire
	c.Driver.Stop()
	c.Reporter.Report(record)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.refreshProfile()
	}()
	go func() {
		defer c.wg.Done()
		c.followUp(a.listing)
	}()
}

// followUp waits for the game to settle, then starts click automation if allowed.
func (c *Controller) followUp(listing *models.Listing) {
	if err := c.cfg.Sleep(c.ctx, c.cfg.SettleDelay); err != nil {
		return
	}
	if !c.Flags.IsAutobuyEnabled(c.ctx) {
		c.Logger.Debug("Auto-buy disabled, not clicking")
		return
	}

	c.Logger.WithFields(logrus.Fields{
		"grid_x":  listing.Stash.X,
		"grid_y":  listing.Stash.Y,
		"seconds": c.cfg.WarningDelay.Seconds(),
	}).Warn("Auto-buy starting soon, make sure the game window is active")

	if err := c.cfg.Sleep(c.ctx, c.cfg.WarningDelay); err != nil {
		return
	}
	if err := c.Driver.Start(listing.Stash.X, listing.Stash.Y); err != nil {
		c.Logger.WithField("error", err).Error("Failed to start auto-buy")
	}
}

func (c *Controller) refreshProfile() {
	if err := c.cfg.Sleep(c.ctx, c.cfg.ProfileRefreshDelay); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, defaultProfileTimeout)
	defer cancel()

	profile, err := c.Granter.Profile(ctx, c.Creds.Get().AuthorizationToken)
	if err != nil {
		c.Logger.WithField("error", err).Debug("Profile refresh failed")
		return
	}
	c.Logger.WithFields(logrus.Fields{
		"tokens_left": profile.TokenCount,
		"subscribed":  profile.IsSubscribed,
	}).Info("Profile refreshed")
}
