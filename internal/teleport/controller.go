// Package teleport runs purchase attempts: it turns live-search events into a grant,
// a listing fetch, a whisper and, when allowed, a click-automation session.
// At most one attempt is in flight; events arriving meanwhile are dropped.
package teleport

import (
	"context"
	"sync"
	"time"

	"github.com/navid-fn/tradesniper/internal/autobuy"
	"github.com/navid-fn/tradesniper/internal/dedup"
	"github.com/navid-fn/tradesniper/internal/extract"
	"github.com/navid-fn/tradesniper/internal/grant"
	"github.com/navid-fn/tradesniper/internal/jsonvalue"
	"github.com/navid-fn/tradesniper/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPurchaseCooldown    = 10 * time.Second
	DefaultSettleDelay         = 4 * time.Second
	DefaultWarningDelay        = 3 * time.Second
	DefaultProfileRefreshDelay = time.Second

	defaultProfileTimeout = 10 * time.Second
)

// ListingFetcher resolves a trade id to the full fetch response.
type ListingFetcher interface {
	Fetch(ctx context.Context, tradeID string) (jsonvalue.Value, error)
}

// Whisperer sends a purchase-intent.
type Whisperer interface {
	Whisper(ctx context.Context, token string, cred models.Credential) (jsonvalue.Value, error)
}

// Granter issues metered-access grants.
type Granter interface {
	Generate(ctx context.Context, authToken string) (string, error)
	Profile(ctx context.Context, authToken string) (*grant.Profile, error)
}

// FlagSource answers feature-switch queries, applying its own timeouts and defaults.
type FlagSource interface {
	IsTeleportEnabled(ctx context.Context) bool
	IsAutobuyEnabled(ctx context.Context) bool
}

// Driver is the click-automation collaborator.
type Driver interface {
	Start(x, y int) error
	Stop()
	Pause()
	Resume()
	Status() autobuy.Status
}

// CredentialSource supplies the current credential.
type CredentialSource interface {
	Get() models.Credential
}

// Config holds the controller's timing.
type Config struct {
	PurchaseCooldown    time.Duration
	SettleDelay         time.Duration
	WarningDelay        time.Duration
	ProfileRefreshDelay time.Duration

	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Filter    *dedup.Filter
	Fetcher   ListingFetcher
	Whisperer Whisperer
	Granter   Granter
	Flags     FlagSource
	Driver    Driver
	Creds     CredentialSource
	Reporter  Reporter
	Logger    *logrus.Logger
}

// Decision is what HandleEvent did with an event.
type Decision int

const (
	Accepted Decision = iota
	DroppedNoCandidate
	DroppedDisabled
	DroppedBusy
	DroppedDuplicate
	DroppedCooldown
	DroppedStopped
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case DroppedNoCandidate:
		return "no_candidate"
	case DroppedDisabled:
		return "disabled"
	case DroppedBusy:
		return "busy"
	case DroppedDuplicate:
		return "duplicate"
	case DroppedCooldown:
		return "cooldown"
	case DroppedStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// attempt is the in-flight purchase. candidates are the new trade ids of the
// accepted frame in arrival order; record.TradeID is the one being fetched.
type attempt struct {
	record     models.AttemptRecord
	listing    *models.Listing
	candidates []string
}

// Controller is the purchase-attempt state machine.
type Controller struct {
	cfg Config
	Deps

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       models.AttemptState
	current     *attempt
	lastSuccess time.Time
	counters    map[Decision]int
}

// NewController wires a controller. Background work stops on Close.
func NewController(cfg Config, deps Deps) *Controller {
	if cfg.PurchaseCooldown <= 0 {
		cfg.PurchaseCooldown = DefaultPurchaseCooldown
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.WarningDelay <= 0 {
		cfg.WarningDelay = DefaultWarningDelay
	}
	if cfg.ProfileRefreshDelay <= 0 {
		cfg.ProfileRefreshDelay = DefaultProfileRefreshDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if deps.Reporter == nil {
		deps.Reporter = NewLogReporter(deps.Logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:      cfg,
		Deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
		counters: make(map[Decision]int),
	}
}

// HandleEvent considers one inbound event. The teleport flag is queried first; all
// admission checks and the move to AwaitingGrant then happen under one lock so
// that two overlapping events can never both start an attempt.
func (c *Controller) HandleEvent(ctx context.Context, ev models.Event) Decision {
	decision := c.admit(ctx, ev)

	c.mu.Lock()
	c.counters[decision]++
	c.mu.Unlock()

	if decision != Accepted {
		c.Logger.WithFields(logrus.Fields{
			"source":   ev.Source,
			"decision": decision,
		}).Debug("Event dropped")
	}
	return decision
}

func (c *Controller) admit(ctx context.Context, ev models.Event) Decision {
	if _, ok := firstTradeID(ev.Payload); !ok {
		return DroppedNoCandidate
	}
	if c.busy() {
		return DroppedBusy
	}

	if !c.Flags.IsTeleportEnabled(ctx) {
		return DroppedDisabled
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx.Err() != nil {
		return DroppedStopped
	}
	if c.state != models.StateIdle {
		return DroppedBusy
	}
	candidates := extract.NewTradeIDs(ev.Payload, c.Filter)
	if len(candidates) == 0 {
		return DroppedDuplicate
	}
	tradeID := candidates[0]
	key := AttemptKey(ev, tradeID)
	if c.Filter.Seen(dedup.AttemptKeys, key) {
		return DroppedDuplicate
	}
	now := c.cfg.Now()
	if !c.lastSuccess.IsZero() && now.Sub(c.lastSuccess) < c.cfg.PurchaseCooldown {
		return DroppedCooldown
	}

	for _, id := range candidates {
		c.Filter.MarkSeen(dedup.TradeIDs, id)
	}
	c.Filter.MarkSeen(dedup.AttemptKeys, key)
	c.state = models.StateAwaitingGrant
	c.current = &attempt{
		candidates: candidates,
		record: models.AttemptRecord{
			ID:        uuid.NewString(),
			TradeID:   tradeID,
			Key:       key,
			Source:    ev.Source,
			State:     models.StateAwaitingGrant,
			StartedAt: now,
		},
	}

	a := c.current
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(a)
	}()
	return Accepted
}

// AttemptKey identifies an attempt: the event source plus the listing's hideout
// token, or plus the trade id when the payload carries no listing.
func AttemptKey(ev models.Event, tradeID string) string {
	if token := models.HideoutTokenOf(ev.Payload); token != "" {
		return ev.Source + "|" + token
	}
	return ev.Source + "|" + tradeID
}

func firstTradeID(v jsonvalue.Value) (string, bool) {
	for id := range extract.TradeIDs(v) {
		return id, true
	}
	return "", false
}

func (c *Controller) busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != models.StateIdle
}

// transition moves the in-flight attempt to state.
func (c *Controller) transition(a *attempt, state models.AttemptState) {
	c.mu.Lock()
	c.state = state
	a.record.State = state
	c.mu.Unlock()

	c.Logger.WithFields(logrus.Fields{
		"attempt":  a.record.ID,
		"trade_id": a.record.TradeID,
		"state":    state,
	}).Debug("Attempt transition")
}

// Close stops pending follow-up work and waits for in-flight attempts.
// Events handled after Close are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

// OnFlagChange stops click automation when either feature is switched off.
func (c *Controller) OnFlagChange(name string, enabled bool) {
	if enabled {
		return
	}
	c.Logger.WithField("flag", name).Info("Feature disabled, stopping auto-buy")
	c.Driver.Stop()
}

// Status is a snapshot for the control API.
type Status struct {
	State               models.AttemptState `json:"state"`
	CurrentTradeID      string              `json:"current_trade_id,omitempty"`
	LastSuccess         *time.Time          `json:"last_success,omitempty"`
	CooldownRemainingMS int64               `json:"cooldown_remaining_ms"`
	Decisions           map[string]int      `json:"decisions"`
	Autobuy             autobuy.Status      `json:"autobuy"`
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{
		State:     c.state,
		Decisions: make(map[string]int, len(c.counters)),
	}
	if c.current != nil {
		st.CurrentTradeID = c.current.record.TradeID
	}
	if !c.lastSuccess.IsZero() {
		last := c.lastSuccess
		st.LastSuccess = &last
		if remaining := c.cfg.PurchaseCooldown - c.cfg.Now().Sub(last); remaining > 0 {
			st.CooldownRemainingMS = remaining.Milliseconds()
		}
	}
	for d, n := range c.counters {
		st.Decisions[d.String()] = n
	}
	c.mu.Unlock()

	st.Autobuy = c.Driver.Status()
	return st
}

// State returns the current attempt state.
func (c *Controller) State() models.AttemptState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
