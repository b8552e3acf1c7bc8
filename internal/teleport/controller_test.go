package teleport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/navid-fn/tradesniper/internal/autobuy"
	"github.com/navid-fn/tradesniper/internal/credentials"
	"github.com/navid-fn/tradesniper/internal/dedup"
	"github.com/navid-fn/tradesniper/internal/failure"
	"github.com/navid-fn/tradesniper/internal/flags"
	"github.com/navid-fn/tradesniper/internal/grant"
	"github.com/navid-fn/tradesniper/internal/jsonvalue"
	"github.com/navid-fn/tradesniper/internal/models"

	"github.com/sirupsen/logrus"
)

const streamURL = "wss://www.pathofexile.com/api/trade2/live/poe2/Standard/M7EwoaMtJ"

var (
	idA = strings.Repeat("a", 64)
	idB = strings.Repeat("b", 64)
	idC = strings.Repeat("c", 64)
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleep advances the clock instead of blocking.
func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.Advance(d)
	return nil
}

func listingBody(token string) jsonvalue.Value {
	raw := `{"result":[{"id":"` + idA + `","listing":{"stash":{"name":"sale","x":3,"y":4},` +
		`"account":{"name":"seller"},"price":{"amount":2,"currency":"exalted"}`
	if token != "" {
		raw += `,"hideout_token":"` + token + `"`
	}
	raw += `},"item":{"name":"Doom Band","typeLine":"Ruby Ring"}}]}`
	v, err := jsonvalue.Parse([]byte(raw))
	if err != nil {
		panic(err)
	}
	return v
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
	body  jsonvalue.Value
	err   error

	// per trade id overrides
	bodies map[string]jsonvalue.Value
	errs   map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, tradeID string) (jsonvalue.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tradeID)
	if err, ok := f.errs[tradeID]; ok {
		return nil, err
	}
	if body, ok := f.bodies[tradeID]; ok {
		return body, nil
	}
	return f.body, f.err
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeWhisperer struct {
	mu     sync.Mutex
	clock  *fakeClock
	tokens []string
	at     []time.Time
	err    error

	entered chan struct{}
	gate    chan struct{}
}

func (w *fakeWhisperer) Whisper(_ context.Context, token string, cred models.Credential) (jsonvalue.Value, error) {
	if w.entered != nil {
		w.entered <- struct{}{}
	}
	if w.gate != nil {
		<-w.gate
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tokens = append(w.tokens, token)
	w.at = append(w.at, w.clock.Now())
	return jsonvalue.Object{}, w.err
}

func (w *fakeWhisperer) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.tokens)
}

type fakeGranter struct {
	mu    sync.Mutex
	calls int
	err   error
	gate  chan struct{}
}

func (g *fakeGranter) Generate(context.Context, string) (string, error) {
	if g.gate != nil {
		<-g.gate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return "grant", g.err
}

func (g *fakeGranter) Profile(context.Context, string) (*grant.Profile, error) {
	return &grant.Profile{TokenCount: 29}, nil
}

type staticFlags struct {
	teleport, autobuy bool
}

func (f staticFlags) IsTeleportEnabled(context.Context) bool { return f.teleport }
func (f staticFlags) IsAutobuyEnabled(context.Context) bool  { return f.autobuy }

type startCall struct {
	x, y int
	at   time.Time
}

type fakeDriver struct {
	mu     sync.Mutex
	clock  *fakeClock
	starts []startCall
	stops  int
}

func (d *fakeDriver) Start(x, y int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts = append(d.starts, startCall{x, y, d.clock.Now()})
	return nil
}

func (d *fakeDriver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
}

func (d *fakeDriver) Pause()                 {}
func (d *fakeDriver) Resume()                {}
func (d *fakeDriver) Status() autobuy.Status { return autobuy.Status{} }

type recorder struct {
	mu      sync.Mutex
	records []models.AttemptRecord
}

func (r *recorder) Report(rec models.AttemptRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recorder) all() []models.AttemptRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AttemptRecord(nil), r.records...)
}

type harness struct {
	c         *Controller
	clock     *fakeClock
	filter    *dedup.Filter
	fetcher   *fakeFetcher
	whisperer *fakeWhisperer
	granter   *fakeGranter
	driver    *fakeDriver
	creds     *credentials.Store
	reports   *recorder
}

func newHarness(t *testing.T, fl FlagSource) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	h := &harness{
		clock:     clock,
		filter:    dedup.NewFilter(),
		fetcher:   &fakeFetcher{body: listingBody("eyJ.eyJ.sig")},
		whisperer: &fakeWhisperer{clock: clock},
		granter:   &fakeGranter{},
		driver:    &fakeDriver{clock: clock},
		creds:     credentials.NewStore("sess", "", "auth"),
		reports:   &recorder{},
	}
	if fl == nil {
		fl = staticFlags{teleport: true, autobuy: true}
	}
	h.c = NewController(Config{Now: clock.Now, Sleep: clock.Sleep}, Deps{
		Filter:    h.filter,
		Fetcher:   h.fetcher,
		Whisperer: h.whisperer,
		Granter:   h.granter,
		Flags:     fl,
		Driver:    h.driver,
		Creds:     h.creds,
		Reporter:  h.reports,
		Logger:    testLogger(),
	})
	t.Cleanup(h.c.Close)
	return h
}

func event(ids ...string) models.Event {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = `"` + id + `"`
	}
	v, err := jsonvalue.Parse([]byte(`{"new":[` + strings.Join(quoted, ",") + `]}`))
	if err != nil {
		panic(err)
	}
	return models.Event{Source: streamURL, Payload: v}
}

// settle waits for the attempt and its follow-up work.
func (h *harness) settle() {
	h.c.wg.Wait()
}

func TestSuccessfulAttemptStartsAutobuyAfterSettle(t *testing.T) {
	h := newHarness(t, nil)

	if d := h.c.HandleEvent(context.Background(), event(idA)); d != Accepted {
		t.Fatalf("Expected accepted, got %s", d)
	}
	h.settle()

	if h.c.State() != models.StateIdle {
		t.Errorf("Expected idle, got %s", h.c.State())
	}
	if h.whisperer.count() != 1 || h.whisperer.tokens[0] != "eyJ.eyJ.sig" {
		t.Fatalf("Expected one whisper with the listing token, got %v", h.whisperer.tokens)
	}
	if len(h.driver.starts) != 1 {
		t.Fatalf("Expected exactly one autobuy start, got %d", len(h.driver.starts))
	}
	start := h.driver.starts[0]
	if start.x != 3 || start.y != 4 {
		t.Errorf("Expected start(3,4), got start(%d,%d)", start.x, start.y)
	}
	if gap := start.at.Sub(h.whisperer.at[0]); gap < 4*time.Second {
		t.Errorf("Autobuy started only %v after whisper", gap)
	}
	if h.driver.stops < 1 {
		t.Error("Expected autobuy stop on success")
	}

	recs := h.reports.all()
	if len(recs) != 1 || !recs[0].Succeeded() {
		t.Fatalf("Expected one success record, got %+v", recs)
	}
	if recs[0].Item != "Doom Band" || recs[0].Account != "seller" || recs[0].Stash == nil {
		t.Errorf("Unexpected record %+v", recs[0])
	}
	if recs[0].Key != streamURL+"|"+idA {
		t.Errorf("Unexpected key %s", recs[0].Key)
	}
}

func TestSameTradeIDTwiceIsDropped(t *testing.T) {
	h := newHarness(t, nil)

	h.c.HandleEvent(context.Background(), event(idA))
	h.settle()
	h.clock.Advance(time.Minute)

	if d := h.c.HandleEvent(context.Background(), event(idA)); d != DroppedDuplicate {
		t.Errorf("Expected duplicate, got %s", d)
	}
	h.settle()

	if h.fetcher.count() != 1 || h.whisperer.count() != 1 {
		t.Errorf("Expected 1 fetch and 1 whisper, got %d and %d", h.fetcher.count(), h.whisperer.count())
	}
}

func TestCompositeKeyDeduplicatesAcrossTradeIDs(t *testing.T) {
	h := newHarness(t, staticFlags{teleport: true})
	ev := models.Event{Source: streamURL, Payload: listingBody("eyJhideout.a.b")}
	h.fetcher.err = &failure.HTTPError{Status: 500}

	h.c.HandleEvent(context.Background(), ev)
	h.settle()

	// same listing token, different trade id
	raw, _ := ev.Payload.MarshalJSON()
	again, _ := jsonvalue.Parse([]byte(strings.ReplaceAll(string(raw), idA, idB)))
	if d := h.c.HandleEvent(context.Background(), models.Event{Source: streamURL, Payload: again}); d != DroppedDuplicate {
		t.Errorf("Expected duplicate by composite key, got %s", d)
	}
}

func TestServerRateLimitFailsWithoutWhisper(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.err = &failure.RateLimitedByServerError{}

	h.c.HandleEvent(context.Background(), event(idA))
	h.settle()

	if h.c.State() != models.StateIdle {
		t.Errorf("Expected idle, got %s", h.c.State())
	}
	if h.whisperer.count() != 0 {
		t.Error("No whisper should follow a failed fetch")
	}
	if h.fetcher.count() != 1 {
		t.Errorf("Expected a single fetch with no retry, got %d", h.fetcher.count())
	}
	recs := h.reports.all()
	if len(recs) != 1 || recs[0].Reason != failure.ReasonRateLimited || recs[0].Status != 429 {
		t.Errorf("Unexpected records %+v", recs)
	}
	if len(h.driver.starts) != 0 {
		t.Error("Autobuy must not start after a failure")
	}
}

func TestFailureReasons(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		reason  string
		grants  int
		fetches int
	}{
		{"missing cookie", func(h *harness) { h.creds.Replace(models.Credential{AuthorizationToken: "auth"}) },
			failure.ReasonMissingCredential, 0, 0},
		{"not authenticated", func(h *harness) { h.creds.SetAuthorizationToken("") },
			failure.ReasonNotAuthenticated, 0, 0},
		{"grant denied", func(h *harness) { h.granter.err = &failure.GrantDeniedError{} },
			failure.ReasonGrantDenied, 1, 0},
		{"fetch http error", func(h *harness) { h.fetcher.err = &failure.HTTPError{Status: 404} },
			failure.ReasonHTTP, 1, 1},
		{"malformed listing", func(h *harness) {
			h.fetcher.body, _ = jsonvalue.Parse([]byte(`{"result":[{"item":{}}]}`))
		}, failure.ReasonMalformedListing, 1, 1},
		{"no token", func(h *harness) { h.fetcher.body = listingBody("") },
			failure.ReasonMalformedListing, 1, 1},
		{"whisper cooldown", func(h *harness) {
			h.whisperer.err = &failure.RateLimitedLocallyError{Channel: "whisper", RetryAfter: time.Second}
		}, failure.ReasonCooldown, 1, 1},
		{"whisper http error", func(h *harness) { h.whisperer.err = &failure.HTTPError{Status: 400} },
			failure.ReasonHTTP, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			tt.setup(h)

			h.c.HandleEvent(context.Background(), event(idA))
			h.settle()

			recs := h.reports.all()
			if len(recs) != 1 {
				t.Fatalf("Expected 1 record, got %d", len(recs))
			}
			if recs[0].State != models.StateFailed || recs[0].Reason != tt.reason {
				t.Errorf("Expected failed/%s, got %s/%s (%s)", tt.reason, recs[0].State, recs[0].Reason, recs[0].Error)
			}
			if h.granter.calls != tt.grants || h.fetcher.count() != tt.fetches {
				t.Errorf("Expected %d grants and %d fetches, got %d and %d",
					tt.grants, tt.fetches, h.granter.calls, h.fetcher.count())
			}
			if h.c.State() != models.StateIdle {
				t.Errorf("Expected idle after failure, got %s", h.c.State())
			}
			if len(h.driver.starts) != 0 {
				t.Error("Autobuy must not start after a failure")
			}

			// the pipeline keeps serving events
			h.granter.err, h.fetcher.err, h.whisperer.err = nil, nil, nil
			h.creds.Replace(models.Credential{SessionCookie: "POESESSID=x", AuthorizationToken: "auth"})
			h.fetcher.body = listingBody("eyJfresh.a.b")
			if d := h.c.HandleEvent(context.Background(), event(idB)); d != Accepted {
				t.Errorf("Expected next event accepted, got %s", d)
			}
			h.settle()
		})
	}
}

func TestEventsDroppedWhileInFlight(t *testing.T) {
	h := newHarness(t, nil)
	h.granter.gate = make(chan struct{})

	if d := h.c.HandleEvent(context.Background(), event(idA)); d != Accepted {
		t.Fatalf("Expected accepted, got %s", d)
	}
	if d := h.c.HandleEvent(context.Background(), event(idB)); d != DroppedBusy {
		t.Errorf("Expected busy, got %s", d)
	}
	if st := h.c.Status(); st.CurrentTradeID != idA || st.State != models.StateAwaitingGrant {
		t.Errorf("Unexpected status %+v", st)
	}

	close(h.granter.gate)
	h.settle()

	if h.fetcher.count() != 1 {
		t.Errorf("Dropped event must not be fetched later, got %d fetches", h.fetcher.count())
	}
	// idB was never marked and can still be bought
	if h.filter.Seen(dedup.TradeIDs, idB) {
		t.Error("Dropped trade id should not be marked seen")
	}
}

func TestConcurrentEventsStartOneAttempt(t *testing.T) {
	h := newHarness(t, nil)
	h.granter.gate = make(chan struct{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("%064x", i+1)
			if h.c.HandleEvent(context.Background(), event(id)) == Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	close(h.granter.gate)
	h.settle()

	if accepted != 1 {
		t.Errorf("Expected exactly one accepted event, got %d", accepted)
	}
}

func TestPurchaseCooldown(t *testing.T) {
	h := newHarness(t, staticFlags{teleport: true})

	h.c.HandleEvent(context.Background(), event(idA))
	h.settle()

	h.fetcher.body = listingBody("eyJsecond.a.b")
	if d := h.c.HandleEvent(context.Background(), event(idB)); d != DroppedCooldown {
		t.Errorf("Expected cooldown, got %s", d)
	}
	if h.c.Status().CooldownRemainingMS <= 0 {
		t.Error("Expected remaining cooldown in status")
	}

	h.clock.Advance(10 * time.Second)
	if d := h.c.HandleEvent(context.Background(), event(idB)); d != Accepted {
		t.Errorf("Expected accepted after cooldown, got %s", d)
	}
	h.settle()
}

func TestTeleportDisabled(t *testing.T) {
	mem := flags.NewMemory()
	mem.Set(flags.Teleport, false)
	h := newHarness(t, flags.NewQuerier(mem, time.Second, testLogger()))

	if d := h.c.HandleEvent(context.Background(), event(idA)); d != DroppedDisabled {
		t.Errorf("Expected disabled, got %s", d)
	}
	if h.filter.Seen(dedup.TradeIDs, idA) {
		t.Error("Disabled events must not mark the trade id")
	}

	mem.Set(flags.Teleport, true)
	if d := h.c.HandleEvent(context.Background(), event(idA)); d != Accepted {
		t.Errorf("Expected accepted once enabled, got %s", d)
	}
	h.settle()
}

type silentAsker struct{ release chan struct{} }

func (s silentAsker) Ask(context.Context, flags.Flag) (bool, error) {
	<-s.release
	return false, nil
}

func TestFlagTimeoutDefaults(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	h := newHarness(t, flags.NewQuerier(silentAsker{release: release}, 20*time.Millisecond, testLogger()))

	if d := h.c.HandleEvent(context.Background(), event(idA)); d != Accepted {
		t.Fatalf("Teleport should default to enabled, got %s", d)
	}
	h.settle()

	if h.whisperer.count() != 1 {
		t.Errorf("Expected whisper, got %d", h.whisperer.count())
	}
	if len(h.driver.starts) != 0 {
		t.Error("Autobuy should default to disabled")
	}
}

func TestNoCandidate(t *testing.T) {
	h := newHarness(t, nil)
	v, _ := jsonvalue.Parse([]byte(`{"auth":true}`))
	if d := h.c.HandleEvent(context.Background(), models.Event{Source: streamURL, Payload: v}); d != DroppedNoCandidate {
		t.Errorf("Expected no candidate, got %s", d)
	}
	if h.c.Status().Decisions["no_candidate"] != 1 {
		t.Error("Expected decision to be counted")
	}
}

func TestOnFlagChangeStopsDriver(t *testing.T) {
	h := newHarness(t, nil)
	h.c.OnFlagChange("autobuy", true)
	h.c.OnFlagChange("teleport", false)
	if h.driver.stops != 1 {
		t.Errorf("Expected one stop, got %d", h.driver.stops)
	}
}

func TestSendWhisper(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.c.SendWhisper(context.Background(), "nope"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected invalid token, got %v", err)
	}
	if err := h.c.SendWhisper(context.Background(), "eyJm.a.b"); err != nil {
		t.Fatalf("SendWhisper failed: %v", err)
	}
	if err := h.c.SendWhisper(context.Background(), "eyJm.a.b"); !errors.Is(err, ErrDuplicateToken) {
		t.Errorf("Expected duplicate, got %v", err)
	}

	h.whisperer.err = &failure.RateLimitedLocallyError{Channel: "whisper", RetryAfter: time.Second}
	if err := h.c.SendWhisper(context.Background(), "eyJn.a.b"); err == nil {
		t.Error("Expected cooldown error")
	}
	if h.filter.Seen(dedup.Tokens, "eyJn.a.b") {
		t.Error("A token denied locally was never sent and must stay usable")
	}
}

func TestSendWhisperClaimsTokenBeforeSending(t *testing.T) {
	h := newHarness(t, nil)
	h.whisperer.entered = make(chan struct{}, 1)
	h.whisperer.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.c.SendWhisper(context.Background(), "eyJrace.a.b") }()
	<-h.whisperer.entered

	// the first request is still on the wire
	if err := h.c.SendWhisper(context.Background(), "eyJrace.a.b"); !errors.Is(err, ErrDuplicateToken) {
		t.Errorf("Expected duplicate while the first whisper is in flight, got %v", err)
	}

	close(h.whisperer.gate)
	if err := <-done; err != nil {
		t.Fatalf("SendWhisper failed: %v", err)
	}
	if h.whisperer.count() != 1 {
		t.Errorf("Expected exactly one whisper, got %d", h.whisperer.count())
	}
}

func TestBurstTradeIDsTriedInOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.errs = map[string]error{idA: &failure.HTTPError{Status: 404}}
	h.fetcher.bodies = map[string]jsonvalue.Value{idB: listingBody("eyJb.a.b")}

	if d := h.c.HandleEvent(context.Background(), event(idA, idB, idC)); d != Accepted {
		t.Fatalf("Expected accepted, got %s", d)
	}
	h.settle()

	h.fetcher.mu.Lock()
	calls := append([]string(nil), h.fetcher.calls...)
	h.fetcher.mu.Unlock()
	if len(calls) != 2 || calls[0] != idA || calls[1] != idB {
		t.Fatalf("Expected fetches [a b], got %d calls", len(calls))
	}
	if h.whisperer.count() != 1 || h.whisperer.tokens[0] != "eyJb.a.b" {
		t.Errorf("Expected the second listing to be whispered, got %v", h.whisperer.tokens)
	}

	recs := h.reports.all()
	if len(recs) != 1 || !recs[0].Succeeded() || recs[0].TradeID != idB {
		t.Fatalf("Expected one success for b, got %+v", recs)
	}
	if !h.filter.Seen(dedup.TradeIDs, idA) || !h.filter.Seen(dedup.TradeIDs, idB) {
		t.Error("Fetched trade ids must stay marked")
	}
	if h.filter.Seen(dedup.TradeIDs, idC) {
		t.Error("Unfetched trade id should be released")
	}

	// after the cooldown the released id is bought from a later frame
	h.clock.Advance(time.Minute)
	h.fetcher.body = listingBody("eyJc.a.b")
	if d := h.c.HandleEvent(context.Background(), event(idA, idC)); d != Accepted {
		t.Errorf("Expected released id accepted, got %s", d)
	}
	h.settle()
	if h.whisperer.count() != 2 {
		t.Errorf("Expected a second whisper, got %d", h.whisperer.count())
	}
}

func TestBurstStopsOnNonListingFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.err = &failure.RateLimitedByServerError{}

	h.c.HandleEvent(context.Background(), event(idA, idB, idC))
	h.settle()

	if h.fetcher.count() != 1 {
		t.Errorf("Expected a single fetch, got %d", h.fetcher.count())
	}
	recs := h.reports.all()
	if len(recs) != 1 || recs[0].Reason != failure.ReasonRateLimited || recs[0].TradeID != idA {
		t.Errorf("Unexpected records %+v", recs)
	}
	if h.filter.Seen(dedup.TradeIDs, idB) || h.filter.Seen(dedup.TradeIDs, idC) {
		t.Error("Untried trade ids should be released")
	}
}

func TestBurstAllListingsUnusable(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.err = &failure.HTTPError{Status: 404}

	h.c.HandleEvent(context.Background(), event(idA, idB))
	h.settle()

	if h.fetcher.count() != 2 {
		t.Errorf("Expected both ids fetched, got %d", h.fetcher.count())
	}
	recs := h.reports.all()
	if len(recs) != 1 || recs[0].Reason != failure.ReasonHTTP || recs[0].TradeID != idB {
		t.Errorf("Unexpected records %+v", recs)
	}
	if h.whisperer.count() != 0 {
		t.Error("No whisper expected")
	}
}

func TestEventsAfterCloseAreRefused(t *testing.T) {
	h := newHarness(t, nil)
	h.c.Close()

	if d := h.c.HandleEvent(context.Background(), event(idA)); d != DroppedStopped {
		t.Errorf("Expected stopped, got %s", d)
	}
	if h.fetcher.count() != 0 || len(h.reports.all()) != 0 {
		t.Error("No attempt should run after Close")
	}
	if h.filter.Seen(dedup.TradeIDs, idA) {
		t.Error("Refused event must not mark the trade id")
	}
}
