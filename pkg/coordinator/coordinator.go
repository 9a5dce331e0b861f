package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/frankenergie/frankenergie/pkg/cache"
	"github.com/frankenergie/frankenergie/pkg/frank"
	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/types"
)

// Status describes the outcome of the latest refreshes of an entry.
type Status struct {
	LastAttempt    time.Time `json:"lastAttempt"`
	LastSuccess    time.Time `json:"lastSuccess"`
	LastError      string    `json:"lastError,omitempty"`
	ReauthRequired bool      `json:"reauthRequired"`
	// Stale is true when the latest refresh failed and the previous result
	// is still being served.
	Stale bool `json:"stale"`
}

// Listener is called after every refresh that produced a result.
type Listener func(ctx context.Context, entry types.Entry, result *types.RefreshResult)

// PriceHistory records fetched price points.
type PriceHistory interface {
	UpsertPrices(ctx context.Context, entryID string, commodity types.Commodity, prices types.PriceSeries) error
	GetLatestPriceTime(ctx context.Context, entryID string, commodity types.Commodity) (time.Time, error)
}

// Coordinator owns the refresh schedule and the last known result of one
// entry. Refreshes are serialised so only one is ever in flight.
type Coordinator struct {
	entry      types.Entry
	client     Client
	reconciler *Reconciler
	snapshots  cache.Snapshots
	history    PriceHistory
	now        func() time.Time

	refreshMu sync.Mutex

	mu        sync.RWMutex
	last      *types.RefreshResult
	status    Status
	listeners []Listener
}

// New returns a Coordinator for entry. snapshots and history may be nil.
func New(entry types.Entry, client Client, creds CredentialStore, snapshots cache.Snapshots, history PriceHistory) *Coordinator {
	if snapshots == nil {
		snapshots = cache.Noop{}
	}
	return &Coordinator{
		entry:      entry,
		client:     client,
		reconciler: NewReconciler(client, creds),
		snapshots:  snapshots,
		history:    history,
		now:        time.Now,
	}
}

// Entry returns the entry being refreshed.
func (c *Coordinator) Entry() types.Entry {
	return c.entry
}

// Authenticated returns true when the entry refreshes with user prices.
func (c *Coordinator) Authenticated() bool {
	return c.client.IsAuthenticated()
}

// Last returns the last known result, nil before the first success.
func (c *Coordinator) Last() *types.RefreshResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Status returns a copy of the current status.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Subscribe registers l to be called after each refresh.
func (c *Coordinator) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *Coordinator) logContext(ctx context.Context) context.Context {
	return log.WithAttrs(ctx, slog.String("entryID", c.entry.ID))
}

// Load seeds the last known result from the snapshot cache so stale prices
// survive a restart.
func (c *Coordinator) Load(ctx context.Context) {
	ctx = c.logContext(ctx)
	result, err := c.snapshots.Get(ctx, c.entry.ID)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to load snapshot", slog.Any("error", err))
		return
	}
	if result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		c.last = result
		c.status.LastSuccess = result.FetchedAt
		log.Ctx(ctx).DebugContext(ctx, "loaded snapshot", slog.Time("fetchedAt", result.FetchedAt))
	}
}

// Refresh runs one refresh now. It blocks while another refresh of the same
// entry is in flight.
func (c *Coordinator) Refresh(ctx context.Context) (*types.RefreshResult, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	ctx = c.logContext(ctx)
	now := c.now()
	last := c.Last()

	result, err := c.reconciler.Refresh(ctx, Request{
		Now:           now,
		Authenticated: c.client.IsAuthenticated(),
		SiteReference: c.entry.SiteReference,
		LastKnown:     last,
	})

	c.mu.Lock()
	c.status.LastAttempt = now
	if err != nil {
		reauth := errors.Is(err, frank.ErrReauthRequired)
		c.status.LastError = err.Error()
		c.status.ReauthRequired = reauth
		c.status.Stale = false
		c.mu.Unlock()

		if reauth {
			log.Ctx(ctx).ErrorContext(ctx, "refresh failed, reauthentication required", slog.Any("error", err))
		} else {
			log.Ctx(ctx).WarnContext(ctx, "refresh failed", slog.Any("error", err))
		}
		return nil, err
	}

	stale := last != nil && result == last
	c.status.LastError = ""
	c.status.ReauthRequired = false
	c.status.Stale = stale
	if !stale {
		c.status.LastSuccess = now
		c.last = result
	}
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	if !stale {
		c.persist(ctx, result)
	}
	for _, l := range listeners {
		l(ctx, c.entry, result)
	}
	return result, nil
}

// persist writes a fresh result to the snapshot cache and the points newer
// than the latest stored one to the price history. Failures are logged since
// the refresh itself succeeded.
func (c *Coordinator) persist(ctx context.Context, result *types.RefreshResult) {
	if err := c.snapshots.Set(ctx, c.entry.ID, result); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to store snapshot", slog.Any("error", err))
	}
	if c.history == nil {
		return
	}
	for _, commodity := range []types.Commodity{types.CommodityElectricity, types.CommodityGas} {
		prices := result.Series(commodity)
		latest, err := c.history.GetLatestPriceTime(ctx, c.entry.ID, commodity)
		if err != nil {
			// upserting is idempotent so the whole series is written instead
			log.Ctx(ctx).WarnContext(
				ctx,
				"failed to get latest stored price",
				slog.String("commodity", string(commodity)),
				slog.Any("error", err),
			)
		} else {
			prices = prices.After(latest)
		}
		if len(prices) == 0 {
			log.Ctx(ctx).DebugContext(ctx, "price history up to date", slog.String("commodity", string(commodity)), slog.Time("latest", latest))
			continue
		}
		if err := c.history.UpsertPrices(ctx, c.entry.ID, commodity, prices); err != nil {
			log.Ctx(ctx).WarnContext(
				ctx,
				"failed to store price history",
				slog.String("commodity", string(commodity)),
				slog.Any("error", err),
			)
		}
	}
}

// Run refreshes immediately and then every interval until ctx is done.
// Errors are recorded in Status and retried on the next tick.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// errors are logged and kept in the status
		_, _ = c.Refresh(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
