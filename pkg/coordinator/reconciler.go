package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frankenergie/frankenergie/pkg/frank"
	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/types"
)

// tomorrowPricesHourUTC is the hour from which the next day's prices are
// published.
const tomorrowPricesHourUTC = 13

// Client is the part of the Frank Energie API a Reconciler consumes.
type Client interface {
	IsAuthenticated() bool
	Prices(ctx context.Context, start, end time.Time) (types.MarketPrices, error)
	UserPrices(ctx context.Context, start time.Time, siteReference string, end time.Time) (types.MarketPrices, error)
	RenewToken(ctx context.Context) (types.Authentication, error)

	MonthSummary(ctx context.Context, siteReference string) (*types.MonthSummary, error)
	Invoices(ctx context.Context, siteReference string) (*types.Invoices, error)
	PeriodUsageAndCosts(ctx context.Context, siteReference string, date time.Time) (*types.PeriodUsageAndCosts, error)
	User(ctx context.Context, siteReference string) (*types.User, error)
	UserSites(ctx context.Context) ([]types.DeliverySite, error)
	SmartBatteries(ctx context.Context) ([]types.SmartBattery, error)
	EnodeChargers(ctx context.Context) ([]types.EnodeCharger, error)
	SmartBatterySessions(ctx context.Context, deviceID string, start, end time.Time) (*types.SmartBatterySessions, error)
}

var _ Client = (*frank.Client)(nil)

// CredentialStore persists a renewed token pair.
type CredentialStore interface {
	SaveAuthentication(ctx context.Context, auth types.Authentication) error
}

// Request holds the inputs of a single refresh.
type Request struct {
	Now           time.Time
	Authenticated bool
	SiteReference string
	// LastKnown is the previous successful result. It is only used to decide
	// whether stale data can be served and is never modified.
	LastKnown *types.RefreshResult
}

// Reconciler builds a RefreshResult from the pricing API. It holds no state
// between calls.
type Reconciler struct {
	client Client
	creds  CredentialStore
}

// NewReconciler returns a Reconciler. creds may be nil when renewed tokens do
// not need to be persisted.
func NewReconciler(client Client, creds CredentialStore) *Reconciler {
	return &Reconciler{
		client: client,
		creds:  creds,
	}
}

// Refresh fetches today's prices, tomorrow's prices once they are published,
// and the account snapshots when authenticated.
//
// A returned error wraps frank.ErrTransient when the next scheduled refresh
// may succeed and frank.ErrReauthRequired when the user has to log in again.
// When the mandatory fetch fails transiently but req.LastKnown still has
// upcoming prices for both commodities, req.LastKnown itself is returned.
func (r *Reconciler) Refresh(ctx context.Context, req Request) (*types.RefreshResult, error) {
	now := req.Now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)

	prices, err := r.fetchWithFallback(ctx, req, today, tomorrow)
	if err != nil {
		return r.handleFetchError(ctx, req, err)
	}

	if now.Hour() >= tomorrowPricesHourUTC {
		next, err := r.fetchWithFallback(ctx, req, tomorrow, tomorrow.AddDate(0, 0, 1))
		if err != nil {
			log.Ctx(ctx).InfoContext(
				ctx,
				"tomorrow prices not available",
				slog.Time("date", tomorrow),
				slog.Any("error", err),
			)
		} else {
			prices.Electricity = prices.Electricity.Concat(next.Electricity)
			prices.Gas = prices.Gas.Concat(next.Gas)
		}
	}

	result := &types.RefreshResult{
		Electricity: prices.Electricity,
		Gas:         prices.Gas,
		FetchedAt:   req.Now,
	}

	if req.Authenticated {
		if err := r.fetchSnapshots(ctx, req, today, result); err != nil {
			return r.handleFetchError(ctx, req, err)
		}
	}

	log.Ctx(ctx).DebugContext(
		ctx,
		"refresh complete",
		slog.Int("electricity", len(result.Electricity)),
		slog.Int("gas", len(result.Gas)),
		slog.Bool("authenticated", req.Authenticated),
	)
	return result, nil
}

// fetchWithFallback returns the user's contract prices for [start, end) and
// fills in public prices for each commodity the user prices are empty for.
func (r *Reconciler) fetchWithFallback(ctx context.Context, req Request, start, end time.Time) (types.MarketPrices, error) {
	if !req.Authenticated {
		public, err := r.client.Prices(ctx, start, end)
		if err != nil {
			return types.MarketPrices{}, err
		}
		return public.Normalize(), nil
	}

	user, err := r.client.UserPrices(ctx, start, req.SiteReference, end)
	if err != nil {
		return types.MarketPrices{}, err
	}
	user = user.Normalize()
	if len(user.Electricity) > 0 && len(user.Gas) > 0 {
		return user, nil
	}

	public, err := r.client.Prices(ctx, start, end)
	if err != nil {
		return types.MarketPrices{}, err
	}
	public = public.Normalize()

	if len(user.Electricity) == 0 {
		log.Ctx(ctx).InfoContext(ctx, "no user electricity prices, using public prices", slog.Time("start", start))
		user.Electricity = public.Electricity
	}
	if len(user.Gas) == 0 {
		log.Ctx(ctx).InfoContext(ctx, "no user gas prices, using public prices", slog.Time("start", start))
		user.Gas = public.Gas
	}
	return user, nil
}

// fetchSnapshots attaches the account snapshots to result. Errors from the
// month summary, invoices, usage or user queries are returned. The delivery
// sites and devices are optional and only logged.
func (r *Reconciler) fetchSnapshots(ctx context.Context, req Request, today time.Time, result *types.RefreshResult) error {
	var err error
	if result.MonthSummary, err = r.client.MonthSummary(ctx, req.SiteReference); err != nil {
		return fmt.Errorf("failed to get month summary: %w", err)
	}
	if result.Invoices, err = r.client.Invoices(ctx, req.SiteReference); err != nil {
		return fmt.Errorf("failed to get invoices: %w", err)
	}
	if result.Usage, err = r.client.PeriodUsageAndCosts(ctx, req.SiteReference, today.AddDate(0, 0, -1)); err != nil {
		return fmt.Errorf("failed to get usage: %w", err)
	}
	if result.User, err = r.client.User(ctx, req.SiteReference); err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if sites, err := r.client.UserSites(ctx); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to get delivery sites", slog.Any("error", err))
	} else {
		result.UserSites = sites
	}
	if batteries, err := r.client.SmartBatteries(ctx); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to get smart batteries", slog.Any("error", err))
	} else {
		result.SmartBatteries = batteries
		result.BatterySessions = r.fetchBatterySessions(ctx, batteries, today)
	}
	if chargers, err := r.client.EnodeChargers(ctx); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to get enode chargers", slog.Any("error", err))
	} else {
		result.EnodeChargers = chargers
	}
	return nil
}

// fetchBatterySessions returns the month to date trading results of each
// battery. Batteries whose sessions cannot be fetched are skipped.
func (r *Reconciler) fetchBatterySessions(ctx context.Context, batteries []types.SmartBattery, today time.Time) []types.SmartBatterySessions {
	if len(batteries) == 0 {
		return nil
	}
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	sessions := make([]types.SmartBatterySessions, 0, len(batteries))
	for _, b := range batteries {
		s, err := r.client.SmartBatterySessions(ctx, b.ID, monthStart, today)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to get smart battery sessions", slog.String("deviceID", b.ID), slog.Any("error", err))
			continue
		}
		if s == nil {
			continue
		}
		sessions = append(sessions, *s)
	}
	return sessions
}

// handleFetchError applies the failure policy of the mandatory fetches.
func (r *Reconciler) handleFetchError(ctx context.Context, req Request, err error) (*types.RefreshResult, error) {
	switch {
	case errors.Is(err, frank.ErrReauthRequired):
		return nil, err

	case errors.Is(err, frank.ErrAuthExpired):
		return nil, r.renew(ctx, err)

	default:
		if req.LastKnown.UsableAt(req.Now) {
			log.Ctx(ctx).WarnContext(
				ctx,
				"failed to refresh, keeping last known prices",
				slog.Time("fetchedAt", req.LastKnown.FetchedAt),
				slog.Any("error", err),
			)
			return req.LastKnown, nil
		}
		if !errors.Is(err, frank.ErrTransient) {
			err = fmt.Errorf("%w: %w", frank.ErrTransient, err)
		}
		return nil, err
	}
}

// renew renews the token once after cause rejected it. The fresh token is
// only used by the next refresh so the returned error is always transient
// unless the renewal itself was rejected.
func (r *Reconciler) renew(ctx context.Context, cause error) error {
	log.Ctx(ctx).InfoContext(ctx, "token expired, renewing", slog.Any("error", cause))

	auth, err := r.client.RenewToken(ctx)
	if err != nil {
		if errors.Is(err, frank.ErrTransient) {
			return fmt.Errorf("failed to renew token: %w", err)
		}
		return fmt.Errorf("%w: failed to renew token: %w", frank.ErrReauthRequired, err)
	}

	if r.creds != nil {
		if err := r.creds.SaveAuthentication(ctx, auth); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to save renewed token", slog.Any("error", err))
		}
	}
	return fmt.Errorf("%w: token renewed after: %v", frank.ErrTransient, cause)
}
