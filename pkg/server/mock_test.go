package server

import (
	"context"
	"time"

	"github.com/frankenergie/frankenergie/pkg/coordinator"
	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// fakeClient serves a fixed price series for public and user prices.
type fakeClient struct {
	auth   types.Authentication
	prices types.MarketPrices
	err    error
}

var _ coordinator.Client = (*fakeClient)(nil)

// hourlyPrices returns four days of hourly prices starting the day before
// now.
func hourlyPrices(now time.Time) types.MarketPrices {
	start := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)
	var elec, gas types.PriceSeries
	for i := 0; i < 96; i++ {
		from := start.Add(time.Duration(i) * time.Hour)
		elec = append(elec, types.PricePoint{From: from, Till: from.Add(time.Hour), MarketPrice: decimal.RequireFromString("0.25")})
		gas = append(gas, types.PricePoint{From: from, Till: from.Add(time.Hour), MarketPrice: decimal.RequireFromString("0.80")})
	}
	return types.MarketPrices{Electricity: elec, Gas: gas}
}

func (f *fakeClient) IsAuthenticated() bool {
	return !f.auth.Empty()
}

func (f *fakeClient) Prices(ctx context.Context, start, end time.Time) (types.MarketPrices, error) {
	if f.err != nil {
		return types.MarketPrices{}, f.err
	}
	return types.MarketPrices{
		Electricity: f.prices.Electricity.Between(start, end),
		Gas:         f.prices.Gas.Between(start, end),
	}.Normalize(), nil
}

func (f *fakeClient) UserPrices(ctx context.Context, start time.Time, siteReference string, end time.Time) (types.MarketPrices, error) {
	return f.Prices(ctx, start, end)
}

func (f *fakeClient) RenewToken(ctx context.Context) (types.Authentication, error) {
	return f.auth, nil
}

func (f *fakeClient) MonthSummary(ctx context.Context, siteReference string) (*types.MonthSummary, error) {
	return &types.MonthSummary{}, nil
}

func (f *fakeClient) Invoices(ctx context.Context, siteReference string) (*types.Invoices, error) {
	return &types.Invoices{}, nil
}

func (f *fakeClient) PeriodUsageAndCosts(ctx context.Context, siteReference string, date time.Time) (*types.PeriodUsageAndCosts, error) {
	return &types.PeriodUsageAndCosts{}, nil
}

func (f *fakeClient) User(ctx context.Context, siteReference string) (*types.User, error) {
	return &types.User{}, nil
}

func (f *fakeClient) UserSites(ctx context.Context) ([]types.DeliverySite, error) {
	return []types.DeliverySite{}, nil
}

func (f *fakeClient) SmartBatteries(ctx context.Context) ([]types.SmartBattery, error) {
	return []types.SmartBattery{}, nil
}

func (f *fakeClient) EnodeChargers(ctx context.Context) ([]types.EnodeCharger, error) {
	return []types.EnodeCharger{}, nil
}

func (f *fakeClient) SmartBatterySessions(ctx context.Context, deviceID string, start, end time.Time) (*types.SmartBatterySessions, error) {
	return &types.SmartBatterySessions{DeviceID: deviceID}, nil
}

type mockLoginClient struct {
	mock.Mock
}

var _ LoginClient = (*mockLoginClient)(nil)

func (m *mockLoginClient) Login(ctx context.Context, email, password string) (types.Authentication, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(types.Authentication), args.Error(1)
}

func (m *mockLoginClient) UserSites(ctx context.Context) ([]types.DeliverySite, error) {
	args := m.Called(ctx)
	return args.Get(0).([]types.DeliverySite), args.Error(1)
}
