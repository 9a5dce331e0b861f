package coordinator

import (
	"context"
	"time"

	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/stretchr/testify/mock"
)

type mockClient struct {
	mock.Mock
}

var _ Client = (*mockClient)(nil)

func (m *mockClient) IsAuthenticated() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *mockClient) Prices(ctx context.Context, start, end time.Time) (types.MarketPrices, error) {
	args := m.Called(ctx, start, end)
	return args.Get(0).(types.MarketPrices), args.Error(1)
}

func (m *mockClient) UserPrices(ctx context.Context, start time.Time, siteReference string, end time.Time) (types.MarketPrices, error) {
	args := m.Called(ctx, start, siteReference, end)
	return args.Get(0).(types.MarketPrices), args.Error(1)
}

func (m *mockClient) RenewToken(ctx context.Context) (types.Authentication, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.Authentication), args.Error(1)
}

func (m *mockClient) MonthSummary(ctx context.Context, siteReference string) (*types.MonthSummary, error) {
	args := m.Called(ctx, siteReference)
	if v := args.Get(0); v != nil {
		return v.(*types.MonthSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) Invoices(ctx context.Context, siteReference string) (*types.Invoices, error) {
	args := m.Called(ctx, siteReference)
	if v := args.Get(0); v != nil {
		return v.(*types.Invoices), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) PeriodUsageAndCosts(ctx context.Context, siteReference string, date time.Time) (*types.PeriodUsageAndCosts, error) {
	args := m.Called(ctx, siteReference, date)
	if v := args.Get(0); v != nil {
		return v.(*types.PeriodUsageAndCosts), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) User(ctx context.Context, siteReference string) (*types.User, error) {
	args := m.Called(ctx, siteReference)
	if v := args.Get(0); v != nil {
		return v.(*types.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) UserSites(ctx context.Context) ([]types.DeliverySite, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]types.DeliverySite), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) SmartBatteries(ctx context.Context) ([]types.SmartBattery, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]types.SmartBattery), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) EnodeChargers(ctx context.Context) ([]types.EnodeCharger, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]types.EnodeCharger), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) SmartBatterySessions(ctx context.Context, deviceID string, start, end time.Time) (*types.SmartBatterySessions, error) {
	args := m.Called(ctx, deviceID, start, end)
	if v := args.Get(0); v != nil {
		return v.(*types.SmartBatterySessions), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCredentialStore struct {
	mock.Mock
}

func (m *mockCredentialStore) SaveAuthentication(ctx context.Context, auth types.Authentication) error {
	args := m.Called(ctx, auth)
	return args.Error(0)
}

type mockSnapshots struct {
	mock.Mock
}

func (m *mockSnapshots) Get(ctx context.Context, entryID string) (*types.RefreshResult, error) {
	args := m.Called(ctx, entryID)
	if v := args.Get(0); v != nil {
		return v.(*types.RefreshResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSnapshots) Set(ctx context.Context, entryID string, result *types.RefreshResult) error {
	args := m.Called(ctx, entryID, result)
	return args.Error(0)
}

func (m *mockSnapshots) Delete(ctx context.Context, entryID string) error {
	args := m.Called(ctx, entryID)
	return args.Error(0)
}

func (m *mockSnapshots) Close() error {
	args := m.Called()
	return args.Error(0)
}
