package storagemock

import (
	"context"
	"time"

	"github.com/frankenergie/frankenergie/pkg/storage"
	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) ListEntries(ctx context.Context) ([]types.Entry, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).([]types.Entry), args.Error(1)
	}
	return []types.Entry{}, nil
}

func (m *MockDatabase) GetEntry(ctx context.Context, id string) (types.Entry, error) {
	args := m.Called(ctx, id)
	if len(args) > 0 {
		return args.Get(0).(types.Entry), args.Error(1)
	}
	return types.Entry{}, nil
}

func (m *MockDatabase) CreateEntry(ctx context.Context, entry types.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDatabase) UpdateEntry(ctx context.Context, entry types.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDatabase) DeleteEntry(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDatabase) UpsertPrices(ctx context.Context, entryID string, commodity types.Commodity, prices types.PriceSeries) error {
	args := m.Called(ctx, entryID, commodity, prices)
	return args.Error(0)
}

func (m *MockDatabase) GetPriceHistory(ctx context.Context, entryID string, commodity types.Commodity, start, end time.Time) (types.PriceSeries, error) {
	args := m.Called(ctx, entryID, commodity, start, end)
	if len(args) > 0 {
		return args.Get(0).(types.PriceSeries), args.Error(1)
	}
	return types.PriceSeries{}, nil
}

func (m *MockDatabase) GetLatestPriceTime(ctx context.Context, entryID string, commodity types.Commodity) (time.Time, error) {
	args := m.Called(ctx, entryID, commodity)
	if len(args) > 0 {
		return args.Get(0).(time.Time), args.Error(1)
	}
	return time.Time{}, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
