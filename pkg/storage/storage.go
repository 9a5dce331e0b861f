package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/levenlabs/go-lflag"
)

var (
	ErrEntryNotFound = errors.New("entry not found")
	ErrEntryExists   = errors.New("entry already exists")
)

// Database defines the interface for persisting entries and price history.
type Database interface {
	// Entries
	ListEntries(ctx context.Context) ([]types.Entry, error)
	GetEntry(ctx context.Context, id string) (types.Entry, error)
	CreateEntry(ctx context.Context, entry types.Entry) error
	UpdateEntry(ctx context.Context, entry types.Entry) error
	// DeleteEntry removes the entry and its price history. Deleting a missing
	// entry is not an error.
	DeleteEntry(ctx context.Context, id string) error

	// Price history
	// UpsertPrices adds or replaces the points of prices, keyed by From.
	UpsertPrices(ctx context.Context, entryID string, commodity types.Commodity, prices types.PriceSeries) error
	GetPriceHistory(ctx context.Context, entryID string, commodity types.Commodity, start, end time.Time) (types.PriceSeries, error)
	// GetLatestPriceTime returns the From of the newest stored point, or the
	// zero time when there is none.
	GetLatestPriceTime(ctx context.Context, entryID string, commodity types.Commodity) (time.Time, error)

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore, postgres)")

	var p struct{ Database }

	fs := configuredFirestore()
	pg := configuredPostgres()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "postgres":
			if err := pg.Validate(); err != nil {
				panic(fmt.Sprintf("postgres validation failed: %v", err))
			}
			p.Database = pg
			if err := pg.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("postgres init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

// priceDocID is the key of a stored price point. RFC3339 in UTC sorts
// lexicographically in time order.
func priceDocID(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func validateEntryID(id string) error {
	if id == "" {
		return fmt.Errorf("entryID cannot be empty")
	}
	return nil
}
