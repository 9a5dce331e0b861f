package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/frankenergie/frankenergie/pkg/coordinator"
	"github.com/frankenergie/frankenergie/pkg/credentials"
	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/storage"
	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/levenlabs/go-lflag"
	"github.com/shopspring/decimal"
)

func main() {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	}
	s := storage.Configured()
	cipher := credentials.Configured()
	entriesFile := lflag.String("seed-entries-file", "", "YAML file with entries to import")
	entryID := lflag.String("seed-entry-id", "", "Entry to seed synthetic price history for")
	days := lflag.Int("seed-days", 7, "Number of days of price history to seed, ending tomorrow")
	lflag.Configure()

	ctx := context.Background()
	defer s.Close()

	if *entriesFile != "" {
		entries, err := coordinator.LoadEntriesFile(*entriesFile)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to load entries file", slog.Any("error", err))
			os.Exit(1)
		}
		created, err := coordinator.ImportEntries(ctx, s, cipher, entries, time.Now().UTC())
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to import entries", slog.Any("error", err))
			os.Exit(1)
		}
		log.Ctx(ctx).InfoContext(ctx, "imported entries", slog.Int("entries", len(entries)), slog.Int("created", created))
	}

	if *entryID == "" {
		return
	}
	start, end, err := seedWindow(time.Now(), *days)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "invalid seed-days", slog.Int("days", *days), slog.Any("error", err))
		os.Exit(1)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeding price history", slog.String("entryID", *entryID), slog.Int("days", *days))

	// Use a new random source
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	elec := make(types.PriceSeries, 0, *days*24)
	gas := make(types.PriceSeries, 0, *days*24)
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		elec = append(elec, electricityPoint(rng, t))
		gas = append(gas, gasPoint(t))
	}

	if err := s.UpsertPrices(ctx, *entryID, types.CommodityElectricity, elec); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed electricity prices", slog.Any("error", err))
		os.Exit(1)
	}
	if err := s.UpsertPrices(ctx, *entryID, types.CommodityGas, gas); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed gas prices", slog.Any("error", err))
		os.Exit(1)
	}

	fmt.Printf("Seeded %d hours of prices for %s from %s\n", len(elec), *entryID, start.Format(time.DateOnly))
	log.Ctx(ctx).InfoContext(ctx, "seeded price history successfully")
}

// seedWindow returns the hours to seed: days whole UTC days ending with
// tomorrow.
func seedWindow(now time.Time, days int) (time.Time, time.Time, error) {
	if days <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("days must be positive, got %d", days)
	}
	end := now.UTC().Truncate(24*time.Hour).AddDate(0, 0, 2)
	return end.AddDate(0, 0, -days), end, nil
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(5)
}

// electricityPoint follows the usual day-ahead shape: cheap at night and
// around noon when solar peaks, expensive in the morning and evening.
func electricityPoint(rng *rand.Rand, t time.Time) types.PricePoint {
	hour := float64(t.Hour())
	market := 0.09 +
		0.05*math.Exp(-math.Pow(hour-8, 2)/4) +
		0.09*math.Exp(-math.Pow(hour-19, 2)/5) -
		0.06*math.Exp(-math.Pow(hour-13, 2)/6)
	// Jitter
	market += (rng.Float64() * 0.02) - 0.01

	return types.PricePoint{
		From:                t,
		Till:                t.Add(time.Hour),
		MarketPrice:         money(market),
		MarketPriceTax:      money(market * 0.21),
		SourcingMarkupPrice: money(0.018),
		EnergyTaxPrice:      money(0.1316),
	}
}

// gasPoint changes once per gas day, which starts at 06:00.
func gasPoint(t time.Time) types.PricePoint {
	gasDay := t.Add(-6 * time.Hour).YearDay()
	market := 0.45 + 0.05*math.Sin(float64(gasDay))

	return types.PricePoint{
		From:                t,
		Till:                t.Add(time.Hour),
		MarketPrice:         money(market),
		MarketPriceTax:      money(market * 0.21),
		SourcingMarkupPrice: money(0.08),
		EnergyTaxPrice:      money(0.6996),
	}
}
