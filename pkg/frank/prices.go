package frank

import (
	"context"
	"log/slog"
	"time"

	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/go-openapi/strfmt"
)

// Prices returns the public market prices for the days in [start, end). Only
// the calendar dates of start and end are used.
func (c *Client) Prices(ctx context.Context, start, end time.Time) (types.MarketPrices, error) {
	var data struct {
		Electricity types.PriceSeries `json:"marketPricesElectricity"`
		Gas         types.PriceSeries `json:"marketPricesGas"`
	}
	err := c.do(ctx, "MarketPrices", marketPricesQuery, map[string]any{
		"startDate": strfmt.Date(start),
		"endDate":   strfmt.Date(end),
	}, &data)
	if err != nil {
		return types.MarketPrices{}, err
	}

	prices := types.MarketPrices{Electricity: data.Electricity, Gas: data.Gas}.Normalize()
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched market prices",
		slog.Time("start", start),
		slog.Int("electricity", len(prices.Electricity)),
		slog.Int("gas", len(prices.Gas)),
	)
	return prices, nil
}

// UserPrices returns the prices specific to the customer's contract for
// siteReference. Either series may be empty when the contract does not
// cover that commodity or the prices are not published yet.
func (c *Client) UserPrices(ctx context.Context, start time.Time, siteReference string, end time.Time) (types.MarketPrices, error) {
	if err := c.requireAuth("CustomerMarketPrices"); err != nil {
		return types.MarketPrices{}, err
	}

	var data struct {
		CustomerMarketPrices *struct {
			ElectricityPrices types.PriceSeries `json:"electricityPrices"`
			GasPrices         types.PriceSeries `json:"gasPrices"`
		} `json:"customerMarketPrices"`
	}
	err := c.do(ctx, "CustomerMarketPrices", customerMarketPricesQuery, map[string]any{
		"startDate":     strfmt.Date(start),
		"endDate":       strfmt.Date(end),
		"siteReference": siteReference,
	}, &data)
	if err != nil {
		return types.MarketPrices{}, err
	}

	var prices types.MarketPrices
	if data.CustomerMarketPrices != nil {
		prices.Electricity = data.CustomerMarketPrices.ElectricityPrices
		prices.Gas = data.CustomerMarketPrices.GasPrices
	}
	prices = prices.Normalize()
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched customer prices",
		slog.Time("start", start),
		slog.String("siteReference", siteReference),
		slog.Int("electricity", len(prices.Electricity)),
		slog.Int("gas", len(prices.Gas)),
	)
	return prices, nil
}
