package types

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Commodity identifies which energy carrier a price series is for.
type Commodity string

const (
	CommodityElectricity Commodity = "electricity"
	CommodityGas         Commodity = "gas"
)

// Valid returns true for the commodities Frank Energie publishes prices for.
func (c Commodity) Valid() bool {
	return c == CommodityElectricity || c == CommodityGas
}

const (
	UnitElectricity = "€/kWh"
	UnitGas         = "€/m³"
)

// Unit returns the price unit for the commodity.
func (c Commodity) Unit() string {
	if c == CommodityGas {
		return UnitGas
	}
	return UnitElectricity
}

// PricePoint is the price breakdown for the half-open interval [From, Till).
// All amounts are in euro per unit of the commodity.
type PricePoint struct {
	From time.Time `json:"from"`
	Till time.Time `json:"till"`

	// MarketPrice is the wholesale (EPEX/TTF) price.
	MarketPrice decimal.Decimal `json:"marketPrice"`
	// MarketPriceTax is the VAT on the market price.
	MarketPriceTax decimal.Decimal `json:"marketPriceTax"`
	// SourcingMarkupPrice is the supplier markup, including VAT.
	SourcingMarkupPrice decimal.Decimal `json:"sourcingMarkupPrice"`
	// EnergyTaxPrice is the energy tax, including VAT.
	EnergyTaxPrice decimal.Decimal `json:"energyTaxPrice"`
}

// Total is the all-in price for the interval.
func (p PricePoint) Total() decimal.Decimal {
	return p.MarketPrice.Add(p.MarketPriceTax).Add(p.SourcingMarkupPrice).Add(p.EnergyTaxPrice)
}

// MarketPriceWithTax is the market price including its VAT.
func (p PricePoint) MarketPriceWithTax() decimal.Decimal {
	return p.MarketPrice.Add(p.MarketPriceTax)
}

// MarketPriceWithTaxAndMarkup is the market price including VAT and the
// sourcing markup but excluding energy tax.
func (p PricePoint) MarketPriceWithTaxAndMarkup() decimal.Decimal {
	return p.MarketPriceWithTax().Add(p.SourcingMarkupPrice)
}

// Contains returns true if t falls within [From, Till).
func (p PricePoint) Contains(t time.Time) bool {
	return !t.Before(p.From) && t.Before(p.Till)
}

// PriceComponent extracts one amount from a PricePoint.
type PriceComponent func(PricePoint) decimal.Decimal

var (
	ComponentTotal                  PriceComponent = PricePoint.Total
	ComponentMarket                 PriceComponent = func(p PricePoint) decimal.Decimal { return p.MarketPrice }
	ComponentMarketWithTax          PriceComponent = PricePoint.MarketPriceWithTax
	ComponentMarketWithTaxAndMarkup PriceComponent = PricePoint.MarketPriceWithTaxAndMarkup
	ComponentMarketTax              PriceComponent = func(p PricePoint) decimal.Decimal { return p.MarketPriceTax }
	ComponentSourcingMarkup         PriceComponent = func(p PricePoint) decimal.Decimal { return p.SourcingMarkupPrice }
	ComponentEnergyTax              PriceComponent = func(p PricePoint) decimal.Decimal { return p.EnergyTaxPrice }
	ComponentFixed                  PriceComponent = func(p PricePoint) decimal.Decimal { return p.SourcingMarkupPrice.Add(p.EnergyTaxPrice) }
)

// PriceSeries is a list of PricePoints for one commodity ordered by From.
// A series with no data is empty, never nil, once it has passed through
// Normalize.
type PriceSeries []PricePoint

// Normalize returns a copy sorted by From with duplicate From values removed
// (the first occurrence wins). A nil series becomes an empty one.
func (s PriceSeries) Normalize() PriceSeries {
	out := make(PriceSeries, 0, len(s))
	out = append(out, s...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].From.Before(out[j].From)
	})
	deduped := out[:0]
	for i, p := range out {
		if i > 0 && p.From.Equal(deduped[len(deduped)-1].From) {
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}

// Concat appends other to s. Points of other that start before the end of the
// last kept point overlap s and are dropped, so s takes precedence. Neither
// input is modified.
func (s PriceSeries) Concat(other PriceSeries) PriceSeries {
	out := make(PriceSeries, 0, len(s)+len(other))
	out = append(out, s...)
	for _, p := range other {
		if n := len(out); n > 0 && p.From.Before(out[n-1].Till) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// At returns the point covering t or false if there is none.
func (s PriceSeries) At(t time.Time) (PricePoint, bool) {
	for _, p := range s {
		if p.Contains(t) {
			return p, true
		}
	}
	return PricePoint{}, false
}

// CurrentHour returns the point covering now.
func (s PriceSeries) CurrentHour(now time.Time) (PricePoint, bool) {
	return s.At(now)
}

// PreviousHour returns the point covering the hour before now.
func (s PriceSeries) PreviousHour(now time.Time) (PricePoint, bool) {
	return s.At(now.Add(-time.Hour))
}

// NextHour returns the point covering the hour after now.
func (s PriceSeries) NextHour(now time.Time) (PricePoint, bool) {
	return s.At(now.Add(time.Hour))
}

// Between returns the points with start <= From < end.
func (s PriceSeries) Between(start, end time.Time) PriceSeries {
	out := PriceSeries{}
	for _, p := range s {
		if !p.From.Before(start) && p.From.Before(end) {
			out = append(out, p)
		}
	}
	return out
}

// Day returns the points starting on the calendar day of t in loc.
func (s PriceSeries) Day(t time.Time, loc *time.Location) PriceSeries {
	start, end := DayBounds(t, loc)
	return s.Between(start, end)
}

// Today returns the points starting on the same calendar day as now in loc.
func (s PriceSeries) Today(now time.Time, loc *time.Location) PriceSeries {
	return s.Day(now, loc)
}

// Tomorrow returns the points starting on the calendar day after now in loc.
func (s PriceSeries) Tomorrow(now time.Time, loc *time.Location) PriceSeries {
	start, _ := DayBounds(now, loc)
	return s.Day(start.AddDate(0, 0, 1), loc)
}

// Upcoming returns the points that have not ended yet, including the one
// covering now.
func (s PriceSeries) Upcoming(now time.Time) PriceSeries {
	out := PriceSeries{}
	for _, p := range s {
		if p.Till.After(now) {
			out = append(out, p)
		}
	}
	return out
}

// After returns the points that start after t.
func (s PriceSeries) After(t time.Time) PriceSeries {
	out := PriceSeries{}
	for _, p := range s {
		if p.From.After(t) {
			out = append(out, p)
		}
	}
	return out
}

// HasFuture returns true when at least one point starts at or after now.
func (s PriceSeries) HasFuture(now time.Time) bool {
	for _, p := range s {
		if !p.From.Before(now) {
			return true
		}
	}
	return false
}

// FutureCount returns how many points start at or after now.
func (s PriceSeries) FutureCount(now time.Time) int {
	var n int
	for _, p := range s {
		if !p.From.Before(now) {
			n++
		}
	}
	return n
}

// CompleteFor returns true if the series has one point for every hour of the
// calendar day of t in loc (23, 24 or 25 depending on DST).
func (s PriceSeries) CompleteFor(t time.Time, loc *time.Location) bool {
	start, end := DayBounds(t, loc)
	hours := int(end.Sub(start) / time.Hour)
	return len(s.Between(start, end)) == hours
}

// Min returns the point with the lowest value for c.
func (s PriceSeries) Min(c PriceComponent) (PricePoint, bool) {
	return s.pick(c, func(a, b decimal.Decimal) bool { return a.LessThan(b) })
}

// Max returns the point with the highest value for c.
func (s PriceSeries) Max(c PriceComponent) (PricePoint, bool) {
	return s.pick(c, func(a, b decimal.Decimal) bool { return a.GreaterThan(b) })
}

func (s PriceSeries) pick(c PriceComponent, better func(a, b decimal.Decimal) bool) (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	best := s[0]
	for _, p := range s[1:] {
		if better(c(p), c(best)) {
			best = p
		}
	}
	return best, true
}

// Average returns the mean of c over the series.
func (s PriceSeries) Average(c PriceComponent) (decimal.Decimal, bool) {
	if len(s) == 0 {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, p := range s {
		sum = sum.Add(c(p))
	}
	return sum.Div(decimal.NewFromInt(int64(len(s)))), true
}

// DayBounds returns local midnight of the day containing t and the following
// midnight.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// GasDaySplit splits the gas points starting on the calendar day of t in loc
// into those before 06:00 local time (the tail of the previous gas day) and
// those from 06:00 onwards.
func (s PriceSeries) GasDaySplit(t time.Time, loc *time.Location) (PriceSeries, PriceSeries) {
	start, end := DayBounds(t, loc)
	six := time.Date(start.Year(), start.Month(), start.Day(), 6, 0, 0, 0, start.Location())
	return s.Between(start, six), s.Between(six, end)
}

// MarketPrices is the pair of series returned by a single price query.
type MarketPrices struct {
	Electricity PriceSeries `json:"electricity"`
	Gas         PriceSeries `json:"gas"`
}

// Normalize applies PriceSeries.Normalize to both commodities.
func (m MarketPrices) Normalize() MarketPrices {
	return MarketPrices{
		Electricity: m.Electricity.Normalize(),
		Gas:         m.Gas.Normalize(),
	}
}

// Series returns the series for c.
func (m MarketPrices) Series(c Commodity) PriceSeries {
	if c == CommodityGas {
		return m.Gas
	}
	return m.Electricity
}
