package types

import (
	"time"
)

// RefreshResult is the outcome of one successful refresh of an entry. It is
// never mutated after it has been returned; a new one is built every tick.
type RefreshResult struct {
	Electricity PriceSeries `json:"electricity"`
	Gas         PriceSeries `json:"gas"`

	// Account snapshots are only present when the entry is authenticated.
	MonthSummary   *MonthSummary        `json:"monthSummary,omitempty"`
	Invoices       *Invoices            `json:"invoices,omitempty"`
	Usage          *PeriodUsageAndCosts `json:"usage,omitempty"`
	User           *User                `json:"user,omitempty"`
	UserSites      []DeliverySite       `json:"userSites,omitempty"`
	SmartBatteries []SmartBattery       `json:"smartBatteries,omitempty"`
	EnodeChargers  []EnodeCharger       `json:"enodeChargers,omitempty"`

	// BatterySessions holds the month to date trading results, in the order
	// of SmartBatteries. Batteries whose sessions failed to load are missing.
	BatterySessions []SmartBatterySessions `json:"batterySessions,omitempty"`

	FetchedAt time.Time `json:"fetchedAt"`
}

// Series returns the series for c.
func (r *RefreshResult) Series(c Commodity) PriceSeries {
	if r == nil {
		return PriceSeries{}
	}
	if c == CommodityGas {
		return r.Gas
	}
	return r.Electricity
}

// UsableAt returns true when both commodities still have a point starting at
// or after now, meaning the result is still worth displaying.
func (r *RefreshResult) UsableAt(now time.Time) bool {
	if r == nil {
		return false
	}
	return r.Electricity.HasFuture(now) && r.Gas.HasFuture(now)
}
