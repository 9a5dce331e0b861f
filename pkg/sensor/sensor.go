// Package sensor turns a refresh result into the flat list of named values
// that display clients show, one per sensor description.
package sensor

import (
	"fmt"
	"slices"
	"time"
	_ "time/tzdata"

	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

var (
	// Frank Energie days and the gas day both follow Dutch local time
	amsterdam = func() *time.Location {
		loc, err := time.LoadLocation("Europe/Amsterdam")
		if err != nil {
			panic(fmt.Errorf("failed to load amsterdam location: %w", err))
		}
		return loc
	}()
)

const (
	ServicePrices          = "Prices"
	ServiceCosts           = "Costs"
	ServiceUsage           = "Usage"
	ServiceUser            = "User"
	ServiceSmartBatteries  = "Smart Batteries"
	ServiceBatterySessions = "Smart Battery Sessions"
	ServiceEnodeChargers   = "Enode Chargers"
)

const (
	UnitEuro    = "€"
	UnitPercent = "%"
	UnitKWh     = "kWh"
	UnitKW      = "kW"
	UnitM3      = "m³"
)

// Description describes one sensor. Exactly one of Number and Text is set.
type Description struct {
	Key     string
	Name    string
	Service string
	Unit    string
	// Precision is the number of decimals Number values are rounded to.
	Precision int32
	// Authenticated sensors are only rendered for entries that are logged in.
	Authenticated bool

	Number func(d Data) (decimal.Decimal, bool)
	Text   func(d Data) (string, bool)
	Attrs  func(d Data) map[string]any
}

// State is the rendered value of a sensor. Value is null when the sensor has
// no value for the current data.
type State struct {
	Key        string         `json:"key"`
	Name       string         `json:"name"`
	Service    string         `json:"service"`
	Unit       string         `json:"unit,omitempty"`
	Value      null.String    `json:"value"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Data is what description functions compute their values from.
type Data struct {
	Now    time.Time
	Loc    *time.Location
	Result *types.RefreshResult
}

func (d Data) series(c types.Commodity) types.PriceSeries {
	return d.Result.Series(c)
}

func (d Data) today(c types.Commodity) types.PriceSeries {
	return d.series(c).Today(d.Now, d.Loc)
}

func (d Data) tomorrow(c types.Commodity) types.PriceSeries {
	return d.series(c).Tomorrow(d.Now, d.Loc)
}

func (d Data) upcoming(c types.Commodity) types.PriceSeries {
	return d.series(c).Upcoming(d.Now)
}

func (d Data) monthSummary() *types.MonthSummary {
	if d.Result == nil {
		return nil
	}
	return d.Result.MonthSummary
}

func (d Data) invoices() *types.Invoices {
	if d.Result == nil {
		return nil
	}
	return d.Result.Invoices
}

func (d Data) usage() *types.PeriodUsageAndCosts {
	if d.Result == nil {
		return nil
	}
	return d.Result.Usage
}

func (d Data) user() *types.User {
	if d.Result == nil {
		return nil
	}
	return d.Result.User
}

// site returns the delivery site the entry is supplied on, preferring one
// that is in delivery.
func (d Data) site() (types.DeliverySite, bool) {
	if d.Result == nil || len(d.Result.UserSites) == 0 {
		return types.DeliverySite{}, false
	}
	if active := types.InDeliverySites(d.Result.UserSites); len(active) > 0 {
		return active[0], true
	}
	return d.Result.UserSites[0], true
}

// Render evaluates every description against result, followed by one set of
// sensors per smart battery and charger in result. Account sensors are
// skipped unless authenticated is true. A nil result renders every sensor
// with a null value.
func Render(now time.Time, result *types.RefreshResult, authenticated bool) []State {
	d := Data{Now: now, Loc: amsterdam, Result: result}
	descs := slices.Concat(Descriptions, DeviceDescriptions(result))
	states := make([]State, 0, len(descs))
	for _, desc := range descs {
		if desc.Authenticated && !authenticated {
			continue
		}
		states = append(states, desc.Render(d))
	}
	return states
}

// Render evaluates the description against d.
func (desc Description) Render(d Data) State {
	s := State{
		Key:     desc.Key,
		Name:    desc.Name,
		Service: desc.Service,
		Unit:    desc.Unit,
	}
	switch {
	case desc.Number != nil:
		if v, ok := desc.Number(d); ok {
			s.Value = null.StringFrom(v.StringFixed(desc.Precision))
		}
	case desc.Text != nil:
		if v, ok := desc.Text(d); ok {
			s.Value = null.StringFrom(v)
		}
	}
	if desc.Attrs != nil && d.Result != nil {
		s.Attributes = desc.Attrs(d)
	}
	return s
}
