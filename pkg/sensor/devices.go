package sensor

import (
	"strconv"
	"time"

	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/go-openapi/strfmt"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

var deviceTotalDescriptions = []Description{
	{
		Key:           "total_batteries",
		Name:          "Total batteries",
		Service:       ServiceSmartBatteries,
		Authenticated: true,
		Number: func(d Data) (decimal.Decimal, bool) {
			if d.Result == nil || d.Result.SmartBatteries == nil {
				return decimal.Zero, false
			}
			return decimal.NewFromInt(int64(len(d.Result.SmartBatteries))), true
		},
		Attrs: func(d Data) map[string]any {
			capacity := 0.0
			for _, b := range d.Result.SmartBatteries {
				capacity += b.Capacity
			}
			return map[string]any{"Total capacity": capacity}
		},
	},
	{
		Key:           "enode_total_chargers",
		Name:          "Total chargers",
		Service:       ServiceEnodeChargers,
		Authenticated: true,
		Number: func(d Data) (decimal.Decimal, bool) {
			if d.Result == nil || d.Result.EnodeChargers == nil {
				return decimal.Zero, false
			}
			return decimal.NewFromInt(int64(len(d.Result.EnodeChargers))), true
		},
		Attrs: func(d Data) map[string]any {
			var charging, pluggedIn int
			for _, c := range d.Result.EnodeChargers {
				if c.ChargeState.IsCharging {
					charging++
				}
				if c.ChargeState.IsPluggedIn {
					pluggedIn++
				}
			}
			return map[string]any{"Charging": charging, "Plugged in": pluggedIn}
		},
	},
}

// DeviceDescriptions returns the sensors of every smart battery, its trading
// sessions and every EV charger in result. Batteries are keyed from 0 and
// chargers from 1, in the order the API lists them.
func DeviceDescriptions(result *types.RefreshResult) []Description {
	if result == nil {
		return nil
	}
	var descs []Description
	for i, b := range result.SmartBatteries {
		descs = append(descs, batteryDescriptions(i, b)...)
		for _, s := range result.BatterySessions {
			if s.DeviceID == b.ID {
				descs = append(descs, sessionDescriptions(i, s)...)
				break
			}
		}
	}
	for i, c := range result.EnodeChargers {
		descs = append(descs, chargerDescriptions(i+1, c)...)
	}
	return descs
}

func textOf(v string) func(Data) (string, bool) {
	return func(Data) (string, bool) {
		return v, v != ""
	}
}

func nullText(v null.String) func(Data) (string, bool) {
	return func(Data) (string, bool) {
		return v.String, v.Valid
	}
}

func boolText(v bool) func(Data) (string, bool) {
	return textOf(strconv.FormatBool(v))
}

// timeText renders t in Dutch local time. A zero t has no value.
func timeText(t time.Time) func(Data) (string, bool) {
	return func(d Data) (string, bool) {
		if t.IsZero() {
			return "", false
		}
		return t.In(d.Loc).Format(time.RFC3339), true
	}
}

func nullTimeText(t null.Time) func(Data) (string, bool) {
	if !t.Valid {
		return func(Data) (string, bool) { return "", false }
	}
	return timeText(t.Time)
}

func numberOf(v decimal.Decimal) func(Data) (decimal.Decimal, bool) {
	return func(Data) (decimal.Decimal, bool) {
		return v, true
	}
}

func nullFloat(v null.Float) func(Data) (decimal.Decimal, bool) {
	return func(Data) (decimal.Decimal, bool) {
		if !v.Valid {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v.Float64), true
	}
}

func batteryDescriptions(i int, b types.SmartBattery) []Description {
	prefix := "smart_battery_" + strconv.Itoa(i) + "_"
	name := "Battery " + strconv.Itoa(i+1) + " "
	d := func(key, label string) Description {
		return Description{
			Key:           prefix + key,
			Name:          name + label,
			Service:       ServiceSmartBatteries,
			Authenticated: true,
		}
	}

	brand := d("brand", "Brand")
	brand.Text = textOf(b.Brand)
	capacity := d("capacity", "Capacity")
	capacity.Unit = UnitKWh
	capacity.Precision = 1
	capacity.Number = numberOf(decimal.NewFromFloat(b.Capacity))
	ref := d("external_reference", "External Reference")
	ref.Text = textOf(b.ExternalReference)
	id := d("id", "ID")
	id.Text = textOf(b.ID)
	charge := d("max_charge_power", "Max Charge Power")
	charge.Unit = UnitKW
	charge.Precision = 1
	charge.Number = numberOf(decimal.NewFromFloat(b.MaxChargePower))
	discharge := d("max_discharge_power", "Max Discharge Power")
	discharge.Unit = UnitKW
	discharge.Precision = 1
	discharge.Number = numberOf(decimal.NewFromFloat(b.MaxDischargePower))
	provider := d("provider", "Provider")
	provider.Text = textOf(b.Provider)
	created := d("created_at", "Created At")
	created.Text = timeText(b.CreatedAt)
	updated := d("updated_at", "Updated At")
	updated.Text = timeText(b.UpdatedAt)

	return []Description{brand, capacity, ref, id, charge, discharge, provider, created, updated}
}

type sessionAttr struct {
	Date                    string `json:"date"`
	TradingResult           string `json:"trading_result"`
	CumulativeTradingResult string `json:"cumulative_trading_result"`
}

func sessionDescriptions(i int, s types.SmartBatterySessions) []Description {
	prefix := "smart_battery_" + strconv.Itoa(i) + "_"
	name := "Battery " + strconv.Itoa(i+1) + " "
	d := func(key, label string) Description {
		return Description{
			Key:           prefix + key,
			Name:          name + label,
			Service:       ServiceBatterySessions,
			Authenticated: true,
		}
	}
	euro := func(key, label string, v decimal.Decimal) Description {
		desc := d(key, label)
		desc.Unit = UnitEuro
		desc.Precision = 2
		desc.Number = numberOf(v)
		return desc
	}
	date := func(v strfmt.Date) func(Data) (string, bool) {
		if time.Time(v).IsZero() {
			return textOf("")
		}
		return textOf(v.String())
	}

	deviceID := d("device_id", "Device ID")
	deviceID.Text = textOf(s.DeviceID)
	start := d("period_start_date", "Period Start Date")
	start.Text = date(s.PeriodStartDate)
	end := d("period_end_date", "Period End Date")
	end.Text = date(s.PeriodEndDate)
	index := d("period_trade_index", "Period Trade Index")
	index.Number = func(Data) (decimal.Decimal, bool) {
		return decimal.NewFromInt(s.PeriodTradeIndex.Int64), s.PeriodTradeIndex.Valid
	}

	total := euro("period_total_result", "Period Total Result", s.PeriodTotalResult)
	total.Attrs = func(Data) map[string]any {
		sessions := make([]sessionAttr, 0, len(s.Sessions))
		for _, session := range s.Sessions {
			sessions = append(sessions, sessionAttr{
				Date:                    session.Date.String(),
				TradingResult:           session.TradingResult.StringFixed(2),
				CumulativeTradingResult: session.CumulativeTradingResult.StringFixed(2),
			})
		}
		return map[string]any{
			"period_start_date": s.PeriodStartDate.String(),
			"period_end_date":   s.PeriodEndDate.String(),
			"sessions":          sessions,
		}
	}

	return []Description{
		deviceID,
		start,
		end,
		index,
		euro("period_trading_result", "Period Trading Result", s.PeriodTradingResult),
		total,
		euro("period_imbalance_result", "Period Imbalance Result", s.PeriodImbalanceResult),
		euro("period_epex_result", "Period EPEX Result", s.PeriodEpexResult),
		euro("frank_slim_bonus", "Frank Slim Bonus", s.PeriodFrankSlim),
	}
}

func chargerDescriptions(n int, c types.EnodeCharger) []Description {
	suffix := "_" + strconv.Itoa(n)
	name := "Charger " + strconv.Itoa(n) + " "
	d := func(key, label string) Description {
		return Description{
			Key:           key + suffix,
			Name:          name + label,
			Service:       ServiceEnodeChargers,
			Authenticated: true,
		}
	}
	state := c.ChargeState
	settings := c.ChargeSettings

	id := d("enode_charger_id", "ID")
	id.Text = textOf(c.ID)
	brand := d("enode_charger_brand", "Brand")
	brand.Text = nullText(c.Brand)
	model := d("enode_charger_model", "Model")
	model.Text = nullText(c.Model)
	chargerName := d("enode_charger_name", "Name")
	chargerName.Text = textOf(c.Name())
	smart := d("can_smart_charge", "Can Smart Charge")
	smart.Text = boolText(c.CanSmartCharge)
	reachable := d("enode_is_reachable", "Is Reachable")
	reachable.Text = boolText(c.IsReachable)

	pluggedIn := d("is_plugged_in", "Is Plugged In")
	pluggedIn.Text = boolText(state.IsPluggedIn)
	charging := d("is_charging", "Is Charging")
	charging.Text = boolText(state.IsCharging)
	delivery := d("power_delivery_state", "Power Delivery State")
	delivery.Text = nullText(state.PowerDeliveryState)
	rate := d("charge_rate", "Charge Rate")
	rate.Unit = UnitKW
	rate.Precision = 2
	rate.Number = nullFloat(state.ChargeRate)
	level := d("battery_level", "Battery Level")
	level.Unit = UnitPercent
	level.Number = nullFloat(state.BatteryLevel)
	updated := d("last_updated", "Last Updated")
	updated.Text = nullTimeText(state.LastUpdated)

	capacity := d("charge_capacity", "Charge Capacity")
	capacity.Unit = UnitKWh
	capacity.Precision = 1
	capacity.Number = nullFloat(settings.Capacity)
	smartEnabled := d("is_smart_charging_enabled", "Is Smart Charging Enabled")
	smartEnabled.Text = boolText(settings.IsSmartChargingEnabled)
	solarEnabled := d("is_solar_charging_enabled", "Is Solar Charging Enabled")
	solarEnabled.Text = boolText(settings.IsSolarChargingEnabled)
	deadline := d("calculated_deadline", "Calculated Deadline")
	deadline.Text = nullTimeText(settings.CalculatedDeadline)
	initial := d("initial_charge_timestamp", "Initial Charge Timestamp")
	initial.Text = nullTimeText(settings.InitialChargeTimestamp)

	return []Description{
		id, brand, model, chargerName, smart, reachable,
		pluggedIn, charging, delivery, rate, level, updated,
		capacity, smartEnabled, solarEnabled, deadline, initial,
	}
}
