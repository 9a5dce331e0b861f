package sensor

import (
	"strconv"
	"strings"
	"time"

	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/shopspring/decimal"
)

// Descriptions is every sensor in display order.
var Descriptions = func() []Description {
	var all []Description
	all = append(all, priceDescriptions(types.CommodityElectricity, "elec", "electricity")...)
	all = append(all, priceDescriptions(types.CommodityGas, "gas", "gas")...)
	all = append(all, gasDayDescriptions...)
	all = append(all, costDescriptions...)
	all = append(all, usageDescriptions...)
	all = append(all, userDescriptions...)
	all = append(all, deviceTotalDescriptions...)
	return all
}()

type view func(d Data, c types.Commodity) types.PriceSeries

var (
	viewAll      view = Data.series
	viewToday    view = Data.today
	viewTomorrow view = Data.tomorrow
	viewUpcoming view = Data.upcoming
)

type lookup func(s types.PriceSeries, now time.Time) (types.PricePoint, bool)

func hourValue(c types.Commodity, at lookup, comp types.PriceComponent) func(Data) (decimal.Decimal, bool) {
	return func(d Data) (decimal.Decimal, bool) {
		p, ok := at(d.series(c), d.Now)
		if !ok {
			return decimal.Zero, false
		}
		return comp(p), true
	}
}

func extreme(c types.Commodity, v view, highest bool) (func(Data) (decimal.Decimal, bool), func(Data) map[string]any) {
	pick := func(d Data) (types.PricePoint, bool) {
		if highest {
			return v(d, c).Max(types.ComponentTotal)
		}
		return v(d, c).Min(types.ComponentTotal)
	}
	value := func(d Data) (decimal.Decimal, bool) {
		p, ok := pick(d)
		return p.Total(), ok
	}
	attrs := func(d Data) map[string]any {
		p, ok := pick(d)
		if !ok {
			return nil
		}
		return map[string]any{"time": p.From.In(d.Loc)}
	}
	return value, attrs
}

func average(c types.Commodity, v view, comp types.PriceComponent) func(Data) (decimal.Decimal, bool) {
	return func(d Data) (decimal.Decimal, bool) {
		return v(d, c).Average(comp)
	}
}

type priceAttr struct {
	From  time.Time `json:"from"`
	Till  time.Time `json:"till"`
	Price string    `json:"price"`
}

func priceList(c types.Commodity, v view) func(Data) map[string]any {
	return func(d Data) map[string]any {
		s := v(d, c)
		prices := make([]priceAttr, 0, len(s))
		for _, p := range s {
			prices = append(prices, priceAttr{
				From:  p.From.In(d.Loc),
				Till:  p.Till.In(d.Loc),
				Price: p.Total().StringFixed(4),
			})
		}
		return map[string]any{"prices": prices}
	}
}

var hundred = decimal.NewFromInt(100)

// percentTax is the VAT on the current market price as a percentage of that
// price. It is unknown while either amount is zero.
func percentTax(c types.Commodity) func(Data) (decimal.Decimal, bool) {
	return func(d Data) (decimal.Decimal, bool) {
		p, ok := d.series(c).CurrentHour(d.Now)
		if !ok || p.MarketPrice.IsZero() || p.MarketPriceTax.IsZero() {
			return decimal.Zero, false
		}
		return hundred.Mul(p.MarketPriceTax).Div(p.MarketPrice), true
	}
}

func priceDescriptions(c types.Commodity, prefix, label string) []Description {
	unit := c.Unit()
	d := func(key, name string, precision int32, number func(Data) (decimal.Decimal, bool), attrs func(Data) map[string]any) Description {
		return Description{
			Key:       prefix + "_" + key,
			Name:      name,
			Service:   ServicePrices,
			Unit:      unit,
			Precision: precision,
			Number:    number,
			Attrs:     attrs,
		}
	}
	cur := types.PriceSeries.CurrentHour
	prev := types.PriceSeries.PreviousHour
	next := types.PriceSeries.NextHour

	minToday, minTodayAttrs := extreme(c, viewToday, false)
	maxToday, maxTodayAttrs := extreme(c, viewToday, true)
	minTomorrow, minTomorrowAttrs := extreme(c, viewTomorrow, false)
	maxTomorrow, maxTomorrowAttrs := extreme(c, viewTomorrow, true)
	minUpcoming, minUpcomingAttrs := extreme(c, viewUpcoming, false)
	maxUpcoming, maxUpcomingAttrs := extreme(c, viewUpcoming, true)
	minAll, minAllAttrs := extreme(c, viewAll, false)
	maxAll, maxAllAttrs := extreme(c, viewAll, true)

	descs := []Description{
		d("markup", "Current "+label+" price (All-in)", 3, hourValue(c, cur, types.ComponentTotal), priceList(c, viewAll)),
		d("market", "Current "+label+" market price", 3, hourValue(c, cur, types.ComponentMarket), nil),
		d("tax", "Current "+label+" price including tax", 3, hourValue(c, cur, types.ComponentMarketWithTax), nil),
		d("tax_markup", "Current "+label+" price including tax and markup", 3, hourValue(c, cur, types.ComponentMarketWithTaxAndMarkup), nil),
		d("tax_vat", "Current "+label+" VAT price", 3, hourValue(c, cur, types.ComponentMarketTax), nil),
		d("sourcing", "Current "+label+" sourcing markup", 3, hourValue(c, cur, types.ComponentSourcingMarkup), nil),
		d("tax_only", "Current "+label+" tax only", 5, hourValue(c, cur, types.ComponentEnergyTax), nil),
		d("fixed", "Fixed "+label+" cost per unit", 6, hourValue(c, cur, types.ComponentFixed), nil),
		d("var", "Variable "+label+" cost per unit", 6, hourValue(c, cur, types.ComponentMarketWithTax), nil),

		d("previoushour", "Previous hour "+label+" price (All-in)", 3, hourValue(c, prev, types.ComponentTotal), nil),
		d("nexthour", "Next hour "+label+" price (All-in)", 3, hourValue(c, next, types.ComponentTotal), nil),
		d("previoushour_market", "Previous hour "+label+" market price", 3, hourValue(c, prev, types.ComponentMarket), nil),
		d("nexthour_market", "Next hour "+label+" market price", 3, hourValue(c, next, types.ComponentMarket), nil),

		d("min", "Lowest "+label+" price today (All-in)", 4, minToday, minTodayAttrs),
		d("max", "Highest "+label+" price today (All-in)", 4, maxToday, maxTodayAttrs),
		d("tomorrow_min", "Lowest "+label+" price tomorrow (All-in)", 4, minTomorrow, minTomorrowAttrs),
		d("tomorrow_max", "Highest "+label+" price tomorrow (All-in)", 4, maxTomorrow, maxTomorrowAttrs),
		d("upcoming_min", "Lowest "+label+" price upcoming hours (All-in)", 4, minUpcoming, minUpcomingAttrs),
		d("upcoming_max", "Highest "+label+" price upcoming hours (All-in)", 4, maxUpcoming, maxUpcomingAttrs),
		d("all_min", "Lowest "+label+" price all hours (All-in)", 4, minAll, minAllAttrs),
		d("all_max", "Highest "+label+" price all hours (All-in)", 4, maxAll, maxAllAttrs),

		d("avg", "Average "+label+" price today (All-in)", 3, average(c, viewToday, types.ComponentTotal), priceList(c, viewToday)),
		d("avg_tax", "Average "+label+" price today including tax", 3, average(c, viewToday, types.ComponentMarketWithTax), nil),
		d("avg_tax_markup", "Average "+label+" price today including tax and markup", 3, average(c, viewToday, types.ComponentMarketWithTaxAndMarkup), nil),
		d("avg_market", "Average "+label+" market price today", 3, average(c, viewToday, types.ComponentMarket), nil),
		d("tomorrow_avg", "Average "+label+" price tomorrow (All-in)", 3, average(c, viewTomorrow, types.ComponentTotal), priceList(c, viewTomorrow)),
		d("tomorrow_avg_tax", "Average "+label+" price tomorrow including tax", 3, average(c, viewTomorrow, types.ComponentMarketWithTax), nil),
		d("tomorrow_avg_tax_markup", "Average "+label+" price tomorrow including tax and markup", 3, average(c, viewTomorrow, types.ComponentMarketWithTaxAndMarkup), nil),
		d("tomorrow_avg_market", "Average "+label+" market price tomorrow", 3, average(c, viewTomorrow, types.ComponentMarket), nil),
		d("upcoming", "Average "+label+" price upcoming hours (All-in)", 3, average(c, viewUpcoming, types.ComponentTotal), priceList(c, viewUpcoming)),
		d("market_upcoming", "Average "+label+" market price upcoming hours", 3, average(c, viewUpcoming, types.ComponentMarket), nil),
		d("all", "Average "+label+" price all hours (All-in)", 3, average(c, viewAll, types.ComponentTotal), nil),
	}
	percent := d("market_percent_tax", strings.ToUpper(label[:1])+label[1:]+" market percent tax", 0, percentTax(c), nil)
	percent.Unit = UnitPercent
	descs = append(descs, percent)

	count := func(key, name string, n func(Data) int) Description {
		return Description{
			Key:     prefix + "_" + key,
			Name:    name,
			Service: ServicePrices,
			Number: func(d Data) (decimal.Decimal, bool) {
				if d.Result == nil {
					return decimal.Zero, false
				}
				return decimal.NewFromInt(int64(n(d))), true
			},
		}
	}
	hourcount := count("hourcount", "Number of hours with "+label+" prices loaded", func(d Data) int {
		return len(d.series(c))
	})
	hourcount.Attrs = func(d Data) map[string]any {
		now := d.Now.In(d.Loc)
		return map[string]any{
			"today_complete":    d.series(c).CompleteFor(now, d.Loc),
			"tomorrow_complete": d.series(c).CompleteFor(now.AddDate(0, 0, 1), d.Loc),
		}
	}
	return append(descs,
		hourcount,
		count("future_hourcount", "Number of future hours with "+label+" prices", func(d Data) int {
			return d.series(c).FutureCount(d.Now)
		}),
	)
}

// gasSplit averages the all-in gas price of the hours before or after 06:00
// on the day offset days from today.
func gasSplit(offset int, after bool) (func(Data) (decimal.Decimal, bool), func(Data) map[string]any) {
	part := func(d Data) types.PriceSeries {
		start, _ := types.DayBounds(d.Now, d.Loc)
		before, afterSix := d.series(types.CommodityGas).GasDaySplit(start.AddDate(0, 0, offset), d.Loc)
		if after {
			return afterSix
		}
		return before
	}
	value := func(d Data) (decimal.Decimal, bool) {
		return part(d).Average(types.ComponentTotal)
	}
	attrs := func(d Data) map[string]any {
		return map[string]any{"Number of hours": len(part(d))}
	}
	return value, attrs
}

var gasDayDescriptions = func() []Description {
	gas := func(key, name string, offset int, after bool) Description {
		value, attrs := gasSplit(offset, after)
		return Description{
			Key:       key,
			Name:      name,
			Service:   ServicePrices,
			Unit:      types.UnitGas,
			Precision: 3,
			Number:    value,
			Attrs:     attrs,
		}
	}
	return []Description{
		gas("gas_markup_before6am", "Gas price before 6AM (All-in)", 0, false),
		gas("gas_markup_after6am", "Gas price after 6AM (All-in)", 0, true),
		gas("gas_tomorrow_before6am", "Gas price tomorrow before 6AM (All-in)", 1, false),
		gas("gas_tomorrow_after6am", "Gas price tomorrow after 6AM (All-in)", 1, true),
	}
}()

func monthValue(f func(m types.MonthSummary) (decimal.Decimal, bool)) func(Data) (decimal.Decimal, bool) {
	return func(d Data) (decimal.Decimal, bool) {
		m := d.monthSummary()
		if m == nil {
			return decimal.Zero, false
		}
		return f(*m)
	}
}

func always(f func(m types.MonthSummary) decimal.Decimal) func(m types.MonthSummary) (decimal.Decimal, bool) {
	return func(m types.MonthSummary) (decimal.Decimal, bool) {
		return f(m), true
	}
}

func monthAttrs(d Data) map[string]any {
	m := d.monthSummary()
	if m == nil {
		return nil
	}
	return map[string]any{"Last update": m.LastMeterReadingDate.String()}
}

func invoiceValue(period func(i types.Invoices) *types.Invoice) (func(Data) (decimal.Decimal, bool), func(Data) map[string]any) {
	pick := func(d Data) *types.Invoice {
		i := d.invoices()
		if i == nil {
			return nil
		}
		return period(*i)
	}
	value := func(d Data) (decimal.Decimal, bool) {
		inv := pick(d)
		if inv == nil {
			return decimal.Zero, false
		}
		return inv.TotalAmount, true
	}
	attrs := func(d Data) map[string]any {
		inv := pick(d)
		if inv == nil {
			return nil
		}
		return map[string]any{
			"Start date": inv.StartDate.String(),
			"Invoice":    inv.PeriodDescription,
		}
	}
	return value, attrs
}

func invoicesValue(f func(i types.Invoices, year int) (decimal.Decimal, bool)) func(Data) (decimal.Decimal, bool) {
	return func(d Data) (decimal.Decimal, bool) {
		i := d.invoices()
		if i == nil || len(i.AllInvoices) == 0 {
			return decimal.Zero, false
		}
		return f(*i, d.Now.In(d.Loc).Year())
	}
}

var costDescriptions = func() []Description {
	cost := func(key, name string, number func(Data) (decimal.Decimal, bool), attrs func(Data) map[string]any) Description {
		return Description{
			Key:           key,
			Name:          name,
			Service:       ServiceCosts,
			Unit:          UnitEuro,
			Precision:     2,
			Authenticated: true,
			Number:        number,
			Attrs:         attrs,
		}
	}
	previous, previousAttrs := invoiceValue(func(i types.Invoices) *types.Invoice { return i.PreviousPeriodInvoice })
	current, currentAttrs := invoiceValue(func(i types.Invoices) *types.Invoice { return i.CurrentPeriodInvoice })
	upcoming, upcomingAttrs := invoiceValue(func(i types.Invoices) *types.Invoice { return i.UpcomingPeriodInvoice })

	return []Description{
		cost("actual_costs_until_last_meter_reading_date", "Actual monthly cost",
			monthValue(always(func(m types.MonthSummary) decimal.Decimal { return m.ActualCostsUntilLastMeterReadingDate })), monthAttrs),
		cost("expected_costs_until_last_meter_reading_date", "Expected monthly cost until now",
			monthValue(always(func(m types.MonthSummary) decimal.Decimal { return m.ExpectedCostsUntilLastMeterReadingDate })), monthAttrs),
		cost("difference_costs_until_last_meter_reading_date", "Difference expected and actual monthly cost until now",
			monthValue(always(types.MonthSummary.DifferenceUntilLastMeterReading)), monthAttrs),
		cost("difference_costs_per_day", "Difference expected and actual cost per day",
			monthValue(types.MonthSummary.DifferencePerDay), monthAttrs),
		cost("expected_costs_this_month", "Expected cost this month",
			monthValue(always(func(m types.MonthSummary) decimal.Decimal { return m.ExpectedCosts })), nil),
		cost("expected_costs_per_day_this_month", "Expected cost per day this month",
			monthValue(types.MonthSummary.ExpectedCostsPerDay), nil),
		cost("costs_per_day_till_now_this_month", "Cost per day till now this month",
			monthValue(types.MonthSummary.CostsPerDayTillNow), monthAttrs),

		cost("invoice_previous_period", "Invoice previous period", previous, previousAttrs),
		cost("invoice_current_period", "Invoice current period", current, currentAttrs),
		cost("invoice_upcoming_period", "Invoice upcoming period", upcoming, upcomingAttrs),

		cost("costs_this_year", "Costs this year", invoicesValue(func(i types.Invoices, year int) (decimal.Decimal, bool) {
			return i.TotalCostsInYear(year), true
		}), nil),
		cost("costs_previous_year", "Costs previous year", invoicesValue(func(i types.Invoices, year int) (decimal.Decimal, bool) {
			return i.TotalCostsInYear(year - 1), true
		}), nil),
		cost("average_costs_per_month_this_year", "Average costs per month this year", invoicesValue(func(i types.Invoices, year int) (decimal.Decimal, bool) {
			return i.AverageCostsPerMonthInYear(year)
		}), nil),
		cost("average_costs_per_month_previous_year", "Average costs per month previous year", invoicesValue(func(i types.Invoices, year int) (decimal.Decimal, bool) {
			return i.AverageCostsPerMonthInYear(year - 1)
		}), nil),
		cost("total_costs", "Total costs", invoicesValue(func(i types.Invoices, _ int) (decimal.Decimal, bool) {
			return i.TotalCosts(), true
		}), func(d Data) map[string]any {
			i := d.invoices()
			if i == nil {
				return nil
			}
			return map[string]any{"Invoices": len(i.AllInvoices)}
		}),
	}
}()

func usageValue(pick func(u types.PeriodUsageAndCosts) *types.UsageSummary, costs bool) (func(Data) (decimal.Decimal, bool), func(Data) map[string]any) {
	summary := func(d Data) *types.UsageSummary {
		u := d.usage()
		if u == nil {
			return nil
		}
		return pick(*u)
	}
	value := func(d Data) (decimal.Decimal, bool) {
		s := summary(d)
		if s == nil {
			return decimal.Zero, false
		}
		if costs {
			return s.CostsTotal, true
		}
		return s.UsageTotal, true
	}
	attrs := func(d Data) map[string]any {
		s := summary(d)
		if s == nil {
			return nil
		}
		return map[string]any{
			"Date":  d.usage().Date.String(),
			"Items": len(s.Items),
		}
	}
	return value, attrs
}

var usageDescriptions = func() []Description {
	usage := func(key, name, unit string, pick func(u types.PeriodUsageAndCosts) *types.UsageSummary, costs bool) Description {
		value, attrs := usageValue(pick, costs)
		return Description{
			Key:           key,
			Name:          name,
			Service:       ServiceUsage,
			Unit:          unit,
			Precision:     2,
			Authenticated: true,
			Number:        value,
			Attrs:         attrs,
		}
	}
	electricity := func(u types.PeriodUsageAndCosts) *types.UsageSummary { return u.Electricity }
	gas := func(u types.PeriodUsageAndCosts) *types.UsageSummary { return u.Gas }
	feedIn := func(u types.PeriodUsageAndCosts) *types.UsageSummary { return u.FeedIn }
	return []Description{
		usage("costs_electricity_yesterday", "Costs electricity yesterday", UnitEuro, electricity, true),
		usage("usage_electricity_yesterday", "Usage electricity yesterday", UnitKWh, electricity, false),
		usage("costs_gas_yesterday", "Costs gas yesterday", UnitEuro, gas, true),
		usage("usage_gas_yesterday", "Usage gas yesterday", UnitM3, gas, false),
		usage("gains_feed_in_yesterday", "Gains feed-in yesterday", UnitEuro, feedIn, true),
		usage("delivered_feed_in_yesterday", "Delivered feed-in yesterday", UnitKWh, feedIn, false),
	}
}()

var userDescriptions = []Description{
	{
		Key:           "advanced_payment_amount",
		Name:          "Advanced payment amount",
		Service:       ServiceUser,
		Unit:          UnitEuro,
		Precision:     2,
		Authenticated: true,
		Number: func(d Data) (decimal.Decimal, bool) {
			u := d.user()
			if u == nil || !u.AdvancedPaymentAmount.Valid {
				return decimal.Zero, false
			}
			return u.AdvancedPaymentAmount.Decimal, true
		},
	},
	{
		Key:           "has_co2_compensation",
		Name:          "Has CO₂ compensation",
		Service:       ServiceUser,
		Authenticated: true,
		Text: func(d Data) (string, bool) {
			u := d.user()
			if u == nil {
				return "", false
			}
			return strconv.FormatBool(u.HasCO2Compensation), true
		},
	},
	{
		Key:           "reference",
		Name:          "Reference",
		Service:       ServiceUser,
		Authenticated: true,
		Text: func(d Data) (string, bool) {
			u := d.user()
			if u == nil || !u.Reference.Valid {
				return "", false
			}
			return u.Reference.ValueOrZero(), true
		},
	},
	{
		Key:           "country_code",
		Name:          "Country code",
		Service:       ServiceUser,
		Authenticated: true,
		Text: func(d Data) (string, bool) {
			u := d.user()
			if u == nil || !u.CountryCode.Valid {
				return "", false
			}
			return u.CountryCode.ValueOrZero(), true
		},
	},
	{
		Key:           "trees_count",
		Name:          "Trees count",
		Service:       ServiceUser,
		Authenticated: true,
		Number: func(d Data) (decimal.Decimal, bool) {
			u := d.user()
			if u == nil || !u.TreesCount.Valid {
				return decimal.Zero, false
			}
			return decimal.NewFromInt(u.TreesCount.ValueOrZero()), true
		},
	},
	{
		Key:           "ean",
		Name:          "EAN (Energy Account Number)",
		Service:       ServiceUser,
		Authenticated: true,
		Text: func(d Data) (string, bool) {
			u := d.user()
			if u == nil || len(u.Connections) == 0 {
				return "", false
			}
			return u.Connections[0].EAN, true
		},
		Attrs: func(d Data) map[string]any {
			u := d.user()
			if u == nil {
				return nil
			}
			return map[string]any{"connections": u.Connections}
		},
	},
	{
		Key:           "status",
		Name:          "Status",
		Service:       ServiceUser,
		Authenticated: true,
		Text: func(d Data) (string, bool) {
			site, ok := d.site()
			return site.Status, ok
		},
	},
	{
		Key:           "delivery_site",
		Name:          "Delivery site",
		Service:       ServiceUser,
		Authenticated: true,
		Text: func(d Data) (string, bool) {
			site, ok := d.site()
			return site.Title(), ok
		},
		Attrs: func(d Data) map[string]any {
			site, ok := d.site()
			if !ok {
				return nil
			}
			attrs := map[string]any{
				"reference":       site.Reference,
				"segments":        site.Segments,
				"propositionType": site.PropositionType,
			}
			if site.DeliveryStartDate != nil {
				attrs["deliveryStartDate"] = site.DeliveryStartDate.String()
			}
			if site.DeliveryEndDate != nil {
				attrs["deliveryEndDate"] = site.DeliveryEndDate.String()
			}
			return attrs
		},
	},
}
