package types

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// MonthSummary is the running cost overview for the current month.
type MonthSummary struct {
	ActualCostsUntilLastMeterReadingDate   decimal.Decimal `json:"actualCostsUntilLastMeterReadingDate"`
	ExpectedCostsUntilLastMeterReadingDate decimal.Decimal `json:"expectedCostsUntilLastMeterReadingDate"`
	ExpectedCosts                          decimal.Decimal `json:"expectedCosts"`
	LastMeterReadingDate                   strfmt.Date     `json:"lastMeterReadingDate"`
	MeterReadingDayCompleteness            float64         `json:"meterReadingDayCompleteness"`
	GasExcluded                            bool            `json:"gasExcluded"`
}

// DifferenceUntilLastMeterReading is actual minus expected costs up to the
// last meter reading.
func (m MonthSummary) DifferenceUntilLastMeterReading() decimal.Decimal {
	return m.ActualCostsUntilLastMeterReadingDate.Sub(m.ExpectedCostsUntilLastMeterReadingDate)
}

// readingDay is the day of month of the last meter reading, or 0 when unknown.
func (m MonthSummary) readingDay() int {
	t := time.Time(m.LastMeterReadingDate)
	if t.IsZero() {
		return 0
	}
	return t.Day()
}

// DifferencePerDay spreads DifferenceUntilLastMeterReading over the days up
// to the last meter reading.
func (m MonthSummary) DifferencePerDay() (decimal.Decimal, bool) {
	d := m.readingDay()
	if d == 0 {
		return decimal.Zero, false
	}
	return m.DifferenceUntilLastMeterReading().Div(decimal.NewFromInt(int64(d))), true
}

// CostsPerDayTillNow is the actual cost per day up to the last meter reading.
func (m MonthSummary) CostsPerDayTillNow() (decimal.Decimal, bool) {
	d := m.readingDay()
	if d == 0 {
		return decimal.Zero, false
	}
	return m.ActualCostsUntilLastMeterReadingDate.Div(decimal.NewFromInt(int64(d))), true
}

// ExpectedCostsPerDay spreads ExpectedCosts over the days of the month of the
// last meter reading.
func (m MonthSummary) ExpectedCostsPerDay() (decimal.Decimal, bool) {
	t := time.Time(m.LastMeterReadingDate)
	if t.IsZero() {
		return decimal.Zero, false
	}
	days := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return m.ExpectedCosts.Div(decimal.NewFromInt(int64(days))), true
}

// Invoice is a single (possibly estimated) invoice.
type Invoice struct {
	StartDate         strfmt.Date     `json:"startDate"`
	PeriodDescription string          `json:"periodDescription"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
}

// Invoices groups the account's invoices.
type Invoices struct {
	AllInvoices           []Invoice `json:"allInvoices"`
	PreviousPeriodInvoice *Invoice  `json:"previousPeriodInvoice,omitempty"`
	CurrentPeriodInvoice  *Invoice  `json:"currentPeriodInvoice,omitempty"`
	UpcomingPeriodInvoice *Invoice  `json:"upcomingPeriodInvoice,omitempty"`
}

// TotalCostsInYear sums the invoices that start in year.
func (i Invoices) TotalCostsInYear(year int) decimal.Decimal {
	sum := decimal.Zero
	for _, inv := range i.AllInvoices {
		if time.Time(inv.StartDate).Year() == year {
			sum = sum.Add(inv.TotalAmount)
		}
	}
	return sum
}

// AverageCostsPerMonthInYear averages the invoices that start in year.
func (i Invoices) AverageCostsPerMonthInYear(year int) (decimal.Decimal, bool) {
	var n int64
	sum := decimal.Zero
	for _, inv := range i.AllInvoices {
		if time.Time(inv.StartDate).Year() == year {
			sum = sum.Add(inv.TotalAmount)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(n)), true
}

// TotalCosts sums every invoice.
func (i Invoices) TotalCosts() decimal.Decimal {
	sum := decimal.Zero
	for _, inv := range i.AllInvoices {
		sum = sum.Add(inv.TotalAmount)
	}
	return sum
}

// UsageItem is the usage for a single interval of a period.
type UsageItem struct {
	Date  strfmt.Date     `json:"date"`
	From  time.Time       `json:"from"`
	Till  time.Time       `json:"till"`
	Usage decimal.Decimal `json:"usage"`
	Costs decimal.Decimal `json:"costs"`
	Unit  string          `json:"unit"`
}

// UsageSummary is the usage of one commodity over a period.
type UsageSummary struct {
	UsageTotal decimal.Decimal `json:"usageTotal"`
	CostsTotal decimal.Decimal `json:"costsTotal"`
	Unit       string          `json:"unit"`
	Items      []UsageItem     `json:"items"`
}

// PeriodUsageAndCosts is the usage of the day before the refresh.
type PeriodUsageAndCosts struct {
	Date        strfmt.Date   `json:"date"`
	Electricity *UsageSummary `json:"electricity,omitempty"`
	Gas         *UsageSummary `json:"gas,omitempty"`
	FeedIn      *UsageSummary `json:"feedIn,omitempty"`
}

// Connection is one metering connection of the account.
type Connection struct {
	EAN            string `json:"ean"`
	Segment        string `json:"segment"`
	Status         string `json:"status"`
	ContractStatus string `json:"contractStatus"`
}

// User is the signed-in account's profile.
type User struct {
	ID                    string              `json:"id"`
	Email                 string              `json:"email"`
	CountryCode           null.String         `json:"countryCode"`
	Reference             null.String         `json:"reference"`
	AdvancedPaymentAmount decimal.NullDecimal `json:"advancedPaymentAmount"`
	TreesCount            null.Int            `json:"treesCount"`
	HasCO2Compensation    bool                `json:"hasCO2Compensation"`
	Connections           []Connection        `json:"connections"`
}

// DeliverySiteStatusInDelivery is the status of a site that is actively
// supplied.
const DeliverySiteStatusInDelivery = "IN_DELIVERY"

// DeliverySite is one address the account has a contract for.
type DeliverySite struct {
	Reference         string       `json:"reference"`
	Status            string       `json:"status"`
	Segments          []string     `json:"segments"`
	AddressFormatted  []string     `json:"addressFormatted"`
	PropositionType   string       `json:"propositionType"`
	DeliveryStartDate *strfmt.Date `json:"deliveryStartDate,omitempty"`
	DeliveryEndDate   *strfmt.Date `json:"deliveryEndDate,omitempty"`
}

// Title is a human readable label for the site.
func (d DeliverySite) Title() string {
	if len(d.AddressFormatted) > 0 {
		return d.AddressFormatted[0]
	}
	return d.Reference
}

// InDeliverySites filters sites down to those currently supplied.
func InDeliverySites(sites []DeliverySite) []DeliverySite {
	out := []DeliverySite{}
	for _, s := range sites {
		if s.Status == DeliverySiteStatusInDelivery {
			out = append(out, s)
		}
	}
	return out
}

// SmartBattery is a home battery enrolled in Frank's smart trading.
type SmartBattery struct {
	ID                string    `json:"id"`
	Brand             string    `json:"brand"`
	Provider          string    `json:"provider"`
	ExternalReference string    `json:"externalReference"`
	Capacity          float64   `json:"capacity"`
	MaxChargePower    float64   `json:"maxChargePower"`
	MaxDischargePower float64   `json:"maxDischargePower"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// SmartBatterySession is the trading result of a single day.
type SmartBatterySession struct {
	Date                    strfmt.Date     `json:"date"`
	TradingResult           decimal.Decimal `json:"tradingResult"`
	CumulativeTradingResult decimal.Decimal `json:"cumulativeTradingResult"`
}

// SmartBatterySessions is the trading summary of one battery over a period.
type SmartBatterySessions struct {
	DeviceID              string                `json:"deviceId"`
	PeriodStartDate       strfmt.Date           `json:"periodStartDate"`
	PeriodEndDate         strfmt.Date           `json:"periodEndDate"`
	PeriodTradeIndex      null.Int              `json:"periodTradeIndex"`
	PeriodTradingResult   decimal.Decimal       `json:"periodTradingResult"`
	PeriodTotalResult     decimal.Decimal       `json:"periodTotalResult"`
	PeriodImbalanceResult decimal.Decimal       `json:"periodImbalanceResult"`
	PeriodEpexResult      decimal.Decimal       `json:"periodEpexResult"`
	PeriodFrankSlim       decimal.Decimal       `json:"periodFrankSlim"`
	Sessions              []SmartBatterySession `json:"sessions"`
}

// EnodeChargeState is the last reported state of an EV charger.
type EnodeChargeState struct {
	BatteryLevel        null.Float  `json:"batteryLevel"`
	BatteryCapacity     null.Float  `json:"batteryCapacity"`
	ChargeRate          null.Float  `json:"chargeRate"`
	ChargeTimeRemaining null.Int    `json:"chargeTimeRemaining"`
	IsCharging          bool        `json:"isCharging"`
	IsPluggedIn         bool        `json:"isPluggedIn"`
	PowerDeliveryState  null.String `json:"powerDeliveryState"`
	LastUpdated         null.Time   `json:"lastUpdated"`
}

// EnodeChargeSettings is the smart charging configuration of an EV charger.
type EnodeChargeSettings struct {
	Capacity               null.Float `json:"capacity"`
	IsSmartChargingEnabled bool       `json:"isSmartChargingEnabled"`
	IsSolarChargingEnabled bool       `json:"isSolarChargingEnabled"`
	CalculatedDeadline     null.Time  `json:"calculatedDeadline"`
	InitialChargeTimestamp null.Time  `json:"initialChargeTimestamp"`
	MinChargeLimit         null.Int   `json:"minChargeLimit"`
	MaxChargeLimit         null.Int   `json:"maxChargeLimit"`
}

// EnodeCharger is an EV charger connected through Enode.
type EnodeCharger struct {
	ID             string              `json:"id"`
	Brand          null.String         `json:"brand"`
	Model          null.String         `json:"model"`
	Year           null.Int            `json:"year"`
	IsReachable    bool                `json:"isReachable"`
	CanSmartCharge bool                `json:"canSmartCharge"`
	ChargeState    EnodeChargeState    `json:"chargeState"`
	ChargeSettings EnodeChargeSettings `json:"chargeSettings"`
}

// Name joins the brand, model and year that are known.
func (c EnodeCharger) Name() string {
	var parts []string
	if c.Brand.Valid && c.Brand.String != "" {
		parts = append(parts, c.Brand.String)
	}
	if c.Model.Valid && c.Model.String != "" {
		parts = append(parts, c.Model.String)
	}
	if c.Year.Valid {
		parts = append(parts, strconv.FormatInt(c.Year.Int64, 10))
	}
	return strings.Join(parts, " ")
}
