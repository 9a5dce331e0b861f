package frank

import (
	"context"
	"time"

	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/go-openapi/strfmt"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// MonthSummary returns the running costs of the current month.
func (c *Client) MonthSummary(ctx context.Context, siteReference string) (*types.MonthSummary, error) {
	if err := c.requireAuth("MonthSummary"); err != nil {
		return nil, err
	}
	var data struct {
		MonthSummary *types.MonthSummary `json:"monthSummary"`
	}
	if err := c.do(ctx, "MonthSummary", monthSummaryQuery, map[string]any{
		"siteReference": siteReference,
	}, &data); err != nil {
		return nil, err
	}
	return data.MonthSummary, nil
}

// Invoices returns the invoices of the account.
func (c *Client) Invoices(ctx context.Context, siteReference string) (*types.Invoices, error) {
	if err := c.requireAuth("Invoices"); err != nil {
		return nil, err
	}
	var data struct {
		Invoices *types.Invoices `json:"invoices"`
	}
	if err := c.do(ctx, "Invoices", invoicesQuery, map[string]any{
		"siteReference": siteReference,
	}, &data); err != nil {
		return nil, err
	}
	if data.Invoices != nil && data.Invoices.AllInvoices == nil {
		data.Invoices.AllInvoices = []types.Invoice{}
	}
	return data.Invoices, nil
}

// PeriodUsageAndCosts returns the usage of the calendar day of date.
func (c *Client) PeriodUsageAndCosts(ctx context.Context, siteReference string, date time.Time) (*types.PeriodUsageAndCosts, error) {
	if err := c.requireAuth("PeriodUsageAndCosts"); err != nil {
		return nil, err
	}
	var data struct {
		PeriodUsageAndCosts *types.PeriodUsageAndCosts `json:"periodUsageAndCosts"`
	}
	if err := c.do(ctx, "PeriodUsageAndCosts", periodUsageQuery, map[string]any{
		"date":          strfmt.Date(date),
		"siteReference": siteReference,
	}, &data); err != nil {
		return nil, err
	}
	if data.PeriodUsageAndCosts != nil {
		data.PeriodUsageAndCosts.Date = strfmt.Date(date)
	}
	return data.PeriodUsageAndCosts, nil
}

type meResponse struct {
	ID                    string              `json:"id"`
	Email                 string              `json:"email"`
	CountryCode           null.String         `json:"countryCode"`
	AdvancedPaymentAmount decimal.NullDecimal `json:"advancedPaymentAmount"`
	TreesCount            null.Int            `json:"treesCount"`
	HasCO2Compensation    bool                `json:"hasCO2Compensation"`
	ExternalDetails       *struct {
		Reference null.String `json:"reference"`
	} `json:"externalDetails"`
	Connections []struct {
		EAN            string `json:"EAN"`
		Segment        string `json:"segment"`
		Status         string `json:"status"`
		ContractStatus string `json:"contractStatus"`
	} `json:"connections"`
}

// User returns the profile of the signed-in account. siteReference scopes
// the advanced payment and connections and may be empty.
func (c *Client) User(ctx context.Context, siteReference string) (*types.User, error) {
	if err := c.requireAuth("Me"); err != nil {
		return nil, err
	}
	vars := map[string]any{}
	if siteReference != "" {
		vars["siteReference"] = siteReference
	}
	var data struct {
		Me *meResponse `json:"me"`
	}
	if err := c.do(ctx, "Me", meQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.Me == nil {
		return nil, nil
	}

	me := data.Me
	user := &types.User{
		ID:                    me.ID,
		Email:                 me.Email,
		CountryCode:           me.CountryCode,
		AdvancedPaymentAmount: me.AdvancedPaymentAmount,
		TreesCount:            me.TreesCount,
		HasCO2Compensation:    me.HasCO2Compensation,
		Connections:           make([]types.Connection, 0, len(me.Connections)),
	}
	if me.ExternalDetails != nil {
		user.Reference = me.ExternalDetails.Reference
	}
	for _, conn := range me.Connections {
		user.Connections = append(user.Connections, types.Connection{
			EAN:            conn.EAN,
			Segment:        conn.Segment,
			Status:         conn.Status,
			ContractStatus: conn.ContractStatus,
		})
	}
	return user, nil
}

type userSiteResponse struct {
	Reference         string       `json:"reference"`
	Status            string       `json:"status"`
	Segments          []string     `json:"segments"`
	PropositionType   string       `json:"propositionType"`
	DeliveryStartDate *strfmt.Date `json:"deliveryStartDate"`
	DeliveryEndDate   *strfmt.Date `json:"deliveryEndDate"`
	Address           struct {
		AddressFormatted []string `json:"addressFormatted"`
	} `json:"address"`
}

// UserSites returns every delivery site of the account, including ones that
// are no longer or not yet supplied.
func (c *Client) UserSites(ctx context.Context) ([]types.DeliverySite, error) {
	if err := c.requireAuth("UserSites"); err != nil {
		return nil, err
	}
	var data struct {
		UserSites []userSiteResponse `json:"userSites"`
	}
	if err := c.do(ctx, "UserSites", userSitesQuery, nil, &data); err != nil {
		return nil, err
	}
	sites := make([]types.DeliverySite, 0, len(data.UserSites))
	for _, s := range data.UserSites {
		sites = append(sites, types.DeliverySite{
			Reference:         s.Reference,
			Status:            s.Status,
			Segments:          s.Segments,
			AddressFormatted:  s.Address.AddressFormatted,
			PropositionType:   s.PropositionType,
			DeliveryStartDate: s.DeliveryStartDate,
			DeliveryEndDate:   s.DeliveryEndDate,
		})
	}
	return sites, nil
}

// SmartBatteries returns the batteries enrolled in smart trading.
func (c *Client) SmartBatteries(ctx context.Context) ([]types.SmartBattery, error) {
	if err := c.requireAuth("SmartBatteries"); err != nil {
		return nil, err
	}
	var data struct {
		SmartBatteries []types.SmartBattery `json:"smartBatteries"`
	}
	if err := c.do(ctx, "SmartBatteries", smartBatteriesQuery, nil, &data); err != nil {
		return nil, err
	}
	if data.SmartBatteries == nil {
		data.SmartBatteries = []types.SmartBattery{}
	}
	return data.SmartBatteries, nil
}

type enodeChargerResponse struct {
	ID             string `json:"id"`
	IsReachable    bool   `json:"isReachable"`
	CanSmartCharge bool   `json:"canSmartCharge"`
	Information    struct {
		Brand null.String `json:"brand"`
		Model null.String `json:"model"`
		Year  null.Int    `json:"year"`
	} `json:"information"`
	ChargeState    types.EnodeChargeState    `json:"chargeState"`
	ChargeSettings types.EnodeChargeSettings `json:"chargeSettings"`
}

// EnodeChargers returns the EV chargers connected through Enode.
func (c *Client) EnodeChargers(ctx context.Context) ([]types.EnodeCharger, error) {
	if err := c.requireAuth("EnodeChargers"); err != nil {
		return nil, err
	}
	var data struct {
		EnodeChargers []enodeChargerResponse `json:"enodeChargers"`
	}
	if err := c.do(ctx, "EnodeChargers", enodeChargersQuery, nil, &data); err != nil {
		return nil, err
	}
	chargers := make([]types.EnodeCharger, 0, len(data.EnodeChargers))
	for _, ch := range data.EnodeChargers {
		chargers = append(chargers, types.EnodeCharger{
			ID:             ch.ID,
			Brand:          ch.Information.Brand,
			Model:          ch.Information.Model,
			Year:           ch.Information.Year,
			IsReachable:    ch.IsReachable,
			CanSmartCharge: ch.CanSmartCharge,
			ChargeState:    ch.ChargeState,
			ChargeSettings: ch.ChargeSettings,
		})
	}
	return chargers, nil
}

// SmartBatterySessions returns the trading results of a battery for the
// days from start through end.
func (c *Client) SmartBatterySessions(ctx context.Context, deviceID string, start, end time.Time) (*types.SmartBatterySessions, error) {
	if err := c.requireAuth("SmartBatterySessions"); err != nil {
		return nil, err
	}
	var data struct {
		SmartBatterySessions *types.SmartBatterySessions `json:"smartBatterySessions"`
	}
	if err := c.do(ctx, "SmartBatterySessions", smartBatterySessionsQuery, map[string]any{
		"deviceId":  deviceID,
		"startDate": strfmt.Date(start),
		"endDate":   strfmt.Date(end),
	}, &data); err != nil {
		return nil, err
	}
	if s := data.SmartBatterySessions; s != nil && s.Sessions == nil {
		s.Sessions = []types.SmartBatterySession{}
	}
	return data.SmartBatterySessions, nil
}
