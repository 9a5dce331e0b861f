package frank

const priceFields = `
	from
	till
	marketPrice
	marketPriceTax
	sourcingMarkupPrice
	energyTaxPrice
`

const marketPricesQuery = `query MarketPrices($startDate: Date!, $endDate: Date!) {
	marketPricesElectricity(startDate: $startDate, endDate: $endDate) {` + priceFields + `}
	marketPricesGas(startDate: $startDate, endDate: $endDate) {` + priceFields + `}
}`

// customerMarketPrices uses different names for the markup and tax fields;
// aliases map them onto the public price shape.
const customerMarketPricesQuery = `query CustomerMarketPrices($startDate: Date!, $endDate: Date!, $siteReference: String) {
	customerMarketPrices(startDate: $startDate, endDate: $endDate, siteReference: $siteReference) {
		electricityPrices {
			from
			till
			marketPrice
			marketPriceTax
			sourcingMarkupPrice: consumptionSourcingMarkupPrice
			energyTaxPrice: energyTax
		}
		gasPrices {
			from
			till
			marketPrice
			marketPriceTax
			sourcingMarkupPrice: consumptionSourcingMarkupPrice
			energyTaxPrice: energyTax
		}
	}
}`

const loginMutation = `mutation Login($email: String!, $password: String!) {
	login(email: $email, password: $password) {
		authToken
		refreshToken
	}
}`

const renewTokenMutation = `mutation RenewToken($authToken: String!, $refreshToken: String!) {
	renewToken(authToken: $authToken, refreshToken: $refreshToken) {
		authToken
		refreshToken
	}
}`

const monthSummaryQuery = `query MonthSummary($siteReference: String!) {
	monthSummary(siteReference: $siteReference) {
		actualCostsUntilLastMeterReadingDate
		expectedCostsUntilLastMeterReadingDate
		expectedCosts
		lastMeterReadingDate
		meterReadingDayCompleteness
		gasExcluded
	}
}`

const invoiceFields = `
	startDate: StartDate
	periodDescription: PeriodDescription
	totalAmount: TotalAmount
`

const invoicesQuery = `query Invoices($siteReference: String!) {
	invoices(siteReference: $siteReference) {
		allInvoices {` + invoiceFields + `}
		previousPeriodInvoice {` + invoiceFields + `}
		currentPeriodInvoice {` + invoiceFields + `}
		upcomingPeriodInvoice {` + invoiceFields + `}
	}
}`

const usageFields = `
	usageTotal
	costsTotal
	unit
	items {
		date
		from
		till
		usage
		costs
		unit
	}
`

const periodUsageQuery = `query PeriodUsageAndCosts($date: String!, $siteReference: String!) {
	periodUsageAndCosts(date: $date, siteReference: $siteReference) {
		_id
		gas {` + usageFields + `}
		electricity {` + usageFields + `}
		feedIn {` + usageFields + `}
	}
}`

const meQuery = `query Me($siteReference: String) {
	me {
		id
		email
		countryCode
		advancedPaymentAmount(siteReference: $siteReference)
		treesCount
		hasCO2Compensation
		externalDetails {
			reference
		}
		connections(siteReference: $siteReference) {
			EAN
			segment
			status
			contractStatus
		}
	}
}`

const userSitesQuery = `query UserSites {
	userSites {
		reference
		status
		segments
		propositionType
		deliveryStartDate
		deliveryEndDate
		address {
			addressFormatted
		}
	}
}`

const smartBatteriesQuery = `query SmartBatteries {
	smartBatteries {
		id
		brand
		provider
		externalReference
		capacity
		maxChargePower
		maxDischargePower
		createdAt
		updatedAt
	}
}`

const enodeChargersQuery = `query EnodeChargers {
	enodeChargers {
		id
		isReachable
		canSmartCharge
		information {
			brand
			model
			year
		}
		chargeState {
			batteryLevel
			batteryCapacity
			chargeRate
			chargeTimeRemaining
			isCharging
			isPluggedIn
			powerDeliveryState
			lastUpdated
		}
		chargeSettings {
			capacity
			isSmartChargingEnabled
			isSolarChargingEnabled
			calculatedDeadline
			initialChargeTimestamp
			minChargeLimit
			maxChargeLimit
		}
	}
}`

const smartBatterySessionsQuery = `query SmartBatterySessions($deviceId: String!, $startDate: String!, $endDate: String!) {
	smartBatterySessions(deviceId: $deviceId, startDate: $startDate, endDate: $endDate) {
		deviceId
		periodStartDate
		periodEndDate
		periodTradeIndex
		periodTradingResult
		periodTotalResult
		periodImbalanceResult
		periodEpexResult
		periodFrankSlim
		sessions {
			date
			tradingResult
			cumulativeTradingResult
		}
	}
}`
