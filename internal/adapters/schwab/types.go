package schwab

// types.go — wire structs mirroring the broker's JSON. Decimal fields
// unmarshal straight into shopspring decimals; mapping.go converts to
// domain types.

import "github.com/shopspring/decimal"

// candleList is the price-history response.
type candleList struct {
	Symbol  string `json:"symbol"`
	Candles []struct {
		Datetime int64           `json:"datetime"` // epoch millis
		Close    decimal.Decimal `json:"close"`
	} `json:"candles"`
}

// quoteEntry is one symbol's entry in the quotes response.
type quoteEntry struct {
	Realtime bool `json:"realtime"`
	Quote    struct {
		BidPrice  decimal.Decimal `json:"bidPrice"`
		AskPrice  decimal.Decimal `json:"askPrice"`
		LastPrice decimal.Decimal `json:"lastPrice"`
	} `json:"quote"`
}

// dividendList is the dividend-history response.
type dividendList struct {
	Symbol    string `json:"symbol"`
	Dividends []struct {
		ExDate         string          `json:"exDate"`  // 2006-01-02
		PayDate        string          `json:"payDate"` // 2006-01-02
		AmountPerShare decimal.Decimal `json:"amount"`
	} `json:"dividends"`
}

// accountResponse is the trader account snapshot.
type accountResponse struct {
	SecuritiesAccount struct {
		AccountNumber   string `json:"accountNumber"`
		RoundTrips      int    `json:"roundTrips"`
		CurrentBalances struct {
			CashBalance decimal.Decimal `json:"cashBalance"`
		} `json:"currentBalances"`
		Positions []struct {
			LongQuantity decimal.Decimal `json:"longQuantity"`
			Instrument   struct {
				Symbol string `json:"symbol"`
			} `json:"instrument"`
		} `json:"positions"`
	} `json:"securitiesAccount"`
}

// orderResponse is the broker's order record.
type orderResponse struct {
	OrderID            int64           `json:"orderId"`
	Status             string          `json:"status"`
	FilledQuantity     decimal.Decimal `json:"filledQuantity"`
	Cancelable         bool            `json:"cancelable"`
	OrderLegCollection []orderLeg      `json:"orderLegCollection"`
	ActivityCollection []orderActivity `json:"orderActivityCollection"`
}

type orderLeg struct {
	Instruction string `json:"instruction"`
	Instrument  struct {
		Symbol string `json:"symbol"`
	} `json:"instrument"`
}

type orderActivity struct {
	ExecutionLegs []struct {
		Quantity decimal.Decimal `json:"quantity"`
		Price    decimal.Decimal `json:"price"`
	} `json:"executionLegs"`
}

// orderPayload is the order-placement request body.
type orderPayload struct {
	Session              string            `json:"session"`
	Duration             string            `json:"duration"`
	OrderType            string            `json:"orderType"`
	ComplexOrderStrategy string            `json:"complexOrderStrategyType"`
	Quantity             decimal.Decimal   `json:"quantity"`
	StopPriceLinkBasis   string            `json:"stopPriceLinkBasis,omitempty"`
	StopPriceLinkType    string            `json:"stopPriceLinkType,omitempty"`
	StopPriceOffset      decimal.Decimal   `json:"stopPriceOffset,omitempty"`
	OrderLegCollection   []orderPayloadLeg `json:"orderLegCollection"`
	OrderStrategyType    string            `json:"orderStrategyType"`
	TaxLotMethod         string            `json:"taxLotMethod,omitempty"`
}

type orderPayloadLeg struct {
	OrderLegType   string          `json:"orderLegType"`
	LegID          int             `json:"legId"`
	Instrument     orderInstrument `json:"instrument"`
	Instruction    string          `json:"instruction"`
	PositionEffect string          `json:"positionEffect"`
	Quantity       decimal.Decimal `json:"quantity"`
}

type orderInstrument struct {
	AssetType string `json:"assetType"`
	Symbol    string `json:"symbol"`
}
