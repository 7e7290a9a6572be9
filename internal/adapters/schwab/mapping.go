package schwab

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jdamico/rebalancer/internal/domain"
)

const dateLayout = "2006-01-02"

func toDomainBars(list candleList) []domain.PriceBar {
	bars := make([]domain.PriceBar, 0, len(list.Candles))
	for _, candle := range list.Candles {
		bars = append(bars, domain.PriceBar{
			Timestamp: time.UnixMilli(candle.Datetime).UTC(),
			Close:     candle.Close,
		})
	}
	return bars
}

func toDomainQuote(symbol string, entry quoteEntry) domain.Quote {
	return domain.Quote{
		Symbol:   symbol,
		Bid:      entry.Quote.BidPrice,
		Ask:      entry.Quote.AskPrice,
		Last:     entry.Quote.LastPrice,
		Realtime: entry.Realtime,
	}
}

func toDomainDividends(list dividendList) ([]domain.DividendEvent, error) {
	events := make([]domain.DividendEvent, 0, len(list.Dividends))
	for _, div := range list.Dividends {
		exDate, err := time.Parse(dateLayout, div.ExDate)
		if err != nil {
			return nil, fmt.Errorf("schwab: parse ex-date %q: %w", div.ExDate, err)
		}
		payDate, err := time.Parse(dateLayout, div.PayDate)
		if err != nil {
			return nil, fmt.Errorf("schwab: parse pay-date %q: %w", div.PayDate, err)
		}
		events = append(events, domain.DividendEvent{
			ExDate:         exDate,
			PayDate:        payDate,
			AmountPerShare: div.AmountPerShare,
		})
	}
	return events, nil
}

func toDomainSnapshot(accountID string, resp accountResponse) domain.AccountSnapshot {
	snapshot := domain.AccountSnapshot{
		AccountID:  accountID,
		Cash:       resp.SecuritiesAccount.CurrentBalances.CashBalance,
		Positions:  make(map[string]decimal.Decimal, len(resp.SecuritiesAccount.Positions)),
		RoundTrips: resp.SecuritiesAccount.RoundTrips,
	}
	for _, position := range resp.SecuritiesAccount.Positions {
		snapshot.Positions[position.Instrument.Symbol] = position.LongQuantity
	}
	return snapshot
}

func toDomainOrder(resp orderResponse) domain.OrderRecord {
	record := domain.OrderRecord{
		OrderID:        strconv.FormatInt(resp.OrderID, 10),
		Status:         domain.OrderStatus(resp.Status),
		FilledQuantity: resp.FilledQuantity,
		Cancelable:     resp.Cancelable,
	}
	if len(resp.OrderLegCollection) > 0 {
		leg := resp.OrderLegCollection[0]
		record.Symbol = leg.Instrument.Symbol
		record.Side = domain.OrderSide(leg.Instruction)
	}
	for _, activity := range resp.ActivityCollection {
		for _, leg := range activity.ExecutionLegs {
			record.Legs = append(record.Legs, domain.ExecutionLeg{
				Quantity: leg.Quantity,
				Price:    leg.Price,
			})
		}
	}
	return record
}
