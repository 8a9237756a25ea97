// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/internal/money"
)

// Opportunity is a detected cross-venue arbitrage candidate: buy the
// instrument's base currency on BuyVenue at BuyPrice, sell it on
// SellVenue at SellPrice. It is ephemeral — created on a scan tick,
// discarded once shouldExecute has made its decision.
type Opportunity struct {
	Instrument    money.Instrument
	BuyVenue      string
	SellVenue     string
	BuyPrice      decimal.Decimal
	SellPrice     decimal.Decimal
	Amount        decimal.Decimal
	ProfitAmount  decimal.Decimal
	ProfitPercent decimal.Decimal
	BuyFee        decimal.Decimal
	SellFee       decimal.Decimal
	Timestamp     time.Time
}

// TradeKey identifies the (instrument, buyVenue, sellVenue) triple
// that must not have more than one in-flight trade at a time.
func (o Opportunity) TradeKey() string {
	return o.Instrument.String() + "-" + o.BuyVenue + "-" + o.SellVenue
}

// IsProfitable reports whether the opportunity clears zero net of the
// fees already baked into ProfitAmount/ProfitPercent.
func (o Opportunity) IsProfitable() bool {
	return o.ProfitAmount.IsPositive() && o.ProfitPercent.IsPositive()
}

// Age returns how long ago the opportunity was captured, relative to
// now (which may be a venue-time reference rather than wall clock).
func (o Opportunity) Age(now time.Time) time.Duration {
	return now.Sub(o.Timestamp)
}
