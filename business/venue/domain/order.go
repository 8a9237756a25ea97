package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/internal/money"
)

// Side is which side of the book an order rests on.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType is the order's matching behavior.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// Outcome is the terminal result of submitting an order.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// OrderRequest is what the strategy engine asks a venue to do.
// ClientOrderID is the idempotency key and is always set by the
// caller before submission.
type OrderRequest struct {
	Venue         string
	Instrument    money.Instrument
	Side          Side
	Amount        decimal.Decimal
	Type          OrderType
	Price         decimal.Decimal // only meaningful for OrderTypeLimit
	ClientOrderID string
}

// OrderResult is what a venue reports back for a submitted order.
type OrderResult struct {
	Venue           string
	VenueOrderID    string
	ClientOrderID   string
	Instrument      money.Instrument
	Side            Side
	RequestedAmount decimal.Decimal
	FilledAmount    decimal.Decimal
	AvgPrice        decimal.Decimal
	Cost            decimal.Decimal
	FeePaid         decimal.Decimal
	VenueTimestamp  time.Time
	Outcome         Outcome
	ErrorDetail     string
}

// FillPercent returns FilledAmount as a percentage of RequestedAmount,
// 0 if RequestedAmount is non-positive.
func (r *OrderResult) FillPercent() decimal.Decimal {
	if r.RequestedAmount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return r.FilledAmount.Div(r.RequestedAmount).Mul(decimal.NewFromInt(100))
}
