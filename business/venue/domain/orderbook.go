// Package domain contains the core domain types for the venue context:
// order books, orders, fees, balance reservations and connection
// state, all denominated with internal/money instead of a wei-based
// asset representation.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/internal/money"
)

// OrderBookLevel is a single (price, amount) resting quote.
type OrderBookLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// OrderBookSnapshot is one venue's view of an instrument's book at a
// point in time. Asks are sorted ascending by price, bids descending.
type OrderBookSnapshot struct {
	Venue                 string
	Instrument            money.Instrument
	Asks                  []OrderBookLevel
	Bids                  []OrderBookLevel
	VenueTimestamp        time.Time // authoritative for age reasoning
	LocalReceiveTimestamp time.Time // recorded for skew monitoring only
}

// BestAsk returns the lowest ask level, or nil if the book has no asks.
func (s *OrderBookSnapshot) BestAsk() *OrderBookLevel {
	if len(s.Asks) == 0 {
		return nil
	}
	return &s.Asks[0]
}

// BestBid returns the highest bid level, or nil if the book has no bids.
func (s *OrderBookSnapshot) BestBid() *OrderBookLevel {
	if len(s.Bids) == 0 {
		return nil
	}
	return &s.Bids[0]
}

// MidPrice returns the midpoint between best bid and best ask, or
// zero if either side is empty.
func (s *OrderBookSnapshot) MidPrice() decimal.Decimal {
	bid, ask := s.BestBid(), s.BestAsk()
	if bid == nil || ask == nil {
		return decimal.Zero
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2))
}

// Age returns how long ago VenueTimestamp was recorded, relative to
// now. A negative age indicates the venue's clock is ahead of ours.
func (s *OrderBookSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.VenueTimestamp)
}

// IsStale reports whether the snapshot's age exceeds threshold.
func (s *OrderBookSnapshot) IsStale(now time.Time, threshold time.Duration) bool {
	return s.Age(now) > threshold
}

// EffectivePrice walks levels from the top of the book, accumulating
// amount until it is filled (or the book is exhausted), and returns
// the volume-weighted average price paid/received plus the amount
// actually fillable. It grounds slippage calculation: the caller
// compares EffectivePrice against the top-of-book price to measure
// how far the fill deviates from the quoted price.
func EffectivePrice(levels []OrderBookLevel, amount decimal.Decimal) (avgPrice decimal.Decimal, filled decimal.Decimal) {
	remaining := amount
	totalCost := decimal.Zero
	filled = decimal.Zero

	for _, level := range levels {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		take := level.Amount
		if take.GreaterThan(remaining) {
			take = remaining
		}
		totalCost = totalCost.Add(take.Mul(level.Price))
		filled = filled.Add(take)
		remaining = remaining.Sub(take)
	}

	if filled.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	return totalCost.Div(filled), filled
}

// SlippagePercent compares the effective (VWAP) price for amount
// against the top-of-book price, expressed as a percentage. Positive
// values mean the fill is worse than the quoted top-of-book price.
func SlippagePercent(levels []OrderBookLevel, amount decimal.Decimal, topOfBook decimal.Decimal, isBuy bool) decimal.Decimal {
	if topOfBook.IsZero() {
		return decimal.Zero
	}
	avg, filled := EffectivePrice(levels, amount)
	if filled.IsZero() {
		return decimal.NewFromInt(100) // can't fill at all: maximal slippage
	}
	diff := avg.Sub(topOfBook)
	if !isBuy {
		diff = topOfBook.Sub(avg)
	}
	return diff.Div(topOfBook).Mul(decimal.NewFromInt(100))
}
