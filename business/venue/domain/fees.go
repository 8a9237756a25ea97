package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradingFees holds a venue's (or venue+instrument's) maker/taker
// rates, cached with a refresh timestamp.
type TradingFees struct {
	MakerRate      decimal.Decimal
	TakerRate      decimal.Decimal
	PercentageFlag bool // true when rates are expressed as a fraction of notional (vs. flat)
	LastRefreshed  time.Time
}

// IsExpired reports whether the cached fees are older than ttl.
func (f TradingFees) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(f.LastRefreshed) > ttl
}

// TakerFee returns the fee charged on notional at the taker rate.
func (f TradingFees) TakerFee(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(f.TakerRate)
}

// DefaultFees is the conservative fallback used when a venue's fee
// fetch fails or its cache has expired with no fresher value on hand.
func DefaultFees() TradingFees {
	return TradingFees{
		MakerRate:      decimal.NewFromFloat(0.001),
		TakerRate:      decimal.NewFromFloat(0.001),
		PercentageFlag: true,
	}
}
