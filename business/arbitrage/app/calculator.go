// Package app contains the arbitrage strategy engine: opportunity
// scanning, execution gating, and trade execution.
package app

import (
	"github.com/shopspring/decimal"
)

// ProfitCalculator turns a raw price spread into a fee-adjusted
// Opportunity's profit fields. Unlike the teacher's single on-chain
// gas leg, every venue-to-venue trade pays two taker fees (one per
// leg), so both are charged against gross profit.
type ProfitCalculator struct {
	minProfitPercent decimal.Decimal
}

// NewProfitCalculator creates a ProfitCalculator that treats
// candidates below minProfitPercent as unprofitable.
func NewProfitCalculator(minProfitPercent decimal.Decimal) *ProfitCalculator {
	return &ProfitCalculator{minProfitPercent: minProfitPercent}
}

// Result holds the fee-adjusted outcome of a profitability calculation.
type Result struct {
	GrossProfit   decimal.Decimal
	BuyFee        decimal.Decimal
	SellFee       decimal.Decimal
	NetProfit     decimal.Decimal
	NetProfitPct  decimal.Decimal
	IsProfitable  bool
}

// Calculate computes the two-sided-fee-adjusted profit of buying
// amount at buyPrice and selling it at sellPrice, where buyFeeRate
// and sellFeeRate are each venue's taker fee expressed as a fraction
// of notional (e.g. 0.001 for 10 bps).
func (c *ProfitCalculator) Calculate(buyPrice, sellPrice, amount, buyFeeRate, sellFeeRate decimal.Decimal) Result {
	grossProfit := sellPrice.Sub(buyPrice).Mul(amount)

	buyNotional := buyPrice.Mul(amount)
	sellNotional := sellPrice.Mul(amount)
	buyFee := buyNotional.Mul(buyFeeRate)
	sellFee := sellNotional.Mul(sellFeeRate)

	netProfit := grossProfit.Sub(buyFee).Sub(sellFee)

	netProfitPct := decimal.Zero
	if !buyNotional.IsZero() {
		netProfitPct = netProfit.Div(buyNotional).Mul(decimal.NewFromInt(100))
	}

	return Result{
		GrossProfit:  grossProfit,
		BuyFee:       buyFee,
		SellFee:      sellFee,
		NetProfit:    netProfit,
		NetProfitPct: netProfitPct,
		IsProfitable: netProfit.IsPositive() && netProfitPct.GreaterThanOrEqual(c.minProfitPercent),
	}
}
