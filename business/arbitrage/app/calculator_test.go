package app

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestProfitCalculator_Calculate(t *testing.T) {
	tests := []struct {
		name           string
		minProfitPct   string
		buyPrice       string
		sellPrice      string
		amount         string
		buyFeeRate     string
		sellFeeRate    string
		wantGross      string
		wantNet        string
		wantProfitable bool
	}{
		{
			name:           "profitable_clear_spread",
			minProfitPct:   "0.1",
			buyPrice:       "100",
			sellPrice:      "101",
			amount:         "10",
			buyFeeRate:     "0.001",
			sellFeeRate:    "0.001",
			wantGross:      "10",   // (101-100)*10
			wantNet:        "7.99", // 10 - (100*10*0.001) - (101*10*0.001) = 10 - 1 - 1.01
			wantProfitable: true,
		},
		{
			name:           "unprofitable_fees_eat_spread",
			minProfitPct:   "0.1",
			buyPrice:       "100",
			sellPrice:      "100.05",
			amount:         "10",
			buyFeeRate:     "0.001",
			sellFeeRate:    "0.001",
			wantGross:      "0.5",
			wantNet:        "-1.50", // 0.5 - 1 - 1.0005
			wantProfitable: false,
		},
		{
			name:           "zero_spread_unprofitable",
			minProfitPct:   "0",
			buyPrice:       "100",
			sellPrice:      "100",
			amount:         "5",
			buyFeeRate:     "0.001",
			sellFeeRate:    "0.001",
			wantGross:      "0",
			wantNet:        "-1", // 0 - 0.5 - 0.5
			wantProfitable: false,
		},
		{
			name:           "below_min_profit_threshold",
			minProfitPct:   "5",
			buyPrice:       "100",
			sellPrice:      "102",
			amount:         "1",
			buyFeeRate:     "0",
			sellFeeRate:    "0",
			wantGross:      "2",
			wantNet:        "2",
			wantProfitable: false, // 2% net < 5% threshold
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := NewProfitCalculator(decimal.RequireFromString(tt.minProfitPct))

			result := calc.Calculate(
				decimal.RequireFromString(tt.buyPrice),
				decimal.RequireFromString(tt.sellPrice),
				decimal.RequireFromString(tt.amount),
				decimal.RequireFromString(tt.buyFeeRate),
				decimal.RequireFromString(tt.sellFeeRate),
			)

			if result.IsProfitable != tt.wantProfitable {
				t.Errorf("IsProfitable = %v, want %v (net=%s)", result.IsProfitable, tt.wantProfitable, result.NetProfit)
			}

			wantGross := decimal.RequireFromString(tt.wantGross)
			if !result.GrossProfit.Round(2).Equal(wantGross.Round(2)) {
				t.Errorf("GrossProfit = %s, want %s", result.GrossProfit, wantGross)
			}

			wantNet := decimal.RequireFromString(tt.wantNet)
			if !result.NetProfit.Round(2).Equal(wantNet.Round(2)) {
				t.Errorf("NetProfit = %s, want %s", result.NetProfit.Round(2), wantNet)
			}
		})
	}
}

func TestProfitCalculator_GrossProfit_SignFollowsDirection(t *testing.T) {
	calc := NewProfitCalculator(decimal.Zero)

	forward := calc.Calculate(decimal.NewFromInt(100), decimal.NewFromInt(105), decimal.NewFromInt(1), decimal.Zero, decimal.Zero)
	reverse := calc.Calculate(decimal.NewFromInt(105), decimal.NewFromInt(100), decimal.NewFromInt(1), decimal.Zero, decimal.Zero)

	if !forward.GrossProfit.Equal(reverse.GrossProfit.Neg()) {
		t.Errorf("expected opposite-signed gross profits, got %s and %s", forward.GrossProfit, reverse.GrossProfit)
	}
}
