package money_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/internal/money"
)

func TestAmount_Basic(t *testing.T) {
	usdt := money.NewCurrency("usdt")
	amt := money.New(usdt, decimal.NewFromInt(100))

	if amt.IsZero() {
		t.Error("expected non-zero amount")
	}
	if amt.String() != "100 USDT" {
		t.Errorf("expected '100 USDT', got %q", amt.String())
	}
}

func TestAmount_Add(t *testing.T) {
	btc := money.NewCurrency("BTC")
	a := money.New(btc, decimal.NewFromFloat(1.5))
	b := money.New(btc, decimal.NewFromFloat(0.5))

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sum.Value().Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected 2, got %s", sum.Value())
	}
}

func TestAmount_CannotAddDifferentCurrencies(t *testing.T) {
	btc := money.New(money.NewCurrency("BTC"), decimal.NewFromInt(1))
	usdt := money.New(money.NewCurrency("USDT"), decimal.NewFromInt(1))

	if _, err := btc.Add(usdt); err == nil {
		t.Error("expected error adding different currencies")
	}
}

func TestAmount_SubNegativeResultErrors(t *testing.T) {
	usdt := money.NewCurrency("USDT")
	small := money.New(usdt, decimal.NewFromInt(1))
	big := money.New(usdt, decimal.NewFromInt(2))

	if _, err := small.Sub(big); err == nil {
		t.Error("expected error for negative result")
	}
}

func TestAmount_NewPanicsOnNegative(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic constructing a negative amount")
		}
	}()
	money.New(money.NewCurrency("USDT"), decimal.NewFromInt(-1))
}

func TestInstrument_ParseAndString(t *testing.T) {
	instrument, ok := money.ParseInstrument("BTC/USDT")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if instrument.String() != "BTC/USDT" {
		t.Errorf("expected 'BTC/USDT', got %q", instrument.String())
	}
	if instrument.Base.Symbol() != "BTC" || instrument.Quote.Symbol() != "USDT" {
		t.Errorf("unexpected base/quote: %s/%s", instrument.Base, instrument.Quote)
	}
}

func TestInstrument_ParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{"BTCUSDT", "/USDT", "BTC/", ""} {
		if _, ok := money.ParseInstrument(s); ok {
			t.Errorf("expected parse of %q to fail", s)
		}
	}
}
