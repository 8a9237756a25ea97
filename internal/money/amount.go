package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Common errors, mirroring the same-asset arithmetic guard pattern.
var (
	ErrNilCurrency        = errors.New("money: nil currency")
	ErrNegativeAmount     = errors.New("money: negative amount")
	ErrCurrencyMismatch   = errors.New("money: cannot operate on different currencies")
	ErrNegativeResult     = errors.New("money: operation would result in negative amount")
	ErrDivisionByZero     = errors.New("money: division by zero")
)

// Amount is an immutable Value Object representing a non-negative
// quantity of a currency. It is the type used for balances, fills,
// fees and reservations — anywhere a negative value would indicate a
// bug rather than a legitimate business outcome. Signed deltas (like
// profit, which may be negative) are plain decimal.Decimal in the
// arbitrage domain, not Amount.
type Amount struct {
	value    decimal.Decimal
	currency Currency
}

// New creates an Amount from a decimal.Decimal value. Panics if the
// value is negative — construction time is where a negative amount
// should be caught, not at the first use site.
func New(currency Currency, value decimal.Decimal) Amount {
	if currency.IsZero() {
		panic(ErrNilCurrency)
	}
	if value.IsNegative() {
		panic(ErrNegativeAmount)
	}
	return Amount{value: value, currency: currency}
}

// Zero creates a zero Amount in the given currency.
func Zero(currency Currency) Amount {
	return Amount{value: decimal.Zero, currency: currency}
}

// Parse creates an Amount from a decimal string.
func Parse(currency Currency, s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("money: invalid decimal string: %w", err)
	}
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}
	return Amount{value: d, currency: currency}, nil
}

// Value returns the underlying decimal value.
func (a Amount) Value() decimal.Decimal {
	return a.value
}

// Currency returns the currency this amount is denominated in.
func (a Amount) Currency() Currency {
	return a.currency
}

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool {
	return a.value.IsPositive()
}

// Add adds two amounts of the same currency.
func (a Amount) Add(b Amount) (Amount, error) {
	if err := a.checkSameCurrency(b); err != nil {
		return Amount{}, err
	}
	return Amount{value: a.value.Add(b.value), currency: a.currency}, nil
}

// MustAdd adds two amounts, panics on error.
func (a Amount) MustAdd(b Amount) Amount {
	result, err := a.Add(b)
	if err != nil {
		panic(err)
	}
	return result
}

// Sub subtracts b from a (same currency only); errors if the result
// would be negative.
func (a Amount) Sub(b Amount) (Amount, error) {
	if err := a.checkSameCurrency(b); err != nil {
		return Amount{}, err
	}
	diff := a.value.Sub(b.value)
	if diff.IsNegative() {
		return Amount{}, ErrNegativeResult
	}
	return Amount{value: diff, currency: a.currency}, nil
}

// MustSub subtracts b from a, panics on error.
func (a Amount) MustSub(b Amount) Amount {
	result, err := a.Sub(b)
	if err != nil {
		panic(err)
	}
	return result
}

// MulDecimal multiplies the amount by a non-negative decimal factor
// (used for applying fee rates and percentage adjustments).
func (a Amount) MulDecimal(factor decimal.Decimal) Amount {
	if factor.IsNegative() {
		panic(ErrNegativeAmount)
	}
	return Amount{value: a.value.Mul(factor), currency: a.currency}
}

// DivDecimal divides the amount by a positive decimal divisor.
func (a Amount) DivDecimal(divisor decimal.Decimal) (Amount, error) {
	if divisor.IsZero() {
		return Amount{}, ErrDivisionByZero
	}
	if divisor.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}
	return Amount{value: a.value.Div(divisor), currency: a.currency}, nil
}

// Cmp compares two amounts of the same currency.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func (a Amount) Cmp(b Amount) (int, error) {
	if err := a.checkSameCurrency(b); err != nil {
		return 0, err
	}
	return a.value.Cmp(b.value), nil
}

// GreaterThanOrEqual returns true if a >= b.
func (a Amount) GreaterThanOrEqual(b Amount) (bool, error) {
	cmp, err := a.Cmp(b)
	if err != nil {
		return false, err
	}
	return cmp >= 0, nil
}

// LessThan returns true if a < b.
func (a Amount) LessThan(b Amount) (bool, error) {
	cmp, err := a.Cmp(b)
	if err != nil {
		return false, err
	}
	return cmp < 0, nil
}

// String returns a human-readable representation (e.g. "1.5 USDT").
func (a Amount) String() string {
	if a.currency.IsZero() {
		return a.value.String() + " ???"
	}
	return a.value.String() + " " + a.currency.Symbol()
}

// StringFixed returns a string with fixed decimal places.
func (a Amount) StringFixed(places int32) string {
	if a.currency.IsZero() {
		return a.value.StringFixed(places) + " ???"
	}
	return a.value.StringFixed(places) + " " + a.currency.Symbol()
}

func (a Amount) checkSameCurrency(b Amount) error {
	if a.currency.IsZero() || b.currency.IsZero() {
		return ErrNilCurrency
	}
	if !a.currency.Equals(b.currency) {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, a.currency.Symbol(), b.currency.Symbol())
	}
	return nil
}
