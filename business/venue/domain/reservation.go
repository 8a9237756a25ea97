package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceReservation earmarks a venue/currency balance for a specific
// in-flight trade so a second trade cannot double-spend it before the
// first trade's orders settle. Reservations expire automatically after
// a bounded TTL if never released.
type BalanceReservation struct {
	TradeKey  string
	Venue     string
	Currency  string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// IsExpired reports whether the reservation has outlived ttl.
func (r BalanceReservation) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.CreatedAt) > ttl
}
