// Package domain models the trade state ledger's persisted entries.
package domain

import (
	"strconv"
	"time"

	arbitrage "github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	venue "github.com/fd1az/arbitrage-bot/business/venue/domain"
)

// EpochMillis is a time.Time that serializes to/from the on-disk
// ledger's epoch-millisecond timestamp format instead of RFC3339.
type EpochMillis time.Time

// NewEpochMillis wraps t for storage in a ledger document.
func NewEpochMillis(t time.Time) EpochMillis {
	return EpochMillis(t)
}

// Time unwraps the underlying time.Time.
func (e EpochMillis) Time() time.Time {
	return time.Time(e)
}

// MarshalJSON writes the timestamp as a bare epoch-millisecond integer.
func (e EpochMillis) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(time.Time(e).UnixMilli(), 10)), nil
}

// UnmarshalJSON reads an epoch-millisecond integer.
func (e *EpochMillis) UnmarshalJSON(data []byte) error {
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*e = EpochMillis(time.UnixMilli(ms))
	return nil
}

// Status is a TradeLedgerEntry's position in its lifecycle:
// pending -> buyExecuted -> {completed, failed}, or pending -> failed
// on early abort.
type Status string

const (
	StatusPending      Status = "pending"
	StatusBuyExecuted  Status = "buyExecuted"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Terminal reports whether s is a terminal status; entries in a
// terminal status are removed from the active set.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TradeLedgerEntry records one arbitrage attempt from intent through
// resolution. It is created before any order is sent so a crash
// between the buy and sell legs leaves a durable trace an operator
// can act on.
type TradeLedgerEntry struct {
	TradeKey    string                `json:"tradeKey"`
	Opportunity arbitrage.Opportunity `json:"opportunity"`
	Status      Status                `json:"status"`
	BuyResult   *venue.OrderResult    `json:"buyResult,omitempty"`
	SellResult  *venue.OrderResult    `json:"sellResult,omitempty"`
	FailReason  string                `json:"failReason,omitempty"`
	StartedAt   EpochMillis           `json:"startedAt"`
	UpdatedAt   EpochMillis           `json:"updatedAt"`
}

// IsOrphaned reports whether the entry has sat unresolved longer than
// threshold, measured from now.
func (e TradeLedgerEntry) IsOrphaned(now time.Time, threshold time.Duration) bool {
	return !e.Status.Terminal() && now.Sub(e.StartedAt.Time()) > threshold
}

// Document is the on-disk shape of the ledger file: a version tag for
// forward-compatible loading, the time of the last mutation, and the
// full set of entries not yet in a terminal status.
type Document struct {
	Version      int                         `json:"version"`
	LastUpdated  EpochMillis                 `json:"lastUpdated"`
	ActiveTrades map[string]TradeLedgerEntry `json:"activeTrades"`
}

// CurrentVersion is the Document schema version this ledger writes
// and expects to read. A mismatch on load means starting empty.
const CurrentVersion = 1

// RecentOrderEntry short-circuits retried order submissions: a
// clientOrderId maps to the venue and order id it was actually
// assigned, for a bounded TTL.
type RecentOrderEntry struct {
	ClientOrderID string
	VenueOrderID  string
	Venue         string
	RecordedAt    time.Time
}
