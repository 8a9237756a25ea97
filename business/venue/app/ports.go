// Package app contains the venue gateway's orchestration logic: the
// VenueDriver capability contract, per-venue connection handles, and
// the Gateway that fronts every venue for the strategy engine.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/venue/domain"
	"github.com/fd1az/arbitrage-bot/internal/money"
)

// VenueDriver is the opaque per-venue adapter this module depends on.
// Production adapters translating a specific exchange's REST/WS
// protocol are out of scope for this module; business/venue/infra/simulated
// ships one reference implementation exercising every method below.
type VenueDriver interface {
	Capabilities() domain.Capability

	LoadInstruments(ctx context.Context) ([]money.Instrument, error)
	FetchOrderBook(ctx context.Context, instrument money.Instrument, depth int) (*domain.OrderBookSnapshot, error)
	StreamOrderBook(ctx context.Context, instrument money.Instrument, depth int) (<-chan *domain.OrderBookSnapshot, error)

	FetchBalance(ctx context.Context, currency money.Currency) (decimal.Decimal, error)
	FetchTradingFees(ctx context.Context, instrument money.Instrument) (domain.TradingFees, error)

	CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error)
	FetchOrder(ctx context.Context, venueOrderID string, instrument money.Instrument) (*domain.OrderResult, error)
	FetchRecentOrders(ctx context.Context, instrument money.Instrument, limit int) ([]domain.OrderResult, error)
	CancelOrder(ctx context.Context, venueOrderID string, instrument money.Instrument) error

	// AcceptedDepths returns the depth values the venue will accept,
	// ascending. Used to round a requested depth up to the nearest
	// supported value.
	AcceptedDepths() []int

	Close() error
}
