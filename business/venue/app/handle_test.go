package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/venue/domain"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/money"
)

// fakeDriver is a minimal VenueDriver stub for handle/gateway tests.
// Each method is backed by a settable func field so tests only wire
// up what they exercise; unset fields panic loudly if called.
type fakeDriver struct {
	streamOrderBookFn func(ctx context.Context, instrument money.Instrument, depth int) (<-chan *domain.OrderBookSnapshot, error)
	fetchBalanceFn    func(ctx context.Context, currency money.Currency) (decimal.Decimal, error)
	fetchFeesFn       func(ctx context.Context, instrument money.Instrument) (domain.TradingFees, error)
	createOrderFn     func(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error)
	fetchRecentFn     func(ctx context.Context, instrument money.Instrument, limit int) ([]domain.OrderResult, error)
	acceptedDepths    []int
}

func (f *fakeDriver) Capabilities() domain.Capability { return 0 }

func (f *fakeDriver) LoadInstruments(ctx context.Context) ([]money.Instrument, error) {
	return nil, nil
}

func (f *fakeDriver) FetchOrderBook(ctx context.Context, instrument money.Instrument, depth int) (*domain.OrderBookSnapshot, error) {
	return nil, nil
}

func (f *fakeDriver) StreamOrderBook(ctx context.Context, instrument money.Instrument, depth int) (<-chan *domain.OrderBookSnapshot, error) {
	return f.streamOrderBookFn(ctx, instrument, depth)
}

func (f *fakeDriver) FetchBalance(ctx context.Context, currency money.Currency) (decimal.Decimal, error) {
	if f.fetchBalanceFn != nil {
		return f.fetchBalanceFn(ctx, currency)
	}
	return decimal.Zero, nil
}

func (f *fakeDriver) FetchTradingFees(ctx context.Context, instrument money.Instrument) (domain.TradingFees, error) {
	if f.fetchFeesFn != nil {
		return f.fetchFeesFn(ctx, instrument)
	}
	return domain.DefaultFees(), nil
}

func (f *fakeDriver) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	if f.createOrderFn != nil {
		return f.createOrderFn(ctx, req)
	}
	return nil, nil
}

func (f *fakeDriver) FetchOrder(ctx context.Context, venueOrderID string, instrument money.Instrument) (*domain.OrderResult, error) {
	return nil, nil
}

func (f *fakeDriver) FetchRecentOrders(ctx context.Context, instrument money.Instrument, limit int) ([]domain.OrderResult, error) {
	if f.fetchRecentFn != nil {
		return f.fetchRecentFn(ctx, instrument, limit)
	}
	return nil, nil
}

func (f *fakeDriver) CancelOrder(ctx context.Context, venueOrderID string, instrument money.Instrument) error {
	return nil
}

func (f *fakeDriver) AcceptedDepths() []int { return f.acceptedDepths }

func (f *fakeDriver) Close() error { return nil }

func testHandleLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func TestBackoffFor(t *testing.T) {
	initial := time.Second
	max := 10 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 8 * time.Second},
		{attempt: 5, want: 10 * time.Second}, // capped
		{attempt: 10, want: 10 * time.Second},
	}
	for _, tt := range tests {
		if got := backoffFor(initial, max, tt.attempt); got != tt.want {
			t.Errorf("backoffFor(attempt=%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestVenueHandle_SubscribeConsumesSnapshots(t *testing.T) {
	instrument, _ := money.ParseInstrument("BTC/USDT")
	ch := make(chan *domain.OrderBookSnapshot, 1)
	ch <- &domain.OrderBookSnapshot{
		Venue:          "alpha",
		Instrument:     instrument,
		Asks:           []domain.OrderBookLevel{{Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(1)}},
		VenueTimestamp: time.Now(),
	}

	driver := &fakeDriver{
		streamOrderBookFn: func(ctx context.Context, instrument money.Instrument, depth int) (<-chan *domain.OrderBookSnapshot, error) {
			return ch, nil
		},
	}

	handle := NewVenueHandle("alpha", driver, DefaultHandleConfig(), testHandleLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle.Subscribe(ctx, instrument, 10)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := handle.LatestOrderBook(instrument); ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	snap, ok := handle.LatestOrderBook(instrument)
	if !ok {
		t.Fatal("expected a snapshot to have been consumed")
	}
	if snap.Venue != "alpha" {
		t.Errorf("snapshot venue = %q, want alpha", snap.Venue)
	}

	if err := handle.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	// Close is idempotent.
	if err := handle.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestVenueHandle_NormalizeDepthDelegatesToDriver(t *testing.T) {
	driver := &fakeDriver{acceptedDepths: []int{5, 10, 20}}
	handle := NewVenueHandle("alpha", driver, DefaultHandleConfig(), testHandleLogger())

	depth, capped := handle.NormalizeDepth(7)
	if depth != 10 || capped {
		t.Errorf("NormalizeDepth(7) = (%d, %v), want (10, false)", depth, capped)
	}
}
