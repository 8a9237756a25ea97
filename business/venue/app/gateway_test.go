package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/venue/domain"
	"github.com/fd1az/arbitrage-bot/internal/money"
	"github.com/fd1az/arbitrage-bot/internal/ratelimit"
)

func newTestGateway(t *testing.T, driver VenueDriver) *Gateway {
	t.Helper()
	handle := NewVenueHandle("alpha", driver, DefaultHandleConfig(), testHandleLogger())
	limiter := ratelimit.New(ratelimit.DefaultConfig())
	return NewGateway(map[string]*VenueHandle{"alpha": handle}, limiter, DefaultGatewayConfig(), testHandleLogger())
}

func TestGateway_HandleUnknownVenueErrors(t *testing.T) {
	gw := newTestGateway(t, &fakeDriver{})
	if _, err := gw.GetOrderBook("nonexistent", money.Instrument{}, 10); err == nil {
		t.Error("expected error for unregistered venue")
	}
}

func TestGateway_GetTradingFeesCachesAcrossCalls(t *testing.T) {
	instrument, _ := money.ParseInstrument("BTC/USDT")
	calls := 0
	driver := &fakeDriver{
		fetchFeesFn: func(ctx context.Context, instrument money.Instrument) (domain.TradingFees, error) {
			calls++
			return domain.TradingFees{TakerRate: decimal.NewFromFloat(0.002)}, nil
		},
	}
	gw := newTestGateway(t, driver)

	first := gw.GetTradingFees(context.Background(), "alpha", instrument)
	second := gw.GetTradingFees(context.Background(), "alpha", instrument)

	if calls != 1 {
		t.Errorf("expected exactly one driver fetch, got %d", calls)
	}
	if !first.TakerRate.Equal(second.TakerRate) {
		t.Error("expected cached fees to match")
	}
}

func TestGateway_GetTradingFeesFallsBackToDefaultOnError(t *testing.T) {
	instrument, _ := money.ParseInstrument("BTC/USDT")
	driver := &fakeDriver{
		fetchFeesFn: func(ctx context.Context, instrument money.Instrument) (domain.TradingFees, error) {
			return domain.TradingFees{}, errors.New("fetch failed")
		},
	}
	gw := newTestGateway(t, driver)

	fees := gw.GetTradingFees(context.Background(), "alpha", instrument)
	if !fees.TakerRate.Equal(domain.DefaultFees().TakerRate) {
		t.Errorf("expected default taker rate on fetch failure, got %s", fees.TakerRate)
	}
}

func TestGateway_ReserveAndReleaseBalance(t *testing.T) {
	driver := &fakeDriver{
		fetchBalanceFn: func(ctx context.Context, currency money.Currency) (decimal.Decimal, error) {
			return decimal.NewFromInt(100), nil
		},
	}
	gw := newTestGateway(t, driver)

	gw.ReserveBalance("trade-1", "alpha", "USDT", decimal.NewFromInt(40))

	available, err := gw.AvailableBalance(context.Background(), "alpha", "USDT", "trade-2")
	if err != nil {
		t.Fatalf("AvailableBalance: %v", err)
	}
	if !available.Equal(decimal.NewFromInt(60)) {
		t.Errorf("expected 60 available after a 40 reservation, got %s", available)
	}

	// A trade excludes its own reservation from the total reserved
	// against it.
	own, err := gw.AvailableBalance(context.Background(), "alpha", "USDT", "trade-1")
	if err != nil {
		t.Fatalf("AvailableBalance: %v", err)
	}
	if !own.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected full balance excluding own reservation, got %s", own)
	}

	gw.ReleaseReservation("trade-1", "alpha", "USDT")
	afterRelease, err := gw.AvailableBalance(context.Background(), "alpha", "USDT", "trade-2")
	if err != nil {
		t.Fatalf("AvailableBalance: %v", err)
	}
	if !afterRelease.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected full balance after release, got %s", afterRelease)
	}
}

func TestGateway_ExecuteTradeIsIdempotentByClientOrderID(t *testing.T) {
	instrument, _ := money.ParseInstrument("BTC/USDT")
	calls := 0
	driver := &fakeDriver{
		createOrderFn: func(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
			calls++
			return &domain.OrderResult{
				Venue:           req.Venue,
				ClientOrderID:   req.ClientOrderID,
				RequestedAmount: req.Amount,
				FilledAmount:    req.Amount,
				Outcome:         domain.OutcomeSuccess,
			}, nil
		},
	}
	gw := newTestGateway(t, driver)

	req := domain.OrderRequest{
		Venue:         "alpha",
		Instrument:    instrument,
		Side:          domain.SideBuy,
		Amount:        decimal.NewFromInt(1),
		Type:          domain.OrderTypeMarket,
		ClientOrderID: "fixed-id",
	}

	first, err := gw.ExecuteTrade(context.Background(), req)
	if err != nil {
		t.Fatalf("first ExecuteTrade: %v", err)
	}
	second, err := gw.ExecuteTrade(context.Background(), req)
	if err != nil {
		t.Fatalf("second ExecuteTrade: %v", err)
	}

	if calls != 1 {
		t.Errorf("expected exactly one driver submission for a repeated clientOrderId, got %d", calls)
	}
	if first != second {
		t.Error("expected the second call to return the cached result pointer")
	}
}

func TestGateway_ExecuteTradeRejectionIsNotCachedAsSuccess(t *testing.T) {
	instrument, _ := money.ParseInstrument("BTC/USDT")
	driver := &fakeDriver{
		createOrderFn: func(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
			return nil, errors.New("insufficient balance")
		},
	}
	gw := newTestGateway(t, driver)

	req := domain.OrderRequest{
		Venue:         "alpha",
		Instrument:    instrument,
		Side:          domain.SideBuy,
		Amount:        decimal.NewFromInt(1),
		Type:          domain.OrderTypeMarket,
		ClientOrderID: "rejected-id",
	}

	result, err := gw.ExecuteTrade(context.Background(), req)
	if err == nil {
		t.Fatal("expected an error for a rejected order")
	}
	if result != nil {
		t.Error("expected a nil result on rejection")
	}
}

func TestGateway_ExecuteTradeReconcilesTimeoutByFuzzyMatch(t *testing.T) {
	instrument, _ := money.ParseInstrument("BTC/USDT")
	driver := &fakeDriver{
		createOrderFn: func(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
			return nil, errors.New("request timeout")
		},
		fetchRecentFn: func(ctx context.Context, instrument money.Instrument, limit int) ([]domain.OrderResult, error) {
			// The venue never echoes the caller's clientOrderId, which is
			// exactly why reconciliation matches on side/amount/age instead.
			return []domain.OrderResult{{
				Venue:           "alpha",
				VenueOrderID:    "venue-assigned-id",
				ClientOrderID:   "",
				Instrument:      instrument,
				Side:            domain.SideBuy,
				RequestedAmount: decimal.NewFromFloat(1.002), // within 1% of 1.0
				FilledAmount:    decimal.NewFromFloat(1.002),
				VenueTimestamp:  time.Now(),
				Outcome:         domain.OutcomeSuccess,
			}}, nil
		},
	}
	gw := newTestGateway(t, driver)

	req := domain.OrderRequest{
		Venue:         "alpha",
		Instrument:    instrument,
		Side:          domain.SideBuy,
		Amount:        decimal.NewFromInt(1),
		Type:          domain.OrderTypeMarket,
		ClientOrderID: "orphaned-id",
	}

	result, err := gw.ExecuteTrade(context.Background(), req)
	if err != nil {
		t.Fatalf("expected reconciliation to find the accepted order, got error: %v", err)
	}
	if result.VenueOrderID != "venue-assigned-id" {
		t.Errorf("expected the reconciled order, got %+v", result)
	}
}

func TestGateway_ExecuteTradeReconciliationMissNoStaleOrSideMismatch(t *testing.T) {
	instrument, _ := money.ParseInstrument("BTC/USDT")
	driver := &fakeDriver{
		createOrderFn: func(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
			return nil, errors.New("etimedout")
		},
		fetchRecentFn: func(ctx context.Context, instrument money.Instrument, limit int) ([]domain.OrderResult, error) {
			return []domain.OrderResult{
				{ // wrong side
					Side: domain.SideSell, RequestedAmount: decimal.NewFromInt(1),
					VenueTimestamp: time.Now(), Outcome: domain.OutcomeSuccess,
				},
				{ // too old
					Side: domain.SideBuy, RequestedAmount: decimal.NewFromInt(1),
					VenueTimestamp: time.Now().Add(-time.Minute), Outcome: domain.OutcomeSuccess,
				},
			}, nil
		},
	}
	gw := newTestGateway(t, driver)

	req := domain.OrderRequest{
		Venue: "alpha", Instrument: instrument, Side: domain.SideBuy,
		Amount: decimal.NewFromInt(1), Type: domain.OrderTypeMarket, ClientOrderID: "no-match-id",
	}

	if _, err := gw.ExecuteTrade(context.Background(), req); err == nil {
		t.Fatal("expected reconciliation to fail when no order matches side/age")
	}
}

func TestGateway_CloseClosesEveryHandle(t *testing.T) {
	gw := newTestGateway(t, &fakeDriver{})
	if err := gw.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
