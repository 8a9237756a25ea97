package app

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	ledgerapp "github.com/fd1az/arbitrage-bot/business/ledger/app"
	venueapp "github.com/fd1az/arbitrage-bot/business/venue/app"
	venuedomain "github.com/fd1az/arbitrage-bot/business/venue/domain"
	"github.com/fd1az/arbitrage-bot/business/venue/infra/simulated"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/money"
	"github.com/fd1az/arbitrage-bot/internal/ratelimit"
)

func testEngineLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

type stubReporter struct{}

func (stubReporter) Start(ctx context.Context) error                        { return nil }
func (stubReporter) ReportOpportunity(opp domain.Opportunity)               {}
func (stubReporter) ReportExecution(opp domain.Opportunity, buy, sell *venuedomain.OrderResult, err error) {
}
func (stubReporter) UpdateConnectionStatus(venue string, connected bool, latency time.Duration) {}
func (stubReporter) Stop() error                                                                { return nil }

var _ Reporter = stubReporter{}

func testOpportunityFixture(instrument money.Instrument) domain.Opportunity {
	return domain.Opportunity{
		Instrument:    instrument,
		BuyVenue:      "alpha",
		SellVenue:     "beta",
		BuyPrice:      decimal.NewFromInt(100),
		SellPrice:     decimal.NewFromInt(101),
		Amount:        decimal.NewFromInt(1),
		ProfitAmount:  decimal.NewFromFloat(0.8),
		ProfitPercent: decimal.NewFromFloat(0.8),
		Timestamp:     time.Now(),
	}
}

func TestEngine_ValidateOpportunity(t *testing.T) {
	e := &Engine{cfg: DefaultEngineConfig(), log: testEngineLogger()}

	instrument, _ := money.ParseInstrument("BTC/USDT")
	base := testOpportunityFixture(instrument)

	if !e.validateOpportunity(base) {
		t.Error("expected a fresh, profitable opportunity to validate")
	}

	stale := base
	stale.Timestamp = time.Now().Add(-time.Minute)
	if e.validateOpportunity(stale) {
		t.Error("expected a stale opportunity to be rejected")
	}

	unprofitable := base
	unprofitable.ProfitAmount = decimal.Zero
	if e.validateOpportunity(unprofitable) {
		t.Error("expected a non-positive-profit opportunity to be rejected")
	}

	tooSmall := base
	tooSmall.Amount = decimal.NewFromFloat(0.00001)
	if e.validateOpportunity(tooSmall) {
		t.Error("expected an amount below the minimum to be rejected")
	}
}

func TestEngine_AcquireTradeKeyIsExclusive(t *testing.T) {
	e := &Engine{activeTrades: make(map[string]struct{})}

	if !e.acquireTradeKey("BTC/USDT-alpha-beta") {
		t.Fatal("expected first acquire to succeed")
	}
	if e.acquireTradeKey("BTC/USDT-alpha-beta") {
		t.Error("expected a second acquire of the same key to fail while held")
	}

	e.releaseTradeKey("BTC/USDT-alpha-beta")
	if !e.acquireTradeKey("BTC/USDT-alpha-beta") {
		t.Error("expected acquire to succeed again after release")
	}
}

func TestEngine_ShouldExecuteRespectsMaxConcurrentTrades(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.MaxConcurrentTrades = 1
	e := &Engine{cfg: cfg, log: testEngineLogger(), activeTrades: map[string]struct{}{"already-running": {}}}

	instrument, _ := money.ParseInstrument("BTC/USDT")
	opp := testOpportunityFixture(instrument)

	if e.shouldExecute(context.Background(), opp) {
		t.Error("expected shouldExecute to reject when at max concurrent trades")
	}
}

// buildTestGateway wires two simulated venues quoting the same
// instrument at different prices, guaranteeing a discoverable
// arbitrage opportunity for integration-style engine tests.
func buildTestGateway(t *testing.T) (*venueapp.Gateway, money.Instrument) {
	t.Helper()
	log := testEngineLogger()
	instrument, _ := money.ParseInstrument("BTC/USDT")

	lowCfg := simulated.DefaultConfig("alpha")
	lowCfg.Instruments = []simulated.InstrumentConfig{{
		Instrument: instrument, StartPrice: decimal.NewFromInt(100), SpreadBps: 5, VolatilityBp: 0, LevelCount: 5, LevelStepBp: 2,
	}}
	lowCfg.InitialBalances = map[string]decimal.Decimal{"BTC": decimal.NewFromInt(1000), "USDT": decimal.NewFromInt(1_000_000)}
	lowDriver := simulated.New(lowCfg, log)

	highCfg := simulated.DefaultConfig("beta")
	highCfg.Instruments = []simulated.InstrumentConfig{{
		Instrument: instrument, StartPrice: decimal.NewFromInt(110), SpreadBps: 5, VolatilityBp: 0, LevelCount: 5, LevelStepBp: 2,
	}}
	highCfg.InitialBalances = map[string]decimal.Decimal{"BTC": decimal.NewFromInt(1000), "USDT": decimal.NewFromInt(1_000_000)}
	highDriver := simulated.New(highCfg, log)

	handles := map[string]*venueapp.VenueHandle{
		"alpha": venueapp.NewVenueHandle("alpha", lowDriver, venueapp.DefaultHandleConfig(), log),
		"beta":  venueapp.NewVenueHandle("beta", highDriver, venueapp.DefaultHandleConfig(), log),
	}

	limiter := ratelimit.New(ratelimit.DefaultConfig())
	gw := venueapp.NewGateway(handles, limiter, venueapp.DefaultGatewayConfig(), log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	for venue := range handles {
		_ = gw.EnsureSubscribed(ctx, venue, instrument)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, aErr := gw.GetOrderBook("alpha", instrument, 10)
		_, bErr := gw.GetOrderBook("beta", instrument, 10)
		if aErr == nil && bErr == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	return gw, instrument
}

func TestEngine_CheckBalancesReflectsReservations(t *testing.T) {
	gw, instrument := buildTestGateway(t)

	e := &Engine{gateway: gw, cfg: DefaultEngineConfig(), log: testEngineLogger()}
	opp := domain.Opportunity{
		Instrument: instrument,
		BuyVenue:   "alpha",
		SellVenue:  "beta",
		BuyPrice:   decimal.NewFromInt(100),
		SellPrice:  decimal.NewFromInt(110),
		Amount:     decimal.NewFromInt(1),
	}

	if !e.checkBalances(context.Background(), opp, "trade-1") {
		t.Fatal("expected balances to be sufficient before any reservation")
	}

	gw.ReserveBalance("someone-else", "alpha", "USDT", decimal.NewFromInt(999_999))
	if e.checkBalances(context.Background(), opp, "trade-1") {
		t.Error("expected balances to be insufficient once nearly all quote currency is reserved by another trade")
	}
}

func TestEngine_BuildCandidatesFindsCrossVenueOpportunity(t *testing.T) {
	gw, instrument := buildTestGateway(t)

	calc := NewProfitCalculator(decimal.NewFromFloat(0.1))
	ledgerCfg := ledgerapp.Config{FilePath: filepath.Join(t.TempDir(), "ledger.json"), OrphanThreshold: time.Hour}
	l := ledgerapp.New(ledgerCfg, testEngineLogger())

	e := NewEngine(gw, l, calc, stubReporter{}, []string{"alpha", "beta"}, []money.Instrument{instrument}, DefaultEngineConfig(), testEngineLogger())

	books := make(map[string]*venuedomain.OrderBookSnapshot)
	for _, v := range []string{"alpha", "beta"} {
		snap, err := gw.GetOrderBook(v, instrument, 10)
		if err != nil {
			t.Fatalf("GetOrderBook(%s): %v", v, err)
		}
		books[v] = snap
	}

	candidates := e.buildCandidates(context.Background(), instrument, books)
	if len(candidates) == 0 {
		t.Fatal("expected at least one profitable candidate between a 100-priced and 110-priced venue")
	}

	best := candidates[0]
	if best.BuyVenue != "alpha" || best.SellVenue != "beta" {
		t.Errorf("expected to buy on the cheaper venue and sell on the pricier one, got buy=%s sell=%s", best.BuyVenue, best.SellVenue)
	}
}
