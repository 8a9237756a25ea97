package supervisor_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	arbitrageApp "github.com/fd1az/arbitrage-bot/business/arbitrage/app"
	arbitrageDomain "github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	ledgerApp "github.com/fd1az/arbitrage-bot/business/ledger/app"
	venueApp "github.com/fd1az/arbitrage-bot/business/venue/app"
	venueDomain "github.com/fd1az/arbitrage-bot/business/venue/domain"
	"github.com/fd1az/arbitrage-bot/business/venue/infra/simulated"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/money"
	"github.com/fd1az/arbitrage-bot/internal/ratelimit"
	"github.com/fd1az/arbitrage-bot/internal/supervisor"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

type noopReporter struct{}

func (noopReporter) Start(ctx context.Context) error              { return nil }
func (noopReporter) ReportOpportunity(arbitrageDomain.Opportunity) {}
func (noopReporter) ReportExecution(arbitrageDomain.Opportunity, *venueDomain.OrderResult, *venueDomain.OrderResult, error) {
}
func (noopReporter) UpdateConnectionStatus(string, bool, time.Duration) {}
func (noopReporter) Stop() error                                       { return nil }

var _ arbitrageApp.Reporter = noopReporter{}

func buildHarness(t *testing.T) (*arbitrageApp.Engine, *venueApp.Gateway) {
	t.Helper()
	log := testLogger()
	instrument, _ := money.ParseInstrument("BTC/USDT")

	driverCfg := simulated.DefaultConfig("alpha")
	driverCfg.Instruments = []simulated.InstrumentConfig{{
		Instrument: instrument, StartPrice: decimal.NewFromInt(100),
	}}
	driver := simulated.New(driverCfg, log)
	handle := venueApp.NewVenueHandle("alpha", driver, venueApp.DefaultHandleConfig(), log)

	gw := venueApp.NewGateway(map[string]*venueApp.VenueHandle{"alpha": handle}, ratelimit.New(ratelimit.DefaultConfig()), venueApp.DefaultGatewayConfig(), log)

	ledgerCfg := ledgerApp.Config{FilePath: filepath.Join(t.TempDir(), "ledger.json"), OrphanThreshold: time.Hour}
	l := ledgerApp.New(ledgerCfg, log)

	calc := arbitrageApp.NewProfitCalculator(decimal.NewFromFloat(0.1))
	engineCfg := arbitrageApp.DefaultEngineConfig()
	engineCfg.CheckInterval = 10 * time.Millisecond
	engineCfg.ShutdownDrainTimeout = 200 * time.Millisecond

	engine := arbitrageApp.NewEngine(gw, l, calc, noopReporter{}, []string{"alpha"}, []money.Instrument{instrument}, engineCfg, log)
	return engine, gw
}

func TestParseDrainBehavior(t *testing.T) {
	for _, valid := range []string{"cancel", "wait", "force"} {
		if _, err := supervisor.ParseDrainBehavior(valid); err != nil {
			t.Errorf("expected %q to be a valid drain behavior, got %v", valid, err)
		}
	}
	if _, err := supervisor.ParseDrainBehavior("explode"); err == nil {
		t.Error("expected an unknown drain behavior to be rejected")
	}
}

func TestSupervisor_RunShutsDownOnContextCancellation(t *testing.T) {
	engine, gw := buildHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("engine.Start: %v", err)
	}

	sup := supervisor.New(supervisor.Config{ShutdownBehavior: supervisor.DrainWait}, engine, gw, testLogger())

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned an error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not shut down within the deadline")
	}
}

func TestSupervisor_ForceShutdownSkipsDrain(t *testing.T) {
	engine, gw := buildHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		t.Fatalf("engine.Start: %v", err)
	}

	sup := supervisor.New(supervisor.Config{ShutdownBehavior: supervisor.DrainForce}, engine, gw, testLogger())
	if err := sup.Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
