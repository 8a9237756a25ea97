// Package arbitrage implements the arbitrage strategy engine bounded
// context: cross-venue opportunity scanning, gating and execution.
package arbitrage

import (
	"context"

	"github.com/fd1az/arbitrage-bot/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/arbitrage-bot/business/arbitrage/di"
	"github.com/fd1az/arbitrage-bot/business/arbitrage/infra"
	ledgerDI "github.com/fd1az/arbitrage-bot/business/ledger/di"
	venueDI "github.com/fd1az/arbitrage-bot/business/venue/di"
	"github.com/fd1az/arbitrage-bot/internal/config"
	"github.com/fd1az/arbitrage-bot/internal/di"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/monolith"
	"github.com/fd1az/arbitrage-bot/internal/money"
	"github.com/shopspring/decimal"
)

// Module implements the arbitrage strategy engine bounded context.
type Module struct{}

// RegisterServices registers the profit calculator, reporter and
// strategy engine with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbitrageDI.ProfitCalculator, func(sr di.ServiceRegistry) *app.ProfitCalculator {
		cfg := sr.Get("config").(*config.Config)
		return app.NewProfitCalculator(cfg.Strategy.MinProfitPercentDecimal())
	})

	di.RegisterToken(c, arbitrageDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		return infra.NewConsoleReporter()
	})

	di.RegisterToken(c, arbitrageDI.Engine, func(sr di.ServiceRegistry) *app.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		gw := venueDI.GetGateway(sr)
		l := ledgerDI.GetLedger(sr)
		calc := arbitrageDI.GetProfitCalculator(sr)
		reporter := arbitrageDI.GetReporter(sr)

		instruments := parseInstruments(cfg.Trading.Symbols)

		engineCfg := app.DefaultEngineConfig()
		engineCfg.CheckInterval = cfg.Strategy.CheckInterval
		engineCfg.MaxConcurrentTrades = cfg.Trading.MaxConcurrentTrades
		engineCfg.MaxTradeAmount = cfg.Strategy.MaxTradeAmountDecimal()
		engineCfg.MinProfitPercent = cfg.Strategy.MinProfitPercentDecimal()
		engineCfg.MaxSlippagePercent = decimal.NewFromFloat(cfg.Strategy.MaxSlippagePercent)
		engineCfg.PartialFillThreshold = decimal.NewFromFloat(cfg.Strategy.PartialFillThresholdPercent)
		engineCfg.PriceTolerancePercent = decimal.NewFromFloat(cfg.Strategy.PriceTolerancePercent)
		engineCfg.MaxProfitErosionPercent = decimal.NewFromFloat(cfg.Strategy.MaxProfitErosionPercent)
		engineCfg.DynamicToleranceEnabled = cfg.Strategy.DynamicToleranceEnabled
		engineCfg.OrderBookDepth = cfg.Trading.OrderBookDepth
		engineCfg.ReservePercent = cfg.Strategy.ReservePercentDecimal()

		return app.NewEngine(gw, l, calc, reporter, cfg.Venues.Enabled, instruments, engineCfg, log)
	})

	return nil
}

// Startup starts the strategy engine's scan loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	engine := arbitrageDI.GetEngine(mono.Services())
	return engine.Start(ctx)
}

func parseInstruments(symbols []string) []money.Instrument {
	out := make([]money.Instrument, 0, len(symbols))
	for _, s := range symbols {
		if instrument, ok := money.ParseInstrument(s); ok {
			out = append(out, instrument)
		}
	}
	return out
}
