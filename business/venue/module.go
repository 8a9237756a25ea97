// Package venue implements the venue gateway bounded context: it
// fronts every configured trading venue behind a uniform VenueDriver
// contract, normalizes order book depth and staleness handling, and
// gives the arbitrage engine one place to submit orders idempotently.
package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/venue/app"
	venueDI "github.com/fd1az/arbitrage-bot/business/venue/di"
	"github.com/fd1az/arbitrage-bot/business/venue/infra/simulated"
	"github.com/fd1az/arbitrage-bot/internal/config"
	"github.com/fd1az/arbitrage-bot/internal/di"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/monolith"
	"github.com/fd1az/arbitrage-bot/internal/money"
	"github.com/fd1az/arbitrage-bot/internal/ratelimit"
)

// Module implements the venue gateway bounded context.
type Module struct{}

// RegisterServices registers the venue gateway with the DI container.
// Every enabled venue is wired to the simulated reference driver;
// swapping in a live exchange adapter means implementing
// business/venue/app.VenueDriver and branching on venue name here.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, venueDI.Gateway, func(sr di.ServiceRegistry) *app.Gateway {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		instruments := parseInstruments(cfg.Trading.Symbols)

		limiter := ratelimit.New(ratelimit.DefaultConfig())
		handles := make(map[string]*app.VenueHandle, len(cfg.Venues.Enabled))

		for _, venueID := range cfg.Venues.Enabled {
			creds := cfg.Venues.Credentials[venueID]
			if creds.RateLimit > 0 {
				limiter.Configure(venueID, ratelimit.Config{
					Capacity:          creds.RateLimit,
					RefillWindow:      ratelimit.DefaultConfig().RefillWindow,
					InitialBackoff:    ratelimit.DefaultConfig().InitialBackoff,
					MaxBackoff:        ratelimit.DefaultConfig().MaxBackoff,
					BackoffMultiplier: ratelimit.DefaultConfig().BackoffMultiplier,
				})
			}

			driverCfg := simulated.DefaultConfig(venueID)
			driverCfg.Instruments = seedInstruments(venueID, instruments)
			driverCfg.InitialBalances = seedBalances(instruments)
			driver := simulated.New(driverCfg, log)

			handles[venueID] = app.NewVenueHandle(venueID, driver, app.DefaultHandleConfig(), log)
		}

		gwCfg := app.DefaultGatewayConfig()
		gwCfg.OrderBookDepth = cfg.Trading.OrderBookDepth
		return app.NewGateway(handles, limiter, gwCfg, log)
	})

	return nil
}

// Startup subscribes every venue handle to every configured
// instrument's order book stream.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()
	gw := venueDI.GetGateway(mono.Services())

	instruments := parseInstruments(cfg.Trading.Symbols)
	for _, venueID := range cfg.Venues.Enabled {
		for _, instrument := range instruments {
			if err := gw.EnsureSubscribed(ctx, venueID, instrument); err != nil {
				log.Warn(ctx, "failed to subscribe venue to instrument", "venue", venueID, "instrument", instrument.String(), "error", err.Error())
			}
		}
	}

	log.Info(ctx, "venue module started", "venues", len(cfg.Venues.Enabled), "instruments", len(instruments))
	return nil
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

// seedInstruments seeds each instrument with a plausible starting
// price so the simulated driver's random walk has somewhere sane to
// start from. Venue identity perturbs the starting price slightly so
// venues don't all quote in perfect lockstep, giving the arbitrage
// engine something to find.
func seedInstruments(venueID string, instruments []money.Instrument) []simulated.InstrumentConfig {
	out := make([]simulated.InstrumentConfig, 0, len(instruments))
	for i, instrument := range instruments {
		base := decimal.NewFromFloat(100.0 * float64(i+1))
		skew := decimal.NewFromFloat(1 + 0.0005*float64(len(venueID)%7))
		out = append(out, simulated.InstrumentConfig{
			Instrument:   instrument,
			StartPrice:   base.Mul(skew),
			SpreadBps:    5,
			VolatilityBp: 8,
			LevelCount:   10,
			LevelStepBp:  2,
		})
	}
	return out
}

func seedBalances(instruments []money.Instrument) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal)
	seed := decimal.NewFromInt(1_000_000)
	for _, instrument := range instruments {
		balances[instrument.Base.Symbol()] = seed
		balances[instrument.Quote.Symbol()] = seed
	}
	return balances
}
