// Package ledger implements the trade state ledger bounded context: a
// durable, crash-consistent record of every arbitrage attempt.
package ledger

import (
	"context"

	"github.com/fd1az/arbitrage-bot/business/ledger/app"
	ledgerDI "github.com/fd1az/arbitrage-bot/business/ledger/di"
	"github.com/fd1az/arbitrage-bot/internal/config"
	"github.com/fd1az/arbitrage-bot/internal/di"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/monolith"
)

// Module implements the trade state ledger bounded context.
type Module struct{}

// RegisterServices registers the ledger with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, ledgerDI.Ledger, func(sr di.ServiceRegistry) *app.Ledger {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		ledgerCfg := app.Config{
			FilePath:        cfg.Ledger.FilePath,
			OrphanThreshold: cfg.Ledger.OrphanThreshold,
		}
		return app.New(ledgerCfg, log)
	})
	return nil
}

// Startup recovers the ledger from disk and reports resumable and
// orphaned entries. Orphans are left in place for an operator to
// acknowledge.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	l := ledgerDI.GetLedger(mono.Services())

	result, err := l.Recover()
	if err != nil {
		return err
	}

	log.Info(ctx, "ledger recovered", "resumable", len(result.Resumable), "orphaned", len(result.Orphaned))
	for _, entry := range result.Orphaned {
		log.Warn(ctx, "orphaned trade requires operator acknowledgement", "tradeKey", entry.TradeKey, "status", string(entry.Status), "startedAt", entry.StartedAt.Time().String())
	}
	return nil
}
