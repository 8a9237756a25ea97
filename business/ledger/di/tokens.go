// Package di contains dependency injection tokens for the ledger context.
package di

import (
	"github.com/fd1az/arbitrage-bot/business/ledger/app"
	"github.com/fd1az/arbitrage-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Ledger = di.NewToken[*app.Ledger]("ledger.Ledger")
)

// GetLedger resolves the trade state ledger from the container.
func GetLedger(c di.ServiceRegistry) *app.Ledger {
	return di.GetToken(c, Ledger)
}
