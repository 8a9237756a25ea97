// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/arbitrage-bot/business/arbitrage/app"
	"github.com/fd1az/arbitrage-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Engine           = di.NewToken[*app.Engine]("arbitrage.Engine")
	ProfitCalculator = di.NewToken[*app.ProfitCalculator]("arbitrage.ProfitCalculator")
	Reporter         = di.NewToken[app.Reporter]("arbitrage.Reporter")
)

// GetEngine resolves the strategy engine from the container.
func GetEngine(c di.ServiceRegistry) *app.Engine {
	return di.GetToken(c, Engine)
}

// GetProfitCalculator resolves the profit calculator from the container.
func GetProfitCalculator(c di.ServiceRegistry) *app.ProfitCalculator {
	return di.GetToken(c, ProfitCalculator)
}

// GetReporter resolves the reporter from the container.
func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
