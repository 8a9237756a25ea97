// Package di contains dependency injection tokens for the venue context.
package di

import (
	"github.com/fd1az/arbitrage-bot/business/venue/app"
	"github.com/fd1az/arbitrage-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Gateway = di.NewToken[*app.Gateway]("venue.Gateway")
)

// GetGateway resolves the venue gateway from the container.
func GetGateway(c di.ServiceRegistry) *app.Gateway {
	return di.GetToken(c, Gateway)
}
