package domain

import "time"

// ConnectionState is the lifecycle state of a VenueHandle's market
// data connection: connecting -> connected -> (error -> reconnecting
// -> connecting)*.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// ConnectionStatus is a point-in-time snapshot of a VenueHandle's
// connection health.
type ConnectionStatus struct {
	State      ConnectionState
	LastUpdate time.Time
	ErrorCount int
	Reconnects int
}

// Capability is a bit in a VenueDriver's capability bitmap.
type Capability uint16

const (
	CapStreamOrderBook Capability = 1 << iota
	CapStreamTicker
	CapStreamBalance
	CapFetchBalance
	CapCreateOrder
	CapCancelOrder
	CapFetchTradingFees
)

// Has reports whether the bitmap includes flag.
func (c Capability) Has(flag Capability) bool {
	return c&flag != 0
}
