// Package domain contains the core domain types for the arbitrage context.
package domain

import "fmt"

// VenuePair is an unordered pair of venue identifiers considered
// together during a scan tick. Two Opportunity candidates are built
// per pair, one for each direction.
type VenuePair struct {
	A, B string
}

// Directions returns the two (buyVenue, sellVenue) orderings implied
// by the pair.
func (p VenuePair) Directions() [2][2]string {
	return [2][2]string{
		{p.A, p.B},
		{p.B, p.A},
	}
}

// String renders the pair for logging.
func (p VenuePair) String() string {
	return fmt.Sprintf("%s/%s", p.A, p.B)
}
