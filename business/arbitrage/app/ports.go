// Package app contains the arbitrage strategy engine: opportunity
// scanning, execution gating, and trade execution.
package app

import (
	"context"
	"time"

	"github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	venuedomain "github.com/fd1az/arbitrage-bot/business/venue/domain"
)

// Reporter defines the interface for reporting engine activity.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// ReportOpportunity announces a candidate opportunity found during
	// a scan tick, before shouldExecute has run.
	ReportOpportunity(opp domain.Opportunity)

	// ReportExecution announces the outcome of an executed trade.
	ReportExecution(opp domain.Opportunity, buy, sell *venuedomain.OrderResult, err error)

	// UpdateConnectionStatus updates a per-venue connection status display.
	UpdateConnectionStatus(venue string, connected bool, latency time.Duration)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
