// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	venuedomain "github.com/fd1az/arbitrage-bot/business/venue/domain"
)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a new ConsoleReporter.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{
		out: os.Stdout,
	}
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	fmt.Fprintln(r.out, "Arbitrage Engine Started")
	fmt.Fprintln(r.out, "========================")
	return nil
}

// ReportOpportunity outputs a detected opportunity to the console.
func (r *ConsoleReporter) ReportOpportunity(opp domain.Opportunity) {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	fmt.Fprintln(r.out, "ARBITRAGE OPPORTUNITY DETECTED")
	fmt.Fprintf(r.out, "Timestamp:      %s\n", opp.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(r.out, "Instrument:     %s\n", opp.Instrument.String())
	fmt.Fprintf(r.out, "Route:          buy %s -> sell %s\n", opp.BuyVenue, opp.SellVenue)
	fmt.Fprintf(r.out, "Prices:         buy %s / sell %s\n", opp.BuyPrice.StringFixed(6), opp.SellPrice.StringFixed(6))
	fmt.Fprintf(r.out, "Amount:         %s\n", opp.Amount.StringFixed(6))
	fmt.Fprintf(r.out, "Profit:         %s (%s%%)\n", opp.ProfitAmount.StringFixed(6), opp.ProfitPercent.StringFixed(2))
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
}

// ReportExecution outputs the outcome of an attempted execution,
// including a failed or partial one.
func (r *ConsoleReporter) ReportExecution(opp domain.Opportunity, buy, sell *venuedomain.OrderResult, execErr error) {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "================================================================================")
	if execErr != nil {
		fmt.Fprintln(r.out, "EXECUTION FAILED")
		fmt.Fprintf(r.out, "Route:          %s buy %s -> sell %s\n", opp.Instrument.String(), opp.BuyVenue, opp.SellVenue)
		fmt.Fprintf(r.out, "Reason:         %s\n", execErr.Error())
		if buy != nil {
			fmt.Fprintf(r.out, "Buy leg:        filled %s @ %s\n", buy.FilledAmount.StringFixed(6), buy.AvgPrice.StringFixed(6))
		}
		fmt.Fprintln(r.out, "================================================================================")
		return
	}
	fmt.Fprintln(r.out, "EXECUTION COMPLETE")
	fmt.Fprintf(r.out, "Route:          %s buy %s -> sell %s\n", opp.Instrument.String(), opp.BuyVenue, opp.SellVenue)
	if buy != nil {
		fmt.Fprintf(r.out, "Buy:            filled %s @ %s (fee %s)\n", buy.FilledAmount.StringFixed(6), buy.AvgPrice.StringFixed(6), buy.FeePaid.StringFixed(6))
	}
	if sell != nil {
		fmt.Fprintf(r.out, "Sell:           filled %s @ %s (fee %s)\n", sell.FilledAmount.StringFixed(6), sell.AvgPrice.StringFixed(6), sell.FeePaid.StringFixed(6))
	}
	if buy != nil && sell != nil {
		actualProfit := sell.Cost.Sub(sell.FeePaid).Sub(buy.Cost.Add(buy.FeePaid))
		fmt.Fprintf(r.out, "Actual profit:  %s\n", actualProfit.StringFixed(6))
	}
	fmt.Fprintln(r.out, "================================================================================")
}

// UpdateConnectionStatus outputs connection status changes.
func (r *ConsoleReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	status := "disconnected"
	if connected {
		status = fmt.Sprintf("connected (%s)", latency)
	}
	fmt.Fprintf(r.out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), name, status)
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Arbitrage Engine Stopped")
	return nil
}
