// Package app contains the arbitrage strategy engine: opportunity
// scanning, execution gating, and trade execution.
package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	ledgerapp "github.com/fd1az/arbitrage-bot/business/ledger/app"
	venueapp "github.com/fd1az/arbitrage-bot/business/venue/app"
	venuedomain "github.com/fd1az/arbitrage-bot/business/venue/domain"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/money"
)

// EngineConfig parameterizes the strategy engine's scan cadence and
// every gating threshold in shouldExecute/execute.
type EngineConfig struct {
	CheckInterval           time.Duration
	MaxConcurrentTrades     int
	MaxTradeAmount          decimal.Decimal
	MinTradeAmount          decimal.Decimal
	MinProfitPercent        decimal.Decimal
	MaxSlippagePercent      decimal.Decimal
	PartialFillThreshold    decimal.Decimal
	PriceTolerancePercent   decimal.Decimal
	MaxProfitErosionPercent decimal.Decimal
	DynamicToleranceEnabled bool
	OpportunityMaxAge       time.Duration
	OrderTimeout            time.Duration
	ShutdownDrainTimeout    time.Duration
	OrderBookDepth          int
	// ReservePercent multiplies the computed quote requirement in
	// checkBalances to buffer against price movement between
	// candidate build and reservation (1.01 = a 1% buffer).
	ReservePercent decimal.Decimal
}

// DefaultEngineConfig mirrors every default called out for the
// strategy engine.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CheckInterval:           5 * time.Second,
		MaxConcurrentTrades:     3,
		MaxTradeAmount:          decimal.NewFromInt(1),
		MinTradeAmount:          decimal.NewFromFloat(0.0001),
		MinProfitPercent:        decimal.NewFromFloat(0.5),
		MaxSlippagePercent:      decimal.NewFromFloat(0.5),
		PartialFillThreshold:    decimal.NewFromInt(95),
		PriceTolerancePercent:   decimal.NewFromFloat(0.1),
		MaxProfitErosionPercent: decimal.NewFromInt(20),
		DynamicToleranceEnabled: true,
		OpportunityMaxAge:       5 * time.Second,
		OrderTimeout:            30 * time.Second,
		ShutdownDrainTimeout:    60 * time.Second,
		OrderBookDepth:          10,
		ReservePercent:          decimal.NewFromFloat(1.01),
	}
}

// varianceRecord captures one shouldExecute price-revalidation
// outcome for the bounded telemetry history.
type varianceRecord struct {
	buyVariance   decimal.Decimal
	sellVariance  decimal.Decimal
	profitImpact  decimal.Decimal
	recordedAt    time.Time
}

// Stats is a point-in-time snapshot of the engine's price-variance
// telemetry.
type Stats struct {
	AvgVariance     decimal.Decimal
	MaxVariance     decimal.Decimal
	RecentCount     int
	AvgProfitImpact decimal.Decimal
}

const varianceHistoryLimit = 100

// Engine is the cross-venue arbitrage strategy engine: it scans every
// configured instrument's order books across venues on a fixed tick,
// gates each candidate opportunity through balance and price
// revalidation, and executes the surviving ones.
type Engine struct {
	gateway    *venueapp.Gateway
	ledger     *ledgerapp.Ledger
	calculator *ProfitCalculator
	reporter   Reporter
	cfg        EngineConfig
	log        logger.LoggerInterface

	venues      []string
	instruments []money.Instrument

	activeMu     sync.Mutex
	activeTrades map[string]struct{}

	varianceMu sync.Mutex
	variance   []varianceRecord

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewEngine constructs an Engine over the given venues/instruments.
func NewEngine(gateway *venueapp.Gateway, ledger *ledgerapp.Ledger, calculator *ProfitCalculator, reporter Reporter, venues []string, instruments []money.Instrument, cfg EngineConfig, log logger.LoggerInterface) *Engine {
	return &Engine{
		gateway:      gateway,
		ledger:       ledger,
		calculator:   calculator,
		reporter:     reporter,
		cfg:          cfg,
		log:          log,
		venues:       venues,
		instruments:  instruments,
		activeTrades: make(map[string]struct{}),
	}
}

// Start begins the periodic scan loop. It returns immediately; the
// loop runs in a background goroutine until Stop is called or ctx is
// cancelled.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.reporter.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go e.run(runCtx)

	e.log.Info(ctx, "arbitrage engine started", "instruments", len(e.instruments), "venues", len(e.venues), "checkInterval", e.cfg.CheckInterval.String())
	return nil
}

// Stop halts the scan loop and waits up to ShutdownDrainTimeout for
// in-flight trades to settle before returning, warning about any that
// are still active. In-flight trades run to their own OrderTimeout
// regardless of scan-loop cancellation, so a genuine drain window
// matters here.
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(e.cfg.ShutdownDrainTimeout):
		e.log.Warn(context.Background(), "engine stopping with trades still in flight", "count", e.activeCount())
	}

	return e.reporter.Stop()
}

// StopImmediate halts the scan loop and returns without waiting for
// in-flight trades to settle. Any trade mid-flight is abandoned to
// finish or time out on its own; the ledger's orphan recovery on next
// startup is what reconciles it.
func (e *Engine) StopImmediate() error {
	if e.cancel != nil {
		e.cancel()
	}
	return e.reporter.Stop()
}

func (e *Engine) activeCount() int {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	return len(e.activeTrades)
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.scanTick(ctx)
		}
	}
}

func (e *Engine) scanTick(ctx context.Context) {
	for _, instrument := range e.instruments {
		e.scanInstrument(ctx, instrument)
	}
}

func (e *Engine) scanInstrument(ctx context.Context, instrument money.Instrument) {
	books := make(map[string]*venuedomain.OrderBookSnapshot)
	for _, v := range e.venues {
		snap, err := e.gateway.GetOrderBook(v, instrument, e.cfg.OrderBookDepth)
		if err != nil {
			continue
		}
		books[v] = snap
	}
	if len(books) < 2 {
		return
	}

	candidates := e.buildCandidates(ctx, instrument, books)
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ProfitPercent.GreaterThan(candidates[j].ProfitPercent)
	})

	for _, opp := range candidates {
		e.reporter.ReportOpportunity(opp)
		if e.shouldExecute(ctx, opp) {
			e.wg.Add(1)
			go func(o domain.Opportunity) {
				defer e.wg.Done()
				e.execute(ctx, o)
			}(opp)
		}
	}
}

// earlierTimestamp returns the earlier of two venue timestamps. An
// opportunity is only as fresh as its stalest leg.
func earlierTimestamp(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func (e *Engine) buildCandidates(ctx context.Context, instrument money.Instrument, books map[string]*venuedomain.OrderBookSnapshot) []domain.Opportunity {
	var candidates []domain.Opportunity
	names := make([]string, 0, len(books))
	for v := range books {
		names = append(names, v)
	}

	for i := 0; i < len(names); i++ {
		for j := 0; j < len(names); j++ {
			if i == j {
				continue
			}
			buyVenue, sellVenue := names[i], names[j]
			buyBook, sellBook := books[buyVenue], books[sellVenue]

			askLevel := buyBook.BestAsk()
			bidLevel := sellBook.BestBid()
			if askLevel == nil || bidLevel == nil {
				continue
			}
			bestAsk := askLevel.Price
			bestBid := bidLevel.Price
			if bestBid.LessThanOrEqual(bestAsk) {
				continue
			}

			amount := decimal.Min(askLevel.Amount, bidLevel.Amount, e.cfg.MaxTradeAmount)
			if !amount.IsPositive() {
				continue
			}

			buyFees := e.gateway.GetTradingFees(ctx, buyVenue, instrument)
			sellFees := e.gateway.GetTradingFees(ctx, sellVenue, instrument)
			result := e.calculator.Calculate(bestAsk, bestBid, amount, buyFees.TakerRate, sellFees.TakerRate)

			if !result.IsProfitable {
				continue
			}

			candidates = append(candidates, domain.Opportunity{
				Instrument:    instrument,
				BuyVenue:      buyVenue,
				SellVenue:     sellVenue,
				BuyPrice:      bestAsk,
				SellPrice:     bestBid,
				Amount:        amount,
				ProfitAmount:  result.NetProfit,
				ProfitPercent: result.NetProfitPct,
				BuyFee:        result.BuyFee,
				SellFee:       result.SellFee,
				Timestamp:     earlierTimestamp(buyBook.VenueTimestamp, sellBook.VenueTimestamp),
			})
		}
	}
	return candidates
}

// shouldExecute runs the full gating sequence, short-circuiting on
// any failure. It acquires the tradeKey lock as a side effect; a true
// result leaves the lock held for the caller's execute() to release.
func (e *Engine) shouldExecute(ctx context.Context, opp domain.Opportunity) bool {
	if e.activeCount() >= e.cfg.MaxConcurrentTrades {
		return false
	}
	if !e.validateOpportunity(opp) {
		return false
	}

	tradeKey := opp.TradeKey()
	if !e.acquireTradeKey(tradeKey) {
		return false
	}

	if !e.checkBalances(ctx, opp, tradeKey) {
		e.releaseTradeKey(tradeKey)
		return false
	}

	if !e.validateCurrentPrices(ctx, opp) {
		e.releaseTradeKey(tradeKey)
		return false
	}

	return true
}

func (e *Engine) validateOpportunity(opp domain.Opportunity) bool {
	age := opp.Age(time.Now())
	if age > e.cfg.OpportunityMaxAge {
		return false
	}
	if age < 0 {
		e.log.Warn(context.Background(), "opportunity timestamp is in the future, severe clock skew suspected", "instrument", opp.Instrument.String(), "age", age.String())
		return false
	}
	if !opp.ProfitAmount.IsPositive() || !opp.Amount.IsPositive() || !opp.BuyPrice.IsPositive() || !opp.SellPrice.IsPositive() {
		return false
	}
	if opp.Amount.LessThan(e.cfg.MinTradeAmount) {
		return false
	}
	return true
}

// acquireTradeKey is the non-yielding check-and-insert critical
// section: no suspension point may occur between the membership check
// and the insert.
func (e *Engine) acquireTradeKey(tradeKey string) bool {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	if _, exists := e.activeTrades[tradeKey]; exists {
		return false
	}
	e.activeTrades[tradeKey] = struct{}{}
	return true
}

func (e *Engine) releaseTradeKey(tradeKey string) {
	e.activeMu.Lock()
	delete(e.activeTrades, tradeKey)
	e.activeMu.Unlock()
}

func (e *Engine) checkBalances(ctx context.Context, opp domain.Opportunity, tradeKey string) bool {
	requiredQuote := opp.BuyPrice.Mul(opp.Amount).Mul(e.cfg.ReservePercent)
	availableQuote, err := e.gateway.AvailableBalance(ctx, opp.BuyVenue, opp.Instrument.Quote.Symbol(), tradeKey)
	if err != nil || availableQuote.LessThan(requiredQuote) {
		return false
	}

	availableBase, err := e.gateway.AvailableBalance(ctx, opp.SellVenue, opp.Instrument.Base.Symbol(), tradeKey)
	if err != nil || availableBase.LessThan(opp.Amount) {
		return false
	}

	return true
}

func (e *Engine) validateCurrentPrices(ctx context.Context, opp domain.Opportunity) bool {
	buyBook, err := e.gateway.GetOrderBook(opp.BuyVenue, opp.Instrument, e.cfg.OrderBookDepth)
	if err != nil {
		return false
	}
	sellBook, err := e.gateway.GetOrderBook(opp.SellVenue, opp.Instrument, e.cfg.OrderBookDepth)
	if err != nil {
		return false
	}

	askLevel := buyBook.BestAsk()
	bidLevel := sellBook.BestBid()
	if askLevel == nil || bidLevel == nil {
		return false
	}
	currentBuy := askLevel.Price
	currentSell := bidLevel.Price

	hundred := decimal.NewFromInt(100)
	buyVariance := currentBuy.Sub(opp.BuyPrice).Div(opp.BuyPrice).Mul(hundred)
	sellVariance := opp.SellPrice.Sub(currentSell).Div(opp.SellPrice).Mul(hundred)
	totalVariance := buyVariance.Abs().Add(sellVariance.Abs())

	profitImpact := decimal.Zero
	if opp.ProfitPercent.IsPositive() {
		profitImpact = totalVariance.Div(opp.ProfitPercent).Mul(hundred)
	}
	e.recordVariance(buyVariance, sellVariance, profitImpact)

	if buyVariance.GreaterThan(e.cfg.PriceTolerancePercent) {
		return false
	}
	if sellVariance.GreaterThan(e.cfg.PriceTolerancePercent) {
		return false
	}
	if e.cfg.DynamicToleranceEnabled && totalVariance.IsPositive() {
		if profitImpact.GreaterThan(e.cfg.MaxProfitErosionPercent) {
			return false
		}
	}

	buySlippage := venuedomain.SlippagePercent(buyBook.Asks, opp.Amount, currentBuy, true)
	if buySlippage.GreaterThan(e.cfg.MaxSlippagePercent) {
		return false
	}
	sellSlippage := venuedomain.SlippagePercent(sellBook.Bids, opp.Amount, currentSell, false)
	if sellSlippage.GreaterThan(e.cfg.MaxSlippagePercent) {
		return false
	}

	return true
}

func (e *Engine) recordVariance(buyVariance, sellVariance, profitImpact decimal.Decimal) {
	e.varianceMu.Lock()
	defer e.varianceMu.Unlock()
	e.variance = append(e.variance, varianceRecord{
		buyVariance:  buyVariance,
		sellVariance: sellVariance,
		profitImpact: profitImpact,
		recordedAt:   time.Now(),
	})
	if len(e.variance) > varianceHistoryLimit {
		e.variance = e.variance[len(e.variance)-varianceHistoryLimit:]
	}
}

// Stats returns the engine's derived price-variance telemetry over
// its bounded history.
func (e *Engine) Stats() Stats {
	e.varianceMu.Lock()
	defer e.varianceMu.Unlock()

	if len(e.variance) == 0 {
		return Stats{}
	}

	sumVariance := decimal.Zero
	maxVariance := decimal.Zero
	sumImpact := decimal.Zero
	for _, r := range e.variance {
		total := r.buyVariance.Abs().Add(r.sellVariance.Abs())
		sumVariance = sumVariance.Add(total)
		if total.GreaterThan(maxVariance) {
			maxVariance = total
		}
		sumImpact = sumImpact.Add(r.profitImpact)
	}
	count := decimal.NewFromInt(int64(len(e.variance)))

	return Stats{
		AvgVariance:     sumVariance.Div(count),
		MaxVariance:     maxVariance,
		RecentCount:     len(e.variance),
		AvgProfitImpact: sumImpact.Div(count),
	}
}

// execute holds the tradeKey lock for its entire duration and always
// releases it, submitting the buy leg first and never attempting the
// sell leg unless the buy succeeded.
func (e *Engine) execute(ctx context.Context, opp domain.Opportunity) {
	tradeKey := opp.TradeKey()
	defer func() {
		e.gateway.ReleaseReservation(tradeKey, opp.BuyVenue, opp.Instrument.Quote.Symbol())
		e.gateway.ReleaseReservation(tradeKey, opp.SellVenue, opp.Instrument.Base.Symbol())
		e.releaseTradeKey(tradeKey)
	}()

	if !e.checkBalances(ctx, opp, tradeKey) {
		e.reporter.ReportExecution(opp, nil, nil, fmt.Errorf("balance re-verification failed before execution"))
		return
	}

	requiredQuote := opp.BuyPrice.Mul(opp.Amount)
	e.gateway.ReserveBalance(tradeKey, opp.BuyVenue, opp.Instrument.Quote.Symbol(), requiredQuote)
	e.gateway.ReserveBalance(tradeKey, opp.SellVenue, opp.Instrument.Base.Symbol(), opp.Amount)

	if _, err := e.ledger.RecordStart(opp); err != nil {
		e.reporter.ReportExecution(opp, nil, nil, fmt.Errorf("ledger recordStart failed: %w", err))
		return
	}

	// Deliberately not derived from ctx: cancelling the scan loop must
	// not abort a trade that already reserved balances and recorded
	// ledger intent. It gets its own bounded lifetime instead.
	orderCtx, cancel := context.WithTimeout(context.Background(), e.cfg.OrderTimeout)
	defer cancel()

	buyReq := venuedomain.OrderRequest{
		Venue:         opp.BuyVenue,
		Instrument:    opp.Instrument,
		Side:          venuedomain.SideBuy,
		Amount:        opp.Amount,
		Type:          venuedomain.OrderTypeMarket,
		ClientOrderID: uuid.NewString(),
	}
	buyResult, err := e.gateway.ExecuteTrade(orderCtx, buyReq)
	if err != nil {
		e.finalizeFailed(tradeKey, opp, fmt.Sprintf("buy leg failed: %s", err.Error()))
		e.reporter.ReportExecution(opp, nil, nil, err)
		return
	}

	fillPercent := buyResult.FillPercent()
	if fillPercent.LessThan(e.cfg.PartialFillThreshold) {
		e.finalizeFailed(tradeKey, opp, fmt.Sprintf("buy leg partially filled at %s%%, below threshold — manual intervention may be required", fillPercent.StringFixed(2)))
		e.reporter.ReportExecution(opp, buyResult, nil, fmt.Errorf("partial fill below threshold"))
		return
	}

	sellAmount := opp.Amount
	if buyResult.FilledAmount.LessThan(opp.Amount) {
		sellAmount = buyResult.FilledAmount
	}

	if err := e.ledger.RecordBuyExecuted(tradeKey, buyResult); err != nil {
		e.log.Errorc(orderCtx, 0, "ledger recordBuyExecuted failed after buy leg succeeded", "tradeKey", tradeKey, "error", err.Error())
	}

	sellReq := venuedomain.OrderRequest{
		Venue:         opp.SellVenue,
		Instrument:    opp.Instrument,
		Side:          venuedomain.SideSell,
		Amount:        sellAmount,
		Type:          venuedomain.OrderTypeMarket,
		ClientOrderID: uuid.NewString(),
	}
	sellResult, err := e.gateway.ExecuteTrade(orderCtx, sellReq)
	if err != nil {
		e.log.Errorc(orderCtx, 0, "POSITION MISMATCH: buy succeeded but sell failed, operator attention required", "tradeKey", tradeKey, "buyVenue", opp.BuyVenue, "sellVenue", opp.SellVenue, "error", err.Error())
		e.finalizeFailed(tradeKey, opp, fmt.Sprintf("position mismatch: sell leg failed after buy succeeded: %s", err.Error()))
		e.reporter.ReportExecution(opp, buyResult, nil, err)
		return
	}

	if err := e.ledger.RecordComplete(tradeKey, true, sellResult, ""); err != nil {
		e.log.Errorc(orderCtx, 0, "ledger recordComplete failed after trade succeeded", "tradeKey", tradeKey, "error", err.Error())
	}
	e.reporter.ReportExecution(opp, buyResult, sellResult, nil)
}

func (e *Engine) finalizeFailed(tradeKey string, opp domain.Opportunity, reason string) {
	if err := e.ledger.RecordComplete(tradeKey, false, nil, reason); err != nil {
		e.log.Errorc(context.Background(), 0, "ledger recordComplete failed while recording a failure", "tradeKey", tradeKey, "error", err.Error())
	}
}
