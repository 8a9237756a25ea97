package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/venue/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/money"
	"github.com/fd1az/arbitrage-bot/internal/ratelimit"
)

// GatewayConfig parameterizes the aggregate behaviours the Gateway
// layers on top of individual VenueHandles: fee caching and balance
// reservation bookkeeping.
type GatewayConfig struct {
	FeeCacheTTL      time.Duration
	ReservationTTL   time.Duration
	RecentOrderTTL   time.Duration
	OrderBookDepth   int
}

// DefaultGatewayConfig mirrors the values called out for the venue
// gateway: a day-long fee cache, one-minute reservation and recent
// order windows.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		FeeCacheTTL:    24 * time.Hour,
		ReservationTTL: time.Minute,
		RecentOrderTTL: time.Minute,
		OrderBookDepth: 10,
	}
}

type feeCacheEntry struct {
	fees      domain.TradingFees
	fetchedAt time.Time
}

type recentOrderEntry struct {
	result    *domain.OrderResult
	err       error
	createdAt time.Time
}

// Gateway fronts every configured VenueHandle for the strategy engine:
// it normalizes order book access, submits orders idempotently via a
// clientOrderId, tracks in-flight balance reservations so concurrent
// trades cannot double-spend the same funds, and caches trading fees.
type Gateway struct {
	handles map[string]*VenueHandle
	limiter *ratelimit.Limiter
	cfg     GatewayConfig
	log     logger.LoggerInterface

	feesMu sync.RWMutex
	fees   map[string]feeCacheEntry // "venue:instrument" -> entry, "venue:*" for wildcard

	recentMu sync.Mutex
	recent   map[string]*recentOrderEntry // clientOrderId -> entry

	reserveMu    sync.Mutex
	reservations map[string]domain.BalanceReservation // tradeKey:venue:currency -> reservation
}

// NewGateway constructs a Gateway over the given venue handles.
func NewGateway(handles map[string]*VenueHandle, limiter *ratelimit.Limiter, cfg GatewayConfig, log logger.LoggerInterface) *Gateway {
	return &Gateway{
		handles:      handles,
		limiter:      limiter,
		cfg:          cfg,
		log:          log,
		fees:         make(map[string]feeCacheEntry),
		recent:       make(map[string]*recentOrderEntry),
		reservations: make(map[string]domain.BalanceReservation),
	}
}

func (g *Gateway) handle(venue string) (*VenueHandle, error) {
	h, ok := g.handles[venue]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeVenueUnknownInstrument, fmt.Sprintf("venue %q not registered", venue))
	}
	return h, nil
}

// GetOrderBook returns a venue's latest streamed order book snapshot
// for instrument. requestedDepth is normalized only to warn when it
// exceeds the venue maximum; the snapshot is returned at the depth it
// was streamed with.
func (g *Gateway) GetOrderBook(venue string, instrument money.Instrument, requestedDepth int) (*domain.OrderBookSnapshot, error) {
	h, err := g.handle(venue)
	if err != nil {
		return nil, err
	}
	depth, capped := h.NormalizeDepth(requestedDepth)
	if capped {
		g.log.Warn(context.Background(), "requested depth exceeds venue maximum, capping", "venue", venue, "requested", requestedDepth, "used", depth)
	}
	snap, ok := h.LatestOrderBook(instrument)
	if !ok {
		return nil, apperror.External(apperror.CodeOrderbookFetchFailed, fmt.Sprintf("no order book received yet for %s on %s", instrument.String(), venue), nil)
	}
	return snap, nil
}

// EnsureSubscribed starts streaming instrument's order book from venue
// if it is not already being streamed.
func (g *Gateway) EnsureSubscribed(ctx context.Context, venue string, instrument money.Instrument) error {
	h, err := g.handle(venue)
	if err != nil {
		return err
	}
	depth, _ := h.NormalizeDepth(g.cfg.OrderBookDepth)
	h.Subscribe(ctx, instrument, depth)
	return nil
}

// GetTradingFees returns venue's fees for instrument, refreshing from
// the driver when the cache is empty or expired. An instrument-specific
// entry takes precedence over a venue-wide wildcard entry; both fall
// back to domain.DefaultFees on fetch failure.
func (g *Gateway) GetTradingFees(ctx context.Context, venue string, instrument money.Instrument) domain.TradingFees {
	specificKey := venue + ":" + instrument.String()
	wildcardKey := venue + ":*"
	now := time.Now()

	g.feesMu.RLock()
	if e, ok := g.fees[specificKey]; ok && !e.fees.IsExpired(now, g.cfg.FeeCacheTTL) {
		g.feesMu.RUnlock()
		return e.fees
	}
	if e, ok := g.fees[wildcardKey]; ok && !e.fees.IsExpired(now, g.cfg.FeeCacheTTL) {
		g.feesMu.RUnlock()
		return e.fees
	}
	g.feesMu.RUnlock()

	h, err := g.handle(venue)
	if err != nil {
		return domain.DefaultFees()
	}
	fees, err := h.Driver().FetchTradingFees(ctx, instrument)
	if err != nil {
		g.log.Warn(ctx, "trading fee fetch failed, using default", "venue", venue, "instrument", instrument.String(), "error", err.Error())
		return domain.DefaultFees()
	}
	fees.LastRefreshed = now

	g.feesMu.Lock()
	g.fees[specificKey] = feeCacheEntry{fees: fees, fetchedAt: now}
	g.feesMu.Unlock()
	return fees
}

// reservationKey identifies a reservation by the trade that holds it
// and the venue/currency pair being earmarked.
func reservationKey(tradeKey, venue, currency string) string {
	return tradeKey + ":" + venue + ":" + currency
}

// ReserveBalance earmarks amount of currency at venue against
// tradeKey. Callers must check AvailableBalance first; this call does
// not itself verify sufficiency, matching the ledger's role as
// bookkeeping rather than an authoritative balance source.
func (g *Gateway) ReserveBalance(tradeKey, venue, currency string, amount decimal.Decimal) {
	g.reserveMu.Lock()
	defer g.reserveMu.Unlock()
	g.reservations[reservationKey(tradeKey, venue, currency)] = domain.BalanceReservation{
		TradeKey:  tradeKey,
		Venue:     venue,
		Currency:  currency,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
}

// ReleaseReservation removes a reservation once its trade has settled
// or failed.
func (g *Gateway) ReleaseReservation(tradeKey, venue, currency string) {
	g.reserveMu.Lock()
	defer g.reserveMu.Unlock()
	delete(g.reservations, reservationKey(tradeKey, venue, currency))
}

// ReservedAmount sums all non-expired reservations against venue and
// currency, excluding the given tradeKey so that a trade never counts
// its own reservation against itself when computing what remains
// available.
func (g *Gateway) ReservedAmount(venue, currency, excludeTradeKey string) decimal.Decimal {
	g.reserveMu.Lock()
	defer g.reserveMu.Unlock()
	now := time.Now()
	total := decimal.Zero
	for key, r := range g.reservations {
		if r.IsExpired(now, g.cfg.ReservationTTL) {
			delete(g.reservations, key)
			continue
		}
		if r.Venue != venue || r.Currency != currency || r.TradeKey == excludeTradeKey {
			continue
		}
		total = total.Add(r.Amount)
	}
	return total
}

// AvailableBalance returns venue's fetched balance for currency minus
// everything reserved against it by other in-flight trades, floored at
// zero.
func (g *Gateway) AvailableBalance(ctx context.Context, venue, currencySymbol, excludeTradeKey string) (decimal.Decimal, error) {
	h, err := g.handle(venue)
	if err != nil {
		return decimal.Zero, err
	}
	currency := money.NewCurrency(currencySymbol)
	balance, err := h.Driver().FetchBalance(ctx, currency)
	if err != nil {
		return decimal.Zero, apperror.External(apperror.CodeBalanceFetchFailed, fmt.Sprintf("fetching %s balance on %s", currencySymbol, venue), err)
	}
	reserved := g.ReservedAmount(venue, currencySymbol, excludeTradeKey)
	available := balance.Sub(reserved)
	if available.IsNegative() {
		return decimal.Zero, nil
	}
	return available, nil
}

// ExecuteTrade submits req to its venue idempotently: a prior call
// with the same ClientOrderID short-circuits to the cached result
// rather than resubmitting. Rate-limiting and throttle/timeout signal
// handling flow through the shared Limiter so a slow or throttled
// venue backs off future submissions without blocking others.
func (g *Gateway) ExecuteTrade(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}

	g.recentMu.Lock()
	if cached, ok := g.recent[req.ClientOrderID]; ok {
		g.recentMu.Unlock()
		return cached.result, cached.err
	}
	g.recentMu.Unlock()

	h, err := g.handle(req.Venue)
	if err != nil {
		return nil, err
	}

	if err := g.limiter.Acquire(ctx, req.Venue); err != nil {
		return nil, apperror.External(apperror.CodeVenueTimeout, "rate limiter wait cancelled", err)
	}

	result, submitErr := h.Driver().CreateOrder(ctx, req)
	if submitErr != nil {
		if ratelimit.IsThrottlingError(submitErr.Error()) {
			g.limiter.OnThrottled(req.Venue)
			g.cacheRecent(req.ClientOrderID, nil, submitErr)
			return nil, apperror.External(apperror.CodeVenueThrottled, fmt.Sprintf("order rejected as throttled on %s", req.Venue), submitErr)
		}
		if ratelimit.IsTimeoutError(submitErr.Error()) {
			reconciled, reconcileErr := g.reconcileByClientOrderID(ctx, h, req)
			if reconcileErr == nil && reconciled != nil {
				g.limiter.OnSuccess(req.Venue)
				g.cacheRecent(req.ClientOrderID, reconciled, nil)
				return reconciled, nil
			}
			g.cacheRecent(req.ClientOrderID, nil, submitErr)
			return nil, apperror.External(apperror.CodeVenueTimeout, fmt.Sprintf("order submission to %s timed out and could not be reconciled", req.Venue), submitErr)
		}
		g.cacheRecent(req.ClientOrderID, nil, submitErr)
		return nil, apperror.External(apperror.CodeOrderRejected, fmt.Sprintf("order rejected by %s", req.Venue), submitErr)
	}

	g.limiter.OnSuccess(req.Venue)
	g.cacheRecent(req.ClientOrderID, result, nil)
	return result, nil
}

// reconcileByClientOrderID looks for an order the venue may have
// actually accepted despite the request timing out on our side. Most
// venue APIs don't echo the caller's clientOrderId back on a recent
// orders listing, so this waits for the venue to settle and then
// matches on (side, amount within 1%, created within the last 30s)
// rather than on the id itself.
func (g *Gateway) reconcileByClientOrderID(ctx context.Context, h *VenueHandle, req domain.OrderRequest) (*domain.OrderResult, error) {
	// ctx has typically already timed out (that's why this path was
	// entered); reconciliation gets its own independent budget so it
	// isn't sunk by a deadline that's already passed.
	reconcileCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	settle := time.NewTimer(2 * time.Second)
	defer settle.Stop()
	select {
	case <-reconcileCtx.Done():
		return nil, reconcileCtx.Err()
	case <-settle.C:
	}

	orders, err := h.Driver().FetchRecentOrders(reconcileCtx, req.Instrument, 10)
	if err != nil {
		return nil, err
	}

	const maxAge = 30 * time.Second
	amountTolerance := req.Amount.Mul(decimal.NewFromFloat(0.01))
	now := time.Now()

	for i := range orders {
		o := &orders[i]
		if o.Side != req.Side {
			continue
		}
		if now.Sub(o.VenueTimestamp) > maxAge {
			continue
		}
		if o.RequestedAmount.Sub(req.Amount).Abs().GreaterThan(amountTolerance) {
			continue
		}
		return o, nil
	}
	return nil, apperror.New(apperror.CodeTradeNotFound, apperror.WithMessage("no matching order found during reconciliation"))
}

func (g *Gateway) cacheRecent(clientOrderID string, result *domain.OrderResult, err error) {
	g.recentMu.Lock()
	defer g.recentMu.Unlock()
	g.recent[clientOrderID] = &recentOrderEntry{result: result, err: err, createdAt: time.Now()}
	g.sweepRecentLocked()
}

func (g *Gateway) sweepRecentLocked() {
	now := time.Now()
	for k, e := range g.recent {
		if now.Sub(e.createdAt) > g.cfg.RecentOrderTTL {
			delete(g.recent, k)
		}
	}
}

// Close shuts down every venue handle.
func (g *Gateway) Close() error {
	var firstErr error
	for _, h := range g.handles {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
