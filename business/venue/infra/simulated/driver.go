// Package simulated is a reference VenueDriver: a synthetic market
// data and order-fill simulator used to exercise the venue gateway
// and arbitrage engine without depending on a live exchange. It walks
// a random-walk mid price per instrument, streams synthetic order
// book snapshots, and fills market orders against its own book at a
// VWAP-style price with configurable slippage.
package simulated

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/venue/app"
	"github.com/fd1az/arbitrage-bot/business/venue/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
	"github.com/fd1az/arbitrage-bot/internal/circuitbreaker"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/money"
)

var _ app.VenueDriver = (*Driver)(nil)

// InstrumentConfig seeds a simulated instrument's starting price and
// volatility.
type InstrumentConfig struct {
	Instrument   money.Instrument
	StartPrice   decimal.Decimal
	SpreadBps    int64 // half-spread in basis points applied around mid
	VolatilityBp int64 // per-tick random walk step size in basis points
	LevelCount   int
	LevelStepBp  int64 // basis points between adjacent book levels
}

// Config parameterizes a Driver instance.
type Config struct {
	VenueID       string
	Instruments   []InstrumentConfig
	TickInterval  time.Duration
	Fees          domain.TradingFees
	InitialBalances map[string]decimal.Decimal
}

// DefaultConfig returns a driver config ticking every 200ms with a
// flat 0.1%/0.1% fee schedule.
func DefaultConfig(venueID string) Config {
	return Config{
		VenueID:      venueID,
		TickInterval: 200 * time.Millisecond,
		Fees:         domain.DefaultFees(),
	}
}

type instrumentState struct {
	mu       sync.Mutex
	cfg      InstrumentConfig
	mid      decimal.Decimal
	rng      *rand.Rand
	subs     []chan *domain.OrderBookSnapshot
}

// Driver is an in-memory VenueDriver simulating one exchange.
type Driver struct {
	id  string
	cfg Config
	log logger.LoggerInterface

	instrMu sync.RWMutex
	instrs  map[string]*instrumentState // instrument.String() -> state

	balMu sync.Mutex
	bal   map[string]decimal.Decimal // currency symbol -> balance

	ordersMu sync.Mutex
	orders   map[string]*domain.OrderResult // venueOrderID -> result
	byClient map[string]*domain.OrderResult // clientOrderId -> result

	orderBreaker *circuitbreaker.CircuitBreaker[*domain.OrderResult]

	closeOnce sync.Once
	done      chan struct{}
}

// New constructs a Driver and starts its background price simulation
// for every configured instrument.
func New(cfg Config, log logger.LoggerInterface) *Driver {
	d := &Driver{
		id:       cfg.VenueID,
		cfg:      cfg,
		log:      log,
		instrs:   make(map[string]*instrumentState),
		bal:      make(map[string]decimal.Decimal),
		orders:   make(map[string]*domain.OrderResult),
		byClient: make(map[string]*domain.OrderResult),
		done:     make(chan struct{}),
	}
	d.orderBreaker = circuitbreaker.New[*domain.OrderResult](circuitbreaker.DefaultConfig(fmt.Sprintf("venue-order:%s", cfg.VenueID)))
	for currency, amount := range cfg.InitialBalances {
		d.bal[currency] = amount
	}
	for _, ic := range cfg.Instruments {
		if ic.LevelCount == 0 {
			ic.LevelCount = 10
		}
		if ic.SpreadBps == 0 {
			ic.SpreadBps = 5
		}
		if ic.LevelStepBp == 0 {
			ic.LevelStepBp = 2
		}
		st := &instrumentState{
			cfg: ic,
			mid: ic.StartPrice,
			rng: rand.New(rand.NewSource(seedFor(cfg.VenueID, ic.Instrument.String()))),
		}
		d.instrs[ic.Instrument.String()] = st
		go d.runTicker(st)
	}
	return d
}

func seedFor(venue, instrument string) int64 {
	var seed int64
	for _, r := range venue + instrument {
		seed = seed*31 + int64(r)
	}
	if seed < 0 {
		seed = -seed
	}
	return seed + 1
}

func (d *Driver) runTicker(st *instrumentState) {
	interval := d.cfg.TickInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			snap := d.stepAndSnapshot(st)
			st.mu.Lock()
			subs := append([]chan *domain.OrderBookSnapshot(nil), st.subs...)
			st.mu.Unlock()
			for _, ch := range subs {
				select {
				case ch <- snap:
				default:
					d.log.Warn(context.Background(), "simulated venue subscriber channel full, dropping snapshot", "venue", d.id, "instrument", st.cfg.Instrument.String())
				}
			}
		}
	}
}

func (d *Driver) stepAndSnapshot(st *instrumentState) *domain.OrderBookSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()

	volBp := st.cfg.VolatilityBp
	if volBp == 0 {
		volBp = 5
	}
	stepPct := (st.rng.Float64()*2 - 1) * float64(volBp) / 10000
	st.mid = st.mid.Mul(decimal.NewFromFloat(1 + stepPct))
	if st.mid.LessThanOrEqual(decimal.Zero) {
		st.mid = st.cfg.StartPrice
	}

	halfSpread := st.mid.Mul(decimal.NewFromInt(st.cfg.SpreadBps)).Div(decimal.NewFromInt(10000))
	bestBid := st.mid.Sub(halfSpread)
	bestAsk := st.mid.Add(halfSpread)
	step := st.mid.Mul(decimal.NewFromInt(st.cfg.LevelStepBp)).Div(decimal.NewFromInt(10000))

	bids := make([]domain.OrderBookLevel, st.cfg.LevelCount)
	asks := make([]domain.OrderBookLevel, st.cfg.LevelCount)
	for i := 0; i < st.cfg.LevelCount; i++ {
		offset := step.Mul(decimal.NewFromInt(int64(i)))
		amount := decimal.NewFromFloat(0.5 + st.rng.Float64()*4.5)
		bids[i] = domain.OrderBookLevel{Price: bestBid.Sub(offset), Amount: amount}
		asks[i] = domain.OrderBookLevel{Price: bestAsk.Add(offset), Amount: amount}
	}

	now := time.Now()
	return &domain.OrderBookSnapshot{
		Venue:                 d.id,
		Instrument:            st.cfg.Instrument,
		Asks:                  asks,
		Bids:                  bids,
		VenueTimestamp:        now,
		LocalReceiveTimestamp: now,
	}
}

// Capabilities reports order book streaming, order submission and
// cancellation, and fee/balance queries. Ticker and balance streaming
// are not supported.
func (d *Driver) Capabilities() domain.Capability {
	return domain.CapStreamOrderBook | domain.CapFetchBalance | domain.CapCreateOrder |
		domain.CapCancelOrder | domain.CapFetchTradingFees
}

// LoadInstruments returns the instruments this driver was configured
// with.
func (d *Driver) LoadInstruments(ctx context.Context) ([]money.Instrument, error) {
	d.instrMu.RLock()
	defer d.instrMu.RUnlock()
	out := make([]money.Instrument, 0, len(d.instrs))
	for _, st := range d.instrs {
		out = append(out, st.cfg.Instrument)
	}
	return out, nil
}

// FetchOrderBook returns a fresh synthetic snapshot for instrument.
func (d *Driver) FetchOrderBook(ctx context.Context, instrument money.Instrument, depth int) (*domain.OrderBookSnapshot, error) {
	st, err := d.instrumentState(instrument)
	if err != nil {
		return nil, err
	}
	snap := d.stepAndSnapshot(st)
	return truncateSnapshot(snap, depth), nil
}

// StreamOrderBook registers a subscriber channel fed by the driver's
// background ticker and returns it.
func (d *Driver) StreamOrderBook(ctx context.Context, instrument money.Instrument, depth int) (<-chan *domain.OrderBookSnapshot, error) {
	st, err := d.instrumentState(instrument)
	if err != nil {
		return nil, err
	}
	ch := make(chan *domain.OrderBookSnapshot, 32)
	st.mu.Lock()
	st.subs = append(st.subs, ch)
	st.mu.Unlock()

	go func() {
		<-ctx.Done()
		st.mu.Lock()
		for i, c := range st.subs {
			if c == ch {
				st.subs = append(st.subs[:i], st.subs[i+1:]...)
				break
			}
		}
		st.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func truncateSnapshot(snap *domain.OrderBookSnapshot, depth int) *domain.OrderBookSnapshot {
	if depth <= 0 {
		return snap
	}
	out := *snap
	if len(out.Bids) > depth {
		out.Bids = out.Bids[:depth]
	}
	if len(out.Asks) > depth {
		out.Asks = out.Asks[:depth]
	}
	return &out
}

func (d *Driver) instrumentState(instrument money.Instrument) (*instrumentState, error) {
	d.instrMu.RLock()
	defer d.instrMu.RUnlock()
	st, ok := d.instrs[instrument.String()]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeVenueUnknownInstrument, fmt.Sprintf("%s not configured on venue %s", instrument.String(), d.id))
	}
	return st, nil
}

// FetchBalance returns the driver's in-memory balance for currency.
func (d *Driver) FetchBalance(ctx context.Context, currency money.Currency) (decimal.Decimal, error) {
	d.balMu.Lock()
	defer d.balMu.Unlock()
	return d.bal[currency.Symbol()], nil
}

// FetchTradingFees returns the driver's static fee schedule.
func (d *Driver) FetchTradingFees(ctx context.Context, instrument money.Instrument) (domain.TradingFees, error) {
	fees := d.cfg.Fees
	fees.LastRefreshed = time.Now()
	return fees, nil
}

// CreateOrder fills a market order immediately against the current
// synthetic book, applying VWAP-style slippage and the driver's taker
// fee, and adjusts the in-memory balance ledger accordingly.
func (d *Driver) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	d.ordersMu.Lock()
	if existing, ok := d.byClient[req.ClientOrderID]; ok && req.ClientOrderID != "" {
		d.ordersMu.Unlock()
		return existing, nil
	}
	d.ordersMu.Unlock()

	result, err := d.orderBreaker.Execute(func() (*domain.OrderResult, error) {
		st, err := d.instrumentState(req.Instrument)
		if err != nil {
			return nil, err
		}
		snap := d.stepAndSnapshot(st)

		var levels []domain.OrderBookLevel
		var topOfBook decimal.Decimal
		if req.Side == domain.SideBuy {
			levels = snap.Asks
			if l := snap.BestAsk(); l != nil {
				topOfBook = l.Price
			}
		} else {
			levels = snap.Bids
			if l := snap.BestBid(); l != nil {
				topOfBook = l.Price
			}
		}

		avgPrice, filled := domain.EffectivePrice(levels, req.Amount)
		if filled.IsZero() {
			return nil, apperror.New(apperror.CodeInsufficientLiquidity, apperror.WithContext(fmt.Sprintf("no liquidity for %s on %s", req.Instrument.String(), d.id)))
		}

		cost := avgPrice.Mul(filled)
		fee := d.cfg.Fees.TakerFee(cost)

		res := &domain.OrderResult{
			Venue:           d.id,
			VenueOrderID:    uuid.NewString(),
			ClientOrderID:   req.ClientOrderID,
			Instrument:      req.Instrument,
			Side:            req.Side,
			RequestedAmount: req.Amount,
			FilledAmount:    filled,
			AvgPrice:        avgPrice,
			Cost:            cost,
			FeePaid:         fee,
			VenueTimestamp:  time.Now(),
			Outcome:         domain.OutcomeSuccess,
		}
		if filled.LessThan(req.Amount) {
			res.ErrorDetail = "partial fill: insufficient book depth"
		}

		d.applyBalanceDelta(req, res, topOfBook)
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	d.ordersMu.Lock()
	d.orders[result.VenueOrderID] = result
	if req.ClientOrderID != "" {
		d.byClient[req.ClientOrderID] = result
	}
	d.ordersMu.Unlock()

	return result, nil
}

func (d *Driver) applyBalanceDelta(req domain.OrderRequest, result *domain.OrderResult, topOfBook decimal.Decimal) {
	d.balMu.Lock()
	defer d.balMu.Unlock()
	base := req.Instrument.Base.Symbol()
	quote := req.Instrument.Quote.Symbol()
	if req.Side == domain.SideBuy {
		d.bal[base] = d.bal[base].Add(result.FilledAmount)
		d.bal[quote] = d.bal[quote].Sub(result.Cost).Sub(result.FeePaid)
	} else {
		d.bal[base] = d.bal[base].Sub(result.FilledAmount)
		d.bal[quote] = d.bal[quote].Add(result.Cost).Sub(result.FeePaid)
	}
}

// FetchOrder returns a previously recorded order result by venue
// order id.
func (d *Driver) FetchOrder(ctx context.Context, venueOrderID string, instrument money.Instrument) (*domain.OrderResult, error) {
	d.ordersMu.Lock()
	defer d.ordersMu.Unlock()
	result, ok := d.orders[venueOrderID]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeTradeNotFound, fmt.Sprintf("order %s not found on %s", venueOrderID, d.id))
	}
	return result, nil
}

// FetchRecentOrders returns up to limit most-recently-created orders
// for instrument, used by the gateway to reconcile timed-out
// submissions.
func (d *Driver) FetchRecentOrders(ctx context.Context, instrument money.Instrument, limit int) ([]domain.OrderResult, error) {
	d.ordersMu.Lock()
	defer d.ordersMu.Unlock()
	out := make([]domain.OrderResult, 0, len(d.orders))
	for _, o := range d.orders {
		if !o.Instrument.Equals(instrument) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].VenueTimestamp.After(out[j].VenueTimestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CancelOrder is a no-op: this driver fills market orders
// synchronously in CreateOrder, so there is never anything in-flight
// to cancel.
func (d *Driver) CancelOrder(ctx context.Context, venueOrderID string, instrument money.Instrument) error {
	return nil
}

// AcceptedDepths reports the order book depths this driver will
// serve without truncation.
func (d *Driver) AcceptedDepths() []int {
	return []int{5, 10, 20, 50}
}

// Close stops the background price simulation for every instrument.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() { close(d.done) })
	return nil
}
