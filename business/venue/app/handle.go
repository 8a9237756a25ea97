package app

import (
	"context"
	"sync"
	"time"

	"github.com/fd1az/arbitrage-bot/business/venue/domain"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/money"
)

// HandleConfig parameterizes a VenueHandle's reconnect and staleness
// behaviour.
type HandleConfig struct {
	MaxReconnectAttempts int           // errors within a single stream before escalating to reconnect
	RestartDelay         time.Duration // delay before re-opening the stream on a sub-threshold error
	InitialDelay         time.Duration // first reconnect backoff
	MaxDelay             time.Duration // reconnect backoff ceiling
	StalenessThreshold   time.Duration
}

// DefaultHandleConfig mirrors the defaults called out for the venue
// gateway's connection handling: five errors tolerated before a full
// reconnect, backoff from 5s up to 5 minutes, snapshots older than
// 500ms considered stale.
func DefaultHandleConfig() HandleConfig {
	return HandleConfig{
		MaxReconnectAttempts: 5,
		RestartDelay:         time.Second,
		InitialDelay:         5 * time.Second,
		MaxDelay:             5 * time.Minute,
		StalenessThreshold:   500 * time.Millisecond,
	}
}

// VenueHandle wraps a VenueDriver with connection-state tracking and a
// self-healing order book subscription: connecting -> connected ->
// (error -> reconnecting -> connecting)*.
type VenueHandle struct {
	id     string
	driver VenueDriver
	cfg    HandleConfig
	log    logger.LoggerInterface

	mu         sync.RWMutex
	state      domain.ConnectionState
	errorCount int
	reconnects int
	lastUpdate time.Time

	booksMu sync.RWMutex
	books   map[string]*domain.OrderBookSnapshot

	closeOnce sync.Once
	done      chan struct{}
}

// NewVenueHandle constructs a handle in the disconnected state. Call
// Subscribe to start streaming an instrument's order book.
func NewVenueHandle(id string, driver VenueDriver, cfg HandleConfig, log logger.LoggerInterface) *VenueHandle {
	return &VenueHandle{
		id:     id,
		driver: driver,
		cfg:    cfg,
		log:    log,
		state:  domain.StateDisconnected,
		books:  make(map[string]*domain.OrderBookSnapshot),
		done:   make(chan struct{}),
	}
}

// ID returns the venue identifier this handle serves.
func (h *VenueHandle) ID() string { return h.id }

// Driver exposes the wrapped VenueDriver for operations the gateway
// issues directly (orders, balances, fees) rather than through the
// handle's streaming loop.
func (h *VenueHandle) Driver() VenueDriver { return h.driver }

// Status returns a point-in-time snapshot of the handle's connection
// health.
func (h *VenueHandle) Status() domain.ConnectionStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return domain.ConnectionStatus{
		State:      h.state,
		LastUpdate: h.lastUpdate,
		ErrorCount: h.errorCount,
		Reconnects: h.reconnects,
	}
}

// NormalizeDepth rounds a requested order book depth up to the
// nearest value the venue accepts, capping (and reporting cap=true)
// if the request exceeds the venue's maximum.
func (h *VenueHandle) NormalizeDepth(requested int) (depth int, capped bool) {
	return normalizeDepth(h.driver.AcceptedDepths(), requested)
}

// Subscribe launches the handle's self-healing consume loop for
// instrument at the given depth. It returns immediately; the loop
// runs until the handle is closed or ctx is cancelled.
func (h *VenueHandle) Subscribe(ctx context.Context, instrument money.Instrument, depth int) {
	go h.runStream(ctx, instrument, depth)
}

// LatestOrderBook returns the most recently received snapshot for
// instrument, if any has been received yet.
func (h *VenueHandle) LatestOrderBook(instrument money.Instrument) (*domain.OrderBookSnapshot, bool) {
	h.booksMu.RLock()
	defer h.booksMu.RUnlock()
	snap, ok := h.books[instrument.String()]
	return snap, ok
}

// Close stops all subscription loops. Idempotent.
func (h *VenueHandle) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	return h.driver.Close()
}

func (h *VenueHandle) runStream(ctx context.Context, instrument money.Instrument, depth int) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		default:
		}

		h.setState(domain.StateConnecting)
		ch, err := h.driver.StreamOrderBook(ctx, instrument, depth)
		if err == nil {
			h.setState(domain.StateConnected)
			h.resetErrors()
			attempt = 0
			h.consume(ctx, instrument, ch)
		} else {
			h.log.Warn(ctx, "venue stream connect failed", "venue", h.id, "instrument", instrument.String(), "error", err.Error())
		}

		count := h.incrementErrors()
		if count < h.cfg.MaxReconnectAttempts {
			if !h.sleep(ctx, h.cfg.RestartDelay) {
				return
			}
			continue
		}

		h.setState(domain.StateReconnecting)
		attempt++
		delay := backoffFor(h.cfg.InitialDelay, h.cfg.MaxDelay, attempt)
		h.log.Warn(ctx, "venue reconnecting", "venue", h.id, "instrument", instrument.String(), "attempt", attempt, "delay", delay.String())
		if !h.sleep(ctx, delay) {
			return
		}
		h.incrementReconnects()
		h.resetErrors()
	}
}

func (h *VenueHandle) consume(ctx context.Context, instrument money.Instrument, ch <-chan *domain.OrderBookSnapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			h.booksMu.Lock()
			h.books[instrument.String()] = snap
			h.booksMu.Unlock()

			h.mu.Lock()
			if snap.VenueTimestamp.After(h.lastUpdate) {
				h.lastUpdate = snap.VenueTimestamp
			}
			h.mu.Unlock()

			if snap.IsStale(time.Now(), h.cfg.StalenessThreshold) {
				h.log.Debug(ctx, "venue order book snapshot stale on arrival", "venue", h.id, "instrument", instrument.String(), "age", snap.Age(time.Now()).String())
			}
		}
	}
}

func (h *VenueHandle) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-h.done:
		return false
	case <-timer.C:
		return true
	}
}

func (h *VenueHandle) setState(s domain.ConnectionState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *VenueHandle) incrementErrors() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errorCount++
	return h.errorCount
}

func (h *VenueHandle) resetErrors() {
	h.mu.Lock()
	h.errorCount = 0
	h.mu.Unlock()
}

func (h *VenueHandle) incrementReconnects() {
	h.mu.Lock()
	h.reconnects++
	h.mu.Unlock()
}

// backoffFor computes initialDelay * 2^(attempt-1) capped at maxDelay.
func backoffFor(initialDelay, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := initialDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > maxDelay {
			return maxDelay
		}
	}
	if d > maxDelay {
		d = maxDelay
	}
	return d
}
