// Package ratelimit shapes outbound traffic to trading venues: a
// per-venue token bucket built on golang.org/x/time/rate, plus an
// exponential backoff window entered whenever a venue signals
// throttling. The two mechanisms are independent; Acquire honours
// whichever deadline is later.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config parameterizes a single venue's bucket and backoff behaviour.
type Config struct {
	Capacity          int           // token bucket capacity
	RefillWindow      time.Duration // time to refill Capacity tokens from empty
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultConfig returns the defaults used when a venue has no explicit
// configuration: 10 requests refilled every second, backoff starting
// at 1s and doubling up to 30s.
func DefaultConfig() Config {
	return Config{
		Capacity:          10,
		RefillWindow:      time.Second,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2,
	}
}

// Stats is a point-in-time snapshot of a venue's limiter state.
type Stats struct {
	TotalRequests      int64
	InFlightWindow     int
	ThrottleErrorCount int64
	CurrentBackoff     time.Duration
	Throttled          bool
}

type venueState struct {
	cfg  Config
	bucket *rate.Limiter

	mu             sync.Mutex
	backoffUntil   time.Time
	currentBackoff time.Duration
	totalRequests  int64
	throttleErrors int64
}

func newVenueState(cfg Config) *venueState {
	rps := float64(cfg.Capacity) / cfg.RefillWindow.Seconds()
	return &venueState{
		cfg:            cfg,
		bucket:         rate.NewLimiter(rate.Limit(rps), cfg.Capacity),
		currentBackoff: cfg.InitialBackoff,
	}
}

// Limiter is a registry of per-venue token buckets plus backoff state.
// The zero value is not usable; construct with New.
type Limiter struct {
	mu     sync.Mutex
	venues map[string]*venueState
	dflt   Config
}

// New creates a Limiter. Per-venue configuration may be supplied via
// Configure; venues seen for the first time without configuration get
// dflt (DefaultConfig() if the zero Config is passed).
func New(dflt Config) *Limiter {
	if dflt.Capacity == 0 {
		dflt = DefaultConfig()
	}
	return &Limiter{
		venues: make(map[string]*venueState),
		dflt:   dflt,
	}
}

// Configure sets an explicit configuration for a venue. Safe to call
// again later to retune a running venue's bucket rate; backoff state
// carries over.
func (l *Limiter) Configure(venue string, cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.venues[venue]; ok {
		existing.mu.Lock()
		existing.cfg = cfg
		rps := float64(cfg.Capacity) / cfg.RefillWindow.Seconds()
		existing.bucket.SetLimit(rate.Limit(rps))
		existing.bucket.SetBurst(cfg.Capacity)
		existing.mu.Unlock()
		return
	}
	l.venues[venue] = newVenueState(cfg)
}

func (l *Limiter) stateFor(venue string) *venueState {
	l.mu.Lock()
	defer l.mu.Unlock()
	vs, ok := l.venues[venue]
	if !ok {
		vs = newVenueState(l.dflt)
		l.venues[venue] = vs
	}
	return vs
}

// Acquire blocks until a token is available AND the venue is not in a
// backoff window, or ctx is cancelled. When both conditions are
// pending, it waits for whichever deadline is later.
func (l *Limiter) Acquire(ctx context.Context, venue string) error {
	vs := l.stateFor(venue)
	vs.mu.Lock()
	vs.totalRequests++
	backoffUntil := vs.backoffUntil
	vs.mu.Unlock()

	if wait := time.Until(backoffUntil); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return vs.bucket.Wait(ctx)
}

// OnThrottled is called when the outbound layer observes a throttling
// signal from the venue. The venue enters a backoff window; repeated
// calls grow the window multiplicatively up to MaxBackoff.
func (l *Limiter) OnThrottled(venue string) {
	vs := l.stateFor(venue)
	vs.mu.Lock()
	defer vs.mu.Unlock()

	vs.throttleErrors++
	vs.backoffUntil = time.Now().Add(vs.currentBackoff)

	next := time.Duration(float64(vs.currentBackoff) * vs.cfg.BackoffMultiplier)
	if next > vs.cfg.MaxBackoff {
		next = vs.cfg.MaxBackoff
	}
	vs.currentBackoff = next
}

// OnSuccess resets a venue's backoff to its initial value and clears
// any active backoff window.
func (l *Limiter) OnSuccess(venue string) {
	vs := l.stateFor(venue)
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.currentBackoff = vs.cfg.InitialBackoff
	vs.backoffUntil = time.Time{}
}

// Stats returns a snapshot of the venue's limiter state.
func (l *Limiter) Stats(venue string) Stats {
	vs := l.stateFor(venue)
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return Stats{
		TotalRequests:      vs.totalRequests,
		InFlightWindow:     vs.cfg.Capacity - int(vs.bucket.Tokens()),
		ThrottleErrorCount: vs.throttleErrors,
		CurrentBackoff:     vs.currentBackoff,
		Throttled:          time.Now().Before(vs.backoffUntil),
	}
}

// IsThrottlingError reports whether an error's text matches the
// throttling markers this system recognizes (rate limit, 429, too
// many requests, throttle), case-insensitive.
func IsThrottlingError(errText string) bool {
	return containsAnyFold(errText, throttlePatterns)
}

// IsTimeoutError reports whether an error's text matches the timeout
// markers this system recognizes (timeout, timedout, etimedout),
// case-insensitive.
func IsTimeoutError(errText string) bool {
	return containsAnyFold(errText, timeoutPatterns)
}

var throttlePatterns = []string{"rate limit", "429", "too many requests", "throttle"}
var timeoutPatterns = []string{"timeout", "timedout", "etimedout"}

func containsAnyFold(s string, patterns []string) bool {
	lower := strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
