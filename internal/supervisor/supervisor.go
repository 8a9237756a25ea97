// Package supervisor owns the process-level run/shutdown sequence:
// block until a termination signal arrives, then drain the strategy
// engine and close every venue connection according to a configurable
// drain policy. Module startup (config load, ledger recovery, engine
// start) happens earlier, via monolith.StartModules; the supervisor
// only owns what comes after that.
package supervisor

import (
	"context"
	"fmt"

	arbitrageApp "github.com/fd1az/arbitrage-bot/business/arbitrage/app"
	venueApp "github.com/fd1az/arbitrage-bot/business/venue/app"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

// DrainBehavior selects how the supervisor treats in-flight work on
// shutdown.
type DrainBehavior string

const (
	// DrainCancel stops the scan loop and returns immediately,
	// abandoning any trade already mid-flight rather than waiting on
	// it. The ledger's orphan recovery reconciles it on restart.
	DrainCancel DrainBehavior = "cancel"
	// DrainWait stops the scan loop but waits up to the engine's
	// configured drain timeout for in-flight trades to reach a
	// terminal ledger state.
	DrainWait DrainBehavior = "wait"
	// DrainForce skips the engine shutdown sequence entirely and
	// closes venue connections right away.
	DrainForce DrainBehavior = "force"
)

// ParseDrainBehavior validates a configured shutdown behavior string.
func ParseDrainBehavior(s string) (DrainBehavior, error) {
	switch DrainBehavior(s) {
	case DrainCancel, DrainWait, DrainForce:
		return DrainBehavior(s), nil
	default:
		return "", apperror.New(apperror.CodeConfigurationError,
			apperror.WithMessage(fmt.Sprintf("invalid shutdown behavior %q, must be one of cancel|wait|force", s)))
	}
}

// Config holds the supervisor's own tunables.
type Config struct {
	ShutdownBehavior DrainBehavior
}

// Supervisor waits for shutdown and then drains the strategy engine
// and closes the venue gateway.
type Supervisor struct {
	cfg     Config
	engine  *arbitrageApp.Engine
	gateway *venueApp.Gateway
	log     logger.LoggerInterface
}

// New constructs a Supervisor over an already-started engine and
// gateway.
func New(cfg Config, engine *arbitrageApp.Engine, gateway *venueApp.Gateway, log logger.LoggerInterface) *Supervisor {
	return &Supervisor{cfg: cfg, engine: engine, gateway: gateway, log: log}
}

// Run blocks until ctx is cancelled (a termination signal) and then
// shuts down according to the configured drain behavior.
func (s *Supervisor) Run(ctx context.Context) error {
	<-ctx.Done()
	s.log.Info(context.Background(), "shutdown signal received", "behavior", string(s.cfg.ShutdownBehavior))
	return s.Shutdown()
}

// Shutdown applies the configured drain behavior and closes every
// venue connection. Safe to call directly without going through Run.
func (s *Supervisor) Shutdown() error {
	background := context.Background()

	switch s.cfg.ShutdownBehavior {
	case DrainForce:
		s.log.Warn(background, "force shutdown: skipping engine drain")
	case DrainCancel:
		if err := s.engine.StopImmediate(); err != nil {
			s.log.Error(background, "engine stop (immediate) returned an error", "error", err.Error())
		}
	case DrainWait:
		fallthrough
	default:
		if err := s.engine.Stop(); err != nil {
			s.log.Error(background, "engine stop (drained) returned an error", "error", err.Error())
		}
	}

	if err := s.gateway.Close(); err != nil {
		return fmt.Errorf("closing venue gateway: %w", err)
	}
	s.log.Info(background, "shutdown complete")
	return nil
}
