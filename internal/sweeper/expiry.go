package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/protardio/treasury-swap/internal/adapter"
	"github.com/protardio/treasury-swap/internal/logger"
)

// IntentExpirer is the slice of the swap engine the expiry sweeper drives
type IntentExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (expired, failed int, err error)
}

// ReservationJanitor is the slice of the store the expiry sweeper needs
type ReservationJanitor interface {
	ReleaseLapsedReservations(ctx context.Context, now time.Time) (int64, error)
}

// ExpirySweeperConfig holds configuration for the expiry sweeper
type ExpirySweeperConfig struct {
	// Interval is the pause between sweep cycles
	Interval time.Duration
}

// expirySweeper closes out stale swap intents and frees treasury reservations
// whose holder is gone. Every write it performs is conditional, so
// overlapping runs (or a second deployment) are harmless.
type expirySweeper struct {
	config    *ExpirySweeperConfig
	expirer   IntentExpirer
	store     ReservationJanitor
	clock     adapter.Clock
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewExpirySweeper creates a new intent expiry sweeper
func NewExpirySweeper(config *ExpirySweeperConfig, expirer IntentExpirer, st ReservationJanitor, clock adapter.Clock) Sweeper {
	return &expirySweeper{
		config:    config,
		expirer:   expirer,
		store:     st,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *expirySweeper) Name() string {
	return "intent-expiry-sweeper"
}

// Start begins the sweeper's main loop
func (s *expirySweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting intent expiry sweeper",
		zap.Duration("interval", s.config.Interval),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Intent expiry sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Intent expiry sweeper stop requested")
			return nil
		default:
			if err := s.runSweepCycle(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err)
				}
			}
			if !s.sleep(ctx, s.config.Interval) {
				return nil
			}
		}
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *expirySweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping intent expiry sweeper")
	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Intent expiry sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Intent expiry sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle runs a single sweep cycle with retry on store failures
func (s *expirySweeper) runSweepCycle(ctx context.Context) error {
	startTime := s.clock.Now()

	var expired, failed int
	var freed int64

	operation := func() error {
		now := s.clock.Now()

		var err error
		expired, failed, err = s.expirer.ExpireStale(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to expire stale intents: %w", err)
		}

		// Reservations without a live intent behind them (crashed creation,
		// manual intervention) lapse on their own deadline.
		freed, err = s.store.ReleaseLapsedReservations(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to release lapsed reservations: %w", err)
		}

		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Second
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 10 * time.Minute

	var attemptCount int
	notifyOnError := func(err error, duration time.Duration) {
		attemptCount++
		logger.WarnCtx(ctx, "Expiry sweep failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notifyOnError); err != nil {
		return fmt.Errorf("expiry sweep failed after %d attempts: %w", attemptCount, err)
	}

	if expired > 0 || failed > 0 || freed > 0 {
		logger.InfoCtx(ctx, "Expiry sweep cycle completed",
			zap.Duration("duration", s.clock.Since(startTime)),
			zap.Int("expired", expired),
			zap.Int("failed_with_refund", failed),
			zap.Int64("reservations_freed", freed),
		)
	}

	return nil
}

// sleep sleeps for the given duration but can be interrupted by context
// cancellation or a stop request
func (s *expirySweeper) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	case <-s.stopChan:
		return false
	}
}
