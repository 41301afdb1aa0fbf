package service

import (
	"context"
	"time"

	"github.com/stockwatch/stockwatch-backend/pkg/cache"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// AlertScanLock names the lock that keeps replicas from scanning at once
const AlertScanLock = "alert-scan"

// AlertScheduler runs alert scans periodically. With Redis configured only
// one replica scans per tick.
type AlertScheduler struct {
	scanner  *AlertScanner
	locks    *cache.Client
	interval time.Duration
	lockTTL  time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewAlertScheduler creates a new alert scheduler. locks may be nil.
func NewAlertScheduler(scanner *AlertScanner, locks *cache.Client, interval, lockTTL time.Duration, log *logger.Logger) *AlertScheduler {
	return &AlertScheduler{
		scanner:  scanner,
		locks:    locks,
		interval: interval,
		lockTTL:  lockTTL,
		logger:   log.WithComponent("alert_scheduler"),
	}
}

// Start starts the scheduler in a background goroutine
func (s *AlertScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("alert scheduler started")

		// Run an initial scan immediately
		s.runScanCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("alert scheduler stopped")
				return
			case <-ticker.C:
				s.runScanCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler and waits for a running scan to finish
func (s *AlertScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *AlertScheduler) runScanCycle(ctx context.Context) {
	release, ok, err := s.locks.TryLock(ctx, AlertScanLock, s.lockTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to obtain alert scan lock")
		return
	}
	if !ok {
		s.logger.Debug().Msg("alert scan running elsewhere, skipping")
		return
	}
	defer release()

	start := time.Now()
	if err := s.scanner.ScanAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("alert scan cycle finished with errors")
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Msg("alert scan cycle completed")
}
