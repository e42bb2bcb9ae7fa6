package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/adminbridge/authgate/internal/gateway/store"
)

// HousekeepingService periodically sweeps state that would otherwise grow
// without bound: abandoned login correlations, dead upstream token records,
// and audit events past retention.
type HousekeepingService struct {
	Store     store.Store
	Pending   *PendingStore
	Cache     *TokenCache
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(st store.Store, pending *PendingStore, cache *TokenCache, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:     st,
		Pending:   pending,
		Cache:     cache,
		Logger:    logger,
		Interval:  interval,
		Retention: DefaultAuditRetention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

// run is the main background worker loop.
func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup performs the actual sweeps. Each sweep is independent; failures in
// one won't stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	s.Logger.Info("starting housekeeping cleanup")

	if n := s.Pending.Sweep(); n > 0 {
		s.Logger.Debug("swept expired pending authorizations", "count", n)
	}

	if n := s.Cache.SweepExpired(); n > 0 {
		s.Logger.Debug("swept dead upstream token records", "count", n)
	}

	cutoff := time.Now().Add(-s.Retention)
	if err := s.Store.AuditEvents().DeleteAuditEventsBefore(ctx, cutoff); err != nil {
		s.Logger.Error("failed to trim audit events", "error", err)
	} else {
		s.Logger.Debug("trimmed audit events", "cutoff", cutoff)
	}

	s.Logger.Info("housekeeping cleanup completed")
}
