package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/nimbusops/nimbus/internal/auth/store"
)

// HousekeepingService periodically deletes expired authorization codes,
// dead refresh tokens, and abandoned pending login requests so the tables
// do not grow without bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the sweeper. A non-positive interval
// defaults to one hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background worker. Non-blocking; call Stop to shut it
// down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop shuts the worker down and blocks until any in-progress sweep
// finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// First sweep happens at startup, not one interval later.
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep runs every cleanup once. Each sweep is independent so a failure in
// one table does not stop the others.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	codes, err := s.Store.AuthorizationCodes().DeleteExpiredAuthorizationCodes(ctx, now)
	if err != nil {
		s.Logger.Error("failed to sweep expired authorization codes", "error", err)
	}

	tokens, err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now)
	if err != nil {
		s.Logger.Error("failed to sweep dead refresh tokens", "error", err)
	}

	pending, err := s.Store.PendingAuthRequests().DeleteExpiredPendingAuthRequests(ctx, now)
	if err != nil {
		s.Logger.Error("failed to sweep expired pending requests", "error", err)
	}

	s.Logger.Info("housekeeping sweep completed",
		"authorization_codes", codes,
		"refresh_tokens", tokens,
		"pending_requests", pending,
	)
}
