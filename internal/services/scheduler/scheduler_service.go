// Package scheduler runs the periodic quote refresh over stored stocks.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/services/stocks"
	"github.com/ternarybob/arbor"
)

// Service schedules quote refresh passes on a cron expression.
type Service struct {
	stocks  *stocks.Service
	config  *common.RefreshConfig
	cron    *cron.Cron
	logger  arbor.ILogger
	mu      sync.Mutex
	running bool
	busy    bool
}

// NewService creates a refresh scheduler.
func NewService(stockService *stocks.Service, config *common.RefreshConfig, logger arbor.ILogger) *Service {
	return &Service{
		stocks: stockService,
		config: config,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start registers the refresh job and starts the cron loop. It is a
// no-op when refresh is disabled in configuration.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Quote refresh disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	schedule := s.config.Schedule
	if schedule == "" {
		schedule = "0 * * * *" // hourly
	}

	if _, err := s.cron.AddFunc(schedule, s.runRefresh); err != nil {
		return fmt.Errorf("failed to add refresh job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Str("schedule", schedule).Msg("Quote refresh scheduler started")
	return nil
}

// Stop halts the cron loop and waits for an in-flight pass to finish.
// The wait happens outside the lock so a running pass can still clear
// its busy flag.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Quote refresh scheduler stopped")
}

// IsRunning reports whether the cron loop is active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TriggerNow runs a refresh pass immediately, outside the schedule.
func (s *Service) TriggerNow(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return 0, fmt.Errorf("refresh already in progress")
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	return s.stocks.RefreshQuotes(ctx)
}

// runRefresh is the cron entry point. A pass that overlaps the next
// tick is skipped rather than stacked.
func (s *Service) runRefresh() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("PANIC RECOVERED in quote refresh")
		}
	}()

	start := time.Now()
	refreshed, err := s.TriggerNow(context.Background())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Quote refresh pass failed")
		return
	}

	s.logger.Info().
		Int("refreshed", refreshed).
		Dur("duration", time.Since(start)).
		Msg("Scheduled quote refresh completed")
}
