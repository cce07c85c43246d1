package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/promoloop/reelpipe/internal/config"
)

// Scheduler is the optional in-process trigger that invokes the cycle runner
// on a fixed cadence. In most deployments an external cron calls the trigger
// endpoint instead and this stays disabled.
type Scheduler struct {
	config *config.SchedulerConfig
	logger *zap.Logger
	cycle  *CycleService
	ticker *time.Ticker
	stopCh chan struct{}
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, cycle *CycleService) *Scheduler {
	return &Scheduler{
		config: cfg,
		logger: logger,
		cycle:  cycle,
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	interval, err := time.ParseDuration(s.config.CycleInterval)
	if err != nil {
		s.logger.Error("Invalid cycle interval", zap.String("interval", s.config.CycleInterval), zap.Error(err))
		return err
	}

	s.logger.Info("Starting scheduler", zap.String("cycle_interval", s.config.CycleInterval))

	s.ticker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.runCycle(ctx)
			case <-s.stopCh:
				s.logger.Info("Scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
	s.logger.Info("Scheduler shutdown completed")
}

func (s *Scheduler) runCycle(ctx context.Context) {
	start := time.Now()
	report, err := s.cycle.Run(ctx)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, ErrCycleRunning) {
			s.logger.Info("Skipping cycle, previous one still running")
			return
		}
		s.logger.Error("Cycle failed",
			zap.Error(err),
			zap.Duration("duration", duration))
		return
	}

	s.logger.Info("Scheduled cycle completed",
		zap.Int("posted", report.Posts.Posted),
		zap.Duration("duration", duration))
}
