package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promoloop/reelpipe/internal/config"
	"github.com/promoloop/reelpipe/internal/models"
	"github.com/promoloop/reelpipe/internal/service/provider"
	"github.com/promoloop/reelpipe/internal/store"
)

const cycleLeaseName = "cycle-runner"

// PostReport aggregates the posting step of one cycle.
type PostReport struct {
	Due     int `json:"due"`
	Posted  int `json:"posted"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Report is the aggregate outcome of one cycle.
type Report struct {
	Reaped        int64       `json:"reaped"`
	Pipelines     BatchResult `json:"pipelines"`
	Posts         PostReport  `json:"posts"`
	Notifications int         `json:"notifications"`
	Duration      string      `json:"duration"`
}

// CycleService performs one synchronous pass over the queue: reclaim stuck
// jobs, advance pipelines lacking video, execute due posts, and notify
// terminal outcomes. Overlapping cycles are excluded twice: an in-process
// flag for the common case and a store lease so multiple instances of the
// service stay safe.
type CycleService struct {
	store     store.Store
	pipeline  *PipelineService
	executor  *ExecutorService
	notifier  provider.Notifier
	logger    *zap.Logger
	now       func() time.Time
	owner     string
	batchSize int
	grace     time.Duration
	leaseTTL  time.Duration
	running   atomic.Bool
}

func NewCycleService(
	pipelineCfg *config.PipelineConfig,
	schedulerCfg *config.SchedulerConfig,
	st store.Store,
	pipeline *PipelineService,
	executor *ExecutorService,
	notifier provider.Notifier,
	logger *zap.Logger,
) (*CycleService, error) {
	grace, err := time.ParseDuration(pipelineCfg.ProcessingGrace)
	if err != nil {
		return nil, fmt.Errorf("invalid processing grace: %w", err)
	}
	leaseTTL, err := time.ParseDuration(schedulerCfg.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid lease ttl: %w", err)
	}

	return &CycleService{
		store:     st,
		pipeline:  pipeline,
		executor:  executor,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
		owner:     uuid.NewString(),
		batchSize: pipelineCfg.BatchSize,
		grace:     grace,
		leaseTTL:  leaseTTL,
	}, nil
}

// Run executes one full cycle. Partial failure in any sub-step never aborts
// the remaining steps. Returns ErrCycleRunning when another cycle holds the
// lock or the lease.
func (s *CycleService) Run(ctx context.Context) (*Report, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	report := &Report{}

	reaped, err := s.store.Job().ReapStale(ctx, s.now().Add(-s.grace))
	if err != nil {
		s.logger.Error("Reaping stale jobs failed", zap.Error(err))
	} else {
		report.Reaped = reaped
		if reaped > 0 {
			s.logger.Warn("Reclaimed stuck processing jobs", zap.Int64("count", reaped))
		}
	}

	if pipelines, err := s.pipeline.ProcessPending(ctx, s.batchSize); err != nil {
		s.logger.Error("Pipeline pass failed", zap.Error(err))
	} else {
		report.Pipelines = *pipelines
	}

	posts, notifications := s.postDue(ctx)
	report.Posts = *posts
	report.Notifications = notifications
	report.Duration = time.Since(start).String()

	s.logger.Info("Cycle completed",
		zap.Int64("reaped", report.Reaped),
		zap.Int("pipelines", report.Pipelines.Processed),
		zap.Int("posted", report.Posts.Posted),
		zap.Int("failed", report.Posts.Failed),
		zap.Int("notifications", report.Notifications),
		zap.String("duration", report.Duration))

	return report, nil
}

// PostDue runs only the posting and notification steps, under the same
// mutual exclusion as a full cycle.
func (s *CycleService) PostDue(ctx context.Context) (*PostReport, int, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer release()

	posts, notifications := s.postDue(ctx)
	return posts, notifications, nil
}

func (s *CycleService) acquire(ctx context.Context) (func(), error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrCycleRunning
	}

	if err := s.store.Lease().Acquire(ctx, cycleLeaseName, s.owner, s.now(), s.leaseTTL); err != nil {
		s.running.Store(false)
		if errors.Is(err, store.ErrLeaseHeld) {
			return nil, ErrCycleRunning
		}
		return nil, err
	}

	return func() {
		if err := s.store.Lease().Release(ctx, cycleLeaseName, s.owner); err != nil {
			s.logger.Warn("Failed to release cycle lease", zap.Error(err))
		}
		s.running.Store(false)
	}, nil
}

// postDue executes every due job sequentially and notifies terminal
// outcomes. Admission rejections leave jobs PENDING and count as skips.
func (s *CycleService) postDue(ctx context.Context) (*PostReport, int) {
	report := &PostReport{}
	notifications := 0

	jobs, err := s.store.Job().DueJobs(ctx, s.now())
	if err != nil {
		s.logger.Error("Querying due jobs failed", zap.Error(err))
		return report, 0
	}

	for i := range jobs {
		job := &jobs[i]
		report.Due++

		result, err := s.executor.Post(ctx, job)
		if err != nil {
			report.Skipped++
			s.logger.Warn("Due job skipped",
				zap.String("job_id", job.ID),
				zap.Error(err))
			continue
		}

		if result.Success {
			report.Posted++
		} else {
			report.Failed++
		}

		refreshed, err := s.store.Job().Get(ctx, job.ID)
		if err != nil {
			s.logger.Error("Failed to reload job for notification",
				zap.String("job_id", job.ID),
				zap.Error(err))
			continue
		}

		switch refreshed.Status {
		case models.JobStatusDone:
			s.notifier.JobPosted(ctx, refreshed)
			notifications++
		case models.JobStatusFailed:
			s.notifier.JobFailed(ctx, refreshed)
			notifications++
		}
	}

	return report, notifications
}
