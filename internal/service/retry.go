package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/promoloop/reelpipe/internal/config"
	"github.com/promoloop/reelpipe/internal/models"
	"github.com/promoloop/reelpipe/internal/store"
)

// RetryReport aggregates a bulk retry.
type RetryReport struct {
	Retried  int       `json:"retried"`
	Skipped  int       `json:"skipped"`
	Pipeline []*Result `json:"pipeline,omitempty"`
}

// RetryService moves FAILED jobs back to PENDING within the retry budget.
// Every retry stamps a not-before time with exponential backoff so retried
// jobs do not storm the next cycle.
type RetryService struct {
	store      store.Store
	pipeline   *PipelineService
	logger     *zap.Logger
	now        func() time.Time
	maxRetries int
	backoff    time.Duration
}

func NewRetryService(cfg *config.PipelineConfig, st store.Store, pipeline *PipelineService, logger *zap.Logger) (*RetryService, error) {
	backoff, err := time.ParseDuration(cfg.RetryBackoff)
	if err != nil {
		return nil, fmt.Errorf("invalid retry backoff: %w", err)
	}

	return &RetryService{
		store:      st,
		pipeline:   pipeline,
		logger:     logger,
		now:        time.Now,
		maxRetries: cfg.MaxRetries,
		backoff:    backoff,
	}, nil
}

// MaxRetries returns the configured retry ceiling.
func (s *RetryService) MaxRetries() int {
	return s.maxRetries
}

// Retry re-queues one failed job. Rejected when the job is not FAILED or its
// retry budget is spent.
func (s *RetryService) Retry(ctx context.Context, jobID string) (*models.ContentJob, error) {
	job, err := s.store.Job().Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusFailed {
		return nil, ErrNotRetryable
	}
	if job.RetryCount >= s.maxRetries {
		return nil, ErrRetriesExhausted
	}

	notBefore := s.now().Add(s.backoff << uint(job.RetryCount))

	retried, err := s.store.Job().MarkRetry(ctx, jobID, notBefore)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Job queued for retry",
		zap.String("job_id", jobID),
		zap.Int("retry_count", retried.RetryCount),
		zap.Time("not_before", notBefore))

	return retried, nil
}

// RetryAll re-queues every failed job under the retry ceiling, optionally
// running the pipeline for each immediately.
func (s *RetryService) RetryAll(ctx context.Context, runPipeline bool) (*RetryReport, error) {
	jobs, err := s.store.Job().FailedRetryable(ctx, s.maxRetries)
	if err != nil {
		return nil, err
	}

	report := &RetryReport{}
	for _, job := range jobs {
		if _, err := s.Retry(ctx, job.ID); err != nil {
			s.logger.Warn("Skipping retry",
				zap.String("job_id", job.ID),
				zap.Error(err))
			report.Skipped++
			continue
		}
		report.Retried++

		if runPipeline {
			report.Pipeline = append(report.Pipeline, s.pipeline.ProcessJob(ctx, job.ID, AllStages()))
		}
	}

	return report, nil
}
