package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/promoloop/reelpipe/internal/models"
	"github.com/promoloop/reelpipe/internal/service/provider"
	"github.com/promoloop/reelpipe/internal/store"
)

// Options selects which pipeline stages a single run may perform. A stage is
// only invoked when its output is missing, so reprocessing a partially
// advanced job never redoes completed work.
type Options struct {
	GenerateHooks bool `json:"generateHooks"`
	GenerateVideo bool `json:"generateVideo"`
	AutoSchedule  bool `json:"autoSchedule"`
}

// AllStages enables every pipeline stage.
func AllStages() Options {
	return Options{GenerateHooks: true, GenerateVideo: true, AutoSchedule: true}
}

// Result is the outcome of advancing one job.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// BatchResult aggregates a batch pipeline pass.
type BatchResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"success"`
	Failed    int `json:"failed"`
}

// ImportReport aggregates a catalog import.
type ImportReport struct {
	Imported int `json:"imported"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// PipelineService drives jobs through content generation and scheduling.
type PipelineService struct {
	store   store.Store
	quota   *QuotaService
	hooks   provider.HookProvider
	video   provider.VideoProvider
	catalog provider.CatalogProvider
	logger  *zap.Logger
}

func NewPipelineService(
	st store.Store,
	quota *QuotaService,
	hooks provider.HookProvider,
	video provider.VideoProvider,
	catalog provider.CatalogProvider,
	logger *zap.Logger,
) *PipelineService {
	return &PipelineService{
		store:   st,
		quota:   quota,
		hooks:   hooks,
		video:   video,
		catalog: catalog,
		logger:  logger,
	}
}

// ProcessJob advances the job by exactly the missing stages selected in opts.
// Stage failures record the error on the job and leave it PENDING so the next
// cycle can pick it up again.
func (s *PipelineService) ProcessJob(ctx context.Context, jobID string, opts Options) *Result {
	job, err := s.store.Job().Get(ctx, jobID)
	if err != nil {
		return &Result{Success: false, Message: "job not found", Err: err}
	}
	if job.Terminal() {
		return &Result{Success: false, Message: fmt.Sprintf("job is %s and cannot be processed", job.Status)}
	}
	if job.Status == models.JobStatusProcessing {
		return &Result{Success: false, Message: "job is being posted"}
	}

	var advanced []string

	if opts.GenerateHooks && len(job.Hooks) == 0 {
		job, err = s.generateHooks(ctx, job)
		if err != nil {
			return s.stageFailure(ctx, job, "hook generation", err)
		}
		advanced = append(advanced, "hooks")
	}

	if opts.GenerateVideo && !job.HasVideo() {
		job, err = s.renderVideo(ctx, job)
		if err != nil {
			return s.stageFailure(ctx, job, "video rendering", err)
		}
		advanced = append(advanced, "video")
	}

	if opts.AutoSchedule && job.ScheduledAt == nil && job.HasVideo() {
		job, err = s.schedule(ctx, job)
		if err != nil {
			return s.stageFailure(ctx, job, "scheduling", err)
		}
		advanced = append(advanced, "schedule")
	}

	if len(advanced) == 0 {
		return &Result{Success: true, Message: "nothing to do"}
	}

	// Clear any stale stage error once a run completes cleanly.
	if job.LastError != "" {
		if job, err = s.store.Job().Update(ctx, job.ID, map[string]interface{}{"last_error": ""}); err != nil {
			return &Result{Success: false, Message: "failed to update job", Err: err}
		}
	}

	return &Result{Success: true, Message: "advanced: " + strings.Join(advanced, ", ")}
}

func (s *PipelineService) generateHooks(ctx context.Context, job *models.ContentJob) (*models.ContentJob, error) {
	job, err := s.store.Job().Update(ctx, job.ID, map[string]interface{}{
		"progress":      10,
		"progress_step": "generating hooks",
	})
	if err != nil {
		return job, err
	}

	set, err := s.hooks.GenerateHooks(ctx, job)
	if err != nil {
		return job, err
	}

	fields := map[string]interface{}{
		"hooks":         models.StringArray(set.Hooks),
		"progress":      40,
		"progress_step": "hooks ready",
	}
	if set.Ending != "" {
		fields["ending"] = set.Ending
	}
	if set.Caption != "" {
		fields["caption"] = set.Caption
	}
	if len(set.Hashtags) > 0 {
		fields["hashtags"] = models.StringArray(set.Hashtags)
	}

	return s.store.Job().Update(ctx, job.ID, fields)
}

func (s *PipelineService) renderVideo(ctx context.Context, job *models.ContentJob) (*models.ContentJob, error) {
	job, err := s.store.Job().Update(ctx, job.ID, map[string]interface{}{
		"progress":      50,
		"progress_step": "rendering video",
	})
	if err != nil {
		return job, err
	}

	videoURL, err := s.video.RenderVideo(ctx, job)
	if err != nil {
		return job, err
	}

	return s.store.Job().Update(ctx, job.ID, map[string]interface{}{
		"video_url":     videoURL,
		"progress":      70,
		"progress_step": "video ready",
	})
}

func (s *PipelineService) schedule(ctx context.Context, job *models.ContentJob) (*models.ContentJob, error) {
	account, err := s.quota.ResolveAccount(ctx, job.AccountID)
	if err != nil {
		return job, err
	}

	slot, err := s.quota.NextPostingSlot(ctx, &account.ID)
	if err != nil {
		return job, err
	}

	return s.store.Job().Update(ctx, job.ID, map[string]interface{}{
		"scheduled_at":  slot,
		"account_id":    account.ID,
		"progress":      80,
		"progress_step": "scheduled",
	})
}

// stageFailure records the stage error on the job without changing its
// status; the job remains PENDING and eligible for the next cycle.
func (s *PipelineService) stageFailure(ctx context.Context, job *models.ContentJob, stage string, cause error) *Result {
	s.logger.Error("Pipeline stage failed",
		zap.String("job_id", job.ID),
		zap.String("stage", stage),
		zap.Error(cause))

	if _, err := s.store.Job().Update(ctx, job.ID, map[string]interface{}{
		"last_error": fmt.Sprintf("%s: %v", stage, cause),
	}); err != nil {
		s.logger.Error("Failed to record stage error", zap.String("job_id", job.ID), zap.Error(err))
	}

	return &Result{
		Success: false,
		Message: fmt.Sprintf("%s failed", stage),
		Err:     cause,
	}
}

// ProcessPending advances up to limit jobs that still lack a video. A failure
// in one job never aborts the rest of the batch.
func (s *PipelineService) ProcessPending(ctx context.Context, limit int) (*BatchResult, error) {
	jobs, err := s.store.Job().PendingWithoutVideo(ctx, limit)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for _, job := range jobs {
		result.Processed++
		if r := s.ProcessJob(ctx, job.ID, AllStages()); r.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	s.logger.Info("Processed pending pipelines",
		zap.Int("processed", result.Processed),
		zap.Int("success", result.Succeeded),
		zap.Int("failed", result.Failed))

	return result, nil
}

// CreateFromProduct creates (or updates, for an existing non-terminal job of
// the same product) a job from catalog data, optionally running the pipeline
// immediately.
func (s *PipelineService) CreateFromProduct(ctx context.Context, job *models.ContentJob, runPipeline bool) (*models.ContentJob, *Result, error) {
	if job.ProductID == "" {
		return nil, nil, fmt.Errorf("product id is required")
	}

	job, created, err := s.store.Job().Upsert(ctx, job)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Job created from product",
		zap.String("job_id", job.ID),
		zap.String("product_id", job.ProductID),
		zap.Bool("created", created))

	if !runPipeline {
		return job, nil, nil
	}

	result := s.ProcessJob(ctx, job.ID, AllStages())
	job, err = s.store.Job().Get(ctx, job.ID)
	if err != nil {
		return nil, result, err
	}
	return job, result, nil
}

// ScheduleAll assigns posting slots to every video-ready unscheduled job.
// Slots are handed out in sequence, so bulk scheduling cannot collide.
func (s *PipelineService) ScheduleAll(ctx context.Context) (int, error) {
	jobs, err := s.store.Job().UnscheduledWithVideo(ctx, 200)
	if err != nil {
		return 0, err
	}

	scheduled := 0
	for i := range jobs {
		job := &jobs[i]
		if _, err := s.schedule(ctx, job); err != nil {
			s.logger.Error("Failed to schedule job",
				zap.String("job_id", job.ID),
				zap.Error(err))
			if errors.Is(err, ErrNoActiveAccount) {
				break
			}
			continue
		}
		scheduled++
	}

	s.logger.Info("Bulk scheduling completed",
		zap.Int("eligible", len(jobs)),
		zap.Int("scheduled", scheduled))

	return scheduled, nil
}

// ImportAllProducts creates jobs for every catalog product that has none.
func (s *PipelineService) ImportAllProducts(ctx context.Context) (*ImportReport, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	report := &ImportReport{}
	for _, p := range products {
		job := &models.ContentJob{
			ProductID:   p.ID,
			ProductName: p.Name,
			ImageURL:    p.ImageURL,
			ExtraImages: models.StringArray(p.ExtraImages),
			SourceLink:  p.Link,
			CatalogID:   p.CatalogID,
		}
		_, created, err := s.store.Job().Upsert(ctx, job)
		if err != nil {
			s.logger.Error("Failed to import product",
				zap.String("product_id", p.ID),
				zap.Error(err))
			report.Failed++
			continue
		}
		report.Imported++
		if created {
			report.Created++
		} else {
			report.Updated++
		}
	}

	return report, nil
}
