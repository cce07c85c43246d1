package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/promoloop/reelpipe/internal/models"
)

// JobFilter narrows job listings. HasVideo is a tri-state: nil means no
// filtering on video presence.
type JobFilter struct {
	Status   string
	Search   string
	HasVideo *bool
	Page     int
	PerPage  int
}

// Job interface for content job database operations
type Job interface {
	Create(ctx context.Context, job *models.ContentJob) error
	Upsert(ctx context.Context, job *models.ContentJob) (*models.ContentJob, bool, error)
	Get(ctx context.Context, id string) (*models.ContentJob, error)
	List(ctx context.Context, filter JobFilter) ([]models.ContentJob, int64, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) (*models.ContentJob, error)
	Delete(ctx context.Context, id string) error
	Claim(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id, postID string, postedAt time.Time) (*models.ContentJob, error)
	MarkFailed(ctx context.Context, id, message string) error
	MarkRetry(ctx context.Context, id string, notBefore time.Time) (*models.ContentJob, error)
	PendingWithoutVideo(ctx context.Context, limit int) ([]models.ContentJob, error)
	UnscheduledWithVideo(ctx context.Context, limit int) ([]models.ContentJob, error)
	DueJobs(ctx context.Context, now time.Time) ([]models.ContentJob, error)
	FailedRetryable(ctx context.Context, maxRetries int) ([]models.ContentJob, error)
	LatestNonTerminalByProduct(ctx context.Context, productID string) (*models.ContentJob, error)
	ReapStale(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// JobStore implements the Job interface
type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job *models.ContentJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if len(job.Hooks) > models.MaxHooks {
		job.Hooks = job.Hooks[:models.MaxHooks]
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

// Upsert creates the job, or updates the most recent non-terminal job for the
// same product if one exists. The returned bool is true when a new row was
// created.
func (s *JobStore) Upsert(ctx context.Context, job *models.ContentJob) (*models.ContentJob, bool, error) {
	existing, err := s.LatestNonTerminalByProduct(ctx, job.ProductID)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			return nil, false, err
		}
		if err := s.Create(ctx, job); err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	fields := map[string]interface{}{}
	if job.ProductName != "" {
		fields["product_name"] = job.ProductName
	}
	if job.CatalogID != nil {
		fields["catalog_id"] = job.CatalogID
	}
	if job.SourceLink != "" {
		fields["source_link"] = job.SourceLink
	}
	if len(job.Hooks) > 0 {
		fields["hooks"] = job.Hooks
	}
	if job.Ending != "" {
		fields["ending"] = job.Ending
	}
	if job.Caption != "" {
		fields["caption"] = job.Caption
	}
	if len(job.Hashtags) > 0 {
		fields["hashtags"] = job.Hashtags
	}
	if job.ImageURL != "" {
		fields["image_url"] = job.ImageURL
	}
	if len(job.ExtraImages) > 0 {
		fields["extra_images"] = job.ExtraImages
	}
	if job.VideoURL != "" {
		fields["video_url"] = job.VideoURL
	}
	if job.ScheduledAt != nil {
		fields["scheduled_at"] = job.ScheduledAt
	}
	if job.AccountID != nil {
		fields["account_id"] = job.AccountID
	}
	if len(fields) == 0 {
		return existing, false, nil
	}

	updated, err := s.Update(ctx, existing.ID, fields)
	if err != nil {
		return nil, false, err
	}
	return updated, false, nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*models.ContentJob, error) {
	var job models.ContentJob
	result := s.db.WithContext(ctx).First(&job, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) List(ctx context.Context, filter JobFilter) ([]models.ContentJob, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ContentJob{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("product_id LIKE ? OR product_name LIKE ? OR caption LIKE ?", like, like, like)
	}
	if filter.HasVideo != nil {
		if *filter.HasVideo {
			query = query.Where("video_url <> ''")
		} else {
			query = query.Where("video_url = '' OR video_url IS NULL")
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting jobs: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var jobs []models.ContentJob
	if err := query.Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("listing jobs: %w", err)
	}

	return jobs, total, nil
}

func (s *JobStore) Update(ctx context.Context, id string, fields map[string]interface{}) (*models.ContentJob, error) {
	result := s.db.WithContext(ctx).Model(&models.ContentJob{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return nil, fmt.Errorf("updating job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return s.Get(ctx, id)
}

// Delete soft-deletes a job. Jobs being posted right now are protected.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status == models.JobStatusProcessing {
		return ErrJobProcessing
	}
	if err := s.db.WithContext(ctx).Delete(&models.ContentJob{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("deleting job: %w", err)
	}
	return nil
}

// Claim transitions PENDING -> PROCESSING with a conditional update so that
// only one of two racing callers proceeds. The loser gets ErrAlreadyClaimed.
func (s *JobStore) Claim(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&models.ContentJob{}).
		Where("id = ? AND status = ?", id, models.JobStatusPending).
		Updates(map[string]interface{}{
			"status":        models.JobStatusProcessing,
			"progress":      90,
			"progress_step": "posting",
		})
	if result.Error != nil {
		return fmt.Errorf("claiming job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyClaimed
	}
	return nil
}

// MarkDone completes a job. A first completion must carry the platform post
// id; completing an already-DONE job with the same post id (or none) is a
// no-op success so external completion callbacks can repeat.
func (s *JobStore) MarkDone(ctx context.Context, id, postID string, postedAt time.Time) (*models.ContentJob, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobStatusDone {
		if postID == "" || job.TikTokPostID == postID {
			return job, nil
		}
		return nil, ErrPostIDMismatch
	}
	if postID == "" {
		return nil, ErrMissingPostID
	}

	return s.Update(ctx, id, map[string]interface{}{
		"status":         models.JobStatusDone,
		"posted_at":      postedAt,
		"tiktok_post_id": postID,
		"progress":       100,
		"progress_step":  "posted",
		"last_error":     "",
	})
}

func (s *JobStore) MarkFailed(ctx context.Context, id, message string) error {
	_, err := s.Update(ctx, id, map[string]interface{}{
		"status":        models.JobStatusFailed,
		"last_error":    message,
		"progress_step": "failed",
	})
	return err
}

// MarkRetry moves a FAILED job back to PENDING, clears its error, bumps the
// retry counter and stamps the earliest time the cycle may pick it up again.
func (s *JobStore) MarkRetry(ctx context.Context, id string, notBefore time.Time) (*models.ContentJob, error) {
	result := s.db.WithContext(ctx).Model(&models.ContentJob{}).
		Where("id = ? AND status = ?", id, models.JobStatusFailed).
		Updates(map[string]interface{}{
			"status":        models.JobStatusPending,
			"last_error":    "",
			"retry_count":   gorm.Expr("retry_count + 1"),
			"not_before":    notBefore,
			"progress_step": "retrying",
		})
	if result.Error != nil {
		return nil, fmt.Errorf("retrying job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return s.Get(ctx, id)
}

func (s *JobStore) PendingWithoutVideo(ctx context.Context, limit int) ([]models.ContentJob, error) {
	var jobs []models.ContentJob
	if err := s.db.WithContext(ctx).
		Where("status = ? AND (video_url = '' OR video_url IS NULL)", models.JobStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("querying pending pipelines: %w", err)
	}
	return jobs, nil
}

func (s *JobStore) UnscheduledWithVideo(ctx context.Context, limit int) ([]models.ContentJob, error) {
	var jobs []models.ContentJob
	if err := s.db.WithContext(ctx).
		Where("status = ? AND video_url <> '' AND scheduled_at IS NULL", models.JobStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("querying unscheduled jobs: %w", err)
	}
	return jobs, nil
}

// DueJobs returns PENDING jobs whose scheduled time has arrived and whose
// retry backoff, if any, has elapsed.
func (s *JobStore) DueJobs(ctx context.Context, now time.Time) ([]models.ContentJob, error) {
	var jobs []models.ContentJob
	if err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", models.JobStatusPending, now).
		Where("not_before IS NULL OR not_before <= ?", now).
		Order("scheduled_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("querying due jobs: %w", err)
	}
	return jobs, nil
}

func (s *JobStore) FailedRetryable(ctx context.Context, maxRetries int) ([]models.ContentJob, error) {
	var jobs []models.ContentJob
	if err := s.db.WithContext(ctx).
		Where("status = ? AND retry_count < ?", models.JobStatusFailed, maxRetries).
		Order("updated_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("querying retryable jobs: %w", err)
	}
	return jobs, nil
}

func (s *JobStore) LatestNonTerminalByProduct(ctx context.Context, productID string) (*models.ContentJob, error) {
	var job models.ContentJob
	result := s.db.WithContext(ctx).
		Where("product_id = ? AND status IN ?", productID,
			[]string{models.JobStatusPending, models.JobStatusProcessing}).
		Order("created_at DESC").
		First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job by product: %w", result.Error)
	}
	return &job, nil
}

// ReapStale reclaims PROCESSING jobs last touched before cutoff back to
// PENDING, counting the lost attempt against the retry budget.
func (s *JobStore) ReapStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.ContentJob{}).
		Where("status = ? AND updated_at < ?", models.JobStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":        models.JobStatusPending,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"progress_step": "reclaimed",
		})
	if result.Error != nil {
		return 0, fmt.Errorf("reaping stale jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *JobStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.ContentJob{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("counting jobs by status: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
