package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/promoloop/reelpipe/internal/models"
	"github.com/promoloop/reelpipe/internal/service/provider"
	"github.com/promoloop/reelpipe/internal/store"
)

// PostResult is the outcome of a posting attempt that passed admission.
type PostResult struct {
	Success bool   `json:"success"`
	PostID  string `json:"post_id,omitempty"`
	Err     error  `json:"-"`
}

// ExecutorService performs the actual post for a job whose scheduled time has
// arrived. Admission failures (quota, missing video, no account, lost claim)
// are returned as errors and leave the job PENDING; execution failures mark
// the job FAILED and are reported in the result.
type ExecutorService struct {
	store  store.Store
	quota  *QuotaService
	poster provider.Poster
	logger *zap.Logger
	now    func() time.Time
}

func NewExecutorService(st store.Store, quota *QuotaService, poster provider.Poster, logger *zap.Logger) *ExecutorService {
	return &ExecutorService{
		store:  st,
		quota:  quota,
		poster: poster,
		logger: logger,
		now:    time.Now,
	}
}

func (s *ExecutorService) Post(ctx context.Context, job *models.ContentJob) (*PostResult, error) {
	if !job.HasVideo() {
		return nil, ErrNoVideo
	}

	account, err := s.quota.ResolveAccount(ctx, job.AccountID)
	if err != nil {
		return nil, err
	}

	admission, err := s.quota.CanPost(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if !admission.CanPost {
		s.logger.Warn("Posting rejected by quota",
			zap.String("job_id", job.ID),
			zap.String("account_id", account.ID))
		return nil, ErrQuotaExceeded
	}

	// Exactly one caller wins the claim; the loser backs off silently.
	if err := s.store.Job().Claim(ctx, job.ID); err != nil {
		return nil, err
	}

	// Reserve the quota slot before dispatching so the ceiling holds even
	// if another executor slipped in between the check and here. A failed
	// dispatch releases the slot below.
	if err := s.store.Account().IncrementPostCount(ctx, account.ID, s.quota.DailyMax(), s.now()); err != nil {
		s.releaseClaim(ctx, job.ID)
		if errors.Is(err, store.ErrQuotaExhausted) {
			return nil, ErrQuotaExceeded
		}
		return nil, fmt.Errorf("reserving quota slot: %w", err)
	}

	caption := ComposeCaption(job)

	resp, err := s.poster.Post(ctx, provider.PostRequest{
		AccountID: account.ID,
		VideoURL:  job.VideoURL,
		Caption:   caption,
	})
	if err != nil {
		if decErr := s.store.Account().DecrementPostCount(ctx, account.ID); decErr != nil {
			s.logger.Warn("Failed to release quota slot",
				zap.String("account_id", account.ID),
				zap.Error(decErr))
		}
		if markErr := s.store.Job().MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			s.logger.Error("Failed to mark job failed",
				zap.String("job_id", job.ID),
				zap.Error(markErr))
		}
		return &PostResult{Success: false, Err: err}, nil
	}

	if _, err := s.store.Job().MarkDone(ctx, job.ID, resp.PostID, s.now()); err != nil {
		return nil, fmt.Errorf("recording completed post: %w", err)
	}

	if job.AccountID == nil || *job.AccountID == "" {
		if _, err := s.store.Job().Update(ctx, job.ID, map[string]interface{}{"account_id": account.ID}); err != nil {
			s.logger.Warn("Failed to record posting account", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	s.logger.Info("Job posted",
		zap.String("job_id", job.ID),
		zap.String("account_id", account.ID),
		zap.String("post_id", resp.PostID))

	return &PostResult{Success: true, PostID: resp.PostID}, nil
}

// releaseClaim hands a claimed job back to the queue when admission fails
// after the claim was already won.
func (s *ExecutorService) releaseClaim(ctx context.Context, jobID string) {
	if _, err := s.store.Job().Update(ctx, jobID, map[string]interface{}{
		"status":        models.JobStatusPending,
		"progress_step": "queued",
	}); err != nil {
		s.logger.Warn("Failed to release job claim",
			zap.String("job_id", jobID),
			zap.Error(err))
	}
}

// ComposeCaption joins the caption with its hashtags, normalizing the "#"
// prefix and skipping blanks.
func ComposeCaption(job *models.ContentJob) string {
	parts := make([]string, 0, len(job.Hashtags))
	for _, tag := range job.Hashtags {
		tag = strings.TrimSpace(strings.TrimPrefix(tag, "#"))
		if tag == "" {
			continue
		}
		parts = append(parts, "#"+tag)
	}

	caption := strings.TrimSpace(job.Caption)
	if len(parts) == 0 {
		return caption
	}
	if caption == "" {
		return strings.Join(parts, " ")
	}
	return caption + "\n\n" + strings.Join(parts, " ")
}
