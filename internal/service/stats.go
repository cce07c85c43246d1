package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/promoloop/reelpipe/internal/models"
	"github.com/promoloop/reelpipe/internal/store"
)

// AccountQuota is a point-in-time quota snapshot for one account.
type AccountQuota struct {
	ID             string     `json:"id"`
	DisplayName    string     `json:"display_name"`
	DailyPostCount int        `json:"daily_post_count"`
	RemainingPosts int        `json:"remaining_posts"`
	DailyResetAt   time.Time  `json:"daily_reset_at"`
	LastPostAt     *time.Time `json:"last_post_at"`
}

// QueueStats summarizes the job queue and account quotas.
type QueueStats struct {
	Jobs     map[string]int64 `json:"jobs"`
	Total    int64            `json:"total"`
	Accounts []AccountQuota   `json:"accounts"`
}

// StatsService produces the queue snapshot served by the stats action.
type StatsService struct {
	store  store.Store
	quota  *QuotaService
	logger *zap.Logger
}

func NewStatsService(st store.Store, quota *QuotaService, logger *zap.Logger) *StatsService {
	return &StatsService{
		store:  st,
		quota:  quota,
		logger: logger,
	}
}

func (s *StatsService) Snapshot(ctx context.Context) (*QueueStats, error) {
	counts, err := s.store.Job().CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	// Always report the full status set, zeroes included.
	jobs := map[string]int64{
		models.JobStatusPending:    0,
		models.JobStatusProcessing: 0,
		models.JobStatusDone:       0,
		models.JobStatusFailed:     0,
	}
	var total int64
	for status, count := range counts {
		jobs[status] = count
		total += count
	}

	accounts, err := s.store.Account().Active(ctx)
	if err != nil {
		return nil, err
	}

	quotas := make([]AccountQuota, 0, len(accounts))
	for _, account := range accounts {
		remaining := s.quota.DailyMax() - account.DailyPostCount
		if remaining < 0 {
			remaining = 0
		}
		quotas = append(quotas, AccountQuota{
			ID:             account.ID,
			DisplayName:    account.DisplayName,
			DailyPostCount: account.DailyPostCount,
			RemainingPosts: remaining,
			DailyResetAt:   account.DailyResetAt,
			LastPostAt:     account.LastPostAt,
		})
	}

	return &QueueStats{
		Jobs:     jobs,
		Total:    total,
		Accounts: quotas,
	}, nil
}
