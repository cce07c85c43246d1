package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/promoloop/reelpipe/internal/config"
	"github.com/promoloop/reelpipe/internal/models"
	"github.com/promoloop/reelpipe/internal/store"
)

// Admission is the result of a quota check.
type Admission struct {
	CanPost        bool `json:"can_post"`
	RemainingPosts int  `json:"remaining_posts"`
}

// QuotaService enforces per-account daily post ceilings and computes the next
// legal posting slot. Slot computation is serialized per process: repeated
// calls for the same account yield strictly increasing times so that bulk
// scheduling never collides.
type QuotaService struct {
	store     store.Store
	logger    *zap.Logger
	now       func() time.Time
	dailyMax  int
	interval  time.Duration
	bestHours []int
	location  *time.Location

	mu      sync.Mutex
	planned map[string]time.Time
}

func NewQuotaService(cfg *config.PipelineConfig, st store.Store, logger *zap.Logger) (*QuotaService, error) {
	interval, err := time.ParseDuration(cfg.MinPostInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid min post interval: %w", err)
	}

	loc := time.Local
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone: %w", err)
		}
	}

	hours := append([]int(nil), cfg.BestHours...)
	sort.Ints(hours)

	return &QuotaService{
		store:     st,
		logger:    logger,
		now:       time.Now,
		dailyMax:  cfg.DailyMaxPosts,
		interval:  interval,
		bestHours: hours,
		location:  loc,
		planned:   make(map[string]time.Time),
	}, nil
}

// DailyMax returns the configured per-account daily ceiling.
func (s *QuotaService) DailyMax() int {
	return s.dailyMax
}

// CanPost applies the lazy daily reset and reports whether the account is
// below its ceiling.
func (s *QuotaService) CanPost(ctx context.Context, accountID string) (*Admission, error) {
	account, err := s.store.Account().ResetQuotaIfDue(ctx, accountID, s.now())
	if err != nil {
		return nil, err
	}

	remaining := s.dailyMax - account.DailyPostCount
	if remaining < 0 {
		remaining = 0
	}

	return &Admission{
		CanPost:        remaining > 0,
		RemainingPosts: remaining,
	}, nil
}

// ResolveAccount returns the referenced account, or the least-loaded active
// account when no id is given.
func (s *QuotaService) ResolveAccount(ctx context.Context, accountID *string) (*models.Account, error) {
	if accountID != nil && *accountID != "" {
		return s.store.Account().Get(ctx, *accountID)
	}

	accounts, err := s.store.Account().Active(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrNoActiveAccount
	}
	return &accounts[0], nil
}

// NextPostingSlot computes the earliest slot that honors the minimum interval
// since the account's last post (and since the last slot handed out here) and
// falls within a configured best posting hour. The slot is recorded, so
// successive calls for the same account strictly increase.
func (s *QuotaService) NextPostingSlot(ctx context.Context, accountID *string) (time.Time, error) {
	return s.postingSlot(ctx, accountID, true)
}

// PeekPostingSlot computes the same slot without recording it. Read-only
// introspection must not push real future schedules later.
func (s *QuotaService) PeekPostingSlot(ctx context.Context, accountID *string) (time.Time, error) {
	return s.postingSlot(ctx, accountID, false)
}

func (s *QuotaService) postingSlot(ctx context.Context, accountID *string, record bool) (time.Time, error) {
	account, err := s.ResolveAccount(ctx, accountID)
	if err != nil {
		return time.Time{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := s.now().In(s.location)
	if account.LastPostAt != nil {
		if next := account.LastPostAt.Add(s.interval); next.After(candidate) {
			candidate = next.In(s.location)
		}
	}
	if planned, ok := s.planned[account.ID]; ok {
		if next := planned.Add(s.interval); next.After(candidate) {
			candidate = next.In(s.location)
		}
	}

	slot := s.snapToBestHour(candidate)
	if record {
		s.planned[account.ID] = slot
	}

	s.logger.Debug("Computed posting slot",
		zap.String("account_id", account.ID),
		zap.Time("slot", slot),
		zap.Bool("recorded", record))

	return slot, nil
}

// snapToBestHour returns t unchanged when it already falls inside a best
// hour, otherwise the next best-hour boundary on the same or following day.
func (s *QuotaService) snapToBestHour(t time.Time) time.Time {
	t = t.In(s.location)

	for _, h := range s.bestHours {
		if t.Hour() == h {
			return t
		}
	}

	for _, h := range s.bestHours {
		if t.Hour() < h {
			return time.Date(t.Year(), t.Month(), t.Day(), h, 0, 0, 0, s.location)
		}
	}

	next := t.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), s.bestHours[0], 0, 0, 0, s.location)
}
