package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/promoloop/reelpipe/internal/models"
)

// Account interface for posting account database operations
type Account interface {
	Get(ctx context.Context, id string) (*models.Account, error)
	Active(ctx context.Context) ([]models.Account, error)
	Save(ctx context.Context, account *models.Account) error
	ResetQuotaIfDue(ctx context.Context, id string, now time.Time) (*models.Account, error)
	IncrementPostCount(ctx context.Context, id string, max int, now time.Time) error
	DecrementPostCount(ctx context.Context, id string) error
}

// AccountStore implements the Account interface
type AccountStore struct {
	db *gorm.DB
}

var _ Account = (*AccountStore)(nil)

func NewAccountStore(db *gorm.DB) Account {
	return &AccountStore{db: db}
}

func (s *AccountStore) Get(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	result := s.db.WithContext(ctx).First(&account, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying account: %w", result.Error)
	}
	return &account, nil
}

// Active returns active accounts, least-loaded first so that account
// resolution spreads posts evenly.
func (s *AccountStore) Active(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("daily_post_count ASC, id ASC").
		Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("querying active accounts: %w", err)
	}
	return accounts, nil
}

func (s *AccountStore) Save(ctx context.Context, account *models.Account) error {
	if err := s.db.WithContext(ctx).Save(account).Error; err != nil {
		return fmt.Errorf("saving account: %w", err)
	}
	return nil
}

// ResetQuotaIfDue applies the lazy daily reset: once now passes DailyResetAt
// the counter drops to zero and the reset point advances in whole 24h steps
// until it lies in the future again.
func (s *AccountStore) ResetQuotaIfDue(ctx context.Context, id string, now time.Time) (*models.Account, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	resetAt := account.DailyResetAt
	if resetAt.IsZero() {
		resetAt = now.Add(24 * time.Hour)
		if err := s.db.WithContext(ctx).Model(account).
			Update("daily_reset_at", resetAt).Error; err != nil {
			return nil, fmt.Errorf("initializing quota window: %w", err)
		}
		account.DailyResetAt = resetAt
		return account, nil
	}

	if now.Before(resetAt) {
		return account, nil
	}

	for !resetAt.After(now) {
		resetAt = resetAt.Add(24 * time.Hour)
	}

	if err := s.db.WithContext(ctx).Model(account).Updates(map[string]interface{}{
		"daily_post_count": 0,
		"daily_reset_at":   resetAt,
	}).Error; err != nil {
		return nil, fmt.Errorf("resetting quota: %w", err)
	}

	account.DailyPostCount = 0
	account.DailyResetAt = resetAt
	return account, nil
}

// IncrementPostCount bumps the daily counter and last-post time in a single
// conditional update so the ceiling holds even under concurrent posters.
func (s *AccountStore) IncrementPostCount(ctx context.Context, id string, max int, now time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND daily_post_count < ?", id, max).
		Updates(map[string]interface{}{
			"daily_post_count": gorm.Expr("daily_post_count + 1"),
			"last_post_at":     now,
		})
	if result.Error != nil {
		return fmt.Errorf("incrementing post count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrQuotaExhausted
	}
	return nil
}

// DecrementPostCount releases a reserved quota slot after a failed posting
// attempt. The counter floors at zero.
func (s *AccountStore) DecrementPostCount(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND daily_post_count > 0", id).
		Update("daily_post_count", gorm.Expr("daily_post_count - 1"))
	if result.Error != nil {
		return fmt.Errorf("decrementing post count: %w", result.Error)
	}
	return nil
}
