package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/promoloop/reelpipe/internal/models"
)

// Lease interface for cycle-runner mutual exclusion
type Lease interface {
	Acquire(ctx context.Context, name, owner string, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, name, owner string) error
}

// LeaseStore implements the Lease interface
type LeaseStore struct {
	db *gorm.DB
}

var _ Lease = (*LeaseStore)(nil)

func NewLeaseStore(db *gorm.DB) Lease {
	return &LeaseStore{db: db}
}

// Acquire takes the named lease if it is free, expired, or already ours.
// A row insert backs the first acquisition; the unique primary key turns a
// racing insert into ErrLeaseHeld.
func (s *LeaseStore) Acquire(ctx context.Context, name, owner string, now time.Time, ttl time.Duration) error {
	expiresAt := now.Add(ttl)

	result := s.db.WithContext(ctx).Model(&models.CycleLease{}).
		Where("name = ? AND (expires_at <= ? OR owner = ?)", name, now, owner).
		Updates(map[string]interface{}{
			"owner":      owner,
			"expires_at": expiresAt,
		})
	if result.Error != nil {
		return fmt.Errorf("acquiring lease: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	lease := models.CycleLease{Name: name, Owner: owner, ExpiresAt: expiresAt}
	if err := s.db.WithContext(ctx).Create(&lease).Error; err != nil {
		// Distinguish "row exists, held by a live owner" from the store
		// being broken; only the former is a held lease.
		var existing models.CycleLease
		if lookupErr := s.db.WithContext(ctx).
			First(&existing, "name = ?", name).Error; lookupErr == nil {
			return ErrLeaseHeld
		}
		return fmt.Errorf("acquiring lease: %w", err)
	}
	return nil
}

func (s *LeaseStore) Release(ctx context.Context, name, owner string) error {
	if err := s.db.WithContext(ctx).
		Where("name = ? AND owner = ?", name, owner).
		Delete(&models.CycleLease{}).Error; err != nil {
		return fmt.Errorf("releasing lease: %w", err)
	}
	return nil
}
