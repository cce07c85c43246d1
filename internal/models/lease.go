package models

import "time"

// CycleLease is a row-level mutual exclusion lease. The cycle runner holds the
// "cycle-runner" lease while a cycle executes so that concurrent instances of
// the service never double-claim the same due jobs.
type CycleLease struct {
	Name      string    `gorm:"primaryKey;size:100" json:"name"`
	Owner     string    `gorm:"size:255" json:"owner"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
