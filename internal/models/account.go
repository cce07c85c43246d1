package models

import (
	"time"
)

// Account is a TikTok posting identity with its own daily quota. The counter
// resets lazily: DailyResetAt is advanced in 24h steps whenever the quota is
// read past it, never by a background timer.
type Account struct {
	ID             string     `gorm:"primaryKey;size:255" json:"id"`
	DisplayName    string     `gorm:"size:255" json:"display_name"`
	DailyPostCount int        `gorm:"default:0" json:"daily_post_count"`
	DailyResetAt   time.Time  `json:"daily_reset_at"`
	LastPostAt     *time.Time `json:"last_post_at"`
	// No column default: with one, gorm omits a zero-valued Active on insert
	// and the row silently comes back active.
	Active         bool       `gorm:"index" json:"active"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
