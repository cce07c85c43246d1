package models

import (
	"time"

	"gorm.io/gorm"
)

// Job statuses. A job enters PENDING on creation, moves to PROCESSING only
// through an atomic claim, and ends in DONE or FAILED. FAILED jobs re-enter
// PENDING via an explicit retry.
const (
	JobStatusPending    = "PENDING"
	JobStatusProcessing = "PROCESSING"
	JobStatusDone       = "DONE"
	JobStatusFailed     = "FAILED"
)

// MaxHooks caps the number of hook fragments a single video uses.
const MaxHooks = 3

// ContentJob is one product promotion moving through hook generation, video
// rendering, scheduling and posting.
type ContentJob struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	ProductID   string `gorm:"not null;index;size:255" json:"product_id"`
	ProductName string `gorm:"size:500" json:"product_name"`
	CatalogID   *uint  `gorm:"index" json:"catalog_id"`
	SourceLink  string `gorm:"size:1000" json:"source_link"`

	Hooks       StringArray `gorm:"type:text[]" json:"hooks"`
	Ending      string      `gorm:"size:500" json:"ending"`
	Caption     string      `gorm:"type:text" json:"caption"`
	Hashtags    StringArray `gorm:"type:text[]" json:"hashtags"`
	ImageURL    string      `gorm:"size:1000" json:"image_url"`
	ExtraImages StringArray `gorm:"type:text[]" json:"extra_images"`
	VideoURL    string      `gorm:"size:1000" json:"video_url"`

	ScheduledAt *time.Time `gorm:"index" json:"scheduled_at"`
	AccountID   *string    `gorm:"size:255;index" json:"account_id"`
	NotBefore   *time.Time `json:"not_before"`

	Status       string     `gorm:"size:50;default:'PENDING';index" json:"status"`
	RetryCount   int        `gorm:"default:0" json:"retry_count"`
	LastError    string     `gorm:"type:text" json:"last_error"`
	Progress     int        `gorm:"default:0" json:"progress"`
	ProgressStep string     `gorm:"size:255" json:"progress_step"`
	PostedAt     *time.Time `json:"posted_at"`
	TikTokPostID string     `gorm:"column:tiktok_post_id;size:255" json:"tiktok_post_id"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// HasVideo reports whether rendering has produced a video for this job.
func (j *ContentJob) HasVideo() bool {
	return j.VideoURL != ""
}

// Terminal reports whether the job reached a final state.
func (j *ContentJob) Terminal() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusFailed
}
