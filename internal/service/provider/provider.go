package provider

import (
	"context"

	"github.com/promoloop/reelpipe/internal/models"
)

// HookSet is the text content produced for one video: up to three hook
// fragments, a closing call-to-action, the caption and its hashtags.
type HookSet struct {
	Hooks    []string `json:"hooks"`
	Ending   string   `json:"ending"`
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
}

// PostRequest is an outbound TikTok post.
type PostRequest struct {
	AccountID string `json:"account_id"`
	VideoURL  string `json:"video_url"`
	Caption   string `json:"caption"`
}

// PostResponse carries the platform post id on success.
type PostResponse struct {
	PostID string `json:"post_id"`
}

// Product is a catalog record eligible for promotion.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ImageURL    string   `json:"image_url"`
	ExtraImages []string `json:"extra_images"`
	Link        string   `json:"link"`
	CatalogID   *uint    `json:"catalog_id"`
}

// HookProvider generates hook/caption text for a job. Implementations own
// their timeouts; the pipeline treats any error as a stage failure.
type HookProvider interface {
	GenerateHooks(ctx context.Context, job *models.ContentJob) (*HookSet, error)
}

// VideoProvider renders the short-form video for a job and returns a
// reference to the produced media.
type VideoProvider interface {
	RenderVideo(ctx context.Context, job *models.ContentJob) (string, error)
}

// Poster submits a finished video to the TikTok posting API.
type Poster interface {
	Post(ctx context.Context, req PostRequest) (*PostResponse, error)
}

// CatalogProvider lists products from the storefront catalog.
type CatalogProvider interface {
	ListProducts(ctx context.Context) ([]Product, error)
}

// Notifier reports terminal job outcomes to a side channel. Calls are
// fire-and-forget: implementations log their own failures and never return
// errors into the pipeline.
type Notifier interface {
	JobPosted(ctx context.Context, job *models.ContentJob)
	JobFailed(ctx context.Context, job *models.ContentJob)
}
