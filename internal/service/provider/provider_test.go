package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promoloop/reelpipe/internal/config"
	"github.com/promoloop/reelpipe/internal/models"
)

func TestHookServiceGenerateHooks(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/hooks", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(HookSet{
			Hooks:    []string{"a", "b", "c", "d"},
			Caption:  "caption",
			Hashtags: []string{"x"},
		})
	}))
	defer srv.Close()

	svc := NewHookService(&config.HooksConfig{
		BaseURL: srv.URL,
		APIKey:  "hook-key",
		Model:   "gpt-4o-mini",
	}, zap.NewNop())

	set, err := svc.GenerateHooks(context.Background(), &models.ContentJob{
		ProductID:   "prod-1",
		ProductName: "Yoga mat",
		SourceLink:  "https://shop/p/1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer hook-key", gotAuth)
	assert.Equal(t, "prod-1", gotBody["product_id"])
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])
	assert.Equal(t, "https://shop/p/1", gotBody["link"])

	// Surplus hooks are trimmed to the ceiling.
	assert.Len(t, set.Hooks, models.MaxHooks)
	assert.Equal(t, "caption", set.Caption)
}

func TestHookServiceRejectsEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(HookSet{})
	}))
	defer srv.Close()

	svc := NewHookService(&config.HooksConfig{BaseURL: srv.URL}, zap.NewNop())
	_, err := svc.GenerateHooks(context.Background(), &models.ContentJob{ProductID: "p"})
	assert.ErrorContains(t, err, "empty content")
}

func TestHookServiceNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := NewHookService(&config.HooksConfig{BaseURL: srv.URL}, zap.NewNop())
	_, err := svc.GenerateHooks(context.Background(), &models.ContentJob{ProductID: "p"})
	assert.ErrorContains(t, err, "429")
}

func TestVideoServiceRenderVideo(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/renders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"video_url":"https://cdn/render.mp4"}`))
	}))
	defer srv.Close()

	svc := NewVideoService(&config.VideoConfig{BaseURL: srv.URL, APIKey: "render-key"}, zap.NewNop())
	url, err := svc.RenderVideo(context.Background(), &models.ContentJob{
		ID:    "job-1",
		Hooks: models.StringArray{"hook"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/render.mp4", url)
	assert.Equal(t, "job-1", gotBody["job_id"])
}

func TestVideoServiceMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	svc := NewVideoService(&config.VideoConfig{BaseURL: srv.URL}, zap.NewNop())
	_, err := svc.RenderVideo(context.Background(), &models.ContentJob{ID: "job-1"})
	assert.ErrorContains(t, err, "no video url")
}

func TestCatalogServiceListProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products", r.URL.Path)
		w.Write([]byte(`{"products":[{"id":"prod-1","name":"Yoga mat"},{"id":"prod-2","name":"Foam roller"}]}`))
	}))
	defer srv.Close()

	svc := NewCatalogService(&config.CatalogConfig{BaseURL: srv.URL}, zap.NewNop())
	products, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Yoga mat", products[0].Name)
}

func TestTikTokPosterPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/video/publish", r.URL.Path)
		require.Equal(t, "Bearer tiktok-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{"post_id":"post-42"},"error":{"code":"ok","message":""}}`))
	}))
	defer srv.Close()

	poster := NewTikTokPoster(&config.TikTokConfig{BaseURL: srv.URL, Token: "tiktok-token"}, zap.NewNop())
	resp, err := poster.Post(context.Background(), PostRequest{
		AccountID: "acct-main",
		VideoURL:  "https://cdn/v.mp4",
		Caption:   "caption",
	})
	require.NoError(t, err)
	assert.Equal(t, "post-42", resp.PostID)
}

func TestTikTokPosterAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{},"error":{"code":"spam_risk","message":"too many posts"}}`))
	}))
	defer srv.Close()

	poster := NewTikTokPoster(&config.TikTokConfig{BaseURL: srv.URL}, zap.NewNop())
	_, err := poster.Post(context.Background(), PostRequest{VideoURL: "https://cdn/v.mp4"})
	assert.ErrorContains(t, err, "spam_risk")
}

func TestTikTokPosterMissingPostID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{},"error":{"code":"ok"}}`))
	}))
	defer srv.Close()

	poster := NewTikTokPoster(&config.TikTokConfig{BaseURL: srv.URL}, zap.NewNop())
	_, err := poster.Post(context.Background(), PostRequest{VideoURL: "https://cdn/v.mp4"})
	assert.ErrorContains(t, err, "no post id")
}

func TestWebhookNotifierDelivers(t *testing.T) {
	var events []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		events = append(events, event)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(&config.NotifierConfig{WebhookURL: srv.URL}, zap.NewNop())
	ctx := context.Background()

	notifier.JobPosted(ctx, &models.ContentJob{ID: "job-1", TikTokPostID: "post-1"})
	notifier.JobFailed(ctx, &models.ContentJob{ID: "job-2", LastError: "boom"})

	require.Len(t, events, 2)
	assert.Equal(t, "job.posted", events[0]["event"])
	assert.Equal(t, "job.failed", events[1]["event"])
	assert.Equal(t, "boom", events[1]["error"])
}

func TestWebhookNotifierSwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(&config.NotifierConfig{WebhookURL: srv.URL}, zap.NewNop())
	// Must not panic or propagate anything.
	notifier.JobPosted(context.Background(), &models.ContentJob{ID: "job-1"})
}

func TestWebhookNotifierDisabledWithoutURL(t *testing.T) {
	notifier := NewWebhookNotifier(&config.NotifierConfig{}, zap.NewNop())
	notifier.JobPosted(context.Background(), &models.ContentJob{ID: "job-1"})
	notifier.JobFailed(context.Background(), &models.ContentJob{ID: "job-1"})
}
