package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/promoloop/reelpipe/internal/config"
	"github.com/promoloop/reelpipe/internal/models"
)

// WebhookNotifier posts terminal job outcomes to a configured webhook.
// Delivery failures are logged and swallowed; the pipeline never sees them.
type WebhookNotifier struct {
	config *config.NotifierConfig
	client *http.Client
	logger *zap.Logger
}

var _ Notifier = (*WebhookNotifier)(nil)

func NewWebhookNotifier(cfg *config.NotifierConfig, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (n *WebhookNotifier) JobPosted(ctx context.Context, job *models.ContentJob) {
	n.send(ctx, map[string]any{
		"event":          "job.posted",
		"job_id":         job.ID,
		"product_id":     job.ProductID,
		"product_name":   job.ProductName,
		"tiktok_post_id": job.TikTokPostID,
		"posted_at":      job.PostedAt,
	})
}

func (n *WebhookNotifier) JobFailed(ctx context.Context, job *models.ContentJob) {
	n.send(ctx, map[string]any{
		"event":        "job.failed",
		"job_id":       job.ID,
		"product_id":   job.ProductID,
		"product_name": job.ProductName,
		"error":        job.LastError,
		"retry_count":  job.RetryCount,
	})
}

func (n *WebhookNotifier) send(ctx context.Context, event map[string]any) {
	if n.config.WebhookURL == "" {
		return
	}

	jsonBody, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("Failed to marshal notification", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.config.WebhookURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		n.logger.Warn("Failed to create notification request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("Notification delivery failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		n.logger.Warn("Notification rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", fmt.Sprintf("%.200s", string(respBody))))
	}
}
