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

// HookService calls the external caption-generation service (an LLM proxy)
// to produce hooks, ending, caption and hashtags for a product.
type HookService struct {
	config *config.HooksConfig
	client *http.Client
	logger *zap.Logger
}

var _ HookProvider = (*HookService)(nil)

func NewHookService(cfg *config.HooksConfig, logger *zap.Logger) *HookService {
	return &HookService{
		config: cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

func (s *HookService) GenerateHooks(ctx context.Context, job *models.ContentJob) (*HookSet, error) {
	url := fmt.Sprintf("%s/v1/hooks", s.config.BaseURL)

	body := map[string]any{
		"product_id":   job.ProductID,
		"product_name": job.ProductName,
		"image_url":    job.ImageURL,
		"max_hooks":    models.MaxHooks,
	}
	if job.SourceLink != "" {
		body["link"] = job.SourceLink
	}
	if s.config.Model != "" {
		body["model"] = s.config.Model
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("hook service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var set HookSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(set.Hooks) > models.MaxHooks {
		set.Hooks = set.Hooks[:models.MaxHooks]
	}
	if len(set.Hooks) == 0 && set.Caption == "" {
		return nil, fmt.Errorf("hook service returned empty content")
	}

	s.logger.Debug("Generated hooks",
		zap.String("job_id", job.ID),
		zap.Int("hooks", len(set.Hooks)),
		zap.Int("hashtags", len(set.Hashtags)))

	return &set, nil
}
