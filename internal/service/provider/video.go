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

// VideoService calls the external rendering service that turns product images
// and hook text into a short-form video.
type VideoService struct {
	config *config.VideoConfig
	client *http.Client
	logger *zap.Logger
}

var _ VideoProvider = (*VideoService)(nil)

func NewVideoService(cfg *config.VideoConfig, logger *zap.Logger) *VideoService {
	return &VideoService{
		config: cfg,
		// Rendering is the slowest external call in the pipeline.
		client: &http.Client{Timeout: 5 * time.Minute},
		logger: logger,
	}
}

func (s *VideoService) RenderVideo(ctx context.Context, job *models.ContentJob) (string, error) {
	url := fmt.Sprintf("%s/v1/renders", s.config.BaseURL)

	body := map[string]any{
		"job_id":       job.ID,
		"product_name": job.ProductName,
		"image_url":    job.ImageURL,
		"extra_images": []string(job.ExtraImages),
		"hooks":        []string(job.Hooks),
		"ending":       job.Ending,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("render service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var response struct {
		VideoURL string `json:"video_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if response.VideoURL == "" {
		return "", fmt.Errorf("render service returned no video url")
	}

	s.logger.Debug("Rendered video",
		zap.String("job_id", job.ID),
		zap.String("video_url", response.VideoURL))

	return response.VideoURL, nil
}
