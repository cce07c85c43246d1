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
)

// TikTokPoster submits videos through the TikTok posting API.
type TikTokPoster struct {
	config *config.TikTokConfig
	client *http.Client
	logger *zap.Logger
}

var _ Poster = (*TikTokPoster)(nil)

func NewTikTokPoster(cfg *config.TikTokConfig, logger *zap.Logger) *TikTokPoster {
	return &TikTokPoster{
		config: cfg,
		client: &http.Client{Timeout: 2 * time.Minute},
		logger: logger,
	}
}

func (p *TikTokPoster) Post(ctx context.Context, postReq PostRequest) (*PostResponse, error) {
	url := fmt.Sprintf("%s/v2/video/publish", p.config.BaseURL)

	jsonBody, err := json.Marshal(postReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.config.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("posting API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var response struct {
		Data struct {
			PostID string `json:"post_id"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.Error.Code != "" && response.Error.Code != "ok" {
		return nil, fmt.Errorf("posting API error %s: %s", response.Error.Code, response.Error.Message)
	}
	if response.Data.PostID == "" {
		return nil, fmt.Errorf("posting API returned no post id")
	}

	p.logger.Info("Posted video",
		zap.String("account_id", postReq.AccountID),
		zap.String("post_id", response.Data.PostID))

	return &PostResponse{PostID: response.Data.PostID}, nil
}
