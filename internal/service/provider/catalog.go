package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/promoloop/reelpipe/internal/config"
)

// CatalogService reads the storefront product catalog.
type CatalogService struct {
	config *config.CatalogConfig
	client *http.Client
	logger *zap.Logger
}

var _ CatalogProvider = (*CatalogService)(nil)

func NewCatalogService(cfg *config.CatalogConfig, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]Product, error) {
	url := fmt.Sprintf("%s/products", s.config.BaseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var response struct {
		Products []Product `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	s.logger.Debug("Listed products", zap.Int("count", len(response.Products)))

	return response.Products, nil
}
