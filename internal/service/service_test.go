package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/promoloop/reelpipe/internal/config"
	"github.com/promoloop/reelpipe/internal/models"
	"github.com/promoloop/reelpipe/internal/service/provider"
	"github.com/promoloop/reelpipe/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))

	st := store.NewStore(db)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testPipelineConfig() *config.PipelineConfig {
	return &config.PipelineConfig{
		DailyMaxPosts:   3,
		MinPostInterval: "90m",
		BestHours:       []int{9, 12, 18, 21},
		BatchSize:       3,
		MaxRetries:      3,
		RetryBackoff:    "10m",
		ProcessingGrace: "30m",
		Timezone:        "UTC",
	}
}

func saveAccount(t *testing.T, st store.Store, mutate func(*models.Account)) *models.Account {
	t.Helper()

	account := &models.Account{
		ID:           "acct-main",
		DisplayName:  "Main account",
		Active:       true,
		DailyResetAt: time.Now().Add(12 * time.Hour),
	}
	if mutate != nil {
		mutate(account)
	}
	require.NoError(t, st.Account().Save(context.Background(), account))
	return account
}

func createJob(t *testing.T, st store.Store, mutate func(*models.ContentJob)) *models.ContentJob {
	t.Helper()

	job := &models.ContentJob{
		ProductID:   "prod-" + uuid.NewString()[:8],
		ProductName: "Steel water bottle",
	}
	if mutate != nil {
		mutate(job)
	}
	require.NoError(t, st.Job().Create(context.Background(), job))
	return job
}

type fakeHooks struct {
	calls int
	set   *provider.HookSet
	err   error
}

func (f *fakeHooks) GenerateHooks(ctx context.Context, job *models.ContentJob) (*provider.HookSet, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.set != nil {
		return f.set, nil
	}
	return &provider.HookSet{
		Hooks:    []string{"You need this", "Stop scrolling"},
		Ending:   "Link in bio",
		Caption:  "The bottle that keeps up",
		Hashtags: []string{"fitness", "hydration"},
	}, nil
}

type fakeVideo struct {
	calls int
	url   string
	err   error
}

func (f *fakeVideo) RenderVideo(ctx context.Context, job *models.ContentJob) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.url != "" {
		return f.url, nil
	}
	return "https://cdn.example.com/render.mp4", nil
}

type fakePoster struct {
	calls   int
	lastReq provider.PostRequest
	postID  string
	err     error
}

func (f *fakePoster) Post(ctx context.Context, req provider.PostRequest) (*provider.PostResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	id := f.postID
	if id == "" {
		id = "post-" + uuid.NewString()[:8]
	}
	return &provider.PostResponse{PostID: id}, nil
}

type fakeCatalog struct {
	products []provider.Product
	err      error
}

func (f *fakeCatalog) ListProducts(ctx context.Context) ([]provider.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

type fakeNotifier struct {
	posted int
	failed int
}

func (f *fakeNotifier) JobPosted(ctx context.Context, job *models.ContentJob) { f.posted++ }
func (f *fakeNotifier) JobFailed(ctx context.Context, job *models.ContentJob) { f.failed++ }

func newQuota(t *testing.T, st store.Store) *QuotaService {
	t.Helper()
	quota, err := NewQuotaService(testPipelineConfig(), st, zap.NewNop())
	require.NoError(t, err)
	return quota
}
