package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promoloop/reelpipe/internal/config"
	"github.com/promoloop/reelpipe/internal/models"
	"github.com/promoloop/reelpipe/internal/store"
)

type cycleFixture struct {
	store    store.Store
	poster   *fakePoster
	notifier *fakeNotifier
	cycle    *CycleService
}

func newCycleFixture(t *testing.T) *cycleFixture {
	t.Helper()

	st := newTestStore(t)
	quota := newQuota(t, st)
	f := &cycleFixture{
		store:    st,
		poster:   &fakePoster{},
		notifier: &fakeNotifier{},
	}

	pipeline := NewPipelineService(st, quota, &fakeHooks{}, &fakeVideo{}, &fakeCatalog{}, zap.NewNop())
	executor := NewExecutorService(st, quota, f.poster, zap.NewNop())

	cycle, err := NewCycleService(
		testPipelineConfig(),
		&config.SchedulerConfig{CycleInterval: "5m", LeaseTTL: "4m"},
		st, pipeline, executor, f.notifier, zap.NewNop(),
	)
	require.NoError(t, err)
	f.cycle = cycle
	return f
}

func dueJob(t *testing.T, st store.Store) *models.ContentJob {
	t.Helper()

	past := time.Now().Add(-time.Hour)
	return createJob(t, st, func(j *models.ContentJob) {
		j.Hooks = models.StringArray{"hook"}
		j.VideoURL = "https://cdn/video.mp4"
		j.Caption = "Big sale"
		j.ScheduledAt = &past
	})
}

func TestCycleRunPostsDueJobs(t *testing.T) {
	f := newCycleFixture(t)
	ctx := context.Background()

	saveAccount(t, f.store, nil)
	job := dueJob(t, f.store)

	report, err := f.cycle.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Reaped)
	assert.Equal(t, 1, report.Posts.Due)
	assert.Equal(t, 1, report.Posts.Posted)
	assert.Equal(t, 0, report.Posts.Failed)
	assert.Equal(t, 1, report.Notifications)
	assert.Equal(t, 1, f.notifier.posted)
	assert.Equal(t, 0, f.notifier.failed)

	done, err := f.store.Job().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, done.Status)
}

func TestCycleRunNotifiesFailures(t *testing.T) {
	f := newCycleFixture(t)
	ctx := context.Background()

	saveAccount(t, f.store, nil)
	f.poster.err = errors.New("publish rejected")
	dueJob(t, f.store)

	report, err := f.cycle.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Posts.Failed)
	assert.Equal(t, 1, f.notifier.failed)
}

func TestCycleRunSkipsQuotaExhaustedJobs(t *testing.T) {
	f := newCycleFixture(t)
	ctx := context.Background()

	saveAccount(t, f.store, func(a *models.Account) { a.DailyPostCount = 3 })
	job := dueJob(t, f.store)

	report, err := f.cycle.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Posts.Due)
	assert.Equal(t, 1, report.Posts.Skipped)
	assert.Equal(t, 0, report.Posts.Posted)
	assert.Equal(t, 0, f.notifier.posted+f.notifier.failed)

	// The job stays queued for the next window.
	pending, err := f.store.Job().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, pending.Status)
}

func TestCycleRunExcludedByLease(t *testing.T) {
	f := newCycleFixture(t)
	ctx := context.Background()

	// Another instance holds the lease.
	require.NoError(t, f.store.Lease().Acquire(ctx, "cycle-runner", "other-instance", time.Now(), 5*time.Minute))

	_, err := f.cycle.Run(ctx)
	assert.ErrorIs(t, err, ErrCycleRunning)
}

func TestCycleRunReleasesLease(t *testing.T) {
	f := newCycleFixture(t)
	ctx := context.Background()

	_, err := f.cycle.Run(ctx)
	require.NoError(t, err)

	// The lease is free again immediately after the cycle.
	require.NoError(t, f.store.Lease().Acquire(ctx, "cycle-runner", "other-instance", time.Now(), time.Minute))
}

func TestCycleRunAdvancesPipelines(t *testing.T) {
	f := newCycleFixture(t)
	ctx := context.Background()

	saveAccount(t, f.store, nil)
	bare := createJob(t, f.store, nil)

	report, err := f.cycle.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pipelines.Processed)
	assert.Equal(t, 1, report.Pipelines.Succeeded)

	advanced, err := f.store.Job().Get(ctx, bare.ID)
	require.NoError(t, err)
	assert.True(t, advanced.HasVideo())
	require.NotNil(t, advanced.ScheduledAt)
}

func TestCyclePostDue(t *testing.T) {
	f := newCycleFixture(t)
	ctx := context.Background()

	saveAccount(t, f.store, nil)
	dueJob(t, f.store)

	posts, notifications, err := f.cycle.PostDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, posts.Posted)
	assert.Equal(t, 1, notifications)
}
