package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promoloop/reelpipe/internal/models"
)

func TestStatsSnapshot(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	stats := NewStatsService(st, newQuota(t, st), zap.NewNop())

	saveAccount(t, st, func(a *models.Account) { a.DailyPostCount = 1 })
	createJob(t, st, nil)
	failed := createJob(t, st, nil)
	require.NoError(t, st.Job().MarkFailed(ctx, failed.ID, "boom"))
	done := createJob(t, st, nil)
	_, err := st.Job().MarkDone(ctx, done.ID, "post-1", time.Now())
	require.NoError(t, err)

	snapshot, err := stats.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), snapshot.Total)
	assert.Equal(t, int64(1), snapshot.Jobs[models.JobStatusPending])
	assert.Equal(t, int64(1), snapshot.Jobs[models.JobStatusFailed])
	assert.Equal(t, int64(1), snapshot.Jobs[models.JobStatusDone])
	// Absent statuses are reported as explicit zeroes.
	count, ok := snapshot.Jobs[models.JobStatusProcessing]
	assert.True(t, ok)
	assert.Equal(t, int64(0), count)

	require.Len(t, snapshot.Accounts, 1)
	assert.Equal(t, 1, snapshot.Accounts[0].DailyPostCount)
	assert.Equal(t, 2, snapshot.Accounts[0].RemainingPosts)
}
