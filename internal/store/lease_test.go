package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestLeaseStoreAcquire(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ttl := 5 * time.Minute

	require.NoError(t, st.Lease().Acquire(ctx, "cycle-runner", "owner-a", now, ttl))

	// A live lease blocks other owners.
	err := st.Lease().Acquire(ctx, "cycle-runner", "owner-b", now, ttl)
	assert.ErrorIs(t, err, ErrLeaseHeld)

	// The holder may refresh its own lease.
	require.NoError(t, st.Lease().Acquire(ctx, "cycle-runner", "owner-a", now.Add(time.Minute), ttl))
}

func TestLeaseStoreExpiredTakeover(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.Lease().Acquire(ctx, "cycle-runner", "owner-a", now, time.Minute))

	// After expiry any owner may take the lease over.
	later := now.Add(2 * time.Minute)
	require.NoError(t, st.Lease().Acquire(ctx, "cycle-runner", "owner-b", later, time.Minute))

	// The previous owner lost it.
	err := st.Lease().Acquire(ctx, "cycle-runner", "owner-a", later, time.Minute)
	assert.ErrorIs(t, err, ErrLeaseHeld)
}

func TestLeaseStoreRelease(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ttl := 5 * time.Minute

	require.NoError(t, st.Lease().Acquire(ctx, "cycle-runner", "owner-a", now, ttl))

	// Releasing with the wrong owner is a silent no-op.
	require.NoError(t, st.Lease().Release(ctx, "cycle-runner", "owner-b"))
	err := st.Lease().Acquire(ctx, "cycle-runner", "owner-b", now, ttl)
	assert.ErrorIs(t, err, ErrLeaseHeld)

	require.NoError(t, st.Lease().Release(ctx, "cycle-runner", "owner-a"))
	require.NoError(t, st.Lease().Acquire(ctx, "cycle-runner", "owner-b", now, ttl))
}

func TestLeaseStoreAcquireStoreFailure(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	// A broken store must surface as an error, never as lease contention.
	err = NewLeaseStore(db).Acquire(context.Background(), "cycle-runner", "owner-a", time.Now(), time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLeaseHeld)
}
