package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promoloop/reelpipe/internal/models"
)

func TestQuotaCanPost(t *testing.T) {
	st := newTestStore(t)
	quota := newQuota(t, st)
	ctx := context.Background()

	saveAccount(t, st, func(a *models.Account) { a.DailyPostCount = 2 })

	admission, err := quota.CanPost(ctx, "acct-main")
	require.NoError(t, err)
	assert.True(t, admission.CanPost)
	assert.Equal(t, 1, admission.RemainingPosts)
}

func TestQuotaCanPostAtCeiling(t *testing.T) {
	st := newTestStore(t)
	quota := newQuota(t, st)
	ctx := context.Background()

	saveAccount(t, st, func(a *models.Account) { a.DailyPostCount = 3 })

	admission, err := quota.CanPost(ctx, "acct-main")
	require.NoError(t, err)
	assert.False(t, admission.CanPost)
	assert.Equal(t, 0, admission.RemainingPosts)
}

func TestQuotaCanPostAppliesLazyReset(t *testing.T) {
	st := newTestStore(t)
	quota := newQuota(t, st)
	ctx := context.Background()

	// Window elapsed yesterday; the ceiling no longer applies.
	saveAccount(t, st, func(a *models.Account) {
		a.DailyPostCount = 3
		a.DailyResetAt = time.Now().Add(-2 * time.Hour)
	})

	admission, err := quota.CanPost(ctx, "acct-main")
	require.NoError(t, err)
	assert.True(t, admission.CanPost)
	assert.Equal(t, 3, admission.RemainingPosts)
}

func TestQuotaResolveAccount(t *testing.T) {
	st := newTestStore(t)
	quota := newQuota(t, st)
	ctx := context.Background()

	saveAccount(t, st, func(a *models.Account) {
		a.ID = "acct-busy"
		a.DailyPostCount = 2
	})
	saveAccount(t, st, func(a *models.Account) {
		a.ID = "acct-idle"
		a.DailyPostCount = 0
	})

	// No id: the least-loaded active account wins.
	account, err := quota.ResolveAccount(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "acct-idle", account.ID)

	// Explicit id is honored even when busier.
	busy := "acct-busy"
	account, err = quota.ResolveAccount(ctx, &busy)
	require.NoError(t, err)
	assert.Equal(t, "acct-busy", account.ID)
}

func TestQuotaResolveAccountNoneActive(t *testing.T) {
	st := newTestStore(t)
	quota := newQuota(t, st)

	saveAccount(t, st, func(a *models.Account) { a.Active = false })

	_, err := quota.ResolveAccount(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoActiveAccount)
}

func TestQuotaNextPostingSlotMonotonic(t *testing.T) {
	st := newTestStore(t)
	quota := newQuota(t, st)
	ctx := context.Background()

	saveAccount(t, st, nil)

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	quota.now = func() time.Time { return base }

	bestHours := map[int]bool{9: true, 12: true, 18: true, 21: true}

	var prev time.Time
	for i := 0; i < 5; i++ {
		slot, err := quota.NextPostingSlot(ctx, nil)
		require.NoError(t, err)
		assert.True(t, bestHours[slot.Hour()], "slot %v not in a best hour", slot)
		if i > 0 {
			assert.True(t, slot.After(prev), "slot %v not after %v", slot, prev)
		}
		prev = slot
	}
}

func TestQuotaPeekPostingSlotDoesNotAdvance(t *testing.T) {
	st := newTestStore(t)
	quota := newQuota(t, st)
	ctx := context.Background()

	saveAccount(t, st, nil)
	quota.now = func() time.Time {
		return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	}

	// Repeated peeks return the same slot.
	first, err := quota.PeekPostingSlot(ctx, nil)
	require.NoError(t, err)
	second, err := quota.PeekPostingSlot(ctx, nil)
	require.NoError(t, err)
	assert.True(t, second.Equal(first), "peek moved from %v to %v", first, second)

	// And peeking leaves no trace: the first slot actually handed out is
	// the one the peeks reported.
	recorded, err := quota.NextPostingSlot(ctx, nil)
	require.NoError(t, err)
	assert.True(t, recorded.Equal(first))
}

func TestQuotaNextPostingSlotHonorsLastPost(t *testing.T) {
	st := newTestStore(t)
	quota := newQuota(t, st)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 9, 10, 0, 0, time.UTC)
	lastPost := base.Add(-10 * time.Minute)
	saveAccount(t, st, func(a *models.Account) { a.LastPostAt = &lastPost })
	quota.now = func() time.Time { return base }

	// 9:10 is inside a best hour, but the 90m interval since the last post
	// pushes the slot to 10:30, which snaps to 12:00.
	slot, err := quota.NextPostingSlot(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), slot)
}

func TestQuotaNextPostingSlotRollsToNextDay(t *testing.T) {
	st := newTestStore(t)
	quota := newQuota(t, st)
	ctx := context.Background()

	saveAccount(t, st, nil)
	quota.now = func() time.Time {
		return time.Date(2026, 3, 2, 22, 30, 0, 0, time.UTC)
	}

	// Past the last best hour: roll to the first best hour tomorrow.
	slot, err := quota.NextPostingSlot(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), slot)
}
