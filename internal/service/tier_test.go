package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTier(t *testing.T) {
	tiers := model.DefaultTiers()

	prev := 0
	for count := 0; count <= 200; count++ {
		tier := ComputeTier(tiers, count)
		assert.GreaterOrEqual(t, tier, prev, "count %d", count)
		prev = tier
	}

	assert.Equal(t, 0, ComputeTier(tiers, 0))
	assert.Equal(t, 0, ComputeTier(tiers, 4))
	assert.Equal(t, 1, ComputeTier(tiers, 5))
	assert.Equal(t, 1, ComputeTier(tiers, 49))
	assert.Equal(t, 2, ComputeTier(tiers, 50))
	assert.Equal(t, 2, ComputeTier(tiers, 1000))
}

func seedCompletions(t *testing.T, h *harness, prefix string, n int, completionType string) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := h.repos.Completions.Create(context.Background(), &model.CompletionRecord{
			Fingerprint:    testFingerprint,
			IPAddress:      testIP,
			SessionToken:   fmt.Sprintf("%s-%d", prefix, i),
			CompletionType: completionType,
		})
		require.NoError(t, err)
	}
}

func TestApplyCompletionIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedCompletions(t, h, "a", 5, model.CompletionTypeTierProgress)

	first, err := h.tiers.ApplyCompletion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Tier)
	assert.Equal(t, 5, first.CompletionCount)
	require.NotNil(t, first.TierExpiresAt)

	h.clock.Advance(time.Hour)
	second, err := h.tiers.ApplyCompletion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Tier)
	assert.Equal(t, 5, second.CompletionCount)
	assert.True(t, first.TierExpiresAt.Equal(*second.TierExpiresAt), "expiry unchanged when tier is unchanged")
}

func TestApplyCompletionIgnoresExtraCompletions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedCompletions(t, h, "a", 4, model.CompletionTypeTierProgress)
	seedCompletions(t, h, "x", 3, model.CompletionTypeExtra)

	record, err := h.tiers.ApplyCompletion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, record.Tier)
	assert.Equal(t, 4, record.CompletionCount)
	assert.Nil(t, record.TierExpiresAt)
}

func TestApplyCompletionUpgradesToTierTwo(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedCompletions(t, h, "a", 5, model.CompletionTypeTierProgress)
	tier1, err := h.tiers.ApplyCompletion(ctx)
	require.NoError(t, err)

	seedCompletions(t, h, "b", 45, model.CompletionTypeTierProgress)

	tier2, err := h.tiers.ApplyCompletion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, tier2.Tier)
	assert.Equal(t, 50, tier2.CompletionCount)
	assert.True(t, tier2.TierExpiresAt.After(*tier1.TierExpiresAt))

	expected := h.clock.Now().Add(365 * 24 * time.Hour)
	assert.WithinDuration(t, expected, *tier2.TierExpiresAt, time.Second)
}

func TestExpiredTierResetsOnRead(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	past := h.clock.Now().Add(-time.Minute)
	h.seedTier(t, 1, 7, &past)

	snap, err := h.quota.CheckUploadLimit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Tier)
	assert.Equal(t, 30, snap.Max)
	assert.Equal(t, 7, snap.CompletionCount)

	record, err := h.repos.Tiers.ByFingerprint(ctx, testFingerprint)
	require.NoError(t, err)
	assert.Equal(t, 0, record.Tier)
	assert.Nil(t, record.TierExpiresAt)
	assert.Equal(t, 7, record.CompletionCount)
}

func TestCachedTierDroppedOnceExpired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	soon := h.clock.Now().Add(30 * time.Minute)
	h.seedTier(t, 1, 5, &soon)

	snap, err := h.quota.CheckUploadLimit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Tier)
	assert.Equal(t, 50, snap.Max)

	// Still inside the cache TTL, but past the tier's expiry.
	h.clock.Advance(31 * time.Minute)
	snap, err = h.quota.CheckUploadLimit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Tier)
	assert.Equal(t, 30, snap.Max)
}

func TestUserTierProgress(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedTier(t, 0, 2, nil)

	status, err := h.tiers.UserTier(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Tier)
	assert.Equal(t, "Free", status.Name)
	require.NotNil(t, status.NextTier)
	assert.Equal(t, 1, *status.NextTier)
	assert.Equal(t, 5, status.Required)
	assert.Equal(t, 40, status.Progress)

	top := h.tiers.status(model.TierSnapshot{Tier: 2, CompletionCount: 60})
	assert.Nil(t, top.NextTier)
	assert.Equal(t, 100, top.Progress)

	mid := h.tiers.status(model.TierSnapshot{Tier: 1, CompletionCount: 20})
	assert.Equal(t, 2, *mid.NextTier)
	assert.Equal(t, 40, mid.Progress)
}
