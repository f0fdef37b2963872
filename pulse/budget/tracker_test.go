package budget

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pptest "github.com/teranos/promptpulse/internal/testing"
)

func TestTracker_CheckAndRecord(t *testing.T) {
	db := pptest.CreateMigratedDB(t)
	tracker := NewTracker(db, Limits{DailyUSD: 1.0, MonthlyUSD: 10.0}, zap.NewNop().Sugar())
	ctx := context.Background()

	// Fresh tracker allows a cheap run.
	require.NoError(t, tracker.Check(ctx, 0.50))

	require.NoError(t, tracker.RecordSpend(ctx, 0.80))

	// 0.80 spent + 0.50 estimated > 1.00 daily limit.
	err := tracker.Check(ctx, 0.50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily")

	// A smaller run still fits.
	require.NoError(t, tracker.Check(ctx, 0.10))
}

func TestTracker_UpdateLimits(t *testing.T) {
	db := pptest.CreateMigratedDB(t)
	tracker := NewTracker(db, Limits{DailyUSD: 0, MonthlyUSD: 0}, zap.NewNop().Sugar())
	ctx := context.Background()

	// Zero budget blocks; a config reload raising the ceiling unblocks.
	require.Error(t, tracker.Check(ctx, 0.10))

	tracker.UpdateLimits(Limits{DailyUSD: 1.0, MonthlyUSD: 10.0})
	require.NoError(t, tracker.Check(ctx, 0.10))

	// And lowering it gates again, against spend already recorded.
	require.NoError(t, tracker.RecordSpend(ctx, 0.50))
	tracker.UpdateLimits(Limits{DailyUSD: 0.40, MonthlyUSD: 10.0})
	err := tracker.Check(ctx, 0.01)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily")
}

func TestTracker_ZeroBudgetBlocksEverything(t *testing.T) {
	db := pptest.CreateMigratedDB(t)
	tracker := NewTracker(db, Limits{DailyUSD: 0, MonthlyUSD: 0}, zap.NewNop().Sugar())

	err := tracker.Check(context.Background(), 0.0001)
	require.Error(t, err)
}

func TestTracker_RecordAccumulates(t *testing.T) {
	db := pptest.CreateMigratedDB(t)
	tracker := NewTracker(db, Limits{DailyUSD: 5.0, MonthlyUSD: 50.0}, zap.NewNop().Sugar())
	ctx := context.Background()

	require.NoError(t, tracker.RecordSpend(ctx, 0.25))
	require.NoError(t, tracker.RecordSpend(ctx, 0.35))
	require.NoError(t, tracker.RecordSpend(ctx, 0)) // no-op

	status, err := tracker.Status(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.60, status.SpendToday, 1e-9)
	assert.InDelta(t, 0.60, status.SpendThisMonth, 1e-9)
	assert.InDelta(t, 4.40, status.DailyRemaining, 1e-9)
	assert.InDelta(t, 49.40, status.MonthlyRemaining, 1e-9)
}

func TestTracker_StatusEmptyDatabase(t *testing.T) {
	db := pptest.CreateMigratedDB(t)
	tracker := NewTracker(db, Limits{DailyUSD: 3.0, MonthlyUSD: 30.0}, zap.NewNop().Sugar())

	status, err := tracker.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, status.SpendToday)
	assert.Equal(t, 3.0, status.DailyRemaining)
}
