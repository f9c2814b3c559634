package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightOneEntryPerDay(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := st.Weights.Create(ctx, &WeightLog{
		UserID:   userID,
		Weight:   180.5,
		Date:     "2026-03-10",
		LoggedAt: time.Now(),
	})
	require.NoError(t, err)

	// A same-day re-log replaces the value instead of adding a row.
	existing, err := st.Weights.FindByDate(ctx, userID, "2026-03-10")
	require.NoError(t, err)
	updated, err := st.Weights.UpdateWeight(ctx, existing.ID, 179.0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)
	assert.Equal(t, 179.0, updated.Weight)

	all, err := st.Weights.AllDesc(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWeightHistoryOrderAndRange(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	for _, e := range []struct {
		date   string
		weight float64
	}{
		{"2026-03-01", 182.0},
		{"2026-03-08", 180.5},
		{"2026-03-15", 179.0},
	} {
		_, err := st.Weights.Create(ctx, &WeightLog{
			UserID: userID, Weight: e.weight, Date: e.date, LoggedAt: time.Now(),
		})
		require.NoError(t, err)
	}

	recent, err := st.Weights.Recent(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "2026-03-15", recent[0].Date, "newest first")

	ranged, err := st.Weights.ByDateRange(ctx, userID, "2026-03-01", "2026-03-08")
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	foreign, err := st.Weights.AllDesc(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, foreign)

	prev, err := st.Weights.LatestBefore(ctx, userID, "2026-03-15")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-08", prev.Date, "strictly before, newest first")

	_, err = st.Weights.LatestBefore(ctx, userID, "2026-03-01")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWaterAccumulatesPerDay(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := st.Water.Add(ctx, userID, "2026-03-10", 16)
	require.NoError(t, err)
	assert.Equal(t, 16, first.Amount)

	second, err := st.Water.Add(ctx, userID, "2026-03-10", 8)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same day accumulates onto one row")
	assert.Equal(t, 24, second.Amount)

	nextDay, err := st.Water.Add(ctx, userID, "2026-03-11", 12)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, nextDay.ID)
	assert.Equal(t, 12, nextDay.Amount, "a new day starts from zero")

	// Another user's same-date total is independent.
	other, err := st.Water.Add(ctx, uuid.New(), "2026-03-10", 32)
	require.NoError(t, err)
	assert.Equal(t, 32, other.Amount)

	day, err := st.Water.FindByDate(ctx, userID, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 24, day.Amount)
}
