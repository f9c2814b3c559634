package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutriagent/store"
)

func TestLogWeight_IdempotentPerDay(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewLogWeight(st.Weights, st.Profiles)
	ctx := context.Background()
	ec := testContext()

	result, err := tool.Run(ctx, ec, map[string]any{"weight": 180.5, "date": "2026-03-10"})
	require.NoError(t, err)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, true, result["created"])
	assert.Equal(t, "lbs", result["weight_unit"])

	// Second log on the same date updates in place.
	result, err = tool.Run(ctx, ec, map[string]any{"weight": 179.0, "date": "2026-03-10"})
	require.NoError(t, err)
	assert.Equal(t, true, result["updated"])
	assert.Equal(t, 179.0, result["weight"])

	entries, err := st.Weights.AllDesc(ctx, ec.UserID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 179.0, entries[0].Weight)
}

func TestLogWeight_ReportsChangeFromPrevious(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewLogWeight(st.Weights, st.Profiles)
	ctx := context.Background()
	ec := testContext()

	_, err := tool.Run(ctx, ec, map[string]any{"weight": 182.0, "date": "2026-03-01"})
	require.NoError(t, err)

	result, err := tool.Run(ctx, ec, map[string]any{"weight": 180.5, "date": "2026-03-08"})
	require.NoError(t, err)
	assert.Equal(t, 182.0, result["previous_weight"])
	assert.Equal(t, -1.5, result["change"])
}

func TestLogWeight_BackdatedEntryComparesAgainstEarlierEntry(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewLogWeight(st.Weights, st.Profiles)
	ctx := context.Background()
	ec := testContext()

	_, err := tool.Run(ctx, ec, map[string]any{"weight": 184.0, "date": "2026-02-20"})
	require.NoError(t, err)
	_, err = tool.Run(ctx, ec, map[string]any{"weight": 182.0, "date": "2026-03-08"})
	require.NoError(t, err)

	// A backdated log sits between the two existing entries; its delta is
	// against the entry before it, never the newer one or itself.
	result, err := tool.Run(ctx, ec, map[string]any{"weight": 180.0, "date": "2026-03-01"})
	require.NoError(t, err)
	assert.Equal(t, true, result["created"])
	assert.Equal(t, 184.0, result["previous_weight"])
	assert.Equal(t, -4.0, result["change"])

	// A backdated log with nothing before it reports no delta at all.
	result, err = tool.Run(ctx, ec, map[string]any{"weight": 186.0, "date": "2026-02-01"})
	require.NoError(t, err)
	assert.NotContains(t, result, "previous_weight")
	assert.NotContains(t, result, "change")
}

func TestLogWeight_Bounds(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewLogWeight(st.Weights, st.Profiles)
	ctx := context.Background()
	ec := testContext()

	for _, weight := range []float64{0, -10, 1501} {
		result, err := tool.Run(ctx, ec, map[string]any{"weight": weight})
		require.NoError(t, err)
		assert.Equal(t, false, result["success"])
	}

	entries, err := st.Weights.AllDesc(ctx, ec.UserID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogWater_Accumulates(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewLogWater(st.Water, st.Profiles)
	ctx := context.Background()
	ec := testContext()

	var result map[string]any
	var err error
	for _, amount := range []float64{16, 8, 12} {
		result, err = tool.Run(ctx, ec, map[string]any{"amount": amount, "date": "2026-03-10"})
		require.NoError(t, err)
		assert.Equal(t, true, result["success"])
	}

	assert.Equal(t, 12, result["logged"])
	assert.Equal(t, 36, result["total"])
	assert.Equal(t, "oz", result["water_unit"])
	assert.Equal(t, 64, result["water_goal"])
	assert.Equal(t, 28, result["remaining"])
	assert.Equal(t, 56, result["percent_complete"])
	assert.Equal(t, false, result["goal_reached"])

	day, err := st.Water.FindByDate(ctx, ec.UserID, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 36, day.Amount)
}

func TestLogWater_GoalReached(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewLogWater(st.Water, st.Profiles)
	ctx := context.Background()
	ec := testContext()

	result, err := tool.Run(ctx, ec, map[string]any{"amount": 70.0, "date": "2026-03-10"})
	require.NoError(t, err)
	assert.Equal(t, true, result["goal_reached"])
	assert.Equal(t, 0, result["remaining"])
}

func TestLogWater_CustomGoal(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewLogWater(st.Water, st.Profiles)
	ctx := context.Background()
	ec := testContext()

	goal := 1500
	_, err := st.Profiles.UpsertGoals(ctx, ec.UserID, store.GoalPatch{WaterGoal: &goal})
	require.NoError(t, err)

	result, err := tool.Run(ctx, ec, map[string]any{"amount": 500.0, "date": "2026-03-10"})
	require.NoError(t, err)
	assert.Equal(t, 1500, result["water_goal"])
	assert.Equal(t, 1000, result["remaining"])
}

func TestUpdateGoals(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewUpdateGoals(st.Profiles)
	ctx := context.Background()
	ec := testContext()

	result, err := tool.Run(ctx, ec, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, false, result["success"], "at least one goal is required")

	result, err = tool.Run(ctx, ec, map[string]any{"calorie_goal": 900.0})
	require.NoError(t, err)
	assert.Equal(t, false, result["success"])

	result, err = tool.Run(ctx, ec, map[string]any{"calorie_goal": 1800.0, "weight_goal": 165.0})
	require.NoError(t, err)
	assert.Equal(t, true, result["success"])
	updated := result["updated"].(map[string]any)
	assert.Equal(t, 1800, updated["calorie_goal"])
	assert.Equal(t, 165.0, updated["weight_goal"])

	profile, err := st.Profiles.Get(ctx, ec.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1800, profile.CalorieGoal)
}

func TestQueryWeightHistory_Progress(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewQueryWeightHistory(st.Weights, st.Profiles)
	ctx := context.Background()
	ec := testContext()

	t.Run("no entries", func(t *testing.T) {
		result, err := tool.Run(ctx, ec, map[string]any{"query": "progress"})
		require.NoError(t, err)
		assert.Equal(t, true, result["success"])
		assert.Equal(t, "No weight entries recorded yet", result["message"])
	})

	goal := 170.0
	_, err := st.Profiles.UpsertGoals(ctx, ec.UserID, store.GoalPatch{WeightGoal: &goal})
	require.NoError(t, err)

	now := time.Now()
	for _, e := range []struct {
		daysAgo int
		weight  float64
	}{
		{60, 190.0},
		{31, 186.0},
		{8, 182.0},
		{0, 180.0},
	} {
		_, err := st.Weights.Create(ctx, &store.WeightLog{
			UserID:   ec.UserID,
			Weight:   e.weight,
			Date:     now.AddDate(0, 0, -e.daysAgo).Format("2006-01-02"),
			LoggedAt: now,
		})
		require.NoError(t, err)
	}

	result, err := tool.Run(ctx, ec, map[string]any{"query": "progress"})
	require.NoError(t, err)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, 180.0, result["current_weight"])
	assert.Equal(t, 190.0, result["starting_weight"])
	assert.Equal(t, -10.0, result["total_change"])
	assert.Equal(t, 10.0, result["remaining_to_goal"])
	assert.Equal(t, -2.0, result["weekly_change"])
	assert.Equal(t, -6.0, result["monthly_change"])
	assert.Equal(t, 4, result["total_entries"])
}

func TestQueryWeightHistory_RecentAndRange(t *testing.T) {
	_, st := newTestRegistry(t)
	tool := NewQueryWeightHistory(st.Weights, st.Profiles)
	ctx := context.Background()
	ec := testContext()

	for _, e := range []struct {
		date   string
		weight float64
	}{
		{"2026-03-01", 182.0},
		{"2026-03-08", 180.5},
		{"2026-03-15", 179.0},
	} {
		_, err := st.Weights.Create(ctx, &store.WeightLog{
			UserID: ec.UserID, Weight: e.weight, Date: e.date, LoggedAt: time.Now(),
		})
		require.NoError(t, err)
	}

	result, err := tool.Run(ctx, ec, map[string]any{"query": "recent", "limit": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 2, result["count"])

	result, err = tool.Run(ctx, ec, map[string]any{"query": "date_range"})
	require.NoError(t, err)
	assert.Equal(t, false, result["success"], "date_range needs both dates")

	result, err = tool.Run(ctx, ec, map[string]any{
		"query": "date_range", "start_date": "2026-03-01", "end_date": "2026-03-08",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result["count"])
}
