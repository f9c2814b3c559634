package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"nutriagent/store"
)

// Bounds for client-supplied snapshot values. A snapshot outside these is
// rejected wholesale before any model or tool invocation.
const (
	maxSnapshotCalories = 100000
	maxSnapshotWeight   = 2000
)

// Snapshot is the client-supplied slice of the assistant context: goals and
// today's consumption totals, which the UI computes from its own reads and
// the server does not recompute. Preference and pantry data are never taken
// from the client; ContextBuilder always fetches those itself.
type Snapshot struct {
	CalorieGoal      int      `json:"calorie_goal"`
	CaloriesConsumed int      `json:"calories_consumed"`
	ProteinConsumed  int      `json:"protein_consumed"`
	CarbsConsumed    int      `json:"carbs_consumed"`
	FatConsumed      int      `json:"fat_consumed"`
	WaterGoal        int      `json:"water_goal"`
	WaterConsumed    int      `json:"water_consumed"`
	CurrentWeight    *float64 `json:"current_weight"`
	WeightGoal       *float64 `json:"weight_goal"`
	Units            string   `json:"units"`
	Sex              *string  `json:"sex"`
	ActivityLevel    string   `json:"activity_level"`
	Timezone         string   `json:"timezone"`
}

// Validate checks every bounded field and fails on the first violation.
// Partial acceptance is not permitted; a bad snapshot aborts the whole turn.
func (s Snapshot) Validate() error {
	calorieFields := []struct {
		name  string
		value int
	}{
		{"calorie_goal", s.CalorieGoal},
		{"calories_consumed", s.CaloriesConsumed},
		{"protein_consumed", s.ProteinConsumed},
		{"carbs_consumed", s.CarbsConsumed},
		{"fat_consumed", s.FatConsumed},
		{"water_goal", s.WaterGoal},
		{"water_consumed", s.WaterConsumed},
	}
	for _, f := range calorieFields {
		if f.value < 0 || f.value > maxSnapshotCalories {
			return fmt.Errorf("snapshot field %s out of range: %d", f.name, f.value)
		}
	}

	weightFields := []struct {
		name  string
		value *float64
	}{
		{"current_weight", s.CurrentWeight},
		{"weight_goal", s.WeightGoal},
	}
	for _, f := range weightFields {
		if f.value != nil && (*f.value < 0 || *f.value > maxSnapshotWeight) {
			return fmt.Errorf("snapshot field %s out of range: %g", f.name, *f.value)
		}
	}

	switch s.Units {
	case "", "imperial", "metric":
	default:
		return fmt.Errorf("snapshot field units must be imperial or metric, got %q", s.Units)
	}

	return nil
}

// WeightUnit returns the display unit for weight values.
func (s Snapshot) WeightUnit() string {
	if s.Units == "metric" {
		return "kg"
	}
	return "lbs"
}

// WaterUnit returns the display unit for water values.
func (s Snapshot) WaterUnit() string {
	if s.Units == "metric" {
		return "ml"
	}
	return "oz"
}

// AssistantContext is the complete per-turn briefing input: the validated
// client snapshot merged with server-fetched preferences and pantry. Built
// fresh per turn, never cached.
type AssistantContext struct {
	Snapshot
	Preferences []store.Preference
	Pantry      []store.PantryItem
}

// ContextBuilder assembles an AssistantContext for a user. Reads only.
type ContextBuilder struct {
	preferences *store.PreferenceLedger
	pantry      *store.PantryLedger
}

func NewContextBuilder(st *store.Store) *ContextBuilder {
	return &ContextBuilder{
		preferences: st.Preferences,
		pantry:      st.Pantry,
	}
}

// Build validates the snapshot, then merges in the user's persisted
// preferences and pantry. A validation failure returns before any fetch.
func (b *ContextBuilder) Build(ctx context.Context, userID uuid.UUID, snap Snapshot) (*AssistantContext, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	prefs, err := b.preferences.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	pantry, err := b.pantry.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pantry: %w", err)
	}

	return &AssistantContext{
		Snapshot:    snap,
		Preferences: prefs,
		Pantry:      pantry,
	}, nil
}
