package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(sqlite.Open(":memory:"))
	require.NoError(t, err)
	return st
}

func TestProfileUpsertGoals(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := st.Profiles.Get(ctx, userID)
	assert.ErrorIs(t, err, ErrNotFound)

	goal := 1800
	p, err := st.Profiles.UpsertGoals(ctx, userID, GoalPatch{CalorieGoal: &goal})
	require.NoError(t, err)
	assert.Equal(t, 1800, p.CalorieGoal)
	assert.Equal(t, "imperial", p.Units)

	weight := 165.5
	p2, err := st.Profiles.UpsertGoals(ctx, userID, GoalPatch{WeightGoal: &weight})
	require.NoError(t, err)
	assert.Equal(t, p.ID, p2.ID, "upsert must not create a second profile row")
	assert.Equal(t, 1800, p2.CalorieGoal, "untouched fields survive a partial patch")
	require.NotNil(t, p2.WeightGoal)
	assert.Equal(t, 165.5, *p2.WeightGoal)
}

func TestProfileUnits(t *testing.T) {
	metric := &Profile{Units: "metric"}
	imperial := &Profile{Units: "imperial"}

	assert.Equal(t, "kg", metric.WeightUnit())
	assert.Equal(t, "lbs", imperial.WeightUnit())
	assert.Equal(t, "ml", metric.WaterUnit())
	assert.Equal(t, "oz", imperial.WaterUnit())
	assert.Equal(t, 2000, metric.EffectiveWaterGoal())
	assert.Equal(t, 64, imperial.EffectiveWaterGoal())

	custom := 80
	imperial.WaterGoal = &custom
	assert.Equal(t, 80, imperial.EffectiveWaterGoal())
}

func TestPreferenceNormalizationAndDedup(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	p, err := st.Preferences.Create(ctx, userID, "dislike", "  Cilantro ", nil)
	require.NoError(t, err)
	assert.Equal(t, "cilantro", p.Value)

	// Lookups see through case and whitespace differences.
	found, err := st.Preferences.Find(ctx, userID, "dislike", "CILANTRO")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)

	// Same value under another category is a distinct preference.
	_, err = st.Preferences.Find(ctx, userID, "allergy", "cilantro")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPreferenceOwnership(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()
	stranger := uuid.New()

	p, err := st.Preferences.Create(ctx, owner, "like", "salmon", nil)
	require.NoError(t, err)

	err = st.Preferences.Delete(ctx, stranger, p.ID)
	assert.ErrorIs(t, err, ErrNotFound, "foreign rows must look like they do not exist")

	notes := "wild caught only"
	err = st.Preferences.AttachNotes(ctx, stranger, p.ID, &notes)
	assert.ErrorIs(t, err, ErrNotFound)

	prefs, err := st.Preferences.ListByUser(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, prefs, 1, "failed foreign writes must not alter the row")
	assert.Nil(t, prefs[0].Notes)
}

func TestPantryFindByName(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := st.Pantry.Add(ctx, &PantryItem{UserID: userID, Name: "Chicken Breast"})
	require.NoError(t, err)

	item, err := st.Pantry.FindByName(ctx, userID, "chicken")
	require.NoError(t, err)
	assert.Equal(t, "Chicken Breast", item.Name)

	_, err = st.Pantry.FindByName(ctx, userID, "tofu")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.Pantry.FindByName(ctx, uuid.New(), "chicken")
	assert.ErrorIs(t, err, ErrNotFound, "name match is scoped to the owner")
}

func TestPantryUpdateAndDelete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	item, err := st.Pantry.Add(ctx, &PantryItem{UserID: userID, Name: "rice"})
	require.NoError(t, err)

	qty := 2.0
	updated, err := st.Pantry.Update(ctx, userID, item.ID, map[string]any{"quantity": qty})
	require.NoError(t, err)
	require.NotNil(t, updated.Quantity)
	assert.Equal(t, 2.0, *updated.Quantity)

	_, err = st.Pantry.Update(ctx, uuid.New(), item.ID, map[string]any{"quantity": 99.0})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Pantry.Delete(ctx, userID, item.ID))
	_, err = st.Pantry.GetByID(ctx, userID, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidCategories(t *testing.T) {
	assert.True(t, ValidPreferenceCategory("allergy"))
	assert.False(t, ValidPreferenceCategory("mood"))
	assert.True(t, ValidPantryCategory("vegetable"))
	assert.False(t, ValidPantryCategory("gadget"))
}
