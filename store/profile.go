package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileLedger manages per-user goal and settings rows.
type ProfileLedger struct {
	db *gorm.DB
}

// Get returns the user's profile, or ErrNotFound when none exists yet.
func (l *ProfileLedger) Get(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var p Profile
	if err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// GoalPatch carries the optional goal fields for an upsert. A nil field is
// left untouched on an existing row.
type GoalPatch struct {
	CalorieGoal *int
	WeightGoal  *float64
	WaterGoal   *int
}

// UpsertGoals updates the user's goals in place, creating the profile row
// with defaults when it does not exist. The resulting row is returned.
func (l *ProfileLedger) UpsertGoals(ctx context.Context, userID uuid.UUID, patch GoalPatch) (*Profile, error) {
	existing, err := l.Get(ctx, userID)
	if err == nil {
		updates := map[string]any{"updated_at": time.Now()}
		if patch.CalorieGoal != nil {
			updates["calorie_goal"] = *patch.CalorieGoal
		}
		if patch.WeightGoal != nil {
			updates["weight_goal"] = *patch.WeightGoal
		}
		if patch.WaterGoal != nil {
			updates["water_goal"] = *patch.WaterGoal
		}
		if err := l.db.WithContext(ctx).
			Model(&Profile{}).
			Where("id = ?", existing.ID).
			Updates(updates).Error; err != nil {
			return nil, err
		}
		return l.Get(ctx, userID)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p := Profile{UserID: userID, CalorieGoal: 2200, Units: "imperial"}
	if patch.CalorieGoal != nil {
		p.CalorieGoal = *patch.CalorieGoal
	}
	p.WeightGoal = patch.WeightGoal
	p.WaterGoal = patch.WaterGoal
	if err := l.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// WeightUnit returns the display unit for weights under the profile's unit
// system. A nil profile falls back to imperial.
func (p *Profile) WeightUnit() string {
	if p != nil && p.Units == "metric" {
		return "kg"
	}
	return "lbs"
}

// WaterUnit returns the display unit for water under the profile's unit
// system. A nil profile falls back to imperial.
func (p *Profile) WaterUnit() string {
	if p != nil && p.Units == "metric" {
		return "ml"
	}
	return "oz"
}

// EffectiveWaterGoal returns the configured daily water goal, defaulting to
// 64 oz imperial / 2000 ml metric when unset.
func (p *Profile) EffectiveWaterGoal() int {
	if p != nil && p.WaterGoal != nil {
		return *p.WaterGoal
	}
	if p != nil && p.Units == "metric" {
		return 2000
	}
	return 64
}
