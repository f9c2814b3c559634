package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MealLedger manages the append/update/query log of meals.
type MealLedger struct {
	db *gorm.DB
}

func (l *MealLedger) userScope(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return l.db.WithContext(ctx).Where("user_id = ?", userID)
}

// Recent returns the user's meals most recently eaten first.
func (l *MealLedger) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]MealLog, error) {
	var meals []MealLog
	if err := l.userScope(ctx, userID).
		Order("meal_time desc").
		Limit(limit).
		Find(&meals).Error; err != nil {
		return nil, err
	}
	return meals, nil
}

// ByDate returns all meals logged for one calendar date.
func (l *MealLedger) ByDate(ctx context.Context, userID uuid.UUID, date string) ([]MealLog, error) {
	var meals []MealLog
	if err := l.userScope(ctx, userID).
		Where("meal_date = ?", date).
		Order("meal_time desc").
		Find(&meals).Error; err != nil {
		return nil, err
	}
	return meals, nil
}

// Search returns meals whose name contains the term (case-insensitive).
func (l *MealLedger) Search(ctx context.Context, userID uuid.UUID, term string, limit int) ([]MealLog, error) {
	var meals []MealLog
	if err := l.userScope(ctx, userID).
		Where("lower(name) LIKE ?", "%"+normalize(term)+"%").
		Order("meal_time desc").
		Limit(limit).
		Find(&meals).Error; err != nil {
		return nil, err
	}
	return meals, nil
}

// ByDateRange returns meals with meal_date in [start, end].
func (l *MealLedger) ByDateRange(ctx context.Context, userID uuid.UUID, start, end string, limit int) ([]MealLog, error) {
	var meals []MealLog
	if err := l.userScope(ctx, userID).
		Where("meal_date >= ? AND meal_date <= ?", start, end).
		Order("meal_time desc").
		Limit(limit).
		Find(&meals).Error; err != nil {
		return nil, err
	}
	return meals, nil
}

// GetByID returns the meal if it exists and belongs to the user.
func (l *MealLedger) GetByID(ctx context.Context, userID, id uuid.UUID) (*MealLog, error) {
	var meal MealLog
	if err := l.userScope(ctx, userID).
		Where("id = ?", id).
		First(&meal).Error; err != nil {
		return nil, notFound(err)
	}
	return &meal, nil
}

// Create inserts a new meal entry.
func (l *MealLedger) Create(ctx context.Context, meal *MealLog) (*MealLog, error) {
	if err := l.db.WithContext(ctx).Create(meal).Error; err != nil {
		return nil, err
	}
	return meal, nil
}

// Update patches the given fields on a meal owned by the user and returns
// the updated row.
func (l *MealLedger) Update(ctx context.Context, userID, id uuid.UUID, updates map[string]any) (*MealLog, error) {
	updates["updated_at"] = time.Now()
	res := l.db.WithContext(ctx).
		Model(&MealLog{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return l.GetByID(ctx, userID, id)
}

// Delete removes a meal owned by the user and returns the deleted row so
// callers can confirm and clean up any associated stored image. The ledger
// itself never touches image storage.
func (l *MealLedger) Delete(ctx context.Context, userID, id uuid.UUID) (*MealLog, error) {
	meal, err := l.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := l.db.WithContext(ctx).Where("id = ?", id).Delete(&MealLog{}).Error; err != nil {
		return nil, err
	}
	return meal, nil
}

// Totals is the arithmetic sum of nutrition fields across a result set.
// Absent macro fields count as zero; servings never weight the sum.
type Totals struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
}

// SumTotals aggregates the given meals.
func SumTotals(meals []MealLog) Totals {
	var t Totals
	for _, m := range meals {
		t.Calories += m.Calories
		if m.Protein != nil {
			t.Protein += *m.Protein
		}
		if m.Carbs != nil {
			t.Carbs += *m.Carbs
		}
		if m.Fat != nil {
			t.Fat += *m.Fat
		}
	}
	return t
}
