package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WaterLedger accumulates one running total per user per calendar date.
type WaterLedger struct {
	db *gorm.DB
}

// FindByDate returns the day's entry, or ErrNotFound.
func (l *WaterLedger) FindByDate(ctx context.Context, userID uuid.UUID, date string) (*WaterLog, error) {
	var log WaterLog
	if err := l.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		First(&log).Error; err != nil {
		return nil, notFound(err)
	}
	return &log, nil
}

// Add records an intake amount for the date. If an entry already exists
// the amount accumulates onto it; otherwise a new entry starts the day.
// Returns the day's entry after the addition.
func (l *WaterLedger) Add(ctx context.Context, userID uuid.UUID, date string, amount int) (*WaterLog, error) {
	existing, err := l.FindByDate(ctx, userID, date)
	if err == nil {
		res := l.db.WithContext(ctx).
			Model(&WaterLog{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"amount":     gorm.Expr("amount + ?", amount),
				"logged_at":  time.Now(),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return nil, res.Error
		}
		return l.FindByDate(ctx, userID, date)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	log := &WaterLog{
		UserID:   userID,
		Amount:   amount,
		Date:     date,
		LoggedAt: time.Now(),
	}
	if err := l.db.WithContext(ctx).Create(log).Error; err != nil {
		return nil, err
	}
	return log, nil
}
