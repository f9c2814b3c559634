package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WeightLedger keeps at most one weight entry per user per calendar date.
type WeightLedger struct {
	db *gorm.DB
}

// FindByDate returns the entry for the given date, or ErrNotFound.
func (l *WeightLedger) FindByDate(ctx context.Context, userID uuid.UUID, date string) (*WeightLog, error) {
	var log WeightLog
	if err := l.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		First(&log).Error; err != nil {
		return nil, notFound(err)
	}
	return &log, nil
}

// Create inserts a new weight entry.
func (l *WeightLedger) Create(ctx context.Context, log *WeightLog) (*WeightLog, error) {
	if err := l.db.WithContext(ctx).Create(log).Error; err != nil {
		return nil, err
	}
	return log, nil
}

// UpdateWeight replaces the weight value of an existing entry in place.
// Logging twice on the same day must not create a second row.
func (l *WeightLedger) UpdateWeight(ctx context.Context, id uuid.UUID, weight float64) (*WeightLog, error) {
	res := l.db.WithContext(ctx).
		Model(&WeightLog{}).
		Where("id = ?", id).
		Updates(map[string]any{"weight": weight, "logged_at": time.Now(), "updated_at": time.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	var log WeightLog
	if err := l.db.WithContext(ctx).Where("id = ?", id).First(&log).Error; err != nil {
		return nil, notFound(err)
	}
	return &log, nil
}

// LatestBefore returns the newest entry dated strictly before date, or
// ErrNotFound.
func (l *WeightLedger) LatestBefore(ctx context.Context, userID uuid.UUID, date string) (*WeightLog, error) {
	var log WeightLog
	if err := l.db.WithContext(ctx).
		Where("user_id = ? AND date < ?", userID, date).
		Order("date desc").
		First(&log).Error; err != nil {
		return nil, notFound(err)
	}
	return &log, nil
}

// Recent returns entries newest first, up to limit.
func (l *WeightLedger) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]WeightLog, error) {
	var logs []WeightLog
	if err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date desc").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// AllDesc returns the full history newest first, for progress scans.
func (l *WeightLedger) AllDesc(ctx context.Context, userID uuid.UUID) ([]WeightLog, error) {
	var logs []WeightLog
	if err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date desc").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// ByDateRange returns entries with date in [start, end], newest first.
func (l *WeightLedger) ByDateRange(ctx context.Context, userID uuid.UUID, start, end string) ([]WeightLog, error) {
	var logs []WeightLog
	if err := l.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, start, end).
		Order("date desc").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
