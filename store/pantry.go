package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PantryLedger manages named, categorized, quantified inventory items.
// Duplicate names are allowed; name-based lookups are best-effort substring
// matches returning the first hit.
type PantryLedger struct {
	db *gorm.DB
}

// ListByUser returns the user's pantry, newest first.
func (l *PantryLedger) ListByUser(ctx context.Context, userID uuid.UUID) ([]PantryItem, error) {
	var items []PantryItem
	if err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Add inserts a pantry item unconditionally; duplicates are the caller's
// concern.
func (l *PantryLedger) Add(ctx context.Context, item *PantryItem) (*PantryItem, error) {
	if err := l.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// AddBatch inserts several items in one statement. Used by the shopping
// "bought" promotion.
func (l *PantryLedger) AddBatch(ctx context.Context, items []PantryItem) ([]PantryItem, error) {
	if len(items) == 0 {
		return []PantryItem{}, nil
	}
	if err := l.db.WithContext(ctx).Create(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GetByID returns the item if it exists and belongs to the user.
func (l *PantryLedger) GetByID(ctx context.Context, userID, id uuid.UUID) (*PantryItem, error) {
	var item PantryItem
	if err := l.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&item).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// FindByName returns the first of the user's items whose name contains the
// given fragment (case-insensitive), or ErrNotFound. When several names share
// the fragment the winner is unspecified.
func (l *PantryLedger) FindByName(ctx context.Context, userID uuid.UUID, name string) (*PantryItem, error) {
	var item PantryItem
	if err := l.db.WithContext(ctx).
		Where("user_id = ? AND lower(name) LIKE ?", userID, "%"+normalize(name)+"%").
		First(&item).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// Update patches the given fields on an item owned by the user and returns
// the updated row.
func (l *PantryLedger) Update(ctx context.Context, userID, id uuid.UUID, updates map[string]any) (*PantryItem, error) {
	updates["updated_at"] = time.Now()
	res := l.db.WithContext(ctx).
		Model(&PantryItem{}).
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

// Delete removes the item if it belongs to the user.
func (l *PantryLedger) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res := l.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&PantryItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
