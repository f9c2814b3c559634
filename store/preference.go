package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PreferenceLedger manages the deduplicated preference set. Dedup is by
// (user, category, lower-cased value), enforced by lookup-before-insert, so
// two racing inserts can still produce a duplicate; the next Find simply
// returns whichever row matches first and the blemish self-corrects on the
// next update or delete.
type PreferenceLedger struct {
	db *gorm.DB
}

// ListByUser returns every preference the user has, oldest first.
func (l *PreferenceLedger) ListByUser(ctx context.Context, userID uuid.UUID) ([]Preference, error) {
	var prefs []Preference
	if err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&prefs).Error; err != nil {
		return nil, err
	}
	return prefs, nil
}

// Find looks up the single preference matching (user, category, normalized
// value), or ErrNotFound.
func (l *PreferenceLedger) Find(ctx context.Context, userID uuid.UUID, category, value string) (*Preference, error) {
	var p Preference
	if err := l.db.WithContext(ctx).
		Where("user_id = ? AND category = ? AND value = ?", userID, category, normalize(value)).
		First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// Create inserts a new preference with the value normalized.
func (l *PreferenceLedger) Create(ctx context.Context, userID uuid.UUID, category, value string, notes *string) (*Preference, error) {
	p := Preference{
		UserID:   userID,
		Category: category,
		Value:    normalize(value),
		Notes:    notes,
	}
	if err := l.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// AttachNotes replaces the notes on an existing preference.
func (l *PreferenceLedger) AttachNotes(ctx context.Context, userID, id uuid.UUID, notes *string) error {
	res := l.db.WithContext(ctx).
		Model(&Preference{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"notes": notes, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a preference owned by the user.
func (l *PreferenceLedger) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res := l.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&Preference{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
