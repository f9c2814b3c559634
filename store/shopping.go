package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShoppingLedger manages lists and their items. Items carry only a list id,
// so every item operation joins back to the owning list to verify the caller
// owns it before exposing or mutating anything.
type ShoppingLedger struct {
	db *gorm.DB
}

// ListsByUser returns the user's lists, most recently touched first.
func (l *ShoppingLedger) ListsByUser(ctx context.Context, userID uuid.UUID) ([]ShoppingList, error) {
	var lists []ShoppingList
	if err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Find(&lists).Error; err != nil {
		return nil, err
	}
	return lists, nil
}

// GetList returns the list if it belongs to the user.
func (l *ShoppingLedger) GetList(ctx context.Context, userID, listID uuid.UUID) (*ShoppingList, error) {
	var list ShoppingList
	if err := l.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", listID, userID).
		First(&list).Error; err != nil {
		return nil, notFound(err)
	}
	return &list, nil
}

// FindListByName returns the user's list with the exact given name, or
// ErrNotFound.
func (l *ShoppingLedger) FindListByName(ctx context.Context, userID uuid.UUID, name string) (*ShoppingList, error) {
	var list ShoppingList
	if err := l.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		First(&list).Error; err != nil {
		return nil, notFound(err)
	}
	return &list, nil
}

// CreateList inserts a new named list for the user.
func (l *ShoppingLedger) CreateList(ctx context.Context, userID uuid.UUID, name string) (*ShoppingList, error) {
	list := ShoppingList{UserID: userID, Name: name}
	if err := l.db.WithContext(ctx).Create(&list).Error; err != nil {
		return nil, err
	}
	return &list, nil
}

// RenameList renames a list owned by the user and returns the updated row.
func (l *ShoppingLedger) RenameList(ctx context.Context, userID, listID uuid.UUID, name string) (*ShoppingList, error) {
	res := l.db.WithContext(ctx).
		Model(&ShoppingList{}).
		Where("id = ? AND user_id = ?", listID, userID).
		Updates(map[string]any{"name": name, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return l.GetList(ctx, userID, listID)
}

// DeleteList removes a list owned by the user along with its items.
func (l *ShoppingLedger) DeleteList(ctx context.Context, userID, listID uuid.UUID) (*ShoppingList, error) {
	list, err := l.GetList(ctx, userID, listID)
	if err != nil {
		return nil, err
	}
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("list_id = ?", listID).Delete(&ShoppingListItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", listID).Delete(&ShoppingList{}).Error
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ItemsByList returns a list's items ordered unchecked-first, newest-first.
// The caller is responsible for having resolved the list through this ledger
// so ownership is already checked.
func (l *ShoppingLedger) ItemsByList(ctx context.Context, listID uuid.UUID) ([]ShoppingListItem, error) {
	var items []ShoppingListItem
	if err := l.db.WithContext(ctx).
		Where("list_id = ?", listID).
		Order("checked asc").
		Order("created_at desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AddItems appends items to a list owned by the user and touches the list's
// updated_at so recently-active ordering stays fresh.
func (l *ShoppingLedger) AddItems(ctx context.Context, userID, listID uuid.UUID, items []ShoppingListItem) ([]ShoppingListItem, error) {
	if _, err := l.GetList(ctx, userID, listID); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].ListID = listID
	}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		return tx.Model(&ShoppingList{}).
			Where("id = ?", listID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetItem returns an item by id with the ownership join applied.
func (l *ShoppingLedger) GetItem(ctx context.Context, userID, itemID uuid.UUID) (*ShoppingListItem, error) {
	var item ShoppingListItem
	if err := l.db.WithContext(ctx).
		Joins("JOIN shopping_lists ON shopping_lists.id = shopping_list_items.list_id").
		Where("shopping_list_items.id = ? AND shopping_lists.user_id = ?", itemID, userID).
		First(&item).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// FindItemsByName returns the user's items whose names contain the fragment
// (case-insensitive), optionally restricted to one list by exact name.
func (l *ShoppingLedger) FindItemsByName(ctx context.Context, userID uuid.UUID, fragment, listName string) ([]ShoppingListItem, error) {
	q := l.db.WithContext(ctx).
		Joins("JOIN shopping_lists ON shopping_lists.id = shopping_list_items.list_id").
		Where("shopping_lists.user_id = ?", userID).
		Where("lower(shopping_list_items.name) LIKE ?", "%"+normalize(fragment)+"%")
	if listName != "" {
		q = q.Where("shopping_lists.name = ?", listName)
	}
	var items []ShoppingListItem
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteItem removes an item after the ownership join and touches its list.
func (l *ShoppingLedger) DeleteItem(ctx context.Context, userID, itemID uuid.UUID) error {
	item, err := l.GetItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", itemID).Delete(&ShoppingListItem{}).Error; err != nil {
			return err
		}
		return tx.Model(&ShoppingList{}).
			Where("id = ?", item.ListID).
			Update("updated_at", time.Now()).Error
	})
}

// CheckItems marks the given items, already verified to belong to the user,
// as checked.
func (l *ShoppingLedger) CheckItems(ctx context.Context, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return l.db.WithContext(ctx).
		Model(&ShoppingListItem{}).
		Where("id IN ?", itemIDs).
		Updates(map[string]any{"checked": true, "updated_at": time.Now()}).Error
}

// ItemsOwnedBy returns every shopping item across all of the user's lists.
func (l *ShoppingLedger) ItemsOwnedBy(ctx context.Context, userID uuid.UUID) ([]ShoppingListItem, error) {
	var items []ShoppingListItem
	if err := l.db.WithContext(ctx).
		Joins("JOIN shopping_lists ON shopping_lists.id = shopping_list_items.list_id").
		Where("shopping_lists.user_id = ?", userID).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
