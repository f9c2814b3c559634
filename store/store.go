package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound is returned by ledger lookups when no row matches the filter.
// Ownership failures surface as ErrNotFound too, so callers cannot tell
// "belongs to someone else" apart from "does not exist".
var ErrNotFound = errors.New("not found")

// Store bundles the per-entity ledgers over one database handle.
type Store struct {
	db *gorm.DB

	Profiles    *ProfileLedger
	Preferences *PreferenceLedger
	Pantry      *PantryLedger
	Shopping    *ShoppingLedger
	Meals       *MealLedger
	Weights     *WeightLedger
	Water       *WaterLedger
}

// Open connects using the given dialector, migrates the schema, and wires the
// ledgers.
func Open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(
		&Profile{},
		&Preference{},
		&PantryItem{},
		&ShoppingList{},
		&ShoppingListItem{},
		&MealLog{},
		&WeightLog{},
		&WaterLog{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{
		db:          db,
		Profiles:    &ProfileLedger{db: db},
		Preferences: &PreferenceLedger{db: db},
		Pantry:      &PantryLedger{db: db},
		Shopping:    &ShoppingLedger{db: db},
		Meals:       &MealLedger{db: db},
		Weights:     &WeightLedger{db: db},
		Water:       &WaterLedger{db: db},
	}, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
