package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PreferenceCategories is the closed set of preference kinds the assistant
// may record about a user.
var PreferenceCategories = []string{
	"like", "dislike", "allergy", "dietary", "cuisine", "timing", "portion", "other",
}

// PantryCategories is the closed set of pantry/shopping item categories.
var PantryCategories = []string{
	"protein", "vegetable", "fruit", "dairy", "grain", "pantry", "beverage", "other",
}

func ValidPreferenceCategory(c string) bool {
	for _, v := range PreferenceCategories {
		if v == c {
			return true
		}
	}
	return false
}

func ValidPantryCategory(c string) bool {
	for _, v := range PantryCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Profile holds per-user goals and display settings. One row per user.
type Profile struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	CalorieGoal   int       `gorm:"not null;default:2200" json:"calorie_goal"`
	WeightGoal    *float64  `json:"weight_goal"`
	WaterGoal     *int      `json:"water_goal"`
	Units         string    `gorm:"not null;default:imperial" json:"units"`
	Sex           *string   `json:"sex"`
	ActivityLevel string    `json:"activity_level"`
	Timezone      string    `json:"timezone"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Preference is a single remembered food preference. Values are stored
// lower-cased; at most one row should exist per (user, category, value),
// enforced by lookup-before-insert rather than a database constraint.
type Preference struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Category  string    `gorm:"not null" json:"category"`
	Value     string    `gorm:"not null" json:"value"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Preference) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PantryItem is one inventory entry. Duplicate names are allowed.
type PantryItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Name      string    `gorm:"not null" json:"name"`
	Category  *string   `json:"category"`
	Quantity  *float64  `json:"quantity"`
	Unit      *string   `json:"unit"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *PantryItem) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ShoppingList owns ShoppingListItems. Items carry only the list id, so all
// item access must join back to the list to check ownership.
type ShoppingList struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *ShoppingList) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

type ShoppingListItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ListID    uuid.UUID `gorm:"type:uuid;index;not null" json:"list_id"`
	Name      string    `gorm:"not null" json:"name"`
	Category  *string   `json:"category"`
	Quantity  *float64  `json:"quantity"`
	Unit      *string   `json:"unit"`
	Checked   bool      `gorm:"not null;default:false" json:"checked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *ShoppingListItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// MealLog is one logged meal. Calories is the only required nutrition field;
// macro fields may be absent.
type MealLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Name      string    `gorm:"not null" json:"name"`
	Servings  float64   `gorm:"not null;default:1" json:"servings"`
	Calories  int       `gorm:"not null" json:"calories"`
	Protein   *int      `json:"protein"`
	Carbs     *int      `json:"carbs"`
	Fat       *int      `json:"fat"`
	Image     *string   `json:"image"`
	MealDate  string    `gorm:"index;not null" json:"meal_date"`
	MealTime  time.Time `gorm:"index;not null" json:"meal_time"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *MealLog) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// WeightLog is one weigh-in. At most one row per (user, calendar date); a
// same-day re-log updates in place.
type WeightLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Weight    float64   `gorm:"not null" json:"weight"`
	Date      string    `gorm:"index;not null" json:"date"`
	LoggedAt  time.Time `gorm:"not null" json:"logged_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w *WeightLog) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// WaterLog is a running per-day total. One row per (user, calendar date);
// logging water accumulates into the existing day's amount.
type WaterLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Amount    int       `gorm:"not null" json:"amount"`
	Date      string    `gorm:"index;not null" json:"date"`
	LoggedAt  time.Time `gorm:"not null" json:"logged_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w *WaterLog) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
