package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Difficulty is the effort rating of a recipe.
type Difficulty string

const (
	VeryEasy Difficulty = "VERY_EASY"
	Easy     Difficulty = "EASY"
	Medium   Difficulty = "MEDIUM"
	Hard     Difficulty = "HARD"
	VeryHard Difficulty = "VERY_HARD"
)

func (d Difficulty) Valid() bool {
	switch d {
	case VeryEasy, Easy, Medium, Hard, VeryHard:
		return true
	}
	return false
}

const TitleMaxLength = 40

// Recipe belongs to a Category and a creator User and carries a shared
// ingredient list through the recipe_ingredients join table. Titles are
// stored upper-cased so the unique index is case-insensitive.
type Recipe struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id" xml:"id"`
	CreatedAt  time.Time  `json:"created_at" xml:"-"`
	UpdatedAt  time.Time  `json:"updated_at" xml:"-"`
	Title      string     `gorm:"size:40;uniqueIndex;not null" json:"title" xml:"title"`
	Steps      string     `gorm:"type:text;not null" json:"steps" xml:"steps"`
	Time       string     `gorm:"size:64;not null" json:"time" xml:"time"`
	Difficulty Difficulty `gorm:"size:16;not null" json:"difficulty" xml:"difficulty"`
	ImageURL   string     `gorm:"size:255" json:"image_url,omitempty" xml:"imageURL,omitempty"`
	CategoryID uuid.UUID  `gorm:"type:uuid;not null;index" json:"category_id" xml:"categoryId"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id" xml:"userId"`

	Category    *Category    `json:"-" xml:"-"`
	Ingredients []Ingredient `gorm:"many2many:recipe_ingredients" json:"ingredients" xml:"ingredients>ingredient"`
}

func (r *Recipe) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Validate checks title length, required free-text fields, the difficulty
// enum and every submitted ingredient.
func (r *Recipe) Validate() error {
	if err := requireNonBlank("title", r.Title); err != nil {
		return err
	}
	if len(r.Title) > TitleMaxLength {
		return fieldError("title", "must be at most 40 characters")
	}
	if err := requireNonBlank("steps", r.Steps); err != nil {
		return err
	}
	if err := requireNonBlank("time", r.Time); err != nil {
		return err
	}
	if !r.Difficulty.Valid() {
		return fieldError("difficulty", "must be one of VERY_EASY, EASY, MEDIUM, HARD, VERY_HARD")
	}
	if len(r.Ingredients) == 0 {
		return fieldError("ingredients", "must not be empty")
	}
	for i := range r.Ingredients {
		if err := r.Ingredients[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
