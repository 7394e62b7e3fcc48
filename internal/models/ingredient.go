package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ingredient is shared across recipes. The composite unique index on
// (ingredient_name, units) backs the dedup invariant: duplicate submissions
// resolve to the existing row instead of creating a new one.
type Ingredient struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id" xml:"id"`
	CreatedAt      time.Time `json:"created_at" xml:"-"`
	IngredientName string    `gorm:"size:255;not null;uniqueIndex:idx_ingredient_name_units" json:"ingredient_name" xml:"ingredientName"`
	Units          string    `gorm:"size:64;not null;uniqueIndex:idx_ingredient_name_units" json:"units" xml:"units"`

	Recipes []Recipe `gorm:"many2many:recipe_ingredients" json:"-" xml:"-"`
}

func (i *Ingredient) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (i *Ingredient) Validate() error {
	if err := requireNonBlank("ingredientName", i.IngredientName); err != nil {
		return err
	}
	return requireNonBlank("units", i.Units)
}
