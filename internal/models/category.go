package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category groups recipes. Names are stored upper-cased so the unique index
// enforces case-insensitive uniqueness.
type Category struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id" xml:"id"`
	CreatedAt    time.Time `json:"created_at" xml:"-"`
	UpdatedAt    time.Time `json:"updated_at" xml:"-"`
	CategoryName string    `gorm:"size:255;uniqueIndex;not null" json:"category_name" xml:"categoryName"`

	Recipes []Recipe `gorm:"foreignKey:CategoryID" json:"-" xml:"-"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *Category) Validate() error {
	return requireNonBlank("categoryName", c.CategoryName)
}
