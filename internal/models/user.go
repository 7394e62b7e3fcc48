package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	NickMinLength = 4
	NickMaxLength = 15
)

// User is an account in the catalog. A user owns exactly one Credential and
// zero or more Recipes. IsAdmin is never set through registration; only an
// existing admin can grant it.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id" xml:"id"`
	CreatedAt time.Time `json:"created_at" xml:"-"`
	UpdatedAt time.Time `json:"updated_at" xml:"-"`
	Nick      string    `gorm:"size:15;uniqueIndex;not null" json:"nick" xml:"nick"`
	Name      string    `gorm:"size:255;not null" json:"name" xml:"name"`
	Surname   string    `gorm:"size:255;not null" json:"surname" xml:"surname"`
	City      string    `gorm:"size:255;not null" json:"city" xml:"city"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"-" xml:"-"`

	Credential *Credential `gorm:"constraint:OnDelete:CASCADE" json:"-" xml:"-"`
	Recipes    []Recipe    `gorm:"foreignKey:UserID" json:"-" xml:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Validate checks field-level constraints: nick length 4-15 and non-blank
// name, surname and city each starting with a capital letter.
func (u *User) Validate() error {
	if len(u.Nick) < NickMinLength || len(u.Nick) > NickMaxLength {
		return fieldError("nick", "must be between 4 and 15 characters")
	}
	if err := requireCapitalized("name", u.Name); err != nil {
		return err
	}
	if err := requireCapitalized("surname", u.Surname); err != nil {
		return err
	}
	return requireCapitalized("city", u.City)
}
