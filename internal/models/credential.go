package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenLength is the number of alphanumeric characters in a credential token.
const TokenLength = 30

// Credential is the opaque bearer token issued at registration. One per
// user, globally unique, never rotated.
type Credential struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	CreatedAt time.Time `json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"-"`
	Token     string    `gorm:"size:64;uniqueIndex;not null" json:"token"`
}

func (c *Credential) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
