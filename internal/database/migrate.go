package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/recetario/backend/internal/models"
)

// Migrate creates or updates the five entity tables and the
// recipe_ingredients join table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Credential{},
		&models.Category{},
		&models.Ingredient{},
		&models.Recipe{},
	); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Printf("Database migration complete")
	return nil
}
