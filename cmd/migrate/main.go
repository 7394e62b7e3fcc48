// Command migrate applies the schema and optionally seeds the first
// administrator. The admin floor only holds once at least one admin exists,
// so a fresh deployment bootstraps one here.
package main

import (
	"flag"
	"log"

	"gorm.io/gorm"

	"github.com/recetario/backend/config"
	"github.com/recetario/backend/internal/database"
	"github.com/recetario/backend/internal/models"
	"github.com/recetario/backend/internal/service"
)

func main() {
	adminNick := flag.String("admin-nick", "", "seed an administrator with this nick if no admin exists")
	adminName := flag.String("admin-name", "Admin", "name for the seeded administrator")
	adminSurname := flag.String("admin-surname", "User", "surname for the seeded administrator")
	adminCity := flag.String("admin-city", "Madrid", "city for the seeded administrator")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if *adminNick == "" {
		return
	}

	var admins int64
	if err := db.Model(&models.User{}).Where("is_admin = ?", true).Count(&admins).Error; err != nil {
		log.Fatalf("Failed to count administrators: %v", err)
	}
	if admins > 0 {
		log.Printf("Administrator already present, skipping seed")
		return
	}

	admin := &models.User{
		Nick:    *adminNick,
		Name:    *adminName,
		Surname: *adminSurname,
		City:    *adminCity,
		IsAdmin: true,
	}
	if err := admin.Validate(); err != nil {
		log.Fatalf("Invalid administrator fields: %v", err)
	}
	token, err := service.GenerateCredentialToken()
	if err != nil {
		log.Fatalf("Failed to generate credential: %v", err)
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(admin).Error; err != nil {
			return err
		}
		return tx.Create(&models.Credential{UserID: admin.ID, Token: token}).Error
	})
	if err != nil {
		log.Fatalf("Failed to seed administrator: %v", err)
	}
	log.Printf("Seeded administrator %s (%s), api key: %s", admin.Nick, admin.ID, token)
}
