package db

import (
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kepadev/kepa-portal/internal/models"
)

// Seed provisions the bootstrap admin account when ADMIN_EMAIL and
// ADMIN_PASSWORD are set. Safe to run on every startup: existing rows are
// left untouched.
func Seed(db *gorm.DB) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return ensureAdminRole(db, existing.ID)
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		user := models.User{Email: email, Password: string(hash)}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		profile := models.Profile{UserID: user.ID, FullName: "KEPA Administrator"}
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.UserRole{UserID: user.ID, Role: models.RoleAdmin}).Error; err != nil {
			return err
		}
		log.Printf("seeded admin account %s", email)
		return nil
	})
}

func ensureAdminRole(db *gorm.DB, userID string) error {
	var role models.UserRole
	err := db.Where("user_id = ?", userID).First(&role).Error
	if err == gorm.ErrRecordNotFound {
		return db.Create(&models.UserRole{UserID: userID, Role: models.RoleAdmin}).Error
	}
	if err != nil {
		return err
	}
	if role.Role != models.RoleAdmin {
		return db.Model(&role).Update("role", models.RoleAdmin).Error
	}
	return nil
}
