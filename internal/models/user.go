package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents an authenticated account (resident or staff).
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"` // Hashed, never exposed in JSON
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Profile holds the resident-facing account data, one row per user.
// Created in the same transaction as the User at signup and never deleted.
type Profile struct {
	ID                      string    `gorm:"primaryKey;size:36" json:"id"`
	UserID                  string    `gorm:"uniqueIndex;size:36;not null" json:"user_id"`
	FullName                string    `gorm:"size:255;not null" json:"full_name"`
	Phone                   *string   `gorm:"size:50" json:"phone,omitempty"`
	Address                 *string   `gorm:"size:500" json:"address,omitempty"`
	Latitude                *float64  `json:"latitude,omitempty"`
	Longitude               *float64  `json:"longitude,omitempty"`
	NotificationPreferences *string   `gorm:"type:text" json:"notification_preferences,omitempty"`
	Points                  int       `gorm:"not null;default:0" json:"points"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

func (p *Profile) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
