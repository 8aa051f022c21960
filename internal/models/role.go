package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role classifies an account for authorization purposes.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleFieldStaff Role = "field_staff"
	RoleResident   Role = "resident"
)

// Valid reports whether r is one of the known role values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFieldStaff, RoleResident:
		return true
	}
	return false
}

// IsStaff reports whether the role grants access to staff views.
func (r Role) IsStaff() bool { return r == RoleAdmin || r == RoleFieldStaff }

// UserRole assigns exactly one role to a user. Accounts without a row are
// treated as residents.
type UserRole struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"uniqueIndex;size:36;not null" json:"user_id"`
	Role   Role   `gorm:"size:20;not null" json:"role"`
}

func (r *UserRole) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
