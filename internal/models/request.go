package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WasteType enumerates the collectable waste categories.
type WasteType string

const (
	WastePlastic     WasteType = "plastic"
	WastePaper       WasteType = "paper"
	WasteOrganic     WasteType = "organic"
	WasteElectronics WasteType = "electronics"
	WasteGlass       WasteType = "glass"
	WasteMetal       WasteType = "metal"
	WasteMixed       WasteType = "mixed"
)

// WasteTypes lists every valid category, in display order.
var WasteTypes = []WasteType{
	WastePlastic, WastePaper, WasteOrganic, WasteElectronics,
	WasteGlass, WasteMetal, WasteMixed,
}

func (t WasteType) Valid() bool {
	for _, w := range WasteTypes {
		if t == w {
			return true
		}
	}
	return false
}

// PickupStatus is a request's position in its lifecycle.
type PickupStatus string

const (
	StatusRequested  PickupStatus = "requested"
	StatusScheduled  PickupStatus = "scheduled"
	StatusInProgress PickupStatus = "in_progress"
	StatusCompleted  PickupStatus = "completed"
	StatusDelayed    PickupStatus = "delayed"
)

// PickupRequest is a waste-collection service request, owned by a resident
// (UserID set) or anonymous (UserID nil, contact fields required instead).
// in_progress and completed are written by field operations outside this
// application; the portal only renders them.
type PickupRequest struct {
	ID              string       `gorm:"primaryKey;size:36" json:"id"`
	UserID          *string      `gorm:"index;size:36" json:"user_id"`
	WasteType       WasteType    `gorm:"size:20;not null" json:"waste_type"`
	QuantityKg      float64      `gorm:"not null" json:"quantity_kg"`
	PickupAddress   string       `gorm:"size:500;not null" json:"pickup_address"`
	PickupLatitude  *float64     `json:"pickup_latitude,omitempty"`
	PickupLongitude *float64     `json:"pickup_longitude,omitempty"`
	PreferredDate   *time.Time   `json:"preferred_date,omitempty"`
	Notes           *string      `gorm:"type:text" json:"notes,omitempty"`
	PhotoURL        *string      `gorm:"size:500" json:"photo_url,omitempty"`
	ContactPhone    *string      `gorm:"size:50" json:"contact_phone,omitempty"`
	ContactEmail    *string      `gorm:"size:255" json:"contact_email,omitempty"`
	Status          PickupStatus `gorm:"size:20;not null;default:requested" json:"status"`
	AssignedStaffID *string      `gorm:"size:36" json:"assigned_staff_id,omitempty"`
	AssignedVehicle *string      `gorm:"size:100" json:"assigned_vehicle,omitempty"`
	ScheduledDate   *time.Time   `json:"scheduled_date,omitempty"`
	CompletedDate   *time.Time   `json:"completed_date,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (p *PickupRequest) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusRequested
	}
	return nil
}
