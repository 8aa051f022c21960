package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Campaign is a recycling awareness campaign published by staff.
type Campaign struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Title           string    `gorm:"size:255;not null" json:"title"`
	Description     string    `gorm:"type:text;not null" json:"description"`
	StartDate       time.Time `gorm:"not null" json:"start_date"`
	EndDate         time.Time `gorm:"not null" json:"end_date"`
	Location        *string   `gorm:"size:255" json:"location,omitempty"`
	ImageURL        *string   `gorm:"size:500" json:"image_url,omitempty"`
	MaxParticipants *int      `json:"max_participants,omitempty"`
	IsActive        bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedBy       string    `gorm:"size:36;not null" json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (c *Campaign) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// CampaignParticipant records one user's registration for a campaign.
type CampaignParticipant struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	CampaignID   string    `gorm:"index:idx_campaign_user,unique;size:36;not null" json:"campaign_id"`
	UserID       string    `gorm:"index:idx_campaign_user,unique;size:36;not null" json:"user_id"`
	RegisteredAt time.Time `gorm:"autoCreateTime" json:"registered_at"`
}

func (p *CampaignParticipant) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
