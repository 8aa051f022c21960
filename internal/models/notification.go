package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is a per-user message written when something happens to a
// record the user owns (e.g. a pickup request changes status).
type Notification struct {
	ID      string    `gorm:"primaryKey;size:36" json:"id"`
	UserID  string    `gorm:"index;size:36;not null" json:"user_id"`
	Type    string    `gorm:"size:50;not null" json:"type"`
	Title   string    `gorm:"size:255;not null" json:"title"`
	Message string    `gorm:"type:text;not null" json:"message"`
	Data    *string   `gorm:"type:text" json:"data,omitempty"` // JSON payload
	Read    bool      `gorm:"not null;default:false" json:"read"`
	SentAt  time.Time `gorm:"autoCreateTime" json:"sent_at"`
}

func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// AnalyticsSummary is one day's aggregated portal figures. Rows are produced
// by an external reporting job; the portal only reads the latest one.
type AnalyticsSummary struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	Date              time.Time `gorm:"not null;uniqueIndex" json:"date"`
	TotalRequests     int       `json:"total_requests"`
	CompletedRequests int       `json:"completed_requests"`
	TotalWeightKg     float64   `json:"total_weight_kg"`
	CO2SavedKg        float64   `json:"co2_saved_kg"`
	ActiveUsers       int       `json:"active_users"`
	CreatedAt         time.Time `json:"created_at"`
}

func (a *AnalyticsSummary) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
