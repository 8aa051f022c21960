package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kepadev/kepa-portal/internal/models"
)

// DashboardStats aggregates the staff dashboard counters.
type DashboardStats struct {
	PendingRequests int64   `json:"pending_requests"`
	CompletedToday  int64   `json:"completed_today"`
	TotalUsers      int64   `json:"total_users"`
	WeightCollected float64 `json:"weight_collected_kg"`
}

// Stats computes the dashboard counters from live data.
func (s *RequestService) Stats(ctx context.Context) (DashboardStats, error) {
	var out DashboardStats
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.PickupRequest{}).
		Where("status = ?", models.StatusRequested).
		Count(&out.PendingRequests).Error; err != nil {
		return out, err
	}

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	if err := db.Model(&models.PickupRequest{}).
		Where("status = ? AND updated_at >= ?", models.StatusCompleted, dayStart).
		Count(&out.CompletedToday).Error; err != nil {
		return out, err
	}

	if err := db.Model(&models.User{}).Count(&out.TotalUsers).Error; err != nil {
		return out, err
	}

	var weight *float64
	err := db.Model(&models.PickupRequest{}).
		Where("status = ?", models.StatusCompleted).
		Select("SUM(quantity_kg)").
		Scan(&weight).Error
	if err != nil {
		return out, err
	}
	if weight != nil {
		out.WeightCollected = *weight
	}
	return out, nil
}

// LatestAnalytics returns the most recent analytics summary row, or nil when
// the reporting job has not produced one yet.
func (s *RequestService) LatestAnalytics(ctx context.Context) (*models.AnalyticsSummary, error) {
	var row models.AnalyticsSummary
	err := s.db.WithContext(ctx).Order("date desc").First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
