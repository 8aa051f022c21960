// Package services holds the request lifecycle core: creation, listing,
// month filtering, status transitions, and the dashboard aggregates built on
// top of them.
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kepadev/kepa-portal/internal/models"
	"github.com/kepadev/kepa-portal/internal/validation"
)

var (
	// ErrNotFound is returned when a request id does not exist.
	ErrNotFound = errors.New("request not found")
	// ErrInvalidTransition is returned when a status change is attempted
	// from any state other than "requested". Forward-only lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
)

type RequestService struct {
	db *gorm.DB
}

func NewRequestService(db *gorm.DB) *RequestService { return &RequestService{db: db} }

// CreateInput carries the resident-supplied fields of a new pickup request.
type CreateInput struct {
	WasteType     string
	QuantityKg    float64
	PickupAddress string
	Latitude      *float64
	Longitude     *float64
	PreferredDate *time.Time
	Notes         string
	ContactPhone  string
	ContactEmail  string
}

// Validate checks the input before anything touches the database. Anonymous
// submissions (userID nil) must carry contact phone and email so staff can
// reach the submitter.
func (in CreateInput) Validate(userID *string) validation.Violations {
	v := validation.Violations{}
	validation.Required("waste_type", in.WasteType, v)
	if in.WasteType != "" && !models.WasteType(in.WasteType).Valid() {
		v["waste_type"] = "unknown_waste_type"
	}
	validation.PositiveFloat("quantity_kg", in.QuantityKg, v)
	validation.Required("pickup_address", in.PickupAddress, v)
	if userID == nil {
		validation.Required("contact_phone", in.ContactPhone, v)
		validation.Required("contact_email", in.ContactEmail, v)
		if _, ok := v["contact_email"]; !ok && in.ContactEmail != "" {
			validation.Email("contact_email", in.ContactEmail, v)
		}
	}
	return v
}

// Create validates and inserts a pickup request. userID is nil for anonymous
// submissions. On validation failure no database write is issued.
func (s *RequestService) Create(ctx context.Context, userID *string, in CreateInput) (*models.PickupRequest, validation.Violations, error) {
	if v := in.Validate(userID); !v.Empty() {
		return nil, v, nil
	}
	req := models.PickupRequest{
		UserID:          userID,
		WasteType:       models.WasteType(in.WasteType),
		QuantityKg:      in.QuantityKg,
		PickupAddress:   strings.TrimSpace(in.PickupAddress),
		PickupLatitude:  in.Latitude,
		PickupLongitude: in.Longitude,
		PreferredDate:   in.PreferredDate,
		Status:          models.StatusRequested,
	}
	if n := strings.TrimSpace(in.Notes); n != "" {
		req.Notes = &n
	}
	if p := strings.TrimSpace(in.ContactPhone); p != "" {
		req.ContactPhone = &p
	}
	if e := strings.TrimSpace(in.ContactEmail); e != "" {
		req.ContactEmail = &e
	}
	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		return nil, nil, err
	}
	return &req, nil, nil
}

// RequestRow is a pickup request joined with its submitter's display data for
// the staff queue. Anonymous requests carry empty submitter fields and rely
// on the contact columns instead.
type RequestRow struct {
	models.PickupRequest
	SubmitterName  string `json:"submitter_name,omitempty"`
	SubmitterPhone string `json:"submitter_phone,omitempty"`
}

// ListAll returns every request, newest first, with submitter names resolved
// through a single batched profile lookup over the distinct user ids.
func (s *RequestService) ListAll(ctx context.Context) ([]RequestRow, error) {
	var reqs []models.PickupRequest
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&reqs).Error; err != nil {
		return nil, err
	}
	return s.joinSubmitters(ctx, reqs)
}

// ListMonth returns the requests created within the given month, newest first.
func (s *RequestService) ListMonth(ctx context.Context, year int, month time.Month) ([]RequestRow, error) {
	start, end := MonthWindow(year, month)
	var reqs []models.PickupRequest
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Order("created_at desc").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return s.joinSubmitters(ctx, reqs)
}

// ListByUser returns the given resident's own requests, newest first.
func (s *RequestService) ListByUser(ctx context.Context, userID string) ([]models.PickupRequest, error) {
	var reqs []models.PickupRequest
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&reqs).Error
	return reqs, err
}

// MonthWindow returns the first and last instant of the given month in UTC.
// The end bound is the final whole second, matching the inclusive filter the
// portal has always used.
func MonthWindow(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}

// Approve moves a request from requested to scheduled.
func (s *RequestService) Approve(ctx context.Context, id string) (*models.PickupRequest, error) {
	return s.transition(ctx, id, models.StatusScheduled, nil)
}

// Schedule moves a request from requested to scheduled with an explicit
// pickup date. Same target state as Approve; recorded distinctly by callers.
func (s *RequestService) Schedule(ctx context.Context, id string, date *time.Time) (*models.PickupRequest, error) {
	return s.transition(ctx, id, models.StatusScheduled, date)
}

// Delay moves a request from requested to delayed.
func (s *RequestService) Delay(ctx context.Context, id string) (*models.PickupRequest, error) {
	return s.transition(ctx, id, models.StatusDelayed, nil)
}

// transition enforces the forward-only rule: only "requested" rows may move
// through the exposed operations. in_progress/completed are written by field
// operations outside this portal and are deliberately not reachable here.
func (s *RequestService) transition(ctx context.Context, id string, target models.PickupStatus, scheduledDate *time.Time) (*models.PickupRequest, error) {
	var req models.PickupRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if req.Status != models.StatusRequested {
			return ErrInvalidTransition
		}
		updates := map[string]any{"status": target}
		if scheduledDate != nil {
			updates["scheduled_date"] = scheduledDate
		}
		if err := tx.Model(&req).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&req, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	s.notifyOwner(ctx, &req)
	return &req, nil
}

// Delete removes a request unconditionally.
func (s *RequestService) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.PickupRequest{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// notifyOwner records a status-change notification for owned requests.
// Best-effort: a failed write is logged, never surfaced to the caller.
func (s *RequestService) notifyOwner(ctx context.Context, req *models.PickupRequest) {
	if req.UserID == nil {
		return
	}
	n := models.Notification{
		UserID:  *req.UserID,
		Type:    "pickup_update",
		Title:   "Pickup request update",
		Message: fmt.Sprintf("Your %s pickup request is now %s.", req.WasteType, strings.ReplaceAll(string(req.Status), "_", " ")),
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		log.Printf("notify owner of request %s: %v", req.ID, err)
	}
}

// joinSubmitters resolves full_name/phone for every owned request with one
// query over the distinct user ids, instead of a per-row lookup.
func (s *RequestService) joinSubmitters(ctx context.Context, reqs []models.PickupRequest) ([]RequestRow, error) {
	ids := make([]string, 0, len(reqs))
	seen := map[string]bool{}
	for _, r := range reqs {
		if r.UserID != nil && !seen[*r.UserID] {
			seen[*r.UserID] = true
			ids = append(ids, *r.UserID)
		}
	}
	profiles := map[string]models.Profile{}
	if len(ids) > 0 {
		var rows []models.Profile
		if err := s.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, p := range rows {
			profiles[p.UserID] = p
		}
	}
	out := make([]RequestRow, 0, len(reqs))
	for _, r := range reqs {
		row := RequestRow{PickupRequest: r}
		if r.UserID != nil {
			if p, ok := profiles[*r.UserID]; ok {
				row.SubmitterName = p.FullName
				if p.Phone != nil {
					row.SubmitterPhone = *p.Phone
				}
			}
		}
		out = append(out, row)
	}
	return out, nil
}
