package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/kepadev/kepa-portal/internal/auth"
	"github.com/kepadev/kepa-portal/internal/models"
	"github.com/kepadev/kepa-portal/internal/policy"
	"github.com/kepadev/kepa-portal/internal/services"
)

func seedUserWithRole(t *testing.T, db *gorm.DB, email string, role models.Role) models.User {
	t.Helper()
	user := models.User{Email: email, Password: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	if err := db.Create(&models.Profile{UserID: user.ID, FullName: email}).Error; err != nil {
		t.Fatalf("profile: %v", err)
	}
	if role != "" {
		if err := db.Create(&models.UserRole{UserID: user.ID, Role: role}).Error; err != nil {
			t.Fatalf("role: %v", err)
		}
	}
	return user
}

func newRequestHandler(db *gorm.DB) *RequestHandler {
	return NewRequestHandler(services.NewRequestService(db), policy.NewResolver(db, time.Minute))
}

func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(auth.WithUserID(r.Context(), userID))
}

func TestCreateRequestAnonymous(t *testing.T) {
	db := setupTestDB(t)
	h := newRequestHandler(db)

	// Missing contact details: rejected, nothing written.
	w := httptest.NewRecorder()
	h.Create(w, jsonRequest(http.MethodPost, "/requests",
		`{"waste_type":"plastic","quantity_kg":5,"pickup_address":"12 Example St"}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var count int64
	db.Model(&models.PickupRequest{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no rows, got %d", count)
	}

	w = httptest.NewRecorder()
	h.Create(w, jsonRequest(http.MethodPost, "/requests",
		`{"waste_type":"plastic","quantity_kg":5,"pickup_address":"12 Example St","contact_phone":"0800","contact_email":"anon@x.com"}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created models.PickupRequest
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.UserID != nil || created.Status != models.StatusRequested {
		t.Fatalf("unexpected created row: %#v", created)
	}
}

func TestCreateRequestSignedIn(t *testing.T) {
	db := setupTestDB(t)
	h := newRequestHandler(db)
	user := seedUserWithRole(t, db, "res@x.com", models.RoleResident)

	w := httptest.NewRecorder()
	r := asUser(jsonRequest(http.MethodPost, "/requests",
		`{"waste_type":"organic","quantity_kg":2.5,"pickup_address":"7 Garden Cl","preferred_date":"2025-06-15"}`), user.ID)
	h.Create(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created models.PickupRequest
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.UserID == nil || *created.UserID != user.ID {
		t.Fatalf("expected owner %s, got %v", user.ID, created.UserID)
	}
	if created.PreferredDate == nil || created.PreferredDate.Format("2006-01-02") != "2025-06-15" {
		t.Fatalf("expected preferred date parsed, got %v", created.PreferredDate)
	}
}

func TestListRequestsByRole(t *testing.T) {
	db := setupTestDB(t)
	h := newRequestHandler(db)
	svc := services.NewRequestService(db)
	resident := seedUserWithRole(t, db, "res@x.com", models.RoleResident)
	other := seedUserWithRole(t, db, "other@x.com", models.RoleResident)
	staff := seedUserWithRole(t, db, "staff@x.com", models.RoleFieldStaff)

	for _, uid := range []string{resident.ID, other.ID} {
		id := uid
		if _, _, err := svc.Create(context.Background(), &id, services.CreateInput{
			WasteType: "paper", QuantityKg: 1, PickupAddress: "x",
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	// Anonymous: sign-in required.
	w := httptest.NewRecorder()
	h.List(w, jsonRequest(http.MethodGet, "/requests", ""))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", w.Code)
	}

	// Resident: own requests only.
	w = httptest.NewRecorder()
	h.List(w, asUser(jsonRequest(http.MethodGet, "/requests", ""), resident.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("resident: expected 200, got %d", w.Code)
	}
	var mine struct {
		Items []models.PickupRequest `json:"items"`
		Total int                    `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &mine); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if mine.Total != 1 || *mine.Items[0].UserID != resident.ID {
		t.Fatalf("resident should see only their own request: %#v", mine)
	}

	// Staff: the whole queue.
	w = httptest.NewRecorder()
	h.List(w, asUser(jsonRequest(http.MethodGet, "/requests", ""), staff.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("staff: expected 200, got %d", w.Code)
	}
	var all struct {
		Items []services.RequestRow `json:"items"`
		Total int                   `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if all.Total != 2 {
		t.Fatalf("staff should see 2 requests, got %d", all.Total)
	}
}

func TestListRequestsMonthFilter(t *testing.T) {
	db := setupTestDB(t)
	h := newRequestHandler(db)
	staff := seedUserWithRole(t, db, "staff@x.com", models.RoleAdmin)

	for i, ts := range []time.Time{
		time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC),
	} {
		req := models.PickupRequest{
			WasteType: models.WasteMixed, QuantityKg: 1, PickupAddress: "x",
			Status: models.StatusRequested, CreatedAt: ts,
		}
		if err := db.Create(&req).Error; err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	w := httptest.NewRecorder()
	h.List(w, asUser(jsonRequest(http.MethodGet, "/requests?year=2025&month=4", ""), staff.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("expected 1 April request, got %d", resp.Total)
	}

	w = httptest.NewRecorder()
	h.List(w, asUser(jsonRequest(http.MethodGet, "/requests?year=2025&month=13", ""), staff.ID))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for month 13, got %d", w.Code)
	}
}

func TestApproveEndpoint(t *testing.T) {
	db := setupTestDB(t)
	h := newRequestHandler(db)
	svc := services.NewRequestService(db)
	created, _, err := svc.Create(context.Background(), nil, services.CreateInput{
		WasteType: "glass", QuantityKg: 1, PickupAddress: "x",
		ContactPhone: "0800", ContactEmail: "a@x.com",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := jsonRequest(http.MethodPost, "/requests/"+created.ID+"/approve", "")
	r.SetPathValue("id", created.ID)
	w := httptest.NewRecorder()
	h.Approve(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated models.PickupRequest
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Status != models.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", updated.Status)
	}

	// Second approve: request is no longer in "requested".
	w = httptest.NewRecorder()
	h.Approve(w, r)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on repeat approve, got %d", w.Code)
	}

	r = jsonRequest(http.MethodPost, "/requests/missing/approve", "")
	r.SetPathValue("id", "missing")
	w = httptest.NewRecorder()
	h.Approve(w, r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", w.Code)
	}
}

func TestScheduleEndpointSetsDate(t *testing.T) {
	db := setupTestDB(t)
	h := newRequestHandler(db)
	svc := services.NewRequestService(db)
	created, _, err := svc.Create(context.Background(), nil, services.CreateInput{
		WasteType: "metal", QuantityKg: 4, PickupAddress: "x",
		ContactPhone: "0800", ContactEmail: "a@x.com",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := jsonRequest(http.MethodPost, "/requests/"+created.ID+"/schedule", `{"scheduled_date":"2025-07-01"}`)
	r.SetPathValue("id", created.ID)
	w := httptest.NewRecorder()
	h.Schedule(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated models.PickupRequest
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.ScheduledDate == nil || updated.ScheduledDate.Format("2006-01-02") != "2025-07-01" {
		t.Fatalf("expected scheduled date set, got %v", updated.ScheduledDate)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	db := setupTestDB(t)
	h := newRequestHandler(db)
	svc := services.NewRequestService(db)
	created, _, err := svc.Create(context.Background(), nil, services.CreateInput{
		WasteType: "paper", QuantityKg: 1, PickupAddress: "x",
		ContactPhone: "0800", ContactEmail: "a@x.com",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := jsonRequest(http.MethodPost, "/requests/"+created.ID+"/delete", "")
	r.SetPathValue("id", created.ID)
	w := httptest.NewRecorder()
	h.Delete(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.Delete(w, r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", w.Code)
	}
}
