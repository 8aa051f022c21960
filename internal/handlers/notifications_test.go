package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/gorm"

	"github.com/kepadev/kepa-portal/internal/models"
)

func seedNotification(t *testing.T, db *gorm.DB, userID, title string) models.Notification {
	t.Helper()
	n := models.Notification{UserID: userID, Type: "pickup_update", Title: title, Message: "m"}
	if err := db.Create(&n).Error; err != nil {
		t.Fatalf("notification: %v", err)
	}
	return n
}

func TestNotificationsList(t *testing.T) {
	db := setupTestDB(t)
	h := NewNotificationHandler(db)
	user := seedUserWithRole(t, db, "res@x.com", models.RoleResident)
	other := seedUserWithRole(t, db, "other@x.com", models.RoleResident)
	seedNotification(t, db, user.ID, "mine")
	seedNotification(t, db, other.ID, "not mine")

	w := httptest.NewRecorder()
	h.List(w, asUser(jsonRequest(http.MethodGet, "/notifications", ""), user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Items []models.Notification `json:"items"`
		Total int                   `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].Title != "mine" {
		t.Fatalf("expected only the user's notifications: %#v", resp)
	}

	w = httptest.NewRecorder()
	h.List(w, jsonRequest(http.MethodGet, "/notifications", ""))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", w.Code)
	}
}

func TestNotificationMarkReadScoped(t *testing.T) {
	db := setupTestDB(t)
	h := NewNotificationHandler(db)
	user := seedUserWithRole(t, db, "res@x.com", models.RoleResident)
	other := seedUserWithRole(t, db, "other@x.com", models.RoleResident)
	n := seedNotification(t, db, user.ID, "mine")

	// Someone else's session cannot acknowledge it.
	r := asUser(jsonRequest(http.MethodPost, "/notifications/"+n.ID+"/read", ""), other.ID)
	r.SetPathValue("id", n.ID)
	w := httptest.NewRecorder()
	h.MarkRead(w, r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign notification, got %d", w.Code)
	}

	r = asUser(jsonRequest(http.MethodPost, "/notifications/"+n.ID+"/read", ""), user.ID)
	r.SetPathValue("id", n.ID)
	w = httptest.NewRecorder()
	h.MarkRead(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var stored models.Notification
	if err := db.First(&stored, "id = ?", n.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !stored.Read {
		t.Fatal("notification not marked read")
	}
}
