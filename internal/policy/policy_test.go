package policy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kepadev/kepa-portal/internal/auth"
	"github.com/kepadev/kepa-portal/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.UserRole{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func assignRole(t *testing.T, db *gorm.DB, userID string, role models.Role) {
	t.Helper()
	if err := db.Create(&models.UserRole{UserID: userID, Role: role}).Error; err != nil {
		t.Fatalf("assign role: %v", err)
	}
}

func TestResolveRoles(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db, time.Minute)
	ctx := context.Background()
	assignRole(t, db, "u-admin", models.RoleAdmin)
	assignRole(t, db, "u-field", models.RoleFieldStaff)
	assignRole(t, db, "u-res", models.RoleResident)

	cases := map[string]models.Role{
		"u-admin":   models.RoleAdmin,
		"u-field":   models.RoleFieldStaff,
		"u-res":     models.RoleResident,
		"u-missing": models.RoleResident, // no role row: least privilege
	}
	for uid, want := range cases {
		if got := r.Resolve(ctx, uid); got != want {
			t.Errorf("Resolve(%s) = %s, want %s", uid, got, want)
		}
	}

	if !r.IsStaff(auth.WithUserID(ctx, "u-admin")) {
		t.Error("admin should be staff")
	}
	if !r.IsStaff(auth.WithUserID(ctx, "u-field")) {
		t.Error("field staff should be staff")
	}
	if r.IsStaff(auth.WithUserID(ctx, "u-res")) {
		t.Error("resident should not be staff")
	}
	if r.IsStaff(ctx) {
		t.Error("anonymous context should not be staff")
	}
	if !r.IsAdmin(auth.WithUserID(ctx, "u-admin")) || r.IsAdmin(auth.WithUserID(ctx, "u-field")) {
		t.Error("IsAdmin should accept admin only")
	}
}

func TestResolveCachesUntilInvalidated(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db, time.Hour)
	ctx := context.Background()
	assignRole(t, db, "u1", models.RoleResident)

	if got := r.Resolve(ctx, "u1"); got != models.RoleResident {
		t.Fatalf("expected resident, got %s", got)
	}

	// Promote behind the cache's back: the stale value sticks until invalidated.
	if err := db.Model(&models.UserRole{}).Where("user_id = ?", "u1").
		Update("role", models.RoleAdmin).Error; err != nil {
		t.Fatalf("promote: %v", err)
	}
	if got := r.Resolve(ctx, "u1"); got != models.RoleResident {
		t.Fatalf("expected cached resident, got %s", got)
	}
	r.Invalidate("u1")
	if got := r.Resolve(ctx, "u1"); got != models.RoleAdmin {
		t.Fatalf("expected admin after invalidation, got %s", got)
	}
}

func TestRequireStaffGuard(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db, time.Minute)
	assignRole(t, db, "u-staff", models.RoleFieldStaff)
	assignRole(t, db, "u-res", models.RoleResident)

	guard := r.RequireStaff(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	do := func(uid, accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/staff", nil)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		if uid != "" {
			req = req.WithContext(auth.WithUserID(req.Context(), uid))
		}
		w := httptest.NewRecorder()
		guard.ServeHTTP(w, req)
		return w
	}

	if w := do("", "application/json"); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous JSON: expected 401, got %d", w.Code)
	}
	if w := do("", ""); w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/staff-login" {
		t.Errorf("anonymous HTML: expected redirect to /staff-login, got %d", w.Code)
	}
	if w := do("u-res", "application/json"); w.Code != http.StatusForbidden {
		t.Errorf("resident: expected 403, got %d", w.Code)
	}
	if w := do("u-res", ""); w.Code != http.StatusForbidden {
		t.Errorf("resident HTML: expected 403, got %d", w.Code)
	}
	if w := do("u-staff", "application/json"); w.Code != http.StatusOK {
		t.Errorf("staff: expected 200, got %d", w.Code)
	}
}

func TestRequireAdminGuard(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db, time.Minute)
	assignRole(t, db, "u-admin", models.RoleAdmin)
	assignRole(t, db, "u-field", models.RoleFieldStaff)

	guard := r.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	do := func(uid string) int {
		req := httptest.NewRequest(http.MethodPost, "/campaigns", nil)
		req.Header.Set("Accept", "application/json")
		req = req.WithContext(auth.WithUserID(req.Context(), uid))
		w := httptest.NewRecorder()
		guard.ServeHTTP(w, req)
		return w.Code
	}

	if code := do("u-admin"); code != http.StatusOK {
		t.Errorf("admin: expected 200, got %d", code)
	}
	if code := do("u-field"); code != http.StatusForbidden {
		t.Errorf("field staff: expected 403, got %d", code)
	}
}
