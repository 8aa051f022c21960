// Package policy is the single authorization point of the portal. Every
// role-gated route goes through a Resolver plus the RequireStaff/RequireAdmin
// guards; pages never re-derive roles themselves.
package policy

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/kepadev/kepa-portal/internal/auth"
	"github.com/kepadev/kepa-portal/internal/httpx"
	"github.com/kepadev/kepa-portal/internal/models"
)

// Resolver looks up a user's role with TTL-based caching so that guarded
// routes do not hit the database on every request.
type Resolver struct {
	db    *gorm.DB
	mu    sync.RWMutex
	cache map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	role      models.Role
	expiresAt time.Time
}

func NewResolver(db *gorm.DB, ttl time.Duration) *Resolver {
	return &Resolver{db: db, cache: make(map[string]cacheEntry), ttl: ttl}
}

// Resolve returns the role for the given user. A user without a role row is a
// resident; a lookup failure is logged and also degrades to resident so that
// role-gated UI falls back to the least-privileged view.
func (r *Resolver) Resolve(ctx context.Context, userID string) models.Role {
	r.mu.RLock()
	entry, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.role
	}

	role := models.RoleResident
	var row models.UserRole
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	switch {
	case err == nil && row.Role.Valid():
		role = row.Role
	case errors.Is(err, gorm.ErrRecordNotFound):
		// not provisioned yet: resident
	case err != nil:
		log.Printf("policy: role lookup failed for %s: %v", userID, err)
	}

	r.mu.Lock()
	r.cache[userID] = cacheEntry{role: role, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()
	return role
}

// Invalidate removes a user from the cache. Call when a role assignment changes.
func (r *Resolver) Invalidate(userID string) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}

// IsStaff reports whether the request's user is admin or field staff.
func (r *Resolver) IsStaff(ctx context.Context) bool {
	uid, ok := auth.UserIDFromContext(ctx)
	return ok && r.Resolve(ctx, uid).IsStaff()
}

// IsAdmin reports whether the request's user is an admin exactly.
func (r *Resolver) IsAdmin(ctx context.Context) bool {
	uid, ok := auth.UserIDFromContext(ctx)
	return ok && r.Resolve(ctx, uid) == models.RoleAdmin
}

// RequireStaff wraps a handler to require a staff role (admin or field_staff).
func (r *Resolver) RequireStaff(next http.Handler) http.Handler {
	return r.require(next, func(role models.Role) bool { return role.IsStaff() })
}

// RequireAdmin wraps a handler to require the admin role.
func (r *Resolver) RequireAdmin(next http.Handler) http.Handler {
	return r.require(next, func(role models.Role) bool { return role == models.RoleAdmin })
}

func (r *Resolver) require(next http.Handler, allowed func(models.Role) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		uid, ok := auth.UserIDFromContext(req.Context())
		if !ok {
			if httpx.WantsJSON(req) {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			http.Redirect(w, req, "/staff-login", http.StatusSeeOther)
			return
		}
		if !allowed(r.Resolve(req.Context(), uid)) {
			if httpx.WantsJSON(req) {
				httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
				return
			}
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("Access denied: this area is restricted to KEPA staff."))
			return
		}
		next.ServeHTTP(w, req)
	})
}
