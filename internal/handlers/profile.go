package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/kepadev/kepa-portal/internal/auth"
	"github.com/kepadev/kepa-portal/internal/httpx"
	"github.com/kepadev/kepa-portal/internal/models"
)

type ProfileHandler struct {
	DB *gorm.DB
}

func NewProfileHandler(db *gorm.DB) *ProfileHandler { return &ProfileHandler{DB: db} }

// Get returns the session user's profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "not_authenticated", nil)
		return
	}
	var profile models.Profile
	if err := h.DB.Where("user_id = ?", uid).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "profile_not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_profile", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

// Update applies a partial profile update keyed by the session user and
// returns the re-read row.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "not_authenticated", nil)
		return
	}

	type updateReq struct {
		FullName                *string  `json:"full_name"`
		Phone                   *string  `json:"phone"`
		Address                 *string  `json:"address"`
		Latitude                *float64 `json:"latitude"`
		Longitude               *float64 `json:"longitude"`
		NotificationPreferences *string  `json:"notification_preferences"`
	}
	var req updateReq
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
	} else if err := r.ParseForm(); err == nil {
		if v := strings.TrimSpace(r.FormValue("full_name")); v != "" {
			req.FullName = &v
		}
		if v := strings.TrimSpace(r.FormValue("phone")); v != "" {
			req.Phone = &v
		}
		if v := strings.TrimSpace(r.FormValue("address")); v != "" {
			req.Address = &v
		}
	}

	updates := map[string]any{}
	if req.FullName != nil && strings.TrimSpace(*req.FullName) != "" {
		updates["full_name"] = strings.TrimSpace(*req.FullName)
	}
	if req.Phone != nil {
		updates["phone"] = req.Phone
	}
	if req.Address != nil {
		updates["address"] = req.Address
	}
	if req.Latitude != nil {
		updates["latitude"] = req.Latitude
	}
	if req.Longitude != nil {
		updates["longitude"] = req.Longitude
	}
	if req.NotificationPreferences != nil {
		updates["notification_preferences"] = req.NotificationPreferences
	}
	if len(updates) == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "nothing_to_update", nil)
		return
	}

	res := h.DB.Model(&models.Profile{}).Where("user_id = ?", uid).Updates(updates)
	if res.Error != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_profile", nil)
		return
	}
	if res.RowsAffected == 0 {
		httpx.JSONError(w, http.StatusNotFound, "profile_not_found", nil)
		return
	}

	var profile models.Profile
	if err := h.DB.Where("user_id = ?", uid).First(&profile).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_profile", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}
