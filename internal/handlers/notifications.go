package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/kepadev/kepa-portal/internal/auth"
	"github.com/kepadev/kepa-portal/internal/httpx"
	"github.com/kepadev/kepa-portal/internal/models"
)

type NotificationHandler struct {
	DB *gorm.DB
}

func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{DB: db}
}

// List handles GET /notifications: the session user's messages, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var items []models.Notification
	if err := h.DB.Where("user_id = ?", uid).Order("sent_at desc").Find(&items).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_notifications", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// MarkRead handles POST /notifications/{id}/read. Scoped to the session user
// so nobody can acknowledge someone else's messages.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	res := h.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", r.PathValue("id"), uid).
		Update("read", true)
	if res.Error != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_notification", nil)
		return
	}
	if res.RowsAffected == 0 {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "read"})
}
