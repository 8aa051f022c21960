package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kepadev/kepa-portal/internal/auth"
	"github.com/kepadev/kepa-portal/internal/httpx"
	"github.com/kepadev/kepa-portal/internal/models"
	"github.com/kepadev/kepa-portal/internal/validation"
	"github.com/kepadev/kepa-portal/internal/view"
)

type CampaignHandler struct {
	DB *gorm.DB
}

func NewCampaignHandler(db *gorm.DB) *CampaignHandler { return &CampaignHandler{DB: db} }

// List handles GET /campaigns: active campaigns, soonest first. Public.
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	var campaigns []models.Campaign
	if err := h.DB.Where("is_active = ?", true).Order("start_date asc").Find(&campaigns).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_campaigns", nil)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": campaigns, "total": len(campaigns)})
		return
	}
	_ = view.Render(w, r, "campaigns.html", map[string]any{"Campaigns": campaigns})
}

// Create handles POST /campaigns. Admin gated in the router.
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	type createReq struct {
		Title           string `json:"title"`
		Description     string `json:"description"`
		StartDate       string `json:"start_date"`
		EndDate         string `json:"end_date"`
		Location        string `json:"location"`
		ImageURL        string `json:"image_url"`
		MaxParticipants int    `json:"max_participants"`
	}
	var req createReq
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
	} else if err := r.ParseForm(); err == nil {
		req.Title = r.FormValue("title")
		req.Description = r.FormValue("description")
		req.StartDate = r.FormValue("start_date")
		req.EndDate = r.FormValue("end_date")
		req.Location = r.FormValue("location")
		if v := r.FormValue("max_participants"); v != "" {
			req.MaxParticipants, _ = strconv.Atoi(v)
		}
	}

	v := validation.Violations{}
	validation.Required("title", req.Title, v)
	validation.Required("description", req.Description, v)
	validation.Required("start_date", req.StartDate, v)
	validation.Required("end_date", req.EndDate, v)
	start, serr := time.Parse("2006-01-02", req.StartDate)
	end, eerr := time.Parse("2006-01-02", req.EndDate)
	if req.StartDate != "" && serr != nil {
		v["start_date"] = "invalid_date"
	}
	if req.EndDate != "" && eerr != nil {
		v["end_date"] = "invalid_date"
	}
	if serr == nil && eerr == nil && end.Before(start) {
		v["end_date"] = "before_start"
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	c := models.Campaign{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		StartDate:   start,
		EndDate:     end,
		IsActive:    true,
		CreatedBy:   uid,
	}
	if l := strings.TrimSpace(req.Location); l != "" {
		c.Location = &l
	}
	if u := strings.TrimSpace(req.ImageURL); u != "" {
		c.ImageURL = &u
	}
	if req.MaxParticipants > 0 {
		c.MaxParticipants = &req.MaxParticipants
	}
	if err := h.DB.Create(&c).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_campaign", nil)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, c)
		return
	}
	http.Redirect(w, r, "/campaigns", http.StatusSeeOther)
}

// Join handles POST /campaigns/{id}/join for signed-in users. A user may join
// a campaign once; full campaigns reject further registrations.
func (h *CampaignHandler) Join(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id := r.PathValue("id")

	var campaign models.Campaign
	if err := h.DB.First(&campaign, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_campaign", nil)
		return
	}
	if !campaign.IsActive {
		httpx.JSONError(w, http.StatusConflict, "campaign_inactive", nil)
		return
	}

	var existing int64
	h.DB.Model(&models.CampaignParticipant{}).
		Where("campaign_id = ? AND user_id = ?", id, uid).
		Count(&existing)
	if existing > 0 {
		httpx.JSONError(w, http.StatusConflict, "already_joined", nil)
		return
	}
	if campaign.MaxParticipants != nil {
		var total int64
		h.DB.Model(&models.CampaignParticipant{}).Where("campaign_id = ?", id).Count(&total)
		if total >= int64(*campaign.MaxParticipants) {
			httpx.JSONError(w, http.StatusConflict, "campaign_full", nil)
			return
		}
	}

	p := models.CampaignParticipant{CampaignID: id, UserID: uid}
	if err := h.DB.Create(&p).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_join_campaign", nil)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, p)
		return
	}
	http.Redirect(w, r, "/campaigns", http.StatusSeeOther)
}
