package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kepadev/kepa-portal/internal/auth"
	"github.com/kepadev/kepa-portal/internal/httpx"
	"github.com/kepadev/kepa-portal/internal/policy"
	"github.com/kepadev/kepa-portal/internal/services"
	"github.com/kepadev/kepa-portal/internal/view"
)

// RequestHandler exposes the pickup request lifecycle over HTTP.
type RequestHandler struct {
	Svc    *services.RequestService
	Policy *policy.Resolver
}

func NewRequestHandler(svc *services.RequestService, pol *policy.Resolver) *RequestHandler {
	return &RequestHandler{Svc: svc, Policy: pol}
}

type createReq struct {
	WasteType     string   `json:"waste_type"`
	QuantityKg    float64  `json:"quantity_kg"`
	PickupAddress string   `json:"pickup_address"`
	Latitude      *float64 `json:"pickup_latitude"`
	Longitude     *float64 `json:"pickup_longitude"`
	PreferredDate string   `json:"preferred_date"`
	Notes         string   `json:"notes"`
	ContactPhone  string   `json:"contact_phone"`
	ContactEmail  string   `json:"contact_email"`
}

func readCreateReq(r *http.Request) (createReq, bool) {
	var req createReq
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, false
		}
		return req, true
	}
	if err := r.ParseForm(); err != nil {
		return req, false
	}
	req.WasteType = r.FormValue("waste_type")
	if v := r.FormValue("quantity_kg"); v != "" {
		req.QuantityKg, _ = strconv.ParseFloat(v, 64)
	}
	req.PickupAddress = r.FormValue("pickup_address")
	req.PreferredDate = r.FormValue("preferred_date")
	req.Notes = r.FormValue("notes")
	req.ContactPhone = r.FormValue("contact_phone")
	req.ContactEmail = r.FormValue("contact_email")
	return req, true
}

// Create handles POST /requests. Anonymous submissions are accepted; the
// service requires contact details for them.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := readCreateReq(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_request_body", nil)
		return
	}

	var userID *string
	if uid, ok := auth.UserIDFromContext(r.Context()); ok {
		userID = &uid
	}

	in := services.CreateInput{
		WasteType:     req.WasteType,
		QuantityKg:    req.QuantityKg,
		PickupAddress: req.PickupAddress,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Notes:         req.Notes,
		ContactPhone:  req.ContactPhone,
		ContactEmail:  req.ContactEmail,
	}
	if req.PreferredDate != "" {
		if d, err := time.Parse("2006-01-02", req.PreferredDate); err == nil {
			in.PreferredDate = &d
		}
	}

	created, violations, err := h.Svc.Create(r.Context(), userID, in)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_request", nil)
		return
	}
	if violations != nil {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", violations)
			return
		}
		_ = view.Render(w, r, "index.html", map[string]any{"Error": "Please fill in all required fields", "Violations": violations})
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, created)
		return
	}
	http.Redirect(w, r, "/requests", http.StatusSeeOther)
}

// List handles GET /requests. Staff see the full queue (optionally filtered
// by ?year=&month=); residents see their own requests; anonymous callers are
// asked to sign in.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, signedIn := auth.UserIDFromContext(r.Context())
	if !signedIn {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		_ = view.Render(w, r, "requests.html", map[string]any{"SignInRequired": true})
		return
	}

	if h.Policy.IsStaff(r.Context()) {
		h.listStaff(w, r)
		return
	}

	reqs, err := h.Svc.ListByUser(r.Context(), uid)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_requests", nil)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": reqs, "total": len(reqs)})
		return
	}
	_ = view.Render(w, r, "requests.html", map[string]any{"Requests": reqs, "Mine": true})
}

func (h *RequestHandler) listStaff(w http.ResponseWriter, r *http.Request) {
	var (
		rows []services.RequestRow
		err  error
	)
	q := r.URL.Query()
	yearStr, monthStr := q.Get("year"), q.Get("month")
	filtered := yearStr != "" && monthStr != ""
	if filtered {
		year, yerr := strconv.Atoi(yearStr)
		month, merr := strconv.Atoi(monthStr)
		if yerr != nil || merr != nil || month < 1 || month > 12 {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_month_filter", nil)
			return
		}
		rows, err = h.Svc.ListMonth(r.Context(), year, time.Month(month))
	} else {
		rows, err = h.Svc.ListAll(r.Context())
	}
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_requests", nil)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": rows, "total": len(rows)})
		return
	}
	_ = view.Render(w, r, "requests.html", map[string]any{
		"Requests": rows, "Staff": true, "Filtered": filtered,
		"Year": yearStr, "Month": monthStr,
	})
}

// Approve handles POST /requests/{id}/approve (staff gated in the router).
func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	updated, err := h.Svc.Approve(r.Context(), r.PathValue("id"))
	h.writeTransitionResult(w, r, updated, err)
}

// Schedule handles POST /requests/{id}/schedule with an optional
// scheduled_date (YYYY-MM-DD).
func (h *RequestHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var date *time.Time
	var body struct {
		ScheduledDate string `json:"scheduled_date"`
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(r.Body).Decode(&body)
	} else if err := r.ParseForm(); err == nil {
		body.ScheduledDate = r.FormValue("scheduled_date")
	}
	if body.ScheduledDate != "" {
		if d, err := time.Parse("2006-01-02", body.ScheduledDate); err == nil {
			date = &d
		}
	}
	updated, err := h.Svc.Schedule(r.Context(), r.PathValue("id"), date)
	h.writeTransitionResult(w, r, updated, err)
}

// Delay handles POST /requests/{id}/delay.
func (h *RequestHandler) Delay(w http.ResponseWriter, r *http.Request) {
	updated, err := h.Svc.Delay(r.Context(), r.PathValue("id"))
	h.writeTransitionResult(w, r, updated, err)
}

// Delete handles POST /requests/{id}/delete. No status precondition.
func (h *RequestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.Svc.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, services.ErrNotFound) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_request", nil)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		return
	}
	http.Redirect(w, r, "/requests", http.StatusSeeOther)
}

func (h *RequestHandler) writeTransitionResult(w http.ResponseWriter, r *http.Request, updated any, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, services.ErrInvalidTransition):
		httpx.JSONError(w, http.StatusConflict, "invalid_status_transition", nil)
	case err != nil:
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_request", nil)
	default:
		if httpx.WantsJSON(r) {
			httpx.JSON(w, http.StatusOK, updated)
			return
		}
		http.Redirect(w, r, "/requests", http.StatusSeeOther)
	}
}
