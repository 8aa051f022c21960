package main

import (
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/kepadev/kepa-portal/internal/auth"
	"github.com/kepadev/kepa-portal/internal/handlers"
	"github.com/kepadev/kepa-portal/internal/httpx"
	"github.com/kepadev/kepa-portal/internal/models"
	"github.com/kepadev/kepa-portal/internal/policy"
	"github.com/kepadev/kepa-portal/internal/services"
	"github.com/kepadev/kepa-portal/internal/view"
)

// publicStats are the figures shown on the public home page when the
// reporting job has not produced an analytics row yet. Same numbers the
// portal has always displayed.
var publicStats = map[string]any{
	"TotalRequests":  1234,
	"WasteCollected": 45.2,
	"ActiveUsers":    2847,
	"CO2Saved":       128,
}

// App is the main application handler that sets up all routes.
type App struct {
	mux    *http.ServeMux
	db     *gorm.DB
	pol    *policy.Resolver
	reqSvc *services.RequestService
}

// NewApp creates the application with all routes configured.
func NewApp(db *gorm.DB) *App {
	app := &App{
		mux:    http.NewServeMux(),
		db:     db,
		pol:    policy.NewResolver(db, 5*time.Minute),
		reqSvc: services.NewRequestService(db),
	}
	// Expose role predicates to templates without importing policy there.
	view.SetIsStaffResolver(func(r *http.Request) bool { return app.pol.IsStaff(r.Context()) })
	view.SetIsAdminResolver(func(r *http.Request) bool { return app.pol.IsAdmin(r.Context()) })
	view.SetUserNameResolver(func(r *http.Request) string {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			return ""
		}
		var p models.Profile
		if err := db.Where("user_id = ?", uid).First(&p).Error; err != nil {
			return ""
		}
		return p.FullName
	})
	app.setupRoutes()
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth.Middleware(a.mux).ServeHTTP(w, r)
}

func (a *App) setupRoutes() {
	ah := handlers.NewAuthHandler(a.db)
	ph := handlers.NewProfileHandler(a.db)
	rh := handlers.NewRequestHandler(a.reqSvc, a.pol)
	ch := handlers.NewCampaignHandler(a.db)
	nh := handlers.NewNotificationHandler(a.db)

	// Public routes
	a.mux.HandleFunc("GET /{$}", a.homePage)
	a.mux.HandleFunc("GET /signup", ah.Signup)
	a.mux.HandleFunc("POST /signup", ah.Signup)
	a.mux.HandleFunc("GET /login", ah.Login)
	a.mux.HandleFunc("POST /login", ah.Login)
	a.mux.HandleFunc("GET /staff-login", ah.StaffLogin)
	a.mux.HandleFunc("POST /staff-login", ah.StaffLogin)
	a.mux.HandleFunc("GET /logout", ah.Logout)
	a.mux.HandleFunc("POST /logout", ah.Logout)

	// Pickup requests. Creation is open to anonymous submitters (the form
	// collects contact details instead); the list is role-dependent inside
	// the handler; mutations are staff-only.
	a.mux.HandleFunc("POST /requests", rh.Create)
	a.mux.HandleFunc("GET /requests", rh.List)
	a.mux.Handle("POST /requests/{id}/approve", a.requireStaff(http.HandlerFunc(rh.Approve)))
	a.mux.Handle("POST /requests/{id}/schedule", a.requireStaff(http.HandlerFunc(rh.Schedule)))
	a.mux.Handle("POST /requests/{id}/delay", a.requireStaff(http.HandlerFunc(rh.Delay)))
	a.mux.Handle("POST /requests/{id}/delete", a.requireStaff(http.HandlerFunc(rh.Delete)))

	// Profile
	a.mux.Handle("GET /profile", a.requireAuth("/login", http.HandlerFunc(ph.Get)))
	a.mux.Handle("POST /profile", a.requireAuth("/login", http.HandlerFunc(ph.Update)))

	// Campaigns: public list, admin create, signed-in join.
	a.mux.HandleFunc("GET /campaigns", ch.List)
	a.mux.Handle("POST /campaigns", a.requireAdmin(http.HandlerFunc(ch.Create)))
	a.mux.Handle("POST /campaigns/{id}/join", a.requireAuth("/login", http.HandlerFunc(ch.Join)))

	// Notifications
	a.mux.Handle("GET /notifications", a.requireAuth("/login", http.HandlerFunc(nh.List)))
	a.mux.Handle("POST /notifications/{id}/read", a.requireAuth("/login", http.HandlerFunc(nh.MarkRead)))

	// Staff area
	a.mux.Handle("GET /staff", a.requireStaff(http.HandlerFunc(a.staffDashboard)))
	a.mux.Handle("GET /schedules", a.requireStaff(http.HandlerFunc(a.schedulesPage)))
	a.mux.Handle("GET /analytics", a.requireStaff(http.HandlerFunc(a.analyticsPage)))

	// Static files and catch-all
	a.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	a.mux.HandleFunc("/", a.notFound)
}

// Middleware wrappers

func (a *App) requireAuth(loginPath string, next http.Handler) http.Handler {
	return auth.RequireAuth(loginPath, next)
}

func (a *App) requireStaff(next http.Handler) http.Handler {
	return auth.RequireAuth("/staff-login", a.pol.RequireStaff(next))
}

func (a *App) requireAdmin(next http.Handler) http.Handler {
	return auth.RequireAuth("/staff-login", a.pol.RequireAdmin(next))
}

// Page handlers

func (a *App) homePage(w http.ResponseWriter, r *http.Request) {
	_, loggedIn := auth.UserIDFromContext(r.Context())
	data := map[string]any{"IsLoggedIn": loggedIn, "Stats": publicStats}
	if latest, err := a.reqSvc.LatestAnalytics(r.Context()); err == nil && latest != nil {
		data["Stats"] = map[string]any{
			"TotalRequests":  latest.TotalRequests,
			"WasteCollected": latest.TotalWeightKg / 1000, // tonnes on the hero banner
			"ActiveUsers":    latest.ActiveUsers,
			"CO2Saved":       latest.CO2SavedKg,
		}
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, data)
		return
	}
	if err := view.Render(w, r, "index.html", data); err != nil {
		http.Error(w, "Failed to render template: "+err.Error(), http.StatusInternalServerError)
	}
}

func (a *App) staffDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := a.reqSvc.Stats(r.Context())
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_stats", nil)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, stats)
		return
	}
	data := map[string]any{"Stats": stats}
	uid, _ := auth.UserIDFromContext(r.Context())
	var profile models.Profile
	if err := a.db.Where("user_id = ?", uid).First(&profile).Error; err == nil {
		data["Profile"] = profile
	}
	if err := view.Render(w, r, "dashboard.html", data); err != nil {
		http.Error(w, "Failed to render template: "+err.Error(), http.StatusInternalServerError)
	}
}

func (a *App) schedulesPage(w http.ResponseWriter, r *http.Request) {
	// Placeholder: schedule assignment is handled by field operations.
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": []any{}})
		return
	}
	_ = view.Render(w, r, "schedules.html", nil)
}

func (a *App) analyticsPage(w http.ResponseWriter, r *http.Request) {
	latest, err := a.reqSvc.LatestAnalytics(r.Context())
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_analytics", nil)
		return
	}
	if httpx.WantsJSON(r) {
		if latest == nil {
			httpx.JSON(w, http.StatusOK, publicStats)
			return
		}
		httpx.JSON(w, http.StatusOK, latest)
		return
	}
	_ = view.Render(w, r, "analytics.html", map[string]any{"Summary": latest, "Fallback": publicStats})
}

func (a *App) notFound(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	_ = view.Render(w, r, "notfound.html", nil)
}
