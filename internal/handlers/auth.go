package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kepadev/kepa-portal/internal/auth"
	"github.com/kepadev/kepa-portal/internal/httpx"
	"github.com/kepadev/kepa-portal/internal/models"
	"github.com/kepadev/kepa-portal/internal/validation"
	"github.com/kepadev/kepa-portal/internal/view"
)

type AuthHandler struct {
	DB *gorm.DB
}

func NewAuthHandler(db *gorm.DB) *AuthHandler { return &AuthHandler{DB: db} }

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func readCredentials(r *http.Request) credentials {
	var c credentials
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(r.Body).Decode(&c)
	} else if err := r.ParseForm(); err == nil {
		c.Email = r.FormValue("email")
		c.Password = r.FormValue("password")
		c.FullName = r.FormValue("full_name")
	}
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.FullName = strings.TrimSpace(c.FullName)
	return c
}

func renderOrJSONError(w http.ResponseWriter, r *http.Request, tpl string, status int, code string, details any) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, status, code, details)
		return
	}
	_ = view.Render(w, r, tpl, map[string]any{"Error": strings.ReplaceAll(code, "_", " "), "Details": details})
}

// Signup handles GET (form) and POST (create account). A profile row with the
// submitted full name and zero points plus a resident role row are created in
// the same transaction as the user.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		_ = view.Render(w, r, "signup.html", nil)
		return
	}
	c := readCredentials(r)
	v := validation.Violations{}
	validation.Required("email", c.Email, v)
	if c.Email != "" {
		validation.Email("email", c.Email, v)
	}
	validation.Required("full_name", c.FullName, v)
	validation.MinLen("password", c.Password, 6, v)
	if !v.Empty() {
		renderOrJSONError(w, r, "signup.html", http.StatusBadRequest, "validation_failed", v)
		return
	}

	var count int64
	h.DB.Model(&models.User{}).Where("email = ?", c.Email).Count(&count)
	if count > 0 {
		// Pattern the UI matches on to send the user to sign-in instead.
		renderOrJSONError(w, r, "signup.html", http.StatusConflict, "already_registered", nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
	if err != nil {
		renderOrJSONError(w, r, "signup.html", http.StatusInternalServerError, "internal_error", nil)
		return
	}
	user := models.User{Email: c.Email, Password: string(hash)}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.Profile{UserID: user.ID, FullName: c.FullName}).Error; err != nil {
			return err
		}
		return tx.Create(&models.UserRole{UserID: user.ID, Role: models.RoleResident}).Error
	})
	if err != nil {
		renderOrJSONError(w, r, "signup.html", http.StatusInternalServerError, "could_not_create_account", nil)
		return
	}
	auth.CreateSession(w, user.ID)
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, map[string]string{"id": user.ID, "email": user.Email})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Login handles GET (form) and POST for the resident sign-in page.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, "login.html", "/")
}

// StaffLogin is the same credential check behind the staff portal entry; on
// success it lands on the staff dashboard, which enforces the role gate.
func (h *AuthHandler) StaffLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, "staff_login.html", "/staff")
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, tpl, target string) {
	if r.Method == http.MethodGet {
		_ = view.Render(w, r, tpl, nil)
		return
	}
	c := readCredentials(r)
	if c.Email == "" || c.Password == "" {
		renderOrJSONError(w, r, tpl, http.StatusBadRequest, "email_and_password_required", nil)
		return
	}
	var user models.User
	if err := h.DB.Where("email = ?", c.Email).First(&user).Error; err != nil {
		renderOrJSONError(w, r, tpl, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(c.Password)) != nil {
		renderOrJSONError(w, r, tpl, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	auth.CreateSession(w, user.ID)
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]string{"id": user.ID, "email": user.Email})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Logout clears the session. Best-effort: there is nothing to fail.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
