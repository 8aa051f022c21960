package view

import (
	"errors"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kepadev/kepa-portal/internal/models"
)

var (
	baseDir  string
	once     sync.Once
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}

	// role resolvers are injected by the host app so templates can gate
	// staff-only affordances without importing the policy package here.
	isStaffResolver = func(*http.Request) bool { return false }
	isAdminResolver = func(*http.Request) bool { return false }
	userNameResolver = func(*http.Request) string { return "" }
)

// SetIsStaffResolver sets the callback templates use for staff-only sections.
func SetIsStaffResolver(f func(*http.Request) bool) {
	if f != nil {
		isStaffResolver = f
	}
}

// SetIsAdminResolver sets the callback templates use for admin-only sections.
func SetIsAdminResolver(f func(*http.Request) bool) {
	if f != nil {
		isAdminResolver = f
	}
}

// SetUserNameResolver sets the callback that supplies the signed-in user's
// display name for the navigation bar.
func SetUserNameResolver(f func(*http.Request) string) {
	if f != nil {
		userNameResolver = f
	}
}

func detectBase() {
	candidates := []string{"templates", "../templates", "../../templates"}
	for _, c := range candidates {
		if fi, err := os.Stat(filepath.Clean(c)); err == nil && fi.IsDir() {
			baseDir = filepath.Clean(c)
			return
		}
	}
	baseDir = "templates"
}

// Funcs returns the shared template helpers.
func Funcs(r *http.Request) template.FuncMap {
	return template.FuncMap{
		"year":    func() int { return time.Now().Year() },
		"isStaff": func() bool { return isStaffResolver(r) },
		"isAdmin": func() bool { return isAdminResolver(r) },
		"userName": func() string { return userNameResolver(r) },
		"wasteTypes": func() []models.WasteType { return models.WasteTypes },
		// statusLabel renders "in_progress" as "In progress" for badges.
		"statusLabel": func(s models.PickupStatus) string {
			out := strings.ReplaceAll(string(s), "_", " ")
			if out == "" {
				return out
			}
			return strings.ToUpper(out[:1]) + out[1:]
		},
		"fmtDate": func(t time.Time) string { return t.Format("02 Jan 2006") },
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

// Render parses and executes a template file with the shared funcs, wrapping
// it in layout.html when one is present. name is the filename, e.g.
// "dashboard.html". Parsed templates are cached outside DEV mode.
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	once.Do(detectBase)
	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["Year"]; !exists {
		data["Year"] = time.Now().Year()
	}
	key := name
	devMode := os.Getenv("DEV") == "1"
	if !devMode {
		tplCache.RLock()
		t, ok := tplCache.m[key]
		tplCache.RUnlock()
		if ok && t != nil {
			return execute(t, w, r, data)
		}
	}

	mainPath := filepath.Join(baseDir, name)
	if _, err := os.Stat(mainPath); err != nil {
		return err
	}
	layoutPath := filepath.Join(baseDir, "layout.html")
	funcMap := Funcs(r)

	var t *template.Template
	if fi, err := os.Stat(layoutPath); err == nil && !fi.IsDir() && name != "layout.html" {
		parsed, err := template.New("layout.html").Funcs(funcMap).ParseFiles(layoutPath, mainPath)
		if err != nil {
			return err
		}
		t = parsed
	} else {
		parsed, err := template.New(name).Funcs(funcMap).ParseFiles(mainPath)
		if err != nil {
			return err
		}
		t = parsed
	}
	if !devMode {
		tplCache.Lock()
		tplCache.m[key] = t
		tplCache.Unlock()
	}
	if t == nil {
		return errors.New("template not cached")
	}
	return execute(t, w, r, data)
}

// execute rebinds the request-scoped funcs on a clone so cached templates
// never leak one request's identity into another's page.
func execute(t *template.Template, w http.ResponseWriter, r *http.Request, data map[string]any) error {
	tt, err := t.Clone()
	if err != nil {
		return err
	}
	return tt.Funcs(Funcs(r)).Execute(w, data)
}
