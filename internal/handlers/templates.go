package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"napdiary/internal/models"
)

var templatePatterns = []string{
	"base.tmpl",
	"auth/*.tmpl",
	"naps/*.tmpl",
	"children/*.tmpl",
	"admin/*.tmpl",
}

// LoadTemplates parses every page template from fsys. Pages are looked up by
// file name, e.g. "login.tmpl".
func LoadTemplates(fsys fs.FS) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(fsys, templatePatterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(d models.Date) string {
			if d.IsZero() {
				return ""
			}
			return d.Time().Format("Mon, Jan 2 2006")
		},
		"shortWeekday": func(d time.Weekday) string {
			return d.String()[:3]
		},
		"minutes": func(m int) string {
			return models.FormatDuration(time.Duration(m) * time.Minute)
		},
		"percent": func(value, total int) int {
			if total <= 0 {
				return 0
			}
			return value * 100 / total
		},
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
	}
}

// render writes the page with status, or a 500 when the template fails
func render(w http.ResponseWriter, r *http.Request, templates *template.Template, name string, status int, data interface{}) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Error rendering "+name, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// newPage fills the layout fields from the request context
func (m *Middleware) newPage(r *http.Request, title string) Page {
	return Page{
		Title:     title + " - Nap Diary",
		User:      GetUserFromContext(r.Context()),
		Child:     GetChildFromContext(r.Context()),
		CSRFToken: m.CSRFToken(r),
	}
}
