package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"napdiary/internal/service"
)

// AdminHandler handles admin-related HTTP requests
type AdminHandler struct {
	authService AuthService
	exporter    Exporter
	mw          *Middleware
	templates   *template.Template
	now         func() time.Time
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(authService AuthService, exporter Exporter, mw *Middleware, templates *template.Template) *AdminHandler {
	return &AdminHandler{
		authService: authService,
		exporter:    exporter,
		mw:          mw,
		templates:   templates,
		now:         time.Now,
	}
}

// ShowUsers lists every account with its roles
func (h *AdminHandler) ShowUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.ListUsers(r.Context())
	if err != nil {
		respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Failed to list users", err)
		return
	}

	data := AdminUsersViewData{
		Page:  h.mw.newPage(r, "Users"),
		Users: users,
	}
	render(w, r, h.templates, "users.tmpl", http.StatusOK, data)
}

// SetUserActive enables or disables another user's account
func (h *AdminHandler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}
	active, err := strconv.ParseBool(r.FormValue("active"))
	if err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	admin := GetUserFromContext(r.Context())
	if admin.ID == userID {
		http.Error(w, "You cannot change your own account status", http.StatusBadRequest)
		return
	}

	if err := h.authService.SetUserActive(r.Context(), userID, active); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondWithError(w, r, http.StatusNotFound, ErrNotFound, "", nil)
			return
		}
		respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Failed to update user", err)
		return
	}

	loggerFrom(r.Context()).Info("user status changed", "target_user_id", userID, "active", active)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// ExportDatabase downloads the whole database as JSON
func (h *AdminHandler) ExportDatabase(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.exporter.Export(r.Context(), &buf); err != nil {
		respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Failed to export database", err)
		return
	}

	filename := fmt.Sprintf("napdiary_backup_%s.json", h.now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	size, _ := buf.WriteTo(w)

	loggerFrom(r.Context()).Info("database exported", "bytes", size)
}
