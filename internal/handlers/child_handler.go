package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"napdiary/internal/security"
	"napdiary/internal/service"
	"napdiary/internal/validation"
)

// _childCookieTTL keeps the selected child for a year
const _childCookieTTL = 365 * 24 * time.Hour

// ChildHandler manages children and their guardians
type ChildHandler struct {
	childService ChildService
	mw           *Middleware
	templates    *template.Template
}

// NewChildHandler creates a new child handler
func NewChildHandler(childService ChildService, mw *Middleware, templates *template.Template) *ChildHandler {
	return &ChildHandler{
		childService: childService,
		mw:           mw,
		templates:    templates,
	}
}

// ShowChildren lists the user's children with their guardians
func (h *ChildHandler) ShowChildren(w http.ResponseWriter, r *http.Request) {
	h.renderChildren(w, r, http.StatusOK, validation.ChildInput{}, "")
}

func (h *ChildHandler) renderChildren(w http.ResponseWriter, r *http.Request, status int, form validation.ChildInput, message string) {
	user := GetUserFromContext(r.Context())

	children, err := h.childService.ListChildren(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Failed to list children", err)
		return
	}

	data := ChildrenViewData{
		Page:     h.mw.newPage(r, "Children"),
		Children: children,
		Form:     form,
	}
	data.Error = message
	render(w, r, h.templates, "children.tmpl", status, data)
}

// CreateChild adds a child with the current user as its first guardian and selects it
func (h *ChildHandler) CreateChild(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	form := validation.ChildInput{
		FirstName:   r.FormValue("first_name"),
		LastName:    r.FormValue("last_name"),
		DateOfBirth: r.FormValue("date_of_birth"),
	}

	child, err := h.childService.CreateChild(r.Context(), GetUserFromContext(r.Context()), form)
	if err != nil {
		var verr validation.ValidationError
		if errors.As(err, &verr) {
			h.renderChildren(w, r, http.StatusBadRequest, form, verr.Error())
			return
		}
		respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Failed to create child", err)
		return
	}

	setChildCookie(w, r, child.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SelectChild makes the child the current one for this browser
func (h *ChildHandler) SelectChild(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDParam(w, r)
	if !ok {
		return
	}

	if _, err := h.childService.ResolveChild(r.Context(), GetUserFromContext(r.Context()).ID, childID); err != nil {
		h.childError(w, r, "Failed to select child", err)
		return
	}

	setChildCookie(w, r, childID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// AddGuardian shares a child with another registered user
func (h *ChildHandler) AddGuardian(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDParam(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	err := h.childService.AddGuardian(r.Context(), GetUserFromContext(r.Context()), childID, r.FormValue("email"))
	if err != nil {
		var verr validation.ValidationError
		switch {
		case errors.As(err, &verr):
			h.renderChildren(w, r, http.StatusBadRequest, validation.ChildInput{}, verr.Error())
		case errors.Is(err, service.ErrGuardianNotFound), errors.Is(err, service.ErrAlreadyGuardian):
			h.renderChildren(w, r, http.StatusUnprocessableEntity, validation.ChildInput{}, err.Error())
		default:
			h.childError(w, r, "Failed to add guardian", err)
		}
		return
	}

	http.Redirect(w, r, "/children", http.StatusSeeOther)
}

// childError maps ownership failures to 404 so other families' ids are not revealed
func (h *ChildHandler) childError(w http.ResponseWriter, r *http.Request, logMsg string, err error) {
	if errors.Is(err, service.ErrChildNotFound) || errors.Is(err, service.ErrNotGuardian) {
		respondWithError(w, r, http.StatusNotFound, ErrNotFound, logMsg, err)
		return
	}
	respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, logMsg, err)
}

func childIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	childID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || childID <= 0 {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return 0, false
	}
	return childID, true
}

func setChildCookie(w http.ResponseWriter, r *http.Request, childID int64) {
	http.SetCookie(w, security.CreateSessionCookie(r, security.ChildCookieName, strconv.FormatInt(childID, 10), time.Now().Add(_childCookieTTL)))
}
