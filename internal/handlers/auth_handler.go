package handlers

import (
	"errors"
	"html/template"
	"net/http"

	"napdiary/internal/security"
	"napdiary/internal/service"
	"napdiary/internal/validation"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService          AuthService
	mw                   *Middleware
	templates            *template.Template
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService AuthService, mw *Middleware, templates *template.Template, oauthProviders map[string]OAuthProvider, oauthRedirectBaseURL string) *AuthHandler {
	return &AuthHandler{
		authService:          authService,
		mw:                   mw,
		templates:            templates,
		oauthProviders:       oauthProviders,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
	}
}

// loggedIn reports whether the request carries a live session
func (h *AuthHandler) loggedIn(r *http.Request) bool {
	cookie, err := r.Cookie(security.SessionCookieName)
	if err != nil {
		return false
	}
	_, err = h.authService.ValidateSession(r.Context(), cookie.Value)
	return err == nil
}

// ShowLogin renders the login page
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	if h.loggedIn(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, "", "")
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, email, message string) {
	data := LoginViewData{
		Page:           h.mw.newPage(r, "Log in"),
		OAuthProviders: h.oauthProviderViews(),
		Email:          email,
	}
	data.Error = message
	render(w, r, h.templates, "login.tmpl", status, data)
}

// Login handles login form submission
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	email := r.FormValue("email")
	session, _, err := h.authService.Login(r.Context(), email, r.FormValue("password"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrUserInactive) {
			loggerFrom(r.Context()).Info("login rejected", "reason", err)
			h.renderLogin(w, r, http.StatusUnauthorized, email, err.Error())
			return
		}
		respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Failed to log in", err)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, security.SessionCookieName, session.ID, session.ExpiresAt))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ShowRegister renders the registration page
func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	if h.loggedIn(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderRegister(w, r, http.StatusOK, "", "")
}

func (h *AuthHandler) renderRegister(w http.ResponseWriter, r *http.Request, status int, email, message string) {
	data := RegisterViewData{
		Page:           h.mw.newPage(r, "Register"),
		OAuthProviders: h.oauthProviderViews(),
		Email:          email,
	}
	data.Error = message
	render(w, r, h.templates, "register.tmpl", status, data)
}

// Register handles registration form submission and logs the new user in
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")

	if _, err := h.authService.Register(r.Context(), email, password); err != nil {
		var verr validation.ValidationError
		switch {
		case errors.As(err, &verr):
			h.renderRegister(w, r, http.StatusBadRequest, email, verr.Error())
		case errors.Is(err, service.ErrEmailTaken):
			h.renderRegister(w, r, http.StatusConflict, email, err.Error())
		default:
			respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Failed to register", err)
		}
		return
	}

	session, _, err := h.authService.Login(r.Context(), email, password)
	if err != nil {
		loggerFrom(r.Context()).Warn("auto login after registration failed", "error", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, security.SessionCookieName, session.ID, session.ExpiresAt))
	http.Redirect(w, r, "/children", http.StatusSeeOther)
}

// Logout ends the session and clears the session and child cookies
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(security.SessionCookieName); err == nil {
		if err := h.authService.Logout(r.Context(), cookie.Value); err != nil {
			loggerFrom(r.Context()).Warn("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, security.CreateDeleteCookie(r, security.SessionCookieName))
	http.SetCookie(w, security.CreateDeleteCookie(r, security.ChildCookieName))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
