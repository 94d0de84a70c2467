package security

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	SessionCookieName = "session_id"
	ChildCookieName   = "child_id"
	OAuthStateCookie  = "oauth_state"
)

// GenerateSessionID creates a new UUID for session identification
func GenerateSessionID() string {
	return uuid.New().String()
}

// IsSecureRequest reports whether the request arrived over HTTPS, directly
// or through a reverse proxy that sets X-Forwarded-Proto.
func IsSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if r.Header.Get("X-Forwarded-Proto") == "https" {
		return true
	}
	return r.URL.Scheme == "https"
}

// CreateSessionCookie creates an HttpOnly cookie, Secure when the request is HTTPS
func CreateSessionCookie(r *http.Request, name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   IsSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}

// CreateDeleteCookie creates a cookie that removes name from the browser
func CreateDeleteCookie(r *http.Request, name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   IsSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}
