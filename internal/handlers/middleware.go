package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"napdiary/internal/ctxstore"
	"napdiary/internal/models"
	"napdiary/internal/security"
	"napdiary/internal/service"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService  AuthService
	childService ChildService
	csrf         *security.CSRFGenerator
	limiter      *security.RateLimiter
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(authService AuthService, childService ChildService, csrf *security.CSRFGenerator, limiter *security.RateLimiter) *Middleware {
	return &Middleware{
		authService:  authService,
		childService: childService,
		csrf:         csrf,
		limiter:      limiter,
	}
}

// RequireAuth is middleware that requires a valid session
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(security.SessionCookieName)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		user, err := m.authService.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, service.ErrSessionNotFound) &&
				!errors.Is(err, service.ErrSessionExpired) &&
				!errors.Is(err, service.ErrUserInactive) {
				respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Failed to validate session", err)
				return
			}
			http.SetCookie(w, security.CreateDeleteCookie(r, security.SessionCookieName))
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := ctxstore.With(r.Context(), userKey, user)
		ctx = ctxstore.With(ctx, loggerKey, loggerFrom(ctx).With("user_id", user.ID))
		next(w, r.WithContext(ctx))
	}
}

// RequireRole requires a session whose user holds role
func (m *Middleware) RequireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if !GetUserFromContext(r.Context()).HasRole(role) {
			http.Error(w, ErrForbidden, http.StatusForbidden)
			return
		}
		next(w, r)
	})
}

// RequireAdmin requires the admin role
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireRole(models.RoleAdmin, next)
}

// RequireChild resolves the current child from the child cookie, falling back
// to the user's first child. Users without children are sent to /children.
// It must run inside RequireAuth.
func (m *Middleware) RequireChild(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())

		var child *models.Child
		if cookie, err := r.Cookie(security.ChildCookieName); err == nil {
			childID, err := strconv.ParseInt(cookie.Value, 10, 64)
			if err == nil {
				child, err = m.childService.ResolveChild(r.Context(), user.ID, childID)
			}
			if err != nil {
				if !errors.Is(err, service.ErrChildNotFound) &&
					!errors.Is(err, service.ErrNotGuardian) &&
					!errors.Is(err, strconv.ErrSyntax) && !errors.Is(err, strconv.ErrRange) {
					respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Failed to resolve child", err)
					return
				}
				http.SetCookie(w, security.CreateDeleteCookie(r, security.ChildCookieName))
			}
		}

		if child == nil {
			var err error
			child, err = m.childService.DefaultChild(r.Context(), user.ID)
			if err != nil {
				respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Failed to load children", err)
				return
			}
			if child == nil {
				http.Redirect(w, r, "/children", http.StatusSeeOther)
				return
			}
		}

		ctx := ctxstore.With(r.Context(), childKey, child)
		next(w, r.WithContext(ctx))
	}
}

// CSRFProtect validates the CSRF token on state-changing requests.
// It must run inside RequireAuth.
func (m *Middleware) CSRFProtect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next(w, r)
			return
		}

		cookie, err := r.Cookie(security.SessionCookieName)
		if err != nil || !m.csrf.ValidateToken(cookie.Value, security.TokenFromRequest(r)) {
			loggerFrom(r.Context()).Warn("csrf token rejected", "path", r.URL.Path)
			http.Error(w, "Invalid CSRF token", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// CSRFToken returns the token templates embed in forms, or "" without a session
func (m *Middleware) CSRFToken(r *http.Request) string {
	cookie, err := r.Cookie(security.SessionCookieName)
	if err != nil {
		return ""
	}
	token, _ := m.csrf.GenerateToken(cookie.Value)
	return token
}

// RateLimit limits attempts per client IP
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := security.GetClientIP(r)
		if !m.limiter.Allow(ip) {
			loggerFrom(r.Context()).Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, ErrTooManyRequests, http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// RequestID tags each request with an id, reusing a valid incoming X-Request-ID
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := ctxstore.With(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging installs a request-scoped logger and writes an access log line per request
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID, _ := ctxstore.From[string](r.Context(), requestIDKey)
			reqLogger := logger.With(requestIDKey.String(), requestID)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ctx := ctxstore.With(r.Context(), loggerKey, reqLogger)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			reqLogger.Info("access",
				slog.Group("user", "ip", security.GetClientIP(r)),
				slog.Group("request", "method", r.Method, "url", r.URL.String(), "proto", r.Proto),
				slog.Group("response", "status", status, "size", ww.BytesWritten(), "duration", time.Since(start)))
		})
	}
}

// Recover turns a panic into a 500 response
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "panic", fmt.Errorf("%v", rec))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, _ := ctxstore.From[*models.User](ctx, userKey)
	return user
}

// GetChildFromContext retrieves the current child from the request context
func GetChildFromContext(ctx context.Context) *models.Child {
	child, _ := ctxstore.From[*models.Child](ctx, childKey)
	return child
}
