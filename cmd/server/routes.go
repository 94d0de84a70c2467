package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"napdiary/internal/handlers"
)

func (app *application) routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(handlers.RequestID)
	mux.Use(handlers.Logging(app.logger))
	mux.Use(handlers.Recover)

	mw := app.middleware

	// signedIn covers every page behind login; POSTs also need a CSRF token
	signedIn := func(next http.HandlerFunc) http.HandlerFunc {
		return mw.RequireAuth(mw.CSRFProtect(next))
	}
	diary := func(next http.HandlerFunc) http.HandlerFunc {
		return signedIn(mw.RequireChild(next))
	}
	admin := func(next http.HandlerFunc) http.HandlerFunc {
		return mw.RequireAdmin(mw.CSRFProtect(next))
	}

	mux.Get("/healthz", app.handleHealth)

	mux.Get("/login", app.authHandler.ShowLogin)
	mux.Post("/login", mw.RateLimit(app.authHandler.Login))
	mux.Get("/register", app.authHandler.ShowRegister)
	mux.Post("/register", mw.RateLimit(app.authHandler.Register))
	mux.Post("/logout", signedIn(app.authHandler.Logout))
	mux.Get("/auth/{provider}/start", app.authHandler.StartOAuth)
	mux.Get("/auth/{provider}/callback", mw.RateLimit(app.authHandler.OAuthCallback))

	mux.Get("/children", signedIn(app.childHandler.ShowChildren))
	mux.Post("/children", signedIn(app.childHandler.CreateChild))
	mux.Post("/children/{id}/select", signedIn(app.childHandler.SelectChild))
	mux.Post("/children/{id}/guardians", signedIn(app.childHandler.AddGuardian))

	mux.Get("/", diary(app.napHandler.Today))
	mux.Get("/day/{date}", diary(app.napHandler.Day))
	mux.Get("/naps/new", diary(app.napHandler.ShowAddNap))
	mux.Post("/naps/new", diary(app.napHandler.AddNap))
	mux.Get("/night-naps/new", diary(app.napHandler.ShowNightNap))
	mux.Post("/night-naps/new", diary(app.napHandler.SaveNightNap))
	mux.Get("/calendar", diary(app.napHandler.Calendar))
	mux.Get("/statistics", diary(app.napHandler.Statistics))

	mux.Get("/admin", admin(app.adminHandler.ShowUsers))
	mux.Post("/admin/users/{id}/active", admin(app.adminHandler.SetUserActive))
	mux.Get("/admin/export", admin(app.adminHandler.ExportDatabase))

	app.logger.Debug("routes configured", "routes", chiRoutesToStrings(mux.Routes()))

	return mux
}

func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := app.db.PingContext(ctx); err != nil {
		app.logger.Error("health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func chiRoutesToStrings(routes []chi.Route) []string {
	parsedRoutes := make([]string, 0, len(routes))
	for _, route := range routes {
		parsedRoutes = append(parsedRoutes, route.Pattern)
	}
	return parsedRoutes
}
