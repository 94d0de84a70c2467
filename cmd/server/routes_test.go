package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"napdiary/internal/config"
	"napdiary/internal/database"
	"napdiary/internal/security"
	"napdiary/migrations"
)

const testSecret = "routes-test-secret"

func newTestApp(t *testing.T) http.Handler {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "napdiary.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), migrations.Files))

	cfg := &config.Config{
		Env:             "test",
		SessionDuration: time.Hour,
		SecretKey:       testSecret,
		LoginRateLimit:  20,
		WeekStart:       time.Monday,
		Location:        time.UTC,
	}

	app, err := newApplication(context.Background(), cfg, logger, db)
	require.NoError(t, err)
	return app.routes()
}

type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, cookie := range b.cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge < 0 {
			delete(b.cookies, cookie.Name)
			continue
		}
		b.cookies[cookie.Name] = cookie
	}
	return rec
}

func (b *browser) csrf() string {
	b.t.Helper()
	session, ok := b.cookies[security.SessionCookieName]
	require.True(b.t, ok, "no session cookie")
	token, err := security.NewCSRFGenerator(testSecret).GenerateToken(session.Value)
	require.NoError(b.t, err)
	return token
}

func TestHealthz(t *testing.T) {
	b := &browser{t: t, handler: newTestApp(t), cookies: map[string]*http.Cookie{}}

	rec := b.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestDiaryFlow(t *testing.T) {
	b := &browser{t: t, handler: newTestApp(t), cookies: map[string]*http.Cookie{}}

	rec := b.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = b.do(http.MethodPost, "/register", url.Values{"email": {"Parent@Example.com"}, "password": {"correct horse"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/children", rec.Header().Get("Location"))

	// No child yet
	rec = b.do(http.MethodGet, "/calendar", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/children", rec.Header().Get("Location"))

	rec = b.do(http.MethodPost, "/children", url.Values{"first_name": {"Ada"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = b.do(http.MethodPost, "/children", url.Values{"csrf_token": {b.csrf()}, "first_name": {"Ada"}, "date_of_birth": {"2023-12-10"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Contains(t, b.cookies, security.ChildCookieName)

	rec = b.do(http.MethodPost, "/naps/new", url.Values{
		"csrf_token": {b.csrf()},
		"date":       {"2024-03-05"},
		"start":      {"13:00"},
		"end":        {"14:30"},
		"problem":    {"crying"},
		"place":      {"stroll"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/day/2024-03-05", rec.Header().Get("Location"))

	rec = b.do(http.MethodPost, "/night-naps/new", url.Values{
		"csrf_token":  {b.csrf()},
		"date":        {"2024-03-05"},
		"wake_up":     {"06:30"},
		"fall_asleep": {"19:15"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = b.do(http.MethodGet, "/day/2024-03-05", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ada")
	assert.Contains(t, rec.Body.String(), "1:30")
	assert.Contains(t, rec.Body.String(), "Woke up at 06:30, fell asleep at 19:15.")

	rec = b.do(http.MethodGet, "/calendar?year=2024&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `title="Crying"`)

	rec = b.do(http.MethodGet, "/statistics?year=2024&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1 naps, 1:30 in total.")

	// The first account is the administrator
	rec = b.do(http.MethodGet, "/admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "parent@example.com")

	rec = b.do(http.MethodGet, "/admin/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"notes"`)

	rec = b.do(http.MethodPost, "/logout", url.Values{"csrf_token": {b.csrf()}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotContains(t, b.cookies, security.SessionCookieName)

	rec = b.do(http.MethodGet, "/", nil)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestSecondAccountIsNotAdmin(t *testing.T) {
	handler := newTestApp(t)
	first := &browser{t: t, handler: handler, cookies: map[string]*http.Cookie{}}
	second := &browser{t: t, handler: handler, cookies: map[string]*http.Cookie{}}

	require.Equal(t, http.StatusSeeOther, first.do(http.MethodPost, "/register", url.Values{"email": {"one@example.com"}, "password": {"password-one"}}).Code)
	require.Equal(t, http.StatusSeeOther, second.do(http.MethodPost, "/register", url.Values{"email": {"two@example.com"}, "password": {"password-two"}}).Code)

	assert.Equal(t, http.StatusForbidden, second.do(http.MethodGet, "/admin", nil).Code)
	assert.Equal(t, http.StatusConflict, second.do(http.MethodPost, "/register", url.Values{"email": {"ONE@example.com"}, "password": {"password-three"}}).Code)
}
