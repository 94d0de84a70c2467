package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"napdiary/internal/ctxstore"
	"napdiary/internal/models"
	"napdiary/internal/security"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequireAuthRedirectsWithoutSession(t *testing.T) {
	mw := newTestMiddleware(&fakeAuth{}, newFakeChildren())

	rec := httptest.NewRecorder()
	mw.RequireAuth(okHandler)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRequireAuthClearsUnknownSession(t *testing.T) {
	mw := newTestMiddleware(&fakeAuth{}, newFakeChildren())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "stale"})
	rec := httptest.NewRecorder()
	mw.RequireAuth(okHandler)(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, security.SessionCookieName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestRequireAuthStoresUser(t *testing.T) {
	user := parentUser()
	mw := newTestMiddleware(&fakeAuth{sessions: map[string]*models.User{"s1": user}}, newFakeChildren())

	var got *models.User
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "s1"})
	rec := httptest.NewRecorder()
	mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		got = GetUserFromContext(r.Context())
	})(rec, req)

	assert.Equal(t, user, got)
}

func TestRequireAdmin(t *testing.T) {
	auth := &fakeAuth{sessions: map[string]*models.User{
		"parent": parentUser(),
		"admin":  adminUser(),
	}}
	mw := newTestMiddleware(auth, newFakeChildren())
	handler := mw.RequireAdmin(okHandler)

	tests := []struct {
		session string
		want    int
	}{
		{"parent", http.StatusForbidden},
		{"admin", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.session, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: tt.session})
			rec := httptest.NewRecorder()
			handler(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireChild(t *testing.T) {
	user := parentUser()
	children := newFakeChildren()
	children.children[1] = &models.Child{ID: 1, FirstName: "Ada"}
	children.children[2] = &models.Child{ID: 2, FirstName: "Ben"}
	children.children[3] = &models.Child{ID: 3, FirstName: "Other"}
	children.guardians[1] = []int64{user.ID}
	children.guardians[2] = []int64{user.ID}
	children.guardians[3] = []int64{99}
	mw := newTestMiddleware(&fakeAuth{}, children)

	tests := []struct {
		name        string
		cookie      string
		wantChild   int64
		wantCleared bool
	}{
		{name: "no cookie uses first child", wantChild: 1},
		{name: "selected child", cookie: "2", wantChild: 2},
		{name: "foreign child falls back", cookie: "3", wantChild: 1, wantCleared: true},
		{name: "garbage falls back", cookie: "abc", wantChild: 1, wantCleared: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withUser(httptest.NewRequest(http.MethodGet, "/", nil), user)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: security.ChildCookieName, Value: tt.cookie})
			}

			var got *models.Child
			rec := httptest.NewRecorder()
			mw.RequireChild(func(w http.ResponseWriter, r *http.Request) {
				got = GetChildFromContext(r.Context())
			})(rec, req)

			require.NotNil(t, got)
			assert.Equal(t, tt.wantChild, got.ID)
			assert.Equal(t, tt.wantCleared, len(rec.Result().Cookies()) == 1)
		})
	}
}

func TestRequireChildRedirectsWithoutChildren(t *testing.T) {
	mw := newTestMiddleware(&fakeAuth{}, newFakeChildren())

	req := withUser(httptest.NewRequest(http.MethodGet, "/", nil), parentUser())
	rec := httptest.NewRecorder()
	mw.RequireChild(okHandler)(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/children", rec.Header().Get("Location"))
}

func TestCSRFProtect(t *testing.T) {
	mw := newTestMiddleware(&fakeAuth{}, newFakeChildren())
	token, err := security.NewCSRFGenerator(testSecret).GenerateToken("s1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		token  string
		want   int
	}{
		{"get passes", http.MethodGet, "", http.StatusOK},
		{"post without token", http.MethodPost, "", http.StatusForbidden},
		{"post with wrong token", http.MethodPost, "nope", http.StatusForbidden},
		{"post with token", http.MethodPost, token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{security.CSRFFormField: {tt.token}}
			req := httptest.NewRequest(tt.method, "/naps/new", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "s1"})

			rec := httptest.NewRecorder()
			mw.CSRFProtect(okHandler)(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	mw := NewMiddleware(&fakeAuth{}, newFakeChildren(), security.NewCSRFGenerator(testSecret), security.NewRateLimiter(2, time.Minute))
	handler := mw.RateLimit(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rec := httptest.NewRecorder()
		handler(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRequestID(t *testing.T) {
	const incoming = "0b8e6a3c-7c55-4f43-9d57-2b0c5f1b0e11"

	tests := []struct {
		name   string
		header string
		reused bool
	}{
		{"valid id is reused", incoming, true},
		{"invalid id is replaced", "not-a-uuid", false},
		{"missing id is generated", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = ctxstore.From[string](r.Context(), requestIDKey)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
			assert.Equal(t, tt.reused, seen == incoming)
		})
	}
}

func TestLoggingWritesAccessLine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := RequestID(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/calendar", nil))

	out := buf.String()
	assert.Contains(t, out, "msg=access")
	assert.Contains(t, out, "response.status=418")
	assert.Contains(t, out, "request.url=/calendar")
	assert.Contains(t, out, "requestId=")
}

func TestRecover(t *testing.T) {
	handler := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}
