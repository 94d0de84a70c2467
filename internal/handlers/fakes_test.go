package handlers

import (
	"context"
	"html/template"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"napdiary/internal/calendar"
	"napdiary/internal/ctxstore"
	"napdiary/internal/models"
	"napdiary/internal/security"
	"napdiary/internal/service"
	"napdiary/internal/validation"
	"napdiary/templates"
)

const testSecret = "test-secret"

type fakeAuth struct {
	sessions map[string]*models.User

	loginSession *models.Session
	loginErr     error
	registerErr  error
	oauthErr     error
	users        []models.User
	setActiveErr error

	loggedOut []string
	activated map[int64]bool
}

func (f *fakeAuth) Register(ctx context.Context, email, password string) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}
	return &models.User{ID: 10, Email: email, Active: true}, nil
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	if f.loginErr != nil {
		return nil, nil, f.loginErr
	}
	return f.loginSession, &models.User{ID: f.loginSession.UserID, Email: email, Active: true}, nil
}

func (f *fakeAuth) ValidateSession(ctx context.Context, sessionID string) (*models.User, error) {
	user, ok := f.sessions[sessionID]
	if !ok {
		return nil, service.ErrSessionNotFound
	}
	return user, nil
}

func (f *fakeAuth) Logout(ctx context.Context, sessionID string) error {
	f.loggedOut = append(f.loggedOut, sessionID)
	return nil
}

func (f *fakeAuth) OAuthLogin(ctx context.Context, provider, subject, email string) (*models.Session, *models.User, error) {
	if f.oauthErr != nil {
		return nil, nil, f.oauthErr
	}
	return f.loginSession, &models.User{ID: f.loginSession.UserID, Email: email, Active: true}, nil
}

func (f *fakeAuth) ListUsers(ctx context.Context) ([]models.User, error) {
	return f.users, nil
}

func (f *fakeAuth) SetUserActive(ctx context.Context, userID int64, active bool) error {
	if f.setActiveErr != nil {
		return f.setActiveErr
	}
	if f.activated == nil {
		f.activated = make(map[int64]bool)
	}
	f.activated[userID] = active
	return nil
}

type fakeChildren struct {
	children  map[int64]*models.Child
	guardians map[int64][]int64
	addErr    error
	added     []string
}

func (f *fakeChildren) CreateChild(ctx context.Context, user *models.User, in validation.ChildInput) (*models.Child, error) {
	child, err := validation.ParseChild(in)
	if err != nil {
		return nil, err
	}
	child.ID = int64(len(f.children) + 1)
	f.children[child.ID] = child
	f.guardians[child.ID] = append(f.guardians[child.ID], user.ID)
	return child, nil
}

func (f *fakeChildren) ListChildren(ctx context.Context, userID int64) ([]models.ChildWithGuardians, error) {
	var result []models.ChildWithGuardians
	for id := int64(1); id <= int64(len(f.children)); id++ {
		child, ok := f.children[id]
		if !ok || !f.isGuardian(id, userID) {
			continue
		}
		result = append(result, models.ChildWithGuardians{
			Child:     *child,
			Guardians: []models.User{{ID: userID, Email: "parent@example.com"}},
		})
	}
	return result, nil
}

func (f *fakeChildren) ResolveChild(ctx context.Context, userID, childID int64) (*models.Child, error) {
	child, ok := f.children[childID]
	if !ok {
		return nil, service.ErrChildNotFound
	}
	if !f.isGuardian(childID, userID) {
		return nil, service.ErrNotGuardian
	}
	return child, nil
}

func (f *fakeChildren) DefaultChild(ctx context.Context, userID int64) (*models.Child, error) {
	for id := int64(1); id <= int64(len(f.children)); id++ {
		if f.isGuardian(id, userID) {
			return f.children[id], nil
		}
	}
	return nil, nil
}

func (f *fakeChildren) AddGuardian(ctx context.Context, actor *models.User, childID int64, email string) error {
	if _, err := f.ResolveChild(ctx, actor.ID, childID); err != nil {
		return err
	}
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, email)
	return nil
}

func (f *fakeChildren) isGuardian(childID, userID int64) bool {
	for _, id := range f.guardians[childID] {
		if id == userID {
			return true
		}
	}
	return false
}

func newFakeChildren() *fakeChildren {
	return &fakeChildren{
		children:  make(map[int64]*models.Child),
		guardians: make(map[int64][]int64),
	}
}

// fakeNaps keeps naps in memory and builds views with the real calendar package
type fakeNaps struct {
	today  models.Date
	naps   []models.Nap
	nights map[models.Date]*models.NightNap
}

func (f *fakeNaps) Today() models.Date { return f.today }

func (f *fakeNaps) AddNap(ctx context.Context, childID int64, in validation.NapInput) (*models.Nap, error) {
	nap, err := validation.ParseNap(in)
	if err != nil {
		return nil, err
	}
	nap.ChildID = childID
	f.naps = append(f.naps, *nap)
	return nap, nil
}

func (f *fakeNaps) SaveNightNap(ctx context.Context, childID int64, in validation.NightNapInput) (*models.NightNap, error) {
	night, err := validation.ParseNightNap(in)
	if err != nil {
		return nil, err
	}
	night.ChildID = childID
	if f.nights == nil {
		f.nights = make(map[models.Date]*models.NightNap)
	}
	f.nights[night.Date] = night
	return night, nil
}

func (f *fakeNaps) MonthCalendar(ctx context.Context, childID int64, year int, month time.Month) (calendar.MonthGrid, error) {
	return calendar.BuildMonthGrid(year, month, time.Monday, f.naps)
}

func (f *fakeNaps) MonthStatistics(ctx context.Context, childID int64, year int, month time.Month) (calendar.MonthStatistics, error) {
	return calendar.BuildMonthStatistics(year, month, f.naps, f.today)
}

func (f *fakeNaps) DayDetail(ctx context.Context, childID int64, date models.Date) (calendar.DayDetail, error) {
	return calendar.BuildDayDetail(date, f.naps, f.nights[date]), nil
}

type fakeExporter struct {
	payload string
	err     error
}

func (f fakeExporter) Export(ctx context.Context, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, f.payload)
	return err
}

func loadTestTemplates(t *testing.T) *template.Template {
	t.Helper()
	tmpl, err := LoadTemplates(templates.Files)
	require.NoError(t, err)
	return tmpl
}

func newTestMiddleware(auth AuthService, children ChildService) *Middleware {
	return NewMiddleware(auth, children, security.NewCSRFGenerator(testSecret), security.NewRateLimiter(100, time.Minute))
}

func withUser(r *http.Request, user *models.User) *http.Request {
	return r.WithContext(ctxstore.With(r.Context(), userKey, user))
}

func withChild(r *http.Request, user *models.User, child *models.Child) *http.Request {
	ctx := ctxstore.With(r.Context(), userKey, user)
	return r.WithContext(ctxstore.With(ctx, childKey, child))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func parentUser() *models.User {
	return &models.User{ID: 1, Email: "parent@example.com", Active: true, Roles: []models.Role{{ID: 2, Name: models.RoleParent}}}
}

func adminUser() *models.User {
	return &models.User{ID: 1, Email: "admin@example.com", Active: true, Roles: []models.Role{{ID: 1, Name: models.RoleAdmin}, {ID: 2, Name: models.RoleParent}}}
}
