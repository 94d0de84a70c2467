package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"

	"napdiary/internal/models"
	"napdiary/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserStore struct {
	users    map[int64]*models.User
	sessions map[string]*models.Session
	nextID   int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:    make(map[int64]*models.User),
		sessions: make(map[string]*models.Session),
	}
}

func (f *fakeUserStore) CreateUser(_ context.Context, email, passwordHash, provider, subject string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return nil, repository.ErrDuplicate
		}
	}
	f.nextID++
	user := &models.User{
		ID:            f.nextID,
		Email:         email,
		PasswordHash:  passwordHash,
		Active:        true,
		OAuthProvider: provider,
		OAuthSubject:  subject,
		Roles:         []models.Role{{ID: 2, Name: models.RoleParent}},
	}
	if len(f.users) == 0 {
		user.Roles = append([]models.Role{{ID: 1, Name: models.RoleAdmin}}, user.Roles...)
	}
	f.users[user.ID] = user
	copied := *user
	return &copied, nil
}

func (f *fakeUserStore) find(match func(*models.User) bool) *models.User {
	for _, u := range f.users {
		if match(u) {
			copied := *u
			copied.Roles = nil
			return &copied
		}
	}
	return nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email }), nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id }), nil
}

func (f *fakeUserStore) GetUserByOAuth(_ context.Context, provider, subject string) (*models.User, error) {
	return f.find(func(u *models.User) bool {
		return u.OAuthProvider == provider && u.OAuthSubject == subject
	}), nil
}

func (f *fakeUserStore) GetUserRoles(_ context.Context, userID int64) ([]models.Role, error) {
	if u, ok := f.users[userID]; ok {
		return u.Roles, nil
	}
	return []models.Role{}, nil
}

func (f *fakeUserStore) ListUsers(_ context.Context) ([]models.User, error) {
	users := []models.User{}
	for _, u := range f.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func (f *fakeUserStore) SetUserActive(_ context.Context, id int64, active bool) error {
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Active = active
	return nil
}

func (f *fakeUserStore) LinkOAuthProvider(_ context.Context, userID int64, provider, subject string) error {
	u, ok := f.users[userID]
	if !ok || u.OAuthProvider != "" {
		return errors.New("oauth provider already linked")
	}
	u.OAuthProvider = provider
	u.OAuthSubject = subject
	return nil
}

func (f *fakeUserStore) CreateSession(_ context.Context, sessionID string, userID int64, expiresAt time.Time) (*models.Session, error) {
	s := &models.Session{ID: sessionID, UserID: userID, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	f.sessions[sessionID] = s
	return s, nil
}

func (f *fakeUserStore) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	return f.sessions[sessionID], nil
}

func (f *fakeUserStore) DeleteSession(_ context.Context, sessionID string) error {
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeUserStore) DeleteUserSessions(_ context.Context, userID int64) error {
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeUserStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	var removed int64
	for id, s := range f.sessions {
		if s.ExpiresAt.Before(now) {
			delete(f.sessions, id)
			removed++
		}
	}
	return removed, nil
}

type sentMail struct {
	kind  string
	to    string
	child string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) SendWelcomeEmail(_ context.Context, toEmail string) error {
	f.sent = append(f.sent, sentMail{kind: "welcome", to: toEmail})
	return f.err
}

func (f *fakeMailer) SendGuardianAddedEmail(_ context.Context, toEmail, childName, _ string) error {
	f.sent = append(f.sent, sentMail{kind: "guardian", to: toEmail, child: childName})
	return f.err
}

type fakeChildStore struct {
	children  map[int64]*models.Child
	guardians map[int64][]int64
	users     *fakeUserStore
	nextID    int64
}

func newFakeChildStore(users *fakeUserStore) *fakeChildStore {
	return &fakeChildStore{
		children:  make(map[int64]*models.Child),
		guardians: make(map[int64][]int64),
		users:     users,
	}
}

func (f *fakeChildStore) CreateChild(_ context.Context, child *models.Child, guardianID int64) error {
	f.nextID++
	child.ID = f.nextID
	copied := *child
	f.children[child.ID] = &copied
	f.guardians[child.ID] = []int64{guardianID}
	return nil
}

func (f *fakeChildStore) GetChild(_ context.Context, id int64) (*models.Child, error) {
	if c, ok := f.children[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeChildStore) ListChildrenForUser(ctx context.Context, userID int64) ([]models.Child, error) {
	children := []models.Child{}
	for id := int64(1); id <= f.nextID; id++ {
		if ok, _ := f.IsGuardian(ctx, id, userID); ok {
			children = append(children, *f.children[id])
		}
	}
	return children, nil
}

func (f *fakeChildStore) IsGuardian(_ context.Context, childID, userID int64) (bool, error) {
	for _, id := range f.guardians[childID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeChildStore) AddGuardian(ctx context.Context, childID, userID int64) error {
	if ok, _ := f.IsGuardian(ctx, childID, userID); ok {
		return repository.ErrDuplicate
	}
	f.guardians[childID] = append(f.guardians[childID], userID)
	return nil
}

func (f *fakeChildStore) ListGuardians(_ context.Context, childID int64) ([]models.User, error) {
	users := []models.User{}
	for _, id := range f.guardians[childID] {
		if u, ok := f.users.users[id]; ok {
			users = append(users, *u)
		}
	}
	return users, nil
}

type rangeCall struct {
	childID  int64
	from, to models.Date
}

type fakeNapStore struct {
	naps   []models.Nap
	ranges []rangeCall
}

func (f *fakeNapStore) Create(_ context.Context, nap *models.Nap) error {
	nap.ID = int64(len(f.naps) + 1)
	f.naps = append(f.naps, *nap)
	return nil
}

func (f *fakeNapStore) ListByChildAndRange(_ context.Context, childID int64, from, to models.Date) ([]models.Nap, error) {
	f.ranges = append(f.ranges, rangeCall{childID: childID, from: from, to: to})
	naps := []models.Nap{}
	for _, n := range f.naps {
		if n.ChildID == childID && !n.Date.Before(from) && !to.Before(n.Date) {
			naps = append(naps, n)
		}
	}
	return naps, nil
}

func (f *fakeNapStore) ListByChildAndDate(_ context.Context, childID int64, date models.Date) ([]models.Nap, error) {
	naps := []models.Nap{}
	for _, n := range f.naps {
		if n.ChildID == childID && n.Date == date {
			naps = append(naps, n)
		}
	}
	return naps, nil
}

type fakeNightNapStore struct {
	nights map[models.Date]models.NightNap
}

func (f *fakeNightNapStore) Upsert(_ context.Context, night *models.NightNap) error {
	if f.nights == nil {
		f.nights = make(map[models.Date]models.NightNap)
	}
	f.nights[night.Date] = *night
	return nil
}

func (f *fakeNightNapStore) GetByChildAndDate(_ context.Context, childID int64, date models.Date) (*models.NightNap, error) {
	night, ok := f.nights[date]
	if !ok || night.ChildID != childID {
		return nil, nil
	}
	return &night, nil
}
