package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"napdiary/internal/models"
	"napdiary/internal/repository"
	"napdiary/internal/security"
	"napdiary/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrUserInactive       = errors.New("account is disabled")
	ErrUserNotFound       = errors.New("user not found")
)

// UserStore is the persistence needed for accounts and sessions
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash, oauthProvider, oauthSubject string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByOAuth(ctx context.Context, provider, subject string) (*models.User, error)
	GetUserRoles(ctx context.Context, userID int64) ([]models.Role, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetUserActive(ctx context.Context, id int64, active bool) error
	LinkOAuthProvider(ctx context.Context, userID int64, provider, subject string) error
	CreateSession(ctx context.Context, sessionID string, userID int64, expiresAt time.Time) (*models.Session, error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteUserSessions(ctx context.Context, userID int64) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Mailer sends the account notifications
type Mailer interface {
	SendWelcomeEmail(ctx context.Context, toEmail string) error
	SendGuardianAddedEmail(ctx context.Context, toEmail, childName, addedBy string) error
}

// AuthService handles authentication business logic
type AuthService struct {
	users           UserStore
	mailer          Mailer
	sessionDuration time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, mailer Mailer, sessionDuration time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:           users,
		mailer:          mailer,
		sessionDuration: sessionDuration,
		logger:          logger.With("service", "auth"),
		now:             time.Now,
	}
}

// Register creates a new password account. The first account becomes admin.
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, email, passwordHash, "", "")
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "admin", user.IsAdmin())
	s.welcome(ctx, user)
	return user, nil
}

func (s *AuthService) welcome(ctx context.Context, user *models.User) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendWelcomeEmail(ctx, user.Email); err != nil {
		s.logger.Warn("failed to send welcome email", "user_id", user.ID, "error", err)
	}
}

// Login authenticates a user and creates a session
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !security.CheckPassword(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, nil, ErrUserInactive
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

func (s *AuthService) startSession(ctx context.Context, user *models.User) (*models.Session, error) {
	expiresAt := s.now().Add(s.sessionDuration)
	session, err := s.users.CreateSession(ctx, security.GenerateSessionID(), user.ID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ValidateSession checks if a session is valid and returns the associated user with roles loaded
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (*models.User, error) {
	session, err := s.users.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.now().After(session.ExpiresAt) {
		if err := s.users.DeleteSession(ctx, sessionID); err != nil {
			s.logger.Warn("failed to delete expired session", "error", err)
		}
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}
	if !user.Active {
		return nil, ErrUserInactive
	}

	user.Roles, err = s.users.GetUserRoles(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	return user, nil
}

// Logout invalidates a session
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.users.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes expired sessions from the database
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) error {
	removed, err := s.users.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	if removed > 0 {
		s.logger.Info("expired sessions removed", "count", removed)
	}
	return nil
}

// OAuthLogin authenticates or creates a user using an OAuth provider.
// A password account with the same email is linked to the provider.
func (s *AuthService) OAuthLogin(ctx context.Context, provider, subject, email string) (*models.Session, *models.User, error) {
	if provider == "" || subject == "" {
		return nil, nil, errors.New("missing oauth provider information")
	}
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetUserByOAuth(ctx, provider, subject)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lookup oauth user: %w", err)
	}

	if user == nil {
		existing, err := s.users.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check existing user: %w", err)
		}

		switch {
		case existing != nil && existing.OAuthProvider != "":
			// linked to another provider or another subject
			return nil, nil, ErrEmailTaken
		case existing != nil:
			if err := s.users.LinkOAuthProvider(ctx, existing.ID, provider, subject); err != nil {
				return nil, nil, fmt.Errorf("failed to link oauth provider: %w", err)
			}
			s.logger.Info("oauth provider linked", "user_id", existing.ID, "provider", provider)
			user = existing
		default:
			user, err = s.users.CreateUser(ctx, email, "", provider, subject)
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, nil, ErrEmailTaken
			}
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create oauth user: %w", err)
			}
			s.logger.Info("user registered", "user_id", user.ID, "provider", provider)
			s.welcome(ctx, user)
		}
	}

	if !user.Active {
		return nil, nil, ErrUserInactive
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// ListUsers returns every account with its roles
func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// SetUserActive enables or disables an account. Disabling signs the user out everywhere.
func (s *AuthService) SetUserActive(ctx context.Context, userID int64, active bool) error {
	err := s.users.SetUserActive(ctx, userID, active)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if !active {
		if err := s.users.DeleteUserSessions(ctx, userID); err != nil {
			return fmt.Errorf("failed to end user sessions: %w", err)
		}
	}

	s.logger.Info("user active flag changed", "user_id", userID, "active", active)
	return nil
}
