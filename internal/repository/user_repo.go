package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"napdiary/internal/database"
	"napdiary/internal/models"
)

const userColumns = "id, email, password_hash, active, oauth_provider, oauth_subject, created_at, updated_at"

// UserRepository handles database operations for users, roles and sessions
type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a user with the parent role. The first user ever
// created also receives the admin role.
func (r *UserRepository) CreateUser(ctx context.Context, email, passwordHash, oauthProvider, oauthSubject string) (*models.User, error) {
	user := &models.User{
		Email:         email,
		PasswordHash:  passwordHash,
		Active:        true,
		OAuthProvider: oauthProvider,
		OAuthSubject:  oauthSubject,
	}

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		var userCount int
		if err := tx.GetContext(ctx, &userCount, "SELECT COUNT(*) FROM users"); err != nil {
			return fmt.Errorf("failed to count users: %w", err)
		}

		now := time.Now().UTC()
		id, err := tx.ExecReturningID(ctx, `
			INSERT INTO users (email, password_hash, active, oauth_provider, oauth_subject, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, email, passwordHash, true, oauthProvider, oauthSubject, now, now)
		if err != nil {
			if tx.GetDialect().IsUniqueViolation(err) {
				return fmt.Errorf("failed to create user: %w", ErrDuplicate)
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		user.ID = id
		user.CreatedAt = now
		user.UpdatedAt = now

		roles := []string{models.RoleParent}
		if userCount == 0 {
			roles = append(roles, models.RoleAdmin)
		}
		for _, role := range roles {
			if err := grantRole(ctx, tx, id, role); err != nil {
				return err
			}
		}

		user.Roles, err = userRoles(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func grantRole(ctx context.Context, q database.DBTX, userID int64, role string) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO users_roles (user_id, role_id) SELECT ?, id FROM roles WHERE name = ?",
		userID, role)
	if err != nil {
		return fmt.Errorf("failed to grant role %s: %w", role, err)
	}
	return nil
}

func userRoles(ctx context.Context, q database.DBTX, userID int64) ([]models.Role, error) {
	roles := []models.Role{}
	err := q.SelectContext(ctx, &roles, `
		SELECT r.id, r.name
		FROM roles r
		INNER JOIN users_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ?
		ORDER BY r.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	return roles, nil
}

// GetUserRoles returns the roles held by a user, ordered by name
func (r *UserRepository) GetUserRoles(ctx context.Context, userID int64) ([]models.Role, error) {
	return userRoles(ctx, r.db, userID)
}

func (r *UserRepository) getUser(ctx context.Context, where string, args ...interface{}) (*models.User, error) {
	user := &models.User{}
	err := r.db.GetContext(ctx, user, "SELECT "+userColumns+" FROM users WHERE "+where, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email = ?", email)
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getUser(ctx, "id = ?", id)
}

// GetUserByOAuth retrieves a user by OAuth provider and subject
func (r *UserRepository) GetUserByOAuth(ctx context.Context, provider, subject string) (*models.User, error) {
	return r.getUser(ctx, "oauth_provider = ? AND oauth_subject = ?", provider, subject)
}

// ListUsers returns every user with roles loaded, newest first
func (r *UserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	query, args, err := r.db.Build(r.db.Builder.
		Select(userColumns).
		From("users").
		OrderBy("created_at DESC", "id DESC"))
	if err != nil {
		return nil, err
	}

	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if len(users) == 0 {
		return users, nil
	}

	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	query, args, err = r.db.Build(r.db.Builder.
		Select("ur.user_id", "r.id", "r.name").
		From("users_roles ur").
		Join("roles r ON r.id = ur.role_id").
		Where(squirrel.Eq{"ur.user_id": ids}).
		OrderBy("r.name"))
	if err != nil {
		return nil, err
	}

	var grants []struct {
		UserID int64  `db:"user_id"`
		ID     int64  `db:"id"`
		Name   string `db:"name"`
	}
	if err := r.db.SelectContext(ctx, &grants, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}

	byUser := make(map[int64][]models.Role)
	for _, g := range grants {
		byUser[g.UserID] = append(byUser[g.UserID], models.Role{ID: g.ID, Name: g.Name})
	}
	for i := range users {
		users[i].Roles = byUser[users[i].ID]
	}

	return users, nil
}

// SetUserActive activates or deactivates a user
func (r *UserRepository) SetUserActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET active = ?, updated_at = ? WHERE id = ?",
		active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkOAuthProvider links an existing password user to an OAuth identity
func (r *UserRepository) LinkOAuthProvider(ctx context.Context, userID int64, provider, subject string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET oauth_provider = ?, oauth_subject = ?, updated_at = ?
		WHERE id = ? AND oauth_provider = ''
	`, provider, subject, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to link oauth provider: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read link result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("oauth provider already linked")
	}
	return nil
}

// CreateSession creates a new session for a user
func (r *UserRepository) CreateSession(ctx context.Context, sessionID string, userID int64, expiresAt time.Time) (*models.Session, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		sessionID, userID, expiresAt.UTC(), now)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// GetSession retrieves a session by ID
func (r *UserRepository) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session := &models.Session{}
	err := r.db.GetContext(ctx, session,
		"SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ?", sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// DeleteSession removes a session from the database
func (r *UserRepository) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions signs a user out everywhere
func (r *UserRepository) DeleteUserSessions(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before now and reports how many
func (r *UserRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
