package models

import "time"

// Role names seeded by the initial migration
const (
	RoleAdmin  = "admin"
	RoleParent = "parent"
)

// User represents a parent account in the system
type User struct {
	ID            int64     `db:"id"`
	Email         string    `db:"email"`
	PasswordHash  string    `db:"password_hash"`
	Active        bool      `db:"active"`
	OAuthProvider string    `db:"oauth_provider"`
	OAuthSubject  string    `db:"oauth_subject"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
	Roles         []Role    `db:"-"`
}

// HasRole reports whether the user holds the named role
func (u *User) HasRole(name string) bool {
	for _, role := range u.Roles {
		if role.Name == name {
			return true
		}
	}
	return false
}

// IsAdmin is a template helper for HasRole(RoleAdmin)
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// Role is static reference data granting permissions to users
type Role struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Session represents an authenticated session
type Session struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
