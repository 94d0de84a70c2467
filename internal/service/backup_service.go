package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"napdiary/internal/database"
	"napdiary/internal/models"
)

// BackupVersion is written into every export and checked on import
const BackupVersion = "1"

var (
	ErrDatabaseNotEmpty  = errors.New("import requires an empty database")
	ErrUnsupportedBackup = errors.New("unsupported backup version")
)

// BackupData represents the complete database backup structure
type BackupData struct {
	Version      string           `json:"version"`
	ExportedAt   time.Time        `json:"exported_at"`
	DatabaseType string           `json:"database_type"`
	Users        []UserBackup     `json:"users"`
	Children     []ChildBackup    `json:"children"`
	Guardians    []GuardianBackup `json:"guardians"`
	Naps         []NapBackup      `json:"naps"`
	NightNaps    []NightNapBackup `json:"night_naps"`
}

// UserBackup represents a user record for backup
type UserBackup struct {
	ID            int64     `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	PasswordHash  string    `json:"password_hash" db:"password_hash"`
	Active        bool      `json:"active" db:"active"`
	OAuthProvider string    `json:"oauth_provider" db:"oauth_provider"`
	OAuthSubject  string    `json:"oauth_subject" db:"oauth_subject"`
	Roles         []string  `json:"roles" db:"-"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// ChildBackup represents a child record for backup
type ChildBackup struct {
	ID          int64       `json:"id" db:"id"`
	FirstName   string      `json:"first_name" db:"first_name"`
	LastName    string      `json:"last_name" db:"last_name"`
	DateOfBirth models.Date `json:"date_of_birth" db:"date_of_birth"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// GuardianBackup links a child to one of its guardians
type GuardianBackup struct {
	ChildID   int64     `json:"child_id" db:"child_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NapBackup represents a nap record for backup
type NapBackup struct {
	ID        int64            `json:"id" db:"id"`
	ChildID   int64            `json:"child_id" db:"child_id"`
	Date      models.Date      `json:"date" db:"nap_date"`
	Start     models.ClockTime `json:"start" db:"start_time"`
	End       models.ClockTime `json:"end" db:"end_time"`
	Problem   models.Problem   `json:"problem" db:"problem"`
	Place     models.Place     `json:"place" db:"place"`
	Notes     string           `json:"notes" db:"notes"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// NightNapBackup represents a night record for backup
type NightNapBackup struct {
	ID         int64            `json:"id" db:"id"`
	ChildID    int64            `json:"child_id" db:"child_id"`
	Date       models.Date      `json:"date" db:"nap_date"`
	WakeUp     models.ClockTime `json:"wake_up" db:"wake_up"`
	FallAsleep models.ClockTime `json:"fall_asleep" db:"fall_asleep"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db     *database.DB
	logger *slog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, logger *slog.Logger) *BackupService {
	return &BackupService{db: db, logger: logger.With("service", "backup")}
}

// Export writes every user, child, guardian link, nap and night nap as indented JSON.
// Sessions are not exported.
func (s *BackupService) Export(ctx context.Context, w io.Writer) error {
	s.logger.Info("starting database export")

	backup := &BackupData{
		Version:      BackupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.db.Dialect.DriverName(),
		Users:        []UserBackup{},
		Children:     []ChildBackup{},
		Guardians:    []GuardianBackup{},
		Naps:         []NapBackup{},
		NightNaps:    []NightNapBackup{},
	}

	if err := s.exportUsers(ctx, backup); err != nil {
		return fmt.Errorf("failed to export users: %w", err)
	}

	tables := []struct {
		name  string
		dest  interface{}
		query string
	}{
		{"children", &backup.Children, "SELECT id, first_name, last_name, date_of_birth, created_at, updated_at FROM children ORDER BY id"},
		{"guardians", &backup.Guardians, "SELECT child_id, user_id, created_at FROM child_guardians ORDER BY child_id, user_id"},
		{"naps", &backup.Naps, "SELECT id, child_id, nap_date, start_time, end_time, problem, place, notes, created_at FROM naps ORDER BY id"},
		{"night naps", &backup.NightNaps, "SELECT id, child_id, nap_date, wake_up, fall_asleep, created_at FROM night_naps ORDER BY id"},
	}
	for _, table := range tables {
		if err := s.db.SelectContext(ctx, table.dest, table.query); err != nil {
			return fmt.Errorf("failed to export %s: %w", table.name, err)
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	s.logger.Info("database exported",
		"users", len(backup.Users),
		"children", len(backup.Children),
		"guardians", len(backup.Guardians),
		"naps", len(backup.Naps),
		"night_naps", len(backup.NightNaps))
	return nil
}

func (s *BackupService) exportUsers(ctx context.Context, backup *BackupData) error {
	if err := s.db.SelectContext(ctx, &backup.Users,
		"SELECT id, email, password_hash, active, oauth_provider, oauth_subject, created_at, updated_at FROM users ORDER BY id"); err != nil {
		return err
	}

	var grants []struct {
		UserID int64  `db:"user_id"`
		Name   string `db:"name"`
	}
	if err := s.db.SelectContext(ctx, &grants, `
		SELECT ur.user_id, r.name
		FROM users_roles ur
		INNER JOIN roles r ON r.id = ur.role_id
		ORDER BY ur.user_id, r.name
	`); err != nil {
		return err
	}

	byUser := make(map[int64][]string)
	for _, g := range grants {
		byUser[g.UserID] = append(byUser[g.UserID], g.Name)
	}
	for i := range backup.Users {
		backup.Users[i].Roles = byUser[backup.Users[i].ID]
	}
	return nil
}

// Import restores a backup into an empty database in a single transaction,
// keeping the original ids
func (s *BackupService) Import(ctx context.Context, r io.Reader) error {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return fmt.Errorf("%w: %q", ErrUnsupportedBackup, backup.Version)
	}

	s.logger.Info("starting database import",
		"exported_at", backup.ExportedAt,
		"source", backup.DatabaseType)

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		var userCount int
		if err := tx.GetContext(ctx, &userCount, "SELECT COUNT(*) FROM users"); err != nil {
			return fmt.Errorf("failed to count users: %w", err)
		}
		if userCount > 0 {
			return ErrDatabaseNotEmpty
		}

		if err := importUsers(ctx, tx, backup.Users); err != nil {
			return fmt.Errorf("failed to import users: %w", err)
		}
		if err := importChildren(ctx, tx, backup.Children, backup.Guardians); err != nil {
			return fmt.Errorf("failed to import children: %w", err)
		}
		if err := importNaps(ctx, tx, backup.Naps, backup.NightNaps); err != nil {
			return fmt.Errorf("failed to import naps: %w", err)
		}

		for _, table := range []string{"users", "children", "naps", "night_naps"} {
			query := tx.GetDialect().SyncSequenceQuery(table)
			if query == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, query); err != nil {
				return fmt.Errorf("failed to sync %s sequence: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("database import completed",
		"users", len(backup.Users),
		"children", len(backup.Children),
		"naps", len(backup.Naps),
		"night_naps", len(backup.NightNaps))
	return nil
}

func importUsers(ctx context.Context, tx *database.Tx, users []UserBackup) error {
	for _, u := range users {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, password_hash, active, oauth_provider, oauth_subject, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, u.ID, u.Email, u.PasswordHash, u.Active, u.OAuthProvider, u.OAuthSubject, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			return fmt.Errorf("user %d: %w", u.ID, err)
		}
		for _, role := range u.Roles {
			if err := grantRole(ctx, tx, u.ID, role); err != nil {
				return err
			}
		}
	}
	return nil
}

func grantRole(ctx context.Context, tx *database.Tx, userID int64, role string) error {
	result, err := tx.ExecContext(ctx,
		"INSERT INTO users_roles (user_id, role_id) SELECT ?, id FROM roles WHERE name = ?",
		userID, role)
	if err != nil {
		return fmt.Errorf("failed to grant role %s: %w", role, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("unknown role %q for user %d", role, userID)
	}
	return nil
}

func importChildren(ctx context.Context, tx *database.Tx, children []ChildBackup, guardians []GuardianBackup) error {
	for _, c := range children {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO children (id, first_name, last_name, date_of_birth, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, c.ID, c.FirstName, c.LastName, c.DateOfBirth, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("child %d: %w", c.ID, err)
		}
	}
	for _, g := range guardians {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO child_guardians (child_id, user_id, created_at) VALUES (?, ?, ?)",
			g.ChildID, g.UserID, g.CreatedAt)
		if err != nil {
			return fmt.Errorf("guardian %d of child %d: %w", g.UserID, g.ChildID, err)
		}
	}
	return nil
}

func importNaps(ctx context.Context, tx *database.Tx, naps []NapBackup, nights []NightNapBackup) error {
	for _, n := range naps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO naps (id, child_id, nap_date, start_time, end_time, problem, place, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, n.ID, n.ChildID, n.Date, n.Start, n.End, n.Problem, n.Place, n.Notes, n.CreatedAt)
		if err != nil {
			return fmt.Errorf("nap %d: %w", n.ID, err)
		}
	}
	for _, n := range nights {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO night_naps (id, child_id, nap_date, wake_up, fall_asleep, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, n.ID, n.ChildID, n.Date, n.WakeUp, n.FallAsleep, n.CreatedAt)
		if err != nil {
			return fmt.Errorf("night nap %d: %w", n.ID, err)
		}
	}
	return nil
}
