package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"napdiary/internal/database"
	"napdiary/internal/models"
)

const childColumns = "c.id, c.first_name, c.last_name, c.date_of_birth, c.created_at, c.updated_at"

// ChildRepository handles children and the guardians allowed to record their naps
type ChildRepository struct {
	db *database.DB
}

func NewChildRepository(db *database.DB) *ChildRepository {
	return &ChildRepository{db: db}
}

// CreateChild inserts the child and makes guardianID its first guardian
func (r *ChildRepository) CreateChild(ctx context.Context, child *models.Child, guardianID int64) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		now := time.Now().UTC()
		id, err := tx.ExecReturningID(ctx, `
			INSERT INTO children (first_name, last_name, date_of_birth, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, child.FirstName, child.LastName, child.DateOfBirth, now, now)
		if err != nil {
			return fmt.Errorf("failed to create child: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO child_guardians (child_id, user_id, created_at) VALUES (?, ?, ?)",
			id, guardianID, now); err != nil {
			return fmt.Errorf("failed to add guardian: %w", err)
		}

		child.ID = id
		child.CreatedAt = now
		child.UpdatedAt = now
		return nil
	})
}

// GetChild retrieves a child by ID
func (r *ChildRepository) GetChild(ctx context.Context, id int64) (*models.Child, error) {
	child := &models.Child{}
	err := r.db.GetContext(ctx, child, "SELECT "+childColumns+" FROM children c WHERE c.id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	return child, nil
}

// ListChildrenForUser returns the children a user is guardian of, oldest record first
func (r *ChildRepository) ListChildrenForUser(ctx context.Context, userID int64) ([]models.Child, error) {
	children := []models.Child{}
	err := r.db.SelectContext(ctx, &children, `
		SELECT `+childColumns+`
		FROM children c
		INNER JOIN child_guardians g ON g.child_id = c.id
		WHERE g.user_id = ?
		ORDER BY c.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	return children, nil
}

// IsGuardian checks if a user may record naps for a child
func (r *ChildRepository) IsGuardian(ctx context.Context, childID, userID int64) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM child_guardians WHERE child_id = ? AND user_id = ?", childID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check guardianship: %w", err)
	}
	return count > 0, nil
}

// AddGuardian shares a child with another user. It returns ErrDuplicate when
// the user already is a guardian.
func (r *ChildRepository) AddGuardian(ctx context.Context, childID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO child_guardians (child_id, user_id, created_at) VALUES (?, ?, ?)",
		childID, userID, time.Now().UTC())
	if err != nil {
		if r.db.Dialect.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to add guardian: %w", err)
	}
	return nil
}

// ListGuardians returns the users allowed to record naps for a child
func (r *ChildRepository) ListGuardians(ctx context.Context, childID int64) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, `
		SELECT u.id, u.email, u.password_hash, u.active, u.oauth_provider, u.oauth_subject, u.created_at, u.updated_at
		FROM users u
		INNER JOIN child_guardians g ON g.user_id = u.id
		WHERE g.child_id = ?
		ORDER BY g.created_at, u.id
	`, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guardians: %w", err)
	}
	return users, nil
}
