package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"napdiary/internal/models"
	"napdiary/internal/repository"
	"napdiary/internal/validation"
)

var (
	ErrChildNotFound    = errors.New("child not found")
	ErrNotGuardian      = errors.New("user is not a guardian of this child")
	ErrGuardianNotFound = errors.New("no account with that email")
	ErrAlreadyGuardian  = errors.New("user is already a guardian of this child")
)

// ChildStore is the persistence needed for children and guardianship
type ChildStore interface {
	CreateChild(ctx context.Context, child *models.Child, guardianID int64) error
	GetChild(ctx context.Context, id int64) (*models.Child, error)
	ListChildrenForUser(ctx context.Context, userID int64) ([]models.Child, error)
	IsGuardian(ctx context.Context, childID, userID int64) (bool, error)
	AddGuardian(ctx context.Context, childID, userID int64) error
	ListGuardians(ctx context.Context, childID int64) ([]models.User, error)
}

// UserFinder looks up accounts by email
type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// ChildService handles children and who may record naps for them
type ChildService struct {
	children ChildStore
	users    UserFinder
	mailer   Mailer
	logger   *slog.Logger
}

// NewChildService creates a new child service
func NewChildService(children ChildStore, users UserFinder, mailer Mailer, logger *slog.Logger) *ChildService {
	return &ChildService{
		children: children,
		users:    users,
		mailer:   mailer,
		logger:   logger.With("service", "child"),
	}
}

// CreateChild validates the form and adds the child with user as its first guardian
func (s *ChildService) CreateChild(ctx context.Context, user *models.User, in validation.ChildInput) (*models.Child, error) {
	child, err := validation.ParseChild(in)
	if err != nil {
		return nil, err
	}

	if err := s.children.CreateChild(ctx, child, user.ID); err != nil {
		return nil, fmt.Errorf("failed to create child: %w", err)
	}

	s.logger.Info("child created", "child_id", child.ID, "user_id", user.ID)
	return child, nil
}

// ListChildren returns the user's children, each with its guardians
func (s *ChildService) ListChildren(ctx context.Context, userID int64) ([]models.ChildWithGuardians, error) {
	children, err := s.children.ListChildrenForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}

	result := make([]models.ChildWithGuardians, 0, len(children))
	for _, child := range children {
		guardians, err := s.children.ListGuardians(ctx, child.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list guardians: %w", err)
		}
		result = append(result, models.ChildWithGuardians{Child: child, Guardians: guardians})
	}
	return result, nil
}

// ResolveChild returns the child when userID is one of its guardians
func (s *ChildService) ResolveChild(ctx context.Context, userID, childID int64) (*models.Child, error) {
	child, err := s.children.GetChild(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	if child == nil {
		return nil, ErrChildNotFound
	}

	ok, err := s.children.IsGuardian(ctx, childID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify guardianship: %w", err)
	}
	if !ok {
		return nil, ErrNotGuardian
	}
	return child, nil
}

// DefaultChild returns the user's first child, or nil when they have none
func (s *ChildService) DefaultChild(ctx context.Context, userID int64) (*models.Child, error) {
	children, err := s.children.ListChildrenForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	if len(children) == 0 {
		return nil, nil
	}
	return &children[0], nil
}

// AddGuardian shares a child with the account registered under email
func (s *ChildService) AddGuardian(ctx context.Context, actor *models.User, childID int64, email string) error {
	child, err := s.ResolveChild(ctx, actor.ID, childID)
	if err != nil {
		return err
	}

	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return err
	}

	guardian, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if guardian == nil {
		return ErrGuardianNotFound
	}

	err = s.children.AddGuardian(ctx, child.ID, guardian.ID)
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrAlreadyGuardian
	}
	if err != nil {
		return fmt.Errorf("failed to add guardian: %w", err)
	}

	s.logger.Info("guardian added", "child_id", child.ID, "user_id", guardian.ID, "by", actor.ID)

	if s.mailer != nil {
		if err := s.mailer.SendGuardianAddedEmail(ctx, guardian.Email, child.FullName(), actor.Email); err != nil {
			s.logger.Warn("failed to send guardian email", "user_id", guardian.ID, "error", err)
		}
	}
	return nil
}
