package handlers

import (
	"context"
	"io"
	"time"

	"napdiary/internal/calendar"
	"napdiary/internal/models"
	"napdiary/internal/validation"
)

// AuthService is implemented by *service.AuthService
type AuthService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.Session, *models.User, error)
	ValidateSession(ctx context.Context, sessionID string) (*models.User, error)
	Logout(ctx context.Context, sessionID string) error
	OAuthLogin(ctx context.Context, provider, subject, email string) (*models.Session, *models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetUserActive(ctx context.Context, userID int64, active bool) error
}

// ChildService is implemented by *service.ChildService
type ChildService interface {
	CreateChild(ctx context.Context, user *models.User, in validation.ChildInput) (*models.Child, error)
	ListChildren(ctx context.Context, userID int64) ([]models.ChildWithGuardians, error)
	ResolveChild(ctx context.Context, userID, childID int64) (*models.Child, error)
	DefaultChild(ctx context.Context, userID int64) (*models.Child, error)
	AddGuardian(ctx context.Context, actor *models.User, childID int64, email string) error
}

// NapService is implemented by *service.NapService
type NapService interface {
	Today() models.Date
	AddNap(ctx context.Context, childID int64, in validation.NapInput) (*models.Nap, error)
	SaveNightNap(ctx context.Context, childID int64, in validation.NightNapInput) (*models.NightNap, error)
	MonthCalendar(ctx context.Context, childID int64, year int, month time.Month) (calendar.MonthGrid, error)
	MonthStatistics(ctx context.Context, childID int64, year int, month time.Month) (calendar.MonthStatistics, error)
	DayDetail(ctx context.Context, childID int64, date models.Date) (calendar.DayDetail, error)
}

// Exporter is implemented by *service.BackupService
type Exporter interface {
	Export(ctx context.Context, w io.Writer) error
}
