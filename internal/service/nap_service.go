package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"napdiary/internal/calendar"
	"napdiary/internal/models"
	"napdiary/internal/validation"
)

// NapStore is the persistence for daytime naps
type NapStore interface {
	Create(ctx context.Context, nap *models.Nap) error
	ListByChildAndRange(ctx context.Context, childID int64, from, to models.Date) ([]models.Nap, error)
	ListByChildAndDate(ctx context.Context, childID int64, date models.Date) ([]models.Nap, error)
}

// NightNapStore is the persistence for overnight records
type NightNapStore interface {
	Upsert(ctx context.Context, night *models.NightNap) error
	GetByChildAndDate(ctx context.Context, childID int64, date models.Date) (*models.NightNap, error)
}

// NapService records naps and assembles the calendar views
type NapService struct {
	naps      NapStore
	nights    NightNapStore
	weekStart time.Weekday
	location  *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

// NewNapService creates a nap service. Dates such as "today" are taken in location.
func NewNapService(naps NapStore, nights NightNapStore, weekStart time.Weekday, location *time.Location, logger *slog.Logger) *NapService {
	if location == nil {
		location = time.Local
	}
	return &NapService{
		naps:      naps,
		nights:    nights,
		weekStart: weekStart,
		location:  location,
		logger:    logger.With("service", "nap"),
		now:       time.Now,
	}
}

// Today returns the current date in the configured location
func (s *NapService) Today() models.Date {
	return models.DateOf(s.now().In(s.location))
}

// AddNap validates the form and records a nap for the child
func (s *NapService) AddNap(ctx context.Context, childID int64, in validation.NapInput) (*models.Nap, error) {
	nap, err := validation.ParseNap(in)
	if err != nil {
		return nil, err
	}
	nap.ChildID = childID

	if err := s.naps.Create(ctx, nap); err != nil {
		return nil, fmt.Errorf("failed to add nap: %w", err)
	}

	s.logger.Debug("nap added", "child_id", childID, "nap_id", nap.ID, "date", nap.Date.String())
	return nap, nil
}

// SaveNightNap validates the form and stores the night record, replacing an
// earlier record for the same date
func (s *NapService) SaveNightNap(ctx context.Context, childID int64, in validation.NightNapInput) (*models.NightNap, error) {
	night, err := validation.ParseNightNap(in)
	if err != nil {
		return nil, err
	}
	night.ChildID = childID

	if err := s.nights.Upsert(ctx, night); err != nil {
		return nil, fmt.Errorf("failed to save night nap: %w", err)
	}

	s.logger.Debug("night nap saved", "child_id", childID, "date", night.Date.String())
	return night, nil
}

// MonthCalendar builds the 6x7 grid for a month of the child's naps
func (s *NapService) MonthCalendar(ctx context.Context, childID int64, year int, month time.Month) (calendar.MonthGrid, error) {
	naps, err := s.monthNaps(ctx, childID, year, month)
	if err != nil {
		return calendar.MonthGrid{}, err
	}
	return calendar.BuildMonthGrid(year, month, s.weekStart, naps)
}

// MonthStatistics reports per-day counts and minutes for a month of the child's naps
func (s *NapService) MonthStatistics(ctx context.Context, childID int64, year int, month time.Month) (calendar.MonthStatistics, error) {
	naps, err := s.monthNaps(ctx, childID, year, month)
	if err != nil {
		return calendar.MonthStatistics{}, err
	}
	return calendar.BuildMonthStatistics(year, month, naps, s.Today())
}

func (s *NapService) monthNaps(ctx context.Context, childID int64, year int, month time.Month) ([]models.Nap, error) {
	if month < time.January || month > time.December {
		return nil, calendar.ErrInvalidMonth
	}

	first := models.NewDate(year, month, 1)
	last := models.NewDate(year, month+1, 0)

	naps, err := s.naps.ListByChildAndRange(ctx, childID, first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to load month: %w", err)
	}
	return naps, nil
}

// DayDetail summarises the child's naps and night record on date
func (s *NapService) DayDetail(ctx context.Context, childID int64, date models.Date) (calendar.DayDetail, error) {
	naps, err := s.naps.ListByChildAndDate(ctx, childID, date)
	if err != nil {
		return calendar.DayDetail{}, fmt.Errorf("failed to load day: %w", err)
	}

	night, err := s.nights.GetByChildAndDate(ctx, childID, date)
	if err != nil {
		return calendar.DayDetail{}, fmt.Errorf("failed to load night: %w", err)
	}

	return calendar.BuildDayDetail(date, naps, night), nil
}
