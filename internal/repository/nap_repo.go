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

var napColumns = []string{"id", "child_id", "nap_date", "start_time", "end_time", "problem", "place", "notes", "created_at"}

// NapRepository stores daytime naps
type NapRepository struct {
	db *database.DB
}

func NewNapRepository(db *database.DB) *NapRepository {
	return &NapRepository{db: db}
}

// Create inserts a nap and fills in its ID and creation time
func (r *NapRepository) Create(ctx context.Context, nap *models.Nap) error {
	now := time.Now().UTC()
	query, args, err := r.db.Build(r.db.Builder.
		Insert("naps").
		Columns("child_id", "nap_date", "start_time", "end_time", "problem", "place", "notes", "created_at").
		Values(nap.ChildID, nap.Date, nap.Start, nap.End, nap.Problem, nap.Place, nap.Notes, now))
	if err != nil {
		return err
	}

	id, err := r.db.ExecReturningID(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create nap: %w", err)
	}
	nap.ID = id
	nap.CreatedAt = now
	return nil
}

// ListByChildAndRange returns the child's naps dated from..to inclusive,
// ordered by date then start time
func (r *NapRepository) ListByChildAndRange(ctx context.Context, childID int64, from, to models.Date) ([]models.Nap, error) {
	return r.list(ctx, squirrel.And{
		squirrel.Eq{"child_id": childID},
		squirrel.GtOrEq{"nap_date": from},
		squirrel.LtOrEq{"nap_date": to},
	})
}

// ListByChildAndDate returns the child's naps on one date ordered by start time
func (r *NapRepository) ListByChildAndDate(ctx context.Context, childID int64, date models.Date) ([]models.Nap, error) {
	return r.list(ctx, squirrel.Eq{"child_id": childID, "nap_date": date})
}

func (r *NapRepository) list(ctx context.Context, where squirrel.Sqlizer) ([]models.Nap, error) {
	query, args, err := r.db.Build(r.db.Builder.
		Select(napColumns...).
		From("naps").
		Where(where).
		OrderBy("nap_date", "start_time", "id"))
	if err != nil {
		return nil, err
	}

	naps := []models.Nap{}
	if err := r.db.SelectContext(ctx, &naps, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list naps: %w", err)
	}
	return naps, nil
}

// NightNapRepository stores one overnight record per child per date
type NightNapRepository struct {
	db *database.DB
}

func NewNightNapRepository(db *database.DB) *NightNapRepository {
	return &NightNapRepository{db: db}
}

// Upsert inserts the night record or replaces the times of the existing one
func (r *NightNapRepository) Upsert(ctx context.Context, night *models.NightNap) error {
	_, err := r.db.ExecContext(ctx, r.db.Dialect.UpsertNightNapQuery(),
		night.ChildID, night.Date, night.WakeUp, night.FallAsleep)
	if err != nil {
		return fmt.Errorf("failed to save night nap: %w", err)
	}
	return nil
}

// GetByChildAndDate returns the night record for the date, or nil when none was saved
func (r *NightNapRepository) GetByChildAndDate(ctx context.Context, childID int64, date models.Date) (*models.NightNap, error) {
	query, args, err := r.db.Build(r.db.Builder.
		Select("id", "child_id", "nap_date", "wake_up", "fall_asleep", "created_at").
		From("night_naps").
		Where(squirrel.Eq{"child_id": childID, "nap_date": date}).
		Limit(1))
	if err != nil {
		return nil, err
	}

	night := &models.NightNap{}
	err = r.db.GetContext(ctx, night, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get night nap: %w", err)
	}
	return night, nil
}
