package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/repository"
)

// Repository handles database operations for forecast run tracking
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new run repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const runColumns = `
	id, trigger, status, as_of, items_total, recommendations, skipped_items,
	dropped_events, aggregate_monthly_demand, started_at, completed_at, COALESCE(error_message, '') AS error_message
`

// CreateRun inserts a new run record
func (r *Repository) CreateRun(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO forecast_runs (
			id, trigger, status, as_of, items_total, recommendations,
			skipped_items, dropped_events, started_at
		) VALUES (:id, :trigger, :status, :as_of, :items_total, :recommendations,
			:skipped_items, :dropped_events, :started_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

// UpdateRun updates status, counters and completion of an existing run
func (r *Repository) UpdateRun(ctx context.Context, run *domain.Run) error {
	query := `
		UPDATE forecast_runs
		SET status = :status, items_total = :items_total, recommendations = :recommendations,
		    skipped_items = :skipped_items, dropped_events = :dropped_events,
		    aggregate_monthly_demand = :aggregate_monthly_demand,
		    completed_at = :completed_at, error_message = NULLIF(:error_message, '')
		WHERE id = :id
	`

	res, err := r.db.NamedExecContext(ctx, query, run)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetRun retrieves a run by ID
func (r *Repository) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	run := &domain.Run{}
	err := r.db.GetContext(ctx, run, `SELECT `+runColumns+` FROM forecast_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRun retrieves the most recently started run
func (r *Repository) LatestRun(ctx context.Context) (*domain.Run, error) {
	run := &domain.Run{}
	err := r.db.GetContext(ctx, run, `SELECT `+runColumns+` FROM forecast_runs ORDER BY started_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

var _ repository.RunRepository = (*Repository)(nil)
