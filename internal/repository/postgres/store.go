package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/repository"
)

// Store reads items and sale events and publishes recommendations.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListItems(ctx context.Context) ([]domain.Item, error) {
	query := `
		SELECT id, name, quantity, last_restocked_at, updated_at
		FROM items
		ORDER BY id
	`

	var items []domain.Item
	if err := s.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("error listing items: %w", err)
	}
	return items, nil
}

func (s *Store) UpsertItems(ctx context.Context, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO items (id, name, quantity, last_restocked_at, updated_at)
		VALUES (:id, :name, :quantity, :last_restocked_at, COALESCE(:updated_at, NOW()))
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			quantity = EXCLUDED.quantity,
			last_restocked_at = COALESCE(EXCLUDED.last_restocked_at, items.last_restocked_at),
			updated_at = EXCLUDED.updated_at
	`

	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, item := range items {
			if _, err := tx.NamedExecContext(ctx, query, item); err != nil {
				return fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) LatestItemUpdate(ctx context.Context) (*time.Time, error) {
	return s.maxTime(ctx, `SELECT MAX(updated_at) FROM items`)
}

type saleEventRow struct {
	ID           string         `db:"id"`
	OrderedAt    sql.NullTime   `db:"ordered_at"`
	RawOrderedAt sql.NullString `db:"raw_ordered_at"`
	RecordedAt   time.Time      `db:"recorded_at"`
}

type saleLineRow struct {
	EventID  string `db:"event_id"`
	ItemID   string `db:"item_id"`
	Quantity int    `db:"quantity"`
}

func (s *Store) ListSaleEvents(ctx context.Context) ([]domain.SaleEvent, error) {
	var rows []saleEventRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, ordered_at, raw_ordered_at, recorded_at
		FROM sale_events
		ORDER BY ordered_at NULLS LAST, id
	`); err != nil {
		return nil, fmt.Errorf("error listing sale events: %w", err)
	}

	var lines []saleLineRow
	if err := s.db.SelectContext(ctx, &lines, `
		SELECT event_id, item_id, quantity
		FROM sale_lines
		ORDER BY event_id, id
	`); err != nil {
		return nil, fmt.Errorf("error listing sale lines: %w", err)
	}

	byEvent := make(map[string][]domain.SaleLine, len(rows))
	for _, l := range lines {
		byEvent[l.EventID] = append(byEvent[l.EventID], domain.SaleLine{ItemID: l.ItemID, Quantity: l.Quantity})
	}

	events := make([]domain.SaleEvent, 0, len(rows))
	for _, r := range rows {
		e := domain.SaleEvent{
			ID:           r.ID,
			RawOrderedAt: r.RawOrderedAt.String,
			RecordedAt:   r.RecordedAt,
			Lines:        byEvent[r.ID],
		}
		if r.OrderedAt.Valid {
			e.OrderedAt = r.OrderedAt.Time
		}
		events = append(events, e)
	}
	return events, nil
}

// InsertSaleEvents skips events whose id already exists and returns how many were new.
func (s *Store) InsertSaleEvents(ctx context.Context, events []domain.SaleEvent) (int, error) {
	inserted := 0
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, e := range events {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			var orderedAt sql.NullTime
			if !e.OrderedAt.IsZero() {
				orderedAt = sql.NullTime{Time: e.OrderedAt, Valid: true}
			}

			res, err := tx.ExecContext(ctx, `
				INSERT INTO sale_events (id, ordered_at, raw_ordered_at, recorded_at)
				VALUES ($1, $2, NULLIF($3, ''), NOW())
				ON CONFLICT (id) DO NOTHING
			`, e.ID, orderedAt, e.RawOrderedAt)
			if err != nil {
				return fmt.Errorf("failed to insert sale event %s: %w", e.ID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				continue
			}

			itemIDs := make([]string, len(e.Lines))
			quantities := make([]int64, len(e.Lines))
			for i, l := range e.Lines {
				itemIDs[i] = l.ItemID
				quantities[i] = int64(l.Quantity)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sale_lines (event_id, item_id, quantity)
				SELECT $1, item_id, quantity
				FROM unnest($2::text[], $3::int[]) AS t(item_id, quantity)
			`, e.ID, pq.Array(itemIDs), pq.Array(quantities)); err != nil {
				return fmt.Errorf("failed to insert lines for sale event %s: %w", e.ID, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *Store) LatestSale(ctx context.Context) (*time.Time, error) {
	return s.maxTime(ctx, `SELECT GREATEST(MAX(ordered_at), MAX(recorded_at)) FROM sale_events`)
}

// ReplaceRecommendations writes the new set under runID, then removes every other
// run's rows, all in one transaction.
func (s *Store) ReplaceRecommendations(ctx context.Context, runID string, recs []domain.Recommendation) error {
	for i := range recs {
		recs[i].RunID = runID
	}

	insert := `
		INSERT INTO recommendations (
			run_id, item_id, current_stock, daily_average, days_until_depletion,
			depletion_status, depletion_date, monthly_demand, order_quantity, confidence,
			peak_adjusted, safety_stock_applied, policy, last_restocked_at, computed_at
		) VALUES (
			:run_id, :item_id, :current_stock, :daily_average, :days_until_depletion,
			:depletion_status, :depletion_date, :monthly_demand, :order_quantity, :confidence,
			:peak_adjusted, :safety_stock_applied, :policy, :last_restocked_at, :computed_at
		)
	`

	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if len(recs) > 0 {
			if _, err := tx.NamedExecContext(ctx, insert, recs); err != nil {
				return fmt.Errorf("failed to insert recommendations: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM recommendations WHERE run_id <> $1`, runID); err != nil {
			return fmt.Errorf("failed to clear previous recommendations: %w", err)
		}
		return nil
	})
}

const recommendationColumns = `
	id, run_id, item_id, current_stock, daily_average, days_until_depletion,
	depletion_status, depletion_date, monthly_demand, order_quantity, confidence,
	peak_adjusted, safety_stock_applied, policy, last_restocked_at, computed_at
`

func (s *Store) ListRecommendations(ctx context.Context) ([]domain.Recommendation, error) {
	var recs []domain.Recommendation
	query := `SELECT ` + recommendationColumns + ` FROM recommendations ORDER BY item_id`
	if err := s.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("error listing recommendations: %w", err)
	}
	return recs, nil
}

func (s *Store) GetRecommendation(ctx context.Context, itemID string) (*domain.Recommendation, error) {
	var rec domain.Recommendation
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE item_id = $1 LIMIT 1`
	if err := s.db.GetContext(ctx, &rec, query, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("error getting recommendation for %s: %w", itemID, err)
	}
	return &rec, nil
}

func (s *Store) LatestRecommendationAt(ctx context.Context) (*time.Time, error) {
	return s.maxTime(ctx, `SELECT MAX(computed_at) FROM recommendations`)
}

func (s *Store) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := s.db.GetContext(ctx, &now, `SELECT NOW()`); err != nil {
		return time.Time{}, fmt.Errorf("error reading database clock: %w", err)
	}
	return now, nil
}

func (s *Store) maxTime(ctx context.Context, query string) (*time.Time, error) {
	var t sql.NullTime
	if err := s.db.GetContext(ctx, &t, query); err != nil {
		return nil, fmt.Errorf("error reading latest timestamp: %w", err)
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

var _ repository.Store = (*Store)(nil)
