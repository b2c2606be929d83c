package repository

import (
	"context"
	"errors"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/domain"
)

// ErrNotFound is returned when a single record lookup matches nothing.
var ErrNotFound = errors.New("not found")

type InventoryRepository interface {
	ListItems(ctx context.Context) ([]domain.Item, error)
	UpsertItems(ctx context.Context, items []domain.Item) error
	LatestItemUpdate(ctx context.Context) (*time.Time, error)
}

type SalesRepository interface {
	ListSaleEvents(ctx context.Context) ([]domain.SaleEvent, error)
	InsertSaleEvents(ctx context.Context, events []domain.SaleEvent) (int, error)
	// LatestSale covers both order time and insertion time so late-arriving
	// backfills still register as new data.
	LatestSale(ctx context.Context) (*time.Time, error)
}

type RecommendationRepository interface {
	// ReplaceRecommendations publishes recs as the only visible set.
	ReplaceRecommendations(ctx context.Context, runID string, recs []domain.Recommendation) error
	ListRecommendations(ctx context.Context) ([]domain.Recommendation, error)
	GetRecommendation(ctx context.Context, itemID string) (*domain.Recommendation, error)
	LatestRecommendationAt(ctx context.Context) (*time.Time, error)
}

type RunRepository interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	UpdateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	LatestRun(ctx context.Context) (*domain.Run, error)
}

// Clock reports the store's own time, the clock that stamps updated_at and recorded_at.
// Recommendation timestamps come from it so the change gate compares like with like.
type Clock interface {
	Now(ctx context.Context) (time.Time, error)
}

// Store is the data-access handle a forecast run works against.
type Store interface {
	Clock
	InventoryRepository
	SalesRepository
	RecommendationRepository
}

// SourceTimestamps gathers what the change gate needs in one call.
func SourceTimestamps(ctx context.Context, s Store) (domain.SourceTimestamps, error) {
	var ts domain.SourceTimestamps
	var err error

	if ts.LatestRecommendationAt, err = s.LatestRecommendationAt(ctx); err != nil {
		return ts, err
	}
	if ts.LatestItemUpdateAt, err = s.LatestItemUpdate(ctx); err != nil {
		return ts, err
	}
	if ts.LatestSaleAt, err = s.LatestSale(ctx); err != nil {
		return ts, err
	}
	return ts, nil
}
