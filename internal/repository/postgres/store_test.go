package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/restock-forecast/internal/config"
	"github.com/andresuchdata/restock-forecast/internal/domain"
)

// newTestStore connects to RESTOCK_TEST_DATABASE_URL, migrates and empties the
// tables. The tests are skipped when it is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("RESTOCK_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("RESTOCK_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, config.DatabaseConfig{URL: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = Migrate(ctx, db.DB.DB)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `TRUNCATE recommendations, sale_lines, sale_events, items, forecast_runs`)
	require.NoError(t, err)

	return NewStore(db)
}

func recommendation(itemID string, order int, computedAt time.Time) domain.Recommendation {
	return domain.Recommendation{
		ItemID:          itemID,
		CurrentStock:    10,
		DailyAverage:    1.5,
		DepletionStatus: domain.DepletionSufficient,
		MonthlyDemand:   45,
		OrderQuantity:   order,
		Policy:          domain.PolicyForecast,
		ComputedAt:      computedAt,
	}
}

func TestReplaceRecommendationsSwapsRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	t1 := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.ReplaceRecommendations(ctx, "run-1", []domain.Recommendation{
		recommendation("A", 5, t1),
		recommendation("B", 0, t1),
	}))

	recs, err := store.ListRecommendations(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "run-1", recs[0].RunID)

	t2 := t1.Add(time.Hour)
	require.NoError(t, store.ReplaceRecommendations(ctx, "run-2", []domain.Recommendation{recommendation("A", 9, t2)}))

	recs, err = store.ListRecommendations(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "run-2", recs[0].RunID)
	assert.Equal(t, 9, recs[0].OrderQuantity)

	_, err = store.GetRecommendation(ctx, "B")
	assert.Error(t, err)

	latest, err := store.LatestRecommendationAt(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, t2.Equal(*latest))
}

func TestFailedReplaceKeepsPreviousSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	t1 := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.ReplaceRecommendations(ctx, "run-1", []domain.Recommendation{recommendation("A", 5, t1)}))

	// A negative order violates the CHECK constraint, so the whole transaction rolls back.
	err := store.ReplaceRecommendations(ctx, "run-2", []domain.Recommendation{
		recommendation("A", 7, t1),
		recommendation("B", -1, t1),
	})
	require.Error(t, err)

	recs, err := store.ListRecommendations(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "run-1", recs[0].RunID)
	assert.Equal(t, 5, recs[0].OrderQuantity)
}

func TestNowComesFromTheDatabase(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now, err := store.Now(ctx)
	require.NoError(t, err)

	_, err = store.InsertSaleEvents(ctx, []domain.SaleEvent{{
		ID:        "s1",
		OrderedAt: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
		Lines:     []domain.SaleLine{{ItemID: "A", Quantity: 1}},
	}})
	require.NoError(t, err)

	latest, err := store.LatestSale(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.False(t, latest.Before(now))
}
