package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/repository"
)

func TestSaleEventsAreDeduplicated(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	at := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	n, err := s.InsertSaleEvents(ctx, []domain.SaleEvent{
		{ID: "1", OrderedAt: at, Lines: []domain.SaleLine{{ItemID: "A", Quantity: 1}}},
		{ID: "1", OrderedAt: at},
		{OrderedAt: at},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := s.ListSaleEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.NotEmpty(t, events[1].ID)
	assert.False(t, events[0].RecordedAt.IsZero())
}

func TestLatestSaleCoversRecordedAt(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	recorded := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return recorded }

	latest, err := s.LatestSale(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	// A backfilled sale ordered long ago still moves the latest timestamp.
	_, err = s.InsertSaleEvents(ctx, []domain.SaleEvent{{ID: "old", OrderedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)}})
	require.NoError(t, err)

	latest, err = s.LatestSale(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, recorded, *latest)
}

func TestReplaceRecommendationsSwapsTheSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	t1 := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.ReplaceRecommendations(ctx, "r1", []domain.Recommendation{
		{ItemID: "B", ComputedAt: t1},
		{ItemID: "A", ComputedAt: t1},
	}))
	recs, err := s.ListRecommendations(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].ItemID)
	assert.Equal(t, "r1", recs[0].RunID)

	t2 := t1.Add(time.Hour)
	require.NoError(t, s.ReplaceRecommendations(ctx, "r2", []domain.Recommendation{{ItemID: "C", ComputedAt: t2}}))

	_, err = s.GetRecommendation(ctx, "A")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	latest, err := s.LatestRecommendationAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, t2, *latest)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.LatestRun(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	run := &domain.Run{Status: domain.RunPending}
	require.NoError(t, s.CreateRun(ctx, run))
	require.NotEmpty(t, run.ID)

	run.Status = domain.RunCompleted
	require.NoError(t, s.UpdateRun(ctx, run))

	got, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, got.Status)

	assert.ErrorIs(t, s.UpdateRun(ctx, &domain.Run{ID: "nope"}), repository.ErrNotFound)
}

func TestSourceTimestamps(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.UpsertItems(ctx, []domain.Item{{ID: "A", Quantity: 1}}))

	ts, err := repository.SourceTimestamps(ctx, s)
	require.NoError(t, err)
	assert.Nil(t, ts.LatestRecommendationAt)
	assert.Nil(t, ts.LatestSaleAt)
	require.NotNil(t, ts.LatestItemUpdateAt)
	assert.Equal(t, now, *ts.LatestItemUpdateAt)
}
