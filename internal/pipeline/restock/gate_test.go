package restock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/repository/memory"
)

func ptr(t time.Time) *time.Time { return &t }

func TestDecide(t *testing.T) {
	T := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ts   domain.SourceTimestamps
		run  bool
	}{
		{name: "no previous recommendations", ts: domain.SourceTimestamps{}, run: true},
		{name: "no previous recommendations with data", ts: domain.SourceTimestamps{LatestSaleAt: ptr(T)}, run: true},
		{name: "sale one second later", ts: domain.SourceTimestamps{LatestRecommendationAt: ptr(T), LatestSaleAt: ptr(T.Add(time.Second))}, run: true},
		{name: "item update later", ts: domain.SourceTimestamps{LatestRecommendationAt: ptr(T), LatestItemUpdateAt: ptr(T.Add(time.Second)), LatestSaleAt: ptr(T)}, run: true},
		{name: "everything at T", ts: domain.SourceTimestamps{LatestRecommendationAt: ptr(T), LatestItemUpdateAt: ptr(T), LatestSaleAt: ptr(T)}, run: false},
		{name: "everything before T", ts: domain.SourceTimestamps{LatestRecommendationAt: ptr(T), LatestItemUpdateAt: ptr(T.Add(-time.Hour)), LatestSaleAt: ptr(T.Add(-time.Minute))}, run: false},
		{name: "no sources", ts: domain.SourceTimestamps{LatestRecommendationAt: ptr(T)}, run: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.ts)
			assert.Equal(t, tt.run, d.Run)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestGateAgainstStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gate := NewGate(store)
	T := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	d, err := gate.Check(ctx)
	require.NoError(t, err)
	assert.True(t, d.Run)

	require.NoError(t, store.UpsertItems(ctx, []domain.Item{{ID: "a", Quantity: 1, UpdatedAt: ptr(T.Add(-time.Hour))}}))
	_, err = store.InsertSaleEvents(ctx, []domain.SaleEvent{{ID: "s1", OrderedAt: T.Add(-2 * time.Hour), RecordedAt: T, Lines: []domain.SaleLine{line("a", 1)}}})
	require.NoError(t, err)
	require.NoError(t, store.ReplaceRecommendations(ctx, "run-1", []domain.Recommendation{{ItemID: "a", ComputedAt: T}}))

	d, err = gate.Check(ctx)
	require.NoError(t, err)
	assert.False(t, d.Run)

	_, err = store.InsertSaleEvents(ctx, []domain.SaleEvent{{ID: "s2", OrderedAt: T.Add(-24 * time.Hour), RecordedAt: T.Add(time.Second), Lines: []domain.SaleLine{line("a", 1)}}})
	require.NoError(t, err)

	d, err = gate.Check(ctx)
	require.NoError(t, err)
	assert.True(t, d.Run)
	assert.Equal(t, "new sales", d.Reason)
}
