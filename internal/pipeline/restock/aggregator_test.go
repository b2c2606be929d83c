package restock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/forecast"
)

func TestDailySeriesIsContiguousAndConservesMass(t *testing.T) {
	events := []domain.SaleEvent{
		sale("e1", day(0).Add(9*time.Hour), line("a", 3), line("b", 1)),
		sale("e2", day(0).Add(15*time.Hour), line("a", 2)),
		sale("e3", day(4).Add(11*time.Hour), line("a", 7)),
		sale("e4", day(9).Add(23*time.Hour), line("b", 4), line("a", 1)),
		sale("e5", day(2), line("b", 6)),
	}

	agg := NewAggregator(time.UTC)
	clean, dropped := agg.Clean(events)
	require.Zero(t, dropped)

	for _, itemID := range []string{"a", "b"} {
		s := agg.DailySeries(itemID, clean)
		require.NoError(t, s.Validate())
		assert.Equal(t, sumQuantities(events, itemID), s.Total(), itemID)
	}

	a := agg.DailySeries("a", clean)
	assert.Equal(t, day(0), a.First())
	assert.Equal(t, day(9), a.Last())
	assert.Equal(t, 10, a.Len())
	assert.Equal(t, 5.0, a.Points[0].Value)
	assert.Zero(t, a.Points[1].Value)

	total := agg.AggregateSeries(clean)
	require.NoError(t, total.Validate())
	assert.Equal(t, sumQuantities(events, ""), total.Total())
	assert.Equal(t, forecast.AggregateKey, total.ItemID)
}

func TestSeriesByItemMatchesDailySeries(t *testing.T) {
	events := append(dailySales("x", "a", day(0), 20, 2), dailySales("y", "b", day(-5), 3, 9)...)

	agg := NewAggregator(time.UTC)
	clean, _ := agg.Clean(events)
	byItem := agg.SeriesByItem(clean)

	require.Len(t, byItem, 2)
	assert.Equal(t, agg.DailySeries("a", clean), byItem["a"])
	assert.Equal(t, agg.DailySeries("b", clean), byItem["b"])
}

func TestDailySeriesEmptyWithoutSales(t *testing.T) {
	agg := NewAggregator(time.UTC)
	clean, _ := agg.Clean([]domain.SaleEvent{sale("e1", day(0), line("a", 1))})

	s := agg.DailySeries("missing", clean)
	assert.True(t, s.Empty())
	assert.Equal(t, "missing", s.ItemID)
}

func TestCleanDropsMalformedEvents(t *testing.T) {
	events := []domain.SaleEvent{
		sale("ok", day(0), line("a", 1)),
		{ID: "raw-ok", RawOrderedAt: "2024-04-03 08:30:00", Lines: []domain.SaleLine{line("a", 2)}},
		{ID: "bad-date", RawOrderedAt: "yesterday-ish", Lines: []domain.SaleLine{line("a", 100)}},
		{ID: "no-date", Lines: []domain.SaleLine{line("a", 100)}},
		sale("no-lines", day(1)),
		sale("no-item", day(1), line("", 100)),
		sale("negative", day(1), line("a", -4)),
	}

	agg := NewAggregator(time.UTC)
	clean, dropped := agg.Clean(events)

	assert.Equal(t, 5, dropped)
	require.Len(t, clean, 2)

	s := agg.DailySeries("a", clean)
	assert.Equal(t, 3.0, s.Total())
	assert.Equal(t, day(2), s.Last())
}

func TestCleanNormalisesToLocation(t *testing.T) {
	wib := time.FixedZone("WIB", 7*3600)
	late := time.Date(2024, 4, 1, 20, 0, 0, 0, time.UTC)

	utc, _ := NewAggregator(time.UTC).Clean([]domain.SaleEvent{sale("e", late, line("a", 1))})
	local, _ := NewAggregator(wib).Clean([]domain.SaleEvent{sale("e", late, line("a", 1))})

	assert.Equal(t, day(0), utc[0].day)
	assert.Equal(t, day(1), local[0].day)
}
