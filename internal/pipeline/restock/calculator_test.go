package restock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/forecast"
)

func newTestCalculator() *Calculator {
	return NewCalculator(DefaultPolicy(), 30)
}

func TestThresholdFallback(t *testing.T) {
	history := forecast.Series{ItemID: "a", Points: []forecast.Point{
		{Date: day(-3), Value: 5}, {Date: day(-2), Value: 5}, {Date: day(-1), Value: 5},
	}}

	tests := []struct {
		stock int
		want  int
	}{
		{stock: -3, want: 53},
		{stock: 0, want: 50},
		{stock: 45, want: 5},
		{stock: 49, want: 1},
		{stock: 50, want: 0},
		{stock: 60, want: 0},
	}

	calc := newTestCalculator()
	for _, tt := range tests {
		rec := calc.FromHistory(domain.Item{ID: "a", Quantity: tt.stock}, history, apr1)
		assert.Equal(t, tt.want, rec.OrderQuantity, "stock %d", tt.stock)
		assert.Equal(t, domain.PolicyThreshold, rec.Policy)
		assert.False(t, rec.PeakAdjusted)
		assert.False(t, rec.SafetyStockApplied)
	}
}

func TestScenarioDegradedItem(t *testing.T) {
	history := forecast.Series{ItemID: "A"}
	for i := -5; i < 0; i++ {
		history.Points = append(history.Points, forecast.Point{Date: day(i), Value: 5})
	}

	rec := newTestCalculator().FromHistory(domain.Item{ID: "A", Quantity: 45}, history, apr1)

	assert.Equal(t, 5.0, rec.DailyAverage)
	assert.Equal(t, 5, rec.OrderQuantity)
	require.NotNil(t, rec.DaysUntilDepletion)
	assert.Equal(t, 9, *rec.DaysUntilDepletion)
	assert.Equal(t, domain.DepletionDate, rec.DepletionStatus)
	assert.Equal(t, day(9), *rec.DepletionDate)
}

func TestDegradedAverageUsesInclusiveSpan(t *testing.T) {
	history := forecast.Series{ItemID: "a", Points: []forecast.Point{
		{Date: day(-4), Value: 6}, {Date: day(-3), Value: 0}, {Date: day(-2), Value: 0}, {Date: day(-1), Value: 6},
	}}

	rec := newTestCalculator().FromHistory(domain.Item{ID: "a", Quantity: 100}, history, apr1)
	assert.Equal(t, 3.0, rec.DailyAverage)
	assert.Equal(t, domain.DepletionSufficient, rec.DepletionStatus)
}

func TestScenarioNoSalesEver(t *testing.T) {
	rec := newTestCalculator().MinimumStock(domain.Item{ID: "B", Quantity: 60})

	assert.Zero(t, rec.OrderQuantity)
	assert.Equal(t, domain.DepletionNotComputable, rec.DepletionStatus)
	assert.Nil(t, rec.DepletionDate)
	assert.Nil(t, rec.DaysUntilDepletion)
	assert.Equal(t, domain.PolicyMinimumStock, rec.Policy)

	low := newTestCalculator().MinimumStock(domain.Item{ID: "B", Quantity: 12})
	assert.Equal(t, 38, low.OrderQuantity)
}

func TestOrderQuantityIsMonthlyTimesBuffer(t *testing.T) {
	calc := newTestCalculator()
	for _, daily := range []float64{0.1, 0.5, 1, 3.3, 10, 17.25, 250} {
		f := flatForecast("a", apr1, daily, 30)
		rec := calc.FromForecast(domain.Item{ID: "a", Quantity: 10}, f, apr1)

		assert.InDelta(t, daily*30, rec.MonthlyDemand, 1e-9)
		assert.InDelta(t, rec.MonthlyDemand*1.35, float64(rec.OrderQuantity), 1, "daily %v", daily)
		assert.LessOrEqual(t, float64(rec.OrderQuantity), rec.MonthlyDemand*1.35+1e-9)
		assert.True(t, rec.PeakAdjusted)
		assert.True(t, rec.SafetyStockApplied)
		assert.Equal(t, domain.PolicyForecast, rec.Policy)
	}
}

func TestFromForecastMetrics(t *testing.T) {
	f := flatForecast("C", apr1, 10, 30)
	rec := newTestCalculator().FromForecast(domain.Item{ID: "C", Quantity: 40}, f, apr1)

	assert.Equal(t, 10.0, rec.DailyAverage)
	assert.InDelta(t, 2.0, rec.Confidence, 1e-9)
	require.NotNil(t, rec.DaysUntilDepletion)
	assert.Equal(t, 4, *rec.DaysUntilDepletion)
	require.NotNil(t, rec.DepletionDate)
	assert.Equal(t, day(4), *rec.DepletionDate)
	assert.Equal(t, 405, rec.OrderQuantity)
}

func TestZeroForecastIsSufficient(t *testing.T) {
	rec := newTestCalculator().FromForecast(domain.Item{ID: "a", Quantity: 5}, flatForecast("a", apr1, 0, 30), apr1)

	assert.Equal(t, domain.DepletionSufficient, rec.DepletionStatus)
	assert.Nil(t, rec.DaysUntilDepletion)
	assert.Zero(t, rec.OrderQuantity)
	assert.False(t, rec.PeakAdjusted)
}

func TestDepletionFrom(t *testing.T) {
	demand := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		name   string
		stock  int
		status domain.DepletionStatus
		offset int
	}{
		{name: "already out", stock: 0, status: domain.DepletionDate, offset: 0},
		{name: "negative stock", stock: -2, status: domain.DepletionDate, offset: 0},
		{name: "first day", stock: 1, status: domain.DepletionDate, offset: 1},
		{name: "exact cumulative", stock: 6, status: domain.DepletionDate, offset: 3},
		{name: "between days", stock: 7, status: domain.DepletionDate, offset: 4},
		{name: "whole horizon", stock: 15, status: domain.DepletionDate, offset: 5},
		{name: "beyond horizon", stock: 16, status: domain.DepletionSufficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DepletionFrom(tt.stock, apr1, demand)
			assert.Equal(t, tt.status, d.Status)
			if tt.status == domain.DepletionDate {
				require.NotNil(t, d.Date)
				assert.Equal(t, day(tt.offset), *d.Date)
			} else {
				assert.Nil(t, d.Date)
			}
		})
	}
}

func TestDepletionMonotoneInStock(t *testing.T) {
	demand := []float64{0, 4.5, 0, 0, 12, 1, 0.25, 7, 0, 3, 3, 3, 9, 0, 2}

	var prev *domain.Depletion
	for stock := -1; stock <= 60; stock++ {
		d := DepletionFrom(stock, apr1, demand)
		if prev != nil {
			switch {
			case prev.Status == domain.DepletionSufficient:
				assert.Equal(t, domain.DepletionSufficient, d.Status, "stock %d", stock)
			case d.Status == domain.DepletionDate:
				assert.False(t, d.Date.Before(*prev.Date), "stock %d", stock)
			}
		}
		prev = &d
	}
}
