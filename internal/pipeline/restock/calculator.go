package restock

import (
	"math"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/forecast"
)

// Policy holds the fixed decision constants.
type Policy struct {
	Threshold    float64 // Reorder threshold used when no model is available
	PeakFactor   float64 // Share of monthly demand added for demand spikes
	SafetyFactor float64 // Share of monthly demand held as safety stock
}

// DefaultPolicy is threshold 50 with a 15% peak and 20% safety buffer.
func DefaultPolicy() Policy {
	return Policy{Threshold: 50, PeakFactor: 0.15, SafetyFactor: 0.20}
}

// Calculator turns stock plus demand into a restock decision.
type Calculator struct {
	policy  Policy
	horizon int
}

// NewCalculator creates a new calculator for a horizonDays-long window.
func NewCalculator(policy Policy, horizonDays int) *Calculator {
	return &Calculator{policy: policy, horizon: horizonDays}
}

// FromForecast is the primary path: every quantity comes from the forecast horizon.
func (c *Calculator) FromForecast(item domain.Item, f forecast.Forecast, asOf time.Time) domain.Recommendation {
	horizon := f.Horizon()
	rec := c.base(item, domain.PolicyForecast)

	demand := make([]float64, len(horizon))
	for i, p := range horizon {
		demand[i] = p.Point
	}

	if len(horizon) > 0 {
		// 1. Daily average and monthly demand over the horizon
		rec.DailyAverage = f.MeanPoint()
		rec.MonthlyDemand = f.SumPoint()

		// 2. Uncertainty: mean upper bound over mean point
		rec.Confidence = f.MeanUpper() - rec.DailyAverage
	}

	// 3. Days until depletion and depletion date
	rec.DaysUntilDepletion = daysUntilDepletion(item.Quantity, rec.DailyAverage)
	rec.SetDepletion(DepletionFrom(item.Quantity, asOf, demand))

	// 4. Order quantity = monthly + peak + safety, truncated
	peak := c.policy.PeakFactor * rec.MonthlyDemand
	safety := c.policy.SafetyFactor * rec.MonthlyDemand
	rec.OrderQuantity = nonNegative(int(rec.MonthlyDemand + peak + safety))
	rec.PeakAdjusted = peak > 0
	rec.SafetyStockApplied = safety > 0

	return rec
}

// FromHistory is the degraded path for items with sales but no model.
// The daily average is the observed total over the inclusive first..last sale span.
func (c *Calculator) FromHistory(item domain.Item, series forecast.Series, asOf time.Time) domain.Recommendation {
	rec := c.base(item, domain.PolicyThreshold)

	if !series.Empty() {
		days := forecast.DaysBetween(series.First(), series.Last()) + 1
		rec.DailyAverage = series.Total() / float64(days)
	}
	rec.MonthlyDemand = rec.DailyAverage * float64(c.horizon)
	rec.DaysUntilDepletion = daysUntilDepletion(item.Quantity, rec.DailyAverage)

	if rec.DailyAverage > 0 || item.Quantity <= 0 {
		demand := make([]float64, c.horizon)
		for i := range demand {
			demand[i] = rec.DailyAverage
		}
		rec.SetDepletion(DepletionFrom(item.Quantity, asOf, demand))
	} else {
		rec.SetDepletion(domain.Depletion{Status: domain.DepletionNotComputable})
	}

	if float64(item.Quantity) < c.policy.Threshold {
		rec.OrderQuantity = nonNegative(int(c.policy.Threshold) - item.Quantity)
	}

	return rec
}

// MinimumStock is the fallback for items with no sales at all.
func (c *Calculator) MinimumStock(item domain.Item) domain.Recommendation {
	rec := c.base(item, domain.PolicyMinimumStock)
	rec.SetDepletion(domain.Depletion{Status: domain.DepletionNotComputable})
	rec.OrderQuantity = nonNegative(int(c.policy.Threshold) - item.Quantity)
	return rec
}

func (c *Calculator) base(item domain.Item, policy domain.Policy) domain.Recommendation {
	return domain.Recommendation{
		ItemID:          item.ID,
		CurrentStock:    item.Quantity,
		Policy:          policy,
		LastRestockedAt: item.LastRestockedAt,
	}
}

// depletionTolerance absorbs float error in fitted point estimates.
const depletionTolerance = 1e-6

// DepletionFrom finds the first day after asOf whose cumulative demand meets stock.
// demand[i] is the expected demand on asOf+i+1. Stock at or below zero is already depleted.
func DepletionFrom(stock int, asOf time.Time, demand []float64) domain.Depletion {
	if stock <= 0 {
		d := asOf
		return domain.Depletion{Status: domain.DepletionDate, Date: &d}
	}

	var cumulative float64
	for i, q := range demand {
		cumulative += q
		if cumulative+depletionTolerance >= float64(stock) {
			d := forecast.AddDays(asOf, i+1)
			return domain.Depletion{Status: domain.DepletionDate, Date: &d}
		}
	}
	return domain.Depletion{Status: domain.DepletionSufficient}
}

func daysUntilDepletion(stock int, dailyAverage float64) *int {
	if dailyAverage <= 0 || math.IsNaN(dailyAverage) {
		return nil
	}
	days := int(math.Round(math.Max(0, float64(stock)) / dailyAverage))
	return &days
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
