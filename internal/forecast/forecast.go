package forecast

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// ForecastPoint is the prediction for one day with its uncertainty band.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Point float64   `json:"point"`
	Lower float64   `json:"lower"`
	Upper float64   `json:"upper"`
}

// Forecast covers the fitted history plus the future horizon.
// Points[HorizonStart:HorizonStart+HorizonDays] are the days after AsOf.
type Forecast struct {
	ItemID       string          `json:"item_id"`
	AsOf         time.Time       `json:"as_of"`
	HorizonDays  int             `json:"horizon_days"`
	HorizonStart int             `json:"horizon_start"`
	Points       []ForecastPoint `json:"points"`
}

// Horizon returns exactly the HorizonDays points following AsOf.
func (f Forecast) Horizon() []ForecastPoint {
	if f.HorizonDays <= 0 || f.HorizonStart+f.HorizonDays > len(f.Points) {
		return nil
	}
	return f.Points[f.HorizonStart : f.HorizonStart+f.HorizonDays]
}

// MeanPoint averages the horizon point estimates.
func (f Forecast) MeanPoint() float64 {
	return stat.Mean(f.column(func(p ForecastPoint) float64 { return p.Point }), nil)
}

// MeanUpper averages the horizon upper bounds.
func (f Forecast) MeanUpper() float64 {
	return stat.Mean(f.column(func(p ForecastPoint) float64 { return p.Upper }), nil)
}

// SumPoint totals the horizon point estimates.
func (f Forecast) SumPoint() float64 {
	var total float64
	for _, p := range f.Horizon() {
		total += p.Point
	}
	return total
}

func (f Forecast) column(get func(ForecastPoint) float64) []float64 {
	h := f.Horizon()
	out := make([]float64, len(h))
	for i, p := range h {
		out[i] = get(p)
	}
	return out
}

// Forecaster fits a series and projects it forward.
type Forecaster interface {
	Fit(series Series) (*Model, error)
	Project(model *Model, asOf time.Time, horizonDays int) Forecast
	// Fingerprint identifies series under the current parameters; a stored
	// model with the same fingerprint can stand in for a refit.
	Fingerprint(series Series) string
}

// TrendSeasonal is the default Forecaster.
type TrendSeasonal struct {
	Params Params
}

func NewTrendSeasonal(params Params) *TrendSeasonal {
	return &TrendSeasonal{Params: params.withDefaults()}
}

func (t *TrendSeasonal) Fit(series Series) (*Model, error) {
	return Fit(series, t.Params)
}

func (t *TrendSeasonal) Project(model *Model, asOf time.Time, horizonDays int) Forecast {
	return model.Project(asOf, horizonDays)
}

func (t *TrendSeasonal) Fingerprint(series Series) string {
	return series.Fingerprint(t.Params)
}
