package forecast

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const modelVersion = 1

// SeasonalityMode selects how seasonality combines with the trend.
type SeasonalityMode string

const (
	Multiplicative SeasonalityMode = "multiplicative"
	Additive       SeasonalityMode = "additive"
)

// ParseSeasonalityMode maps a config string to a mode, defaulting to multiplicative.
func ParseSeasonalityMode(s string) SeasonalityMode {
	if SeasonalityMode(s) == Additive {
		return Additive
	}
	return Multiplicative
}

// Params controls model fitting.
type Params struct {
	SeasonalityMode  SeasonalityMode `json:"seasonality_mode"`
	ChangepointScale float64         `json:"changepoint_scale"`
	ChangepointRange float64         `json:"changepoint_range"`
	MaxChangepoints  int             `json:"max_changepoints"`
	WeeklyOrder      int             `json:"weekly_order"`
	YearlyOrder      int             `json:"yearly_order"`
	SeasonalityScale float64         `json:"seasonality_scale"`
	IntervalWidth    float64         `json:"interval_width"`
	MinPoints        int             `json:"min_points"`
}

// DefaultParams favours a smooth trend and multiplicative weekly seasonality.
func DefaultParams() Params {
	return Params{
		SeasonalityMode:  Multiplicative,
		ChangepointScale: 0.05,
		ChangepointRange: 0.8,
		MaxChangepoints:  25,
		WeeklyOrder:      3,
		YearlyOrder:      10,
		SeasonalityScale: 10,
		IntervalWidth:    0.8,
		MinPoints:        14,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.SeasonalityMode == "" {
		p.SeasonalityMode = d.SeasonalityMode
	}
	if p.ChangepointScale <= 0 {
		p.ChangepointScale = d.ChangepointScale
	}
	if p.ChangepointRange <= 0 || p.ChangepointRange > 1 {
		p.ChangepointRange = d.ChangepointRange
	}
	if p.MaxChangepoints < 0 {
		p.MaxChangepoints = 0
	}
	if p.WeeklyOrder < 0 {
		p.WeeklyOrder = 0
	}
	if p.YearlyOrder < 0 {
		p.YearlyOrder = 0
	}
	if p.SeasonalityScale <= 0 {
		p.SeasonalityScale = d.SeasonalityScale
	}
	if p.IntervalWidth <= 0 || p.IntervalWidth >= 1 {
		p.IntervalWidth = d.IntervalWidth
	}
	// A trend needs two distinct points; below three the fit is degenerate anyway.
	if p.MinPoints < 3 {
		p.MinPoints = 3
	}
	return p
}

// yearlyMinDays is the history needed before yearly seasonality is fitted.
const yearlyMinDays = 730

const backfitIterations = 10

// Model is a fitted piecewise-linear trend with Fourier seasonality.
// Trend coefficients are in units of y/YScale over time scaled to [0,1] across the fit range.
type Model struct {
	Version      int       `json:"version"`
	ItemID       string    `json:"item_id"`
	Aggregate    bool      `json:"aggregate,omitempty"`
	Params       Params    `json:"params"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Points       int       `json:"points"`
	YScale       float64   `json:"y_scale"`
	Offset       float64   `json:"offset"`
	Growth       float64   `json:"growth"`
	Changepoints []float64 `json:"changepoints"`
	Deltas       []float64 `json:"deltas"`
	Weekly       []float64 `json:"weekly"`
	Yearly       []float64 `json:"yearly,omitempty"`
	Sigma        float64   `json:"sigma"`
	Fingerprint  string    `json:"fingerprint"`
	FittedAt     time.Time `json:"fitted_at"`
}

func (m *Model) Key() ModelKey {
	return ModelKey{ItemID: m.ItemID, Aggregate: m.Aggregate}
}

// Fit fits a model to a contiguous daily series.
func Fit(series Series, params Params) (*Model, error) {
	params = params.withDefaults()

	n := series.Len()
	if n < params.MinPoints {
		return nil, fmt.Errorf("%w: %d points, need %d", ErrInsufficientData, n, params.MinPoints)
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFitFailed, err)
	}

	m := &Model{
		Version:     modelVersion,
		ItemID:      series.ItemID,
		Aggregate:   series.Aggregate,
		Params:      params,
		Start:       series.First(),
		End:         series.Last(),
		Points:      n,
		Fingerprint: series.Fingerprint(params),
		FittedAt:    time.Now().UTC(),
	}

	y := make([]float64, n)
	for i, p := range series.Points {
		y[i] = p.Value
		m.YScale = math.Max(m.YScale, math.Abs(p.Value))
	}
	if m.YScale == 0 {
		m.YScale = 1
	}
	ys := make([]float64, n)
	floats.ScaleTo(ys, 1/m.YScale, y)

	span := float64(n - 1)
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) / span
	}
	m.Changepoints = placeChangepoints(t, params)

	yearlyOrder := 0
	if n >= yearlyMinDays {
		yearlyOrder = params.YearlyOrder
	}

	trendX := make([][]float64, n)
	seasonX := make([][]float64, n)
	for i, p := range series.Points {
		trendX[i] = m.trendFeatures(t[i])
		seasonX[i] = seasonalFeatures(p.Date, params.WeeklyOrder, yearlyOrder)
	}

	cpPenalty := 1 / (2 * params.ChangepointScale * params.ChangepointScale)
	seasonPenalty := 1 / (2 * params.SeasonalityScale * params.SeasonalityScale)

	trendPen := make([]float64, 2+len(m.Changepoints))
	trendPen[0], trendPen[1] = 1e-9, 1e-9
	for i := 2; i < len(trendPen); i++ {
		trendPen[i] = cpPenalty
	}
	seasonPen := make([]float64, len(seasonX[0]))
	for i := range seasonPen {
		seasonPen[i] = seasonPenalty
	}

	var (
		trendBeta  []float64
		seasonBeta []float64
		err        error
	)
	switch params.SeasonalityMode {
	case Additive:
		trendBeta, seasonBeta, err = fitAdditive(trendX, seasonX, ys, trendPen, seasonPen)
	default:
		trendBeta, seasonBeta, err = fitMultiplicative(trendX, seasonX, ys, trendPen, seasonPen)
	}
	if err != nil {
		return nil, err
	}

	m.Offset, m.Growth = trendBeta[0], trendBeta[1]
	m.Deltas = trendBeta[2:]
	weeklyN := 2 * params.WeeklyOrder
	m.Weekly = seasonBeta[:weeklyN]
	if yearlyOrder > 0 {
		m.Yearly = seasonBeta[weeklyN:]
	}

	residuals := make([]float64, n)
	for i, p := range series.Points {
		residuals[i] = y[i] - m.predict(p.Date)
	}
	m.Sigma = math.Sqrt(floats.Dot(residuals, residuals) / float64(n))
	if math.IsNaN(m.Sigma) || math.IsInf(m.Sigma, 0) {
		return nil, fmt.Errorf("%w: non-finite residuals", ErrFitFailed)
	}

	return m, nil
}

func fitAdditive(trendX, seasonX [][]float64, ys, trendPen, seasonPen []float64) ([]float64, []float64, error) {
	nt := len(trendPen)
	rows := make([][]float64, len(ys))
	for i := range rows {
		rows[i] = append(append(make([]float64, 0, nt+len(seasonPen)), trendX[i]...), seasonX[i]...)
	}
	penalty := append(append([]float64{}, trendPen...), seasonPen...)
	beta, err := ridgeSolve(rows, ys, nil, penalty)
	if err != nil {
		return nil, nil, err
	}
	return beta[:nt], beta[nt:], nil
}

// fitMultiplicative alternates between the trend (on y/(1+s)) and the seasonal
// multiplier (on y/g - 1, weighted by g²) until the fixed iteration budget runs out.
func fitMultiplicative(trendX, seasonX [][]float64, ys, trendPen, seasonPen []float64) ([]float64, []float64, error) {
	n := len(ys)
	seasonBeta := make([]float64, len(seasonPen))
	var trendBeta []float64

	target := make([]float64, n)
	weights := make([]float64, n)
	g := make([]float64, n)

	for iter := 0; iter < backfitIterations; iter++ {
		for i := range ys {
			mult := 1 + floats.Dot(seasonX[i], seasonBeta)
			if mult < 0.1 {
				mult = 0.1
			}
			target[i] = ys[i] / mult
		}
		var err error
		trendBeta, err = ridgeSolve(trendX, target, nil, trendPen)
		if err != nil {
			return nil, nil, err
		}

		for i := range ys {
			g[i] = floats.Dot(trendX[i], trendBeta)
			if g[i] > 1e-6 {
				weights[i] = g[i] * g[i]
				target[i] = ys[i]/g[i] - 1
			} else {
				weights[i] = 0
				target[i] = 0
			}
		}
		seasonBeta, err = ridgeSolve(seasonX, target, weights, seasonPen)
		if err != nil {
			return nil, nil, err
		}
	}

	return trendBeta, seasonBeta, nil
}

// ridgeSolve solves (XᵀWX + diag(penalty))β = XᵀWz by Cholesky.
func ridgeSolve(x [][]float64, z, w, penalty []float64) ([]float64, error) {
	p := len(penalty)
	if p == 0 {
		return []float64{}, nil
	}

	a := mat.NewSymDense(p, nil)
	b := mat.NewVecDense(p, nil)
	for r, row := range x {
		wr := 1.0
		if w != nil {
			wr = w[r]
		}
		if wr == 0 {
			continue
		}
		for i := 0; i < p; i++ {
			if row[i] == 0 {
				continue
			}
			b.SetVec(i, b.AtVec(i)+wr*row[i]*z[r])
			for j := i; j < p; j++ {
				a.SetSym(i, j, a.At(i, j)+wr*row[i]*row[j])
			}
		}
	}
	for i, pen := range penalty {
		a.SetSym(i, i, a.At(i, i)+pen)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, fmt.Errorf("%w: normal equations not positive definite", ErrFitFailed)
	}
	beta := mat.NewVecDense(p, nil)
	if err := chol.SolveVecTo(beta, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFitFailed, err)
	}

	out := make([]float64, p)
	for i := range out {
		out[i] = beta.AtVec(i)
	}
	return out, nil
}

// placeChangepoints spreads candidate changepoints uniformly over the first
// ChangepointRange of the history.
func placeChangepoints(t []float64, params Params) []float64 {
	histSize := int(math.Floor(float64(len(t)) * params.ChangepointRange))
	count := params.MaxChangepoints
	if count+1 > histSize {
		count = histSize - 1
	}
	if count <= 0 {
		return []float64{}
	}

	cps := make([]float64, 0, count)
	step := float64(histSize-1) / float64(count)
	for i := 1; i <= count; i++ {
		idx := int(math.Round(float64(i) * step))
		cps = append(cps, t[idx])
	}
	return cps
}

func (m *Model) trendFeatures(t float64) []float64 {
	row := make([]float64, 2+len(m.Changepoints))
	row[0] = 1
	row[1] = t
	for j, s := range m.Changepoints {
		if t > s {
			row[2+j] = t - s
		}
	}
	return row
}

func seasonalFeatures(date time.Time, weeklyOrder, yearlyOrder int) []float64 {
	dayNum := float64(date.Unix()) / 86400
	row := make([]float64, 0, 2*(weeklyOrder+yearlyOrder))
	row = appendFourier(row, dayNum, 7, weeklyOrder)
	row = appendFourier(row, dayNum, 365.25, yearlyOrder)
	return row
}

func appendFourier(row []float64, dayNum, period float64, order int) []float64 {
	for k := 1; k <= order; k++ {
		x := 2 * math.Pi * float64(k) * dayNum / period
		row = append(row, math.Sin(x), math.Cos(x))
	}
	return row
}

func (m *Model) scaledTime(date time.Time) float64 {
	span := DaysBetween(m.Start, m.End)
	if span < 1 {
		span = 1
	}
	return float64(DaysBetween(m.Start, date)) / float64(span)
}

// predict returns the point estimate for a date, clamped at zero.
func (m *Model) predict(date time.Time) float64 {
	trend := floats.Dot(m.trendFeatures(m.scaledTime(date)), m.trendCoefficients())

	yearlyOrder := len(m.Yearly) / 2
	season := floats.Dot(seasonalFeatures(date, len(m.Weekly)/2, yearlyOrder), m.seasonCoefficients())

	var yhat float64
	if m.Params.SeasonalityMode == Additive {
		yhat = (trend + season) * m.YScale
	} else {
		yhat = trend * (1 + season) * m.YScale
	}
	if yhat < 0 || math.IsNaN(yhat) {
		return 0
	}
	return yhat
}

func (m *Model) trendCoefficients() []float64 {
	return append([]float64{m.Offset, m.Growth}, m.Deltas...)
}

func (m *Model) seasonCoefficients() []float64 {
	return append(append([]float64{}, m.Weekly...), m.Yearly...)
}

// intervalHalfWidth widens the residual band with distance past the fit range.
func (m *Model) intervalHalfWidth(date time.Time) float64 {
	z := distuv.UnitNormal.Quantile(0.5 + m.Params.IntervalWidth/2)
	steps := 0
	if date.After(m.End) {
		steps = DaysBetween(m.End, date)
	}
	return z * m.Sigma * math.Sqrt(1+float64(steps)/float64(m.Points))
}

// Project evaluates the model from the fit start through asOf+horizon days.
// The horizon always starts the day after asOf, regardless of when the model was fitted.
func (m *Model) Project(asOf time.Time, horizon int) Forecast {
	asOfDay := Day(asOf, time.UTC)
	first := AddDays(asOfDay, 1)
	last := AddDays(asOfDay, horizon)

	from := m.Start
	if first.Before(from) {
		from = first
	}
	to := m.End
	if last.After(to) {
		to = last
	}

	f := Forecast{
		ItemID:      m.ItemID,
		AsOf:        asOfDay,
		HorizonDays: horizon,
		Points:      make([]ForecastPoint, 0, DaysBetween(from, to)+1),
	}
	for d := from; !d.After(to); d = AddDays(d, 1) {
		if d.Equal(first) {
			f.HorizonStart = len(f.Points)
		}
		point := m.predict(d)
		half := m.intervalHalfWidth(d)
		f.Points = append(f.Points, ForecastPoint{
			Date:  d,
			Point: point,
			Lower: math.Max(0, point-half),
			Upper: point + half,
		})
	}
	return f
}
