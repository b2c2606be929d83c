package restock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/forecast"
	"github.com/andresuchdata/restock-forecast/internal/pipeline"
	"github.com/andresuchdata/restock-forecast/internal/repository"
)

// Pipeline is the forecast-and-decide job: gate, aggregate, forecast, decide, publish.
type Pipeline struct {
	store       repository.Store
	aggregator  *Aggregator
	forecasting *Forecasting
	calculator  *Calculator
	gate        *Gate
	cfg         Config
}

// NewPipeline creates the restock pipeline over an injected store. models may be nil.
func NewPipeline(store repository.Store, forecaster forecast.Forecaster, models ModelStore, cfg Config) *Pipeline {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 30
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Pipeline{
		store:       store,
		aggregator:  NewAggregator(cfg.Location),
		forecasting: NewForecasting(forecaster, models, cfg),
		calculator:  NewCalculator(cfg.Policy, cfg.HorizonDays),
		gate:        NewGate(store),
		cfg:         cfg,
	}
}

func (p *Pipeline) Name() string { return "restock" }

func (p *Pipeline) Changed(ctx context.Context) (bool, error) {
	d, err := p.gate.Check(ctx)
	if err != nil {
		return false, err
	}
	log.Debug().Bool("run", d.Run).Str("reason", d.Reason).Msg("change gate")
	return d.Run, nil
}

// Report is the full outcome of one computation, before publishing.
type Report struct {
	Recommendations        []domain.Recommendation
	Skipped                []domain.SkippedItem
	DroppedEvents          int
	AggregateMonthlyDemand *float64
}

// Execute computes and publishes a new recommendation set stamped with runID.
// Any failure leaves the previously published set untouched.
func (p *Pipeline) Execute(ctx context.Context, runID string, asOf time.Time) (*pipeline.Result, error) {
	report, err := p.Compute(ctx, asOf)
	if err != nil {
		return nil, err
	}

	err = p.retry(ctx, "publish recommendations", func() error {
		return p.store.ReplaceRecommendations(ctx, runID, report.Recommendations)
	})
	if err != nil {
		return nil, fmt.Errorf("publish recommendations: %w", err)
	}

	return &pipeline.Result{
		ItemsTotal:             len(report.Recommendations),
		Recommendations:        len(report.Recommendations),
		SkippedItems:           report.Skipped,
		DroppedEvents:          report.DroppedEvents,
		AggregateMonthlyDemand: report.AggregateMonthlyDemand,
	}, nil
}

// Compute reads the store and produces one recommendation per item without writing anything.
func (p *Pipeline) Compute(ctx context.Context, asOf time.Time) (*Report, error) {
	// Stamped from the store's clock before reading, so data arriving mid-run
	// carries a later updated_at or recorded_at than the result.
	var computedAt time.Time
	if err := p.retry(ctx, "read store clock", func() (err error) {
		computedAt, err = p.store.Now(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("read store clock: %w", err)
	}
	computedAt = computedAt.UTC()
	asOfDay := forecast.Day(asOf, p.cfg.Location)

	var items []domain.Item
	if err := p.retry(ctx, "list items", func() (err error) {
		items, err = p.store.ListItems(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	var events []domain.SaleEvent
	if err := p.retry(ctx, "list sale events", func() (err error) {
		events, err = p.store.ListSaleEvents(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("list sale events: %w", err)
	}

	if len(items) == 0 {
		log.Warn().Msg("no items in inventory")
	}
	if len(events) == 0 {
		log.Warn().Msg("no sale events recorded")
	}

	clean, dropped := p.aggregator.Clean(events)
	byItem := p.aggregator.SeriesByItem(clean)

	series := make(map[string]forecast.Series, len(items))
	for _, item := range items {
		s, ok := byItem[item.ID]
		if !ok {
			s = forecast.Series{ItemID: item.ID}
		}
		series[item.ID] = s
	}

	forecasts, failures, err := p.forecasting.ForecastAll(ctx, series, asOfDay)
	if err != nil {
		return nil, err
	}
	itemIDs := make([]string, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)
	}
	p.forecasting.PruneModels(ctx, itemIDs)

	report := &Report{DroppedEvents: dropped}
	for _, f := range failures {
		report.Skipped = append(report.Skipped, domain.SkippedItem{ItemID: f.ItemID, Reason: f.Reason})
	}

	report.Recommendations = make([]domain.Recommendation, 0, len(items))
	for _, item := range items {
		rec := p.decide(item, forecasts, series[item.ID], asOfDay)
		rec.ComputedAt = computedAt
		report.Recommendations = append(report.Recommendations, rec)
	}

	if p.cfg.Aggregate {
		report.AggregateMonthlyDemand = p.aggregate(ctx, clean, asOfDay)
	}

	return report, nil
}

// decide picks the forecast path when a forecast exists, else the degraded paths.
func (p *Pipeline) decide(item domain.Item, forecasts ForecastSet, s forecast.Series, asOf time.Time) domain.Recommendation {
	if f, ok := forecasts[item.ID]; ok {
		return p.calculator.FromForecast(item, f, asOf)
	}
	if !s.Empty() {
		return p.calculator.FromHistory(item, s, asOf)
	}
	return p.calculator.MinimumStock(item)
}

// aggregate fits the portfolio model; its failure only loses the aggregate figure.
func (p *Pipeline) aggregate(ctx context.Context, clean []datedEvent, asOf time.Time) *float64 {
	s := p.aggregator.AggregateSeries(clean)
	f, err := p.forecasting.ForecastOne(ctx, s, asOf)
	if err != nil {
		var itemErr *ItemError
		if errors.As(err, &itemErr) {
			log.Warn().Str("reason", itemErr.Reason).Err(itemErr.Err).Msg("aggregate forecast unavailable")
		} else {
			log.Warn().Err(err).Msg("aggregate forecast failed")
		}
		return nil
	}
	total := f.SumPoint()
	log.Info().Float64("monthly_demand", total).Msg("aggregate forecast")
	return &total
}

func (p *Pipeline) retry(ctx context.Context, what string, op func() error) error {
	return pipeline.Retry(ctx, p.cfg.RetryAttempts, p.cfg.RetryBackoff, what, op)
}

var _ pipeline.Job = (*Pipeline)(nil)
