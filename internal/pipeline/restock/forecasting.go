package restock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/restock-forecast/internal/forecast"
	"github.com/andresuchdata/restock-forecast/internal/pipeline"
)

// ModelStore is the artifact store for fitted models.
type ModelStore interface {
	Load(ctx context.Context, key forecast.ModelKey) (*forecast.Model, error)
	Save(ctx context.Context, m *forecast.Model) error
	Prune(ctx context.Context, keep map[string]bool) (int, error)
}

// Forecasting fans per-item fits out over a bounded worker pool.
type Forecasting struct {
	forecaster forecast.Forecaster
	models     ModelStore
	cfg        Config
}

// NewForecasting wires a forecaster and an optional model store; a nil store always refits.
func NewForecasting(forecaster forecast.Forecaster, models ModelStore, cfg Config) *Forecasting {
	return &Forecasting{forecaster: forecaster, models: models, cfg: cfg}
}

// ForecastAll forecasts every series. Item-level failures are collected; the returned
// error is set only when an external dependency failed after retries.
func (f *Forecasting) ForecastAll(ctx context.Context, series map[string]forecast.Series, asOf time.Time) (ForecastSet, []*ItemError, error) {
	ids := make([]string, 0, len(series))
	for id := range series {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		mu       sync.Mutex
		set      = make(ForecastSet, len(ids))
		failures []*ItemError
	)

	workers := f.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, id := range ids {
		s := series[id]
		g.Go(func() error {
			fc, err := f.ForecastOne(gctx, s, asOf)
			var itemErr *ItemError
			if errors.As(err, &itemErr) {
				log.Warn().Str("item_id", itemErr.ItemID).Str("reason", itemErr.Reason).Err(itemErr.Err).
					Msg("skipping forecast for item")
				mu.Lock()
				failures = append(failures, itemErr)
				mu.Unlock()
				return nil
			}
			if err != nil {
				return err
			}

			mu.Lock()
			set[id] = fc
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].ItemID < failures[j].ItemID })
	return set, failures, nil
}

// ForecastOne returns an *ItemError for data problems and a plain error for
// dependency failures.
func (f *Forecasting) ForecastOne(ctx context.Context, s forecast.Series, asOf time.Time) (forecast.Forecast, error) {
	if s.Empty() {
		return forecast.Forecast{}, &ItemError{ItemID: s.ItemID, Reason: ReasonNoSales, Err: forecast.ErrInsufficientData}
	}

	model, err := f.model(ctx, s)
	if err != nil {
		return forecast.Forecast{}, err
	}
	return f.forecaster.Project(model, asOf, f.cfg.HorizonDays), nil
}

// PruneModels drops stored models of items that left the inventory. Failure only
// leaves stale artifacts behind.
func (f *Forecasting) PruneModels(ctx context.Context, itemIDs []string) {
	if f.models == nil {
		return
	}
	keep := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		keep[id] = true
	}

	var removed int
	err := pipeline.Retry(ctx, f.cfg.RetryAttempts, f.cfg.RetryBackoff, "prune models", func() (err error) {
		removed, err = f.models.Prune(ctx, keep)
		return err
	})
	if err != nil {
		log.Warn().Err(err).Msg("could not prune stored models")
		return
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("pruned models of items no longer stocked")
	}
}

func (f *Forecasting) model(ctx context.Context, s forecast.Series) (*forecast.Model, error) {
	logger := log.With().Str("item_id", s.ItemID).Logger()

	if f.cfg.ReuseModels && f.models != nil {
		var stored *forecast.Model
		err := pipeline.Retry(ctx, f.cfg.RetryAttempts, f.cfg.RetryBackoff, "load model", func() error {
			var err error
			stored, err = f.models.Load(ctx, s.Key())
			if errors.Is(err, forecast.ErrModelNotFound) {
				return pipeline.Permanent(err)
			}
			return err
		})
		switch {
		case err == nil && stored.Fingerprint == f.forecaster.Fingerprint(s):
			logger.Debug().Msg("reusing stored model")
			return stored, nil
		case err == nil, errors.Is(err, forecast.ErrModelNotFound):
		default:
			return nil, fmt.Errorf("load model for %s: %w", s.ItemID, err)
		}
	}

	model, err := f.forecaster.Fit(s)
	if err != nil {
		reason := ReasonFitFailed
		if errors.Is(err, forecast.ErrInsufficientData) {
			reason = ReasonInsufficientData
		}
		return nil, &ItemError{ItemID: s.ItemID, Reason: reason, Err: err}
	}

	if f.models != nil {
		err := pipeline.Retry(ctx, f.cfg.RetryAttempts, f.cfg.RetryBackoff, "save model", func() error {
			return f.models.Save(ctx, model)
		})
		if err != nil {
			// The next run refits; a missing artifact only costs time.
			logger.Warn().Err(err).Msg("could not persist model")
		}
	}
	return model, nil
}
