package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/restock-forecast/internal/cache"
	"github.com/andresuchdata/restock-forecast/internal/config"
	"github.com/andresuchdata/restock-forecast/internal/forecast"
	"github.com/andresuchdata/restock-forecast/internal/ingest"
	"github.com/andresuchdata/restock-forecast/internal/pipeline"
	"github.com/andresuchdata/restock-forecast/internal/pipeline/restock"
	"github.com/andresuchdata/restock-forecast/internal/repository/postgres"
	"github.com/andresuchdata/restock-forecast/internal/service"
	"github.com/andresuchdata/restock-forecast/internal/storage"
)

// app holds every long-lived dependency built from configuration.
type app struct {
	cfg      *config.Config
	db       *postgres.DB
	redis    *redis.Client
	store    *postgres.Store
	runner   *pipeline.Runner
	service  *service.RecommendationService
	importer *ingest.Importer
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db, store: postgres.NewStore(db)}

	if cfg.Cache.Enabled {
		client, err := cache.NewClient(cfg.Cache)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
	}

	job, err := a.restockJob()
	if err != nil {
		a.Close()
		return nil, err
	}

	var locker pipeline.Locker
	if a.redis != nil {
		locker = cache.NewRunLock(a.redis, cfg.Cache)
	} else {
		locker = pipeline.NewLocalLocker()
	}

	runCfg := pipeline.DefaultConfig(job.Name())
	runCfg.RetryAttempts = cfg.Retry.Attempts
	runCfg.RetryBackoff = cfg.Retry.Backoff

	a.runner = pipeline.NewRunner(job, pipeline.NewRepository(db.DB), locker, runCfg)
	a.service = service.NewRecommendationService(a.store, a.runner, cache.NewRecommendationCache(a.redis, cfg.Cache))
	a.importer = ingest.NewImporter(a.store, cfg.Forecast.Location())
	return a, nil
}

func (a *app) restockJob() (*restock.Pipeline, error) {
	fc := a.cfg.Forecast

	params := forecast.DefaultParams()
	params.SeasonalityMode = forecast.ParseSeasonalityMode(fc.SeasonalityMode)
	params.ChangepointScale = fc.ChangepointScale
	params.IntervalWidth = fc.IntervalWidth
	params.MinPoints = fc.MinPoints

	rc := restock.DefaultConfig()
	rc.HorizonDays = fc.HorizonDays
	rc.Workers = fc.Workers
	rc.Aggregate = fc.Aggregate
	rc.ReuseModels = fc.ReuseModels
	rc.Location = fc.Location()
	rc.RetryAttempts = a.cfg.Retry.Attempts
	rc.RetryBackoff = a.cfg.Retry.Backoff
	rc.Policy = restock.Policy{
		Threshold:    a.cfg.Restock.Threshold,
		PeakFactor:   a.cfg.Restock.PeakFactor,
		SafetyFactor: a.cfg.Restock.SafetyFactor,
	}

	// Left as a nil interface when reuse is off so the pipeline never touches storage.
	var models restock.ModelStore
	if fc.ReuseModels {
		objects, err := storage.New(a.cfg.Artifacts)
		if err != nil {
			return nil, fmt.Errorf("failed to open model artifact storage: %w", err)
		}
		models = forecast.NewModelStore(objects)
	}

	return restock.NewPipeline(a.store, forecast.NewTrendSeasonal(params), models, rc), nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
}
