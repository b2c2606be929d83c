package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/restock-forecast/internal/cache"
	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/pipeline"
	"github.com/andresuchdata/restock-forecast/internal/repository"
)

// RunExecutor starts forecast runs and reports on them.
type RunExecutor interface {
	Run(ctx context.Context, opts pipeline.Options) (*domain.Run, error)
	Latest(ctx context.Context) (*domain.Run, error)
}

type RecommendationService struct {
	repo   repository.RecommendationRepository
	runner RunExecutor
	cache  cache.RecommendationCache
}

func NewRecommendationService(repo repository.RecommendationRepository, runner RunExecutor, cacheImpl cache.RecommendationCache) *RecommendationService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopRecommendationCache()
	}
	return &RecommendationService{repo: repo, runner: runner, cache: cacheImpl}
}

// List returns the published recommendation set.
func (s *RecommendationService) List(ctx context.Context) ([]domain.Recommendation, error) {
	if recs, ok, err := s.cache.GetAll(ctx); err == nil && ok {
		return recs, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("recommendations: cache get failed")
	}

	recs, err := s.repo.ListRecommendations(ctx)
	if err != nil {
		return nil, err
	}

	if len(recs) > 0 {
		if err := s.cache.SetAll(ctx, recs); err != nil {
			log.Warn().Err(err).Msg("recommendations: cache set failed")
		}
	}
	return recs, nil
}

// Get returns the published recommendation for one item or repository.ErrNotFound.
func (s *RecommendationService) Get(ctx context.Context, itemID string) (*domain.Recommendation, error) {
	if rec, ok, err := s.cache.GetItem(ctx, itemID); err == nil && ok {
		return rec, nil
	} else if err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("recommendations: cache get item failed")
	}

	rec, err := s.repo.GetRecommendation(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetItem(ctx, rec); err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("recommendations: cache set item failed")
	}
	return rec, nil
}

func (s *RecommendationService) LatestRun(ctx context.Context) (*domain.Run, error) {
	return s.runner.Latest(ctx)
}

// TriggerRun executes a run and drops cached reads once a new set is published.
func (s *RecommendationService) TriggerRun(ctx context.Context, opts pipeline.Options) (*domain.Run, error) {
	run, err := s.runner.Run(ctx, opts)
	if run != nil && run.Status == domain.RunCompleted {
		if cerr := s.cache.InvalidateAll(ctx); cerr != nil {
			log.Warn().Err(cerr).Str("run_id", run.ID).Msg("recommendations: cache invalidation failed")
		}
	}
	return run, err
}
