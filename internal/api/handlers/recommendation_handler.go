package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/pipeline"
	"github.com/andresuchdata/restock-forecast/internal/repository"
)

// RecommendationService is what the handler reads and triggers through.
type RecommendationService interface {
	List(ctx context.Context) ([]domain.Recommendation, error)
	Get(ctx context.Context, itemID string) (*domain.Recommendation, error)
	LatestRun(ctx context.Context) (*domain.Run, error)
	TriggerRun(ctx context.Context, opts pipeline.Options) (*domain.Run, error)
}

type RecommendationHandler struct {
	service RecommendationService
}

func NewRecommendationHandler(service RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{service: service}
}

// ListRecommendations returns the published set, or 404 before the first run.
func (h *RecommendationHandler) ListRecommendations(c *gin.Context) {
	recs, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch recommendations", "details": err.Error()})
		return
	}
	if len(recs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no recommendations available"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recommendations": recs,
		"total":           len(recs),
	})
}

func (h *RecommendationHandler) GetRecommendation(c *gin.Context) {
	itemID := c.Param("item_id")
	rec, err := h.service.Get(c.Request.Context(), itemID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no recommendation for item", "item_id": itemID})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch recommendation", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *RecommendationHandler) GetLatestRun(c *gin.Context) {
	run, err := h.service.LatestRun(c.Request.Context())
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no runs recorded"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch latest run", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, run)
}

// TriggerRun runs the pipeline synchronously. ?force=true bypasses the change gate.
func (h *RecommendationHandler) TriggerRun(c *gin.Context) {
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))

	run, err := h.service.TriggerRun(c.Request.Context(), pipeline.Options{Force: force, Trigger: "api"})
	if errors.Is(err, pipeline.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("api: triggered run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run failed", "details": err.Error(), "run": run})
		return
	}

	status := http.StatusOK
	if run.Status == domain.RunSkipped {
		status = http.StatusAccepted
	}
	c.JSON(status, run)
}
