package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/config"
	"github.com/temcen/shopsense/internal/recommender"
	"github.com/temcen/shopsense/pkg/models"
)

// SourcePopular marks results served by the degraded popular-products mode.
const SourcePopular recommender.Source = "popular"

// RecommendationService is the request-facing wrapper around the engine: count limits,
// caching, the degraded mode and metrics.
type RecommendationService struct {
	engine  *recommender.Service
	cache   *RecommendationCache
	cfg     config.RecommendationConfig
	metrics *Metrics
	logger  *logrus.Logger
}

func NewRecommendationService(
	engine *recommender.Service,
	cache *RecommendationCache,
	cfg config.RecommendationConfig,
	metrics *Metrics,
	logger *logrus.Logger,
) *RecommendationService {
	return &RecommendationService{
		engine:  engine,
		cache:   cache,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// GetRecommendations serves up to n products for userID. n == 0 selects the configured
// default; negative counts and counts above the configured maximum are rejected.
func (s *RecommendationService) GetRecommendations(ctx context.Context, userID string, n int) (*models.RecommendationResponse, error) {
	started := time.Now()

	if n == 0 {
		n = s.cfg.DefaultCount
	}
	if n < 0 || n > s.cfg.MaxCount {
		s.metrics.observeRequest("recommend", "", "invalid_count", started)
		return nil, fmt.Errorf("%w: n must be between 1 and %d", recommender.ErrInvalidCount, s.cfg.MaxCount)
	}

	model := s.engine.Model()
	if model.Empty() {
		s.metrics.observeRequest("recommend", "", "not_trained", started)
		return nil, recommender.ErrModelNotTrained
	}

	if cached, ok := s.cache.Get(ctx, model.Version(), userID, n); ok {
		s.metrics.observeRequest("recommend", string(cached.Source), "cache_hit", started)
		return toResponse(cached, true), nil
	}

	rec, err := s.engine.Recommend(userID, n)
	if err != nil {
		s.metrics.observeRequest("recommend", "", outcomeOf(err), started)
		return nil, err
	}

	if rec.Source == recommender.SourceNone && s.cfg.DegradedMode == config.DegradedPopular {
		for _, p := range s.engine.Catalog().Popular(n) {
			rec.Items = append(rec.Items, p.ID)
		}
		if len(rec.Items) > 0 {
			rec.Source = SourcePopular
		}
	}

	s.cache.Set(ctx, rec, n)
	s.metrics.observeRequest("recommend", string(rec.Source), "ok", started)

	s.logger.WithFields(logrus.Fields{
		"user_id":       userID,
		"count":         len(rec.Items),
		"source":        rec.Source,
		"model_version": rec.ModelVersion,
	}).Debug("Recommendations generated")

	return toResponse(rec, false), nil
}

// SimilarProducts returns up to k catalog products resembling productID. k == 0 selects
// the configured fallback count.
func (s *RecommendationService) SimilarProducts(ctx context.Context, productID string, k int) (*models.SimilarProductsResponse, error) {
	started := time.Now()

	if k == 0 {
		k = s.cfg.FallbackCount
	}
	if k < 0 || k > s.cfg.MaxCount {
		return nil, fmt.Errorf("%w: k must be between 1 and %d", recommender.ErrInvalidCount, s.cfg.MaxCount)
	}

	products, err := s.engine.SimilarProducts(productID, k)
	s.metrics.observeRequest("similar_products", "", outcomeOf(err), started)
	if err != nil {
		return nil, err
	}

	return &models.SimilarProductsResponse{ProductID: productID, Products: products}, nil
}

// ModelInfo describes the served model.
func (s *RecommendationService) ModelInfo() (*models.ModelInfo, error) {
	model := s.engine.Model()
	if model.Empty() {
		return nil, recommender.ErrModelNotTrained
	}
	return modelInfo(model), nil
}

func modelInfo(model *recommender.TrainedModel) *models.ModelInfo {
	rows, cols := model.Shape()
	return &models.ModelInfo{
		Version:   model.Version(),
		TrainedAt: model.TrainedAt(),
		Users:     rows,
		Products:  cols,
		Shape:     [2]int{rows, cols},
	}
}

func toResponse(rec *recommender.Recommendation, cacheHit bool) *models.RecommendationResponse {
	items := rec.Items
	if items == nil {
		items = []string{}
	}
	return &models.RecommendationResponse{
		UserID:          rec.UserID,
		Recommendations: items,
		Count:           len(items),
		Source:          string(rec.Source),
		ModelVersion:    rec.ModelVersion,
		GeneratedAt:     time.Now().UTC(),
		CacheHit:        cacheHit,
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, recommender.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, recommender.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, recommender.ErrModelNotTrained):
		return "not_trained"
	case errors.Is(err, recommender.ErrInvalidCount):
		return "invalid_count"
	default:
		return "error"
	}
}
