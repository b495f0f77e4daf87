package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/artifact"
	"github.com/temcen/shopsense/internal/catalog"
	"github.com/temcen/shopsense/internal/config"
	"github.com/temcen/shopsense/internal/database"
	"github.com/temcen/shopsense/internal/graph"
	"github.com/temcen/shopsense/internal/interactions"
	"github.com/temcen/shopsense/internal/messaging"
	"github.com/temcen/shopsense/internal/recommender"
)

type Services struct {
	Engine         *recommender.Service
	Metrics        *Metrics
	Auth           *AuthService
	Health         *HealthService
	Recommendation *RecommendationService
	Training       *TrainingService
	Models         *ModelManager
	RateLimit      *RateLimitService

	publisher *messaging.Publisher
	logger    *logrus.Logger
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database, reg prometheus.Registerer) (*Services, error) {
	metrics := NewMetrics(reg, logger)

	codec, err := artifact.NewCodec()
	if err != nil {
		return nil, err
	}
	store, err := newStore(cfg, db, codec, logger)
	if err != nil {
		return nil, err
	}
	catalogSource, err := newCatalogSource(cfg, db, logger)
	if err != nil {
		return nil, err
	}
	interactionSource, err := newInteractionSource(cfg, db, logger)
	if err != nil {
		return nil, err
	}

	engine := recommender.NewService(recommender.Options{
		Neighbors:   cfg.Recommendation.Neighbors,
		ExcludeSeen: cfg.Recommendation.ExcludeSeen,
	})

	var cache *RecommendationCache
	if db.Redis != nil {
		cache = NewRecommendationCache(db.Redis, cfg.Redis.CacheTTL, metrics, logger)
	}

	deps := TrainingDeps{
		Source:  interactionSource,
		Catalog: catalogSource,
		Store:   store,
		Engine:  engine,
		Options: recommender.TrainOptions{Workers: cfg.Recommendation.SimilarityWorkers},
	}
	if cfg.Training.ExportGraph && db.Neo4j != nil {
		deps.Exporter = graph.NewSimilarityExporter(
			graph.NewNeo4jRunner(db.Neo4j), cfg.Training.GraphTopK, cfg.Training.GraphMinScore, logger,
		)
	}

	s := &Services{
		Engine:  engine,
		Metrics: metrics,
		logger:  logger,
	}
	if cfg.Training.PublishEvents {
		s.publisher = messaging.NewPublisher(&cfg.Kafka, logger)
		deps.Publisher = s.publisher
	}

	s.Auth = NewAuthService(&cfg.Auth, logger)
	s.Recommendation = NewRecommendationService(engine, cache, cfg.Recommendation, metrics, logger)
	s.Training = NewTrainingService(deps, metrics, logger)
	s.Models = NewModelManager(store, catalogSource, engine, metrics, logger)
	if cfg.Security.RateLimit.Enabled && db.Redis != nil {
		s.RateLimit = NewRateLimitService(db.Redis, cfg.Security.RateLimit, logger)
	}
	s.Health = NewHealthService(
		DatabaseChecks(db, usesPostgres(cfg), cfg.Artifact.Backend == "redis"),
		engine, metrics, logger,
	)

	return s, nil
}

// Bootstrap loads the catalog and the stored model. Without a stored model it trains
// when trainOnStartup is set and otherwise starts unserved.
func (s *Services) Bootstrap(ctx context.Context, trainOnStartup bool) error {
	if err := s.Models.LoadCatalog(ctx); err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	_, err := s.Models.reload(ctx, "startup")
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, artifact.ErrNotFound):
		return err
	case trainOnStartup:
		_, err := s.Training.Train(ctx)
		return err
	default:
		s.logger.Warn("No stored model found, serving is unavailable until training runs")
		return nil
	}
}

func (s *Services) Close() error {
	if s.publisher != nil {
		return s.publisher.Close()
	}
	return nil
}

func newStore(cfg *config.Config, db *database.Database, codec *artifact.Codec, logger *logrus.Logger) (artifact.Store, error) {
	switch cfg.Artifact.Backend {
	case "redis":
		if db.Redis == nil {
			return nil, fmt.Errorf("redis artifact backend requires a Redis connection")
		}
		return artifact.NewRedisStore(db.Redis, cfg.Artifact.RedisKey, codec, logger), nil
	default:
		return artifact.NewFileStore(cfg.Artifact.Path, codec, logger), nil
	}
}

func newCatalogSource(cfg *config.Config, db *database.Database, logger *logrus.Logger) (catalog.Source, error) {
	if cfg.Catalog.Source == "postgres" {
		if db.PG == nil {
			return nil, fmt.Errorf("postgres catalog source requires a database connection")
		}
		return catalog.NewRepository(db.PG, logger), nil
	}
	return &catalog.CSVSource{Path: cfg.Catalog.Path}, nil
}

func newInteractionSource(cfg *config.Config, db *database.Database, logger *logrus.Logger) (interactions.Source, error) {
	if cfg.Training.Source == "postgres" {
		if db.PG == nil {
			return nil, fmt.Errorf("postgres training source requires a database connection")
		}
		return interactions.NewPostgresSource(db.PG, logger), nil
	}
	if cfg.Training.Format == "pivot" {
		return &interactions.PivotCSVSource{Path: cfg.Training.Path}, nil
	}
	return &interactions.CSVSource{Path: cfg.Training.Path}, nil
}

func usesPostgres(cfg *config.Config) bool {
	return cfg.Catalog.Source == "postgres" || cfg.Training.Source == "postgres"
}
