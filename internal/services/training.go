package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/artifact"
	"github.com/temcen/shopsense/internal/catalog"
	"github.com/temcen/shopsense/internal/interactions"
	"github.com/temcen/shopsense/internal/messaging"
	"github.com/temcen/shopsense/internal/recommender"
	"github.com/temcen/shopsense/pkg/models"
)

var (
	ErrTrainingInProgress = errors.New("a training run is already in progress")
	ErrNoInteractions     = errors.New("training source returned no interactions")
)

// GraphExporter mirrors a model into the graph store.
type GraphExporter interface {
	Export(ctx context.Context, model *recommender.TrainedModel) (int, error)
}

// EventPublisher announces new models to other instances.
type EventPublisher interface {
	PublishModelUpdate(ctx context.Context, event messaging.ModelEvent) error
}

// TrainingService runs the offline pipeline: read interactions, train, persist, swap,
// then the optional graph export and model-update event. Only one run executes at a time.
type TrainingService struct {
	source    interactions.Source
	catalog   catalog.Source
	store     artifact.Store
	engine    *recommender.Service
	exporter  GraphExporter
	publisher EventPublisher
	opts      recommender.TrainOptions
	metrics   *Metrics
	logger    *logrus.Logger

	mu sync.Mutex
}

type TrainingDeps struct {
	Source    interactions.Source
	Catalog   catalog.Source
	Store     artifact.Store
	Engine    *recommender.Service
	Exporter  GraphExporter
	Publisher EventPublisher
	Options   recommender.TrainOptions
}

func NewTrainingService(deps TrainingDeps, metrics *Metrics, logger *logrus.Logger) *TrainingService {
	return &TrainingService{
		source:    deps.Source,
		catalog:   deps.Catalog,
		store:     deps.Store,
		engine:    deps.Engine,
		exporter:  deps.Exporter,
		publisher: deps.Publisher,
		opts:      deps.Options,
		metrics:   metrics,
		logger:    logger,
	}
}

// Train runs the pipeline once. The new model is served only after it was persisted.
// Graph export and event publishing failures are logged; the model stays in place.
func (s *TrainingService) Train(ctx context.Context) (*models.ModelInfo, error) {
	if !s.mu.TryLock() {
		return nil, ErrTrainingInProgress
	}
	defer s.mu.Unlock()

	started := time.Now()
	info, err := s.train(ctx)
	if err != nil {
		s.metrics.trainingRuns.WithLabelValues("failed").Inc()
		s.logger.WithError(err).Error("Training run failed")
		return nil, err
	}

	elapsed := time.Since(started)
	s.metrics.trainingRuns.WithLabelValues("succeeded").Inc()
	s.metrics.trainingDuration.Observe(elapsed.Seconds())

	s.logger.WithFields(logrus.Fields{
		"version":  info.Version,
		"users":    info.Users,
		"products": info.Products,
		"duration": elapsed,
	}).Info("Training run completed")

	return info, nil
}

func (s *TrainingService) train(ctx context.Context) (*models.ModelInfo, error) {
	var products *catalog.Catalog
	if s.catalog != nil {
		c, err := catalog.Load(ctx, s.catalog, s.logger)
		if err != nil {
			return nil, err
		}
		products = c
	}

	records, err := s.source.Interactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read interactions: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoInteractions
	}

	model, err := recommender.Train(records, s.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to train model: %w", err)
	}
	if model.Empty() {
		return nil, ErrNoInteractions
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, model); err != nil {
		return nil, fmt.Errorf("failed to persist model: %w", err)
	}

	if products != nil {
		s.engine.SwapCatalog(products)
	}
	s.engine.Swap(model)

	rows, cols := model.Shape()
	s.metrics.setModelShape(rows, cols)

	if s.exporter != nil {
		if _, err := s.exporter.Export(ctx, model); err != nil {
			s.logger.WithError(err).WithField("version", model.Version()).Warn("Similarity graph export failed")
		}
	}

	if s.publisher != nil {
		event := messaging.ModelEvent{
			Version:   model.Version(),
			TrainedAt: model.TrainedAt(),
			Users:     rows,
			Products:  cols,
			Artifact:  s.store.Location(),
		}
		if err := s.publisher.PublishModelUpdate(ctx, event); err != nil {
			s.logger.WithError(err).WithField("version", model.Version()).Warn("Model update event not published")
		}
	}

	return modelInfo(model), nil
}
