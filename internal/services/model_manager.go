package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/artifact"
	"github.com/temcen/shopsense/internal/catalog"
	"github.com/temcen/shopsense/internal/messaging"
	"github.com/temcen/shopsense/internal/recommender"
	"github.com/temcen/shopsense/pkg/models"
)

// ModelManager loads persisted models and the catalog into the engine on startup, on
// admin request and on model-update events.
type ModelManager struct {
	store   artifact.Store
	catalog catalog.Source
	engine  *recommender.Service
	metrics *Metrics
	logger  *logrus.Logger
}

func NewModelManager(store artifact.Store, catalogSource catalog.Source, engine *recommender.Service, metrics *Metrics, logger *logrus.Logger) *ModelManager {
	return &ModelManager{
		store:   store,
		catalog: catalogSource,
		engine:  engine,
		metrics: metrics,
		logger:  logger,
	}
}

// LoadCatalog replaces the served catalog.
func (m *ModelManager) LoadCatalog(ctx context.Context) error {
	if m.catalog == nil {
		return nil
	}
	c, err := catalog.Load(ctx, m.catalog, m.logger)
	if err != nil {
		return err
	}
	m.engine.SwapCatalog(c)
	return nil
}

// Reload swaps in the stored model. It returns artifact.ErrNotFound when nothing has been
// trained yet.
func (m *ModelManager) Reload(ctx context.Context) (*models.ModelInfo, error) {
	return m.reload(ctx, "admin")
}

func (m *ModelManager) reload(ctx context.Context, trigger string) (*models.ModelInfo, error) {
	model, err := m.store.Load(ctx)
	if err != nil {
		m.metrics.modelReloads.WithLabelValues(trigger, "failed").Inc()
		return nil, fmt.Errorf("failed to load model from %s: %w", m.store.Location(), err)
	}
	if model.Empty() {
		m.metrics.modelReloads.WithLabelValues(trigger, "failed").Inc()
		return nil, fmt.Errorf("stored model is empty: %w", recommender.ErrModelNotTrained)
	}

	previous := m.engine.Swap(model)
	rows, cols := model.Shape()
	m.metrics.setModelShape(rows, cols)
	m.metrics.modelReloads.WithLabelValues(trigger, "succeeded").Inc()

	fields := logrus.Fields{
		"version":  model.Version(),
		"users":    rows,
		"products": cols,
		"trigger":  trigger,
	}
	if previous != nil {
		fields["previous_version"] = previous.Version()
	}
	m.logger.WithFields(fields).Info("Model loaded")

	return modelInfo(model), nil
}

// HandleModelEvent reloads when the event names a version other than the one served.
// The event's own publisher has already swapped, so its reload is skipped.
func (m *ModelManager) HandleModelEvent(ctx context.Context, event messaging.ModelEvent) error {
	if current := m.engine.Model(); current != nil && current.Version() == event.Version {
		m.logger.WithField("version", event.Version).Debug("Model event for served version ignored")
		return nil
	}

	if err := m.LoadCatalog(ctx); err != nil {
		return fmt.Errorf("failed to refresh catalog: %w", err)
	}

	info, err := m.reload(ctx, "event")
	if err != nil {
		return err
	}
	if info.Version != event.Version {
		m.logger.WithFields(logrus.Fields{
			"event_version":  event.Version,
			"loaded_version": info.Version,
		}).Warn("Stored model differs from announced version")
	}
	return nil
}
