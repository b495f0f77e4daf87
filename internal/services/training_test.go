package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/shopsense/internal/messaging"
	"github.com/temcen/shopsense/internal/recommender"
)

func newTestTraining(records []recommender.Interaction) (*TrainingService, *memoryStore, *recommender.Service, *Metrics) {
	store := &memoryStore{}
	engine := recommender.NewService(recommender.Options{})
	metrics := testMetrics()
	service := NewTrainingService(TrainingDeps{
		Source:  &staticInteractions{records: records},
		Catalog: &staticCatalog{products: sampleProducts()},
		Store:   store,
		Engine:  engine,
	}, metrics, testLogger())
	return service, store, engine, metrics
}

func TestTrainingService_Train(t *testing.T) {
	service, store, engine, metrics := newTestTraining(sampleInteractions())

	exporter := &MockGraphExporter{}
	exporter.On("Export", mock.Anything, mock.AnythingOfType("*recommender.TrainedModel")).Return(4, nil)
	publisher := &MockEventPublisher{}
	publisher.On("PublishModelUpdate", mock.Anything, mock.MatchedBy(func(e messaging.ModelEvent) bool {
		return e.Users == 3 && e.Products == 3 && e.Artifact == "memory://model" && e.Version != ""
	})).Return(nil)
	service.exporter = exporter
	service.publisher = publisher

	info, err := service.Train(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, info.Users)
	assert.Equal(t, 3, info.Products)
	assert.Equal(t, 1, store.saves)
	require.NotNil(t, engine.Model())
	assert.Equal(t, info.Version, engine.Model().Version())
	assert.Same(t, store.model, engine.Model())
	assert.Equal(t, 5, engine.Catalog().Len())

	exporter.AssertExpectations(t)
	publisher.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.trainingRuns.WithLabelValues("succeeded")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.modelUsers))
}

func TestTrainingService_ExportAndPublishFailuresKeepModel(t *testing.T) {
	service, _, engine, _ := newTestTraining(sampleInteractions())

	exporter := &MockGraphExporter{}
	exporter.On("Export", mock.Anything, mock.Anything).Return(0, errors.New("neo4j unavailable"))
	publisher := &MockEventPublisher{}
	publisher.On("PublishModelUpdate", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	service.exporter = exporter
	service.publisher = publisher

	info, err := service.Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, info.Version, engine.Model().Version())

	exporter.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestTrainingService_NoInteractions(t *testing.T) {
	service, store, engine, metrics := newTestTraining(nil)

	_, err := service.Train(context.Background())
	assert.ErrorIs(t, err, ErrNoInteractions)
	assert.Equal(t, 0, store.saves)
	assert.Nil(t, engine.Model())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.trainingRuns.WithLabelValues("failed")))
}

func TestTrainingService_SourceError(t *testing.T) {
	service, _, engine, _ := newTestTraining(nil)
	service.source = &staticInteractions{err: errors.New("connection refused")}

	_, err := service.Train(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read interactions")
	assert.Nil(t, engine.Model())
}

func TestTrainingService_StoreErrorKeepsServedModel(t *testing.T) {
	service, store, engine, _ := newTestTraining(sampleInteractions())

	_, err := service.Train(context.Background())
	require.NoError(t, err)
	served := engine.Model()

	store.err = errors.New("disk full")
	_, err = service.Train(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist model")
	assert.Same(t, served, engine.Model())
}

func TestTrainingService_CanceledContext(t *testing.T) {
	service, store, engine, _ := newTestTraining(sampleInteractions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Train(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.saves)
	assert.Nil(t, engine.Model())
}

type blockingInteractions struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingInteractions) Interactions(ctx context.Context) ([]recommender.Interaction, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return sampleInteractions(), nil
}

func TestTrainingService_InProgress(t *testing.T) {
	service, _, _, _ := newTestTraining(nil)
	source := &blockingInteractions{started: make(chan struct{}), release: make(chan struct{})}
	service.source = source

	done := make(chan error, 1)
	go func() {
		_, err := service.Train(context.Background())
		done <- err
	}()

	<-source.started
	_, err := service.Train(context.Background())
	assert.ErrorIs(t, err, ErrTrainingInProgress)

	close(source.release)
	require.NoError(t, <-done)

	_, err = service.Train(context.Background())
	assert.NoError(t, err)
}
