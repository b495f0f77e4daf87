package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/shopsense/internal/artifact"
	"github.com/temcen/shopsense/internal/catalog"
	"github.com/temcen/shopsense/internal/messaging"
	"github.com/temcen/shopsense/internal/recommender"
	"github.com/temcen/shopsense/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry(), testLogger())
}

func sampleInteractions() []recommender.Interaction {
	return []recommender.Interaction{
		{UserID: "1", ProductID: "A", Value: 1},
		{UserID: "1", ProductID: "C", Value: 1},
		{UserID: "2", ProductID: "A", Value: 1},
		{UserID: "2", ProductID: "B", Value: 1},
		{UserID: "3", ProductID: "B", Value: 1},
	}
}

func sampleProducts() []models.Product {
	product := func(id, category string, price, rating float64) models.Product {
		return models.Product{
			ID:          id,
			Description: "Product " + id,
			Category:    category,
			Price:       price,
			Rating:      rating,
			ImageURL:    "https://img.example.com/" + id + ".png",
		}
	}
	return []models.Product{
		product("A", "Electronics", 399, 4),
		product("B", "Electronics", 499, 4),
		product("C", "Electronics", 999, 4),
		product("D", "Books", 15, 3),
		product("E", "Books", 20, 5),
	}
}

func trainedEngine(t *testing.T, opts recommender.Options) *recommender.Service {
	t.Helper()
	return engineWith(t, sampleInteractions(), sampleProducts(), opts)
}

func engineWith(t *testing.T, records []recommender.Interaction, products []models.Product, opts recommender.Options) *recommender.Service {
	t.Helper()
	model, err := recommender.Train(records, recommender.TrainOptions{})
	require.NoError(t, err)
	c, err := catalog.New(products)
	require.NoError(t, err)

	engine := recommender.NewService(opts)
	engine.Swap(model)
	engine.SwapCatalog(c)
	return engine
}

type staticInteractions struct {
	records []recommender.Interaction
	err     error
}

func (s *staticInteractions) Interactions(ctx context.Context) ([]recommender.Interaction, error) {
	return s.records, s.err
}

type staticCatalog struct {
	products []models.Product
}

func (s *staticCatalog) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.products, nil
}

// memoryStore is an artifact.Store kept in memory.
type memoryStore struct {
	mu    sync.Mutex
	model *recommender.TrainedModel
	saves int
	loads int
	err   error
}

func (s *memoryStore) Save(ctx context.Context, model *recommender.TrainedModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.model = model
	s.saves++
	return nil
}

func (s *memoryStore) Load(ctx context.Context) (*recommender.TrainedModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	if s.model == nil {
		return nil, artifact.ErrNotFound
	}
	return s.model, nil
}

func (s *memoryStore) Location() string { return "memory://model" }

type MockGraphExporter struct {
	mock.Mock
}

func (m *MockGraphExporter) Export(ctx context.Context, model *recommender.TrainedModel) (int, error) {
	args := m.Called(ctx, model)
	return args.Int(0), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishModelUpdate(ctx context.Context, event messaging.ModelEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// fakeRedis implements the commands used by the recommendation cache.
type fakeRedis struct {
	redis.Cmdable
	mu       sync.Mutex
	data     map[string]string
	counters map[string]int64
	ttls     map[string]time.Duration
	err      error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		data:     make(map[string]string),
		counters: make(map[string]int64),
		ttls:     make(map[string]time.Duration),
	}
}

func (f *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}
