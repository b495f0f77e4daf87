package handlers

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/temcen/shopsense/internal/messaging"
	"github.com/temcen/shopsense/internal/services"
	"github.com/temcen/shopsense/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

type MockRecommendationService struct {
	mock.Mock
}

func (m *MockRecommendationService) GetRecommendations(ctx context.Context, userID string, n int) (*models.RecommendationResponse, error) {
	args := m.Called(ctx, userID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecommendationResponse), args.Error(1)
}

func (m *MockRecommendationService) SimilarProducts(ctx context.Context, productID string, k int) (*models.SimilarProductsResponse, error) {
	args := m.Called(ctx, productID, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SimilarProductsResponse), args.Error(1)
}

func (m *MockRecommendationService) ModelInfo() (*models.ModelInfo, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ModelInfo), args.Error(1)
}

type MockTrainingService struct {
	mock.Mock
}

func (m *MockTrainingService) Train(ctx context.Context) (*models.ModelInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ModelInfo), args.Error(1)
}

type MockModelManager struct {
	mock.Mock
}

func (m *MockModelManager) Reload(ctx context.Context) (*models.ModelInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ModelInfo), args.Error(1)
}

func (m *MockModelManager) HandleModelEvent(ctx context.Context, event messaging.ModelEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) CheckHealth(ctx context.Context) *services.HealthStatus {
	args := m.Called(ctx)
	return args.Get(0).(*services.HealthStatus)
}
