package services

import (
	"context"

	"github.com/temcen/shopsense/internal/messaging"
	"github.com/temcen/shopsense/pkg/models"
)

// RecommendationServiceInterface defines the serving operations used by the HTTP layer
type RecommendationServiceInterface interface {
	GetRecommendations(ctx context.Context, userID string, n int) (*models.RecommendationResponse, error)
	SimilarProducts(ctx context.Context, productID string, k int) (*models.SimilarProductsResponse, error)
	ModelInfo() (*models.ModelInfo, error)
}

// TrainingServiceInterface defines the interface for on-demand training
type TrainingServiceInterface interface {
	Train(ctx context.Context) (*models.ModelInfo, error)
}

// ModelManagerInterface defines the interface for loading persisted models
type ModelManagerInterface interface {
	Reload(ctx context.Context) (*models.ModelInfo, error)
	HandleModelEvent(ctx context.Context, event messaging.ModelEvent) error
}

type HealthServiceInterface interface {
	CheckHealth(ctx context.Context) *HealthStatus
}

// TokenValidator defines the interface used by the auth middleware
type TokenValidator interface {
	ValidateToken(tokenString string) (*models.JWTClaims, error)
}
