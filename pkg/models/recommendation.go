package models

import "time"

type RecommendationResponse struct {
	UserID          string    `json:"user_id"`
	Recommendations []string  `json:"recommendations"`
	Count           int       `json:"count"`
	Source          string    `json:"source"`
	ModelVersion    string    `json:"model_version"`
	GeneratedAt     time.Time `json:"generated_at"`
	CacheHit        bool      `json:"cache_hit"`
}

// ModelInfo describes the trained model currently served.
type ModelInfo struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Users     int       `json:"users"`
	Products  int       `json:"products"`
	Shape     [2]int    `json:"matrix_shape"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type RateLimitInfo struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}
