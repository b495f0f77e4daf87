package recommender

import "errors"

var (
	ErrModelNotTrained = errors.New("model not trained")
	ErrUserNotFound    = errors.New("user not found")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidCount    = errors.New("requested count must be positive")
	// ErrShapeMismatch marks misaligned users/products/matrices. It is a training-time precondition
	// violation and is never produced on the serving path.
	ErrShapeMismatch = errors.New("model shape mismatch")
)
