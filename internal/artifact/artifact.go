// Package artifact persists trained models so serving instances can load them without
// retraining.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/temcen/shopsense/internal/recommender"
	"github.com/temcen/shopsense/internal/validation"
)

// ErrNotFound is returned when no artifact has been saved yet.
var ErrNotFound = errors.New("model artifact not found")

// Store saves and loads the serialized model.
type Store interface {
	Save(ctx context.Context, model *recommender.TrainedModel) error
	Load(ctx context.Context) (*recommender.TrainedModel, error)
	// Location names where the artifact lives, for logs and model-update events.
	Location() string
}

// Codec converts models to and from the JSON artifact format. Documents are checked
// against the model-artifact schema before the matrices are rebuilt.
type Codec struct {
	validator *validation.SchemaValidator
}

func NewCodec() (*Codec, error) {
	sv, err := validation.NewSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact schema: %w", err)
	}
	return &Codec{validator: sv}, nil
}

func (c *Codec) Encode(model *recommender.TrainedModel) ([]byte, error) {
	if model == nil {
		return nil, fmt.Errorf("cannot encode a nil model")
	}
	data, err := json.Marshal(model.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model: %w", err)
	}
	return data, nil
}

func (c *Codec) Decode(data []byte) (*recommender.TrainedModel, error) {
	if err := c.validator.Validate(validation.ModelArtifact, data).Err(); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}

	var snapshot recommender.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}

	model, err := recommender.FromSnapshot(&snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild model: %w", err)
	}
	return model, nil
}
