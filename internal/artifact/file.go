package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/recommender"
)

// FileStore keeps the artifact in a single JSON file. Writes go to a temporary file in
// the same directory and are renamed into place.
type FileStore struct {
	path   string
	codec  *Codec
	logger *logrus.Logger
}

func NewFileStore(path string, codec *Codec, logger *logrus.Logger) *FileStore {
	return &FileStore{path: path, codec: codec, logger: logger}
}

func (s *FileStore) Location() string { return "file://" + s.path }

func (s *FileStore) Save(ctx context.Context, model *recommender.TrainedModel) error {
	data, err := s.codec.Encode(model)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"path":    s.path,
		"version": model.Version(),
		"bytes":   len(data),
	}).Info("Model artifact saved")

	return nil
}

func (s *FileStore) Load(ctx context.Context) (*recommender.TrainedModel, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	model, err := s.codec.Decode(data)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"path":    s.path,
		"version": model.Version(),
	}).Info("Model artifact loaded")

	return model, nil
}
