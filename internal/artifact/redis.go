package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/recommender"
)

// RedisStore keeps the artifact under one key so every server instance reads the same
// model. The key carries no TTL.
type RedisStore struct {
	client redis.Cmdable
	key    string
	codec  *Codec
	logger *logrus.Logger
}

func NewRedisStore(client redis.Cmdable, key string, codec *Codec, logger *logrus.Logger) *RedisStore {
	return &RedisStore{client: client, key: key, codec: codec, logger: logger}
}

func (s *RedisStore) Location() string { return "redis://" + s.key }

func (s *RedisStore) Save(ctx context.Context, model *recommender.TrainedModel) error {
	data, err := s.codec.Encode(model)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store artifact in Redis: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"key":     s.key,
		"version": model.Version(),
		"bytes":   len(data),
	}).Info("Model artifact saved")

	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*recommender.TrainedModel, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read artifact from Redis: %w", err)
	}

	model, err := s.codec.Decode(data)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"key":     s.key,
		"version": model.Version(),
	}).Info("Model artifact loaded")

	return model, nil
}
