package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/config"
	"github.com/temcen/shopsense/pkg/models"
)

// RateLimitService counts requests per client in fixed windows stored in Redis.
type RateLimitService struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	logger *logrus.Logger
	now    func() time.Time
}

func NewRateLimitService(client redis.Cmdable, cfg config.RateLimitConfig, logger *logrus.Logger) *RateLimitService {
	return &RateLimitService{
		client: client,
		limit:  cfg.Requests,
		window: cfg.Window,
		logger: logger,
		now:    time.Now,
	}
}

// IsAllowed records one request for client. When Redis is unreachable the request is
// allowed and the error returned alongside.
func (s *RateLimitService) IsAllowed(ctx context.Context, client string) (bool, *models.RateLimitInfo, error) {
	now := s.now()
	bucket := now.UnixNano() / int64(s.window)
	reset := time.Unix(0, (bucket+1)*int64(s.window))
	info := &models.RateLimitInfo{Limit: s.limit, Remaining: s.limit, ResetTime: reset.Unix()}

	key := fmt.Sprintf("rate_limit:%s:%d", client, bucket)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return true, info, fmt.Errorf("failed to count request: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, s.window).Err(); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Failed to set rate limit expiry")
		}
	}

	info.Remaining = s.limit - int(count)
	if info.Remaining < 0 {
		info.Remaining = 0
	}
	return int(count) <= s.limit, info, nil
}
