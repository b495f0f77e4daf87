package services

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/database"
	"github.com/temcen/shopsense/internal/recommender"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

type HealthStatus struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Services     map[string]string `json:"services"`
	Critical     []string          `json:"critical_failures,omitempty"`
	NonCritical  []string          `json:"non_critical_failures,omitempty"`
	ModelLoaded  bool              `json:"model_loaded"`
	ModelVersion string            `json:"model_version,omitempty"`
	Products     int               `json:"catalog_products"`
}

type HealthService struct {
	checks  []HealthCheck
	engine  *recommender.Service
	metrics *Metrics
	logger  *logrus.Logger
}

func NewHealthService(checks []HealthCheck, engine *recommender.Service, metrics *Metrics, logger *logrus.Logger) *HealthService {
	return &HealthService{checks: checks, engine: engine, metrics: metrics, logger: logger}
}

// DatabaseChecks builds probes for the configured backends. criticalPG and
// criticalRedis mark the backends the serving path depends on.
func DatabaseChecks(db *database.Database, criticalPG, criticalRedis bool) []HealthCheck {
	var checks []HealthCheck
	if db == nil {
		return checks
	}
	if db.PG != nil {
		checks = append(checks, HealthCheck{Name: "postgresql", Critical: criticalPG, Check: func(ctx context.Context) error {
			return db.PG.Ping(ctx)
		}})
	}
	if db.Redis != nil {
		checks = append(checks, HealthCheck{Name: "redis", Critical: criticalRedis, Check: func(ctx context.Context) error {
			return db.Redis.Ping(ctx).Err()
		}})
	}
	if db.Neo4j != nil {
		checks = append(checks, HealthCheck{Name: "neo4j", Check: func(ctx context.Context) error {
			return db.Neo4j.VerifyConnectivity(ctx)
		}})
	}
	return checks
}

// CheckHealth is "healthy" when every probe passes and a model is served, "degraded"
// when only non-critical probes fail or no model is loaded yet, "unhealthy" otherwise.
func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Services:  make(map[string]string),
	}

	for _, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := check.Check(checkCtx)
		cancel()

		s.metrics.setHealth(check.Name, err == nil)
		if err == nil {
			status.Services[check.Name] = "healthy"
			continue
		}

		status.Services[check.Name] = "unhealthy"
		if check.Critical {
			status.Critical = append(status.Critical, check.Name)
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", check.Name)
		} else {
			status.NonCritical = append(status.NonCritical, check.Name)
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", check.Name)
		}
	}
	sort.Strings(status.Critical)
	sort.Strings(status.NonCritical)

	if model := s.engine.Model(); !model.Empty() {
		status.ModelLoaded = true
		status.ModelVersion = model.Version()
	}
	status.Products = s.engine.Catalog().Len()

	switch {
	case len(status.Critical) > 0:
		status.Status = "unhealthy"
	case len(status.NonCritical) > 0 || !status.ModelLoaded:
		status.Status = "degraded"
	default:
		status.Status = "healthy"
	}

	return status
}
