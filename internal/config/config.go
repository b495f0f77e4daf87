package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Neo4j          Neo4jConfig          `mapstructure:"neo4j"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Auth           AuthConfig           `mapstructure:"auth"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Artifact       ArtifactConfig       `mapstructure:"artifact"`
	Catalog        CatalogConfig        `mapstructure:"catalog"`
	Training       TrainingConfig       `mapstructure:"training"`
	Security       SecurityConfig       `mapstructure:"security"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig is optional: an empty URL disables PostgreSQL.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

type Neo4jConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topics  struct {
		ModelUpdates string `mapstructure:"model_updates"`
	} `mapstructure:"topics"`
	GroupID string `mapstructure:"group_id"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RecommendationConfig struct {
	Neighbors         int    `mapstructure:"neighbors"`
	DefaultCount      int    `mapstructure:"default_count"`
	MaxCount          int    `mapstructure:"max_count"`
	FallbackCount     int    `mapstructure:"fallback_count"`
	ExcludeSeen       bool   `mapstructure:"exclude_seen"`
	SimilarityWorkers int    `mapstructure:"similarity_workers"`
	DegradedMode      string `mapstructure:"degraded_mode"`
}

const (
	DegradedNone    = "none"
	DegradedPopular = "popular"
)

type ArtifactConfig struct {
	Backend  string `mapstructure:"backend"`
	Path     string `mapstructure:"path"`
	RedisKey string `mapstructure:"redis_key"`
}

type CatalogConfig struct {
	Source string `mapstructure:"source"`
	Path   string `mapstructure:"path"`
}

type TrainingConfig struct {
	Source        string  `mapstructure:"source"`
	Path          string  `mapstructure:"path"`
	Format        string  `mapstructure:"format"`
	OnStartup     bool    `mapstructure:"on_startup"`
	ExportGraph   bool    `mapstructure:"export_graph"`
	GraphTopK     int     `mapstructure:"graph_top_k"`
	GraphMinScore float64 `mapstructure:"graph_min_score"`
	PublishEvents bool    `mapstructure:"publish_events"`
}

type SecurityConfig struct {
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds read requests per client in fixed windows. It needs Redis.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	return load(v)
}

// LoadFile reads an explicit config file instead of searching the default paths.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	rc := c.Recommendation
	if rc.DefaultCount <= 0 {
		return fmt.Errorf("recommendation.default_count must be positive, got %d", rc.DefaultCount)
	}
	if rc.MaxCount < rc.DefaultCount {
		return fmt.Errorf("recommendation.max_count %d is below default_count %d", rc.MaxCount, rc.DefaultCount)
	}
	switch rc.DegradedMode {
	case DegradedNone, DegradedPopular:
	default:
		return fmt.Errorf("unknown recommendation.degraded_mode %q", rc.DegradedMode)
	}

	switch c.Artifact.Backend {
	case "file":
		if c.Artifact.Path == "" {
			return fmt.Errorf("artifact.path is required for the file backend")
		}
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the redis artifact backend")
		}
	default:
		return fmt.Errorf("unknown artifact.backend %q", c.Artifact.Backend)
	}

	for name, source := range map[string]string{"catalog.source": c.Catalog.Source, "training.source": c.Training.Source} {
		switch source {
		case "csv":
		case "postgres":
			if c.Database.URL == "" {
				return fmt.Errorf("database.url is required when %s is postgres", name)
			}
		default:
			return fmt.Errorf("unknown %s %q", name, source)
		}
	}

	switch c.Training.Format {
	case "records", "pivot":
	default:
		return fmt.Errorf("unknown training.format %q", c.Training.Format)
	}

	if c.Training.ExportGraph && c.Neo4j.URL == "" {
		return fmt.Errorf("neo4j.url is required when training.export_graph is set")
	}
	if c.Training.PublishEvents && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when training.publish_events is set")
	}

	if rl := c.Security.RateLimit; rl.Enabled {
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required when security.rate_limit is enabled")
		}
		if rl.Requests <= 0 || rl.Window <= 0 {
			return fmt.Errorf("security.rate_limit needs positive requests and window")
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_time", "15m")
	v.SetDefault("database.max_lifetime", "1h")
	v.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.timeout", "5s")
	v.SetDefault("redis.cache_ttl", "15m")

	v.SetDefault("neo4j.url", "")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "")

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topics.model_updates", "model-updates")
	v.SetDefault("kafka.group_id", "shopsense-servers")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Recommendation defaults
	v.SetDefault("recommendation.neighbors", 10)
	v.SetDefault("recommendation.default_count", 10)
	v.SetDefault("recommendation.max_count", 100)
	v.SetDefault("recommendation.fallback_count", 4)
	v.SetDefault("recommendation.exclude_seen", false)
	v.SetDefault("recommendation.similarity_workers", 0)
	v.SetDefault("recommendation.degraded_mode", DegradedNone)

	// Artifact defaults
	v.SetDefault("artifact.backend", "file")
	v.SetDefault("artifact.path", "./data/model.json")
	v.SetDefault("artifact.redis_key", "shopsense:model")

	v.SetDefault("catalog.source", "csv")
	v.SetDefault("catalog.path", "./data/products.csv")

	// Training defaults
	v.SetDefault("training.source", "csv")
	v.SetDefault("training.path", "./data/interactions.csv")
	v.SetDefault("training.format", "records")
	v.SetDefault("training.on_startup", false)
	v.SetDefault("training.export_graph", false)
	v.SetDefault("training.graph_top_k", 10)
	v.SetDefault("training.graph_min_score", 0.0)
	v.SetDefault("training.publish_events", false)

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"*"})
	v.SetDefault("security.rate_limit.enabled", false)
	v.SetDefault("security.rate_limit.requests", 600)
	v.SetDefault("security.rate_limit.window", "1m")
}
