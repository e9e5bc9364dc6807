package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Mongo   MongoConfig
	Redis   RedisConfig
	Limiter LimiterConfig
	Workers WorkerConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=trust_system"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

type LimiterConfig struct {
	// CleanupInterval is how often expired rate windows are swept.
	CleanupInterval time.Duration `env:"RATE_CLEANUP_INTERVAL, default=5m"`
	// PolicyCacheTTL bounds policy staleness across instances.
	PolicyCacheTTL time.Duration `env:"RATE_POLICY_CACHE_TTL, default=1m"`
}

type WorkerConfig struct {
	// AssessmentWorkers is the number of sharded ingestion workers.
	AssessmentWorkers int `env:"ASSESSMENT_WORKERS, default=8"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
