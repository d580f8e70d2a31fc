package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Failure policies for partition queries during a catalog search.
const (
	PolicyBestEffort = "best_effort"
	PolicyFailFast   = "fail_fast"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_ENV"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
// `required:"true"` makes an environment variable mandatory.
type Config struct {
	AppName    string `envconfig:"APP_NAME" default:"IngredientCatalogService"`
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // development, staging, production
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Postgres   PostgresConfig
	Catalog    CatalogConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	Minio      MinioConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port           string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite   time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	RequestTimeout time.Duration `envconfig:"HTTP_SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host          string `envconfig:"POSTGRES_HOST" required:"true"`
	Port          string `envconfig:"POSTGRES_PORT" default:"5432"`
	User          string `envconfig:"POSTGRES_USER" required:"true"`
	Password      string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	DBName        string `envconfig:"POSTGRES_DBNAME" required:"true"`
	SSLMode       string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	MaxOpenConns  int    `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"10"`
	RunMigrations bool   `envconfig:"POSTGRES_RUN_MIGRATIONS" default:"true"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// CatalogConfig tunes the public catalog search.
type CatalogConfig struct {
	PageSize         int           `envconfig:"CATALOG_PAGE_SIZE" default:"24"`
	DefaultLocale    string        `envconfig:"CATALOG_DEFAULT_LOCALE" default:"fr"`
	FailurePolicy    string        `envconfig:"CATALOG_FAILURE_POLICY" default:"best_effort"`
	PartitionTimeout time.Duration `envconfig:"CATALOG_PARTITION_TIMEOUT" default:"0s"`
}

// KafkaConfig configures change-event publishing.
type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"catalog-events"`
}

// RedisConfig configures the notification badge store.
type RedisConfig struct {
	Enabled     bool          `envconfig:"REDIS_ENABLED" default:"false"`
	Addr        string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	User        string        `envconfig:"REDIS_USER"`
	Password    string        `envconfig:"REDIS_PASSWORD"`
	DB          int           `envconfig:"REDIS_DB" default:"0"`
	DialTimeout time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	Timeout     time.Duration `envconfig:"REDIS_TIMEOUT" default:"3s"`
}

// MinioConfig configures technical sheet storage.
type MinioConfig struct {
	Enabled    bool          `envconfig:"MINIO_ENABLED" default:"false"`
	Endpoint   string        `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey  string        `envconfig:"MINIO_ACCESS_KEY"`
	SecretKey  string        `envconfig:"MINIO_SECRET_KEY"`
	UseSSL     bool          `envconfig:"MINIO_USE_SSL" default:"false"`
	Region     string        `envconfig:"MINIO_REGION" default:"us-east-1"`
	Bucket     string        `envconfig:"MINIO_BUCKET" default:"catalog"`
	PresignTTL time.Duration `envconfig:"MINIO_PRESIGN_TTL" default:"15m"`
}

// AuthConfig holds the admin token verification settings.
type AuthConfig struct {
	JWTSecret string `envconfig:"AUTH_JWT_SECRET" required:"true"`
	AdminRole string `envconfig:"AUTH_ADMIN_ROLE" default:"admin"`
}

// RateLimitConfig bounds public form submissions.
type RateLimitConfig struct {
	RPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"1"`
	Burst int     `envconfig:"RATE_LIMIT_BURST" default:"5"`
}

var supportedLocales = map[string]bool{"fr": true, "en": true}

// SupportedLocale reports whether the catalog can collate for lang.
func SupportedLocale(lang string) bool {
	return supportedLocales[strings.ToLower(lang)]
}

// Load initializes the configuration from environment variables.
// It should be called once during application startup.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express as tags.
func (c *Config) Validate() error {
	switch c.Catalog.FailurePolicy {
	case PolicyBestEffort, PolicyFailFast:
	default:
		return fmt.Errorf("invalid CATALOG_FAILURE_POLICY: %q", c.Catalog.FailurePolicy)
	}
	if !SupportedLocale(c.Catalog.DefaultLocale) {
		return fmt.Errorf("invalid CATALOG_DEFAULT_LOCALE: %q", c.Catalog.DefaultLocale)
	}
	if c.Catalog.PartitionTimeout < 0 {
		return fmt.Errorf("invalid CATALOG_PARTITION_TIMEOUT: %s", c.Catalog.PartitionTimeout)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	return nil
}
