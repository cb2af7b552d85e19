package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Queue backends.
const (
	QueueRedis = "redis"
	QueueAMQP  = "amqp"
)

// Storage types for run reports.
const (
	StorageNone  = "none"
	StorageLocal = "local"
	StorageAWS   = "aws"
)

var validate = validator.New()

// Config holds all configuration for the dispatcher
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Queue    QueueConfig    `yaml:"queue"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds admin HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port" env:"SERVER_PORT" validate:"min=1,max=65535"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for the listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	URL                    string `yaml:"url" env:"DATABASE_URL" validate:"required"`
	MaxOpenConns           int    `yaml:"max_open_conns" validate:"min=1"`
	MaxIdleConns           int    `yaml:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" validate:"min=0"`
}

// ConnMaxLifetime returns the pool connection lifetime.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds Redis settings. Redis backs the mail queue when the
// redis backend is selected and the run lock whenever Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" validate:"min=0"`
}

// QueueConfig selects the mail queue backend
type QueueConfig struct {
	Backend   string `yaml:"backend" env:"QUEUE_BACKEND" validate:"oneof=redis amqp"`
	RedisKey  string `yaml:"redis_key"`
	AMQPURL   string `yaml:"amqp_url" env:"AMQP_URL" validate:"required_if=Backend amqp"`
	AMQPQueue string `yaml:"amqp_queue"`
}

// DispatchConfig holds run-level settings
type DispatchConfig struct {
	Timezone          string `yaml:"timezone" env:"DISPATCH_TIMEZONE" validate:"omitempty,timezone"`
	RunTimeoutSeconds int    `yaml:"run_timeout_seconds" validate:"min=0"`
	LockEnabled       bool   `yaml:"lock_enabled" env:"DISPATCH_LOCK_ENABLED"`
	LockKey           string `yaml:"lock_key"`
	LockTTLSeconds    int    `yaml:"lock_ttl_seconds" validate:"min=0"`
	QueueErrorPolicy  string `yaml:"queue_error_policy" env:"DISPATCH_QUEUE_ERROR_POLICY" validate:"oneof=skip abort"`
}

// Location resolves the timezone used to compute "today".
func (c DispatchConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// RunTimeout returns the run deadline, zero meaning none.
func (c DispatchConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

// LockTTL returns the lease of the Redis run lock.
func (c DispatchConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// StorageConfig holds run report storage configuration
type StorageConfig struct {
	Type          string `yaml:"type" env:"STORAGE_TYPE" validate:"oneof=none local aws"`
	LocalPath     string `yaml:"local_path"`
	S3Bucket      string `yaml:"s3_bucket" env:"STORAGE_S3_BUCKET" validate:"required_if=Type aws"`
	S3Prefix      string `yaml:"s3_prefix"`
	DynamoDBTable string `yaml:"dynamodb_table" env:"STORAGE_DYNAMODB_TABLE"`
	AWSRegion     string `yaml:"aws_region" env:"AWS_REGION"`
	AWSProfile    string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	AccessKey     string `yaml:"access_key" env:"STORAGE_AWS_ACCESS_KEY"`
	SecretKey     string `yaml:"secret_key" env:"STORAGE_AWS_SECRET_KEY"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	return c.AWSProfile
}

// LogConfig holds logger settings
type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	File       string `yaml:"file" env:"LOG_FILE"`
	LogPII     bool   `yaml:"log_pii" env:"LOG_PII"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"min=0"`
}

// Load loads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 5
	}
	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = QueueRedis
	}
	if cfg.Queue.RedisKey == "" {
		cfg.Queue.RedisKey = "mail:newsletter"
	}
	if cfg.Queue.AMQPQueue == "" {
		cfg.Queue.AMQPQueue = "newsletter_sends"
	}
	if cfg.Dispatch.Timezone == "" {
		cfg.Dispatch.Timezone = "UTC"
	}
	if cfg.Dispatch.LockKey == "" {
		cfg.Dispatch.LockKey = "campaign-dispatch"
	}
	if cfg.Dispatch.LockTTLSeconds == 0 {
		cfg.Dispatch.LockTTLSeconds = 900
	}
	if cfg.Dispatch.QueueErrorPolicy == "" {
		cfg.Dispatch.QueueErrorPolicy = "skip"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = StorageNone
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
// An empty path starts from defaults only.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	} else {
		cfg.applyDefaults()
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-section requirements.
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Queue.Backend == QueueRedis && cfg.Redis.Addr == "" {
		return errors.New("invalid config: redis.addr is required for the redis queue backend")
	}
	return nil
}
