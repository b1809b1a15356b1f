package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Mail      MailConfig      `yaml:"mail"`
	Queue     QueueConfig     `yaml:"queue"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	URL                string `yaml:"url"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMin int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the pool lifetime as a duration.
func (d DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(d.ConnMaxLifetimeMin) * time.Minute
}

// RedisConfig holds the delivery queue backend settings.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig holds object-storage locations for recipient lists.
type StorageConfig struct {
	Bucket             string `yaml:"bucket"`
	Region             string `yaml:"region"`
	GlobalListKey      string `yaml:"global_list_key"`
	UnsubscribeListKey string `yaml:"unsubscribe_list_key"`
	CustomListPrefix   string `yaml:"custom_list_prefix"`
}

// MailConfig selects and configures the outbound mail provider.
type MailConfig struct {
	Provider         string `yaml:"provider"` // "ses" or "log"
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
}

// QueueConfig tunes the delivery queue engine and its workers.
type QueueConfig struct {
	Concurrency             int `yaml:"concurrency"`
	MaxAttempts             int `yaml:"max_attempts"`
	BackoffBaseSeconds      int `yaml:"backoff_base_seconds"`
	RateLimitPerSecond      int `yaml:"rate_limit_per_second"`
	CompletedRetentionHours int `yaml:"completed_retention_hours"`
	CompletedMax            int `yaml:"completed_max"`
	FailedRetentionDays     int `yaml:"failed_retention_days"`
	StalledAfterMinutes     int `yaml:"stalled_after_minutes"`
	RecoveryIntervalMinutes int `yaml:"recovery_interval_minutes"`
}

// SchedulerConfig tunes the day transition driver. The timezone is fixed to
// UTC; only the startup catch-up is optional.
type SchedulerConfig struct {
	CatchUpOnStart *bool `yaml:"catch_up_on_start"`
}

// CatchUp reports whether the startup catch-up pass runs (default true).
func (s SchedulerConfig) CatchUp() bool {
	return s.CatchUpOnStart == nil || *s.CatchUpOnStart
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML config at path and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 50
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.ConnMaxLifetimeMin == 0 {
		cfg.Database.ConnMaxLifetimeMin = 5
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379/0"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-west-2"
	}
	if cfg.Storage.GlobalListKey == "" {
		cfg.Storage.GlobalListKey = "lists/global.csv"
	}
	if cfg.Storage.UnsubscribeListKey == "" {
		cfg.Storage.UnsubscribeListKey = "lists/unsubscribes.csv"
	}
	if cfg.Storage.CustomListPrefix == "" {
		cfg.Storage.CustomListPrefix = "lists/custom/"
	}
	if cfg.Mail.Provider == "" {
		cfg.Mail.Provider = "log"
	}
	if cfg.Mail.Region == "" {
		cfg.Mail.Region = cfg.Storage.Region
	}
	if cfg.Mail.TimeoutSeconds == 0 {
		cfg.Mail.TimeoutSeconds = 30
	}
	if cfg.Queue.Concurrency == 0 {
		cfg.Queue.Concurrency = 50
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Queue.BackoffBaseSeconds == 0 {
		cfg.Queue.BackoffBaseSeconds = 2
	}
	if cfg.Queue.RateLimitPerSecond == 0 {
		cfg.Queue.RateLimitPerSecond = 14
	}
	if cfg.Queue.CompletedRetentionHours == 0 {
		cfg.Queue.CompletedRetentionHours = 24
	}
	if cfg.Queue.CompletedMax == 0 {
		cfg.Queue.CompletedMax = 1000
	}
	if cfg.Queue.FailedRetentionDays == 0 {
		cfg.Queue.FailedRetentionDays = 7
	}
	if cfg.Queue.StalledAfterMinutes == 0 {
		cfg.Queue.StalledAfterMinutes = 5
	}
	if cfg.Queue.RecoveryIntervalMinutes == 0 {
		cfg.Queue.RecoveryIntervalMinutes = 2
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads the YAML config and applies environment overrides. A
// .env file is honored when present.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.Storage.Region = v
	}
	if v := os.Getenv("GLOBAL_LIST_KEY"); v != "" {
		cfg.Storage.GlobalListKey = v
	}
	if v := os.Getenv("UNSUBSCRIBE_LIST_KEY"); v != "" {
		cfg.Storage.UnsubscribeListKey = v
	}
	if v := os.Getenv("MAIL_PROVIDER"); v != "" {
		cfg.Mail.Provider = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Mail.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Mail.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Mail.Region = v
	}
	if v := os.Getenv("SES_CONFIGURATION_SET"); v != "" {
		cfg.Mail.ConfigurationSet = v
	}
	if n := envInt("PORT"); n > 0 {
		cfg.Server.Port = n
	}
	if n := envInt("WORKER_CONCURRENCY"); n > 0 {
		cfg.Queue.Concurrency = n
	}
	if n := envInt("SEND_RATE_LIMIT"); n > 0 {
		cfg.Queue.RateLimitPerSecond = n
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
