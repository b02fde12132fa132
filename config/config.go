package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Auth     AuthConfig     `yaml:"auth"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Payment  PaymentConfig  `yaml:"payment"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Address                string `yaml:"address"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

func (h HTTPConfig) ShutdownTimeout() time.Duration {
	return time.Duration(h.ShutdownTimeoutSeconds) * time.Second
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type StorageConfig struct {
	Driver string `yaml:"driver"`
}

type DatabaseConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	User              string `yaml:"user"`
	Password          string `yaml:"password"`
	Name              string `yaml:"name"`
	SSLMode           string `yaml:"ssl_mode"`
	MigrationsPath    string `yaml:"migrations_path"`
	LockTimeoutMillis int    `yaml:"lock_timeout_millis"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL is the connection string in URL form, as golang-migrate expects it.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func (d DatabaseConfig) LockTimeout() time.Duration {
	return time.Duration(d.LockTimeoutMillis) * time.Millisecond
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type GatewayConfig struct {
	BaseURL            string `yaml:"base_url"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	WebhookSecret      string `yaml:"webhook_secret"`
	BreakerMaxFailures int    `yaml:"breaker_max_failures"`
	BreakerOpenSeconds int    `yaml:"breaker_open_seconds"`
}

func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

func (g GatewayConfig) BreakerOpen() time.Duration {
	return time.Duration(g.BreakerOpenSeconds) * time.Second
}

type PaymentConfig struct {
	PendingTTLMinutes int `yaml:"pending_ttl_minutes"`
}

func (p PaymentConfig) PendingTTL() time.Duration {
	return time.Duration(p.PendingTTLMinutes) * time.Minute
}

type CatalogConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

func (c CatalogConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

type WorkerConfig struct {
	OutboxPollSeconds      int `yaml:"outbox_poll_seconds"`
	OutboxBatchSize        int `yaml:"outbox_batch_size"`
	OutboxLeaseSeconds     int `yaml:"outbox_lease_seconds"`
	RetryBaseSeconds       int `yaml:"retry_base_seconds"`
	RetryMaxSeconds        int `yaml:"retry_max_seconds"`
	ExpirationSweepMinutes int `yaml:"expiration_sweep_minutes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig reads the YAML file at path. Variables from a .env file in the
// working directory are loaded first, and ${VAR} references in the file are
// expanded from the environment, so secrets can stay out of the YAML.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ShutdownTimeoutSeconds <= 0 {
		c.HTTP.ShutdownTimeoutSeconds = 5
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageDriverPostgres
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.LockTimeoutMillis <= 0 {
		c.Database.LockTimeoutMillis = 3000
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		c.Gateway.TimeoutSeconds = 10
	}
	if c.Gateway.BreakerMaxFailures <= 0 {
		c.Gateway.BreakerMaxFailures = 5
	}
	if c.Gateway.BreakerOpenSeconds <= 0 {
		c.Gateway.BreakerOpenSeconds = 30
	}
	if c.Payment.PendingTTLMinutes <= 0 {
		c.Payment.PendingTTLMinutes = 30
	}
	if c.Catalog.CacheTTLSeconds <= 0 {
		c.Catalog.CacheTTLSeconds = 60
	}
	if c.Worker.OutboxPollSeconds <= 0 {
		c.Worker.OutboxPollSeconds = 2
	}
	if c.Worker.OutboxBatchSize <= 0 {
		c.Worker.OutboxBatchSize = 50
	}
	if c.Worker.OutboxLeaseSeconds <= 0 {
		c.Worker.OutboxLeaseSeconds = 60
	}
	if c.Worker.RetryBaseSeconds <= 0 {
		c.Worker.RetryBaseSeconds = 1
	}
	if c.Worker.RetryMaxSeconds <= 0 {
		c.Worker.RetryMaxSeconds = 300
	}
	if c.Worker.ExpirationSweepMinutes <= 0 {
		c.Worker.ExpirationSweepMinutes = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}
