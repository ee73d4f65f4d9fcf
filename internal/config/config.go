package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all gateway configuration
type Config struct {
	App         AppConfig
	Server      ServerConfig
	Library     BackendConfig
	Reservation BackendConfig
	Rating      BackendConfig
	Breaker     BreakerConfig
	Client      ClientConfig
	Retry       RetryConfig
	JWT         JWTConfig
	OTel        OTelConfig
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Version     string
	LogLevel    string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// BackendConfig holds the address of one downstream system
type BackendConfig struct {
	Host string
	Port int
}

// BaseURL returns the backend base URL
func (b *BackendConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", b.Host, b.Port)
}

// BreakerConfig holds circuit breaker thresholds
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
}

// ClientConfig holds per-call budgets for downstream HTTP requests
type ClientConfig struct {
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// RetryConfig holds retry queue worker settings
type RetryConfig struct {
	// FailureDelay is slept after a deferred saga fails again, so the
	// worker does not spin against a dead backend
	FailureDelay time.Duration
}

// JWTConfig holds bearer token settings
type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool
	ServiceName   string
	CollectorAddr string
	SampleRatio   float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{}
	if err := bindConfig(v, cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("APP_NAME", "library-gateway")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("LOG_LEVEL", "info")

	// Server defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "30s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	// Downstream system defaults (compose service names)
	v.SetDefault("LIBRARY_SYSTEM_HOST", "library")
	v.SetDefault("LIBRARY_SYSTEM_PORT", 8060)
	v.SetDefault("RESERVATION_SYSTEM_HOST", "reservation")
	v.SetDefault("RESERVATION_SYSTEM_PORT", 8070)
	v.SetDefault("RATING_SYSTEM_HOST", "rating")
	v.SetDefault("RATING_SYSTEM_PORT", 8050)

	// Circuit breaker defaults
	v.SetDefault("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 2)
	v.SetDefault("CIRCUIT_BREAKER_SUCCESS_THRESHOLD", 1)
	v.SetDefault("CIRCUIT_BREAKER_TIMEOUT", "15s")

	// Downstream HTTP client defaults
	v.SetDefault("CLIENT_CONNECT_TIMEOUT", "3s")
	v.SetDefault("CLIENT_REQUEST_TIMEOUT", "10s")

	// Retry queue defaults
	v.SetDefault("RETRY_QUEUE_FAILURE_DELAY", "1s")

	// JWT defaults
	v.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", "1h")
	v.SetDefault("JWT_ISSUER", "library-gateway")

	// OTel defaults
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "library-gateway")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)
}

func bindConfig(v *viper.Viper, cfg *Config) error {
	// App
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.Version = v.GetString("APP_VERSION")
	cfg.App.LogLevel = v.GetString("LOG_LEVEL")

	// Server
	cfg.Server.Host = v.GetString("SERVER_HOST")
	cfg.Server.Port = v.GetInt("PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	cfg.Server.IdleTimeout = v.GetDuration("SERVER_IDLE_TIMEOUT")

	// Downstream systems
	cfg.Library.Host = v.GetString("LIBRARY_SYSTEM_HOST")
	cfg.Library.Port = v.GetInt("LIBRARY_SYSTEM_PORT")
	cfg.Reservation.Host = v.GetString("RESERVATION_SYSTEM_HOST")
	cfg.Reservation.Port = v.GetInt("RESERVATION_SYSTEM_PORT")
	cfg.Rating.Host = v.GetString("RATING_SYSTEM_HOST")
	cfg.Rating.Port = v.GetInt("RATING_SYSTEM_PORT")

	// Circuit breaker
	cfg.Breaker.FailureThreshold = v.GetInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD")
	cfg.Breaker.SuccessThreshold = v.GetInt("CIRCUIT_BREAKER_SUCCESS_THRESHOLD")
	openTimeout, err := parseSecondsOrDuration(v.GetString("CIRCUIT_BREAKER_TIMEOUT"))
	if err != nil {
		return fmt.Errorf("CIRCUIT_BREAKER_TIMEOUT: %w", err)
	}
	cfg.Breaker.OpenTimeout = openTimeout

	// Downstream HTTP client
	cfg.Client.ConnectTimeout = v.GetDuration("CLIENT_CONNECT_TIMEOUT")
	cfg.Client.RequestTimeout = v.GetDuration("CLIENT_REQUEST_TIMEOUT")

	// Retry queue
	cfg.Retry.FailureDelay = v.GetDuration("RETRY_QUEUE_FAILURE_DELAY")

	// JWT
	cfg.JWT.Secret = v.GetString("JWT_SECRET")
	cfg.JWT.AccessTokenTTL = v.GetDuration("JWT_ACCESS_TOKEN_TTL")
	cfg.JWT.Issuer = v.GetString("JWT_ISSUER")

	// OTel
	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")
	cfg.OTel.SampleRatio = v.GetFloat64("OTEL_SAMPLE_RATIO")

	return nil
}

// parseSecondsOrDuration accepts either a Go duration ("15s") or a bare
// integer meaning seconds ("15"), which is what existing deployments set.
func parseSecondsOrDuration(value string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return d, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("circuit breaker failure threshold must be >= 1, got %d", c.Breaker.FailureThreshold)
	}
	if c.Breaker.SuccessThreshold < 1 {
		return fmt.Errorf("circuit breaker success threshold must be >= 1, got %d", c.Breaker.SuccessThreshold)
	}
	if c.Breaker.OpenTimeout <= 0 {
		return fmt.Errorf("circuit breaker timeout must be positive, got %v", c.Breaker.OpenTimeout)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.App.Environment == "production" && c.JWT.Secret == "your-secret-key-change-in-production" {
		return fmt.Errorf("JWT secret must be changed in production")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
