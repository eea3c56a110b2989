package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig
	Server     ServerConfig
	Log        LogConfig
	Tracing    TracingConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig
	Session    SessionConfig
	Extraction ExtractionConfig
	Intake     IntakeConfig
	Handoff    HandoffConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Version     string
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// Upper bound for a multipart request body. The ingestion pipeline itself
	// does not enforce size; this only protects the process.
	MaxUploadBytes int64
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRate  float64
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         time.Duration
}

type RateLimitConfig struct {
	// Per client IP
	RequestsPerSecond float64
	BurstSize         int
}

type SessionConfig struct {
	Secret        string
	Issuer        string
	TTL           time.Duration
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

type ExtractionConfig struct {
	BaseURL            string
	Timeout            time.Duration
	BreakerFailures    int
	BreakerOpenTimeout time.Duration
}

type IntakeConfig struct {
	RedirectDelay  time.Duration
	RedirectTarget string
}

type HandoffConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
	BufferSize   int
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	// Missing .env is fine; the environment wins either way.
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading .env: %w", err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Environment: v.GetString("APP_ENV"),
			Version:     v.GetString("APP_VERSION"),
		},
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetInt("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
			MaxUploadBytes:  v.GetInt64("SERVER_MAX_UPLOAD_BYTES"),
		},
		Log: LogConfig{
			Level:      v.GetString("LOG_LEVEL"),
			Format:     v.GetString("LOG_FORMAT"),
			OutputPath: v.GetString("LOG_OUTPUT"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("TRACING_ENABLED"),
			ServiceName: v.GetString("TRACING_SERVICE_NAME"),
			Endpoint:    v.GetString("TRACING_ENDPOINT"),
			SampleRate:  v.GetFloat64("TRACING_SAMPLE_RATE"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			AllowedMethods: splitList(v.GetString("CORS_ALLOWED_METHODS")),
			AllowedHeaders: splitList(v.GetString("CORS_ALLOWED_HEADERS")),
			MaxAge:         v.GetDuration("CORS_MAX_AGE"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("RATE_LIMIT_RPS"),
			BurstSize:         v.GetInt("RATE_LIMIT_BURST"),
		},
		Session: SessionConfig{
			Secret:        v.GetString("SESSION_SECRET"),
			Issuer:        v.GetString("SESSION_ISSUER"),
			TTL:           v.GetDuration("SESSION_TTL"),
			IdleTimeout:   v.GetDuration("SESSION_IDLE_TIMEOUT"),
			SweepInterval: v.GetDuration("SESSION_SWEEP_INTERVAL"),
		},
		Extraction: ExtractionConfig{
			BaseURL:            strings.TrimRight(v.GetString("EXTRACTION_BASE_URL"), "/"),
			Timeout:            v.GetDuration("EXTRACTION_TIMEOUT"),
			BreakerFailures:    v.GetInt("EXTRACTION_BREAKER_FAILURES"),
			BreakerOpenTimeout: v.GetDuration("EXTRACTION_BREAKER_OPEN_TIMEOUT"),
		},
		Intake: IntakeConfig{
			RedirectDelay:  v.GetDuration("INTAKE_REDIRECT_DELAY"),
			RedirectTarget: v.GetString("INTAKE_REDIRECT_TARGET"),
		},
		Handoff: HandoffConfig{
			KafkaBrokers: splitList(v.GetString("HANDOFF_KAFKA_BROKERS")),
			KafkaTopic:   v.GetString("HANDOFF_KAFKA_TOPIC"),
			BufferSize:   v.GetInt("HANDOFF_BUFFER_SIZE"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "rxintake")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_VERSION", "0.0.0")

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_MAX_UPLOAD_BYTES", 32<<20)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_SERVICE_NAME", "rxintake")
	v.SetDefault("TRACING_ENDPOINT", "otel-collector:4318")
	v.SetDefault("TRACING_SAMPLE_RATE", 0.1)

	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	v.SetDefault("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-ID")
	v.SetDefault("CORS_MAX_AGE", 12*time.Hour)

	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)

	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_ISSUER", "rxintake")
	v.SetDefault("SESSION_TTL", 12*time.Hour)
	v.SetDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	v.SetDefault("SESSION_SWEEP_INTERVAL", time.Minute)

	v.SetDefault("EXTRACTION_BASE_URL", "http://localhost:5000")
	v.SetDefault("EXTRACTION_TIMEOUT", 120*time.Second)
	v.SetDefault("EXTRACTION_BREAKER_FAILURES", 5)
	v.SetDefault("EXTRACTION_BREAKER_OPEN_TIMEOUT", 30*time.Second)

	v.SetDefault("INTAKE_REDIRECT_DELAY", 2*time.Second)
	v.SetDefault("INTAKE_REDIRECT_TARGET", "/dashboard")

	v.SetDefault("HANDOFF_KAFKA_BROKERS", "")
	v.SetDefault("HANDOFF_KAFKA_TOPIC", "intake.registrations")
	v.SetDefault("HANDOFF_BUFFER_SIZE", 1024)
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Session.Secret == "" {
		errs = append(errs, "SESSION_SECRET is required")
	} else if len(cfg.Session.Secret) < 32 && cfg.IsProduction() {
		errs = append(errs, "SESSION_SECRET must be at least 32 characters in production")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be between 1 and 65535")
	}

	if u, err := url.Parse(cfg.Extraction.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "EXTRACTION_BASE_URL must be an absolute URL")
	}

	if cfg.Intake.RedirectDelay < 0 {
		errs = append(errs, "INTAKE_REDIRECT_DELAY cannot be negative")
	}

	if cfg.Extraction.BreakerFailures <= 0 {
		errs = append(errs, "EXTRACTION_BREAKER_FAILURES must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			result = append(result, t)
		}
	}
	return result
}
