package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvAPIURL selects the backend base URL
const EnvAPIURL = "SCENESTUDIO_API_URL"

// DefaultAPIURL is the local development backend
const DefaultAPIURL = "http://localhost:8000/api/v1"

// Config holds all configuration for the client and the mock backend
type Config struct {
	API     APIConfig
	Session SessionConfig
	Redis   RedisConfig
	Poll    PollConfig
	Logging LoggingConfig
	Metrics MetricsConfig
	Tracing TracingConfig
	Archive ArchiveConfig
	Notify  NotifyConfig
	MockAPI MockAPIConfig
}

// APIConfig holds backend client configuration
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
	UserAgent string
}

// SessionConfig selects where the session token is persisted
type SessionConfig struct {
	Backend   string // file, redis, memory
	Path      string
	KeyPrefix string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PollConfig holds polling reconciler configuration
type PollConfig struct {
	Interval time.Duration
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds the metrics listener address; empty disables it
type MetricsConfig struct {
	Addr string
}

// TracingConfig holds Jaeger configuration
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// ArchiveConfig holds object storage configuration for video archival
type ArchiveConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
	// AutoArchive copies videos as soon as a watched scene completes
	AutoArchive bool
}

// NotifyConfig holds scene status notification sinks
type NotifyConfig struct {
	WebhookURL    string
	WebhookSecret string
	AMQPEnabled   bool
	AMQP          AMQPConfig
}

// AMQPConfig holds message broker configuration
type AMQPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// MockAPIConfig holds configuration for the in-memory development backend
type MockAPIConfig struct {
	Host         string
	Port         int
	JWTSecret    string
	TokenTTL     time.Duration
	StepInterval time.Duration
	RateLimit    float64
	Burst        int
}

// Load reads configuration from an optional file, a .env file and the
// environment. A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	if err := v.BindEnv("api.baseURL", EnvAPIURL); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Session.Backend {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Poll.Interval)
	}
	if c.API.BaseURL == "" {
		return errors.New("api base URL is required")
	}
	return nil
}

// DefaultSessionPath returns the per-user session file location
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".scenestudio-session.json"
	}
	return dir + string(os.PathSeparator) + "scenestudio" + string(os.PathSeparator) + "session.json"
}

func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.baseURL", DefaultAPIURL)
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.rateLimit", 10.0)
	v.SetDefault("api.burst", 20)
	v.SetDefault("api.userAgent", "scenestudio/1.0")

	// Session defaults
	v.SetDefault("session.backend", "file")
	v.SetDefault("session.path", DefaultSessionPath())
	v.SetDefault("session.keyPrefix", "scenestudio")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Poll defaults
	v.SetDefault("poll.interval", "5s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("metrics.addr", "")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "scenestudio")
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")

	// Archive defaults
	v.SetDefault("archive.endpoint", "localhost:9000")
	v.SetDefault("archive.accessKeyID", "minioadmin")
	v.SetDefault("archive.secretAccessKey", "minioadmin")
	v.SetDefault("archive.bucketName", "scenes")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.useSSL", false)
	v.SetDefault("archive.autoArchive", false)

	// Notify defaults
	v.SetDefault("notify.webhookURL", "")
	v.SetDefault("notify.webhookSecret", "")
	v.SetDefault("notify.amqpEnabled", false)
	v.SetDefault("notify.amqp.host", "localhost")
	v.SetDefault("notify.amqp.port", 5672)
	v.SetDefault("notify.amqp.user", "guest")
	v.SetDefault("notify.amqp.password", "guest")
	v.SetDefault("notify.amqp.vhost", "/")

	// Mock backend defaults
	v.SetDefault("mockapi.host", "0.0.0.0")
	v.SetDefault("mockapi.port", 8000)
	v.SetDefault("mockapi.jwtSecret", "dev-secret-change-me")
	v.SetDefault("mockapi.tokenTTL", "24h")
	v.SetDefault("mockapi.stepInterval", "2s")
	v.SetDefault("mockapi.rateLimit", 20.0)
	v.SetDefault("mockapi.burst", 40)
}
