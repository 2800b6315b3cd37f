package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Routing   RoutingConfig   `yaml:"routing"`
	Policy    PolicyConfig    `yaml:"policy"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	GRPCPort         int           `yaml:"grpc_port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`

	// TrustProxyHeaders enables X-Forwarded-For handling. Leave it off
	// unless a reverse proxy in front of the gateway sets those headers.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

type RedisConfig struct {
	Addresses   []string      `yaml:"addresses"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"pool_size"`
	SettingsTTL time.Duration `yaml:"settings_ttl"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

// RoutingConfig holds the static knobs of the backend router. The endpoint,
// model and key of each backend are not here: they are resolved per call
// from the settings store (see Resolver).
type RoutingConfig struct {
	CloudBaseURL         string        `yaml:"cloud_base_url"`
	CloudModel           string        `yaml:"cloud_model"`
	ProbeTimeout         time.Duration `yaml:"probe_timeout"`
	AvailabilityTTL      time.Duration `yaml:"availability_ttl"`
	StreamTimeout        time.Duration `yaml:"stream_timeout"`
	DefaultRetryAfter    time.Duration `yaml:"default_retry_after"`
	MaxCloudAttempts     int           `yaml:"max_cloud_attempts"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval"`
	CloudRequestsPerSec  float64       `yaml:"cloud_requests_per_sec"`
	CloudBurst           int           `yaml:"cloud_burst"`
	Temperature          float64       `yaml:"temperature"`
	MaxOutputTokens      int           `yaml:"max_output_tokens"`
}

// CloudEndpoint returns the streaming endpoint of the configured cloud model.
func (r RoutingConfig) CloudEndpoint() string {
	return fmt.Sprintf("%s/models/%s:streamGenerateContent", r.CloudBaseURL, r.CloudModel)
}

type PolicyConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BundlePath        string        `yaml:"bundle_path"`
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`
	FailOpen          bool          `yaml:"fail_open"`
	Timezone          string        `yaml:"timezone"`
}

type RateLimitConfig struct {
	Enabled        bool          `yaml:"enabled"`
	TurnsPerWindow int           `yaml:"turns_per_window"`
	Window         time.Duration `yaml:"window"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			GRPCPort:         9091,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "critters",
			User:            "critters",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addresses:   []string{"localhost:6379"},
			DB:          0,
			PoolSize:    10,
			SettingsTTL: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
		Routing: RoutingConfig{
			CloudBaseURL:         "https://generativelanguage.googleapis.com/v1beta",
			CloudModel:           "gemini-1.5-flash",
			ProbeTimeout:         2 * time.Second,
			AvailabilityTTL:      5 * time.Second,
			StreamTimeout:        60 * time.Second,
			DefaultRetryAfter:    60 * time.Second,
			MaxCloudAttempts:     3,
			RetryInitialInterval: 500 * time.Millisecond,
			RetryMaxInterval:     4 * time.Second,
			CloudRequestsPerSec:  1,
			CloudBurst:           3,
			Temperature:          0.7,
			MaxOutputTokens:      300,
		},
		Policy: PolicyConfig{
			Enabled:           true,
			EvaluationTimeout: 100 * time.Millisecond,
			FailOpen:          true,
			Timezone:          "Local",
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			TurnsPerWindow: 20,
			Window:         time.Minute,
		},
	}
}
