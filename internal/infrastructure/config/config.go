package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for HomeDeck.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Environment string          `yaml:"environment"`
	API         APIConfig       `yaml:"api"`
	Database    DatabaseConfig  `yaml:"database"`
	Auth        AuthConfig      `yaml:"auth"`
	MQTT        MQTTConfig      `yaml:"mqtt"`
	WebSocket   WebSocketConfig `yaml:"websocket"`
	Logging     LoggingConfig   `yaml:"logging"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWT  JWTConfig       `yaml:"jwt"`
	Seed SeedAdminConfig `yaml:"seed"`
}

// JWTConfig contains JWT token settings. AccessTokenTTL is in minutes.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// SeedAdminConfig describes the administrator account created on first
// start when the user table is empty.
type SeedAdminConfig struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

// MQTTConfig contains settings for the optional outbound event relay.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HOMEDECK_SECTION_KEY
// For example: HOMEDECK_DATABASE_PATH, HOMEDECK_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Environment: "development",
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/homedeck.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
			Seed: SeedAdminConfig{
				Email: "admin@homedeck.local",
				Name:  "Administrator",
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "homedeck-backend",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HOMEDECK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOMEDECK_ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}

	// API
	if v := os.Getenv("HOMEDECK_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("HOMEDECK_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Database
	if v := os.Getenv("HOMEDECK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Auth - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("HOMEDECK_JWT_SECRET"); v != "" {
		cfg.Auth.JWT.Secret = v
	}
	if v := os.Getenv("HOMEDECK_SEED_ADMIN_PASSWORD"); v != "" {
		cfg.Auth.Seed.Password = v
	}

	// MQTT
	if v := os.Getenv("HOMEDECK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HOMEDECK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HOMEDECK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// JWT secret is REQUIRED. An empty or weak secret would allow
	// attackers to forge tokens and control physical devices.
	const minJWTSecretLength = 32
	if c.Auth.JWT.Secret == "" {
		errs = append(errs, "auth.jwt.secret is required (set HOMEDECK_JWT_SECRET environment variable)")
	} else if len(c.Auth.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "auth.jwt.secret must be at least 32 characters for adequate security")
	}

	if c.Auth.JWT.AccessTokenTTL < 1 {
		errs = append(errs, "auth.jwt.access_token_ttl must be at least 1 minute")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// AccessTokenDuration returns the JWT access token lifetime as a Duration.
func (c *Config) AccessTokenDuration() time.Duration {
	return time.Duration(c.Auth.JWT.AccessTokenTTL) * time.Minute
}
