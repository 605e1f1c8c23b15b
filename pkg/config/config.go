package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

const (
	StoreMongoDB    = "mongodb"
	StoreRedis      = "redis"
	StorePostgreSQL = "postgresql"
	StoreMySQL      = "mysql"
	StoreMariaDB    = "mariadb"
	StoreFile       = "file"
	StoreMemory     = "memory"

	defaultConfigFile = "configs/config.yaml"
)

type StoreConfig struct {
	Type        string        `yaml:"type" env:"SAVEGAME_STORE_TYPE"`
	Connection  string        `yaml:"connection" env:"SAVEGAME_STORE_CONNECTION"`
	Database    string        `yaml:"database" env:"SAVEGAME_STORE_DATABASE"`
	Collection  string        `yaml:"collection" env:"SAVEGAME_STORE_COLLECTION"`
	Table       string        `yaml:"table" env:"SAVEGAME_STORE_TABLE"`
	KeyPrefix   string        `yaml:"key_prefix" env:"SAVEGAME_STORE_KEY_PREFIX"`
	Path        string        `yaml:"path" env:"SAVEGAME_STORE_PATH"`
	AutoMigrate bool          `yaml:"auto_migrate" env:"SAVEGAME_STORE_AUTO_MIGRATE"`
	Timeout     time.Duration `yaml:"timeout" env:"SAVEGAME_STORE_TIMEOUT"`
}

type IdentityConfig struct {
	Header      string `yaml:"header" env:"SAVEGAME_IDENTITY_HEADER"`
	JWTSecret   string `yaml:"jwt_secret" env:"SAVEGAME_IDENTITY_JWT_SECRET"`
	JWTIssuer   string `yaml:"jwt_issuer" env:"SAVEGAME_IDENTITY_JWT_ISSUER"`
	JWTAudience string `yaml:"jwt_audience" env:"SAVEGAME_IDENTITY_JWT_AUDIENCE"`
	// TrustHeader keeps the header resolver for token-less requests when a
	// JWT secret is set.
	TrustHeader bool   `yaml:"trust_header" env:"SAVEGAME_IDENTITY_TRUST_HEADER"`
}

type MonitorConfig struct {
	EnableRecordCount bool          `yaml:"enable_record_count" env:"SAVEGAME_MONITOR_ENABLE_RECORD_COUNT"`
	Interval          time.Duration `yaml:"interval" env:"SAVEGAME_MONITOR_INTERVAL"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" env:"SAVEGAME_TRACING_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SAVEGAME_TRACING_SERVICE_NAME"`
}

type Config struct {
	LogLevel             string         `yaml:"log_level" env:"SAVEGAME_LOG_LEVEL"`
	LogFormat            string         `yaml:"log_format" env:"SAVEGAME_LOG_FORMAT"`
	ListenAddress        string         `yaml:"listen_address" env:"SAVEGAME_LISTEN_ADDRESS"`
	EnableRequestLogging bool           `yaml:"enable_request_logging" env:"SAVEGAME_ENABLE_REQUEST_LOGGING"`
	Store                StoreConfig    `yaml:"store"`
	Identity             IdentityConfig `yaml:"identity"`
	Monitor              MonitorConfig  `yaml:"monitor"`
	Tracing              TracingConfig  `yaml:"tracing"`
}

// Default returns the configuration used when nothing else is set: an
// in-memory store and the WeChat cloud identity header.
func Default() *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "json",
		ListenAddress: ":8080",
		Store: StoreConfig{
			Type:        StoreMemory,
			Database:    "savegame",
			Collection:  "saves",
			Table:       "save_records",
			KeyPrefix:   "savegame:",
			Path:        "data/saves",
			AutoMigrate: true,
			Timeout:     5 * time.Second,
		},
		Identity: IdentityConfig{
			Header: "X-WX-OPENID",
		},
		Monitor: MonitorConfig{
			Interval: 60 * time.Second,
		},
		Tracing: TracingConfig{
			ServiceName: "savegame",
		},
	}
}

// NewConfig builds the configuration from defaults, then the YAML file, then
// SAVEGAME_* environment variables. path wins over CONFIG_PATH; with neither
// set, configs/config.yaml is read when it exists.
func NewConfig(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if !explicit {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(cwd, defaultConfigFile)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Store.Type = strings.ToLower(strings.TrimSpace(cfg.Store.Type))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Type {
	case StoreMongoDB, StoreRedis, StorePostgreSQL, StoreMySQL, StoreMariaDB:
		if c.Store.Connection == "" {
			return fmt.Errorf("store.connection is required for store type %s", c.Store.Type)
		}
	case StoreFile:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for store type %s", c.Store.Type)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store type: %q", c.Store.Type)
	}
	if c.Monitor.EnableRecordCount && c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive")
	}
	return nil
}
