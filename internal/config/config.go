package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Auth      AuthConfig      `yaml:"auth"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Sync      SyncConfig      `yaml:"sync"`
	Notify    NotifyConfig    `yaml:"notify"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"` // "stdio" or "http"
}

// AuthConfig controls API key checks. DefaultUser is the identity used
// when auth is off, which is always the case over stdio.
type AuthConfig struct {
	Enabled     bool   `yaml:"enabled"`
	DefaultUser string `yaml:"default_user"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// StoreConfig selects the local session cache.
type StoreConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "json"
	JSONPath string `yaml:"json_path"`
}

// TrackingConfig holds break detection policy.
type TrackingConfig struct {
	BreakThreshold   time.Duration `yaml:"break_threshold"`
	AutoEndThreshold time.Duration `yaml:"auto_end_threshold"`
	Timezone         string        `yaml:"timezone"`
}

// SyncConfig configures the remote push of ended sessions.
type SyncConfig struct {
	Mode      string        `yaml:"mode"` // "disabled", "sqlite" or "http"
	QueueSize int           `yaml:"queue_size"`
	Workers   int           `yaml:"workers"`
	Timeout   time.Duration `yaml:"timeout"`
	URL       string        `yaml:"url"`
	APIKey    string        `yaml:"api_key"`
	DBPath    string        `yaml:"db_path"`
}

type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	AppName string `yaml:"app_name"`
}

type AnalyticsConfig struct {
	WindowDays int `yaml:"window_days"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "stdio",
		},
		Auth: AuthConfig{
			DefaultUser: "local",
		},
		DB: DBConfig{
			Path: "studytrack.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Store: StoreConfig{
			Driver:   "sqlite",
			JSONPath: "sessions.json",
		},
		Tracking: TrackingConfig{
			BreakThreshold:   5 * time.Minute,
			AutoEndThreshold: 30 * time.Minute,
			Timezone:         "Local",
		},
		Sync: SyncConfig{
			Mode:      "sqlite",
			QueueSize: 64,
			Workers:   2,
			Timeout:   10 * time.Second,
		},
		Notify: NotifyConfig{
			AppName: "studytrack",
		},
		Analytics: AnalyticsConfig{
			WindowDays: 30,
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	return LoadFile(os.Getenv("STUDYTRACK_CONFIG_PATH"))
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("STUDYTRACK_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("STUDYTRACK_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid STUDYTRACK_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if mode := os.Getenv("STUDYTRACK_TRANSPORT"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if v := os.Getenv("STUDYTRACK_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid STUDYTRACK_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = enabled
	}
	if user := os.Getenv("STUDYTRACK_DEFAULT_USER"); user != "" {
		cfg.Auth.DefaultUser = user
	}
	if dbPath := os.Getenv("STUDYTRACK_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("STUDYTRACK_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if driver := os.Getenv("STUDYTRACK_STORE_DRIVER"); driver != "" {
		cfg.Store.Driver = driver
	}
	if p := os.Getenv("STUDYTRACK_STORE_JSON_PATH"); p != "" {
		cfg.Store.JSONPath = p
	}
	if v := os.Getenv("STUDYTRACK_BREAK_THRESHOLD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid STUDYTRACK_BREAK_THRESHOLD: %w", err)
		}
		cfg.Tracking.BreakThreshold = d
	}
	if v := os.Getenv("STUDYTRACK_AUTO_END_THRESHOLD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid STUDYTRACK_AUTO_END_THRESHOLD: %w", err)
		}
		cfg.Tracking.AutoEndThreshold = d
	}
	if tz := os.Getenv("STUDYTRACK_TIMEZONE"); tz != "" {
		cfg.Tracking.Timezone = tz
	}
	if mode := os.Getenv("STUDYTRACK_SYNC_MODE"); mode != "" {
		cfg.Sync.Mode = mode
	}
	if u := os.Getenv("STUDYTRACK_SYNC_URL"); u != "" {
		cfg.Sync.URL = u
	}
	if key := os.Getenv("STUDYTRACK_SYNC_API_KEY"); key != "" {
		cfg.Sync.APIKey = key
	}
	if p := os.Getenv("STUDYTRACK_SYNC_DB_PATH"); p != "" {
		cfg.Sync.DBPath = p
	}
	if v := os.Getenv("STUDYTRACK_NOTIFY_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid STUDYTRACK_NOTIFY_ENABLED: %w", err)
		}
		cfg.Notify.Enabled = enabled
	}
	return nil
}

// Validate reports configuration values the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Errorf("transport.mode must be stdio or http, got %q", c.Transport.Mode))
	}
	switch c.Store.Driver {
	case "sqlite", "json":
	default:
		errs = append(errs, fmt.Errorf("store.driver must be sqlite or json, got %q", c.Store.Driver))
	}
	switch c.Sync.Mode {
	case "disabled", "sqlite":
	case "http":
		if c.Sync.URL == "" {
			errs = append(errs, errors.New("sync.url is required when sync.mode is http"))
		}
	default:
		errs = append(errs, fmt.Errorf("sync.mode must be disabled, sqlite or http, got %q", c.Sync.Mode))
	}
	if c.Auth.DefaultUser == "" {
		errs = append(errs, errors.New("auth.default_user must not be empty"))
	}
	if c.Tracking.BreakThreshold <= 0 {
		errs = append(errs, errors.New("tracking.break_threshold must be positive"))
	}
	if c.Tracking.AutoEndThreshold <= c.Tracking.BreakThreshold {
		errs = append(errs, errors.New("tracking.auto_end_threshold must exceed tracking.break_threshold"))
	}
	if _, err := time.LoadLocation(c.Tracking.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("tracking.timezone: %w", err))
	}
	if c.Sync.QueueSize <= 0 || c.Sync.Workers <= 0 {
		errs = append(errs, errors.New("sync.queue_size and sync.workers must be positive"))
	}
	return errors.Join(errs...)
}

// Location returns the time zone used for calendar-day bucketing.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Tracking.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
