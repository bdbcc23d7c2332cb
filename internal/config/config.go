package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kjstillabower/nimbus/internal/client"
	"github.com/kjstillabower/nimbus/internal/dashboard"
	"github.com/kjstillabower/nimbus/internal/models"
	"gopkg.in/yaml.v3"
)

// Session backends.
const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
)

// Config holds application configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration

	RequestTimeout time.Duration

	DefaultLocation string
	DefaultUnit     models.Unit
	ForecastDays    int

	SessionBackend        string // "in_memory" or "memcached"
	SessionTTL            time.Duration
	SessionMaxEntries     int // in_memory backend capacity
	LoadingExpiry         time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	TrackedLocations []string

	LocationMinLength int
	LocationMaxLength int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Dashboard struct {
		DefaultLocation string `yaml:"default_location"`
		DefaultUnit     string `yaml:"default_unit"`
		ForecastDays    int    `yaml:"forecast_days"`
	} `yaml:"dashboard"`

	Session struct {
		Backend       string `yaml:"backend"`
		TTL           string `yaml:"ttl"`
		LoadingExpiry string `yaml:"loading_expiry"`
		MaxEntries    int    `yaml:"max_entries"`
		Memcached     struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"session"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Metrics struct {
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"metrics"`

	Location struct {
		MinLength int `yaml:"min_length"`
		MaxLength int `yaml:"max_length"`
	} `yaml:"location"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml
// relative to the working directory. API key comes from WEATHER_API_KEY env or secrets file.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom is Load with an explicit project root.
func LoadFrom(root string) (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(root, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.WeatherAPIKey, err = loadAPIKey(root)
	if err != nil {
		return nil, err
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}

	cfg.WeatherAPIURL = strings.TrimRight(strings.TrimSpace(fc.WeatherAPI.URL), "/")
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = client.DefaultBaseURL
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 5*time.Second)
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.DefaultLocation = strings.TrimSpace(fc.Dashboard.DefaultLocation)
	if cfg.DefaultLocation == "" {
		cfg.DefaultLocation = dashboard.DefaultLocation
	}
	cfg.DefaultUnit = models.UnitCelsius
	if s := strings.TrimSpace(fc.Dashboard.DefaultUnit); s != "" {
		u, err := models.ParseUnit(s)
		if err != nil {
			return nil, fmt.Errorf("dashboard.default_unit: %w", err)
		}
		cfg.DefaultUnit = u
	}
	cfg.ForecastDays = fc.Dashboard.ForecastDays
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = dashboard.DefaultForecastDays
	}

	cfg.SessionBackend = strings.TrimSpace(strings.ToLower(os.Getenv("SESSION_BACKEND")))
	if cfg.SessionBackend == "" {
		cfg.SessionBackend = strings.TrimSpace(strings.ToLower(fc.Session.Backend))
	}
	if cfg.SessionBackend == "" {
		cfg.SessionBackend = BackendInMemory
	}
	cfg.SessionTTL = parseDuration(fc.Session.TTL, 24*time.Hour)
	cfg.LoadingExpiry = parseDuration(fc.Session.LoadingExpiry, time.Minute)
	cfg.SessionMaxEntries = fc.Session.MaxEntries
	if cfg.SessionMaxEntries <= 0 {
		cfg.SessionMaxEntries = 100000
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Session.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Session.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Session.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 5
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 10
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.TrackedLocations = fc.Metrics.TrackedLocations

	cfg.LocationMinLength = fc.Location.MinLength
	if cfg.LocationMinLength <= 0 {
		cfg.LocationMinLength = 1
	}
	cfg.LocationMaxLength = fc.Location.MaxLength
	if cfg.LocationMaxLength <= 0 {
		cfg.LocationMaxLength = 100
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAPIKey prefers WEATHER_API_KEY and falls back to config/secrets.yaml. A missing secrets
// file is not an error.
func loadAPIKey(root string) (string, error) {
	if key := strings.TrimSpace(os.Getenv("WEATHER_API_KEY")); key != "" {
		return key, nil
	}
	secretsPath := filepath.Join(root, "config", "secrets.yaml")
	secretsData, err := os.ReadFile(secretsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.WeatherAPIKey), nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout must leave room for both upstream
// calls of one search and is raised when it does not.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("WEATHER_API_TIMEOUT must be positive")
	}
	if cfg.RequestTimeout <= 2*cfg.WeatherAPITimeout {
		cfg.RequestTimeout = 2*cfg.WeatherAPITimeout + time.Second
	}
	switch cfg.SessionBackend {
	case BackendInMemory, BackendMemcached:
	default:
		return fmt.Errorf("session.backend must be in_memory or memcached, got %q", cfg.SessionBackend)
	}
	if cfg.LocationMinLength > cfg.LocationMaxLength {
		return fmt.Errorf("location.min_length (%d) exceeds location.max_length (%d)", cfg.LocationMinLength, cfg.LocationMaxLength)
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("lifecycle.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	return nil
}
