// Package config loads converter settings from .env, an optional YAML file and the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// PathEnv names the variable holding an optional YAML config path
const PathEnv = "FX_CONFIG_PATH"

// Storage drivers
const (
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Env        string     `yaml:"env" env:"APP_ENV" env-default:"development"`
	HTTPServer HTTPServer `yaml:"http_server"`
	Exchange   Exchange   `yaml:"exchange"`
	Storage    Storage    `yaml:"storage"`
	Conversion Conversion `yaml:"conversion"`
	Network    Network    `yaml:"network"`
	Log        Log        `yaml:"log"`
}

type HTTPServer struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// Exchange configures the remote rate source. The key is never compiled in.
type Exchange struct {
	APIURL       string        `yaml:"api_url" env:"EXCHANGE_API_URL" env-default:"https://v6.exchangerate-api.com/v6"`
	APIKey       string        `yaml:"api_key" env:"EXCHANGE_API_KEY"`
	BaseCurrency string        `yaml:"base_currency" env:"EXCHANGE_BASE_CURRENCY" env-default:"USD"`
	HTTPTimeout  time.Duration `yaml:"http_timeout" env:"EXCHANGE_HTTP_TIMEOUT" env-default:"10s"`
	StaleAfter   time.Duration `yaml:"stale_after" env:"EXCHANGE_STALE_AFTER" env-default:"24h"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"badger"`
	Path   string `yaml:"path" env:"STORAGE_PATH" env-default:"./data"`
	DSN    string `yaml:"dsn" env:"STORAGE_DSN"`
}

type Conversion struct {
	Debounce    time.Duration `yaml:"debounce" env:"CONVERSION_DEBOUNCE" env-default:"500ms"`
	DefaultFrom string        `yaml:"default_from" env:"CONVERSION_DEFAULT_FROM" env-default:"USD"`
	DefaultTo   string        `yaml:"default_to" env:"CONVERSION_DEFAULT_TO" env-default:"EUR"`
}

type Network struct {
	ProbeURL           string        `yaml:"probe_url" env:"NETWORK_PROBE_URL"`
	ProbeInterval      time.Duration `yaml:"probe_interval" env:"NETWORK_PROBE_INTERVAL" env-default:"15s"`
	RefreshOnReconnect bool          `yaml:"refresh_on_reconnect" env:"NETWORK_REFRESH_ON_RECONNECT" env-default:"false"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"INFO"`
}

// Load reads .env when present, then path (if non-empty) and the environment
func Load(path string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to find config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if cfg.Network.ProbeURL == "" {
		cfg.Network.ProbeURL = cfg.Exchange.APIURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required and bounded settings
func (c *Config) Validate() error {
	var errs []error
	if c.Exchange.APIKey == "" {
		errs = append(errs, errors.New("EXCHANGE_API_KEY is required"))
	}
	if c.Exchange.APIURL == "" {
		errs = append(errs, errors.New("EXCHANGE_API_URL is required"))
	}
	if c.Conversion.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("conversion debounce must be positive, got %s", c.Conversion.Debounce))
	}
	if c.Network.ProbeInterval <= 0 {
		errs = append(errs, fmt.Errorf("network probe interval must be positive, got %s", c.Network.ProbeInterval))
	}
	switch c.Storage.Driver {
	case DriverBadger, DriverMemory:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("STORAGE_DSN is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

// Addr returns host:port for the HTTP server
func (c *Config) Addr() string {
	return c.HTTPServer.Host + ":" + c.HTTPServer.Port
}

// MaskedAPIURL returns the API URL safe for logging
func (c *Config) MaskedAPIURL() string {
	return MaskAPIKeyInURL(c.Exchange.APIURL)
}

// MaskAPIKey hides all but the edges of a key
func MaskAPIKey(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}

var (
	pathKeyPattern  = regexp.MustCompile(`(v6/)[^/]+`)
	queryKeyPattern = regexp.MustCompile(`([?&]api_key=)[^&]+`)
)

// MaskAPIKeyInURL hides a key embedded as /v6/<key> or ?api_key=
func MaskAPIKeyInURL(url string) string {
	masked := pathKeyPattern.ReplaceAllString(url, `${1}[MASKED]`)
	return queryKeyPattern.ReplaceAllString(masked, `${1}[MASKED]`)
}
