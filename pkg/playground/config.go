package playground

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/executor"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/logger"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/ratelimit"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/server"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/urlbuilder"
)

// Config holds all playground configuration.
type Config struct {
	// HTTP server settings for `serve`
	Server server.Config `json:"server" yaml:"server"`

	// Selectable environments. Empty means local and vercel.
	Environments []urlbuilder.Environment `json:"environments" yaml:"environments" validate:"omitempty,dive"`

	// Environment used when nothing has been persisted yet. Empty means the
	// first one.
	DefaultEnv string `json:"default_env" yaml:"default_env" validate:"omitempty,alphanum,max=32"`

	// Endpoint registry file. Empty uses the built-in table.
	Registry string `json:"registry_file" yaml:"registry_file"`

	// Reload the registry file when it changes
	Watch bool `json:"watch_registry" yaml:"watch_registry"`

	// bbolt file holding the environment choice. Empty keeps it in memory.
	StateFile string `json:"state_file" yaml:"state_file"`

	// Client-side throttling of playground calls
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// HTTP client used for playground calls
	Client ClientConfig `json:"client" yaml:"client"`

	// User-Agent sent with playground calls
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// Maximum response bytes read per call
	MaxBody int64 `json:"max_body" yaml:"max_body" validate:"gte=0"`

	// Log output
	Log LogConfig `json:"log" yaml:"log"`

	// Verbose logging
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Debug mode
	Debug bool `json:"debug" yaml:"debug"`
}

// RateLimitConfig throttles outgoing playground calls.
type RateLimitConfig struct {
	// Zero disables limiting
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `json:"burst" yaml:"burst" validate:"gte=0"`

	// Minimum spacing between calls to the same host
	HostDelay time.Duration `json:"host_delay" yaml:"host_delay" validate:"gte=0"`

	// Per-host overrides keyed by host[:port]
	Hosts map[string]HostRate `json:"hosts,omitempty" yaml:"hosts,omitempty" validate:"omitempty,dive,keys,required,endkeys"`
}

// HostRate is the rate for a single API host.
type HostRate struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" validate:"gt=0"`
	Burst             int     `json:"burst" yaml:"burst" validate:"gte=1"`
}

// ClientConfig holds HTTP transport settings.
type ClientConfig struct {
	Timeout             time.Duration `json:"timeout" yaml:"timeout" validate:"gt=0"`
	MaxIdleConns        int           `json:"max_idle_conns" yaml:"max_idle_conns" validate:"gte=0"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host" yaml:"max_idle_conns_per_host" validate:"gte=0"`
	MaxRedirects        int           `json:"max_redirects" yaml:"max_redirects" validate:"gte=0"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	// debug, info, warn or error. Empty derives the level from Verbose and Debug.
	Level  string `json:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	client := executor.DefaultClientConfig()
	return &Config{
		Server:       server.DefaultConfig(),
		Environments: urlbuilder.DefaultEnvironments().List(),
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Client: ClientConfig{
			Timeout:             client.Timeout,
			MaxIdleConns:        client.MaxIdleConns,
			MaxIdleConnsPerHost: client.MaxIdleConnsPerHost,
			MaxRedirects:        client.MaxRedirects,
		},
		UserAgent: "pincodedocs-playground/1.0",
		MaxBody:   executor.DefaultMaxBody,
		Log: LogConfig{
			Pretty: true,
		},
	}
}

// DefaultStatePath returns the per-user location of the state file.
func DefaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "pincodedocs", "state.db")
}

// LoadFromFile loads configuration from a file (YAML or JSON). Fields the
// file leaves out keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		config = DefaultConfig()
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file. A .json extension writes JSON,
// anything else YAML.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks field constraints and then the relations between fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid field: %w", err)
	}

	if _, err := c.environments(); err != nil {
		return err
	}

	if c.Watch && c.Registry == "" {
		return fmt.Errorf("watch requires a registry file")
	}

	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1")
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	_ = json.Unmarshal(data, clone)
	return clone
}

// environments builds the environment set, falling back to the built-in
// pair when none are configured.
func (c *Config) environments() (*urlbuilder.Environments, error) {
	if len(c.Environments) == 0 {
		if c.DefaultEnv == "" {
			return urlbuilder.DefaultEnvironments(), nil
		}
		return urlbuilder.NewEnvironments(urlbuilder.DefaultEnvironments().List(), c.DefaultEnv)
	}
	return urlbuilder.NewEnvironments(c.Environments, c.DefaultEnv)
}

// logLevel picks the level the same way the CLI flags do: an explicit
// level wins, then debug, then verbose, otherwise warnings only.
func (c *Config) logLevel() logger.Level {
	if c.Log.Level != "" {
		if lvl, err := logger.ParseLevel(c.Log.Level); err == nil {
			return lvl
		}
	}
	switch {
	case c.Debug:
		return logger.DebugLevel
	case c.Verbose:
		return logger.InfoLevel
	default:
		return logger.WarnLevel
	}
}

// limiter builds the outgoing rate limiter with its per-host settings.
func (c *Config) limiter() *ratelimit.Limiter {
	l := ratelimit.NewLimiter(c.RateLimit.RequestsPerSecond, c.RateLimit.Burst)
	if c.RateLimit.HostDelay > 0 {
		l.SetHostDelay(c.RateLimit.HostDelay)
	}
	for host, r := range c.RateLimit.Hosts {
		l.SetHostRate(host, r.RequestsPerSecond, r.Burst)
	}
	return l
}

func (c *Config) clientConfig() executor.ClientConfig {
	return executor.ClientConfig{
		Timeout:             c.Client.Timeout,
		MaxIdleConns:        c.Client.MaxIdleConns,
		MaxIdleConnsPerHost: c.Client.MaxIdleConnsPerHost,
		MaxRedirects:        c.Client.MaxRedirects,
	}
}
