package playground

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/logger"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/metrics"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/state"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/urlbuilder"
)

// Option is a functional option for configuring the Playground.
type Option func(*Playground) error

// WithConfig replaces the whole configuration. Options applied after it
// still override individual fields.
func WithConfig(cfg *Config) Option {
	return func(p *Playground) error {
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		p.config = cfg.Clone()
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Playground) error {
		p.logger = l
		return nil
	}
}

// WithMetrics sets a custom metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(p *Playground) error {
		p.metrics = m
		return nil
	}
}

// WithStore sets where the environment choice is persisted. The caller
// keeps ownership and closes it.
func WithStore(s state.Store) Option {
	return func(p *Playground) error {
		p.store = s
		return nil
	}
}

// WithStateFile persists the environment choice in a bbolt file.
func WithStateFile(path string) Option {
	return func(p *Playground) error {
		p.config.StateFile = path
		return nil
	}
}

// WithHTTPClient sets the client used for playground calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Playground) error {
		p.httpClient = c
		return nil
	}
}

// WithEnvironment adds an environment, replacing one with the same name.
func WithEnvironment(name, baseURL string) Option {
	return func(p *Playground) error {
		env := urlbuilder.Environment{Name: name, BaseURL: baseURL}
		for i, e := range p.config.Environments {
			if e.Name == name {
				p.config.Environments[i] = env
				return nil
			}
		}
		p.config.Environments = append(p.config.Environments, env)
		return nil
	}
}

// WithDefaultEnvironment sets the environment used before any choice is
// persisted.
func WithDefaultEnvironment(name string) Option {
	return func(p *Playground) error {
		p.config.DefaultEnv = name
		return nil
	}
}

// WithRegistry sets the endpoint source, overriding the registry file.
func WithRegistry(src registry.Source) Option {
	return func(p *Playground) error {
		if src == nil {
			return fmt.Errorf("registry source is nil")
		}
		p.source = src
		return nil
	}
}

// WithRegistryFile loads endpoints from a YAML file, optionally reloading
// it on change.
func WithRegistryFile(path string, watch bool) Option {
	return func(p *Playground) error {
		p.config.Registry = path
		p.config.Watch = watch
		return nil
	}
}

// WithRateLimit sets the outgoing request rate.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(p *Playground) error {
		p.config.RateLimit.RequestsPerSecond = requestsPerSecond
		p.config.RateLimit.Burst = burst
		return nil
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Playground) error {
		p.config.Client.Timeout = timeout
		return nil
	}
}

// WithUserAgent sets the User-Agent for playground calls.
func WithUserAgent(ua string) Option {
	return func(p *Playground) error {
		p.config.UserAgent = ua
		return nil
	}
}

// WithVerbose enables verbose logging.
func WithVerbose(verbose bool) Option {
	return func(p *Playground) error {
		p.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables debug mode.
func WithDebug(debug bool) Option {
	return func(p *Playground) error {
		p.config.Debug = debug
		return nil
	}
}
