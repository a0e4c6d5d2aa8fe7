// Package playground assembles the endpoint registry, environments,
// persisted state and executor into one object the CLI and the server
// share.
package playground

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/binder"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/executor"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/logger"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/metrics"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/openapi"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/ratelimit"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/request"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/server"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/session"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/snippet"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/state"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/urlbuilder"
)

// Playground is the main orchestrator.
type Playground struct {
	config     *Config
	logger     *logger.Logger
	metrics    *metrics.Collector
	source     registry.Source
	watcher    *registry.Watcher
	envs       *urlbuilder.Environments
	store      state.Store
	ownsStore  bool
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	exec       *executor.Executor
	state      *session.State

	closeOnce sync.Once
	closeErr  error
}

// New creates a playground with the given options.
func New(opts ...Option) (*Playground, error) {
	p := &Playground{
		config: DefaultConfig(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	// Validate config
	if err := p.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if p.logger == nil {
		cfg := logger.DefaultConfig()
		cfg.Level = p.config.logLevel()
		cfg.Pretty = p.config.Log.Pretty
		cfg.Component = "playground"
		p.logger = logger.New(cfg)
	}
	if p.metrics == nil {
		p.metrics = metrics.New()
	}

	if err := p.initialize(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// initialize sets up all components.
func (p *Playground) initialize() error {
	var err error

	p.envs, err = p.config.environments()
	if err != nil {
		return err
	}

	if p.source == nil {
		if p.source, err = p.loadRegistry(); err != nil {
			return err
		}
	}

	if p.store == nil {
		if p.store, err = openStore(p.config.StateFile); err != nil {
			return err
		}
		p.ownsStore = true
	}

	if p.httpClient == nil {
		p.httpClient = executor.NewHTTPClient(p.config.clientConfig())
	}
	p.limiter = p.config.limiter()
	p.exec = executor.New(
		executor.WithHTTPClient(p.httpClient),
		executor.WithLimiter(p.limiter),
		executor.WithMetrics(p.metrics),
		executor.WithLogger(p.logger),
		executor.WithUserAgent(p.config.UserAgent),
		executor.WithMaxBody(p.config.MaxBody),
	)

	p.state = session.New(p.store, p.envs, p.logger)

	p.logger.Event(logger.DebugLevel).
		Int("endpoints", p.Registry().Len()).
		Str("env", p.state.Environment()).
		Str("state_file", p.config.StateFile).
		Msg("playground initialized")
	return nil
}

func (p *Playground) loadRegistry() (registry.Source, error) {
	switch {
	case p.config.Registry == "":
		return registry.NewStatic(registry.Default()), nil
	case p.config.Watch:
		w, err := registry.NewWatcher(p.config.Registry, p.logger)
		if err != nil {
			return nil, err
		}
		w.OnReload(p.reselect)
		p.watcher = w
		return w, nil
	default:
		r, err := registry.LoadFile(p.config.Registry)
		if err != nil {
			return nil, err
		}
		return registry.NewStatic(r), nil
	}
}

// reselect moves the session off an endpoint that a reload removed,
// preferring the default endpoint, else the first one listed.
func (p *Playground) reselect(r *registry.Registry) {
	if p.state == nil {
		return
	}
	if _, err := r.Get(p.state.Endpoint()); err == nil {
		return
	}
	keys := r.Keys()
	if len(keys) == 0 {
		return
	}
	next := keys[0]
	if _, err := r.Get(session.DefaultEndpoint); err == nil {
		next = session.DefaultEndpoint
	}
	p.logger.WithEndpoint(next).Info("selected endpoint was removed, switching")
	p.state.SelectEndpoint(next)
}

// openStore opens a bbolt file, or a JSON file for a .json path. An empty
// path keeps state in memory.
func openStore(path string) (state.Store, error) {
	if path == "" {
		return state.NewMemoryStore(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return state.NewFileStore(path), nil
	}
	return state.NewBoltStore(path)
}

// Start begins watching the registry file when watching is enabled.
func (p *Playground) Start(ctx context.Context) error {
	if p.watcher == nil {
		return nil
	}
	return p.watcher.Start(ctx)
}

// Config returns a copy of the effective configuration.
func (p *Playground) Config() *Config {
	return p.config.Clone()
}

// Logger returns the logger.
func (p *Playground) Logger() *logger.Logger {
	return p.logger
}

// Metrics returns the metrics collector.
func (p *Playground) Metrics() *metrics.Collector {
	return p.metrics
}

// Registry returns the registry currently in effect.
func (p *Playground) Registry() *registry.Registry {
	return p.source.Current()
}

// Endpoints returns the endpoints in display order.
func (p *Playground) Endpoints() []*registry.Descriptor {
	return p.Registry().List()
}

// Endpoint looks up a descriptor by key.
func (p *Playground) Endpoint(key string) (*registry.Descriptor, error) {
	return p.Registry().Get(key)
}

// Environments returns the selectable environments.
func (p *Playground) Environments() *urlbuilder.Environments {
	return p.envs
}

// Session returns the shared session state.
func (p *Playground) Session() *session.State {
	return p.state
}

// SetEnvironment selects and persists the active environment.
func (p *Playground) SetEnvironment(name string) error {
	return p.state.SetEnvironment(name)
}

// baseURL resolves env, or the active environment when env is empty.
func (p *Playground) baseURL(env string) (string, error) {
	if env == "" {
		return p.state.BaseURL(), nil
	}
	return p.envs.BaseURL(env)
}

// Request builds the display request for an endpoint. Parameters without
// a value fall back to their examples.
func (p *Playground) Request(key, env string, values binder.ValueSource) (*request.Resolved, error) {
	d, err := p.Endpoint(key)
	if err != nil {
		return nil, err
	}
	base, err := p.baseURL(env)
	if err != nil {
		return nil, err
	}
	return request.Build(d, base, values), nil
}

// Snippet renders the request for key in lang.
func (p *Playground) Snippet(key, env string, lang snippet.Language, values binder.ValueSource) (string, error) {
	r, err := p.Request(key, env, values)
	if err != nil {
		return "", err
	}
	text, err := snippet.Generate(r, lang)
	if err != nil {
		return "", err
	}
	p.metrics.RecordSnippet(string(lang))
	return text, nil
}

// Call executes key against env. It returns an Unresolved error without
// sending anything when an auto-trigger endpoint lacks a path value.
func (p *Playground) Call(ctx context.Context, key, env string, values binder.ValueSource) (*executor.Outcome, error) {
	d, err := p.Endpoint(key)
	if err != nil {
		return nil, err
	}
	base, err := p.baseURL(env)
	if err != nil {
		return nil, err
	}
	r, err := request.BuildForExecution(d, base, values)
	if err != nil {
		p.metrics.RecordSuppressed()
		return nil, err
	}
	return p.exec.Execute(ctx, r), nil
}

// Scheduler returns a debounced trigger that targets the active
// environment and delivers outcomes to sink.
func (p *Playground) Scheduler(sink executor.Sink, opts ...executor.SchedulerOption) *executor.Scheduler {
	opts = append([]executor.SchedulerOption{executor.WithSchedulerLogger(p.logger)}, opts...)
	return executor.NewScheduler(p.exec, p.state.BaseURL, sink, opts...)
}

// OpenAPI describes the current registry as an OpenAPI document.
func (p *Playground) OpenAPI() *openapi3.T {
	return openapi.Build(p.Registry(), p.envs)
}

// NewServer creates the docs server sharing this playground's registry,
// state and executor.
func (p *Playground) NewServer() (*server.Server, error) {
	return server.New(p.config.Server,
		server.WithRegistry(p.source),
		server.WithEnvironments(p.envs),
		server.WithStore(p.store),
		server.WithExecutor(p.exec),
		server.WithLogger(p.logger),
	)
}

// Close releases the state store if the playground opened it.
func (p *Playground) Close() error {
	p.closeOnce.Do(func() {
		if p.ownsStore && p.store != nil {
			p.closeErr = p.store.Close()
		}
	})
	return p.closeErr
}
