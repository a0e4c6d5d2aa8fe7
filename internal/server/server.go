// Package server serves the API documentation pages, the playground and a
// small JSON API over the endpoint registry.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/executor"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/logger"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/session"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/state"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/urlbuilder"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed assets
var assetFS embed.FS

// Config holds HTTP server settings.
type Config struct {
	Addr         string        `yaml:"addr" json:"addr" validate:"required"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout" validate:"gte=0"`
	Compress     bool          `yaml:"compress" json:"compress"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		Compress:     true,
	}
}

// Option configures a Server.
type Option func(*Server)

// WithRegistry sets the endpoint source. Defaults to the embedded registry.
func WithRegistry(src registry.Source) Option {
	return func(s *Server) {
		if src != nil {
			s.reg = src
		}
	}
}

// WithEnvironments sets the selectable environments.
func WithEnvironments(envs *urlbuilder.Environments) Option {
	return func(s *Server) {
		if envs != nil {
			s.envs = envs
		}
	}
}

// WithStore sets where the environment choice is persisted.
func WithStore(st state.Store) Option {
	return func(s *Server) {
		if st != nil {
			s.store = st
		}
	}
}

// WithExecutor sets the executor used for playground calls.
func WithExecutor(e *executor.Executor) Option {
	return func(s *Server) {
		if e != nil {
			s.exec = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// Server is the docs and playground HTTP server.
type Server struct {
	cfg   Config
	reg   registry.Source
	envs  *urlbuilder.Environments
	store state.Store
	exec  *executor.Executor
	log   *logger.Logger

	pages    map[string]*template.Template
	router   chi.Router
	upgrader websocket.Upgrader
	decoder  *schema.Decoder
	validate *validator.Validate

	http     *http.Server
	ctx      context.Context
	cancel   context.CancelFunc
	sessions sync.WaitGroup

	mu      sync.Mutex
	closing bool
}

// New creates a server. Templates are parsed eagerly so a broken page
// fails at startup.
func New(cfg Config, opts ...Option) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	s := &Server{
		cfg:      cfg,
		reg:      registry.NewStatic(registry.Default()),
		envs:     urlbuilder.DefaultEnvironments(),
		store:    state.NewMemoryStore(),
		log:      logger.Nop(),
		decoder:  schema.NewDecoder(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.exec == nil {
		s.exec = executor.New(executor.WithLogger(s.log))
	}
	s.log = s.log.WithComponent("server")
	s.decoder.IgnoreUnknownKeys(true)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	s.pages = pages
	s.router = s.routes()
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

func parsePages() (map[string]*template.Template, error) {
	base, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template)
	for _, name := range []string{"docs", "playground"} {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, err
		}
		pages[name] = t
	}
	return pages, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	if s.cfg.Compress {
		r.Use(compressMiddleware)
	}

	r.Get("/", s.handleDocs)
	r.Get("/playground", s.handlePlayground)

	assets, _ := fs.Sub(assetFS, "assets")
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(assets))))

	r.Route("/api", func(r chi.Router) {
		r.Get("/environments", s.handleEnvironments)
		r.Put("/environments/active", s.handleSetEnvironment)
		r.Get("/endpoints", s.handleEndpoints)
		r.Get("/endpoints/{key}", s.handleEndpoint)
		r.Get("/endpoints/{key}/snippet", s.handleSnippet)
		r.Post("/endpoints/{key}/execute", s.handleExecute)
		r.Get("/stats", s.handleStats)
	})

	r.Get("/openapi.json", s.handleOpenAPIJSON)
	r.Get("/openapi.yaml", s.handleOpenAPIYAML)
	r.Get("/ws/playground", s.handleWebSocket)
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.log.WithField("addr", ln.Addr().String()).Info("documentation server listening")
	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown closes live playground sessions and stops accepting requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	s.cancel()
	err := s.http.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// beginSession registers a live session unless shutdown has started.
func (s *Server) beginSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions.Add(1)
	return true
}

// sessionState restores the shared preferences for one request or
// connection.
func (s *Server) sessionState() *session.State {
	return session.New(s.store, s.envs, s.log)
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			status := ww.Status()
			switch {
			case status == 0 && r.Header.Get("Upgrade") != "":
				status = http.StatusSwitchingProtocols
			case status == 0:
				status = http.StatusOK
			}
			log.Event(logger.InfoLevel).
				Str("method", r.Method).
				Str("path", r.URL.RequestURI()).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
