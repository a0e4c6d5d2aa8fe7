// Package shutdown stops the docs server and its background workers in
// order when the process is asked to exit.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/logger"
)

// Step is one cleanup action run during shutdown.
type Step func(ctx context.Context) error

// Stopper is anything with an http.Server style Shutdown method.
type Stopper interface {
	Shutdown(ctx context.Context) error
}

// Config holds shutdown configuration.
type Config struct {
	Timeout time.Duration
	Signals []os.Signal
	Logger  *logger.Logger
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

type namedStep struct {
	name string
	fn   Step
}

// Handler runs registered steps in reverse registration order once a
// signal arrives or Shutdown is called.
type Handler struct {
	mu    sync.Mutex
	steps []namedStep

	started atomic.Bool
	done    chan struct{}
	result  Result
	timeout time.Duration
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sigChan chan os.Signal
}

// Result describes a finished shutdown.
type Result struct {
	Elapsed time.Duration
	Err     error
}

// New creates a handler and starts listening for cfg.Signals.
func New(cfg Config) *Handler {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = def.Signals
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		done:    make(chan struct{}),
		timeout: cfg.Timeout,
		log:     cfg.Logger.WithComponent("shutdown"),
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
	}
	signal.Notify(h.sigChan, cfg.Signals...)
	return h
}

// Register adds a named step.
func (h *Handler) Register(name string, fn Step) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.steps = append(h.steps, namedStep{name: name, fn: fn})
}

// RegisterFunc adds a step that cannot fail.
func (h *Handler) RegisterFunc(name string, fn func()) {
	h.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// RegisterServer adds s.Shutdown as a step.
func (h *Handler) RegisterServer(name string, s Stopper) {
	h.Register(name, s.Shutdown)
}

// Context is cancelled as soon as shutdown begins.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// IsShuttingDown reports whether shutdown has begun.
func (h *Handler) IsShuttingDown() bool {
	return h.started.Load()
}

// Done is closed after every step has finished or timed out.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until a signal arrives, ctx is cancelled or another caller
// starts shutdown, then returns the shutdown result.
func (h *Handler) Wait(ctx context.Context) Result {
	select {
	case sig := <-h.sigChan:
		h.log.WithField("signal", sig.String()).Info("signal received")
		return h.Shutdown()
	case <-ctx.Done():
		return h.Shutdown()
	case <-h.ctx.Done():
		<-h.done
		return h.result
	}
}

// Trigger simulates a termination signal.
func (h *Handler) Trigger() {
	select {
	case h.sigChan <- syscall.SIGTERM:
	default:
	}
}

// Shutdown runs the registered steps once. Later calls wait for the first
// to finish and return its result.
func (h *Handler) Shutdown() Result {
	if !h.started.CompareAndSwap(false, true) {
		<-h.done
		return h.result
	}
	defer signal.Stop(h.sigChan)

	start := time.Now()
	h.log.Info("shutting down")
	h.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	steps := make([]namedStep, len(h.steps))
	copy(steps, h.steps)
	h.mu.Unlock()

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		if err := run(ctx, steps[i]); err != nil {
			h.log.WithField("step", steps[i].name).WithError(err).Warn("shutdown step failed")
			errs = append(errs, err)
		}
	}

	h.result = Result{Elapsed: time.Since(start), Err: errors.Join(errs...)}
	h.log.WithField("elapsed", h.result.Elapsed.String()).Info("shutdown complete")
	close(h.done)
	return h.result
}

func run(ctx context.Context, s namedStep) error {
	done := make(chan error, 1)
	go func() {
		done <- s.fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &TimeoutError{Step: s.name}
	}
}

// TimeoutError is returned when a step outlives the shutdown timeout.
type TimeoutError struct {
	Step string
}

func (e *TimeoutError) Error() string {
	return "shutdown step timed out: " + e.Step
}
