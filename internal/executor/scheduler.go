package executor

import (
	"context"
	"sync"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/binder"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/logger"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/request"
)

// Sink receives outcomes in the order their responses arrive.
type Sink func(*Outcome)

// BaseURLFunc returns the base URL of the active environment. It is read
// when a request fires, not when it is scheduled.
type BaseURLFunc func() string

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// OnSuppressed registers a callback for triggers dropped because a path
// placeholder had no live value.
func OnSuppressed(fn func(d *registry.Descriptor, err error)) SchedulerOption {
	return func(s *Scheduler) {
		s.onSuppressed = fn
	}
}

// WithSchedulerLogger sets the scheduler's logger.
func WithSchedulerLogger(l *logger.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// Scheduler drives execution for one playground session: explicit runs
// and debounced auto-triggers. In-flight requests are never cancelled, so
// overlapping responses reach the sink in arrival order.
type Scheduler struct {
	exec         *Executor
	baseURL      BaseURLFunc
	sink         Sink
	onSuppressed func(*registry.Descriptor, error)
	log          *logger.Logger
	debouncer    Debouncer

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewScheduler creates a scheduler delivering to sink.
func NewScheduler(exec *Executor, baseURL BaseURLFunc, sink Sink, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		exec:    exec,
		baseURL: baseURL,
		sink:    sink,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("scheduler")
	return s
}

// Trigger schedules an auto-triggered call of d after its debounce
// period, replacing any call still pending. Descriptors without an
// auto-trigger policy are ignored and Trigger returns false.
func (s *Scheduler) Trigger(d *registry.Descriptor, src binder.ValueSource) bool {
	if !d.IsAutoTrigger() {
		return false
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}

	if s.debouncer.Schedule(d.Debounce(), func() { s.fire(d, src) }) {
		s.exec.metrics.RecordCoalesced()
	}
	return true
}

// Pending reports whether an auto-trigger is waiting for its quiet period.
func (s *Scheduler) Pending() bool {
	return s.debouncer.Pending()
}

// Run executes d immediately and also delivers the outcome to the sink.
// It returns an Unresolved error, and sends nothing, when an auto-trigger
// descriptor still lacks a live path value.
func (s *Scheduler) Run(ctx context.Context, d *registry.Descriptor, src binder.ValueSource) (*Outcome, error) {
	r, err := request.BuildForExecution(d, s.baseURL(), src)
	if err != nil {
		s.suppress(d, err)
		return nil, err
	}
	out := s.exec.Execute(ctx, r)
	if s.sink != nil {
		s.sink(out)
	}
	return out, nil
}

func (s *Scheduler) fire(d *registry.Descriptor, src binder.ValueSource) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	r, err := request.BuildForExecution(d, s.baseURL(), src)
	if err != nil {
		s.suppress(d, err)
		return
	}
	out := s.exec.Execute(context.Background(), r)
	if s.sink != nil {
		s.sink(out)
	}
}

func (s *Scheduler) suppress(d *registry.Descriptor, err error) {
	s.log.WithEndpoint(d.Key).WithError(err).Debug("request suppressed")
	s.exec.metrics.RecordSuppressed()
	if s.onSuppressed != nil {
		s.onSuppressed(d, err)
	}
}

// Close drops any pending trigger and waits for fired requests to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.debouncer.Cancel()
	s.inflight.Wait()
}
