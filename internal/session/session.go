// Package session holds the per-user playground state: active
// environment, snippet language, selected endpoint and live input values.
package session

import (
	"strings"
	"sync"

	perrors "github.com/Maharshi-24/Documentation-PostalPincodes/internal/errors"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/logger"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/snippet"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/state"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/urlbuilder"
)

// EnvKey is the store key the environment choice persists under.
const EnvKey = "api_env"

// DefaultEndpoint is the endpoint shown first.
const DefaultEndpoint = "pincode"

// State is safe for concurrent use. Only the environment is durable;
// language, endpoint and values last for the session.
type State struct {
	mu       sync.RWMutex
	store    state.Store
	envs     *urlbuilder.Environments
	log      *logger.Logger
	env      string
	lang     snippet.Language
	endpoint string
	values   map[string]string
}

// New restores the environment from store. An absent, unknown or
// unreadable value selects the default environment. A nil store keeps
// the choice in memory.
func New(store state.Store, envs *urlbuilder.Environments, log *logger.Logger) *State {
	if store == nil {
		store = state.NewMemoryStore()
	}
	if envs == nil {
		envs = urlbuilder.DefaultEnvironments()
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &State{
		store:    store,
		envs:     envs,
		log:      log.WithComponent("session"),
		env:      envs.Default(),
		lang:     snippet.DefaultLanguage,
		endpoint: DefaultEndpoint,
		values:   make(map[string]string),
	}

	saved, ok, err := store.Get(EnvKey)
	switch {
	case err != nil:
		s.log.WithError(err).Warn("could not read saved environment, using default")
	case ok && envs.Has(saved):
		s.env = saved
	case ok:
		s.log.WithField("saved", saved).Debug("ignoring unknown saved environment")
	}
	return s
}

// Environments returns the configured environments.
func (s *State) Environments() *urlbuilder.Environments {
	return s.envs
}

// Environment returns the active environment name.
func (s *State) Environment() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env
}

// BaseURL returns the base URL of the active environment.
func (s *State) BaseURL() string {
	base, err := s.envs.BaseURL(s.Environment())
	if err != nil {
		// The active name is always validated, so this only happens if
		// the environment set changed underneath.
		base, _ = s.envs.BaseURL(s.envs.Default())
	}
	return base
}

// SetEnvironment switches and persists the environment. Unknown names
// are rejected and leave the state unchanged.
func (s *State) SetEnvironment(name string) error {
	if !s.envs.Has(name) {
		return perrors.NewNotFoundError("environment", name)
	}
	name = strings.ToLower(name)

	s.mu.Lock()
	s.env = name
	s.mu.Unlock()

	if err := s.store.Put(EnvKey, name); err != nil {
		return perrors.New(perrors.Config, "", "persist", "environment selected but not saved", err)
	}
	return nil
}

// Language returns the snippet language.
func (s *State) Language() snippet.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lang
}

// SetLanguage changes the snippet language for this session.
func (s *State) SetLanguage(lang snippet.Language) {
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
}

// Endpoint returns the selected endpoint key.
func (s *State) Endpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoint
}

// SelectEndpoint changes the selected endpoint and clears live values,
// since the input form is rebuilt for the new endpoint.
func (s *State) SelectEndpoint(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endpoint != key {
		s.values = make(map[string]string)
	}
	s.endpoint = key
}

// SetValue records the live value of one input.
func (s *State) SetValue(name, value string) {
	s.mu.Lock()
	s.values[name] = value
	s.mu.Unlock()
}

// SetValues merges several live values.
func (s *State) SetValues(values map[string]string) {
	s.mu.Lock()
	for k, v := range values {
		s.values[k] = v
	}
	s.mu.Unlock()
}

// Value implements binder.ValueSource over the live values, so readers
// always see the latest input.
func (s *State) Value(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Values returns a copy of the live values.
func (s *State) Values() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
