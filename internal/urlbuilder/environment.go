package urlbuilder

import (
	"fmt"
	"strings"

	perrors "github.com/Maharshi-24/Documentation-PostalPincodes/internal/errors"
)

// Environment is a named base URL the playground can target.
type Environment struct {
	Name    string `json:"name" yaml:"name" validate:"required"`
	BaseURL string `json:"base_url" yaml:"base_url" validate:"required,url"`
}

// Environments is an ordered set of environments with a default entry.
type Environments struct {
	list        []Environment
	defaultName string
}

// DefaultEnvironments returns the local development server and the
// hosted deployment, defaulting to local.
func DefaultEnvironments() *Environments {
	envs, _ := NewEnvironments([]Environment{
		{Name: "local", BaseURL: "http://localhost:3000/api/v1"},
		{Name: "vercel", BaseURL: "https://postal-pincode-api.vercel.app/api/v1"},
	}, "local")
	return envs
}

// NewEnvironments validates the list and the default name. An empty
// default selects the first entry.
func NewEnvironments(list []Environment, defaultName string) (*Environments, error) {
	if len(list) == 0 {
		return nil, perrors.NewConfigError("environments", "at least one environment is required")
	}

	seen := make(map[string]bool, len(list))
	out := make([]Environment, 0, len(list))
	for _, e := range list {
		name := strings.ToLower(strings.TrimSpace(e.Name))
		if name == "" {
			return nil, perrors.NewConfigError("environments", "environment name is required")
		}
		if seen[name] {
			return nil, perrors.NewConfigError("environments", fmt.Sprintf("duplicate environment %q", name))
		}
		if strings.TrimSpace(e.BaseURL) == "" {
			return nil, perrors.NewConfigError("environments", fmt.Sprintf("environment %q has no base URL", name))
		}
		seen[name] = true
		out = append(out, Environment{Name: name, BaseURL: strings.TrimSpace(e.BaseURL)})
	}

	defaultName = strings.ToLower(strings.TrimSpace(defaultName))
	if defaultName == "" {
		defaultName = out[0].Name
	}
	if !seen[defaultName] {
		return nil, perrors.NewConfigError("environments", fmt.Sprintf("default environment %q is not defined", defaultName))
	}

	return &Environments{list: out, defaultName: defaultName}, nil
}

// Default returns the name of the default environment.
func (e *Environments) Default() string {
	return e.defaultName
}

// List returns the environments in declaration order.
func (e *Environments) List() []Environment {
	out := make([]Environment, len(e.list))
	copy(out, e.list)
	return out
}

// Has reports whether name is a known environment.
func (e *Environments) Has(name string) bool {
	_, ok := e.lookup(name)
	return ok
}

// BaseURL returns the base URL of the named environment.
func (e *Environments) BaseURL(name string) (string, error) {
	env, ok := e.lookup(name)
	if !ok {
		return "", perrors.NewNotFoundError("environment", name)
	}
	return env.BaseURL, nil
}

func (e *Environments) lookup(name string) (Environment, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, env := range e.list {
		if env.Name == name {
			return env, true
		}
	}
	return Environment{}, false
}
