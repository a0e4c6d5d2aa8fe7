package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	perrors "github.com/Maharshi-24/Documentation-PostalPincodes/internal/errors"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/urlbuilder"
)

//go:embed endpoints.yaml
var embeddedEndpoints []byte

// Registry is an ordered, read-only table of endpoint descriptors.
type Registry struct {
	order []string
	byKey map[string]*Descriptor
}

// Default returns the registry built into the binary.
func Default() *Registry {
	r, err := Load(embeddedEndpoints)
	if err != nil {
		panic(fmt.Sprintf("registry: embedded endpoints are invalid: %v", err))
	}
	return r
}

// Embedded returns the raw YAML the default registry is built from.
func Embedded() []byte {
	out := make([]byte, len(embeddedEndpoints))
	copy(out, embeddedEndpoints)
	return out
}

// LoadFile reads and validates a registry document from disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.New(perrors.Config, path, "read", "failed to read registry file", err)
	}
	r, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return r, nil
}

// document mirrors the YAML layout of endpoints.yaml.
type document struct {
	Endpoints []endpointDoc `yaml:"endpoints"`
}

type endpointDoc struct {
	Key         string          `yaml:"key"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Method      string          `yaml:"method"`
	Path        string          `yaml:"path"`
	Params      []paramDoc      `yaml:"params"`
	Response    []ResponseField `yaml:"response"`
	AutoTrigger *struct {
		Debounce string `yaml:"debounce"`
	} `yaml:"auto_trigger"`
}

type paramDoc struct {
	Name        string   `yaml:"name"`
	In          Location `yaml:"in"`
	Type        DataType `yaml:"type"`
	Description string   `yaml:"description"`
	Placeholder string   `yaml:"placeholder"`
	Example     string   `yaml:"example"`
	Required    bool     `yaml:"required"`
	Options     []string `yaml:"options"`
	Action      string   `yaml:"action"`
}

// Load parses and validates a registry document.
func Load(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, perrors.NewParseError("registry", "unmarshal", err)
	}
	if len(doc.Endpoints) == 0 {
		return nil, perrors.NewConfigError("registry", "no endpoints defined")
	}

	r := &Registry{byKey: make(map[string]*Descriptor, len(doc.Endpoints))}
	for i, ed := range doc.Endpoints {
		d, err := ed.descriptor()
		if err != nil {
			return nil, err
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byKey[d.Key]; dup {
			return nil, perrors.NewConfigError("registry", fmt.Sprintf("endpoint %d: duplicate key %q", i, d.Key))
		}
		r.order = append(r.order, d.Key)
		r.byKey[d.Key] = d
	}
	return r, nil
}

func (ed endpointDoc) descriptor() (*Descriptor, error) {
	d := &Descriptor{
		Key:         strings.TrimSpace(ed.Key),
		Title:       ed.Title,
		Description: ed.Description,
		Method:      strings.ToUpper(strings.TrimSpace(ed.Method)),
		Path:        ed.Path,
		Response:    ed.Response,
	}

	if ed.AutoTrigger != nil {
		at := &AutoTrigger{Debounce: DefaultDebounce}
		if ed.AutoTrigger.Debounce != "" {
			dur, err := time.ParseDuration(ed.AutoTrigger.Debounce)
			if err != nil {
				return nil, perrors.NewParseError("registry", "debounce", err).WithEndpoint(d.Key)
			}
			at.Debounce = dur
		}
		d.AutoTrigger = at
	}

	for _, pd := range ed.Params {
		dt := pd.Type
		if dt == "" {
			dt = TypeString
		}
		c := Common{
			Name:        strings.TrimSpace(pd.Name),
			Description: pd.Description,
			DataType:    dt,
			Required:    pd.Required,
			Placeholder: pd.Placeholder,
			Example:     pd.Example,
		}
		switch pd.In {
		case InPath:
			d.Params = append(d.Params, PathParam{Common: c})
		case InQuery, "":
			d.Params = append(d.Params, QueryParam{Common: c, Options: pd.Options, Action: pd.Action})
		case InBody:
			d.Params = append(d.Params, BodyParam{Common: c})
		default:
			return nil, perrors.NewConfigError("registry",
				fmt.Sprintf("param %q: unknown location %q", c.Name, pd.In)).WithEndpoint(d.Key)
		}
	}
	return d, nil
}

// Validate checks the structural rules of a descriptor.
func (d *Descriptor) Validate() error {
	fail := func(format string, args ...any) error {
		return perrors.NewConfigError("registry", fmt.Sprintf(format, args...)).WithEndpoint(d.Key)
	}

	if d.Key == "" {
		return fail("endpoint key is required")
	}
	if !isToken(d.Method) {
		return fail("invalid method %q", d.Method)
	}
	if !strings.HasPrefix(d.Path, "/") {
		return fail("path %q must start with /", d.Path)
	}
	if d.AutoTrigger != nil && d.AutoTrigger.Debounce < 0 {
		return fail("negative debounce %s", d.AutoTrigger.Debounce)
	}

	names := make(map[string]bool, len(d.Params))
	bodies := 0
	for _, p := range d.Params {
		c := p.Spec()
		if c.Name == "" {
			return fail("parameter name is required")
		}
		if names[c.Name] {
			return fail("duplicate parameter %q", c.Name)
		}
		names[c.Name] = true

		switch v := p.(type) {
		case BodyParam:
			bodies++
		case QueryParam:
			if v.Options != nil && len(v.Options) == 0 {
				return fail("select parameter %q has no options", c.Name)
			}
		}
	}
	if bodies > 1 {
		return fail("at most one body parameter is allowed, got %d", bodies)
	}

	placeholders := make(map[string]bool)
	for _, name := range urlbuilder.Placeholders(d.Path) {
		placeholders[name] = true
	}
	for name := range placeholders {
		p, ok := d.Param(name)
		if !ok || p.In() != InPath {
			return fail("placeholder {%s} has no path parameter", name)
		}
	}
	for _, pp := range d.PathParams() {
		if !placeholders[pp.Name] {
			return fail("path parameter %q does not appear in %s", pp.Name, d.Path)
		}
	}
	return nil
}

// isToken reports whether s is a valid HTTP method token.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '!' || r > '~' || strings.ContainsRune(`()<>@,;:\"/[]?={}`, r) {
			return false
		}
	}
	return true
}

// Get returns the descriptor for key.
func (r *Registry) Get(key string) (*Descriptor, error) {
	if d, ok := r.byKey[key]; ok {
		return d, nil
	}
	err := perrors.NewNotFoundError("endpoint", key)
	err.Cause = perrors.ErrUnknownEndpoint
	return nil, err
}

// Lookup returns the descriptor for key and whether it exists.
func (r *Registry) Lookup(key string) (*Descriptor, bool) {
	d, ok := r.byKey[key]
	return d, ok
}

// List returns descriptors in display order.
func (r *Registry) List() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.byKey[k])
	}
	return out
}

// Keys returns endpoint keys in display order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of endpoints.
func (r *Registry) Len() int {
	return len(r.order)
}

// First returns the first endpoint in display order.
func (r *Registry) First() *Descriptor {
	return r.byKey[r.order[0]]
}

type autoTriggerView struct {
	DebounceMS int64 `json:"debounce_ms"`
}

// MarshalJSON includes the flattened parameters.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	type plain Descriptor
	var at *autoTriggerView
	if d.AutoTrigger != nil {
		at = &autoTriggerView{DebounceMS: d.Debounce().Milliseconds()}
	}
	return json.Marshal(struct {
		*plain
		Params      []ParamView      `json:"params"`
		AutoTrigger *autoTriggerView `json:"auto_trigger,omitempty"`
	}{
		plain:       (*plain)(d),
		Params:      d.ParamViews(),
		AutoTrigger: at,
	})
}
