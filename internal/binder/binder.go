// Package binder resolves a descriptor's parameters against a value source.
package binder

import (
	"encoding/json"
	"strings"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/urlbuilder"
)

// ValueSource supplies the live value a user entered for a parameter.
// ok is false when the parameter has no input at all.
type ValueSource interface {
	Value(name string) (value string, ok bool)
}

// Values is a map-backed ValueSource.
type Values map[string]string

// Value implements ValueSource.
func (v Values) Value(name string) (string, bool) {
	s, ok := v[name]
	return s, ok
}

// None is a ValueSource with no live values, so every parameter falls
// back to its example or placeholder.
var None ValueSource = Values(nil)

// Binding is the resolved value of every parameter of a descriptor.
type Binding struct {
	PathValues map[string]string
	Query      []urlbuilder.QueryValue
	// Body is nil when the descriptor has no body parameter.
	Body map[string]any
	// Unfilled lists path parameters without a live value. Only BindLive
	// populates it.
	Unfilled []string
}

// Bind resolves every parameter with the fallback chain live value,
// example, placeholder. It never fails.
func Bind(d *registry.Descriptor, src ValueSource) Binding {
	return bind(d, src, false)
}

// BindLive is Bind, except path parameters only take live values. Path
// parameters without one are left unsubstituted and listed in Unfilled.
func BindLive(d *registry.Descriptor, src ValueSource) Binding {
	return bind(d, src, true)
}

func bind(d *registry.Descriptor, src ValueSource, livePath bool) Binding {
	if src == nil {
		src = None
	}
	b := Binding{PathValues: make(map[string]string)}

	for _, p := range d.Params {
		c := p.Spec()
		switch p.(type) {
		case registry.PathParam:
			if livePath {
				if v, ok := src.Value(c.Name); ok && v != "" {
					b.PathValues[c.Name] = v
				} else {
					b.Unfilled = append(b.Unfilled, c.Name)
				}
				continue
			}
			b.PathValues[c.Name] = Resolve(c, src)
		case registry.QueryParam:
			b.Query = append(b.Query, urlbuilder.QueryValue{Name: c.Name, Value: Resolve(c, src)})
		case registry.BodyParam:
			b.Body = map[string]any{c.Name: BodyValue(c.DataType, Resolve(c, src))}
		}
	}
	return b
}

// Resolve returns the live value when non-empty, else the example, else
// the placeholder.
func Resolve(c registry.Common, src ValueSource) string {
	if src != nil {
		if v, ok := src.Value(c.Name); ok && v != "" {
			return v
		}
	}
	if c.Example != "" {
		return c.Example
	}
	return c.Placeholder
}

// BodyValue converts a raw body value. Array values are read as a JSON
// array of strings when they start with "[", otherwise split on commas.
// Tokens are trimmed and empty tokens dropped. When parsing fails or no
// tokens remain the raw string is used.
func BodyValue(dt registry.DataType, raw string) any {
	if dt != registry.TypeArray {
		return raw
	}

	trimmed := strings.TrimSpace(raw)
	var tokens []string
	if strings.HasPrefix(trimmed, "[") {
		var parsed []string
		if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
			return raw
		}
		tokens = parsed
	} else {
		tokens = strings.Split(trimmed, ",")
	}

	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	if len(out) == 0 {
		return raw
	}
	return out
}
