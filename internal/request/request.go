// Package request assembles a concrete HTTP call from a descriptor,
// a base URL and bound parameter values.
package request

import (
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/binder"
	perrors "github.com/Maharshi-24/Documentation-PostalPincodes/internal/errors"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/urlbuilder"
)

// Resolved is a fully built request. It is rebuilt on every interaction
// and never stored.
type Resolved struct {
	Endpoint string         `json:"endpoint"`
	Method   string         `json:"method"`
	URL      string         `json:"url"`
	Body     map[string]any `json:"body,omitempty"`
}

// HasBody reports whether a JSON body is attached.
func (r *Resolved) HasBody() bool {
	return r.Body != nil
}

// Build resolves the request for display. Every parameter falls back to
// its example or placeholder, so the result is always complete.
func Build(d *registry.Descriptor, baseURL string, src binder.ValueSource) *Resolved {
	return assemble(d, baseURL, binder.Bind(d, src))
}

// BuildForExecution resolves the request that will actually be sent.
// Auto-triggered descriptors only accept live path values; if a
// placeholder would remain in the URL an Unresolved error is returned
// and nothing must be sent.
func BuildForExecution(d *registry.Descriptor, baseURL string, src binder.ValueSource) (*Resolved, error) {
	var b binder.Binding
	if d.IsAutoTrigger() {
		b = binder.BindLive(d, src)
	} else {
		b = binder.Bind(d, src)
	}

	r := assemble(d, baseURL, b)
	if missing := urlbuilder.Unresolved(r.URL); len(missing) > 0 {
		return nil, perrors.NewUnresolvedError(d.Key, r.URL, missing)
	}
	return r, nil
}

func assemble(d *registry.Descriptor, baseURL string, b binder.Binding) *Resolved {
	return &Resolved{
		Endpoint: d.Key,
		Method:   d.Method,
		URL:      urlbuilder.Build(baseURL, d.Path, b.PathValues, b.Query),
		Body:     b.Body,
	}
}
