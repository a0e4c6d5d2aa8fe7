// Package registry holds the static table of documented API endpoints.
package registry

import "time"

// Location is where a parameter is carried in a request.
type Location string

// Parameter locations.
const (
	InPath  Location = "path"
	InQuery Location = "query"
	InBody  Location = "body"
)

// DataType is a display-only hint; binding never coerces on it.
type DataType string

// Data types shown in the docs.
const (
	TypeString  DataType = "string"
	TypeInteger DataType = "integer"
	TypeFloat   DataType = "float"
	TypeBoolean DataType = "boolean"
	TypeArray   DataType = "array"
)

// DefaultDebounce is the quiet period before an auto-triggered request fires.
const DefaultDebounce = 300 * time.Millisecond

// Common holds the fields every parameter variant carries.
type Common struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	DataType    DataType `json:"data_type"`
	Required    bool     `json:"required"`
	Placeholder string   `json:"placeholder"`
	Example     string   `json:"example"`
}

// Param is one of PathParam, QueryParam or BodyParam.
type Param interface {
	Spec() Common
	In() Location
}

// PathParam is substituted into a {name} placeholder of the path template.
type PathParam struct {
	Common
}

// Spec implements Param.
func (p PathParam) Spec() Common { return p.Common }

// In implements Param.
func (p PathParam) In() Location { return InPath }

// QueryParam is appended to the query string when it resolves non-empty.
type QueryParam struct {
	Common
	// Options restricts input to an enumerated set when non-empty.
	Options []string `json:"options,omitempty"`
	// Action names a UI helper attached to the input, e.g. "geolocate".
	Action string `json:"action,omitempty"`
}

// Spec implements Param.
func (p QueryParam) Spec() Common { return p.Common }

// In implements Param.
func (p QueryParam) In() Location { return InQuery }

// IsSelect reports whether the input is constrained to Options.
func (p QueryParam) IsSelect() bool { return len(p.Options) > 0 }

// BodyParam becomes the single key of the JSON request body.
type BodyParam struct {
	Common
}

// Spec implements Param.
func (p BodyParam) Spec() Common { return p.Common }

// In implements Param.
func (p BodyParam) In() Location { return InBody }

// AutoTrigger makes the playground fire the request on its own once every
// path placeholder has a live value, after a quiet period.
type AutoTrigger struct {
	Debounce time.Duration `json:"debounce"`
}

// ResponseField documents one field of an endpoint's JSON response.
type ResponseField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Descriptor is the static metadata of one API operation. Descriptors are
// built once at load time and must be treated as read-only.
type Descriptor struct {
	Key         string          `json:"key"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Method      string          `json:"method"`
	Path        string          `json:"path"`
	Params      []Param         `json:"-"`
	Response    []ResponseField `json:"response,omitempty"`
	AutoTrigger *AutoTrigger    `json:"auto_trigger,omitempty"`
}

// IsAutoTrigger reports whether the descriptor has an auto-trigger policy.
func (d *Descriptor) IsAutoTrigger() bool {
	return d.AutoTrigger != nil
}

// Debounce returns the quiet period for auto-triggered execution.
func (d *Descriptor) Debounce() time.Duration {
	if d.AutoTrigger == nil || d.AutoTrigger.Debounce <= 0 {
		return DefaultDebounce
	}
	return d.AutoTrigger.Debounce
}

// PathParams returns the path parameters in declaration order.
func (d *Descriptor) PathParams() []PathParam {
	var out []PathParam
	for _, p := range d.Params {
		if pp, ok := p.(PathParam); ok {
			out = append(out, pp)
		}
	}
	return out
}

// QueryParams returns the query parameters in declaration order.
func (d *Descriptor) QueryParams() []QueryParam {
	var out []QueryParam
	for _, p := range d.Params {
		if qp, ok := p.(QueryParam); ok {
			out = append(out, qp)
		}
	}
	return out
}

// BodyParam returns the body parameter, if the descriptor declares one.
func (d *Descriptor) BodyParam() (BodyParam, bool) {
	for _, p := range d.Params {
		if bp, ok := p.(BodyParam); ok {
			return bp, true
		}
	}
	return BodyParam{}, false
}

// Param looks up a parameter by name.
func (d *Descriptor) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Spec().Name == name {
			return p, true
		}
	}
	return nil, false
}

// ParamView is a flattened, serializable view of a parameter.
type ParamView struct {
	Common
	In      Location `json:"in"`
	Options []string `json:"options,omitempty"`
	Action  string   `json:"action,omitempty"`
}

// View flattens a parameter for templates and JSON output.
func View(p Param) ParamView {
	v := ParamView{Common: p.Spec(), In: p.In()}
	if qp, ok := p.(QueryParam); ok {
		v.Options = qp.Options
		v.Action = qp.Action
	}
	return v
}

// ParamViews flattens all parameters of the descriptor.
func (d *Descriptor) ParamViews() []ParamView {
	out := make([]ParamView, 0, len(d.Params))
	for _, p := range d.Params {
		out = append(out, View(p))
	}
	return out
}
