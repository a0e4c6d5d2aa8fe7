// Package openapi exports the endpoint registry as an OpenAPI 3 document.
package openapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/binder"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/urlbuilder"
)

// Document metadata.
const (
	Title   = "Indian Postal Pincode API"
	Version = "1.0.0"
)

// Build converts the registry into an OpenAPI document with one server
// per environment, default environment first.
func Build(reg *registry.Registry, envs *urlbuilder.Environments) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       Title,
			Version:     Version,
			Description: "Lookup, search and geolocation of Indian post offices by pincode.",
		},
		Paths: openapi3.NewPaths(),
	}

	if envs != nil {
		def := envs.Default()
		for _, e := range envs.List() {
			srv := &openapi3.Server{URL: e.BaseURL, Description: e.Name}
			if e.Name == def {
				doc.Servers = append(openapi3.Servers{srv}, doc.Servers...)
			} else {
				doc.Servers = append(doc.Servers, srv)
			}
		}
	}

	for _, d := range reg.List() {
		item := doc.Paths.Value(d.Path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(d.Path, item)
		}
		item.SetOperation(d.Method, operation(d))
	}
	return doc
}

func operation(d *registry.Descriptor) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = d.Key
	op.Summary = d.Title
	op.Description = d.Description

	for _, p := range d.PathParams() {
		param := openapi3.NewPathParameter(p.Name).WithSchema(schemaFor(string(p.DataType)))
		describe(param, p.Common)
		op.AddParameter(param)
	}

	for _, q := range d.QueryParams() {
		s := schemaFor(string(q.DataType))
		if q.IsSelect() {
			for _, opt := range q.Options {
				s.Enum = append(s.Enum, typed(q.DataType, opt))
			}
		}
		param := openapi3.NewQueryParameter(q.Name).WithSchema(s)
		param.Required = q.Required
		describe(param, q.Common)
		if q.Action != "" {
			param.Extensions = map[string]any{"x-action": q.Action}
		}
		op.AddParameter(param)
	}

	if bp, ok := d.BodyParam(); ok {
		prop := schemaFor(string(bp.DataType))
		prop.Description = bp.Description
		if bp.Example != "" {
			prop.Example = binder.BodyValue(bp.DataType, bp.Example)
		}
		body := openapi3.NewObjectSchema().WithProperty(bp.Name, prop)
		if bp.Required {
			body.Required = []string{bp.Name}
		}
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().WithRequired(bp.Required).WithJSONSchema(body),
		}
	}

	resp := openapi3.NewObjectSchema()
	for _, f := range d.Response {
		s := schemaFor(f.Type)
		s.Description = f.Description
		resp.WithProperty(f.Name, s)
	}
	ok := http.StatusText(http.StatusOK)
	op.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
			Value: openapi3.NewResponse().WithDescription(ok).WithJSONSchema(resp),
		}),
	)

	if d.IsAutoTrigger() {
		op.Extensions = map[string]any{
			"x-auto-trigger": map[string]any{"debounce_ms": d.Debounce().Milliseconds()},
		}
	}
	return op
}

func describe(param *openapi3.Parameter, c registry.Common) {
	param.Description = c.Description
	if c.Example != "" {
		param.Example = typed(c.DataType, c.Example)
	}
}

func schemaFor(typ string) *openapi3.Schema {
	switch registry.DataType(strings.ToLower(typ)) {
	case registry.TypeInteger:
		return openapi3.NewIntegerSchema()
	case registry.TypeFloat, "number":
		return openapi3.NewFloat64Schema()
	case registry.TypeBoolean:
		return openapi3.NewBoolSchema()
	case registry.TypeArray:
		return openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
	case "object":
		return openapi3.NewObjectSchema()
	default:
		return openapi3.NewStringSchema()
	}
}

// typed converts a documented string value to the JSON type its schema
// declares, keeping the string when it does not parse.
func typed(dt registry.DataType, s string) any {
	switch dt {
	case registry.TypeInteger:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case registry.TypeFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case registry.TypeBoolean:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return s
}

// JSON renders the document as indented JSON.
func JSON(doc *openapi3.T) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// YAML renders the document as block-style YAML, keeping the key order of
// the JSON form.
func YAML(doc *openapi3.T) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	blockStyle(&node)
	return yaml.Marshal(&node)
}

func blockStyle(n *yaml.Node) {
	switch n.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		n.Style = 0
	case yaml.ScalarNode:
		if n.Style == yaml.DoubleQuotedStyle {
			n.Style = 0
		}
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}
