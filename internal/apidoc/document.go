package apidoc

import (
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"
)

const openAPIVersion = "3.0.3"

// Info is the document's info block.
type Info struct {
	Title       string
	Version     string
	Description string
}

// Operation describes one route. Request and Response are sample values
// whose types are reflected; either may be nil.
type Operation struct {
	Method     string
	Path       string
	Summary    string
	Params     []string
	Request    any
	Response   any
	ErrorCodes []int
}

// Builder accumulates operations and the components they reference.
type Builder struct {
	info       Info
	overrides  Overrides
	operations []Operation
	components map[string]map[string]any
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithOverride fixes the schema emitted for the type of sample.
func WithOverride(sample any, schema map[string]any) BuilderOption {
	return func(b *Builder) {
		t := reflect.TypeOf(sample)
		for t != nil && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t != nil {
			b.overrides[t] = schema
		}
	}
}

func NewBuilder(info Info, opts ...BuilderOption) *Builder {
	b := &Builder{
		info:       info,
		overrides:  Overrides{},
		components: map[string]map[string]any{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Add registers op.
func (b *Builder) Add(op Operation) *Builder {
	b.operations = append(b.operations, op)
	return b
}

// Build renders the document.
func (b *Builder) Build() (map[string]any, error) {
	paths := map[string]any{}
	for _, op := range b.operations {
		rendered, err := b.operation(op)
		if err != nil {
			return nil, fmt.Errorf("apidoc: %s %s: %w", op.Method, op.Path, err)
		}
		path := openAPIPath(op.Path)
		item, _ := paths[path].(map[string]any)
		if item == nil {
			item = map[string]any{}
			paths[path] = item
		}
		item[strings.ToLower(op.Method)] = rendered
	}

	info := map[string]any{
		"title":   b.info.Title,
		"version": b.info.Version,
	}
	if b.info.Description != "" {
		info["description"] = b.info.Description
	}
	document := map[string]any{
		"openapi": openAPIVersion,
		"info":    info,
		"paths":   paths,
	}
	if len(b.components) > 0 {
		schemas := make(map[string]any, len(b.components))
		for name, schema := range b.components {
			schemas[name] = schema
		}
		document["components"] = map[string]any{"schemas": schemas}
	}
	return document, nil
}

func (b *Builder) operation(op Operation) (map[string]any, error) {
	method := strings.ToUpper(op.Method)
	if method == "" {
		return nil, fmt.Errorf("method is required")
	}
	rendered := map[string]any{
		"operationId": strings.ToLower(method) + ":" + op.Path,
	}
	if op.Summary != "" {
		rendered["summary"] = op.Summary
	}
	if len(op.Params) > 0 {
		params := make([]any, 0, len(op.Params))
		for _, name := range op.Params {
			params = append(params, map[string]any{
				"name":     name,
				"in":       "path",
				"required": true,
				"schema":   map[string]any{"type": "string"},
			})
		}
		rendered["parameters"] = params
	}
	if op.Request != nil {
		schema, err := b.SchemaFor(reflect.TypeOf(op.Request))
		if err != nil {
			return nil, err
		}
		rendered["requestBody"] = map[string]any{
			"required": true,
			"content":  jsonContent(schema),
		}
	}

	responses := map[string]any{}
	ok := map[string]any{"description": http.StatusText(http.StatusOK)}
	if op.Response != nil {
		schema, err := b.SchemaFor(reflect.TypeOf(op.Response))
		if err != nil {
			return nil, err
		}
		ok["content"] = jsonContent(schema)
	}
	responses["200"] = ok

	codes := append([]int(nil), op.ErrorCodes...)
	sort.Ints(codes)
	for _, code := range codes {
		responses[fmt.Sprint(code)] = map[string]any{
			"description": http.StatusText(code),
			"content": jsonContent(map[string]any{
				"type":       "object",
				"properties": map[string]any{"error": map[string]any{"type": "string"}},
				"required":   []string{"error"},
			}),
		}
	}
	rendered["responses"] = responses
	return rendered, nil
}

func jsonContent(schema map[string]any) map[string]any {
	return map[string]any{"application/json": map[string]any{"schema": schema}}
}

// openAPIPath rewrites gin-style ":param" segments to "{param}".
func openAPIPath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if strings.HasPrefix(segment, ":") {
			segments[i] = "{" + segment[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}
