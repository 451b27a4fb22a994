// Package apidoc renders an OpenAPI 3 document for the catalog and
// prediction endpoints from the Go wire types.
package apidoc

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
)

var (
	timeType          = reflect.TypeOf(time.Time{})
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Overrides supplies schemas for types whose JSON form differs from their Go
// layout, typically types with a custom MarshalJSON.
type Overrides map[reflect.Type]map[string]any

// SchemaFor builds the JSON Schema of t. Named struct types are emitted once
// under components and referenced afterwards.
func (b *Builder) SchemaFor(t reflect.Type) (map[string]any, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if override, ok := b.overrides[t]; ok {
		return cloneSchema(override), nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return map[string]any{"type": "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if t.Implements(textMarshalerType) {
			return map[string]any{"type": "string"}, nil
		}
		return map[string]any{"type": "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}, nil
	case reflect.String:
		return map[string]any{"type": "string"}, nil
	case reflect.Interface:
		return map[string]any{}, nil
	case reflect.Struct:
		if t == timeType {
			return map[string]any{"type": "string", "format": "date-time"}, nil
		}
		if t.Implements(jsonMarshalerType) || reflect.PointerTo(t).Implements(jsonMarshalerType) {
			return nil, fmt.Errorf("apidoc: %s has custom JSON encoding and no override", t)
		}
		return b.structRef(t)
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("apidoc: map key type %s unsupported", t.Key())
		}
		values, err := b.SchemaFor(t.Elem())
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "object", "additionalProperties": values}, nil
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return map[string]any{"type": "string", "format": "byte"}, nil
		}
		items, err := b.SchemaFor(t.Elem())
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "array", "items": items}, nil
	default:
		return nil, fmt.Errorf("apidoc: kind %s of %s unsupported", t.Kind(), t)
	}
}

func (b *Builder) structRef(t reflect.Type) (map[string]any, error) {
	name := componentName(t)
	if name == "" {
		return b.structSchema(t)
	}
	ref := map[string]any{"$ref": "#/components/schemas/" + name}
	if _, ok := b.components[name]; ok {
		return ref, nil
	}
	// Reserve the name before descending so recursive types terminate.
	b.components[name] = nil
	schema, err := b.structSchema(t)
	if err != nil {
		delete(b.components, name)
		return nil, err
	}
	b.components[name] = schema
	return ref, nil
}

func (b *Builder) structSchema(t reflect.Type) (map[string]any, error) {
	properties := map[string]any{}
	var required []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitempty, skip := jsonName(field)
		if skip {
			continue
		}
		child, err := b.SchemaFor(field.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name(), field.Name, err)
		}
		properties[name] = child
		if !omitempty && field.Type.Kind() != reflect.Pointer {
			required = append(required, name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema, nil
}

func jsonName(field reflect.StructField) (name string, omitempty, skip bool) {
	name = field.Name
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitempty = true
		}
	}
	return name, omitempty, false
}

var unsafeComponentChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

func componentName(t reflect.Type) string {
	if t.Name() == "" {
		return ""
	}
	pkg := t.PkgPath()
	if idx := strings.LastIndex(pkg, "/"); idx >= 0 {
		pkg = pkg[idx+1:]
	}
	name := t.Name()
	if pkg != "" {
		name = pkg + "." + name
	}
	return unsafeComponentChars.ReplaceAllString(name, "_")
}

func cloneSchema(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		if nested, ok := value.(map[string]any); ok {
			out[key] = cloneSchema(nested)
			continue
		}
		out[key] = value
	}
	return out
}
