package dataset

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Format is a dataset file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("dataset: unsupported file extension %q", filepath.Ext(path))
	}
}

//go:embed schema/dataset.schema.json
var schemaSource []byte

//go:embed sample.json
var sampleSource []byte

const schemaURL = "https://drivalyze.dev/schema/dataset.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaSource)); err != nil {
		return nil, fmt.Errorf("dataset: add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("dataset: compile schema: %w", err)
	}
	return schema, nil
})

// Schema returns the JSON Schema document datasets are validated against.
func Schema() []byte {
	return bytes.Clone(schemaSource)
}

// Load reads, validates and normalizes the dataset at path.
func Load(path string) (*Dataset, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	ds, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%w (file %s)", err, path)
	}
	return ds, nil
}

// Sample returns the built-in demonstration catalog.
func Sample() *Dataset {
	ds, err := Parse(sampleSource, FormatJSON)
	if err != nil {
		panic(fmt.Sprintf("dataset: built-in sample is invalid: %v", err))
	}
	return ds
}

// Parse decodes data in format, validates it against the schema and the
// cross-reference rules, and fills derived fields.
func Parse(data []byte, format Format) (*Dataset, error) {
	var generic any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("dataset: decode JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("dataset: decode YAML: %w", err)
		}
	case FormatTOML:
		var table map[string]any
		if _, err := toml.Decode(string(data), &table); err != nil {
			return nil, fmt.Errorf("dataset: decode TOML: %w", err)
		}
		generic = table
	default:
		return nil, fmt.Errorf("dataset: unsupported format %q", format)
	}

	// Round-trip through JSON so every format validates and decodes the
	// same way.
	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("dataset: normalize %s: %w", format, err)
	}
	var instance any
	if err := json.Unmarshal(canonical, &instance); err != nil {
		return nil, fmt.Errorf("dataset: normalize %s: %w", format, err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("dataset: schema validation: %w", err)
	}

	var ds Dataset
	if err := json.Unmarshal(canonical, &ds); err != nil {
		return nil, fmt.Errorf("dataset: decode: %w", err)
	}
	ds.normalize()
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}
