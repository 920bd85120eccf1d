package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema describes the JSON shape a model response must satisfy.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// schemaCache caches compiled JSON schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// DecodeObject extracts the first JSON object from text, validates it against
// schema (when non-nil) and returns it as a generic map.
func DecodeObject(text string, schema *Schema) (map[string]any, error) {
	raw := ExtractJSONObject(text)
	if raw == "" {
		return nil, &ErrInvalidResponse{Content: text, Err: ErrNoJSON}
	}

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, &ErrInvalidResponse{Content: raw, Err: ErrNoJSON}
	}

	if err := ValidateObject(schema, obj); err != nil {
		var inv *ErrInvalidResponse
		if errors.As(err, &inv) {
			inv.Content = raw
		}
		return nil, err
	}
	return obj, nil
}

// ValidateObject checks obj against schema. A nil schema accepts anything.
func ValidateObject(schema *Schema, obj map[string]any) error {
	if schema == nil {
		return nil
	}
	compiled, err := compiledSchema(schema)
	if err != nil {
		return &ErrInvalidResponse{Err: fmt.Errorf("compile schema %q: %w", schema.Name, err)}
	}
	// Round-trip so numbers and nested values have their decoded JSON types.
	b, err := json.Marshal(obj)
	if err != nil {
		return &ErrInvalidResponse{Err: fmt.Errorf("marshal object: %w", err)}
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return &ErrInvalidResponse{Err: fmt.Errorf("parse object: %w", err)}
	}
	if err := compiled.Validate(doc); err != nil {
		return &ErrInvalidResponse{Err: fmt.Errorf("schema validation failed: %w", err)}
	}
	return nil
}

func compiledSchema(schema *Schema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The compiler wants plain decoded JSON values, not Go literals.
	defBytes, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var def any
	if err := json.Unmarshal(defBytes, &def); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(url, def); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schema.Name, compiled)
	return compiled, nil
}
