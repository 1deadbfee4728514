package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validation is the outcome of checking one call's arguments.
type Validation struct {
	Valid  bool
	Errors []string

	// Normalized carries the coerced copy of the arguments. The caller's
	// map is never mutated.
	Normalized map[string]interface{}
}

// Validator checks call arguments against declarative schemas. Light
// coercions run first so near-miss arguments from weaker models still pass;
// a compiled JSON Schema then does the structural check.
type Validator struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{compiled: make(map[string]*jsonschema.Schema)}
}

// Validate checks args against the schema. Coercion is applied to a copy;
// unknown keys pass through untouched.
func (v *Validator) Validate(schema Schema, args map[string]interface{}) Validation {
	normalized := copyArguments(args)

	var errs []string
	for name, prop := range schema.Properties {
		value, present := normalized[name]
		if !present {
			continue
		}
		coerced, err := coerceValue(prop, value)
		if err != nil {
			errs = append(errs, fmt.Sprintf("argument %q: %v", name, err))
			continue
		}
		normalized[name] = coerced
	}

	for _, required := range schema.Required {
		if _, present := normalized[required]; !present {
			errs = append(errs, fmt.Sprintf("missing required argument %q", required))
		}
	}

	if len(errs) == 0 {
		if err := v.structuralCheck(schema, normalized); err != nil {
			errs = append(errs, err.Error())
		}
	}

	return Validation{
		Valid:      len(errs) == 0,
		Errors:     errs,
		Normalized: normalized,
	}
}

func (v *Validator) structuralCheck(schema Schema, args map[string]interface{}) error {
	compiled, err := v.compiledSchema(schema)
	if err != nil {
		return fmt.Errorf("schema %q did not compile: %w", schema.Name, err)
	}

	// Round-trip so coerced values use the types a JSON decoder would
	// produce.
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("arguments are not JSON-encodable: %w", err)
	}
	decoded, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return err
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("arguments do not match the %s schema: %v", schema.Name, err)
	}
	return nil
}

func (v *Validator) compiledSchema(schema Schema) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if compiled, ok := v.compiled[schema.Name]; ok {
		return compiled, nil
	}

	data, err := json.Marshal(schema.parametersJSON())
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}

	url := "file:///tool/" + schema.Name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}

	v.compiled[schema.Name] = compiled
	return compiled, nil
}

// coerceValue nudges near-miss values toward the declared type. Values
// already of the right type pass through.
func coerceValue(prop Property, value interface{}) (interface{}, error) {
	switch prop.Type {
	case "integer", "number":
		if s, ok := value.(string); ok {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("expected a %s, got %q", prop.Type, s)
			}
			value = parsed
		}
	case "boolean":
		if s, ok := value.(string); ok {
			parsed, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(s)))
			if err != nil {
				return nil, fmt.Errorf("expected a boolean, got %q", s)
			}
			value = parsed
		}
	case "string":
		if len(prop.Enum) > 0 {
			if s, ok := value.(string); ok {
				value = canonicalEnum(prop.Enum, s)
			}
		}
	}
	return value, nil
}

// canonicalEnum maps case-insensitive matches onto the declared spelling.
// Non-matches are returned unchanged so the structural check reports them.
func canonicalEnum(enum []string, value string) string {
	for _, candidate := range enum {
		if strings.EqualFold(candidate, strings.TrimSpace(value)) {
			return candidate
		}
	}
	return value
}

func copyArguments(args map[string]interface{}) map[string]interface{} {
	copied := make(map[string]interface{}, len(args))
	for k, val := range args {
		copied[k] = copyValue(val)
	}
	return copied
}

func copyValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return copyArguments(v)
	case []interface{}:
		copied := make([]interface{}, len(v))
		for i, item := range v {
			copied[i] = copyValue(item)
		}
		return copied
	default:
		return v
	}
}
