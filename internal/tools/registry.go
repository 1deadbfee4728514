package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Family groups tools by the kind of work they do.
type Family string

const (
	FamilyData      Family = "data"
	FamilyAnalytics Family = "analytics"
	FamilyArtifact  Family = "artifact"
	FamilyPlaylist  Family = "playlist"
	FamilySemantic  Family = "semantic"
	FamilyTemplate  Family = "template"
)

// Property is one declarative argument of a tool schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
}

// Schema is the static declaration of a tool: what it is called, what it
// takes, and how the dispatcher must treat it.
type Schema struct {
	Name        string
	Description string
	Family      Family
	Properties  map[string]Property
	Required    []string

	// NeedsDataset marks tools that cannot run before a play log is loaded.
	NeedsDataset bool

	// BreakerExempt marks cheap local tools that do not count against the
	// per-turn call limit.
	BreakerExempt bool
}

// Call represents one tool invocation recovered from a model reply.
type Call struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Executor handles the actual execution of a tool.
type Executor interface {
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, args map[string]interface{}) *Result

func (f ExecutorFunc) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return f(ctx, args)
}

type entry struct {
	schema   Schema
	executor Executor
}

// Registry holds the tool catalog exposed to the model.
type Registry struct {
	entries map[string]*entry
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a tool. Duplicate names are an error: a catalog with two
// tools of the same name would make call routing ambiguous.
func (r *Registry) Register(schema Schema, executor Executor) error {
	name := strings.TrimSpace(schema.Name)
	if name == "" {
		return fmt.Errorf("tool schema requires a name")
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}
	if executor == nil {
		return fmt.Errorf("tool %q requires an executor", name)
	}

	r.entries[name] = &entry{schema: schema, executor: executor}
	r.order = append(r.order, name)
	return nil
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Get returns the schema for a registered tool.
func (r *Registry) Get(name string) (Schema, bool) {
	e, ok := r.entries[name]
	if !ok {
		return Schema{}, false
	}
	return e.schema, true
}

// All returns schemas in registration order.
func (r *Registry) All() []Schema {
	schemas := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.entries[name].schema)
	}
	return schemas
}

// ByFamily returns schemas of one family in registration order.
func (r *Registry) ByFamily(family Family) []Schema {
	var schemas []Schema
	for _, name := range r.order {
		if r.entries[name].schema.Family == family {
			schemas = append(schemas, r.entries[name].schema)
		}
	}
	return schemas
}

// Names returns the sorted tool names.
// Len reports the number of registered tools.
func (r *Registry) Len() int {
	return len(r.entries)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enabled returns a filtered view containing only the named tools. An empty
// filter returns the registry unchanged. Unknown names are ignored.
func (r *Registry) Enabled(names []string) *Registry {
	if len(names) == 0 {
		return r
	}
	allowed := make(map[string]bool, len(names))
	for _, name := range names {
		allowed[strings.TrimSpace(name)] = true
	}

	filtered := NewRegistry()
	for _, name := range r.order {
		if allowed[name] {
			e := r.entries[name]
			filtered.entries[name] = e
			filtered.order = append(filtered.order, name)
		}
	}
	return filtered
}

// BreakerExempt reports whether a tool is excluded from the per-turn limit.
// Unknown tools are not exempt.
func (r *Registry) BreakerExempt(name string) bool {
	e, ok := r.entries[name]
	return ok && e.schema.BreakerExempt
}

// ToJSONSchema renders the catalog in the OpenAI function-tool shape shared
// by all provider adapters.
func (r *Registry) ToJSONSchema() []map[string]interface{} {
	schemas := make([]map[string]interface{}, 0, len(r.order))
	for _, name := range r.order {
		schema := r.entries[name].schema
		schemas = append(schemas, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        schema.Name,
				"description": schema.Description,
				"parameters":  schema.parametersJSON(),
			},
		})
	}
	return schemas
}

func (s Schema) parametersJSON() map[string]interface{} {
	properties := make(map[string]interface{}, len(s.Properties))
	for name, prop := range s.Properties {
		p := map[string]interface{}{"type": prop.Type}
		if prop.Description != "" {
			p["description"] = prop.Description
		}
		if len(prop.Enum) > 0 {
			values := make([]interface{}, len(prop.Enum))
			for i, v := range prop.Enum {
				values[i] = v
			}
			p["enum"] = values
		}
		if prop.Minimum != nil {
			p["minimum"] = *prop.Minimum
		}
		if prop.Maximum != nil {
			p["maximum"] = *prop.Maximum
		}
		properties[name] = p
	}

	params := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(s.Required) > 0 {
		required := make([]interface{}, len(s.Required))
		for i, name := range s.Required {
			required[i] = name
		}
		params["required"] = required
	}
	return params
}

// GetStringParam returns a string argument or the default.
func GetStringParam(args map[string]interface{}, key, defaultVal string) string {
	if val, ok := args[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultVal
}

// GetIntParam returns an int argument or the default.
func GetIntParam(args map[string]interface{}, key string, defaultVal int) int {
	if val, ok := args[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case float64:
			return int(v)
		case json.Number:
			if i, err := v.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return defaultVal
}

// GetBoolParam returns a bool argument or the default.
func GetBoolParam(args map[string]interface{}, key string, defaultVal bool) bool {
	if val, ok := args[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultVal
}
