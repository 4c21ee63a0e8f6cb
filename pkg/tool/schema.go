// Copyright 2026 The Agent Loop Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tool

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFromType builds a tool parameter schema from a Go struct type at
// build/registration time, once, via an explicit call. This replaces
// the source system's per-invocation runtime reflection (spec §9
// "Design Notes"): a host calls SchemaFromType[Args]() when it wires up
// a tool, and the resulting map is cached on the Tool value — the
// registry and executor never reflect at call time.
//
// Field tags follow invopop/jsonschema conventions, e.g.:
//
//	type Args struct {
//	    Query string `json:"query" jsonschema:"required,description=Search query"`
//	    Limit int    `json:"limit,omitempty" jsonschema:"description=Max results,default=10,minimum=1,maximum=100"`
//	}
func SchemaFromType[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("tool: marshaling schema: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("tool: decoding schema: %w", err)
	}
	delete(raw, "$schema")
	delete(raw, "$id")

	if raw["type"] != "object" {
		return raw, nil
	}
	out := map[string]any{
		"type":       "object",
		"properties": raw["properties"],
	}
	if required, ok := raw["required"]; ok {
		out["required"] = required
	}
	if addProps, ok := raw["additionalProperties"]; ok {
		out["additionalProperties"] = addProps
	}
	return out, nil
}

// SchemaBuilder assembles a parameter schema by hand, for tools whose
// argument shape isn't naturally a Go struct (e.g. dynamically
// configured tools, or tools whose schema is generated from an external
// MCP descriptor).
type SchemaBuilder struct {
	properties map[string]any
	required   []string
	additional *bool
}

// NewSchemaBuilder starts an empty object schema.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{properties: map[string]any{}}
}

// Field adds a property. typ is a JSON-schema primitive type name
// ("string", "number", "integer", "boolean", "array", "object").
func (b *SchemaBuilder) Field(name, typ, description string, required bool) *SchemaBuilder {
	prop := map[string]any{"type": typ}
	if description != "" {
		prop["description"] = description
	}
	b.properties[name] = prop
	if required {
		b.required = append(b.required, name)
	}
	return b
}

// Constrain adds numeric/length constraints to an already-added field.
func (b *SchemaBuilder) Constrain(name string, min, max *float64, enum []string) *SchemaBuilder {
	prop, ok := b.properties[name].(map[string]any)
	if !ok {
		return b
	}
	if min != nil {
		prop["minimum"] = *min
	}
	if max != nil {
		prop["maximum"] = *max
	}
	if len(enum) > 0 {
		prop["enum"] = enum
	}
	b.properties[name] = prop
	return b
}

// DisallowAdditional rejects unknown fields at validation time (the
// registry's default behavior already does this unless overridden, but
// setting it here makes the schema document it explicitly to the model).
func (b *SchemaBuilder) DisallowAdditional() *SchemaBuilder {
	f := false
	b.additional = &f
	return b
}

// Build returns the finished schema map.
func (b *SchemaBuilder) Build() map[string]any {
	out := map[string]any{
		"type":       "object",
		"properties": b.properties,
	}
	if len(b.required) > 0 {
		out["required"] = b.required
	}
	if b.additional != nil {
		out["additionalProperties"] = *b.additional
	}
	return out
}
