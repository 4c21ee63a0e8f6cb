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
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
)

// ValidationOptions controls how argument validation behaves.
type ValidationOptions struct {
	// AllowUnknownFields disables the default reject-unknown-fields
	// behavior (spec §4.2).
	AllowUnknownFields bool
}

// validationResult mirrors agentstate's ValidationFailure payload shape
// without importing the executor's result type, so Validate can be
// tested in isolation.
type validationResult struct {
	MissingFields []string
	TypeErrors    map[string]string
}

func (v validationResult) ok() bool {
	return len(v.MissingFields) == 0 && len(v.TypeErrors) == 0
}

// Validate checks args against schema: required fields must be present,
// scalar types are coerced when the coercion is lossless (string<->number),
// and unknown fields are rejected unless opts.AllowUnknownFields is set.
// It returns the (possibly coerced) arguments alongside the result; on
// failure the returned arguments are nil and the caller must not invoke
// the tool body (spec §4.2).
func Validate(schema map[string]any, args map[string]any, opts ValidationOptions) (map[string]any, agentstate.ExecutionOutcome, validationResult) {
	if schema == nil {
		return args, agentstate.OutcomeSuccess, validationResult{}
	}

	properties, _ := schema["properties"].(map[string]any)
	requiredList, _ := schema["required"].([]any)
	required := make(map[string]bool, len(requiredList))
	for _, r := range requiredList {
		if name, ok := r.(string); ok {
			required[name] = true
		}
	}
	// required may also arrive as []string (e.g. from SchemaBuilder).
	if reqStrs, ok := schema["required"].([]string); ok {
		for _, name := range reqStrs {
			required[name] = true
		}
	}

	result := validationResult{TypeErrors: map[string]string{}}

	for name := range required {
		if _, present := args[name]; !present {
			result.MissingFields = append(result.MissingFields, name)
		}
	}

	coerced := make(map[string]any, len(args))
	for k, v := range args {
		prop, known := properties[k]
		if !known {
			if !opts.AllowUnknownFields {
				result.TypeErrors[k] = "unknown field"
				continue
			}
			coerced[k] = v
			continue
		}
		propMap, _ := prop.(map[string]any)
		wantType, _ := propMap["type"].(string)
		cv, err := coerceScalar(v, wantType)
		if err != nil {
			result.TypeErrors[k] = err.Error()
			continue
		}
		coerced[k] = cv
	}

	if !result.ok() {
		return nil, agentstate.OutcomeValidationFailure, result
	}
	return coerced, agentstate.OutcomeSuccess, result
}

// coerceScalar converts v to wantType iff the conversion is lossless.
// Unrecognized or structural types (object/array) pass through
// unmodified. Conversions to string and from a numeric string use
// mapstructure's weak decoding, which is used elsewhere
// in the pack (hector's config loader) for the same "be liberal in
// what we accept" reason.
func coerceScalar(v any, wantType string) (any, error) {
	switch wantType {
	case "string":
		if s, ok := v.(string); ok {
			return s, nil
		}
		var out string
		if err := decodeWeak(v, &out); err != nil {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return out, nil
	case "number":
		return coerceFloat(v)
	case "integer":
		f, err := coerceFloat(v)
		if err != nil {
			return nil, err
		}
		if f != float64(int64(f)) {
			return nil, fmt.Errorf("expected integer, got fractional %v", f)
		}
		return f, nil
	case "boolean":
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected boolean, got %T", v)
	default:
		return v, nil
	}
}

func coerceFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		var out float64
		if err := decodeWeak(n, &out); err != nil {
			return 0, fmt.Errorf("cannot losslessly convert %q to a number", n)
		}
		return out, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func decodeWeak(src any, dst any) error {
	cfg := &mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           dst,
	}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	return dec.Decode(src)
}
