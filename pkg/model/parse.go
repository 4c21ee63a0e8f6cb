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

package model

import (
	"encoding/json"
	"strings"
)

// ToolCallEnvelope is the shape recognized when a provider without
// native function calling is asked to emit tool calls as text. Both
// the "function" shape and the "action: tool_call" shape from spec
// §4.6 are accepted.
type ToolCallEnvelope struct {
	Function  string         `json:"function"`
	Arguments map[string]any `json:"arguments"`

	Action    string         `json:"action"`
	ToolName  string         `json:"tool_name"`
	Tool      string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Params     map[string]any `json:"params"`
}

// Name returns the tool name regardless of which envelope shape matched.
func (e ToolCallEnvelope) Name() string {
	if e.Function != "" {
		return e.Function
	}
	if e.ToolName != "" {
		return e.ToolName
	}
	return e.Tool
}

// Args returns the argument map regardless of which envelope shape
// matched.
func (e ToolCallEnvelope) Args() map[string]any {
	switch {
	case e.Arguments != nil:
		return e.Arguments
	case e.Parameters != nil:
		return e.Parameters
	case e.Params != nil:
		return e.Params
	default:
		return map[string]any{}
	}
}

// StripFences removes a single leading/trailing markdown code fence
// (``` or ```json) around s, if present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(s[:nl])
		if firstLine == "" || isBareLanguageTag(firstLine) {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isBareLanguageTag(s string) bool {
	if len(s) == 0 || len(s) > 16 {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// ExtractToolCall parses a free-text model reply into a recognized
// ToolCallEnvelope. It strips a single wrapping markdown fence first,
// since providers asked to emit JSON often wrap it in ```json blocks.
// Returns ok=false when text is not a recognized tool-call envelope,
// in which case the caller should treat text as free-form prose.
func ExtractToolCall(text string) (env ToolCallEnvelope, ok bool) {
	candidate := StripFences(text)
	if candidate == "" || candidate[0] != '{' {
		return ToolCallEnvelope{}, false
	}
	if err := json.Unmarshal([]byte(candidate), &env); err != nil {
		return ToolCallEnvelope{}, false
	}
	return validateEnvelope(env)
}

// ExtractToolCalls is the batch form of ExtractToolCall: it recognizes
// either a single envelope object or a JSON array of envelopes, which
// is how a non-function-calling provider expresses a multi-tool
// request in one free-text reply (spec §8, Scenario C).
func ExtractToolCalls(text string) (envs []ToolCallEnvelope, ok bool) {
	candidate := StripFences(text)
	if candidate == "" {
		return nil, false
	}

	switch candidate[0] {
	case '{':
		env, ok := ExtractToolCall(text)
		if !ok {
			return nil, false
		}
		return []ToolCallEnvelope{env}, true
	case '[':
		var raw []ToolCallEnvelope
		if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
			return nil, false
		}
		out := make([]ToolCallEnvelope, 0, len(raw))
		for _, env := range raw {
			validated, ok := validateEnvelope(env)
			if !ok {
				return nil, false
			}
			out = append(out, validated)
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}

func validateEnvelope(env ToolCallEnvelope) (ToolCallEnvelope, bool) {
	if env.Name() == "" {
		return ToolCallEnvelope{}, false
	}
	if env.Action != "" && env.Action != "tool_call" {
		return ToolCallEnvelope{}, false
	}
	return env, true
}
