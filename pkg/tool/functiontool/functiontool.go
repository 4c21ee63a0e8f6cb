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

// Package functiontool adapts an ordinary typed Go function into a
// tool.Tool, generating its argument schema once at construction time
// via tool.SchemaFromType. This is the explicit, build-time replacement
// for the source system's per-call runtime reflection (spec §9).
package functiontool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
	"github.com/tessera-ai/agentloop/pkg/tool"
)

// Func is the shape a host function must have to be wrapped: it takes
// a typed argument struct and returns a typed result plus an error.
type Func[Args any, Result any] func(ctx context.Context, args Args) (Result, error)

// Tool wraps a Func as a tool.Tool, decoding the registry's
// map[string]any arguments into Args via a JSON round-trip (the
// arguments have already passed tool.Validate's schema check by the
// time Call runs, so this decode step is never lossy in practice).
type Tool[Args any, Result any] struct {
	name        string
	description string
	schema      map[string]any
	fn          Func[Args, Result]
	timeout     time.Duration
	classify    func(error) agentstate.ErrorClass
}

// Option customizes a Tool beyond its required name/description/fn.
type Option[Args any, Result any] func(*Tool[Args, Result])

// WithTimeout overrides the executor's default per-tool timeout.
func WithTimeout[Args any, Result any](d time.Duration) Option[Args, Result] {
	return func(t *Tool[Args, Result]) { t.timeout = d }
}

// WithClassifier overrides the default (transient) error classification.
func WithClassifier[Args any, Result any](fn func(error) agentstate.ErrorClass) Option[Args, Result] {
	return func(t *Tool[Args, Result]) { t.classify = fn }
}

// New builds a Tool, generating its schema from Args via reflection
// once, at construction time.
func New[Args any, Result any](name, description string, fn Func[Args, Result], opts ...Option[Args, Result]) (*Tool[Args, Result], error) {
	schema, err := tool.SchemaFromType[Args]()
	if err != nil {
		return nil, fmt.Errorf("functiontool %q: %w", name, err)
	}
	t := &Tool[Args, Result]{name: name, description: description, schema: schema, fn: fn}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Tool[Args, Result]) Name() string            { return t.name }
func (t *Tool[Args, Result]) Description() string     { return t.description }
func (t *Tool[Args, Result]) Schema() map[string]any   { return t.schema }
func (t *Tool[Args, Result]) Timeout() time.Duration   { return t.timeout }

func (t *Tool[Args, Result]) ClassifyError(err error) agentstate.ErrorClass {
	if t.classify != nil {
		return t.classify(err)
	}
	return agentstate.ErrorClassTransient
}

func (t *Tool[Args, Result]) Call(ctx context.Context, rawArgs map[string]any) (any, error) {
	var args Args
	data, err := json.Marshal(rawArgs)
	if err != nil {
		return nil, fmt.Errorf("functiontool %q: re-marshaling arguments: %w", t.name, err)
	}
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("functiontool %q: decoding arguments: %w", t.name, err)
	}
	return t.fn(ctx, args)
}
