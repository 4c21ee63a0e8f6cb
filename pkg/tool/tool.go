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

// Package tool defines the tool registry and executor (component C2):
// schema generation, argument validation, timeout-bound invocation,
// error classification, and bounded-concurrency batch dispatch.
//
// Tool bodies themselves (web search, shell exec, file I/O, ...) are
// host responsibilities and out of scope here; this package only
// specifies and implements the dispatch machinery around them.
package tool

import (
	"context"
	"time"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
)

// Tool is the minimal capability a host registers with the engine.
type Tool interface {
	// Name is the unique identifier the model uses to request this tool.
	Name() string

	// Description is shown to the model to help it decide when to call
	// this tool.
	Description() string

	// Schema returns the JSON-schema-like parameter description. Return
	// nil for a tool that takes no arguments.
	Schema() map[string]any

	// Call executes the tool body. Implementations should return a
	// descriptive error rather than panicking; the executor classifies
	// any returned error as ErrorClassTransient unless the tool
	// implements Classifier.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Classifier is an optional interface a Tool can implement to control
// how its own errors are classified for retry eligibility.
type Classifier interface {
	ClassifyError(err error) agentstate.ErrorClass
}

// CacheControl is an optional interface a Tool can implement to
// override the dedupe cache's default TTL or opt out of caching
// entirely (spec §4.3).
type CacheControl interface {
	// CacheTTL returns the TTL to use for this tool's results, or 0 to
	// use the registry-wide default.
	CacheTTL() time.Duration

	// CacheDisabled reports whether results from this tool should never
	// be cached.
	CacheDisabled() bool
}

// TimeoutOverride is an optional interface a Tool can implement to use
// a per-tool timeout instead of the executor's default.
type TimeoutOverride interface {
	Timeout() time.Duration
}

// Descriptor is the prompt-facing, provider-agnostic rendering of a
// registered tool.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
