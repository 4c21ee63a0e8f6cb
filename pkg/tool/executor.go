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
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
	"github.com/tessera-ai/agentloop/pkg/canon"
)

// Fingerprint returns the canonical-args hash used as the
// ToolExecutionResult.InputFingerprint. Invoke computes it over the raw
// arguments; the dedupe cache keys on the same hash of the validated
// (possibly coerced) arguments.
func Fingerprint(toolName string, args map[string]any) string {
	return canon.Hash(toolName, args)
}

// Deduper is the narrow view of the dedupe cache (component C3) the
// executor consults before invoking a tool body. It is satisfied by
// *dedupe.Cache without either package importing the other.
type Deduper interface {
	Lookup(toolName string, args map[string]any) (output any, age time.Duration, hit bool)
	Store(toolName string, args map[string]any, output any, ttl time.Duration, disabled bool)

	// Do collapses concurrent identical calls for (toolName, args) into
	// a single invocation of fn, so a burst of duplicate calls that all
	// miss the cache at the same instant only runs the tool body once.
	Do(toolName string, args map[string]any, fn func() (any, error)) (output any, err error, shared bool)
}

// ExecutorConfig configures Executor defaults; per-tool overrides win
// via the TimeoutOverride/CacheControl/Classifier interfaces.
type ExecutorConfig struct {
	ToolTimeout        time.Duration
	MaxParallelTools   int
	DefaultCacheTTL    time.Duration
	AllowUnknownFields bool
}

func (c *ExecutorConfig) setDefaults() {
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = 30 * time.Second
	}
	if c.MaxParallelTools <= 0 {
		c.MaxParallelTools = 4
	}
	if c.DefaultCacheTTL <= 0 {
		c.DefaultCacheTTL = 5 * time.Minute
	}
}

// Executor dispatches validated tool calls, applying per-call timeouts,
// error classification, and — when a Deduper is configured — cache
// lookups before invocation (spec §4.2, §4.3).
type Executor struct {
	registry *Registry
	dedupe   Deduper
	cfg      ExecutorConfig
}

// NewExecutor builds an Executor over registry. dedupe may be nil, in
// which case caching is skipped entirely (every call is a live
// invocation).
func NewExecutor(registry *Registry, dedupe Deduper, cfg ExecutorConfig) *Executor {
	cfg.setDefaults()
	return &Executor{registry: registry, dedupe: dedupe, cfg: cfg}
}

// Invoke validates and dispatches a single call, never invoking the
// tool body when validation fails.
func (e *Executor) Invoke(ctx context.Context, call agentstate.ToolCallRequest) agentstate.ToolExecutionResult {
	started := time.Now()
	t, ok := e.registry.Lookup(call.ToolName)
	if !ok {
		return agentstate.ToolExecutionResult{
			ToolName:       call.ToolName,
			CallID:         call.CallID,
			Outcome:        agentstate.OutcomeExecutionError,
			ErrorMessage:   fmt.Sprintf("tool %q is not registered", call.ToolName),
			Classification: agentstate.ErrorClassArgument,
			StartedAt:      started,
			Elapsed:        time.Since(started),
		}
	}

	fingerprint := Fingerprint(call.ToolName, call.Arguments)

	coerced, outcome, vr := Validate(t.Schema(), call.Arguments, ValidationOptions{AllowUnknownFields: e.cfg.AllowUnknownFields})
	if outcome == agentstate.OutcomeValidationFailure {
		return agentstate.ToolExecutionResult{
			ToolName:         call.ToolName,
			CallID:           call.CallID,
			InputFingerprint: fingerprint,
			Outcome:          agentstate.OutcomeValidationFailure,
			MissingFields:    vr.MissingFields,
			TypeErrors:       vr.TypeErrors,
			StartedAt:        started,
			Elapsed:          time.Since(started),
		}
	}

	cacheDisabled, ttl := e.cacheSettingsFor(t)
	if e.dedupe != nil && !cacheDisabled {
		if output, age, hit := e.dedupe.Lookup(call.ToolName, coerced); hit {
			return agentstate.ToolExecutionResult{
				ToolName:         call.ToolName,
				CallID:           call.CallID,
				InputFingerprint: fingerprint,
				Outcome:          agentstate.OutcomeCacheHit,
				Output:           output,
				CacheAge:         age,
				StartedAt:        started,
				Elapsed:          time.Since(started),
			}
		}
	}

	timeout := e.cfg.ToolTimeout
	if to, ok := t.(TimeoutOverride); ok {
		if custom := to.Timeout(); custom > 0 {
			timeout = custom
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Do collapses concurrent identical in-flight calls that both
	// missed the Lookup above into one invocation of the tool body;
	// a waiter that joins a shared call observes the leader's callCtx,
	// not its own, which is singleflight's usual tradeoff.
	var output any
	var err error
	if e.dedupe != nil && !cacheDisabled {
		output, err, _ = e.dedupe.Do(call.ToolName, coerced, func() (any, error) {
			return t.Call(callCtx, coerced)
		})
	} else {
		output, err = t.Call(callCtx, coerced)
	}
	elapsed := time.Since(started)

	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return agentstate.ToolExecutionResult{
				ToolName:         call.ToolName,
				CallID:           call.CallID,
				InputFingerprint: fingerprint,
				Outcome:          agentstate.OutcomeTimeout,
				StartedAt:        started,
				Elapsed:          elapsed,
			}
		}
		class := agentstate.ErrorClassTransient
		if classifier, ok := t.(Classifier); ok {
			class = classifier.ClassifyError(err)
		}
		return agentstate.ToolExecutionResult{
			ToolName:         call.ToolName,
			CallID:           call.CallID,
			InputFingerprint: fingerprint,
			Outcome:          agentstate.OutcomeExecutionError,
			ErrorMessage:     err.Error(),
			Classification:   class,
			StartedAt:        started,
			Elapsed:          elapsed,
		}
	}

	if e.dedupe != nil && !cacheDisabled {
		e.dedupe.Store(call.ToolName, coerced, output, ttl, cacheDisabled)
	}

	return agentstate.ToolExecutionResult{
		ToolName:         call.ToolName,
		CallID:           call.CallID,
		InputFingerprint: fingerprint,
		Outcome:          agentstate.OutcomeSuccess,
		Output:           output,
		StartedAt:        started,
		Elapsed:          elapsed,
	}
}

func (e *Executor) cacheSettingsFor(t Tool) (disabled bool, ttl time.Duration) {
	ttl = e.cfg.DefaultCacheTTL
	if cc, ok := t.(CacheControl); ok {
		disabled = cc.CacheDisabled()
		if custom := cc.CacheTTL(); custom > 0 {
			ttl = custom
		}
	}
	return disabled, ttl
}

// InvokeBatch dispatches calls with bounded concurrency
// (cfg.MaxParallelTools) and reassembles results in request order
// regardless of completion order (spec §4.1, §5). A single call's
// failure never cancels its siblings; only ctx cancellation does.
func (e *Executor) InvokeBatch(ctx context.Context, calls []agentstate.ToolCallRequest) []agentstate.ToolExecutionResult {
	results := make([]agentstate.ToolExecutionResult, len(calls))
	if len(calls) == 0 {
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxParallelTools)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = e.Invoke(gctx, call)
			return nil
		})
	}
	_ = g.Wait() // Invoke never returns an error from this goroutine; it's captured in results[i].

	return results
}
