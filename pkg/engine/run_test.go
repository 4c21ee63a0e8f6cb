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

package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-ai/agentloop/internal/testutil"
	"github.com/tessera-ai/agentloop/pkg/config"
	"github.com/tessera-ai/agentloop/pkg/engine"
	"github.com/tessera-ai/agentloop/pkg/events"
	"github.com/tessera-ai/agentloop/pkg/model"
	"github.com/tessera-ai/agentloop/pkg/statestore/memstore"
	"github.com/tessera-ai/agentloop/pkg/tool"
)

func newTestAgent(t *testing.T, client model.Client, cfg config.Config) *engine.Agent {
	t.Helper()
	a, err := engine.CreateAgent(client, memstore.New(), cfg)
	require.NoError(t, err)
	return a
}

// Scenario A: no tools, trivial final answer on the first turn.
func TestRun_TrivialFinalAnswer(t *testing.T) {
	client := &testutil.ScriptedClient{Responses: []testutil.ScriptedResponse{{Content: "the answer is 42"}}}
	a := newTestAgent(t, client, config.Config{MaxTurns: -1, RunTimeout: -1})

	result, err := a.Run(context.Background(), "agent-1", "what is the answer?", nil)
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	require.NotNil(t, result.FinalOutput)
	assert.Equal(t, "the answer is 42", *result.FinalOutput)
	assert.Equal(t, 1, result.TotalTurns)
}

// Scenario B: a single tool call followed by a final answer.
func TestRun_SingleToolCall(t *testing.T) {
	client := &testutil.ScriptedClient{Responses: []testutil.ScriptedResponse{
		{Content: `{"function": "echo", "arguments": {"value": "hello"}}`},
		{Content: "final: hello"},
	}}
	a := newTestAgent(t, client, config.Config{MaxTurns: -1, RunTimeout: -1})

	result, err := a.Run(context.Background(), "agent-2", "echo hello", []tool.Tool{testutil.EchoTool{}})
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	require.NotNil(t, result.FinalOutput)
	assert.Equal(t, "final: hello", *result.FinalOutput)
	assert.Equal(t, 2, result.TotalTurns)
}

// Scenario C: a multi-tool parallel batch in one turn, results preserved
// in request order regardless of completion order.
func TestRun_MultiToolBatchPreservesOrder(t *testing.T) {
	client := &testutil.ScriptedClient{Responses: []testutil.ScriptedResponse{
		{Content: `[{"function": "calculator", "arguments": {"a": 1, "b": 2, "op": "add"}}, {"function": "echo", "arguments": {"value": "done"}}]`},
		{Content: "both calls finished"},
	}}
	a := newTestAgent(t, client, config.Config{MaxTurns: -1, RunTimeout: -1})

	result, err := a.Run(context.Background(), "agent-3", "do two things", []tool.Tool{testutil.CalculatorTool{}, testutil.EchoTool{}})
	require.NoError(t, err)
	assert.True(t, result.Succeeded)

	hist, err := a.ToolCallHistory(context.Background(), "agent-3")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "calculator", hist[0].ToolName)
	assert.Equal(t, "echo", hist[1].ToolName)
}

// Scenario D: dedupe hit on a repeated identical call.
func TestRun_DedupeHit(t *testing.T) {
	client := &testutil.ScriptedClient{Responses: []testutil.ScriptedResponse{
		{Content: `{"function": "echo", "arguments": {"value": "x"}}`},
		{Content: `{"function": "echo", "arguments": {"value": "x"}}`},
		{Content: "done"},
	}}
	a := newTestAgent(t, client, config.Config{MaxTurns: -1, RunTimeout: -1})

	result, err := a.Run(context.Background(), "agent-4", "repeat echo", []tool.Tool{testutil.EchoTool{}})
	require.NoError(t, err)
	assert.True(t, result.Succeeded)

	snap := a.Metrics()
	assert.Equal(t, int64(1), snap.DedupeHits)
	assert.Equal(t, int64(1), snap.DedupeMisses)
}

// Scenario E: consecutive execution failures trip the loop detector.
func TestRun_LoopDetectedOnConsecutiveFailures(t *testing.T) {
	failing := `{"function": "calculator", "arguments": {"a": 1, "b": 2, "op": "divide"}}`
	client := &testutil.ScriptedClient{Responses: []testutil.ScriptedResponse{{Content: failing}}}
	a := newTestAgent(t, client, config.Config{MaxTurns: -1, RunTimeout: -1, ConsecutiveFailureThreshold: 2, MaxToolCallHistory: 10})

	result, err := a.Run(context.Background(), "agent-5", "divide badly", []tool.Tool{testutil.CalculatorTool{}})
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, string(engine.ErrLoopDetected), result.Error)
}

// Scenario F: cancellation mid-run surfaces as a cancelled RunResult and
// best-effort persists partial state.
func TestRun_CancellationMidCall(t *testing.T) {
	a := newTestAgent(t, testutil.SleepyClient{}, config.Config{MaxTurns: -1, RunTimeout: -1, InitialRetryDelay: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	result, err := a.Run(ctx, "agent-6", "never finishes", nil)
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, string(engine.ErrCancelled), result.Error)
}

// maxTurns exhaustion without a final answer terminates with max_turns.
func TestRun_MaxTurnsExhausted(t *testing.T) {
	client := &testutil.ScriptedClient{Responses: []testutil.ScriptedResponse{
		{Content: `{"function": "echo", "arguments": {"value": "again"}}`},
	}}
	a := newTestAgent(t, client, config.Config{MaxTurns: 2, RunTimeout: -1, DedupeCacheCapacity: 1})

	result, err := a.Run(context.Background(), "agent-7", "loop forever", []tool.Tool{testutil.EchoTool{}})
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, string(engine.ErrMaxTurns), result.Error)
	assert.Equal(t, 2, result.TotalTurns)
}

// A literal MaxTurns of 0 is a caller-chosen boundary, not "unset": the
// run completes immediately with zero turns started.
func TestRun_MaxTurnsZeroCompletesImmediately(t *testing.T) {
	client := &testutil.ScriptedClient{Responses: []testutil.ScriptedResponse{{Content: "should never be called"}}}
	a := newTestAgent(t, client, config.Config{MaxTurns: 0})

	result, err := a.Run(context.Background(), "agent-9", "do nothing", nil)
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, string(engine.ErrMaxTurns), result.Error)
	assert.Equal(t, 0, result.TotalTurns)
}

// A literal RunTimeout of 0 fires on the very first budget check, before
// any turn starts.
func TestRun_RunTimeoutZeroFiresImmediately(t *testing.T) {
	client := &testutil.ScriptedClient{Responses: []testutil.ScriptedResponse{{Content: "should never be called"}}}
	a := newTestAgent(t, client, config.Config{MaxTurns: -1, RunTimeout: 0})

	result, err := a.Run(context.Background(), "agent-10", "do nothing", nil)
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, string(engine.ErrRunTimeout), result.Error)
	assert.Equal(t, 0, result.TotalTurns)
}

// Re-running Run after a successful termination is a no-op that
// replays the memoized final output without additional model calls.
func TestRun_IdempotentAfterSuccess(t *testing.T) {
	client := &testutil.ScriptedClient{Responses: []testutil.ScriptedResponse{{Content: "first and only answer"}}}
	a := newTestAgent(t, client, config.Config{MaxTurns: -1, RunTimeout: -1})

	first, err := a.Run(context.Background(), "agent-8", "answer once", nil)
	require.NoError(t, err)
	require.True(t, first.Succeeded)

	second, err := a.Run(context.Background(), "agent-8", "answer once", nil)
	require.NoError(t, err)
	assert.True(t, second.Succeeded)
	assert.Equal(t, *first.FinalOutput, *second.FinalOutput)
	assert.Len(t, client.Requests, 1, "idempotent replay must not call the model again")
}

// Step drives exactly one turn and reports whether the caller should
// continue.
func TestStep_SingleTurn(t *testing.T) {
	client := &testutil.ScriptedClient{Responses: []testutil.ScriptedResponse{
		{Content: `{"function": "echo", "arguments": {"value": "hi"}}`},
		{Content: "final answer"},
	}}
	a := newTestAgent(t, client, config.Config{MaxTurns: -1, RunTimeout: -1})

	step1, err := a.Step(context.Background(), "agent-9", "say hi", []tool.Tool{testutil.EchoTool{}})
	require.NoError(t, err)
	assert.True(t, step1.Continue)
	assert.Equal(t, 1, step1.ExecutedToolCount)
	assert.Nil(t, step1.FinalOutput)

	step2, err := a.Step(context.Background(), "agent-9", "say hi", []tool.Tool{testutil.EchoTool{}})
	require.NoError(t, err)
	assert.False(t, step2.Continue)
	require.NotNil(t, step2.FinalOutput)
	assert.Equal(t, "final answer", *step2.FinalOutput)
}

// Model call failures exhausting retries terminate the run as
// llm_failed, not a panic or a hang.
func TestRun_LlmFailureTerminatesRun(t *testing.T) {
	client := &testutil.ScriptedClient{Responses: []testutil.ScriptedResponse{
		{Err: &model.Error{Kind: model.FailureInvalidRequest, Err: assert.AnError}},
	}}
	a := newTestAgent(t, client, config.Config{MaxTurns: -1, RunTimeout: -1, MaxRetries: 1, InitialRetryDelay: time.Millisecond})

	result, err := a.Run(context.Background(), "agent-10", "fail immediately", nil)
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, string(engine.ErrLlmFailed), result.Error)
}

// Events fire across a full run: RunStarted first and RunCompleted
// last.
func TestRun_EmitsLifecycleEvents(t *testing.T) {
	client := &testutil.ScriptedClient{Responses: []testutil.ScriptedResponse{{Content: "done quickly"}}}
	a := newTestAgent(t, client, config.Config{MaxTurns: -1, RunTimeout: -1})

	var mu sync.Mutex
	var kinds []events.Kind
	a.Subscribe("", func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, e.Kind)
	})

	_, err := a.Run(context.Background(), "agent-11", "be quick", nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, kinds)
	assert.Equal(t, events.KindRunStarted, kinds[0])
	assert.Equal(t, events.KindRunCompleted, kinds[len(kinds)-1])
}
