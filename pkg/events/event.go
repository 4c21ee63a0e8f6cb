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

// Package events implements the event and metrics bus (component C8):
// a non-blocking, copy-on-write fan-out of lifecycle events, plus a
// Prometheus-backed metrics collector with reservoir-sampled
// percentiles (spec §4.8, §9).
package events

import "time"

// Kind identifies the lifecycle event being emitted.
type Kind string

const (
	KindRunStarted        Kind = "run_started"
	KindRunCompleted      Kind = "run_completed"
	KindStepStarted       Kind = "step_started"
	KindStepCompleted     Kind = "step_completed"
	KindLlmCallStarted    Kind = "llm_call_started"
	KindLlmCallCompleted  Kind = "llm_call_completed"
	KindLlmChunkReceived  Kind = "llm_chunk_received"
	KindToolCallStarted   Kind = "tool_call_started"
	KindToolCallCompleted Kind = "tool_call_completed"
	KindStatusUpdate      Kind = "status_update"
	KindLoopDetected      Kind = "loop_detected"
	KindReasoningStep     Kind = "reasoning_step"
)

// Event is one lifecycle notification. Payload's concrete type is
// determined by Kind; see the Kind*Payload types below.
type Event struct {
	Kind      Kind
	AgentID   string
	TurnIndex int
	Timestamp time.Time
	Payload   any
}

// RunStartedPayload accompanies KindRunStarted.
type RunStartedPayload struct {
	Goal string
}

// RunCompletedPayload accompanies KindRunCompleted.
type RunCompletedPayload struct {
	Succeeded   bool
	Error       string
	FinalOutput string
	TotalTurns  int
}

// LlmCallPayload accompanies KindLlmCallCompleted.
type LlmCallPayload struct {
	Succeeded bool
	Error     string
	Elapsed   time.Duration
}

// LlmChunkPayload accompanies KindLlmChunkReceived. Content has already
// passed through the streaming chunk filter (C9) by the time it
// reaches this event.
type LlmChunkPayload struct {
	Content string
	IsFinal bool
}

// ToolCallPayload accompanies KindToolCallStarted/KindToolCallCompleted.
type ToolCallPayload struct {
	ToolName string
	CallID   string
	Success  bool
	CacheHit bool
	Error    string
	Elapsed  time.Duration
}

// StatusUpdatePayload accompanies KindStatusUpdate, a heartbeat emitted
// during long-running tool batches.
type StatusUpdatePayload struct {
	Message string
}

// LoopDetectedPayload accompanies KindLoopDetected.
type LoopDetectedPayload struct {
	Reason              string
	ConsecutiveFailures int
}

// ReasoningStepPayload accompanies KindReasoningStep.
type ReasoningStepPayload struct {
	Thought    string
	Confidence float64
}
