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

// Package model defines the host-supplied language-model adapter
// contract (component C1). The engine depends only on this package;
// concrete provider adapters (Anthropic, OpenAI, Gemini, local models)
// are host responsibilities and are intentionally not implemented here.
package model

import "context"

// Role identifies who authored a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the model-facing conversation.
type Message struct {
	Role       Role   `json:"role"`
	Content    string `json:"content,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// ToolDefinition describes one tool available for function calling, as
// rendered for the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is the structured, provider-agnostic request sent to Stream.
type Request struct {
	Messages        []Message        `json:"messages"`
	Tools           []ToolDefinition `json:"tools,omitempty"`
	MaxTokens       int              `json:"max_tokens,omitempty"`
	Temperature     float64          `json:"temperature,omitempty"`
	TopP            float64          `json:"top_p,omitempty"`
	EnableStreaming bool             `json:"enable_streaming"`
}

// ResponseType classifies how the model actually responded, independent
// of how the host asked it to respond.
type ResponseType string

const (
	ResponseText         ResponseType = "text"
	ResponseStreaming    ResponseType = "streaming"
	ResponseFunctionCall ResponseType = "function_call"
)

// FunctionCall is a native tool call surfaced by the provider.
type FunctionCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Usage reports token accounting for a completed call, when the
// provider exposes it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Chunk is one element of the streamed response. The stream is finite,
// single-pass and not restartable; IsFinal marks the last chunk.
type Chunk struct {
	Content            string
	IsFinal            bool
	FinishReason       string
	FunctionCall       *FunctionCall
	ActualResponseType ResponseType
	Usage              *Usage
	Err                error
}

// Client streams chunks for a Request. Implementations must observe
// ctx cancellation promptly: closing the underlying transport and
// halting emission within a bounded reaction time (spec §5, ≤100ms).
//
// Stream is the sole entry point; SupportsFunctionCalling lets the
// engine's prompt builder decide whether to inject a textual tool
// description or rely on the provider's native tool-calling path
// (spec §4.6).
type Client interface {
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
	SupportsFunctionCalling() bool
}

// FailureKind is the provider-agnostic failure taxonomy from spec §4.6.
// RateLimited and Transient are retryable by the turn loop controller;
// the rest terminate the run (wrapped in a RunError) once retries, if
// any were attempted, are exhausted.
type FailureKind string

const (
	FailureAuth                  FailureKind = "auth_error"
	FailureRateLimited           FailureKind = "rate_limited"
	FailureTransient             FailureKind = "transient"
	FailureInvalidRequest        FailureKind = "invalid_request"
	FailureContextLengthExceeded FailureKind = "context_length_exceeded"
	FailureUnknown               FailureKind = "unknown"
)

// Error wraps a provider failure with its classified Kind so the turn
// loop controller can decide retry eligibility without inspecting
// provider-specific error types.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the turn loop should back off and retry
// rather than terminating the run.
func (e *Error) Retryable() bool {
	return e.Kind == FailureRateLimited || e.Kind == FailureTransient
}
