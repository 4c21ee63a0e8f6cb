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

// Package testutil holds hand-written test doubles shared across
// package test suites: a scripted model.Client, a failure-injecting
// statestore.Store wrapper, and a couple of trivial tools. Kept as
// plain structs implementing the narrow interfaces rather than a
// mocking framework, matching the teacher's own test-double style.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
	"github.com/tessera-ai/agentloop/pkg/model"
	"github.com/tessera-ai/agentloop/pkg/statestore"
)

// ScriptedClient replays a fixed sequence of responses, one per Stream
// call, looping on the last entry once exhausted. Each response is
// delivered as a single non-streaming Chunk.
type ScriptedClient struct {
	mu        sync.Mutex
	Responses []ScriptedResponse
	calls     int

	// SupportsFunctions reports SupportsFunctionCalling's return value.
	SupportsFunctions bool

	// Requests records every Request passed to Stream, for assertions.
	Requests []model.Request
}

// ScriptedResponse is one canned reply.
type ScriptedResponse struct {
	Content      string
	FunctionCall *model.FunctionCall
	Err          *model.Error
	Usage        *model.Usage
}

func (c *ScriptedClient) SupportsFunctionCalling() bool { return c.SupportsFunctions }

func (c *ScriptedClient) Stream(ctx context.Context, req model.Request) (<-chan model.Chunk, error) {
	c.mu.Lock()
	c.Requests = append(c.Requests, req)
	idx := c.calls
	if idx >= len(c.Responses) {
		idx = len(c.Responses) - 1
	}
	c.calls++
	c.mu.Unlock()

	if idx < 0 {
		return nil, fmt.Errorf("testutil: ScriptedClient has no responses configured")
	}
	resp := c.Responses[idx]

	ch := make(chan model.Chunk, 1)
	go func() {
		defer close(ch)
		if resp.Err != nil {
			select {
			case ch <- model.Chunk{Err: resp.Err, IsFinal: true}:
			case <-ctx.Done():
			}
			return
		}
		chunk := model.Chunk{
			Content:            resp.Content,
			IsFinal:            true,
			FunctionCall:       resp.FunctionCall,
			ActualResponseType: model.ResponseText,
			Usage:              resp.Usage,
		}
		if resp.FunctionCall != nil {
			chunk.ActualResponseType = model.ResponseFunctionCall
		}
		select {
		case ch <- chunk:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// SleepyClient ignores its scripted content and blocks until ctx is
// cancelled, for exercising cancellation-mid-call paths.
type SleepyClient struct{}

func (SleepyClient) SupportsFunctionCalling() bool { return false }

func (SleepyClient) Stream(ctx context.Context, _ model.Request) (<-chan model.Chunk, error) {
	ch := make(chan model.Chunk)
	go func() {
		defer close(ch)
		<-ctx.Done()
	}()
	return ch, nil
}

// FlakyStore wraps a statestore.Store and fails the first N Save calls
// with a caller-supplied error, then delegates normally.
type FlakyStore struct {
	statestore.Store
	mu           sync.Mutex
	FailuresLeft int
	Err          error
}

func (s *FlakyStore) Save(ctx context.Context, state *agentstate.State) error {
	s.mu.Lock()
	if s.FailuresLeft > 0 {
		s.FailuresLeft--
		s.mu.Unlock()
		if s.Err != nil {
			return s.Err
		}
		return fmt.Errorf("testutil: injected save failure")
	}
	s.mu.Unlock()
	return s.Store.Save(ctx, state)
}

// EchoTool returns its single "value" argument unchanged.
type EchoTool struct{}

func (EchoTool) Name() string        { return "echo" }
func (EchoTool) Description() string { return "returns its value argument unchanged" }
func (EchoTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"value": map[string]any{"type": "string"}},
		"required":   []string{"value"},
	}
}
func (EchoTool) Call(_ context.Context, args map[string]any) (any, error) {
	return args["value"], nil
}

// CalculatorTool adds/subtracts two numeric arguments.
type CalculatorTool struct{}

func (CalculatorTool) Name() string        { return "calculator" }
func (CalculatorTool) Description() string { return "performs a basic arithmetic operation" }
func (CalculatorTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a":  map[string]any{"type": "number"},
			"b":  map[string]any{"type": "number"},
			"op": map[string]any{"type": "string"},
		},
		"required": []string{"a", "b", "op"},
	}
}
func (CalculatorTool) Call(_ context.Context, args map[string]any) (any, error) {
	a, _ := args["a"].(float64)
	b, _ := args["b"].(float64)
	switch args["op"] {
	case "add":
		return a + b, nil
	case "sub":
		return a - b, nil
	default:
		return nil, fmt.Errorf("testutil: unsupported op %v", args["op"])
	}
}
