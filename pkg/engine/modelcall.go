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

package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tessera-ai/agentloop/pkg/events"
	"github.com/tessera-ai/agentloop/pkg/model"
	"github.com/tessera-ai/agentloop/pkg/streamfilter"
)

// callModel drives one logical model call to completion, including the
// retry/backoff policy of spec §4.1: rate-limited and transient
// failures are retried with exponential backoff up to cfg.MaxRetries;
// anything else, or retry exhaustion, is returned as an error the
// caller wraps into a RunError{Code: ErrLlmFailed}.
//
// Visible streamed content is published to the event bus via the
// streaming chunk filter as it arrives; tool-call scaffolding and
// function-call argument text are never forwarded (spec §4.9).
func (a *Agent) callModel(ctx context.Context, agentID string, turnIndex int, messages []model.Message, tools []model.ToolDefinition) (string, *model.FunctionCall, *model.Usage, error) {
	req := model.Request{
		Messages:        messages,
		Tools:           tools,
		MaxTokens:       a.cfg.MaxTokens,
		Temperature:     a.cfg.Temperature,
		TopP:            a.cfg.TopP,
		EnableStreaming: true,
	}

	delay := a.cfg.InitialRetryDelay
	var lastErr error

	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", nil, nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > a.cfg.MaxRetryDelay {
				delay = a.cfg.MaxRetryDelay
			}
		}

		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return "", nil, nil, err
			}
		}

		text, fc, usage, err := a.streamOnce(ctx, agentID, turnIndex, req)
		if err == nil {
			return text, fc, usage, nil
		}
		lastErr = err

		if errors.Is(ctx.Err(), context.Canceled) {
			return "", nil, nil, ctx.Err()
		}
		var modelErr *model.Error
		if !errors.As(err, &modelErr) || !modelErr.Retryable() {
			return "", nil, nil, err
		}
		slog.Warn("engine: model call failed, retrying", "agent_id", agentID, "turn", turnIndex, "attempt", attempt, "kind", modelErr.Kind)
	}

	return "", nil, nil, lastErr
}

// streamOnce performs exactly one Stream call and aggregates its
// chunks. The streaming chunk filter runs over every content chunk
// regardless of whether the caller ultimately treats the reply as a
// tool call or a final answer, since the filter's job is to decide
// what reaches subscribers, not what the engine itself parses.
func (a *Agent) streamOnce(ctx context.Context, agentID string, turnIndex int, req model.Request) (string, *model.FunctionCall, *model.Usage, error) {
	ctx, span := a.tracer.Start(ctx, "agentloop.llm_call")
	defer span.End()
	span.SetAttributes(attribute.String("agent_id", agentID), attribute.Int("turn", turnIndex))

	started := time.Now()
	a.bus.Publish(events.Event{Kind: events.KindLlmCallStarted, AgentID: agentID, TurnIndex: turnIndex, Timestamp: time.Now()})

	chunks, err := a.client.Stream(ctx, req)
	if err != nil {
		a.finishLlmCall(agentID, turnIndex, started, false, classifyModelErr(err), span, err)
		return "", nil, nil, err
	}

	var content string
	var functionCall *model.FunctionCall
	var usage *model.Usage
	filter := streamfilter.New()

	for chunk := range chunks {
		if chunk.Err != nil {
			a.finishLlmCall(agentID, turnIndex, started, false, classifyModelErr(chunk.Err), span, chunk.Err)
			return "", nil, nil, chunk.Err
		}
		if chunk.FunctionCall != nil {
			functionCall = chunk.FunctionCall
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		content += chunk.Content
		if chunk.FunctionCall == nil && chunk.Content != "" {
			if v := filter.Feed(chunk.Content); v != "" {
				a.bus.Publish(events.Event{
					Kind: events.KindLlmChunkReceived, AgentID: agentID, TurnIndex: turnIndex, Timestamp: time.Now(),
					Payload: events.LlmChunkPayload{Content: v, IsFinal: chunk.IsFinal},
				})
			}
		}
		if err := ctx.Err(); err != nil {
			a.finishLlmCall(agentID, turnIndex, started, false, "cancelled", span, err)
			return "", nil, nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		a.finishLlmCall(agentID, turnIndex, started, false, "cancelled", span, err)
		return "", nil, nil, err
	}
	if tail := filter.Flush(); tail != "" {
		a.bus.Publish(events.Event{Kind: events.KindLlmChunkReceived, AgentID: agentID, TurnIndex: turnIndex, Timestamp: time.Now(), Payload: events.LlmChunkPayload{Content: tail, IsFinal: true}})
	}

	a.finishLlmCall(agentID, turnIndex, started, true, "", span, nil)
	if usage != nil {
		a.metrics.RecordTokenUsage("default", usage.InputTokens, usage.OutputTokens)
	}
	return content, functionCall, usage, nil
}

func (a *Agent) finishLlmCall(agentID string, turnIndex int, started time.Time, succeeded bool, failureKind string, span trace.Span, err error) {
	elapsed := time.Since(started)
	a.metrics.RecordLlmCall(succeeded, failureKind, elapsed)
	a.bus.Publish(events.Event{
		Kind: events.KindLlmCallCompleted, AgentID: agentID, TurnIndex: turnIndex, Timestamp: time.Now(),
		Payload: events.LlmCallPayload{Succeeded: succeeded, Error: errString(err), Elapsed: elapsed},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func classifyModelErr(err error) string {
	var modelErr *model.Error
	if errors.As(err, &modelErr) {
		return string(modelErr.Kind)
	}
	return string(model.FailureUnknown)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
