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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
	"github.com/tessera-ai/agentloop/pkg/canon"
	"github.com/tessera-ai/agentloop/pkg/config"
	"github.com/tessera-ai/agentloop/pkg/events"
	"github.com/tessera-ai/agentloop/pkg/model"
	"github.com/tessera-ai/agentloop/pkg/prompt"
	"github.com/tessera-ai/agentloop/pkg/statestore"
	"github.com/tessera-ai/agentloop/pkg/tool"
)

// RunResult reports the terminal outcome of a Run call (spec §4.1).
type RunResult struct {
	Succeeded   bool
	FinalOutput *string
	Error       string
	TotalTurns  int
}

// StepResult reports the outcome of exactly one Step call.
type StepResult struct {
	Continue          bool
	ExecutedToolCount int
	FinalOutput       *string
	Error             string
}

// turnOutcome is executeTurn's internal result, consumed by both Run's
// loop and Step's single call.
type turnOutcome struct {
	finalOutput  *string
	loopDetected bool
}

// Run drives agentID's goal to termination: BuildPrompt, AwaitModel,
// ParseResponse, {EmitFinal|DispatchTools|RecoverParseError},
// PersistTurn, CheckBudgets, repeated until a terminal condition fires
// (spec §4.1's state machine).
func (a *Agent) Run(ctx context.Context, agentID, goal string, tools []tool.Tool) (RunResult, error) {
	lock := a.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	state, memoized, err := a.loadOrCreate(ctx, agentID, goal)
	if err != nil {
		return RunResult{}, err
	}
	if memoized != nil {
		return *memoized, nil
	}

	registry, executor, err := a.registryFor(tools)
	if err != nil {
		return RunResult{}, &RunError{Code: ErrInvalidConfiguration, Cause: err}
	}

	runStarted := time.Now()
	a.metrics.RecordRunStarted()
	a.bus.Publish(events.Event{Kind: events.KindRunStarted, AgentID: agentID, Timestamp: time.Now(), Payload: events.RunStartedPayload{Goal: goal}})

	consecutiveFailedTurns := 0
	var result RunResult

	for {
		if code := a.checkBudgets(ctx, state, runStarted, consecutiveFailedTurns); code != "" {
			result = a.terminate(state, code)
			break
		}

		outcome, turnErr := a.executeTurn(ctx, state, registry, executor, &consecutiveFailedTurns)
		a.checkpoint(ctx, agentID, state, false)

		if turnErr != nil {
			result = a.terminate(state, classifyTurnErr(turnErr))
			break
		}
		if outcome.finalOutput != nil {
			result = RunResult{Succeeded: true, FinalOutput: outcome.finalOutput, TotalTurns: len(state.Turns)}
			break
		}
		if outcome.loopDetected {
			result = a.terminate(state, ErrLoopDetected)
			break
		}
	}

	a.finalizeRun(agentID, state, result, runStarted)
	return result, nil
}

// Step performs exactly one turn, for hosts that want to drive the loop
// themselves (spec §4.1, §6). Unlike Run, it does not track run-wide
// elapsed time or a cross-call consecutive-failure count: the caller
// owns run-level budget enforcement when using Step directly.
func (a *Agent) Step(ctx context.Context, agentID, goal string, tools []tool.Tool) (StepResult, error) {
	lock := a.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	state, memoized, err := a.loadOrCreate(ctx, agentID, goal)
	if err != nil {
		return StepResult{}, err
	}
	if memoized != nil {
		return StepResult{Continue: false, FinalOutput: memoized.FinalOutput}, nil
	}

	registry, executor, err := a.registryFor(tools)
	if err != nil {
		return StepResult{}, &RunError{Code: ErrInvalidConfiguration, Cause: err}
	}

	if code := a.checkBudgets(ctx, state, time.Now(), 0); code != "" {
		return StepResult{Continue: false, Error: string(code)}, nil
	}

	consecutiveFailedTurns := 0
	outcome, turnErr := a.executeTurn(ctx, state, registry, executor, &consecutiveFailedTurns)
	a.checkpoint(ctx, agentID, state, false)
	if turnErr != nil {
		return StepResult{Continue: false, Error: string(classifyTurnErr(turnErr))}, nil
	}

	toolCount := 0
	if last := state.LastTurn(); last != nil {
		toolCount = len(last.ToolExecutionResults)
	}

	return StepResult{
		Continue:          outcome.finalOutput == nil && !outcome.loopDetected,
		ExecutedToolCount: toolCount,
		FinalOutput:       outcome.finalOutput,
	}, nil
}

// loadOrCreate resumes persisted state for agentID, or starts a fresh
// one. When the persisted state already ends in a final turn for the
// same goal, it is returned as a memoized RunResult without any model
// call (spec §8's idempotence law).
func (a *Agent) loadOrCreate(ctx context.Context, agentID, goal string) (*agentstate.State, *RunResult, error) {
	state, err := a.store.Load(ctx, agentID)
	switch {
	case errors.Is(err, statestore.ErrNotFound):
		return agentstate.NewState(agentID, goal), nil, nil
	case err != nil:
		return nil, nil, &RunError{Code: ErrStateStoreFailed, Cause: err}
	}

	if last := state.LastTurn(); last != nil && last.IsFinal() && state.Goal == goal {
		memo := RunResult{Succeeded: true, FinalOutput: last.ModelMessage.FinalOutput, TotalTurns: len(state.Turns)}
		return state, &memo, nil
	}
	return state, nil, nil
}

// checkBudgets evaluates every CheckBudgets condition from spec §4.1 and
// returns the terminal code that fired, or "" to continue.
func (a *Agent) checkBudgets(ctx context.Context, state *agentstate.State, runStarted time.Time, consecutiveFailedTurns int) RunErrorCode {
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}
	if state.NextTurnIndex() >= a.cfg.MaxTurns {
		return ErrMaxTurns
	}
	// RunTimeout == 0 means "timeout immediately" (spec §8), not
	// "disabled": time.Since(runStarted) is already > 0 the instant any
	// turn work happens, so dropping the old RunTimeout > 0 guard is
	// enough to make a literal zero fire on the very next check.
	if time.Since(runStarted) > a.cfg.RunTimeout {
		return ErrRunTimeout
	}
	if consecutiveFailedTurns >= a.cfg.ConsecutiveFailureThreshold {
		return ErrLoopDetected
	}
	return ""
}

func (a *Agent) terminate(state *agentstate.State, code RunErrorCode) RunResult {
	var finalOutput *string
	if last := state.LastTurn(); last != nil {
		finalOutput = last.ModelMessage.FinalOutput
	}
	return RunResult{Succeeded: false, Error: string(code), FinalOutput: finalOutput, TotalTurns: len(state.Turns)}
}

func classifyTurnErr(err error) RunErrorCode {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCancelled
	}
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Code
	}
	return ErrLlmFailed
}

func (a *Agent) finalizeRun(agentID string, state *agentstate.State, result RunResult, runStarted time.Time) {
	// A best-effort final Save uses a detached context so a cancelled
	// run's partial state is still persisted (spec §5).
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.checkpoint(saveCtx, agentID, state, true)

	elapsed := time.Since(runStarted)
	a.metrics.RecordRunCompleted(result.Succeeded, result.Error, elapsed)
	a.bus.Publish(events.Event{
		Kind: events.KindRunCompleted, AgentID: agentID, Timestamp: time.Now(),
		Payload: events.RunCompletedPayload{Succeeded: result.Succeeded, Error: result.Error, FinalOutput: derefString(result.FinalOutput), TotalTurns: result.TotalTurns},
	})
}

// checkpoint saves state with short exponential backoff on failure,
// grounded in the teacher's task-status retry pattern. Exhaustion is
// logged, not fatal: PersistTurn failures are only escalated to
// state_store_failed by the caller when they occur on the path that
// actually blocks forward progress (loadOrCreate's initial Load).
func (a *Agent) checkpoint(ctx context.Context, agentID string, state *agentstate.State, final bool) {
	const maxAttempts = 3
	backoff := 100 * time.Millisecond
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err = a.store.Save(ctx, state); err == nil {
			return
		}
		slog.Warn("engine: checkpoint save failed, retrying", "agent_id", agentID, "final", final, "attempt", attempt, "error", err)
	}
	slog.Error("engine: checkpoint save failed after retries", "agent_id", agentID, "final", final, "error", err)
}

// executeTurn runs one BuildPrompt..PersistTurn cycle, dispatching to
// the configured reasoning mode, then checks the loop detector against
// the freshly updated tool-call history ring.
func (a *Agent) executeTurn(ctx context.Context, state *agentstate.State, registry *tool.Registry, executor *tool.Executor, consecutiveFailedTurns *int) (turnOutcome, error) {
	turnIndex := state.NextTurnIndex()
	a.bus.Publish(events.Event{Kind: events.KindStepStarted, AgentID: state.AgentID, TurnIndex: turnIndex, Timestamp: time.Now()})

	var outcome turnOutcome
	var err error
	switch a.cfg.ReasoningType {
	case config.ReasoningChainOfThought:
		outcome, err = a.executeCoTTurn(ctx, state, executor)
	case config.ReasoningTreeOfThoughts:
		outcome, err = a.executeToTTurn(ctx, state, executor)
	default:
		outcome, err = a.executePlainTurn(ctx, state, registry, executor)
	}

	a.bus.Publish(events.Event{Kind: events.KindStepCompleted, AgentID: state.AgentID, TurnIndex: turnIndex, Timestamp: time.Now()})

	if err != nil {
		return outcome, err
	}

	last := state.LastTurn()
	if last == nil {
		return outcome, nil
	}
	if turnFailed(last) {
		*consecutiveFailedTurns++
	} else {
		*consecutiveFailedTurns = 0
	}

	if len(last.ToolExecutionResults) > 0 {
		if verdict := a.detector.Check(state); verdict.Detected {
			a.metrics.RecordLoopDetection()
			a.bus.Publish(events.Event{
				Kind: events.KindLoopDetected, AgentID: state.AgentID, TurnIndex: turnIndex, Timestamp: time.Now(),
				Payload: events.LoopDetectedPayload{Reason: string(verdict.Reason), ConsecutiveFailures: *consecutiveFailedTurns},
			})
			outcome.loopDetected = true
		}
	}

	return outcome, nil
}

// turnFailed reports whether t counts toward consecutiveFailedTurns:
// no final answer and no successful (or cache-hit) tool execution
// (spec §4.4).
func turnFailed(t *agentstate.Turn) bool {
	if t.IsFinal() {
		return false
	}
	for _, r := range t.ToolExecutionResults {
		if r.Succeeded() {
			return false
		}
	}
	return true
}

// executePlainTurn implements the reasoningType=None path: one model
// call, parsed as either a final answer or a tool-call batch.
func (a *Agent) executePlainTurn(ctx context.Context, state *agentstate.State, registry *tool.Registry, executor *tool.Executor) (turnOutcome, error) {
	turnIndex := state.NextTurnIndex()
	started := time.Now()

	if err := a.compactor.MaybeCompact(ctx, state, a.summarizer); err != nil {
		slog.Warn("engine: history compaction failed, continuing with full history", "agent_id", state.AgentID, "turn", turnIndex, "error", err)
	}
	if a.cfg.CheckpointBeforeLLM {
		a.checkpoint(ctx, state.AgentID, state, false)
	}

	descriptors := registry.Describe()
	nativeFunctionCalling := a.cfg.UseFunctionCalling && a.client.SupportsFunctionCalling()

	in := prompt.Input{
		Goal:                    state.Goal,
		Summary:                 state.Summary,
		RetainedTurns:           a.compactor.RetainedTurns(state),
		Tools:                   descriptors,
		IncludeToolInstructions: len(descriptors) > 0 && !nativeFunctionCalling,
	}
	messages := a.builder.Build(in)

	var toolDefs []model.ToolDefinition
	if nativeFunctionCalling {
		for _, d := range descriptors {
			toolDefs = append(toolDefs, model.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
		}
	}

	text, functionCall, _, err := a.callModel(ctx, state.AgentID, turnIndex, messages, toolDefs)
	if err != nil {
		return turnOutcome{}, &RunError{Code: ErrLlmFailed, Cause: err}
	}

	turn := agentstate.Turn{Index: turnIndex, StartedAt: started}

	switch {
	case functionCall != nil:
		turn.ModelMessage = agentstate.ModelMessage{
			Thoughts: text,
			ToolCalls: []agentstate.ToolCallRequest{{
				ToolName:  functionCall.Name,
				Arguments: functionCall.Arguments,
				CallID:    callID(functionCall.ID),
			}},
		}
	default:
		if envs, ok := model.ExtractToolCalls(text); ok {
			calls := make([]agentstate.ToolCallRequest, len(envs))
			for i, env := range envs {
				calls[i] = agentstate.ToolCallRequest{ToolName: env.Name(), Arguments: env.Args(), CallID: uuid.NewString()}
			}
			turn.ModelMessage = agentstate.ModelMessage{Thoughts: text, ToolCalls: calls}
		} else if strings.TrimSpace(text) != "" {
			final := text
			turn.ModelMessage = agentstate.ModelMessage{Thoughts: text, FinalOutput: &final}
		} else {
			turn.ModelMessage = agentstate.ModelMessage{Thoughts: ""}
		}
	}

	return a.finishTurn(ctx, state, &turn, executor), nil
}

// executeCoTTurn advances the in-progress Chain-of-Thought artifact by
// exactly one step per outer turn, dispatching any tool calls the step
// requested.
func (a *Agent) executeCoTTurn(ctx context.Context, state *agentstate.State, executor *tool.Executor) (turnOutcome, error) {
	turnIndex := state.NextTurnIndex()
	started := time.Now()

	if state.CurrentReasoningChain == nil {
		state.CurrentReasoningChain = &agentstate.ReasoningChain{}
	}

	observation := ""
	if last := state.LastTurn(); last != nil {
		observation = renderObservation(last)
	}

	adapter := &reasoningAdapter{
		agent: a, agentID: state.AgentID, turnIndex: turnIndex,
		promptIn: prompt.Input{Goal: state.Goal, Summary: state.Summary, RetainedTurns: a.compactor.RetainedTurns(state)},
	}

	stepResult, err := a.cot.Step(ctx, state.CurrentReasoningChain, adapter, observation)
	if err != nil {
		return turnOutcome{}, &RunError{Code: ErrLlmFailed, Cause: err}
	}

	lastStep := state.CurrentReasoningChain.Steps[len(state.CurrentReasoningChain.Steps)-1]
	a.bus.Publish(events.Event{
		Kind: events.KindReasoningStep, AgentID: state.AgentID, TurnIndex: turnIndex, Timestamp: time.Now(),
		Payload: events.ReasoningStepPayload{Thought: lastStep.Thought, Confidence: lastStep.Confidence},
	})

	turn := agentstate.Turn{
		Index: turnIndex, StartedAt: started,
		ModelMessage: agentstate.ModelMessage{Thoughts: lastStep.Thought, ReasoningStep: &lastStep, ToolCalls: adapter.lastToolCalls},
	}

	if stepResult.FinalOutput != nil {
		turn.ModelMessage.FinalOutput = stepResult.FinalOutput
	}

	outcome := a.finishTurn(ctx, state, &turn, executor)

	if stepResult.Terminated {
		state.CurrentReasoningChain = nil
		if outcome.finalOutput == nil {
			// Step budget exhausted without the model proposing an
			// answer; surface the chain's last thought rather than
			// leaving the run with no path to termination.
			final := lastStep.Thought
			outcome.finalOutput = &final
		}
	}

	return outcome, nil
}

// executeToTTurn runs a full Tree-of-Thoughts search to completion
// within a single outer turn: unlike Chain-of-Thought's one-step-per-
// turn pacing, a ToT search owns its own internal frontier loop (spec
// §4.5) and is not naturally decomposable into the outer turn loop's
// one-model-call granularity, so it always finalizes in the turn it
// starts.
func (a *Agent) executeToTTurn(ctx context.Context, state *agentstate.State, executor *tool.Executor) (turnOutcome, error) {
	turnIndex := state.NextTurnIndex()
	started := time.Now()

	if state.CurrentReasoningTree == nil {
		state.CurrentReasoningTree = &agentstate.ReasoningTree{
			Root: &agentstate.ReasoningNode{ID: "root", State: state.Goal, Depth: 0},
		}
	}

	adapter := &reasoningAdapter{
		agent: a, agentID: state.AgentID, turnIndex: turnIndex,
		promptIn: prompt.Input{Goal: state.Goal, Summary: state.Summary, RetainedTurns: a.compactor.RetainedTurns(state)},
	}

	result, err := a.tot.Run(ctx, state.CurrentReasoningTree, adapter)
	if err != nil {
		return turnOutcome{}, &RunError{Code: ErrLlmFailed, Cause: err}
	}

	final := result.WinningNode.State
	turn := agentstate.Turn{
		Index: turnIndex, StartedAt: started,
		ModelMessage: agentstate.ModelMessage{
			Thoughts:    fmt.Sprintf("tree-of-thoughts search selected node %s (score=%.2f, acceptedEarly=%v)", result.WinningNode.ID, result.WinningNode.Score, result.AcceptedEarly),
			FinalOutput: &final,
		},
	}
	state.CurrentReasoningTree = nil

	return a.finishTurn(ctx, state, &turn, executor), nil
}

// finishTurn applies the EmitFinal/DispatchTools/RecoverParseError
// branch of spec §4.1's state machine and persists turn onto state via
// AppendTurn.
func (a *Agent) finishTurn(ctx context.Context, state *agentstate.State, turn *agentstate.Turn, executor *tool.Executor) turnOutcome {
	defer func() {
		turn.CompletedAt = time.Now()
		if err := state.AppendTurn(*turn); err != nil {
			slog.Error("engine: append turn invariant violated", "agent_id", state.AgentID, "turn", turn.Index, "error", err)
		}
	}()

	if turn.ModelMessage.FinalOutput != nil {
		if len(turn.ModelMessage.ToolCalls) > 0 {
			slog.Warn("engine: final output and tool calls both present, discarding tool calls", "agent_id", state.AgentID, "turn", turn.Index)
			turn.ModelMessage.ToolCalls = nil
		}
		return turnOutcome{finalOutput: turn.ModelMessage.FinalOutput}
	}

	if len(turn.ModelMessage.ToolCalls) == 0 {
		turn.Error = "model did not return a recognized final answer or tool call; asking it to retry with valid structured output"
		return turnOutcome{}
	}

	a.dispatchTools(ctx, state, turn, executor)
	return turnOutcome{}
}

// dispatchTools invokes turn's tool-call batch and records events,
// metrics, and loop-detection history for each result. ToolCallStarted
// is withheld for calls the dedupe cache will serve from cache (spec
// §8 invariant 4); this pre-check uses the call's raw arguments, while
// the executor's own cache lookup uses the validated (possibly coerced)
// arguments, so a call whose arguments validation coerces can still get
// a ToolCallStarted even when the executor then serves it from cache.
func (a *Agent) dispatchTools(ctx context.Context, state *agentstate.State, turn *agentstate.Turn, executor *tool.Executor) {
	for _, call := range turn.ModelMessage.ToolCalls {
		if _, _, hit := a.dedupe.Lookup(call.ToolName, call.Arguments); !hit {
			a.bus.Publish(events.Event{
				Kind: events.KindToolCallStarted, AgentID: state.AgentID, TurnIndex: turn.Index, Timestamp: time.Now(),
				Payload: events.ToolCallPayload{ToolName: call.ToolName, CallID: call.CallID},
			})
		}
	}

	stopHeartbeat := a.maybeStartHeartbeat(state.AgentID, turn.Index, len(turn.ModelMessage.ToolCalls))
	results := executor.InvokeBatch(ctx, turn.ModelMessage.ToolCalls)
	stopHeartbeat()

	turn.ToolExecutionResults = results

	for _, r := range results {
		a.bus.Publish(events.Event{
			Kind: events.KindToolCallCompleted, AgentID: state.AgentID, TurnIndex: turn.Index, Timestamp: time.Now(),
			Payload: events.ToolCallPayload{
				ToolName: r.ToolName, CallID: r.CallID, Success: r.Succeeded(),
				CacheHit: r.Outcome == agentstate.OutcomeCacheHit, Error: r.ErrorMessage, Elapsed: r.Elapsed,
			},
		})
		a.metrics.RecordToolCall(r.ToolName, r.Succeeded(), r.Elapsed)
		switch r.Outcome {
		case agentstate.OutcomeCacheHit:
			a.metrics.RecordDedupeHit()
		case agentstate.OutcomeSuccess:
			a.metrics.RecordDedupeMiss()
		}
		var outputHash string
		if r.Outcome == agentstate.OutcomeSuccess {
			outputHash = canon.HashValue(r.Output)
		}
		a.detector.Record(state, agentstate.ToolCallHistoryEntry{
			ToolName: r.ToolName, ArgsHash: r.InputFingerprint, Outcome: r.Outcome,
			OutputHash: outputHash, Timestamp: time.Now(),
		})
	}

	if a.cfg.CheckpointAfterTools {
		a.checkpoint(ctx, state.AgentID, state, false)
	}
}

// maybeStartHeartbeat emits one StatusUpdate after
// StatusHeartbeatFraction*toolTimeout elapses, if the batch is still
// running by then (SPEC_FULL supplemental feature 3). The returned
// func must be called once the batch completes to cancel the timer.
func (a *Agent) maybeStartHeartbeat(agentID string, turnIndex, batchSize int) func() {
	if !a.cfg.EmitPublicStatus || batchSize == 0 {
		return func() {}
	}
	delay := time.Duration(float64(a.cfg.ToolTimeout) * a.cfg.StatusHeartbeatFraction)
	timer := time.AfterFunc(delay, func() {
		a.bus.Publish(events.Event{
			Kind: events.KindStatusUpdate, AgentID: agentID, TurnIndex: turnIndex, Timestamp: time.Now(),
			Payload: events.StatusUpdatePayload{Message: fmt.Sprintf("%d tool call(s) still running", batchSize)},
		})
	})
	return func() { timer.Stop() }
}

func renderObservation(t *agentstate.Turn) string {
	if len(t.ToolExecutionResults) == 0 {
		return ""
	}
	parts := make([]string, 0, len(t.ToolExecutionResults))
	for _, r := range t.ToolExecutionResults {
		parts = append(parts, fmt.Sprintf("%s: %s", r.ToolName, summarizeOutcome(r)))
	}
	return strings.Join(parts, "; ")
}

func summarizeOutcome(r agentstate.ToolExecutionResult) string {
	switch r.Outcome {
	case agentstate.OutcomeSuccess, agentstate.OutcomeCacheHit:
		return fmt.Sprintf("%v", r.Output)
	case agentstate.OutcomeValidationFailure:
		return "validation failed"
	case agentstate.OutcomeTimeout:
		return "timed out"
	default:
		return r.ErrorMessage
	}
}

func callID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// modelSummarizer is the default history.Summarizer: a model call
// asking for a compact recap of the elided turns, used unless the host
// overrides it via WithSummarizer (e.g. with
// history.NewDeterministicTextualizer to avoid the extra model call).
type modelSummarizer struct{ agent *Agent }

func (s *modelSummarizer) Summarize(ctx context.Context, priorSummary string, elided []agentstate.Turn, maxLength int) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following prior progress in at most %d characters, preserving concrete facts and tool results.\n", maxLength)
	if priorSummary != "" {
		b.WriteString("Existing summary: ")
		b.WriteString(priorSummary)
		b.WriteString("\n")
	}
	for _, turn := range elided {
		fmt.Fprintf(&b, "[turn %d] %s\n", turn.Index, turn.ModelMessage.Thoughts)
	}

	messages := []model.Message{
		{Role: model.RoleSystem, Content: "You compress prior agent progress into a short factual summary."},
		{Role: model.RoleUser, Content: b.String()},
	}
	text, _, _, err := s.agent.callModel(ctx, "summarizer", -1, messages, nil)
	if err != nil {
		return "", fmt.Errorf("engine: summarization model call: %w", err)
	}
	return text, nil
}
