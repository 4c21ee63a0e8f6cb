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
	"encoding/json"
	"fmt"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
	"github.com/tessera-ai/agentloop/pkg/model"
	"github.com/tessera-ai/agentloop/pkg/prompt"
	"github.com/tessera-ai/agentloop/pkg/reasoning"
)

// reasoningEnvelope is the structured-output shape a model is asked to
// produce for one Chain-of-Thought step or Tree-of-Thoughts expansion.
// Both engines share one envelope so a single prompt instruction covers
// either mode.
type reasoningEnvelope struct {
	Thought     string                    `json:"thought"`
	Observation string                    `json:"observation"`
	Confidence  float64                   `json:"confidence"`
	FinalOutput *string                   `json:"final_output"`
	ToolCalls   []model.ToolCallEnvelope  `json:"tool_calls"`
	Candidates  []reasoning.Candidate     `json:"candidates"`
}

const reasoningInstruction = `Respond with a single JSON object: {"thought": string, "observation": string, "confidence": number between 0 and 1, "final_output": string or null, "tool_calls": array (optional)}. Set final_output only once you are ready to answer.`

const expansionInstruction = `Propose up to %d candidate next reasoning states branching from the current one. Respond with a single JSON object: {"candidates": [{"state": string, "score": number between 0 and 1}, ...]}.`

// reasoningAdapter bridges the turn loop controller's model access to
// the reasoning package's StepGenerator/ExpansionGenerator interfaces,
// so neither reasoning.CoTEngine nor reasoning.ToTEngine needs to know
// about model.Client, prompt.Builder, or event emission.
type reasoningAdapter struct {
	agent     *Agent
	agentID   string
	turnIndex int
	promptIn  prompt.Input

	// lastToolCalls is populated by the most recent GenerateStep call,
	// since reasoning.StepGenerator's return shape has no room for
	// tool calls; the turn loop controller reads it immediately after.
	lastToolCalls []agentstate.ToolCallRequest
}

func (r *reasoningAdapter) GenerateStep(ctx context.Context, chain *agentstate.ReasoningChain, observation string) (agentstate.ReasoningStep, *string, error) {
	r.lastToolCalls = nil

	in := r.promptIn
	in.HostUserMessages = append(append([]model.Message{}, in.HostUserMessages...), model.Message{
		Role:    model.RoleUser,
		Content: reasoningInstruction + "\nReasoning so far:\n" + reasoning.Render(chain) + "\nObservation: " + observation,
	})
	messages := r.agent.builder.Build(in)

	text, _, _, err := r.agent.callModel(ctx, r.agentID, r.turnIndex, messages, nil)
	if err != nil {
		return agentstate.ReasoningStep{}, nil, fmt.Errorf("engine: reasoning step model call: %w", err)
	}

	env, ok := parseReasoningEnvelope(text)
	if !ok {
		// Unparseable structured output; fall back to treating the
		// whole reply as the thought at zero confidence rather than
		// failing the step outright.
		return agentstate.ReasoningStep{Thought: text}, nil, nil
	}

	for _, tc := range env.ToolCalls {
		r.lastToolCalls = append(r.lastToolCalls, agentstate.ToolCallRequest{ToolName: tc.Name(), Arguments: tc.Args(), CallID: callID("")})
	}

	step := agentstate.ReasoningStep{Thought: env.Thought, Observation: env.Observation, Confidence: env.Confidence}
	return step, env.FinalOutput, nil
}

func (r *reasoningAdapter) Expand(ctx context.Context, node *agentstate.ReasoningNode, maxBranching int) ([]reasoning.Candidate, error) {
	in := r.promptIn
	in.HostUserMessages = append(append([]model.Message{}, in.HostUserMessages...), model.Message{
		Role:    model.RoleUser,
		Content: fmt.Sprintf(expansionInstruction, maxBranching) + "\nCurrent state: " + node.State,
	})
	messages := r.agent.builder.Build(in)

	text, _, _, err := r.agent.callModel(ctx, r.agentID, r.turnIndex, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("engine: tree-of-thoughts expansion model call: %w", err)
	}

	env, ok := parseReasoningEnvelope(text)
	if !ok || len(env.Candidates) == 0 {
		return nil, fmt.Errorf("engine: model did not return any expansion candidates")
	}
	if len(env.Candidates) > maxBranching {
		env.Candidates = env.Candidates[:maxBranching]
	}
	return env.Candidates, nil
}

func parseReasoningEnvelope(text string) (reasoningEnvelope, bool) {
	candidate := model.StripFences(text)
	if candidate == "" || candidate[0] != '{' {
		return reasoningEnvelope{}, false
	}
	var env reasoningEnvelope
	if err := json.Unmarshal([]byte(candidate), &env); err != nil {
		return reasoningEnvelope{}, false
	}
	return env, true
}
