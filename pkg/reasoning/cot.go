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

// Package reasoning implements the two reasoning engine variants
// (component C6): Chain-of-Thought, a linear sequence of scored steps,
// and Tree-of-Thoughts, a scored search over candidate continuations.
// Neither variant talks to a model.Client directly — callers supply a
// StepGenerator/ExpansionGenerator, keeping prompt construction and
// response parsing in pkg/prompt and the turn loop controller.
package reasoning

import (
	"context"
	"fmt"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
)

// StepGenerator produces the next Chain-of-Thought step given the
// chain accumulated so far and an observation of the previous turn's
// tool results (empty on the first step).
type StepGenerator interface {
	GenerateStep(ctx context.Context, chain *agentstate.ReasoningChain, observation string) (step agentstate.ReasoningStep, finalOutput *string, err error)
}

// CoTConfig tunes Chain-of-Thought termination.
type CoTConfig struct {
	MaxReasoningSteps   int
	ConfidenceThreshold float64
}

func (c *CoTConfig) setDefaults() {
	if c.MaxReasoningSteps <= 0 {
		c.MaxReasoningSteps = 10
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = 0.8
	}
}

// CoTEngine drives the Chain-of-Thought loop (spec §4.5).
type CoTEngine struct {
	cfg CoTConfig
}

// NewCoTEngine builds a CoTEngine with cfg, applying defaults for zero
// fields.
func NewCoTEngine(cfg CoTConfig) *CoTEngine {
	cfg.setDefaults()
	return &CoTEngine{cfg: cfg}
}

// StepResult reports the outcome of one CoTEngine.Step call.
type StepResult struct {
	Terminated  bool
	FinalOutput *string
}

// Step appends exactly one ReasoningStep to chain, generated by gen,
// and reports whether the chain has reached a terminal state: either
// confidence ≥ threshold with a proposed final output, or the step
// budget is exhausted.
func (e *CoTEngine) Step(ctx context.Context, chain *agentstate.ReasoningChain, gen StepGenerator, observation string) (StepResult, error) {
	step, finalOutput, err := gen.GenerateStep(ctx, chain, observation)
	if err != nil {
		return StepResult{}, fmt.Errorf("reasoning: generating step: %w", err)
	}
	chain.AddStep(step)

	if step.Confidence >= e.cfg.ConfidenceThreshold && finalOutput != nil {
		return StepResult{Terminated: true, FinalOutput: finalOutput}, nil
	}
	if len(chain.Steps) >= e.cfg.MaxReasoningSteps {
		// Budget exhausted without reaching the confidence threshold;
		// the caller decides what to do with an inconclusive chain
		// (the turn loop controller uses the chain's last thought as
		// the final output rather than failing the run).
		return StepResult{Terminated: true}, nil
	}
	return StepResult{}, nil
}

// Render serializes chain into the compact numbered list the prompt
// builder injects for the next turn (spec §4.5).
func Render(chain *agentstate.ReasoningChain) string {
	out := ""
	for i, step := range chain.Steps {
		out += fmt.Sprintf("%d. %s", i+1, step.Thought)
		if step.Observation != "" {
			out += fmt.Sprintf(" (observed: %s)", step.Observation)
		}
		out += fmt.Sprintf(" [confidence=%.2f]\n", step.Confidence)
	}
	return out
}
