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

package reasoning_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
	"github.com/tessera-ai/agentloop/pkg/reasoning"
)

type scriptedGenerator struct {
	steps []agentstate.ReasoningStep
	final []*string
	call  int
}

func (g *scriptedGenerator) GenerateStep(_ context.Context, _ *agentstate.ReasoningChain, _ string) (agentstate.ReasoningStep, *string, error) {
	step := g.steps[g.call]
	final := g.final[g.call]
	g.call++
	return step, final, nil
}

func ptr(s string) *string { return &s }

func TestCoTEngine_TerminatesOnConfidenceAndFinalOutput(t *testing.T) {
	gen := &scriptedGenerator{
		steps: []agentstate.ReasoningStep{
			{Thought: "checking", Confidence: 0.5},
			{Thought: "confident now", Confidence: 0.9},
		},
		final: []*string{nil, ptr("42")},
	}
	engine := reasoning.NewCoTEngine(reasoning.CoTConfig{ConfidenceThreshold: 0.8, MaxReasoningSteps: 10})
	chain := &agentstate.ReasoningChain{}

	res, err := engine.Step(context.Background(), chain, gen, "")
	require.NoError(t, err)
	assert.False(t, res.Terminated)

	res, err = engine.Step(context.Background(), chain, gen, "")
	require.NoError(t, err)
	assert.True(t, res.Terminated)
	require.NotNil(t, res.FinalOutput)
	assert.Equal(t, "42", *res.FinalOutput)
	assert.Len(t, chain.Steps, 2)
	assert.Equal(t, 0.9, chain.FinalConfidence)
}

func TestCoTEngine_TerminatesOnStepBudget(t *testing.T) {
	gen := &scriptedGenerator{
		steps: []agentstate.ReasoningStep{{Thought: "still thinking", Confidence: 0.1}},
		final: []*string{nil},
	}
	engine := reasoning.NewCoTEngine(reasoning.CoTConfig{ConfidenceThreshold: 0.9, MaxReasoningSteps: 1})
	chain := &agentstate.ReasoningChain{}

	res, err := engine.Step(context.Background(), chain, gen, "")
	require.NoError(t, err)
	assert.True(t, res.Terminated)
	assert.Nil(t, res.FinalOutput)
}

func TestRender_ProducesNumberedList(t *testing.T) {
	chain := &agentstate.ReasoningChain{}
	chain.AddStep(agentstate.ReasoningStep{Thought: "first", Confidence: 0.3})
	chain.AddStep(agentstate.ReasoningStep{Thought: "second", Observation: "got data", Confidence: 0.7})

	out := reasoning.Render(chain)
	assert.Contains(t, out, "1. first")
	assert.Contains(t, out, "2. second (observed: got data)")
}
