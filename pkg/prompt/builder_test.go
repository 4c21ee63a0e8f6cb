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

package prompt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
	"github.com/tessera-ai/agentloop/pkg/model"
	"github.com/tessera-ai/agentloop/pkg/prompt"
)

func TestBuilder_SlotOrder(t *testing.T) {
	b := prompt.New(prompt.Caps{})
	final := "4"

	msgs := b.Build(prompt.Input{
		Goal:               "What's 2+2?",
		Summary:            "earlier turns elided",
		HostSystemMessages: []model.Message{{Role: model.RoleSystem, Content: "host rule"}},
		RetainedTurns: []agentstate.Turn{
			{Index: 0, ModelMessage: agentstate.ModelMessage{Thoughts: "computing", FinalOutput: &final}},
		},
		HostUserMessages: []model.Message{{Role: model.RoleUser, Content: "thanks"}},
	})

	require.True(t, len(msgs) >= 5)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, "host rule", msgs[1].Content)
	assert.Contains(t, msgs[2].Content, "earlier turns elided")
	assert.Contains(t, msgs[3].Content, "What's 2+2?")
	assert.Equal(t, msgs[len(msgs)-1].Content, "thanks")
}

func TestBuilder_TruncatesLongToolOutput(t *testing.T) {
	b := prompt.New(prompt.Caps{MaxToolOutputSize: 20})
	longOutput := strings.Repeat("x", 100)

	msgs := b.Build(prompt.Input{
		Goal: "goal",
		RetainedTurns: []agentstate.Turn{
			{Index: 0, ToolExecutionResults: []agentstate.ToolExecutionResult{
				{ToolName: "search", Outcome: agentstate.OutcomeSuccess, Output: longOutput},
			}},
		},
	})

	var toolMsg *model.Message
	for i := range msgs {
		if msgs[i].Role == model.RoleTool {
			toolMsg = &msgs[i]
		}
	}
	require.NotNil(t, toolMsg)
	assert.LessOrEqual(t, len(toolMsg.Content), 20)
	assert.Contains(t, toolMsg.Content, "[elided]")
}

func TestBuilder_RendersValidationFailureObservation(t *testing.T) {
	b := prompt.New(prompt.Caps{})
	msgs := b.Build(prompt.Input{
		Goal: "goal",
		RetainedTurns: []agentstate.Turn{
			{Index: 0, ToolExecutionResults: []agentstate.ToolExecutionResult{
				{ToolName: "search", Outcome: agentstate.OutcomeValidationFailure, MissingFields: []string{"query"}},
			}},
		},
	})

	found := false
	for _, m := range msgs {
		if m.Role == model.RoleTool {
			found = true
			assert.Contains(t, m.Content, "validation failed")
		}
	}
	assert.True(t, found)
}
