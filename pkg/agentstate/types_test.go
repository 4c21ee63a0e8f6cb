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

package agentstate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
)

func TestNewState_StartsAtTurnZero(t *testing.T) {
	s := agentstate.NewState("agent-1", "do the thing")
	assert.Equal(t, 0, s.NextTurnIndex())
	assert.Nil(t, s.LastTurn())
}

func TestAppendTurn_RejectsOutOfOrderIndex(t *testing.T) {
	s := agentstate.NewState("agent-1", "goal")
	err := s.AppendTurn(agentstate.Turn{Index: 1})
	require.Error(t, err)
	var invErr *agentstate.InvariantError
	assert.ErrorAs(t, err, &invErr)
}

func TestAppendTurn_AcceptsSequentialTurns(t *testing.T) {
	s := agentstate.NewState("agent-1", "goal")
	require.NoError(t, s.AppendTurn(agentstate.Turn{Index: 0}))
	require.NoError(t, s.AppendTurn(agentstate.Turn{Index: 1}))
	assert.Equal(t, 2, s.NextTurnIndex())
	assert.Equal(t, 1, s.LastTurn().Index)
}

func TestTurn_IsFinal(t *testing.T) {
	final := "done"
	withFinal := agentstate.Turn{ModelMessage: agentstate.ModelMessage{FinalOutput: &final}}
	withoutFinal := agentstate.Turn{ModelMessage: agentstate.ModelMessage{Thoughts: "still working"}}

	assert.True(t, withFinal.IsFinal())
	assert.False(t, withoutFinal.IsFinal())
}

func TestToolExecutionResult_Succeeded(t *testing.T) {
	cases := []struct {
		outcome agentstate.ExecutionOutcome
		want    bool
	}{
		{agentstate.OutcomeSuccess, true},
		{agentstate.OutcomeCacheHit, true},
		{agentstate.OutcomeValidationFailure, false},
		{agentstate.OutcomeExecutionError, false},
		{agentstate.OutcomeTimeout, false},
	}
	for _, c := range cases {
		r := agentstate.ToolExecutionResult{Outcome: c.outcome}
		assert.Equal(t, c.want, r.Succeeded(), "outcome %v", c.outcome)
	}
}
