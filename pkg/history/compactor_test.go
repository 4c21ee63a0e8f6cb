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

package history_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
	"github.com/tessera-ai/agentloop/pkg/history"
)

type stubSummarizer struct{ calls int }

func (s *stubSummarizer) Summarize(_ context.Context, prior string, elided []agentstate.Turn, _ int) (string, error) {
	s.calls++
	return "summary of turns", nil
}

func buildState(turnCount int) *agentstate.State {
	state := agentstate.NewState("agent-1", "goal")
	for i := 0; i < turnCount; i++ {
		_ = state.AppendTurn(agentstate.Turn{Index: i})
	}
	return state
}

func TestCompactor_NoOpBelowBound(t *testing.T) {
	c := history.New(history.Config{Enabled: true, MaxRecentTurns: 10})
	state := buildState(5)
	sum := &stubSummarizer{}

	require.NoError(t, c.MaybeCompact(context.Background(), state, sum))
	assert.Equal(t, 0, sum.calls)
	assert.Empty(t, state.Summary)
}

func TestCompactor_SummarizesExcessTurns(t *testing.T) {
	c := history.New(history.Config{Enabled: true, MaxRecentTurns: 3})
	state := buildState(10)
	sum := &stubSummarizer{}

	require.NoError(t, c.MaybeCompact(context.Background(), state, sum))
	assert.Equal(t, 1, sum.calls)
	assert.Equal(t, "summary of turns", state.Summary)
	assert.Len(t, state.Turns, 10, "compaction must never remove turns from the authoritative state")
}

func TestCompactor_DisabledNeverSummarizes(t *testing.T) {
	c := history.New(history.Config{Enabled: false, MaxRecentTurns: 1})
	state := buildState(10)
	sum := &stubSummarizer{}

	require.NoError(t, c.MaybeCompact(context.Background(), state, sum))
	assert.Equal(t, 0, sum.calls)
}

func TestCompactor_RetainedTurnsReturnsTail(t *testing.T) {
	c := history.New(history.Config{MaxRecentTurns: 3})
	state := buildState(5)

	retained := c.RetainedTurns(state)
	require.Len(t, retained, 3)
	assert.Equal(t, 2, retained[0].Index)
	assert.Equal(t, 4, retained[2].Index)
}
