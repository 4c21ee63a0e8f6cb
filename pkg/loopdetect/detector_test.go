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

package loopdetect_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
	"github.com/tessera-ai/agentloop/pkg/loopdetect"
)

func TestDetector_NoSignalOnFreshState(t *testing.T) {
	d := loopdetect.New(loopdetect.Config{})
	state := agentstate.NewState("agent-1", "goal")

	v := d.Check(state)
	assert.False(t, v.Detected)
}

func TestDetector_RepeatedNoOp(t *testing.T) {
	d := loopdetect.New(loopdetect.Config{RepeatThreshold: 3})
	state := agentstate.NewState("agent-1", "goal")

	for i := 0; i < 3; i++ {
		d.Record(state, agentstate.ToolCallHistoryEntry{
			ToolName:  "search",
			ArgsHash:  "same-hash",
			Outcome:   agentstate.OutcomeSuccess,
			Timestamp: time.Now(),
		})
	}

	v := d.Check(state)
	require.True(t, v.Detected)
	assert.Equal(t, loopdetect.ReasonRepeatedNoOp, v.Reason)
}

func TestDetector_SameArgsDifferingOutputsDoNotTrigger(t *testing.T) {
	d := loopdetect.New(loopdetect.Config{RepeatThreshold: 3})
	state := agentstate.NewState("agent-1", "goal")

	for i := 0; i < 3; i++ {
		d.Record(state, agentstate.ToolCallHistoryEntry{
			ToolName:   "poll_status",
			ArgsHash:   "same-hash",
			Outcome:    agentstate.OutcomeSuccess,
			OutputHash: "output-" + string(rune('a'+i)),
			Timestamp:  time.Now(),
		})
	}

	v := d.Check(state)
	assert.False(t, v.Detected, "identical args with fresh successful outputs each time is progress, not a stall")
}

func TestDetector_RepeatedFailureDoesNotTriggerNoOp(t *testing.T) {
	d := loopdetect.New(loopdetect.Config{RepeatThreshold: 3, ConsecutiveFailureThreshold: 10})
	state := agentstate.NewState("agent-1", "goal")

	for i := 0; i < 3; i++ {
		d.Record(state, agentstate.ToolCallHistoryEntry{
			ToolName: "search",
			ArgsHash: "same-hash",
			Outcome:  agentstate.OutcomeExecutionError,
		})
	}

	v := d.Check(state)
	assert.False(t, v.Detected, "a repeated failing call is a consecutive-failure signal, not a no-op signal")
}

func TestDetector_DifferingArgsDoNotTrigger(t *testing.T) {
	d := loopdetect.New(loopdetect.Config{RepeatThreshold: 3})
	state := agentstate.NewState("agent-1", "goal")

	for i := 0; i < 3; i++ {
		d.Record(state, agentstate.ToolCallHistoryEntry{
			ToolName: "search",
			ArgsHash: "hash-" + string(rune('a'+i)),
			Outcome:  agentstate.OutcomeSuccess,
		})
	}

	v := d.Check(state)
	assert.False(t, v.Detected)
}

func TestDetector_ConsecutiveFailures(t *testing.T) {
	d := loopdetect.New(loopdetect.Config{ConsecutiveFailureThreshold: 2})
	state := agentstate.NewState("agent-1", "goal")

	for i := 0; i < 2; i++ {
		d.Record(state, agentstate.ToolCallHistoryEntry{
			ToolName: "flaky",
			ArgsHash: "hash-" + string(rune('a'+i)),
			Outcome:  agentstate.OutcomeExecutionError,
		})
	}

	v := d.Check(state)
	require.True(t, v.Detected)
	assert.Equal(t, loopdetect.ReasonConsecutiveFailures, v.Reason)
}

func TestDetector_HistoryRingTrimsToSize(t *testing.T) {
	d := loopdetect.New(loopdetect.Config{HistorySize: 2})
	state := agentstate.NewState("agent-1", "goal")

	for i := 0; i < 5; i++ {
		d.Record(state, agentstate.ToolCallHistoryEntry{ToolName: "x", ArgsHash: "h"})
	}

	assert.Len(t, state.ToolCallHistory, 2)
}
