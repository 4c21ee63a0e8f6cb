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

// Package loopdetect implements the loop detector (component C4): it
// watches the bounded ToolCallHistory ring carried on agentstate.State
// for two stall signatures — immediate no-op repetition and a run of
// consecutive failed tool executions — and signals the turn loop controller to
// break out rather than spin.
package loopdetect

import (
	"fmt"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
)

// Config tunes detection sensitivity.
type Config struct {
	// HistorySize bounds the ring kept on State.ToolCallHistory. Older
	// entries are dropped as new ones are recorded.
	HistorySize int

	// RepeatThreshold is the number of consecutive identical
	// (tool, args-hash) calls, all successful with the same output hash,
	// that constitutes a no-op loop. Must be >= 2.
	RepeatThreshold int

	// ConsecutiveFailureThreshold is the number of consecutive
	// execution-error outcomes that constitutes a stalled run.
	ConsecutiveFailureThreshold int
}

func (c *Config) setDefaults() {
	if c.HistorySize <= 0 {
		c.HistorySize = 50
	}
	if c.RepeatThreshold < 2 {
		c.RepeatThreshold = 3
	}
	if c.ConsecutiveFailureThreshold <= 0 {
		c.ConsecutiveFailureThreshold = 3
	}
}

// Reason identifies which signature triggered a LoopDetected signal.
type Reason string

const (
	ReasonRepeatedNoOp        Reason = "repeated_no_op"
	ReasonConsecutiveFailures Reason = "consecutive_failures"
)

// Verdict is the result of a Detector.Check call.
type Verdict struct {
	Detected bool
	Reason   Reason
	// Detail is a short human-readable explanation, suitable for a
	// terminal RunError message.
	Detail string
}

// Detector is stateless: it derives every verdict from the
// ToolCallHistory ring already present on the State it is given, so a
// single Detector can be shared across many concurrent runs.
type Detector struct {
	cfg Config
}

// New builds a Detector with cfg, applying defaults for zero fields.
func New(cfg Config) *Detector {
	cfg.setDefaults()
	return &Detector{cfg: cfg}
}

// Record appends entry to state's history ring, trimming to
// HistorySize. The turn loop controller calls this once per tool
// execution result, before calling Check.
func (d *Detector) Record(state *agentstate.State, entry agentstate.ToolCallHistoryEntry) {
	state.ToolCallHistory = append(state.ToolCallHistory, entry)
	if excess := len(state.ToolCallHistory) - d.cfg.HistorySize; excess > 0 {
		state.ToolCallHistory = state.ToolCallHistory[excess:]
	}
}

// Check inspects state's tool call history for either stall signature.
func (d *Detector) Check(state *agentstate.State) Verdict {
	history := state.ToolCallHistory

	if v := d.checkRepeatedNoOp(history); v.Detected {
		return v
	}
	if v := d.checkConsecutiveFailures(history); v.Detected {
		return v
	}
	return Verdict{}
}

// checkRepeatedNoOp looks for RepeatThreshold consecutive calls with
// the same (ToolName, ArgsHash) pair that all succeeded and produced
// the same canonical output — the signature of a model stuck
// re-issuing an identical call that returns no new information. A
// tool that succeeds repeatedly with the same arguments but keeps
// returning fresh output (a status poll, a paginated fetch) is
// legitimate progress, not a stall, so it must not match here.
func (d *Detector) checkRepeatedNoOp(history []agentstate.ToolCallHistoryEntry) Verdict {
	n := d.cfg.RepeatThreshold
	if len(history) < n {
		return Verdict{}
	}
	tail := history[len(history)-n:]
	head := tail[0]
	if head.Outcome != agentstate.OutcomeSuccess {
		return Verdict{}
	}
	for _, e := range tail[1:] {
		if e.ToolName != head.ToolName || e.ArgsHash != head.ArgsHash {
			return Verdict{}
		}
		if e.Outcome != agentstate.OutcomeSuccess || e.OutputHash != head.OutputHash {
			return Verdict{}
		}
	}
	return Verdict{
		Detected: true,
		Reason:   ReasonRepeatedNoOp,
		Detail:   fmt.Sprintf("tool %s invoked identically %d times in a row with no new output", head.ToolName, n),
	}
}

// checkConsecutiveFailures looks for a run of execution errors long
// enough to indicate the agent cannot make progress on its current
// plan.
func (d *Detector) checkConsecutiveFailures(history []agentstate.ToolCallHistoryEntry) Verdict {
	n := d.cfg.ConsecutiveFailureThreshold
	if len(history) < n {
		return Verdict{}
	}
	tail := history[len(history)-n:]
	for _, e := range tail {
		if e.Outcome != agentstate.OutcomeExecutionError {
			return Verdict{}
		}
	}
	return Verdict{
		Detected: true,
		Reason:   ReasonConsecutiveFailures,
		Detail:   fmt.Sprintf("%d consecutive tool calls failed", n),
	}
}
