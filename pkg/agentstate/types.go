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

// Package agentstate defines the persisted data model for a single agent
// run: the goal, the ordered turn history, the active reasoning artifact,
// and the bounded tool-call ring used for loop detection.
//
// Types in this package are pure data. They carry no behavior beyond
// small invariant-preserving helpers; the turn loop controller in
// pkg/engine is what mutates them, and pkg/statestore is what persists
// them.
package agentstate

import "time"

// SchemaVersion is bumped whenever the on-disk/at-rest shape of State
// changes in a way a statestore.Store implementation must know about.
const SchemaVersion = 1

// State is the opaque-to-callers, canonical record of one agent's
// progress toward a goal. Turn indices are contiguous and strictly
// increasing from 0; callers must not reorder or remove entries from
// Turns directly — use the accessor helpers below.
type State struct {
	SchemaVersion int    `json:"schema_version"`
	AgentID       string `json:"agent_id"`

	// Goal is frozen after the first turn is appended.
	Goal string `json:"goal"`

	Turns []Turn `json:"turns"`

	// CurrentReasoningChain holds the in-progress Chain-of-Thought
	// artifact, if reasoningType is ChainOfThought. Nil otherwise, or
	// once the chain has produced a final answer.
	CurrentReasoningChain *ReasoningChain `json:"current_reasoning_chain,omitempty"`

	// CurrentReasoningTree holds the in-progress Tree-of-Thoughts
	// artifact, if reasoningType is TreeOfThoughts.
	CurrentReasoningTree *ReasoningTree `json:"current_reasoning_tree,omitempty"`

	// Summary elides turns older than maxRecentTurns for prompt
	// construction purposes. Turns themselves are never deleted.
	Summary string `json:"summary,omitempty"`

	// ToolCallHistory is a bounded ring of recent tool invocations,
	// consulted by the loop detector (pkg/loopdetect).
	ToolCallHistory []ToolCallHistoryEntry `json:"tool_call_history,omitempty"`
}

// NewState creates a fresh State for agentID/goal with schema version
// set to the current version.
func NewState(agentID, goal string) *State {
	return &State{
		SchemaVersion: SchemaVersion,
		AgentID:       agentID,
		Goal:          goal,
	}
}

// NextTurnIndex returns the index the next appended Turn must use.
func (s *State) NextTurnIndex() int {
	return len(s.Turns)
}

// LastTurn returns the most recently appended turn, or nil if none.
func (s *State) LastTurn() *Turn {
	if len(s.Turns) == 0 {
		return nil
	}
	return &s.Turns[len(s.Turns)-1]
}

// AppendTurn appends t, enforcing the contiguous-index invariant.
func (s *State) AppendTurn(t Turn) error {
	if t.Index != s.NextTurnIndex() {
		return &InvariantError{Msg: "turn index out of order"}
	}
	s.Turns = append(s.Turns, t)
	return nil
}

// InvariantError reports violation of a documented State/Turn invariant.
// These indicate a programming error in the caller or the engine, never
// a recoverable runtime condition.
type InvariantError struct{ Msg string }

func (e *InvariantError) Error() string { return "agentstate: invariant violated: " + e.Msg }

// Turn is one iteration record: a model call, an optional tool batch,
// and bookkeeping. A turn is either *final* (FinalOutput set, no
// successor turn will be appended) or *continuing* (it produced tool
// calls, or a recoverable parse error was appended as a synthetic
// observation).
type Turn struct {
	Index                int                    `json:"index"`
	ModelMessage         ModelMessage           `json:"model_message"`
	ToolExecutionResults []ToolExecutionResult  `json:"tool_execution_results,omitempty"`
	StartedAt            time.Time              `json:"started_at"`
	CompletedAt          time.Time              `json:"completed_at"`
	Error                string                 `json:"error,omitempty"`
}

// IsFinal reports whether this turn carries a final answer.
func (t *Turn) IsFinal() bool { return t.ModelMessage.FinalOutput != nil }

// ModelMessage is the parsed reasoning artifact produced by one model
// call. At most one of FinalOutput / ToolCalls is "active" per turn; if
// both are populated, FinalOutput wins (spec §4.1) and the tool calls
// are discarded with a logged warning; no event is published on the
// bus for the discard.
type ModelMessage struct {
	Thoughts      string             `json:"thoughts,omitempty"`
	FinalOutput   *string            `json:"final_output,omitempty"`
	ToolCalls     []ToolCallRequest  `json:"tool_calls,omitempty"`
	ReasoningStep *ReasoningStep     `json:"reasoning_step,omitempty"`
}

// ToolCallRequest is a single tool invocation the model asked for.
type ToolCallRequest struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	CallID    string         `json:"call_id"`
}

// ExecutionOutcome classifies how a ToolExecutionResult concluded.
type ExecutionOutcome string

const (
	OutcomeSuccess           ExecutionOutcome = "success"
	OutcomeValidationFailure ExecutionOutcome = "validation_failure"
	OutcomeTimeout           ExecutionOutcome = "timeout"
	OutcomeExecutionError    ExecutionOutcome = "execution_error"
	OutcomeCacheHit          ExecutionOutcome = "cache_hit"
)

// ErrorClass classifies ExecutionError outcomes for retry eligibility.
// Only Transient errors are eligible for caller-initiated retry.
type ErrorClass string

const (
	ErrorClassTransient ErrorClass = "transient"
	ErrorClassPermanent ErrorClass = "permanent"
	ErrorClassArgument  ErrorClass = "argument"
)

// ToolExecutionResult is the tagged-union result of dispatching one
// ToolCallRequest. Exactly one of the Success/ValidationFailure/
// Timeout/ExecutionError/CacheHit payloads is meaningful, selected by
// Outcome.
type ToolExecutionResult struct {
	ToolName        string           `json:"tool_name"`
	CallID          string           `json:"call_id"`
	InputFingerprint string          `json:"input_fingerprint"`
	Outcome         ExecutionOutcome `json:"outcome"`

	// Success
	Output any `json:"output,omitempty"`

	// ValidationFailure
	MissingFields []string          `json:"missing_fields,omitempty"`
	TypeErrors    map[string]string `json:"type_errors,omitempty"`

	// ExecutionError
	ErrorMessage    string     `json:"error_message,omitempty"`
	Classification  ErrorClass `json:"classification,omitempty"`

	// CacheHit
	CacheAge time.Duration `json:"cache_age,omitempty"`

	Elapsed   time.Duration `json:"elapsed"`
	StartedAt time.Time     `json:"started_at"`
}

// Succeeded reports whether this result represents forward progress
// (a real success or a cache hit standing in for one).
func (r *ToolExecutionResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeCacheHit
}

// ReasoningStep is one entry in a Chain-of-Thought.
type ReasoningStep struct {
	Thought     string  `json:"thought"`
	Observation string  `json:"observation,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// ReasoningChain is the linear Chain-of-Thought artifact. FinalConfidence
// always equals the confidence of the last step (enforced by AddStep).
type ReasoningChain struct {
	Steps           []ReasoningStep `json:"steps"`
	FinalConfidence float64         `json:"final_confidence"`
}

// AddStep appends step and keeps FinalConfidence in sync.
func (c *ReasoningChain) AddStep(step ReasoningStep) {
	c.Steps = append(c.Steps, step)
	c.FinalConfidence = step.Confidence
}

// ExplorationStrategy selects the Tree-of-Thoughts frontier policy.
type ExplorationStrategy string

const (
	BestFirst  ExplorationStrategy = "best_first"
	BeamSearch ExplorationStrategy = "beam_search"
	DepthFirst ExplorationStrategy = "depth_first"
)

// ReasoningTree is a Tree-of-Thoughts search tree. It is acyclic by
// construction: nodes are only ever created via AddChild, which refuses
// to exceed MaxDepth/MaxBranching.
type ReasoningTree struct {
	Root        *ReasoningNode `json:"root"`
	MaxDepth    int            `json:"max_depth"`
	MaxBranching int           `json:"max_branching"`
}

// ReasoningNode is one node of a ReasoningTree.
type ReasoningNode struct {
	ID       string           `json:"id"`
	State    string           `json:"state"`
	Score    float64          `json:"score"`
	Depth    int              `json:"depth"`
	Children []*ReasoningNode `json:"children,omitempty"`
}

// AddChild appends a child to n, rejecting it when n already has
// MaxBranching children or child.Depth exceeds MaxDepth.
func (n *ReasoningNode) AddChild(tree *ReasoningTree, child *ReasoningNode) error {
	if len(n.Children) >= tree.MaxBranching {
		return &InvariantError{Msg: "max branching exceeded"}
	}
	if child.Depth > tree.MaxDepth {
		return &InvariantError{Msg: "max depth exceeded"}
	}
	n.Children = append(n.Children, child)
	return nil
}

// ToolCallHistoryEntry is one entry of the bounded loop-detection ring.
type ToolCallHistoryEntry struct {
	ToolName string           `json:"tool_name"`
	ArgsHash string           `json:"args_hash"`
	Outcome  ExecutionOutcome `json:"outcome"`
	// OutputHash is a canonical hash of the call's output, set only
	// when Outcome is OutcomeSuccess. A repeated
	// no-op loop requires both identical arguments AND identical
	// output across the repeats (spec §4.4): a tool that succeeds
	// repeatedly but returns fresh information each time — a status
	// poll, a paginated fetch — must not be mistaken for a stall.
	OutputHash string    `json:"output_hash,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
