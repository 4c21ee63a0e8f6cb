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

// Package config defines Agent configuration (spec §6): every tunable
// listed in the external interfaces table, with defaults, YAML
// loading, and validation that surfaces invalid_configuration errors
// synchronously at CreateAgent time rather than mid-run.
package config

import (
	"fmt"
	"time"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
)

// ReasoningType selects the reasoning engine variant, or none.
type ReasoningType string

const (
	ReasoningNone           ReasoningType = "none"
	ReasoningChainOfThought ReasoningType = "chain_of_thought"
	ReasoningTreeOfThoughts ReasoningType = "tree_of_thoughts"
)

// Config is the full set of Agent tunables (spec §6).
type Config struct {
	MaxTurns       int           `yaml:"max_turns"`
	MaxRecentTurns int           `yaml:"max_recent_turns"`
	LlmTimeout     time.Duration `yaml:"llm_timeout"`
	ToolTimeout    time.Duration `yaml:"tool_timeout"`
	RunTimeout     time.Duration `yaml:"run_timeout"`

	MaxRetries        int           `yaml:"max_retries"`
	InitialRetryDelay time.Duration `yaml:"initial_retry_delay"`
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay"`

	EnableHistorySummarization bool `yaml:"enable_history_summarization"`
	MaxToolOutputSize          int  `yaml:"max_tool_output_size"`
	MaxThoughtsLength          int  `yaml:"max_thoughts_length"`
	MaxFinalLength             int  `yaml:"max_final_length"`
	MaxSummaryLength           int  `yaml:"max_summary_length"`

	ConsecutiveFailureThreshold int           `yaml:"consecutive_failure_threshold"`
	MaxToolCallHistory          int           `yaml:"max_tool_call_history"`
	DedupeStalenessThreshold    time.Duration `yaml:"dedupe_staleness_threshold"`
	DedupeCacheCapacity         int           `yaml:"dedupe_cache_capacity"`

	UseFunctionCalling bool `yaml:"use_function_calling"`
	EmitPublicStatus   bool `yaml:"emit_public_status"`

	ReasoningType             ReasoningType `yaml:"reasoning_type"`
	MaxReasoningSteps         int           `yaml:"max_reasoning_steps"`
	ConfidenceThreshold       float64       `yaml:"confidence_threshold"`
	EnableReasoningValidation bool          `yaml:"enable_reasoning_validation"`

	MaxDepth            int                            `yaml:"max_depth"`
	MaxBranching        int                            `yaml:"max_branching"`
	BeamWidth           int                            `yaml:"beam_width"`
	ExplorationStrategy agentstate.ExplorationStrategy `yaml:"exploration_strategy"`
	AcceptanceThreshold float64                        `yaml:"acceptance_threshold"`

	MaxParallelTools int `yaml:"max_parallel_tools"`

	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`

	// CheckpointBeforeLLM/CheckpointAfterTools add extra Save calls
	// around the mandatory end-of-turn checkpoint, trading I/O for a
	// smaller resume window after a crash.
	CheckpointBeforeLLM  bool `yaml:"checkpoint_before_llm"`
	CheckpointAfterTools bool `yaml:"checkpoint_after_tools"`

	// MaxCallsPerSecond throttles outbound model calls via a token
	// bucket. Zero disables throttling.
	MaxCallsPerSecond float64 `yaml:"max_calls_per_second"`

	// StatusHeartbeatFraction is the fraction of toolTimeout a tool
	// batch's slowest still-running member must exceed before a
	// StatusUpdate heartbeat is emitted (only when EmitPublicStatus).
	StatusHeartbeatFraction float64 `yaml:"status_heartbeat_fraction"`
}

// SetDefaults fills every unset field with its documented default
// (zero or negative for most fields; negative only for MaxTurns and
// RunTimeout, see below), in the teacher's SetDefaults idiom: safe to call on a
// partially populated Config (e.g. loaded from a YAML file that only
// overrides a handful of fields).
func (c *Config) SetDefaults() {
	// MaxTurns and RunTimeout use a narrower "unset" sentinel (< 0, not
	// <= 0) than every other field here: 0 is a meaningful, distinct
	// caller-supplied value for both (spec §8 boundary behaviors — an
	// immediate RunCompleted at zero turns, an immediate run_timeout
	// error), so it must survive defaulting rather than being silently
	// replaced.
	if c.MaxTurns < 0 {
		c.MaxTurns = 25
	}
	if c.MaxRecentTurns <= 0 {
		c.MaxRecentTurns = 20
	}
	if c.LlmTimeout <= 0 {
		c.LlmTimeout = 60 * time.Second
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = 30 * time.Second
	}
	if c.RunTimeout < 0 {
		c.RunTimeout = 10 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialRetryDelay <= 0 {
		c.InitialRetryDelay = 500 * time.Millisecond
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = 30 * time.Second
	}
	if c.MaxToolOutputSize <= 0 {
		c.MaxToolOutputSize = 4000
	}
	if c.MaxThoughtsLength <= 0 {
		c.MaxThoughtsLength = 2000
	}
	if c.MaxFinalLength <= 0 {
		c.MaxFinalLength = 4000
	}
	if c.MaxSummaryLength <= 0 {
		c.MaxSummaryLength = 2000
	}
	if c.ConsecutiveFailureThreshold <= 0 {
		c.ConsecutiveFailureThreshold = 3
	}
	if c.MaxToolCallHistory <= 0 {
		c.MaxToolCallHistory = 50
	}
	if c.DedupeStalenessThreshold <= 0 {
		c.DedupeStalenessThreshold = 5 * time.Minute
	}
	if c.DedupeCacheCapacity <= 0 {
		c.DedupeCacheCapacity = 1024
	}
	if c.ReasoningType == "" {
		c.ReasoningType = ReasoningNone
	}
	if c.MaxReasoningSteps <= 0 {
		c.MaxReasoningSteps = 10
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = 0.8
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 5
	}
	if c.MaxBranching <= 0 {
		c.MaxBranching = 3
	}
	if c.BeamWidth <= 0 {
		c.BeamWidth = c.MaxBranching
	}
	if c.ExplorationStrategy == "" {
		c.ExplorationStrategy = agentstate.BestFirst
	}
	if c.AcceptanceThreshold <= 0 {
		c.AcceptanceThreshold = 0.85
	}
	if c.MaxParallelTools <= 0 {
		c.MaxParallelTools = 4
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.TopP == 0 {
		c.TopP = 1.0
	}
	if c.StatusHeartbeatFraction <= 0 {
		c.StatusHeartbeatFraction = 0.5
	}
}

// ValidationError reports a config field that failed Validate; the
// turn loop controller surfaces this synchronously as
// error="invalid_configuration" (spec §7).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: field %q: %s", e.Field, e.Reason)
}

// Validate checks field ranges that SetDefaults cannot repair.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return &ValidationError{Field: "confidence_threshold", Reason: "must be in [0,1]"}
	}
	if c.AcceptanceThreshold < 0 || c.AcceptanceThreshold > 1 {
		return &ValidationError{Field: "acceptance_threshold", Reason: "must be in [0,1]"}
	}
	if c.Temperature < 0 {
		return &ValidationError{Field: "temperature", Reason: "must be >= 0"}
	}
	if c.TopP < 0 || c.TopP > 1 {
		return &ValidationError{Field: "top_p", Reason: "must be in [0,1]"}
	}
	switch c.ReasoningType {
	case ReasoningNone, ReasoningChainOfThought, ReasoningTreeOfThoughts:
	default:
		return &ValidationError{Field: "reasoning_type", Reason: "unrecognized value " + string(c.ReasoningType)}
	}
	switch c.ExplorationStrategy {
	case "", agentstate.BestFirst, agentstate.BeamSearch, agentstate.DepthFirst:
	default:
		return &ValidationError{Field: "exploration_strategy", Reason: "unrecognized value " + string(c.ExplorationStrategy)}
	}
	if c.MaxParallelTools < 1 {
		return &ValidationError{Field: "max_parallel_tools", Reason: "must be >= 1"}
	}
	return nil
}
