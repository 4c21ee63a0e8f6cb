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

// Package history implements the history compactor (component C10):
// once a state's retained turns exceed maxRecentTurns, the oldest
// excess turns are replaced, for prompt-construction purposes only, by
// a single bounded-length summary. The authoritative agentstate.State
// always keeps every turn; compaction never mutates it.
package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
)

// Summarizer produces a bounded-length summary of the elided turns.
// The turn loop controller supplies an implementation backed by the
// model client unless the host passes another (such as
// NewDeterministicTextualizer) through the engine's WithSummarizer.
type Summarizer interface {
	Summarize(ctx context.Context, priorSummary string, elided []agentstate.Turn, maxLength int) (string, error)
}

// Config tunes compaction.
type Config struct {
	MaxRecentTurns   int
	MaxSummaryLength int
	Enabled          bool
}

func (c *Config) setDefaults() {
	if c.MaxRecentTurns <= 0 {
		c.MaxRecentTurns = 20
	}
	if c.MaxSummaryLength <= 0 {
		c.MaxSummaryLength = 2000
	}
}

// Compactor drives history summarization.
type Compactor struct {
	cfg Config
}

// New builds a Compactor with cfg, applying defaults for zero fields.
func New(cfg Config) *Compactor {
	cfg.setDefaults()
	return &Compactor{cfg: cfg}
}

// MaybeCompact summarizes the oldest turns above MaxRecentTurns into
// state.Summary, if compaction is enabled and the bound is exceeded.
// It never removes turns from state.Turns.
func (c *Compactor) MaybeCompact(ctx context.Context, state *agentstate.State, summarizer Summarizer) error {
	if !c.cfg.Enabled {
		return nil
	}
	if len(state.Turns) <= c.cfg.MaxRecentTurns {
		return nil
	}

	elidedCount := len(state.Turns) - c.cfg.MaxRecentTurns
	elided := state.Turns[:elidedCount]

	summary, err := summarizer.Summarize(ctx, state.Summary, elided, c.cfg.MaxSummaryLength)
	if err != nil {
		return fmt.Errorf("history: summarizing %d elided turns: %w", elidedCount, err)
	}
	state.Summary = truncate(summary, c.cfg.MaxSummaryLength)
	return nil
}

// RetainedTurns returns the turns still directly rendered in the
// prompt (those above the elision bound).
func (c *Compactor) RetainedTurns(state *agentstate.State) []agentstate.Turn {
	if len(state.Turns) <= c.cfg.MaxRecentTurns {
		return state.Turns
	}
	return state.Turns[len(state.Turns)-c.cfg.MaxRecentTurns:]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	const marker = "...[truncated]"
	if maxLen <= len(marker) {
		return s[:maxLen]
	}
	return s[:maxLen-len(marker)] + marker
}

// DeterministicTextualizer is the non-model Summarizer alternative the
// config can select instead of calling back into the model client: it
// concatenates each elided turn's thoughts and tool-call names into a
// compact line, bounded by a tiktoken-counted token budget rather than
// a raw character count, since prompt budgets are token budgets.
type DeterministicTextualizer struct {
	encoding *tiktoken.Tiktoken
}

// NewDeterministicTextualizer builds a textualizer using the named
// tiktoken encoding (e.g. "cl100k_base").
func NewDeterministicTextualizer(encodingName string) (*DeterministicTextualizer, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("history: loading tiktoken encoding %q: %w", encodingName, err)
	}
	return &DeterministicTextualizer{encoding: enc}, nil
}

// Summarize implements Summarizer without any model call.
func (t *DeterministicTextualizer) Summarize(_ context.Context, priorSummary string, elided []agentstate.Turn, maxLength int) (string, error) {
	var b strings.Builder
	if priorSummary != "" {
		b.WriteString(priorSummary)
		b.WriteString(" ")
	}
	for _, turn := range elided {
		b.WriteString(fmt.Sprintf("[turn %d] ", turn.Index))
		if turn.ModelMessage.Thoughts != "" {
			b.WriteString(turn.ModelMessage.Thoughts)
			b.WriteString(" ")
		}
		for _, call := range turn.ModelMessage.ToolCalls {
			b.WriteString(fmt.Sprintf("called %s; ", call.ToolName))
		}
	}

	text := b.String()
	tokens := t.encoding.Encode(text, nil, nil)
	maxTokens := maxLength / 4 // rough char-per-token budget floor; exact trimming below is token-accurate
	if len(tokens) <= maxTokens {
		return truncate(text, maxLength), nil
	}
	trimmed := t.encoding.Decode(tokens[:maxTokens])
	return truncate(trimmed, maxLength), nil
}
