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

// Package prompt implements the prompt builder (component C11):
// assembling the model-facing message list from the engine's own
// framing, host-supplied messages, elided-history summary, goal, and
// retained turn history, applying the configured field-size caps
// (spec §4.11).
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
	"github.com/tessera-ai/agentloop/pkg/model"
	"github.com/tessera-ai/agentloop/pkg/tool"
)

// Caps bounds the size of fields rendered into the prompt.
type Caps struct {
	MaxToolOutputSize int
	MaxThoughtsLength int
	MaxFinalLength    int
	MaxSummaryLength  int
}

func (c *Caps) setDefaults() {
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
}

// Builder assembles Request.Messages per spec §4.11's fixed slot order.
type Builder struct {
	caps Caps
}

// New builds a Builder with caps, applying defaults for zero fields.
func New(caps Caps) *Builder {
	caps.setDefaults()
	return &Builder{caps: caps}
}

// Input bundles everything the builder needs to assemble one turn's
// messages.
type Input struct {
	Goal               string
	Summary            string
	RetainedTurns      []agentstate.Turn
	HostSystemMessages []model.Message
	HostUserMessages   []model.Message
	SystemRole         string

	// Tools and IncludeToolInstructions are set together when the
	// model client lacks native function calling (spec §4.6): the
	// builder injects a system message describing each tool and the
	// recognized free-text tool-call envelope shapes. When the
	// provider supports function calling natively, the turn loop
	// controller passes Tools to model.Request.Tools instead and
	// leaves IncludeToolInstructions false.
	Tools                   []tool.Descriptor
	IncludeToolInstructions bool
}

const engineSystemMessage = `You are an autonomous agent. Reason step by step, use the available tools when they help you make progress, and produce a final answer once you are confident. Respond using the structured format described by the tool and reasoning contract; do not fabricate tool results.`

// Build assembles the ordered message list: (a) engine system message,
// (b) host system messages, (c) elided-history summary, (d) goal, (e)
// retained turns rendered as model_message/tool_observations pairs,
// (f) host user/assistant messages.
func (b *Builder) Build(in Input) []model.Message {
	var messages []model.Message

	sysContent := engineSystemMessage
	if in.SystemRole != "" {
		sysContent = in.SystemRole + "\n\n" + engineSystemMessage
	}
	messages = append(messages, model.Message{Role: model.RoleSystem, Content: sysContent})

	messages = append(messages, in.HostSystemMessages...)

	if in.IncludeToolInstructions && len(in.Tools) > 0 {
		messages = append(messages, model.Message{Role: model.RoleSystem, Content: renderToolInstructions(in.Tools)})
	}

	if in.Summary != "" {
		messages = append(messages, model.Message{
			Role:    model.RoleSystem,
			Content: "Summary of earlier progress: " + truncate(in.Summary, b.caps.MaxSummaryLength),
		})
	}

	messages = append(messages, model.Message{Role: model.RoleUser, Content: "Goal: " + in.Goal})

	for _, turn := range in.RetainedTurns {
		messages = append(messages, b.renderTurn(turn)...)
	}

	messages = append(messages, in.HostUserMessages...)

	return messages
}

func (b *Builder) renderTurn(turn agentstate.Turn) []model.Message {
	var out []model.Message

	thoughts := truncate(turn.ModelMessage.Thoughts, b.caps.MaxThoughtsLength)
	assistantContent := thoughts
	if turn.ModelMessage.FinalOutput != nil {
		final := truncate(*turn.ModelMessage.FinalOutput, b.caps.MaxFinalLength)
		if assistantContent != "" {
			assistantContent += "\n"
		}
		assistantContent += final
	}
	if assistantContent != "" {
		out = append(out, model.Message{Role: model.RoleAssistant, Content: assistantContent})
	}

	for _, result := range turn.ToolExecutionResults {
		out = append(out, model.Message{
			Role:       model.RoleTool,
			Content:    b.renderToolObservation(result),
			ToolCallID: result.CallID,
			Name:       result.ToolName,
		})
	}

	return out
}

func (b *Builder) renderToolObservation(result agentstate.ToolExecutionResult) string {
	switch result.Outcome {
	case agentstate.OutcomeSuccess, agentstate.OutcomeCacheHit:
		return truncate(stringify(result.Output), b.caps.MaxToolOutputSize)
	case agentstate.OutcomeValidationFailure:
		return fmt.Sprintf("validation failed: missing %v, type errors %v", result.MissingFields, result.TypeErrors)
	case agentstate.OutcomeTimeout:
		return "tool call timed out"
	case agentstate.OutcomeExecutionError:
		return fmt.Sprintf("tool call failed (%s): %s", result.Classification, result.ErrorMessage)
	default:
		return ""
	}
}

func renderToolInstructions(tools []tool.Descriptor) string {
	var b strings.Builder
	b.WriteString("The following tools are available. To call one, respond with a single JSON object of the form {\"function\": \"<name>\", \"arguments\": {...}} (or a JSON array of such objects to call several at once), and nothing else:\n")
	for _, t := range tools {
		schema, _ := json.Marshal(t.Parameters)
		fmt.Fprintf(&b, "- %s: %s. Parameters: %s\n", t.Name, t.Description, schema)
	}
	return b.String()
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	const marker = "...[elided]"
	if maxLen <= len(marker) {
		return s[:maxLen]
	}
	return s[:maxLen-len(marker)] + marker
}
