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

// Package streamfilter implements the streaming chunk filter
// (component C9): a small state machine over the concatenating model
// output buffer that withholds tool-call JSON and fenced code blocks
// wrapping tool-call JSON from the text forwarded to event subscribers.
package streamfilter

import "strings"

type scaffoldState int

const (
	stateText scaffoldState = iota
	stateFenceCandidate
	stateFencedBlock
	stateJSONCandidate
)

// Filter consumes Chunk content incrementally and emits only the
// portions that belong to visible prose. It is not safe for concurrent
// use; one Filter instance is scoped to one model call.
type Filter struct {
	state       scaffoldState
	fenceBuffer strings.Builder
	jsonDepth   int
	jsonBuffer  strings.Builder
}

// New returns a Filter ready to consume the first chunk of a stream.
func New() *Filter {
	return &Filter{}
}

// Feed processes one chunk of raw model content and returns the subset
// that should be forwarded to subscribers (possibly empty). When in
// function-calling mode, callers should not feed FunctionCall argument
// text through Feed at all (spec §4.9: "tool-call arguments are never
// forwarded to LlmChunkReceived").
func (f *Filter) Feed(content string) string {
	var visible strings.Builder

	for _, r := range content {
		switch f.state {
		case stateText:
			switch r {
			case '`':
				f.state = stateFenceCandidate
				f.fenceBuffer.WriteRune(r)
			case '{':
				f.state = stateJSONCandidate
				f.jsonDepth = 1
				f.jsonBuffer.WriteRune(r)
			default:
				visible.WriteRune(r)
			}

		case stateFenceCandidate:
			f.fenceBuffer.WriteRune(r)
			if f.fenceBuffer.Len() >= 3 {
				if f.fenceBuffer.String() == "```" {
					f.fenceBuffer.Reset()
					f.state = stateFencedBlock
				} else {
					// Not a fence after all; the buffered runes were
					// ordinary text, possibly starting a new fence.
					buffered := f.fenceBuffer.String()
					f.fenceBuffer.Reset()
					f.state = stateText
					visible.WriteString(buffered)
				}
			}

		case stateFencedBlock:
			f.fenceBuffer.WriteRune(r)
			if strings.HasSuffix(f.fenceBuffer.String(), "```") {
				body := strings.TrimSuffix(f.fenceBuffer.String(), "```")
				f.fenceBuffer.Reset()
				f.state = stateText
				if !looksLikeToolCallJSON(body) {
					visible.WriteString("```" + body + "```")
				}
			}

		case stateJSONCandidate:
			f.jsonBuffer.WriteRune(r)
			switch r {
			case '{':
				f.jsonDepth++
			case '}':
				f.jsonDepth--
				if f.jsonDepth == 0 {
					body := f.jsonBuffer.String()
					f.jsonBuffer.Reset()
					f.state = stateText
					if !looksLikeToolCallJSON(body) {
						visible.WriteString(body)
					}
				}
			}
		}
	}

	return visible.String()
}

// Flush returns any buffered-but-undecided content at stream end,
// treating it as visible prose (an unterminated fence/brace was never a
// real scaffold region).
func (f *Filter) Flush() string {
	var out string
	switch f.state {
	case stateFenceCandidate:
		out = f.fenceBuffer.String()
	case stateFencedBlock:
		out = "```" + f.fenceBuffer.String()
	case stateJSONCandidate:
		out = f.jsonBuffer.String()
	}
	f.state = stateText
	f.fenceBuffer.Reset()
	f.jsonBuffer.Reset()
	return out
}

// looksLikeToolCallJSON recognizes the tool-call envelope shapes the
// free-text model parser accepts (spec §4.6): {function, arguments} or
// {action:"tool_call", ...}.
func looksLikeToolCallJSON(body string) bool {
	return strings.Contains(body, `"function"`) ||
		strings.Contains(body, `"tool_call"`) ||
		(strings.Contains(body, `"tool_name"`) || strings.Contains(body, `"tool"`)) && strings.Contains(body, `"action"`)
}
