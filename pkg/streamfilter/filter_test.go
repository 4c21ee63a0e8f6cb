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

package streamfilter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tessera-ai/agentloop/pkg/streamfilter"
)

func TestFilter_PassesPlainText(t *testing.T) {
	f := streamfilter.New()
	out := f.Feed("Paris is the capital of France.")
	assert.Equal(t, "Paris is the capital of France.", out)
}

func TestFilter_SuppressesInlineToolCallJSON(t *testing.T) {
	f := streamfilter.New()
	out := f.Feed(`Thinking. {"function":"search","arguments":{"q":"x"}} done.`)
	assert.Equal(t, "Thinking.  done.", out)
}

func TestFilter_SuppressesFencedToolCallBlock(t *testing.T) {
	f := streamfilter.New()
	out := f.Feed("Sure, " + "```" + `{"action":"tool_call","tool_name":"search"}` + "```" + " here.")
	assert.Equal(t, "Sure,  here.", out)
}

func TestFilter_KeepsFencedCodeThatIsNotToolCall(t *testing.T) {
	f := streamfilter.New()
	out := f.Feed("Run " + "```" + "go run main.go" + "```" + " now.")
	assert.Equal(t, "Run ```go run main.go``` now.", out)
}

func TestFilter_FlushReturnsUnterminatedBufferedText(t *testing.T) {
	f := streamfilter.New()
	out := f.Feed("here is a brace: {")
	assert.Equal(t, "here is a brace: ", out)
	assert.Equal(t, "{", f.Flush())
}
