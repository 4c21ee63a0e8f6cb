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

package functiontool_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tessera-ai/agentloop/pkg/tool/functiontool"
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Max results"`
}

type searchResult struct {
	Hits []string `json:"hits"`
}

func TestFunctionTool_SchemaAndCall(t *testing.T) {
	ft, err := functiontool.New("search", "search the web", func(_ context.Context, args searchArgs) (searchResult, error) {
		return searchResult{Hits: []string{args.Query}}, nil
	})
	require.NoError(t, err)

	schema := ft.Schema()
	require.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "query")

	out, err := ft.Call(context.Background(), map[string]any{"query": "golang"})
	require.NoError(t, err)
	res, ok := out.(searchResult)
	require.True(t, ok)
	require.Equal(t, []string{"golang"}, res.Hits)
}
