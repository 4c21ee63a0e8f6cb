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

// Package mcptoolset resolves tools exposed by an external MCP (Model
// Context Protocol) stdio server into tool.Tool descriptors the
// registry can dispatch through like any other tool. It is
// infrastructure for dynamic tool discovery (component C2), not a tool
// implementation itself — the actual tool bodies live in the remote
// MCP server process.
package mcptoolset

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tessera-ai/agentloop/pkg/tool"
)

// Config configures a stdio-transport MCP toolset.
type Config struct {
	// Name identifies this toolset for logging.
	Name string

	// Command and Args launch the MCP server subprocess.
	Command string
	Args    []string
	Env     map[string]string

	// Filter limits which remote tools are exposed, by name. Empty
	// means expose all.
	Filter []string
}

// Toolset lazily connects to the configured MCP server the first time
// Tools is called, and caches the resolved descriptors thereafter.
type Toolset struct {
	cfg Config

	mu        sync.Mutex
	client    *client.Client
	tools     []tool.Tool
	connected bool
}

// New validates cfg and returns an unconnected Toolset.
func New(cfg Config) (*Toolset, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("mcptoolset: command is required")
	}
	return &Toolset{cfg: cfg}, nil
}

// Name implements tool.Toolset.
func (t *Toolset) Name() string { return t.cfg.Name }

// Tools implements tool.Toolset, connecting on first use.
func (t *Toolset) Tools() ([]tool.Tool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		if err := t.connect(context.Background()); err != nil {
			return nil, fmt.Errorf("mcptoolset %q: %w", t.cfg.Name, err)
		}
	}
	return t.tools, nil
}

func (t *Toolset) connect(ctx context.Context) error {
	env := make([]string, 0, len(t.cfg.Env))
	for k, v := range t.cfg.Env {
		env = append(env, k+"="+v)
	}

	mcpClient, err := client.NewStdioMCPClient(t.cfg.Command, env, t.cfg.Args...)
	if err != nil {
		return fmt.Errorf("creating mcp client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "agentloop", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		_ = mcpClient.Close()
		return fmt.Errorf("initializing mcp session: %w", err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = mcpClient.Close()
		return fmt.Errorf("listing mcp tools: %w", err)
	}

	var filter map[string]bool
	if len(t.cfg.Filter) > 0 {
		filter = make(map[string]bool, len(t.cfg.Filter))
		for _, name := range t.cfg.Filter {
			filter[name] = true
		}
	}

	tools := make([]tool.Tool, 0, len(listResp.Tools))
	for _, remote := range listResp.Tools {
		if filter != nil && !filter[remote.Name] {
			continue
		}
		tools = append(tools, &remoteTool{
			client: mcpClient,
			name:   remote.Name,
			desc:   remote.Description,
			schema: convertSchema(remote.InputSchema),
		})
	}

	t.client = mcpClient
	t.tools = tools
	t.connected = true
	slog.Info("mcptoolset connected", "name", t.cfg.Name, "tools", len(tools))
	return nil
}

// Close releases the underlying MCP subprocess, if connected.
func (t *Toolset) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	return t.client.Close()
}

// remoteTool dispatches Call through the shared MCP client connection.
// The executor's own timeout/validation/classification machinery
// (pkg/tool) wraps every call to a remoteTool exactly as it would any
// in-process tool.
type remoteTool struct {
	client *client.Client
	name   string
	desc   string
	schema map[string]any
}

func (r *remoteTool) Name() string           { return r.name }
func (r *remoteTool) Description() string    { return r.desc }
func (r *remoteTool) Schema() map[string]any { return r.schema }

func (r *remoteTool) Call(ctx context.Context, args map[string]any) (any, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = r.name
	req.Params.Arguments = args

	res, err := r.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("calling mcp tool %q: %w", r.name, err)
	}
	if res.IsError {
		return nil, fmt.Errorf("mcp tool %q reported an error: %v", r.name, res.Content)
	}

	texts := make([]string, 0, len(res.Content))
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			texts = append(texts, tc.Text)
		}
	}
	if len(texts) == 1 {
		return texts[0], nil
	}
	return texts, nil
}

func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	out := map[string]any{
		"type":       "object",
		"properties": schema.Properties,
	}
	if len(schema.Required) > 0 {
		out["required"] = schema.Required
	}
	return out
}
