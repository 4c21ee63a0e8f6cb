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

package tool

import (
	"fmt"
	"sync"
)

// Toolset groups a set of tools that can be resolved dynamically (for
// example, from an MCP server). Implementations are expected to be
// lazy: Tools() is only called once registration is actually needed.
type Toolset interface {
	Name() string
	Tools() ([]Tool, error)
}

// Registry holds the tools available to a run and renders their
// Descriptors for the prompt builder, in registration order so prompts
// stay deterministic across turns.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t to the registry. Re-registering a name overwrites the
// previous entry but keeps its original position in Describe's order.
func (r *Registry) Register(t Tool) error {
	if t == nil || t.Name() == "" {
		return fmt.Errorf("tool: cannot register a tool with an empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// RegisterToolset resolves toolset.Tools() and registers each one.
func (r *Registry) RegisterToolset(toolset Toolset) error {
	tools, err := toolset.Tools()
	if err != nil {
		return fmt.Errorf("tool: resolving toolset %q: %w", toolset.Name(), err)
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Lookup resolves a tool by name. ok is false if the name is not
// registered (spec §3: ToolCallRequest.toolName must resolve).
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Describe returns the prompt-facing descriptors in registration order.
func (r *Registry) Describe() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, Descriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return out
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
