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

package reasoning

import (
	"context"
	"fmt"
	"sort"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
)

// Candidate is one scored continuation returned by an
// ExpansionGenerator for a single frontier node.
type Candidate struct {
	State string
	Score float64
}

// ExpansionGenerator requests maxBranching candidate continuations of
// node from the model in one call (spec §4.5).
type ExpansionGenerator interface {
	Expand(ctx context.Context, node *agentstate.ReasoningNode, maxBranching int) ([]Candidate, error)
}

// ToTConfig tunes Tree-of-Thoughts exploration and termination.
type ToTConfig struct {
	MaxDepth            int
	MaxBranching        int
	BeamWidth           int
	ExplorationStrategy agentstate.ExplorationStrategy
	AcceptanceThreshold float64
}

func (c *ToTConfig) setDefaults() {
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
}

// ToTEngine drives a full Tree-of-Thoughts search to completion (spec
// §4.5). Unlike CoTEngine.Step, Run owns the whole frontier loop: the
// search space is a tree rooted at one call, not an incremental,
// per-turn accumulation.
type ToTEngine struct {
	cfg ToTConfig
}

// NewToTEngine builds a ToTEngine with cfg, applying defaults for zero
// fields.
func NewToTEngine(cfg ToTConfig) *ToTEngine {
	cfg.setDefaults()
	return &ToTEngine{cfg: cfg}
}

// Result reports the outcome of a completed ToT search.
type Result struct {
	// WinningNode is the node whose State became the final answer:
	// either the first node to reach the acceptance threshold, or the
	// best-scored leaf once maxDepth is exhausted.
	WinningNode *agentstate.ReasoningNode
	// AcceptedEarly is true when WinningNode hit AcceptanceThreshold
	// before the depth bound was reached.
	AcceptedEarly bool
}

// Run builds tree.Root's children until a node clears
// AcceptanceThreshold, the frontier empties, or MaxDepth is reached.
// BeamSearch expands one full depth-layer at a time, pruning to the
// top BeamWidth nodes before descending (spec §4.5); the other
// strategies pop and expand a single node at a time, possibly mixing
// depths in the frontier, via popFrontier.
func (e *ToTEngine) Run(ctx context.Context, tree *agentstate.ReasoningTree, gen ExpansionGenerator) (Result, error) {
	if tree.Root == nil {
		return Result{}, fmt.Errorf("reasoning: tree has no root")
	}
	tree.MaxDepth = e.cfg.MaxDepth
	tree.MaxBranching = e.cfg.MaxBranching

	if e.cfg.ExplorationStrategy == agentstate.BeamSearch {
		return e.runBeamSearch(ctx, tree, gen)
	}

	frontier := []*agentstate.ReasoningNode{tree.Root}
	var best *agentstate.ReasoningNode = tree.Root

	for len(frontier) > 0 {
		node := e.popFrontier(&frontier)
		if node.Score > best.Score {
			best = node
		}
		if node.Score >= e.cfg.AcceptanceThreshold {
			return Result{WinningNode: node, AcceptedEarly: true}, nil
		}
		if node.Depth >= e.cfg.MaxDepth {
			continue
		}

		candidates, err := gen.Expand(ctx, node, e.cfg.MaxBranching)
		if err != nil {
			return Result{}, fmt.Errorf("reasoning: expanding node %q: %w", node.ID, err)
		}

		for i, c := range candidates {
			child := &agentstate.ReasoningNode{
				ID:    fmt.Sprintf("%s.%d", node.ID, i),
				State: c.State,
				Score: c.Score,
				Depth: node.Depth + 1,
			}
			if err := node.AddChild(tree, child); err != nil {
				continue // max branching/depth exceeded for this candidate, skip it
			}
			frontier = append(frontier, child)
		}
	}

	return Result{WinningNode: best}, nil
}

// runBeamSearch expands every node in the current depth-layer before
// pruning the resulting next layer to the top BeamWidth nodes by
// score, so the frontier passed to gen.Expand always holds nodes from
// exactly one depth.
func (e *ToTEngine) runBeamSearch(ctx context.Context, tree *agentstate.ReasoningTree, gen ExpansionGenerator) (Result, error) {
	layer := []*agentstate.ReasoningNode{tree.Root}
	best := tree.Root

	for len(layer) > 0 {
		var nextLayer []*agentstate.ReasoningNode
		for _, node := range layer {
			if node.Score > best.Score {
				best = node
			}
			if node.Score >= e.cfg.AcceptanceThreshold {
				return Result{WinningNode: node, AcceptedEarly: true}, nil
			}
			if node.Depth >= e.cfg.MaxDepth {
				continue
			}

			candidates, err := gen.Expand(ctx, node, e.cfg.MaxBranching)
			if err != nil {
				return Result{}, fmt.Errorf("reasoning: expanding node %q: %w", node.ID, err)
			}

			for i, c := range candidates {
				child := &agentstate.ReasoningNode{
					ID:    fmt.Sprintf("%s.%d", node.ID, i),
					State: c.State,
					Score: c.Score,
					Depth: node.Depth + 1,
				}
				if err := node.AddChild(tree, child); err != nil {
					continue
				}
				nextLayer = append(nextLayer, child)
			}
		}
		layer = trimToBeam(nextLayer, e.cfg.BeamWidth)
	}

	return Result{WinningNode: best}, nil
}

// popFrontier removes and returns the next node to expand, per the
// configured exploration strategy. BeamSearch never reaches here; it
// uses runBeamSearch's explicit depth-layer loop instead.
func (e *ToTEngine) popFrontier(frontier *[]*agentstate.ReasoningNode) *agentstate.ReasoningNode {
	f := *frontier
	switch e.cfg.ExplorationStrategy {
	case agentstate.DepthFirst:
		last := f[len(f)-1]
		*frontier = f[:len(f)-1]
		return last
	case agentstate.BestFirst:
		bestIdx := 0
		for i, n := range f {
			if n.Score > f[bestIdx].Score {
				bestIdx = i
			}
		}
		node := f[bestIdx]
		*frontier = append(f[:bestIdx], f[bestIdx+1:]...)
		return node
	default:
		first := f[0]
		*frontier = f[1:]
		return first
	}
}

// trimToBeam keeps only the top beamWidth nodes by score.
func trimToBeam(frontier []*agentstate.ReasoningNode, beamWidth int) []*agentstate.ReasoningNode {
	if len(frontier) <= beamWidth {
		return frontier
	}
	sort.Slice(frontier, func(i, j int) bool { return frontier[i].Score > frontier[j].Score })
	return frontier[:beamWidth]
}
