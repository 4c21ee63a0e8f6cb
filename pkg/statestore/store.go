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

// Package statestore defines the persistence contract for
// agentstate.State (mid-run checkpointing and resume). Concrete
// backends live in subpackages: memstore for tests and single-process
// use, sqlitestore for durable single-node deployments.
package statestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
)

// ErrNotFound is returned by Load when agentID has no saved state.
var ErrNotFound = errors.New("statestore: state not found")

// SchemaVersionError reports a stored State whose SchemaVersion is
// newer than this build knows how to read. Treating it as a distinct
// error type (rather than a generic error) lets callers decide whether
// to refuse the load or attempt a migration.
type SchemaVersionError struct {
	AgentID string
	Stored  int
	Known   int
}

func (e *SchemaVersionError) Error() string {
	return fmt.Sprintf("statestore: agent %q has schema version %d, this build knows version %d",
		e.AgentID, e.Stored, e.Known)
}

// Store persists and retrieves agentstate.State by agent ID. A Store
// implementation must be safe for concurrent use by multiple agents
// running under distinct IDs; it need not serialize concurrent
// Save/Load calls for the *same* ID beyond not corrupting data — the
// turn loop controller only ever has one in-flight call per agent.
type Store interface {
	Save(ctx context.Context, state *agentstate.State) error
	Load(ctx context.Context, agentID string) (*agentstate.State, error)
	Delete(ctx context.Context, agentID string) error
}

// CheckSchemaVersion returns a *SchemaVersionError if stored is newer
// than agentstate.SchemaVersion. Store implementations call this
// immediately after decoding, before returning from Load.
func CheckSchemaVersion(agentID string, stored int) error {
	if stored > agentstate.SchemaVersion {
		return &SchemaVersionError{AgentID: agentID, Stored: stored, Known: agentstate.SchemaVersion}
	}
	return nil
}
