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

// Package memstore is an in-memory statestore.Store, used in tests and
// for single-process runs that do not need to survive a restart. It
// stores a deep copy on Save and returns a deep copy on Load, so
// callers cannot mutate the stored State through the pointer they
// were given.
package memstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
	"github.com/tessera-ai/agentloop/pkg/statestore"
)

// Store is a map-backed statestore.Store guarded by a mutex.
type Store struct {
	mu   sync.RWMutex
	byID map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{byID: make(map[string][]byte)}
}

// Save implements statestore.Store.
func (s *Store) Save(_ context.Context, state *agentstate.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[state.AgentID] = data
	return nil
}

// Load implements statestore.Store.
func (s *Store) Load(_ context.Context, agentID string) (*agentstate.State, error) {
	s.mu.RLock()
	data, ok := s.byID[agentID]
	s.mu.RUnlock()
	if !ok {
		return nil, statestore.ErrNotFound
	}

	var state agentstate.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if err := statestore.CheckSchemaVersion(agentID, state.SchemaVersion); err != nil {
		return nil, err
	}
	return &state, nil
}

// Delete implements statestore.Store.
func (s *Store) Delete(_ context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, agentID)
	return nil
}
