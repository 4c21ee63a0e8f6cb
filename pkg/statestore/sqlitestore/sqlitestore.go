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

// Package sqlitestore is a durable statestore.Store backed by SQLite,
// for single-node deployments that need agent state to survive a
// process restart.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
	"github.com/tessera-ai/agentloop/pkg/statestore"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS agent_state (
	agent_id       TEXT PRIMARY KEY,
	schema_version INTEGER NOT NULL,
	data           BLOB NOT NULL,
	updated_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store is a database/sql-backed statestore.Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: opening %q: %w", path, err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Save implements statestore.Store, upserting by agent ID.
func (s *Store) Save(ctx context.Context, state *agentstate.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("sqlitestore: encoding state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_state (agent_id, schema_version, data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(agent_id) DO UPDATE SET
			schema_version = excluded.schema_version,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, state.AgentID, state.SchemaVersion, data)
	if err != nil {
		return fmt.Errorf("sqlitestore: saving agent %q: %w", state.AgentID, err)
	}
	return nil
}

// Load implements statestore.Store.
func (s *Store) Load(ctx context.Context, agentID string) (*agentstate.State, error) {
	var schemaVersion int
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT schema_version, data FROM agent_state WHERE agent_id = ?`, agentID,
	).Scan(&schemaVersion, &data)
	if err == sql.ErrNoRows {
		return nil, statestore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: loading agent %q: %w", agentID, err)
	}
	if err := statestore.CheckSchemaVersion(agentID, schemaVersion); err != nil {
		return nil, err
	}

	var state agentstate.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("sqlitestore: decoding agent %q: %w", agentID, err)
	}
	return &state, nil
}

// Delete implements statestore.Store.
func (s *Store) Delete(ctx context.Context, agentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM agent_state WHERE agent_id = ?`, agentID)
	if err != nil {
		return fmt.Errorf("sqlitestore: deleting agent %q: %w", agentID, err)
	}
	return nil
}
