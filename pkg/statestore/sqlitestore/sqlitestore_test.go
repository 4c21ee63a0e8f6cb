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

package sqlitestore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
	"github.com/tessera-ai/agentloop/pkg/statestore"
	"github.com/tessera-ai/agentloop/pkg/statestore/sqlitestore"
)

func openTestStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	store, err := sqlitestore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSqlitestore_SaveLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	state := agentstate.NewState("agent-1", "find the answer")
	require.NoError(t, store.Save(ctx, state))

	loaded, err := store.Load(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", loaded.AgentID)
	assert.Equal(t, "find the answer", loaded.Goal)
}

func TestSqlitestore_SaveUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	state := agentstate.NewState("agent-1", "goal v1")
	require.NoError(t, store.Save(ctx, state))

	state.Goal = "goal v2"
	require.NoError(t, store.Save(ctx, state))

	loaded, err := store.Load(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "goal v2", loaded.Goal)
}

func TestSqlitestore_LoadMissingReturnsErrNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, statestore.ErrNotFound)
}

func TestSqlitestore_Delete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, agentstate.NewState("agent-1", "goal")))
	require.NoError(t, store.Delete(ctx, "agent-1"))

	_, err := store.Load(ctx, "agent-1")
	assert.ErrorIs(t, err, statestore.ErrNotFound)
}
