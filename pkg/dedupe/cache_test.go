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

package dedupe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-ai/agentloop/pkg/dedupe"
)

func TestCache_LookupMiss(t *testing.T) {
	c, err := dedupe.New(16)
	require.NoError(t, err)

	_, _, hit := c.Lookup("weather", map[string]any{"city": "nyc"})
	assert.False(t, hit)
}

func TestCache_StoreThenLookup(t *testing.T) {
	c, err := dedupe.New(16)
	require.NoError(t, err)

	c.Store("weather", map[string]any{"city": "nyc"}, "sunny", time.Minute, false)

	out, age, hit := c.Lookup("weather", map[string]any{"city": "nyc"})
	require.True(t, hit)
	assert.Equal(t, "sunny", out)
	assert.GreaterOrEqual(t, age, time.Duration(0))
}

func TestCache_KeyOrderDoesNotMatter(t *testing.T) {
	c, err := dedupe.New(16)
	require.NoError(t, err)

	c.Store("search", map[string]any{"a": 1, "b": 2}, "result-1", 0, false)

	out, _, hit := c.Lookup("search", map[string]any{"b": 2, "a": 1})
	require.True(t, hit)
	assert.Equal(t, "result-1", out)
}

func TestCache_DisabledStoreIsNoop(t *testing.T) {
	c, err := dedupe.New(16)
	require.NoError(t, err)

	c.Store("weather", map[string]any{"city": "nyc"}, "sunny", time.Minute, true)

	_, _, hit := c.Lookup("weather", map[string]any{"city": "nyc"})
	assert.False(t, hit)
}

func TestCache_TTLExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	c, err := dedupe.New(16, dedupe.WithClock(func() time.Time { return clock() }))
	require.NoError(t, err)

	c.Store("weather", map[string]any{"city": "nyc"}, "sunny", 10*time.Millisecond, false)

	_, _, hit := c.Lookup("weather", map[string]any{"city": "nyc"})
	require.True(t, hit)

	now = now.Add(20 * time.Millisecond)
	_, _, hit = c.Lookup("weather", map[string]any{"city": "nyc"})
	assert.False(t, hit)
}

func TestCache_DoCollapsesConcurrentCalls(t *testing.T) {
	c, err := dedupe.New(16)
	require.NoError(t, err)

	var calls int
	fn := func() (any, error) {
		calls++
		time.Sleep(10 * time.Millisecond)
		return "value", nil
	}

	results := make(chan any, 2)
	go func() {
		v, _, _ := c.Do("slow", map[string]any{"x": 1}, fn)
		results <- v
	}()
	time.Sleep(2 * time.Millisecond)
	go func() {
		v, _, _ := c.Do("slow", map[string]any{"x": 1}, fn)
		results <- v
	}()

	first := <-results
	second := <-results
	assert.Equal(t, "value", first)
	assert.Equal(t, "value", second)
	assert.Equal(t, 1, calls)
}
