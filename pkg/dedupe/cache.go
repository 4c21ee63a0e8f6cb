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

// Package dedupe implements the tool-call dedupe cache (component C3):
// a canonicalized-argument, TTL-bounded LRU of recent tool outputs,
// with in-flight collapsing so concurrent identical calls share one
// live invocation instead of racing the tool body N times.
package dedupe

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/tessera-ai/agentloop/pkg/canon"
)

// entry is one cached tool output.
type entry struct {
	output   any
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.storedAt) > e.ttl
}

// Cache satisfies tool.Deduper: Lookup before invocation, Store after a
// successful call. A single *Cache may back many concurrent Executor
// calls; all methods are safe for concurrent use.
type Cache struct {
	lru   *lru.Cache[string, entry]
	group singleflight.Group
	nowFn func() time.Time
}

// Option customizes Cache construction.
type Option func(*Cache)

// WithClock overrides the time source; tests use this to control TTL
// expiry deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.nowFn = now }
}

// New builds a Cache holding at most capacity entries, evicting least
// recently used once full.
func New(capacity int, opts ...Option) (*Cache, error) {
	if capacity <= 0 {
		capacity = 1024
	}
	l, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, err
	}
	c := &Cache{lru: l, nowFn: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lookup returns the cached output for (toolName, args) if present and
// unexpired, along with its age.
func (c *Cache) Lookup(toolName string, args map[string]any) (output any, age time.Duration, hit bool) {
	key := canon.Hash(toolName, args)
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, 0, false
	}
	now := c.nowFn()
	if e.expired(now) {
		c.lru.Remove(key)
		return nil, 0, false
	}
	return e.output, now.Sub(e.storedAt), true
}

// Store records output for (toolName, args), valid for ttl (0 means no
// expiry beyond LRU eviction). disabled callers should not call Store
// at all; the executor checks CacheControl before reaching here.
func (c *Cache) Store(toolName string, args map[string]any, output any, ttl time.Duration, disabled bool) {
	if disabled {
		return
	}
	key := canon.Hash(toolName, args)
	c.lru.Add(key, entry{output: output, storedAt: c.nowFn(), ttl: ttl})
}

// Do collapses concurrent identical calls into a single invocation of
// fn, so a burst of duplicate tool calls that all miss the cache at the
// same instant only runs the underlying tool once. Callers that want
// cache-or-execute semantics should check Lookup first; Do is for
// the narrower in-flight race window between a miss and a Store.
func (c *Cache) Do(toolName string, args map[string]any, fn func() (any, error)) (any, error, bool) {
	key := canon.Hash(toolName, args)
	v, err, shared := c.group.Do(key, fn)
	return v, err, shared
}

// Purge drops every cached entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	return c.lru.Len()
}
