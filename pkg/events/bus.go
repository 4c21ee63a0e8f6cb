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

package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Handler receives dispatched events. A Handler that panics has its
// panic recovered and logged; it never affects the run or other
// subscribers (spec §9).
type Handler func(Event)

// Subscription identifies one registered Handler, returned by
// Subscribe and consumed by Unsubscribe.
type Subscription struct {
	id   uint64
	kind Kind
	all  bool
}

type subscriber struct {
	sub     Subscription
	handler Handler
}

// Bus fans events out to subscribers. The subscriber list is held in a
// copy-on-write slice behind an atomic pointer: Publish reads a
// snapshot without locking, so publication never blocks on concurrent
// Subscribe/Unsubscribe calls (spec §4.8, §9).
type Bus struct {
	subs   atomic.Pointer[[]subscriber]
	mu     sync.Mutex // serializes Subscribe/Unsubscribe writers
	nextID uint64
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	b := &Bus{}
	empty := []subscriber{}
	b.subs.Store(&empty)
	return b
}

// Subscribe registers handler for every event of kind. Pass an empty
// Kind to receive all events regardless of kind.
func (b *Bus) Subscribe(kind Kind, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := Subscription{id: b.nextID, kind: kind, all: kind == ""}

	old := *b.subs.Load()
	next := make([]subscriber, len(old), len(old)+1)
	copy(next, old)
	next = append(next, subscriber{sub: sub, handler: handler})
	b.subs.Store(&next)

	return sub
}

// Unsubscribe removes a previously registered Subscription. A no-op if
// it was already removed.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := *b.subs.Load()
	next := make([]subscriber, 0, len(old))
	for _, s := range old {
		if s.sub.id != sub.id {
			next = append(next, s)
		}
	}
	b.subs.Store(&next)
}

// Publish dispatches event to every matching subscriber, in
// registration order. Each handler is invoked synchronously but a
// panic inside one is isolated from the others and from the caller.
func (b *Bus) Publish(event Event) {
	subs := *b.subs.Load()
	for _, s := range subs {
		if !s.sub.all && s.sub.kind != event.Kind {
			continue
		}
		b.dispatch(s.handler, event)
	}
}

func (b *Bus) dispatch(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("events: subscriber panicked", "kind", event.Kind, "agent_id", event.AgentID, "recovered", r)
		}
	}()
	handler(event)
}
