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

package events_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tessera-ai/agentloop/pkg/events"
)

func TestBus_DeliversToMatchingKindOnly(t *testing.T) {
	bus := events.NewBus()
	var got []events.Kind
	var mu sync.Mutex

	bus.Subscribe(events.KindToolCallStarted, func(e events.Event) {
		mu.Lock()
		got = append(got, e.Kind)
		mu.Unlock()
	})

	bus.Publish(events.Event{Kind: events.KindToolCallStarted})
	bus.Publish(events.Event{Kind: events.KindRunStarted})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []events.Kind{events.KindToolCallStarted}, got)
}

func TestBus_WildcardSubscriberReceivesEverything(t *testing.T) {
	bus := events.NewBus()
	count := 0
	bus.Subscribe("", func(events.Event) { count++ })

	bus.Publish(events.Event{Kind: events.KindRunStarted})
	bus.Publish(events.Event{Kind: events.KindToolCallStarted})

	assert.Equal(t, 2, count)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := events.NewBus()
	count := 0
	sub := bus.Subscribe(events.KindRunStarted, func(events.Event) { count++ })

	bus.Publish(events.Event{Kind: events.KindRunStarted})
	bus.Unsubscribe(sub)
	bus.Publish(events.Event{Kind: events.KindRunStarted})

	assert.Equal(t, 1, count)
}

func TestBus_PanickingHandlerDoesNotAffectOthers(t *testing.T) {
	bus := events.NewBus()
	secondCalled := false

	bus.Subscribe("", func(events.Event) { panic("boom") })
	bus.Subscribe("", func(events.Event) { secondCalled = true })

	assert.NotPanics(t, func() {
		bus.Publish(events.Event{Kind: events.KindRunStarted})
	})
	assert.True(t, secondCalled)
}

func TestMetrics_SnapshotReflectsRecordedValues(t *testing.T) {
	m := events.NewMetrics()
	m.RecordDedupeHit()
	m.RecordDedupeHit()
	m.RecordDedupeMiss()
	m.RecordToolCall("search", true, 10*time.Millisecond)
	m.RecordLoopDetection()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.DedupeHits)
	assert.Equal(t, int64(1), snap.DedupeMisses)
	assert.Equal(t, int64(1), snap.LoopDetections)
}
