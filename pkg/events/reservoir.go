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
	"sort"
	"sync"
	"time"
)

// reservoir keeps the most recent `size` duration samples, for cheap
// P95/P99 estimation without retaining a full history (spec §4.8, §9:
// "bounded reservoir (most recent ~1000 samples)").
type reservoir struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	size    int
}

func newReservoir(size int) *reservoir {
	if size <= 0 {
		size = 1000
	}
	return &reservoir{size: size}
}

func (r *reservoir) record(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) < r.size {
		r.samples = append(r.samples, d)
		return
	}
	r.samples[r.next] = d
	r.next = (r.next + 1) % r.size
}

// percentiles returns a consistent-ish snapshot of p95/p99 over the
// currently retained samples (spec §8, property 8 only requires
// counters be monotone; percentile snapshots are explicitly
// best-effort).
func (r *reservoir) percentiles() (p95, p99 time.Duration) {
	r.mu.Lock()
	sorted := append([]time.Duration(nil), r.samples...)
	r.mu.Unlock()

	if len(sorted) == 0 {
		return 0, 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return percentileOf(sorted, 0.95), percentileOf(sorted, 0.99)
}

func percentileOf(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
