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
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates counters, success rates, token usage, and
// reservoir-sampled percentile timings for agent runs, model calls,
// and tool calls (spec §4.8). Prometheus vectors back the counters so
// a host can expose /metrics in the usual way; the reservoir sampler
// backs the in-process Snapshot API, which Prometheus histograms
// cannot serve directly (they report fixed buckets, not raw percentiles).
type Metrics struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	runsFailed     *prometheus.CounterVec
	llmCallsTotal  *prometheus.CounterVec
	llmCallsFailed *prometheus.CounterVec
	toolCallsTotal *prometheus.CounterVec
	toolFailed     *prometheus.CounterVec
	dedupeHits     prometheus.Counter
	dedupeMisses   prometheus.Counter
	loopDetections prometheus.Counter
	tokensInput    *prometheus.CounterVec
	tokensOutput   *prometheus.CounterVec

	runDurations  *reservoir
	llmDurations  *reservoir
	toolDurations *reservoir

	dedupeHitCount  atomic.Int64
	dedupeMissCount atomic.Int64
	loopDetectCount atomic.Int64
}

// NewMetrics builds a Metrics collector registered against a fresh
// Prometheus registry. Call Registry to expose it via promhttp.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentloop_runs_total", Help: "Total agent runs started.",
		}, nil),
		runsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentloop_runs_failed_total", Help: "Agent runs that terminated unsuccessfully, by error kind.",
		}, []string{"error"}),
		llmCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentloop_llm_calls_total", Help: "Total model calls.",
		}, nil),
		llmCallsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentloop_llm_calls_failed_total", Help: "Model calls that failed, by failure kind.",
		}, []string{"kind"}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentloop_tool_calls_total", Help: "Total tool invocations, by tool name.",
		}, []string{"tool"}),
		toolFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentloop_tool_calls_failed_total", Help: "Tool invocations that failed, by tool name.",
		}, []string{"tool"}),
		dedupeHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentloop_dedupe_hits_total", Help: "Tool calls served from the dedupe cache.",
		}),
		dedupeMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentloop_dedupe_misses_total", Help: "Tool calls not found in the dedupe cache.",
		}),
		loopDetections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentloop_loop_detections_total", Help: "Runs terminated by the loop detector.",
		}),
		tokensInput: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentloop_tokens_input_total", Help: "Input tokens consumed, by model.",
		}, []string{"model"}),
		tokensOutput: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentloop_tokens_output_total", Help: "Output tokens produced, by model.",
		}, []string{"model"}),
		runDurations:  newReservoir(1000),
		llmDurations:  newReservoir(1000),
		toolDurations: newReservoir(1000),
	}
	reg.MustRegister(
		m.runsTotal, m.runsFailed, m.llmCallsTotal, m.llmCallsFailed,
		m.toolCallsTotal, m.toolFailed, m.dedupeHits, m.dedupeMisses,
		m.loopDetections, m.tokensInput, m.tokensOutput,
	)
	return m
}

// Registry exposes the underlying Prometheus registry for promhttp.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordRunStarted increments the run counter.
func (m *Metrics) RecordRunStarted() {
	m.runsTotal.WithLabelValues().Inc()
}

// RecordRunCompleted records a terminated run's outcome and duration.
func (m *Metrics) RecordRunCompleted(succeeded bool, errorKind string, elapsed time.Duration) {
	if !succeeded {
		m.runsFailed.WithLabelValues(errorKind).Inc()
	}
	m.runDurations.record(elapsed)
}

// RecordLlmCall records one model call's outcome and duration.
func (m *Metrics) RecordLlmCall(succeeded bool, failureKind string, elapsed time.Duration) {
	m.llmCallsTotal.WithLabelValues().Inc()
	if !succeeded {
		m.llmCallsFailed.WithLabelValues(failureKind).Inc()
	}
	m.llmDurations.record(elapsed)
}

// RecordTokenUsage records input/output token counts for model.
func (m *Metrics) RecordTokenUsage(model string, input, output int) {
	m.tokensInput.WithLabelValues(model).Add(float64(input))
	m.tokensOutput.WithLabelValues(model).Add(float64(output))
}

// RecordToolCall records one tool invocation's outcome and duration.
func (m *Metrics) RecordToolCall(toolName string, succeeded bool, elapsed time.Duration) {
	m.toolCallsTotal.WithLabelValues(toolName).Inc()
	if !succeeded {
		m.toolFailed.WithLabelValues(toolName).Inc()
	}
	m.toolDurations.record(elapsed)
}

// RecordDedupeHit/RecordDedupeMiss track the dedupe hit rate.
func (m *Metrics) RecordDedupeHit() {
	m.dedupeHits.Inc()
	m.dedupeHitCount.Add(1)
}

func (m *Metrics) RecordDedupeMiss() {
	m.dedupeMisses.Inc()
	m.dedupeMissCount.Add(1)
}

// RecordLoopDetection increments the loop-detection counter.
func (m *Metrics) RecordLoopDetection() {
	m.loopDetections.Inc()
	m.loopDetectCount.Add(1)
}

// Snapshot is a consistent-ish point-in-time view of the metrics
// (spec §4.8: "individual counters may advance during snapshot — this
// is acceptable").
type Snapshot struct {
	DedupeHits       int64
	DedupeMisses     int64
	LoopDetections   int64
	RunP95, RunP99   time.Duration
	LlmP95, LlmP99   time.Duration
	ToolP95, ToolP99 time.Duration
}

// Snapshot returns the current view of derived metrics.
func (m *Metrics) Snapshot() Snapshot {
	runP95, runP99 := m.runDurations.percentiles()
	llmP95, llmP99 := m.llmDurations.percentiles()
	toolP95, toolP99 := m.toolDurations.percentiles()
	return Snapshot{
		DedupeHits:     m.dedupeHitCount.Load(),
		DedupeMisses:   m.dedupeMissCount.Load(),
		LoopDetections: m.loopDetectCount.Load(),
		RunP95:         runP95,
		RunP99:         runP99,
		LlmP95:         llmP95,
		LlmP99:         llmP99,
		ToolP95:        toolP95,
		ToolP99:        toolP99,
	}
}
