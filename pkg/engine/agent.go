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

// Package engine implements the turn loop controller (component C7):
// the state machine that orchestrates every other component
// (pkg/model, pkg/tool, pkg/dedupe, pkg/loopdetect, pkg/statestore,
// pkg/reasoning, pkg/events, pkg/streamfilter, pkg/history,
// pkg/prompt) into one agent run.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/tessera-ai/agentloop/pkg/agentstate"
	"github.com/tessera-ai/agentloop/pkg/config"
	"github.com/tessera-ai/agentloop/pkg/dedupe"
	"github.com/tessera-ai/agentloop/pkg/events"
	"github.com/tessera-ai/agentloop/pkg/history"
	"github.com/tessera-ai/agentloop/pkg/loopdetect"
	"github.com/tessera-ai/agentloop/pkg/model"
	"github.com/tessera-ai/agentloop/pkg/prompt"
	"github.com/tessera-ai/agentloop/pkg/reasoning"
	"github.com/tessera-ai/agentloop/pkg/statestore"
	"github.com/tessera-ai/agentloop/pkg/tool"
)

// Agent is a configured runtime instance created by CreateAgent. It is
// safe for concurrent use: distinct agentIds run fully in parallel;
// calls that share an agentId are serialized on a per-agentId lock
// (spec §3's "concurrent Run calls for the same agentId" open
// question, resolved here as serialize-not-fail-fast, so a host that
// accidentally issues two Run calls for the same id gets correct
// sequencing instead of a race on the persisted state).
type Agent struct {
	client model.Client
	store  statestore.Store
	cfg    config.Config

	dedupe     *dedupe.Cache
	detector   *loopdetect.Detector
	compactor  *history.Compactor
	summarizer history.Summarizer
	builder    *prompt.Builder

	bus     *events.Bus
	metrics *events.Metrics
	tracer  trace.Tracer
	limiter *rate.Limiter

	cot *reasoning.CoTEngine
	tot *reasoning.ToTEngine

	runLocksMu sync.Mutex
	runLocks   map[string]*sync.Mutex
}

// Option customizes CreateAgent beyond config.Config.
type Option func(*Agent)

// WithSummarizer overrides the default model-backed history summarizer,
// e.g. with history.NewDeterministicTextualizer or any custom
// implementation.
func WithSummarizer(s history.Summarizer) Option {
	return func(a *Agent) { a.summarizer = s }
}

// WithTracer overrides the default no-op tracer. A host wiring
// go.opentelemetry.io/otel/sdk/trace with the stdouttrace exporter
// passes tracerProvider.Tracer("agentloop") here.
func WithTracer(tracer trace.Tracer) Option {
	return func(a *Agent) { a.tracer = tracer }
}

// WithBus overrides the default private event bus, letting a host share
// one Bus across multiple Agent instances.
func WithBus(bus *events.Bus) Option {
	return func(a *Agent) { a.bus = bus }
}

// WithMetrics overrides the default private Metrics collector, letting
// a host share one Prometheus registry across multiple Agent instances.
func WithMetrics(m *events.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// CreateAgent builds an Agent over client and store, applying cfg's
// defaults and validating it synchronously (spec §7: configuration
// errors surface at CreateAgent, not mid-run).
func CreateAgent(client model.Client, store statestore.Store, cfg config.Config, opts ...Option) (*Agent, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, &RunError{Code: ErrInvalidConfiguration, Cause: err}
	}

	dedupeCache, err := dedupe.New(cfg.DedupeCacheCapacity)
	if err != nil {
		return nil, &RunError{Code: ErrInternal, Cause: fmt.Errorf("engine: building dedupe cache: %w", err)}
	}

	a := &Agent{
		client: client,
		store:  store,
		cfg:    cfg,

		dedupe: dedupeCache,
		detector: loopdetect.New(loopdetect.Config{
			HistorySize:                 cfg.MaxToolCallHistory,
			ConsecutiveFailureThreshold: cfg.ConsecutiveFailureThreshold,
		}),
		compactor: history.New(history.Config{
			MaxRecentTurns:   cfg.MaxRecentTurns,
			MaxSummaryLength: cfg.MaxSummaryLength,
			Enabled:          cfg.EnableHistorySummarization,
		}),
		builder: prompt.New(prompt.Caps{
			MaxToolOutputSize: cfg.MaxToolOutputSize,
			MaxThoughtsLength: cfg.MaxThoughtsLength,
			MaxFinalLength:    cfg.MaxFinalLength,
			MaxSummaryLength:  cfg.MaxSummaryLength,
		}),

		bus:     events.NewBus(),
		metrics: events.NewMetrics(),
		tracer:  noop.NewTracerProvider().Tracer("agentloop"),

		cot: reasoning.NewCoTEngine(reasoning.CoTConfig{
			MaxReasoningSteps:   cfg.MaxReasoningSteps,
			ConfidenceThreshold: cfg.ConfidenceThreshold,
		}),
		tot: reasoning.NewToTEngine(reasoning.ToTConfig{
			MaxDepth:            cfg.MaxDepth,
			MaxBranching:        cfg.MaxBranching,
			BeamWidth:           cfg.BeamWidth,
			ExplorationStrategy: cfg.ExplorationStrategy,
			AcceptanceThreshold: cfg.AcceptanceThreshold,
		}),

		runLocks: make(map[string]*sync.Mutex),
	}
	a.summarizer = &modelSummarizer{agent: a}

	if cfg.MaxCallsPerSecond > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.MaxCallsPerSecond), 1)
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Subscribe registers handler for every event of kind (pass "" for all
// kinds), returning a Subscription to later pass to Unsubscribe.
func (a *Agent) Subscribe(kind events.Kind, handler events.Handler) events.Subscription {
	return a.bus.Subscribe(kind, handler)
}

// Unsubscribe removes a previously registered Subscription.
func (a *Agent) Unsubscribe(sub events.Subscription) {
	a.bus.Unsubscribe(sub)
}

// Metrics returns a point-in-time snapshot of aggregate metrics.
func (a *Agent) Metrics() events.Snapshot {
	return a.metrics.Snapshot()
}

// MetricsRegistry exposes the Prometheus registry backing Metrics, for
// a host to serve via promhttp.
func (a *Agent) MetricsRegistry() *prometheus.Registry {
	return a.metrics.Registry()
}

// ToolCallHistory returns the bounded loop-detection ring recorded for
// agentID's persisted state, for host-side debugging (SPEC_FULL
// supplemental feature 5). It does not mutate engine state.
func (a *Agent) ToolCallHistory(ctx context.Context, agentID string) ([]agentstate.ToolCallHistoryEntry, error) {
	state, err := a.store.Load(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return state.ToolCallHistory, nil
}

// lockFor returns the per-agentID mutex, creating it on first use. The
// lock is never removed: agent ids are expected to be a small, bounded
// set of long-lived identities, not a high-cardinality stream, so the
// map does not need eviction.
func (a *Agent) lockFor(agentID string) *sync.Mutex {
	a.runLocksMu.Lock()
	defer a.runLocksMu.Unlock()
	lock, ok := a.runLocks[agentID]
	if !ok {
		lock = &sync.Mutex{}
		a.runLocks[agentID] = lock
	}
	return lock
}

// registryFor builds a fresh per-run tool registry and executor scoped
// to exactly the tools passed to Run/Step (spec §4.1/§6: tools are a
// Run-time argument, not a process-global registration). The dedupe
// cache is shared process-wide (spec §5), so repeated calls across runs
// still benefit from cache hits.
func (a *Agent) registryFor(tools []tool.Tool) (*tool.Registry, *tool.Executor, error) {
	registry := tool.NewRegistry()
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return nil, nil, fmt.Errorf("engine: registering tool: %w", err)
		}
	}
	executor := tool.NewExecutor(registry, a.dedupe, tool.ExecutorConfig{
		ToolTimeout:      a.cfg.ToolTimeout,
		MaxParallelTools: a.cfg.MaxParallelTools,
		DefaultCacheTTL:  a.cfg.DedupeStalenessThreshold,
	})
	return registry, executor, nil
}
