// Copyright 2025 Storyloom
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

package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"storyloom/platform/orchestrator/cost"
)

// workflowEntry is the live state for one in-flight workflow. Records are
// mutated only through update so StatusOf snapshots never race execution.
type workflowEntry struct {
	mu      sync.RWMutex
	records []*StepRecord
}

func (w *workflowEntry) update(idx int, fn func(*StepRecord)) {
	w.mu.Lock()
	fn(w.records[idx])
	w.mu.Unlock()
}

func (w *workflowEntry) snapshot() []StepRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]StepRecord, len(w.records))
	for i, rec := range w.records {
		out[i] = *rec
	}
	return out
}

// Engine executes workflows: ordered step lists submitted under a unique
// workflow id. Steps run strictly sequentially; step n+1 does not start
// until step n reaches a terminal state. The Engine is safe for concurrent
// Run calls with distinct ids.
type Engine struct {
	cfg      Config
	registry *HealthRegistry
	router   *ProviderRouter
	cache    ResponseCache
	costs    *cost.Service
	executor *stepExecutor
	logger   *log.Logger

	mu     sync.Mutex
	active map[string]*workflowEntry
}

// EngineOption configures the Engine during creation.
type EngineOption func(*Engine)

// WithHealthRegistry sets the provider health registry.
func WithHealthRegistry(r *HealthRegistry) EngineOption {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithRouter sets the provider router.
func WithRouter(r *ProviderRouter) EngineOption {
	return func(e *Engine) {
		e.router = r
	}
}

// WithCache sets the response cache implementation.
func WithCache(c ResponseCache) EngineOption {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithCostService sets the usage/cost tracking service.
func WithCostService(s *cost.Service) EngineOption {
	return func(e *Engine) {
		e.costs = s
	}
}

// WithEngineLogger sets a custom logger.
func WithEngineLogger(l *log.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an Engine. Collaborators left unset get in-process
// defaults: an empty health registry, a router with an empty fallback
// table and an in-memory cache sized at DefaultCacheSize.
func NewEngine(cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:    cfg,
		active: make(map[string]*workflowEntry),
		logger: log.New(os.Stdout, "[Engine] ", log.LstdFlags),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.registry == nil {
		e.registry = NewHealthRegistry()
	}
	if e.router == nil {
		e.router = NewProviderRouter(e.registry, nil)
	}
	if e.cache == nil {
		e.cache = NewMemoryCache(cfg.CacheExpiry, 0)
	}

	e.executor = newStepExecutor(cfg, e.registry, e.router, e.cache, e.logger)
	return e
}

// Run executes the steps of a workflow in order and returns the terminal
// step records. The call is all-or-nothing from the caller's perspective:
// if any step exhausts its attempt budget the whole call fails with that
// step's error, and already-completed steps are not compensated. The
// workflow is removed from the live registry before Run returns, success
// or not.
func (e *Engine) Run(ctx context.Context, workflowID string, specs []StepSpec) ([]StepRecord, error) {
	if workflowID == "" {
		return nil, fmt.Errorf("workflow id is required")
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("workflow %s has no steps", workflowID)
	}
	for i, spec := range specs {
		if !spec.Capability.Valid() {
			return nil, fmt.Errorf("step %d: unknown capability %q", i, spec.Capability)
		}
		if spec.Operation == nil {
			return nil, fmt.Errorf("step %d: operation is required", i)
		}
	}

	if e.costs != nil && e.costs.LimitExceeded() {
		promCostRejections.Inc()
		return nil, fmt.Errorf("%w: spent $%.4f of $%.4f", ErrCostLimitExceeded,
			e.costs.SessionTotalUSD(), e.costs.LimitUSD())
	}

	entry := &workflowEntry{records: make([]*StepRecord, len(specs))}
	for i, spec := range specs {
		provider := spec.Provider
		if provider == "" {
			provider = e.registry.BestProvider(spec.Capability)
		}
		entry.records[i] = &StepRecord{
			ID:         stepID(workflowID, i),
			WorkflowID: workflowID,
			Ordinal:    i,
			Capability: spec.Capability,
			Provider:   provider,
			Status:     StepPending,
		}
	}

	// Registration is atomic with the duplicate check: a concurrent
	// duplicate submission is rejected before any of its steps execute.
	e.mu.Lock()
	if _, exists := e.active[workflowID]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrWorkflowDuplicate, workflowID)
	}
	e.active[workflowID] = entry
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.active, workflowID)
		e.mu.Unlock()
	}()

	e.logger.Printf("Starting workflow %s (%d steps)", workflowID, len(specs))

	for i, spec := range specs {
		if _, err := e.executor.execute(ctx, entry, i, spec); err != nil {
			promWorkflowsTotal.WithLabelValues("failed").Inc()
			e.logger.Printf("Workflow %s aborted at step %d: %v", workflowID, i, err)
			return nil, err
		}

		e.recordUsage(ctx, entry.snapshot()[i])
	}

	promWorkflowsTotal.WithLabelValues("completed").Inc()
	e.logger.Printf("Workflow %s completed", workflowID)
	return entry.snapshot(), nil
}

// recordUsage charges a completed step against the session budget and the
// provider's cumulative cost counter. Cache hits are free.
func (e *Engine) recordUsage(ctx context.Context, rec StepRecord) {
	if e.costs == nil || rec.Cached {
		return
	}

	usage := &cost.UsageRecord{
		WorkflowID: rec.WorkflowID,
		StepID:     rec.ID,
		Capability: string(rec.Capability),
		Provider:   rec.Provider,
		DurationMs: rec.Duration.Milliseconds(),
	}
	total, err := e.costs.RecordUsage(ctx, usage)
	if err != nil {
		e.logger.Printf("Failed to record usage for %s: %v", rec.ID, err)
		return
	}
	e.registry.RecordCost(rec.Provider, usage.CostUSD)
	promSessionCost.Set(total)
}

// StatusOf returns a snapshot of the live step records for an in-flight
// workflow. Diagnostics only; the execution path never reads it.
func (e *Engine) StatusOf(workflowID string) ([]StepRecord, error) {
	e.mu.Lock()
	entry, exists := e.active[workflowID]
	e.mu.Unlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}
	return entry.snapshot(), nil
}

// ActiveWorkflows returns snapshots of every in-flight workflow, keyed by
// workflow id. Pull-based observability for dashboards.
func (e *Engine) ActiveWorkflows() map[string][]StepRecord {
	e.mu.Lock()
	entries := make(map[string]*workflowEntry, len(e.active))
	for id, entry := range e.active {
		entries[id] = entry
	}
	e.mu.Unlock()

	out := make(map[string][]StepRecord, len(entries))
	for id, entry := range entries {
		out[id] = entry.snapshot()
	}
	return out
}

// ProviderStatus returns the current health record snapshot.
func (e *Engine) ProviderStatus() []HealthRecord {
	return e.registry.Status()
}

// ClearCache drops all memoized results. Admin action.
func (e *Engine) ClearCache() {
	e.cache.Clear()
	e.logger.Printf("Response cache cleared")
}

// Registry exposes the health registry for wiring and tests.
func (e *Engine) Registry() *HealthRegistry {
	return e.registry
}
