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
	"time"
)

// stepExecutor runs a single step through the retry/timeout state machine.
// It owns every status transition between running and a terminal state.
type stepExecutor struct {
	cfg      Config
	registry *HealthRegistry
	router   *ProviderRouter
	cache    ResponseCache
	logger   *log.Logger

	// sleep is swappable so tests can run without real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

func newStepExecutor(cfg Config, registry *HealthRegistry, router *ProviderRouter, cache ResponseCache, logger *log.Logger) *stepExecutor {
	return &stepExecutor{
		cfg:      cfg,
		registry: registry,
		router:   router,
		cache:    cache,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// execute drives one step to a terminal state:
//
//  1. Mark the step running.
//  2. On a cache hit, complete immediately and report a synthetic success
//     so health stats stay representative.
//  3. Otherwise loop attempts up to MaxRetries, racing each operation call
//     against the per-attempt timeout. A timeout is an ordinary failure.
//  4. After the first failure, swap once to the router's fallback provider.
//     The swap retries on the same attempt boundary - it does not extend
//     the total attempt budget by more than the one swapped call.
//  5. Exhaustion marks the step failed and surfaces a StepError.
func (e *stepExecutor) execute(ctx context.Context, entry *workflowEntry, idx int, spec StepSpec) (interface{}, error) {
	start := time.Now()
	var snapshot StepRecord
	entry.update(idx, func(s *StepRecord) {
		s.Status = StepRunning
		s.StartTime = start
		snapshot = *s
	})

	provider := snapshot.Provider

	if e.cfg.EnableCaching {
		sig := Signature(spec.Capability, provider, spec.Payload)
		if result, ok := e.cache.Get(sig); ok {
			promCacheHits.Inc()
			e.registry.RecordOutcome(provider, true, time.Since(start))
			e.finish(entry, idx, spec.Capability, func(s *StepRecord) {
				s.Status = StepCompleted
				s.Cached = true
				s.Result = result
			})
			e.logger.Printf("Step %s served from cache", snapshot.ID)
			return result, nil
		}
		promCacheMisses.Inc()
	}

	var lastErr error
	swapped := false

	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		entry.update(idx, func(s *StepRecord) {
			s.Attempts++
			snapshot = *s
		})

		attemptStart := time.Now()
		result, err := e.invoke(ctx, spec.Operation, snapshot)
		elapsed := time.Since(attemptStart)

		if err == nil {
			promStepAttemptsTotal.WithLabelValues(provider, "success").Inc()
			e.registry.RecordOutcome(provider, true, elapsed)
			if e.cfg.EnableCaching {
				e.cache.Put(Signature(spec.Capability, provider, spec.Payload), result)
			}
			e.finish(entry, idx, spec.Capability, func(s *StepRecord) {
				s.Status = StepCompleted
				s.Result = result
			})
			return result, nil
		}

		lastErr = err
		promStepAttemptsTotal.WithLabelValues(provider, "failure").Inc()
		e.registry.RecordOutcome(provider, false, elapsed)
		e.logger.Printf("Step %s attempt %d failed on %s: %v", snapshot.ID, attempt+1, provider, err)

		if attempt == 0 && !swapped {
			if fallback := e.router.FallbackFor(provider, spec.Capability); fallback != "" {
				e.logger.Printf("Step %s failing over from %s to %s", snapshot.ID, provider, fallback)
				promFallbackSwaps.WithLabelValues(string(spec.Capability)).Inc()
				provider = fallback
				entry.update(idx, func(s *StepRecord) {
					s.Provider = fallback
				})
				swapped = true
				// The swapped call replays the same attempt boundary
				// instead of consuming a retry.
				attempt--
				continue
			}
		}

		if attempt < e.cfg.MaxRetries {
			backoff := e.cfg.RetryDelay * time.Duration(1<<uint(attempt))
			if err := e.sleep(ctx, backoff); err != nil {
				lastErr = err
				break
			}
		}
	}

	e.finish(entry, idx, spec.Capability, func(s *StepRecord) {
		s.Status = StepFailed
		s.LastError = lastErr.Error()
		snapshot = *s
	})

	return nil, &StepError{
		WorkflowID: snapshot.WorkflowID,
		StepID:     snapshot.ID,
		Capability: spec.Capability,
		Provider:   provider,
		Attempts:   snapshot.Attempts,
		Err:        lastErr,
	}
}

// invoke races the injected operation against the per-attempt timeout. The
// operation may keep running in the background after a timeout; its result
// is discarded.
func (e *stepExecutor) invoke(ctx context.Context, op Operation, step StepRecord) (interface{}, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := op(attemptCtx, &step)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("operation timed out after %v", e.cfg.Timeout)
	}
}

// finish applies the terminal mutation plus end-time bookkeeping and
// records the step duration metric.
func (e *stepExecutor) finish(entry *workflowEntry, idx int, capability Capability, mutate func(*StepRecord)) {
	var duration time.Duration
	entry.update(idx, func(s *StepRecord) {
		mutate(s)
		s.EndTime = time.Now()
		s.Duration = s.EndTime.Sub(s.StartTime)
		duration = s.Duration
	})
	promStepDuration.WithLabelValues(string(capability)).Observe(float64(duration.Milliseconds()))
}
