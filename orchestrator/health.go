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
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// EMA weights. Latency reacts faster than error rate: a provider should not
// be re-trusted after one lucky call.
const (
	latencyEMAWeight = 0.3
	errorEMAWeight   = 0.1

	// unhealthyErrorRate is the error-rate threshold above which a
	// provider is flagged unhealthy.
	unhealthyErrorRate = 0.5
)

// HealthRecord is the rolling health state for one provider. Records live
// for the whole process; they are created at registration and never deleted.
type HealthRecord struct {
	Provider       string     `json:"provider"`
	Capability     Capability `json:"capability"`
	Healthy        bool       `json:"healthy"`
	LatencySeconds float64    `json:"latency_seconds"`
	ErrorRate      float64    `json:"error_rate"`
	LastUsed       time.Time  `json:"last_used,omitempty"`
	SessionCostUSD float64    `json:"session_cost_usd"`
}

// HealthRegistry maintains per-provider health records and answers routing
// queries. It is safe for concurrent use across workflows.
type HealthRegistry struct {
	mu       sync.RWMutex
	records  map[string]*HealthRecord
	order    []string              // registration order, used for tie-breaking
	defaults map[Capability]string // degrade target when nothing is healthy
	logger   *log.Logger
}

// HealthRegistryOption configures the registry during creation.
type HealthRegistryOption func(*HealthRegistry)

// WithHealthLogger sets a custom logger for the registry.
func WithHealthLogger(logger *log.Logger) HealthRegistryOption {
	return func(r *HealthRegistry) {
		r.logger = logger
	}
}

// NewHealthRegistry creates an empty health registry.
func NewHealthRegistry(opts ...HealthRegistryOption) *HealthRegistry {
	r := &HealthRegistry{
		records:  make(map[string]*HealthRecord),
		defaults: make(map[Capability]string),
		logger:   log.New(os.Stdout, "[Health] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider with a healthy default record.
// Registration order matters: it breaks ties in BestProvider.
func (r *HealthRegistry) RegisterProvider(name string, capability Capability) error {
	if name == "" {
		return fmt.Errorf("provider name is required")
	}
	if !capability.Valid() {
		return fmt.Errorf("unknown capability %q for provider %q", capability, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}

	r.records[name] = &HealthRecord{
		Provider:   name,
		Capability: capability,
		Healthy:    true,
	}
	r.order = append(r.order, name)
	r.logger.Printf("Registered provider %s (%s)", name, capability)
	return nil
}

// SetDefault sets the degrade target for a capability: the provider
// BestProvider returns when no provider of that capability is healthy.
func (r *HealthRegistry) SetDefault(capability Capability, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults[capability] = provider
}

// RecordOutcome updates a provider's health record after an attempt.
// Latency and error rate are exponential moving averages; the health flag
// flips once the error rate crosses the unhealthy threshold. Unknown
// providers are ignored.
func (r *HealthRegistry) RecordOutcome(provider string, succeeded bool, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[provider]
	if !exists {
		return
	}

	failure := 0.0
	if !succeeded {
		failure = 1.0
	}

	rec.LatencySeconds = rec.LatencySeconds*(1-latencyEMAWeight) + elapsed.Seconds()*latencyEMAWeight
	rec.ErrorRate = rec.ErrorRate*(1-errorEMAWeight) + failure*errorEMAWeight

	wasHealthy := rec.Healthy
	rec.Healthy = rec.ErrorRate < unhealthyErrorRate
	rec.LastUsed = time.Now()

	if wasHealthy && !rec.Healthy {
		r.logger.Printf("Provider %s marked unhealthy (error rate %.2f)", provider, rec.ErrorRate)
	} else if !wasHealthy && rec.Healthy {
		r.logger.Printf("Provider %s recovered (error rate %.2f)", provider, rec.ErrorRate)
	}
}

// RecordCost adds to a provider's cumulative session cost counter.
func (r *HealthRegistry) RecordCost(provider string, usd float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, exists := r.records[provider]; exists {
		rec.SessionCostUSD += usd
	}
}

// IsHealthy reports the current health flag for a provider. Unknown
// providers report false.
func (r *HealthRegistry) IsHealthy(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[provider]
	return exists && rec.Healthy
}

// CapabilityOf returns the capability a provider was registered under.
func (r *HealthRegistry) CapabilityOf(provider string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[provider]
	if !exists {
		return "", false
	}
	return rec.Capability, true
}

// BestProvider picks the healthiest provider for a capability: health flag
// set, lowest error rate, then lowest latency, ties broken by registration
// order. When nothing is healthy it degrades to the configured default for
// that capability rather than failing the routing decision.
func (r *HealthRegistry) BestProvider(capability Capability) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best := ""
	var bestRec *HealthRecord
	for _, name := range r.order {
		rec := r.records[name]
		if rec.Capability != capability || !rec.Healthy {
			continue
		}
		if bestRec == nil || betterHealth(rec, bestRec) {
			best = name
			bestRec = rec
		}
	}
	if best != "" {
		return best
	}
	return r.defaults[capability]
}

// betterHealth reports whether a is strictly preferable to b. Equal stats
// keep b, preserving registration order.
func betterHealth(a, b *HealthRecord) bool {
	if a.ErrorRate != b.ErrorRate {
		return a.ErrorRate < b.ErrorRate
	}
	return a.LatencySeconds < b.LatencySeconds
}

// Status returns a point-in-time copy of every health record, in
// registration order. Read-only; intended for dashboards.
func (r *HealthRegistry) Status() []HealthRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]HealthRecord, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.records[name])
	}
	return out
}
