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
	"time"
)

// Capability identifies the kind of generation a step performs.
type Capability string

// Supported capabilities.
const (
	CapabilityText  Capability = "text"
	CapabilityImage Capability = "image"
	CapabilityAudio Capability = "audio"
)

// Valid returns true for a known capability.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityText, CapabilityImage, CapabilityAudio:
		return true
	}
	return false
}

// StepStatus is the lifecycle state of a step. Transitions are monotonic:
// pending → running → {completed, failed}.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Operation performs the actual provider call for a step. Implementations
// must honor ctx cancellation, return a result on success and an error on
// failure. The orchestrator treats the call as completely opaque.
type Operation func(ctx context.Context, step *StepRecord) (interface{}, error)

// StepSpec describes one unit of work submitted to the Engine. It is not
// mutated during execution.
type StepSpec struct {
	// Capability is the kind of generation this step performs.
	Capability Capability

	// Provider is the preferred provider for the first attempt.
	Provider string

	// Payload is an opaque description of the request, used only for
	// cache signature derivation. Same payload content against the same
	// provider always yields the same signature.
	Payload map[string]interface{}

	// Operation performs the provider call.
	Operation Operation
}

// StepRecord tracks the live state of a step inside a workflow. Records are
// owned by the Engine; once the status reaches a terminal state the record
// is no longer mutated.
type StepRecord struct {
	ID         string      `json:"id"`
	WorkflowID string      `json:"workflow_id"`
	Ordinal    int         `json:"ordinal"`
	Capability Capability  `json:"capability"`
	Provider   string      `json:"provider"` // may change on a fallback swap
	Status     StepStatus  `json:"status"`
	StartTime  time.Time   `json:"start_time,omitempty"`
	EndTime    time.Time   `json:"end_time,omitempty"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
	Attempts   int         `json:"attempts"`
	Cached     bool        `json:"cached"`
	LastError  string      `json:"last_error,omitempty"`
	Result     interface{} `json:"-"`
}

// stepID builds the canonical identifier for a step: workflow id + ordinal.
func stepID(workflowID string, ordinal int) string {
	return fmt.Sprintf("%s-%d", workflowID, ordinal)
}

// Config holds the orchestrator tuning knobs. Every field is required;
// config.Load enforces presence so no implicit defaults leak in here.
type Config struct {
	// MaxRetries is the number of additional attempts after the first,
	// per step.
	MaxRetries int

	// RetryDelay is the base backoff unit. The wait before retry n is
	// RetryDelay * 2^n.
	RetryDelay time.Duration

	// Timeout is the per-attempt wall-clock budget. An attempt that
	// exceeds it is treated as a failed attempt.
	Timeout time.Duration

	// EnableCaching gates cache reads and writes.
	EnableCaching bool

	// CacheExpiry is the maximum age of a usable cache entry. Zero means
	// every lookup misses.
	CacheExpiry time.Duration

	// CostLimitUSD is the per-session spend ceiling. Crossing 80% logs a
	// warning; at 100% new workflow submissions are rejected.
	CostLimitUSD float64
}

// Validate checks config invariants.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must be >= 0, got %v", c.RetryDelay)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.CacheExpiry < 0 {
		return fmt.Errorf("cache_expiry must be >= 0, got %v", c.CacheExpiry)
	}
	if c.CostLimitUSD < 0 {
		return fmt.Errorf("cost_limit_usd must be >= 0, got %f", c.CostLimitUSD)
	}
	return nil
}
