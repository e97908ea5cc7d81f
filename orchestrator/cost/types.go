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

// Package cost tracks per-step generation spend against a session budget.
package cost

import (
	"errors"
	"time"
)

// Sentinel errors.
var (
	ErrInvalidInput = errors.New("invalid input")
)

// UsageRecord captures the billable facts of one executed step.
type UsageRecord struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	StepID     string    `json:"step_id"`
	Capability string    `json:"capability"`
	Provider   string    `json:"provider"`
	CostUSD    float64   `json:"cost_usd"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Summary is the aggregate view served to dashboards.
type Summary struct {
	SessionTotalUSD float64       `json:"session_total_usd"`
	LimitUSD        float64       `json:"limit_usd"`
	RemainingUSD    float64       `json:"remaining_usd"`
	LimitExceeded   bool          `json:"limit_exceeded"`
	Recent          []UsageRecord `json:"recent,omitempty"`
}
