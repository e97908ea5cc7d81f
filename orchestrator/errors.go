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
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the Engine.
var (
	// ErrWorkflowDuplicate indicates a Run call reused an id that is
	// still active. Rejected before any step executes.
	ErrWorkflowDuplicate = errors.New("workflow id already active")

	// ErrWorkflowNotFound indicates StatusOf was asked about an id that
	// is not in the live registry.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrCostLimitExceeded indicates the session spend ceiling has been
	// reached; new workflow submissions are rejected.
	ErrCostLimitExceeded = errors.New("session cost limit exceeded")
)

// StepError carries the structured diagnostics for a step that exhausted
// its attempt budget. It is what the caller of Run receives when a workflow
// aborts; translating it into end-user copy is the caller's job.
type StepError struct {
	WorkflowID string
	StepID     string
	Capability Capability
	Provider   string // provider of the final attempt
	Attempts   int    // total operation invocations
	Err        error  // last attempt's error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%s via %s) failed after %d attempts: %v",
		e.StepID, e.Capability, e.Provider, e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *StepError) Unwrap() error {
	return e.Err
}
