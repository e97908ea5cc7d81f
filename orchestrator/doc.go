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

/*
Package orchestrator provides the Storyloom generation orchestrator - the
multi-provider workflow engine behind AI-assisted story generation.

# Overview

A story is produced by a workflow: an ordered list of generation steps, each
scoped to one capability (text, image or audio). The orchestrator executes
those steps strictly in sequence, because later steps are usually derived
from earlier ones (an illustration prompt comes out of the generated text).

For each step the orchestrator handles:

  - Routing to a preferred provider with automatic failover to a
    configured fallback after the first failure
  - Bounded retries with exponential backoff and a per-attempt timeout
  - Response memoization under a TTL, keyed by the step's semantic signature
  - Live per-provider health tracking (latency and error-rate moving
    averages) that drives future routing decisions
  - Per-call usage recording against a session cost ceiling

The actual provider calls are injected as opaque operations; the
orchestrator never inspects request or response bodies.

# Architecture

	caller → Engine → stepExecutor → ResponseCache
	                               → injected Operation
	                               → ProviderRouter → HealthRegistry
	                               → cost.Service

Example:

	engine := NewEngine(cfg, WithHealthRegistry(registry))
	records, err := engine.Run(ctx, workflowID, steps)

# Observability

Run starts an HTTP server exposing workflow status, provider health,
usage totals, a JSON metrics snapshot and Prometheus metrics. The surface
is pull-based and read-only apart from the admin cache invalidation
endpoint.
*/
package orchestrator
