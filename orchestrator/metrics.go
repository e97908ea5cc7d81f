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
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promWorkflowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyloom_orchestrator_workflows_total",
			Help: "Total number of workflows executed, by terminal status",
		},
		[]string{"status"},
	)
	promStepAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyloom_orchestrator_step_attempts_total",
			Help: "Total number of step attempts, by provider and outcome",
		},
		[]string{"provider", "status"},
	)
	promStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyloom_orchestrator_step_duration_milliseconds",
			Help:    "End-to-end step duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"capability"},
	)
	promCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storyloom_orchestrator_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)
	promCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storyloom_orchestrator_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)
	promFallbackSwaps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyloom_orchestrator_fallback_swaps_total",
			Help: "Total number of provider fallback swaps",
		},
		[]string{"capability"},
	)
	promSessionCost = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storyloom_orchestrator_session_cost_usd",
			Help: "Cumulative session spend in USD",
		},
	)
	promCostRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storyloom_orchestrator_cost_rejections_total",
			Help: "Workflow submissions rejected by the session cost ceiling",
		},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(promWorkflowsTotal)
	prometheus.MustRegister(promStepAttemptsTotal)
	prometheus.MustRegister(promStepDuration)
	prometheus.MustRegister(promCacheHits)
	prometheus.MustRegister(promCacheMisses)
	prometheus.MustRegister(promFallbackSwaps)
	prometheus.MustRegister(promSessionCost)
	prometheus.MustRegister(promCostRejections)
}
