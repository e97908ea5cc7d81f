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
	"log"
	"os"
)

// ProviderRouter resolves fallback providers from a static table. The table
// is configuration: the router consults it but never mutates it, and it
// never fabricates a fallback outside the table. That bounds the search
// space and keeps an image provider from ever being offered for a text step.
type ProviderRouter struct {
	registry  *HealthRegistry
	fallbacks map[string]string // provider → fallback provider
	logger    *log.Logger
}

// NewProviderRouter creates a router over the given registry and fallback
// table. The table maps a provider name to its alternate for the same
// capability; a provider mapped to itself has no real fallback.
func NewProviderRouter(registry *HealthRegistry, fallbacks map[string]string) *ProviderRouter {
	table := make(map[string]string, len(fallbacks))
	for k, v := range fallbacks {
		table[k] = v
	}
	return &ProviderRouter{
		registry:  registry,
		fallbacks: table,
		logger:    log.New(os.Stdout, "[Router] ", log.LstdFlags),
	}
}

// FallbackFor returns the alternate provider to swap to after a failure on
// the given provider, or "" when no distinct, same-capability, currently
// healthy fallback exists.
func (r *ProviderRouter) FallbackFor(provider string, capability Capability) string {
	fallback, exists := r.fallbacks[provider]
	if !exists || fallback == "" || fallback == provider {
		return ""
	}

	fbCapability, known := r.registry.CapabilityOf(fallback)
	if !known || fbCapability != capability {
		r.logger.Printf("Ignoring fallback %s for %s: capability mismatch", fallback, provider)
		return ""
	}

	if !r.registry.IsHealthy(fallback) {
		return ""
	}
	return fallback
}
