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
	"testing"
	"time"
)

func newTestRouter(t *testing.T) (*HealthRegistry, *ProviderRouter) {
	t.Helper()

	registry := NewHealthRegistry()
	providers := map[string]Capability{
		"openai-text":      CapabilityText,
		"anthropic-text":   CapabilityText,
		"stability-image":  CapabilityImage,
		"replicate-image":  CapabilityImage,
		"elevenlabs-audio": CapabilityAudio,
	}
	for name, capability := range providers {
		if err := registry.RegisterProvider(name, capability); err != nil {
			t.Fatal(err)
		}
	}

	router := NewProviderRouter(registry, map[string]string{
		"openai-text":      "anthropic-text",
		"anthropic-text":   "openai-text",
		"stability-image":  "replicate-image",
		"replicate-image":  "stability-image",
		"elevenlabs-audio": "elevenlabs-audio", // no real alternate
		"misrouted":        "stability-image",  // wrong capability on purpose
	})
	return registry, router
}

func TestFallbackFor(t *testing.T) {
	t.Run("healthy distinct fallback", func(t *testing.T) {
		_, router := newTestRouter(t)
		if got := router.FallbackFor("openai-text", CapabilityText); got != "anthropic-text" {
			t.Errorf("FallbackFor = %q, want anthropic-text", got)
		}
	})

	t.Run("self mapping yields none", func(t *testing.T) {
		_, router := newTestRouter(t)
		if got := router.FallbackFor("elevenlabs-audio", CapabilityAudio); got != "" {
			t.Errorf("FallbackFor = %q, want empty", got)
		}
	})

	t.Run("unlisted provider yields none", func(t *testing.T) {
		_, router := newTestRouter(t)
		if got := router.FallbackFor("unknown", CapabilityText); got != "" {
			t.Errorf("FallbackFor = %q, want empty", got)
		}
	})

	t.Run("unhealthy fallback yields none", func(t *testing.T) {
		registry, router := newTestRouter(t)
		for i := 0; i < 10; i++ {
			registry.RecordOutcome("anthropic-text", false, time.Second)
		}
		if got := router.FallbackFor("openai-text", CapabilityText); got != "" {
			t.Errorf("FallbackFor = %q, want empty for unhealthy fallback", got)
		}
	})

	t.Run("capability mismatch yields none", func(t *testing.T) {
		_, router := newTestRouter(t)
		if got := router.FallbackFor("misrouted", CapabilityText); got != "" {
			t.Errorf("FallbackFor = %q, want empty for cross-capability entry", got)
		}
	})

	t.Run("table is copied at construction", func(t *testing.T) {
		registry := NewHealthRegistry()
		if err := registry.RegisterProvider("a", CapabilityText); err != nil {
			t.Fatal(err)
		}
		if err := registry.RegisterProvider("b", CapabilityText); err != nil {
			t.Fatal(err)
		}

		table := map[string]string{"a": "b"}
		router := NewProviderRouter(registry, table)
		table["a"] = "" // caller mutation must not leak in

		if got := router.FallbackFor("a", CapabilityText); got != "b" {
			t.Errorf("FallbackFor = %q, want b", got)
		}
	})
}
