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

package cost

import "sync"

// PricingConfig maps providers to a flat per-call price. The orchestrator
// never sees token counts or image dimensions - the operation payloads are
// opaque - so pricing is a per-call estimate, good enough to drive the
// session budget gate.
type PricingConfig struct {
	mu sync.RWMutex

	// perProvider overrides the capability default for a provider.
	perProvider map[string]float64

	// perCapability is the fallback price when a provider has no
	// explicit entry.
	perCapability map[string]float64
}

// Default per-call prices by capability, in USD.
const (
	defaultTextPrice  = 0.02
	defaultImagePrice = 0.08
	defaultAudioPrice = 0.05
)

// NewPricingConfig returns the default pricing table.
func NewPricingConfig() *PricingConfig {
	return &PricingConfig{
		perProvider: make(map[string]float64),
		perCapability: map[string]float64{
			"text":  defaultTextPrice,
			"image": defaultImagePrice,
			"audio": defaultAudioPrice,
		},
	}
}

// SetProviderPrice overrides the per-call price for one provider.
func (p *PricingConfig) SetProviderPrice(provider string, usd float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.perProvider[provider] = usd
}

// SetCapabilityPrice overrides the fallback price for a capability.
func (p *PricingConfig) SetCapabilityPrice(capability string, usd float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.perCapability[capability] = usd
}

// PriceFor returns the per-call price for a provider, falling back to the
// capability default and then zero.
func (p *PricingConfig) PriceFor(capability, provider string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if usd, ok := p.perProvider[provider]; ok {
		return usd
	}
	return p.perCapability[capability]
}
