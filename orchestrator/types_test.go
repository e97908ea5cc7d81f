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

func TestCapabilityValid(t *testing.T) {
	for _, c := range []Capability{CapabilityText, CapabilityImage, CapabilityAudio} {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	for _, c := range []Capability{"", "video", "TEXT"} {
		if c.Valid() {
			t.Errorf("%q should be invalid", c)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	good := Config{
		MaxRetries:  3,
		RetryDelay:  time.Second,
		Timeout:     30 * time.Second,
		CacheExpiry: 5 * time.Minute,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"negative delay", func(c *Config) { c.RetryDelay = -time.Second }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"negative expiry", func(c *Config) { c.CacheExpiry = -time.Minute }},
		{"negative cost limit", func(c *Config) { c.CostLimitUSD = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := good
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
