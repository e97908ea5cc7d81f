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

// Package config loads the orchestrator configuration from a YAML file
// with environment overrides for deployment-specific endpoints.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully validated runtime configuration.
type Config struct {
	Server       ServerConfig
	Orchestrator OrchestratorConfig
	Providers    []ProviderConfig
	Defaults     map[string]string // capability → degrade provider
	Fallbacks    map[string]string // provider → fallback provider
	RedisURL     string            // empty: in-memory cache
	DatabaseURL  string            // empty: in-memory usage repository
}

// ServerConfig configures the observability HTTP server.
type ServerConfig struct {
	Port           int
	AdminJWTSecret string
}

// OrchestratorConfig carries the per-step execution knobs. Every field is
// required in the file; there are no implicit defaults.
type OrchestratorConfig struct {
	MaxRetries    int
	RetryDelay    time.Duration
	Timeout       time.Duration
	EnableCaching bool
	CacheExpiry   time.Duration
	CostLimitUSD  float64
}

// ProviderConfig declares one known provider.
type ProviderConfig struct {
	Name       string  `yaml:"name"`
	Capability string  `yaml:"capability"`
	PriceUSD   float64 `yaml:"price_usd,omitempty"`
}

// configFile mirrors the YAML document. Required scalars are pointers so a
// missing field is distinguishable from an explicit zero.
type configFile struct {
	Server struct {
		Port           *int   `yaml:"port"`
		AdminJWTSecret string `yaml:"admin_jwt_secret"`
	} `yaml:"server"`
	Orchestrator struct {
		MaxRetries    *int     `yaml:"max_retries"`
		RetryDelayMs  *int     `yaml:"retry_delay_ms"`
		TimeoutMs     *int     `yaml:"timeout_ms"`
		EnableCaching *bool    `yaml:"enable_caching"`
		CacheExpiryMs *int     `yaml:"cache_expiry_ms"`
		CostLimitUSD  *float64 `yaml:"cost_limit_usd"`
	} `yaml:"orchestrator"`
	Providers []ProviderConfig  `yaml:"providers"`
	Defaults  map[string]string `yaml:"defaults"`
	Fallbacks map[string]string `yaml:"fallbacks"`
	RedisURL  string            `yaml:"redis_url"`
	Database  string            `yaml:"database_url"`
}

// Load reads, parses and validates the config file at path. Environment
// variables REDIS_URL, DATABASE_URL, PORT and ADMIN_JWT_SECRET override
// the file values when set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg, err := build(&file)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// build converts the parsed file into a Config, rejecting missing
// required fields.
func build(file *configFile) (*Config, error) {
	o := file.Orchestrator
	required := []struct {
		name string
		ok   bool
	}{
		{"orchestrator.max_retries", o.MaxRetries != nil},
		{"orchestrator.retry_delay_ms", o.RetryDelayMs != nil},
		{"orchestrator.timeout_ms", o.TimeoutMs != nil},
		{"orchestrator.enable_caching", o.EnableCaching != nil},
		{"orchestrator.cache_expiry_ms", o.CacheExpiryMs != nil},
		{"orchestrator.cost_limit_usd", o.CostLimitUSD != nil},
	}
	for _, field := range required {
		if !field.ok {
			return nil, fmt.Errorf("config field %s is required", field.name)
		}
	}

	port := 8090
	if file.Server.Port != nil {
		port = *file.Server.Port
	}

	return &Config{
		Server: ServerConfig{
			Port:           port,
			AdminJWTSecret: file.Server.AdminJWTSecret,
		},
		Orchestrator: OrchestratorConfig{
			MaxRetries:    *o.MaxRetries,
			RetryDelay:    time.Duration(*o.RetryDelayMs) * time.Millisecond,
			Timeout:       time.Duration(*o.TimeoutMs) * time.Millisecond,
			EnableCaching: *o.EnableCaching,
			CacheExpiry:   time.Duration(*o.CacheExpiryMs) * time.Millisecond,
			CostLimitUSD:  *o.CostLimitUSD,
		},
		Providers:   file.Providers,
		Defaults:    file.Defaults,
		Fallbacks:   file.Fallbacks,
		RedisURL:    file.RedisURL,
		DatabaseURL: file.Database,
	}, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		cfg.Server.AdminJWTSecret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
}

// validate checks cross-field consistency: providers must declare known
// capabilities, and the fallback table may only reference declared
// providers of the same capability.
func validate(cfg *Config) error {
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}

	capabilities := map[string]bool{"text": true, "image": true, "audio": true}
	providerCaps := make(map[string]string, len(cfg.Providers))
	for i, p := range cfg.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		if !capabilities[p.Capability] {
			return fmt.Errorf("providers[%d] (%s): unknown capability %q", i, p.Name, p.Capability)
		}
		if _, dup := providerCaps[p.Name]; dup {
			return fmt.Errorf("providers[%d]: duplicate provider name %q", i, p.Name)
		}
		providerCaps[p.Name] = p.Capability
	}

	for from, to := range cfg.Fallbacks {
		fromCap, ok := providerCaps[from]
		if !ok {
			return fmt.Errorf("fallbacks: unknown provider %q", from)
		}
		toCap, ok := providerCaps[to]
		if !ok {
			return fmt.Errorf("fallbacks: unknown fallback provider %q for %q", to, from)
		}
		if fromCap != toCap {
			return fmt.Errorf("fallbacks: %q (%s) and %q (%s) differ in capability",
				from, fromCap, to, toCap)
		}
	}

	for capability, provider := range cfg.Defaults {
		if !capabilities[capability] {
			return fmt.Errorf("defaults: unknown capability %q", capability)
		}
		if providerCaps[provider] != capability {
			return fmt.Errorf("defaults: provider %q is not a %s provider", provider, capability)
		}
	}

	if cfg.Orchestrator.Timeout <= 0 {
		return fmt.Errorf("orchestrator.timeout_ms must be > 0")
	}
	if cfg.Orchestrator.MaxRetries < 0 {
		return fmt.Errorf("orchestrator.max_retries must be >= 0")
	}
	if cfg.Orchestrator.RetryDelay < 0 {
		return fmt.Errorf("orchestrator.retry_delay_ms must be >= 0")
	}
	if cfg.Orchestrator.CacheExpiry < 0 {
		return fmt.Errorf("orchestrator.cache_expiry_ms must be >= 0")
	}
	if cfg.Orchestrator.CostLimitUSD < 0 {
		return fmt.Errorf("orchestrator.cost_limit_usd must be >= 0")
	}
	return nil
}
