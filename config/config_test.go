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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
server:
  port: 8090
  admin_jwt_secret: secret
orchestrator:
  max_retries: 3
  retry_delay_ms: 1000
  timeout_ms: 30000
  enable_caching: true
  cache_expiry_ms: 300000
  cost_limit_usd: 5.0
providers:
  - name: openai-text
    capability: text
  - name: anthropic-text
    capability: text
    price_usd: 0.025
  - name: stability-image
    capability: image
  - name: replicate-image
    capability: image
  - name: elevenlabs-audio
    capability: audio
defaults:
  text: openai-text
  image: stability-image
  audio: elevenlabs-audio
fallbacks:
  openai-text: anthropic-text
  anthropic-text: openai-text
  stability-image: replicate-image
  replicate-image: stability-image
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.AdminJWTSecret)

	assert.Equal(t, 3, cfg.Orchestrator.MaxRetries)
	assert.Equal(t, time.Second, cfg.Orchestrator.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.Timeout)
	assert.True(t, cfg.Orchestrator.EnableCaching)
	assert.Equal(t, 5*time.Minute, cfg.Orchestrator.CacheExpiry)
	assert.Equal(t, 5.0, cfg.Orchestrator.CostLimitUSD)

	assert.Len(t, cfg.Providers, 5)
	assert.Equal(t, 0.025, cfg.Providers[1].PriceUSD)
	assert.Equal(t, "anthropic-text", cfg.Fallbacks["openai-text"])
	assert.Equal(t, "openai-text", cfg.Defaults["text"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadMissingRequiredField(t *testing.T) {
	content := `
orchestrator:
  retry_delay_ms: 1000
  timeout_ms: 30000
  enable_caching: true
  cache_expiry_ms: 300000
  cost_limit_usd: 5.0
providers:
  - name: openai-text
    capability: text
`
	_, err := Load(writeConfig(t, content))
	assert.ErrorContains(t, err, "orchestrator.max_retries is required")
}

func TestLoadDefaultPort(t *testing.T) {
	content := `
orchestrator:
  max_retries: 3
  retry_delay_ms: 1000
  timeout_ms: 30000
  enable_caching: true
  cache_expiry_ms: 300000
  cost_limit_usd: 5.0
providers:
  - name: openai-text
    capability: text
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Server.Port)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  string
		wantErr string
	}{
		{
			name: "unknown provider capability",
			mutate: `
providers:
  - name: p
    capability: video
`,
			wantErr: "unknown capability",
		},
		{
			name: "fallback to unknown provider",
			mutate: `
providers:
  - name: openai-text
    capability: text
fallbacks:
  openai-text: ghost
`,
			wantErr: "unknown fallback provider",
		},
		{
			name: "fallback crosses capability",
			mutate: `
providers:
  - name: openai-text
    capability: text
  - name: stability-image
    capability: image
fallbacks:
  openai-text: stability-image
`,
			wantErr: "differ in capability",
		},
		{
			name: "default is wrong capability",
			mutate: `
providers:
  - name: openai-text
    capability: text
defaults:
  image: openai-text
`,
			wantErr: "not a image provider",
		},
		{
			name: "duplicate provider name",
			mutate: `
providers:
  - name: openai-text
    capability: text
  - name: openai-text
    capability: text
`,
			wantErr: "duplicate provider name",
		},
		{
			name:    "no providers",
			mutate:  "\n",
			wantErr: "at least one provider is required",
		},
	}

	base := `
orchestrator:
  max_retries: 3
  retry_delay_ms: 1000
  timeout_ms: 30000
  enable_caching: true
  cache_expiry_ms: 300000
  cost_limit_usd: 5.0
`
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, base+tc.mutate))
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("DATABASE_URL", "postgres://localhost/storyloom")
	t.Setenv("ADMIN_JWT_SECRET", "env-secret")
	t.Setenv("PORT", "9999")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, "postgres://localhost/storyloom", cfg.DatabaseURL)
	assert.Equal(t, "env-secret", cfg.Server.AdminJWTSecret)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadBadPortEnvIgnored(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Server.Port)
}
