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

// Package main is the entry point for the Storyloom generation
// orchestrator service.
//
// The orchestrator executes story generation workflows - ordered text,
// image and audio steps - across multiple AI providers with failover,
// retries, response caching and session cost tracking. This binary wires
// the engine from a YAML config file and serves the observability API;
// the step operations themselves are injected by the embedding product
// backend.
//
// Usage:
//
//	orchestrator -config config.yaml
//
// Environment overrides: REDIS_URL, DATABASE_URL, PORT, ADMIN_JWT_SECRET.
package main
