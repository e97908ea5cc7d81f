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
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"storyloom/platform/config"
	"storyloom/platform/orchestrator/cost"
)

// cacheSweepInterval is how often the in-memory cache drops expired entries.
const cacheSweepInterval = time.Minute

// Build assembles a fully wired Engine and cost service from configuration.
// The embedding application supplies the step operations at Run time; this
// layer only constructs the shared collaborators.
func Build(ctx context.Context, cfg *config.Config) (*Engine, *cost.Service, error) {
	registry := NewHealthRegistry()
	pricing := cost.NewPricingConfig()

	for _, p := range cfg.Providers {
		if err := registry.RegisterProvider(p.Name, Capability(p.Capability)); err != nil {
			return nil, nil, fmt.Errorf("failed to register provider %s: %w", p.Name, err)
		}
		if p.PriceUSD > 0 {
			pricing.SetProviderPrice(p.Name, p.PriceUSD)
		}
	}
	for capability, provider := range cfg.Defaults {
		registry.SetDefault(Capability(capability), provider)
	}

	router := NewProviderRouter(registry, cfg.Fallbacks)

	var cache ResponseCache
	if cfg.RedisURL != "" {
		redisCache, err := NewRedisCacheFromURL(cfg.RedisURL, cfg.Orchestrator.CacheExpiry)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build Redis cache: %w", err)
		}
		cache = redisCache
		log.Printf("[Engine] Using Redis response cache")
	} else {
		memCache := NewMemoryCache(cfg.Orchestrator.CacheExpiry, 0)
		memCache.StartSweep(ctx, cacheSweepInterval)
		cache = memCache
	}

	var repo cost.Repository
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		repo = cost.NewPostgresRepository(db)
		log.Printf("[Engine] Using PostgreSQL usage repository")
	} else {
		repo = cost.NewMemoryRepository()
	}

	costs := cost.NewService(repo, pricing, cfg.Orchestrator.CostLimitUSD, nil)

	engineCfg := Config{
		MaxRetries:    cfg.Orchestrator.MaxRetries,
		RetryDelay:    cfg.Orchestrator.RetryDelay,
		Timeout:       cfg.Orchestrator.Timeout,
		EnableCaching: cfg.Orchestrator.EnableCaching,
		CacheExpiry:   cfg.Orchestrator.CacheExpiry,
		CostLimitUSD:  cfg.Orchestrator.CostLimitUSD,
	}
	if err := engineCfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid engine config: %w", err)
	}

	engine := NewEngine(engineCfg,
		WithHealthRegistry(registry),
		WithRouter(router),
		WithCache(cache),
		WithCostService(costs),
	)

	return engine, costs, nil
}

// Run builds the orchestrator from the config file at path and serves the
// observability API until ctx is cancelled.
func Run(ctx context.Context, configPath string) error {
	log.Println("Starting Storyloom Orchestrator...")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine, costs, err := Build(ctx, cfg)
	if err != nil {
		return err
	}

	server := NewServer(engine, costs, cfg.Server.AdminJWTSecret)

	r := mux.NewRouter()
	server.Routes(r)
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"}, // Configure for production
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      c.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Orchestrator listening on :%d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Println("Shutting down orchestrator...")
		return httpServer.Shutdown(shutdownCtx)
	}
}
