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
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"storyloom/platform/orchestrator/cost"
)

// Server exposes the orchestrator's observability surface over HTTP. All
// endpoints are read-only except the admin cache invalidation.
type Server struct {
	engine    *Engine
	costs     *cost.Service
	jwtSecret []byte
	logger    *log.Logger
	started   time.Time
}

// NewServer creates the HTTP server facade. costs may be nil when usage
// tracking is disabled; jwtSecret empty disables the admin endpoint.
func NewServer(engine *Engine, costs *cost.Service, jwtSecret string) *Server {
	return &Server{
		engine:    engine,
		costs:     costs,
		jwtSecret: []byte(jwtSecret),
		logger:    log.New(os.Stdout, "[HTTP] ", log.LstdFlags),
		started:   time.Now(),
	}
}

// Routes registers all handlers on the given router.
func (s *Server) Routes(r *mux.Router) {
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.HandleFunc("/metrics", s.metricsHandler).Methods("GET")
	r.HandleFunc("/api/v1/workflows", s.activeWorkflowsHandler).Methods("GET")
	r.HandleFunc("/api/v1/workflows/{id}", s.workflowStatusHandler).Methods("GET")
	r.HandleFunc("/api/v1/providers/status", s.providerStatusHandler).Methods("GET")
	r.HandleFunc("/api/v1/usage", s.usageHandler).Methods("GET")
	r.HandleFunc("/api/v1/cache/clear", s.cacheClearHandler).Methods("POST")
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	records := s.engine.ProviderStatus()
	healthy := 0
	for _, rec := range records {
		if rec.Healthy {
			healthy++
		}
	}

	status := "healthy"
	if healthy == 0 && len(records) > 0 {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            status,
		"providers_total":   len(records),
		"providers_healthy": healthy,
		"uptime_seconds":    int64(time.Since(s.started).Seconds()),
	})
}

// metricsHandler serves a JSON snapshot for dashboards that do not scrape
// Prometheus.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"active_workflows": len(s.engine.ActiveWorkflows()),
		"providers":        s.engine.ProviderStatus(),
	}
	if mc, ok := s.engine.cache.(*MemoryCache); ok {
		payload["cache"] = mc.Stats()
	}
	if s.costs != nil {
		payload["session_cost_usd"] = s.costs.SessionTotalUSD()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) activeWorkflowsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ActiveWorkflows())
}

func (s *Server) workflowStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	records, err := s.engine.StatusOf(id)
	if err != nil {
		if errors.Is(err, ErrWorkflowNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("workflow %s not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workflow_id": id,
		"steps":       records,
	})
}

func (s *Server) providerStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": s.engine.ProviderStatus(),
	})
}

func (s *Server) usageHandler(w http.ResponseWriter, r *http.Request) {
	if s.costs == nil {
		writeError(w, http.StatusNotFound, "usage tracking is not enabled")
		return
	}
	writeJSON(w, http.StatusOK, s.costs.Summary(r.Context(), 50))
}

// cacheClearHandler drops all memoized results. Requires an admin bearer
// token signed with the configured secret.
func (s *Server) cacheClearHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizeAdmin(r); err != nil {
		s.logger.Printf("Rejected cache clear: %v", err)
		writeError(w, http.StatusUnauthorized, "admin authorization required")
		return
	}

	s.engine.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// authorizeAdmin validates the Bearer token and its admin role claim.
func (s *Server) authorizeAdmin(r *http.Request) error {
	if len(s.jwtSecret) == 0 {
		return fmt.Errorf("admin endpoint disabled: no secret configured")
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return fmt.Errorf("missing bearer token")
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("invalid token claims")
	}
	if role, _ := claims["role"].(string); role != "admin" {
		return fmt.Errorf("role %q is not admin", claims["role"])
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[HTTP] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
