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

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// warnThreshold is the fraction of the session limit at which a budget
// warning is logged.
const warnThreshold = 0.8

// Service tracks the session spend against the configured ceiling. The
// ceiling policy: crossing 80% logs a warning once, crossing 100% flips
// LimitExceeded so the engine stops accepting new workflows. In-flight
// workflows are never interrupted.
type Service struct {
	repo     Repository
	pricing  *PricingConfig
	limitUSD float64
	logger   *log.Logger

	mu         sync.Mutex
	sessionUSD float64
	warned     bool
	exceeded   bool
}

// NewService creates a cost service. A nil repo disables persistence; a
// limit of zero disables the ceiling entirely.
func NewService(repo Repository, pricing *PricingConfig, limitUSD float64, logger *log.Logger) *Service {
	if pricing == nil {
		pricing = NewPricingConfig()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		repo:     repo,
		pricing:  pricing,
		limitUSD: limitUSD,
		logger:   logger,
	}
}

// RecordUsage prices and records one executed step, returning the updated
// session total. Persistence failures are logged but do not fail the call:
// the budget gate must keep working even when the audit trail is down.
func (s *Service) RecordUsage(ctx context.Context, record *UsageRecord) (float64, error) {
	if record == nil {
		return s.SessionTotalUSD(), ErrInvalidInput
	}

	if record.CostUSD == 0 {
		record.CostUSD = s.pricing.PriceFor(record.Capability, record.Provider)
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if s.repo != nil {
		if err := s.repo.SaveUsage(ctx, record); err != nil {
			s.logger.Printf("[Cost] Failed to persist usage record %s: %v", record.ID, err)
		}
	}

	s.mu.Lock()
	s.sessionUSD += record.CostUSD
	total := s.sessionUSD
	crossedWarn := s.limitUSD > 0 && !s.warned && total >= s.limitUSD*warnThreshold
	if crossedWarn {
		s.warned = true
	}
	crossedLimit := s.limitUSD > 0 && !s.exceeded && total >= s.limitUSD
	if crossedLimit {
		s.exceeded = true
	}
	s.mu.Unlock()

	if crossedWarn {
		s.logger.Printf("[COST ALERT] session spend $%.4f has crossed %.0f%% of the $%.4f limit",
			total, warnThreshold*100, s.limitUSD)
	}
	if crossedLimit {
		s.logger.Printf("[COST ALERT] session limit reached ($%.4f / $%.4f) - new workflows will be rejected",
			total, s.limitUSD)
	}

	return total, nil
}

// SessionTotalUSD returns the cumulative session spend.
func (s *Service) SessionTotalUSD() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionUSD
}

// LimitUSD returns the configured ceiling (zero means unlimited).
func (s *Service) LimitUSD() float64 {
	return s.limitUSD
}

// LimitExceeded reports whether the session ceiling has been reached.
func (s *Service) LimitExceeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exceeded
}

// Summary builds the aggregate view for the usage endpoint, including the
// most recent persisted records when a repository is configured.
func (s *Service) Summary(ctx context.Context, recentLimit int) Summary {
	s.mu.Lock()
	total := s.sessionUSD
	exceeded := s.exceeded
	s.mu.Unlock()

	summary := Summary{
		SessionTotalUSD: total,
		LimitUSD:        s.limitUSD,
		LimitExceeded:   exceeded,
	}
	if s.limitUSD > 0 {
		summary.RemainingUSD = s.limitUSD - total
		if summary.RemainingUSD < 0 {
			summary.RemainingUSD = 0
		}
	}

	if s.repo != nil && recentLimit > 0 {
		recent, err := s.repo.ListRecent(ctx, recentLimit)
		if err != nil {
			s.logger.Printf("[Cost] Failed to list recent usage: %v", err)
		} else {
			summary.Recent = recent
		}
	}
	return summary
}

// String describes the service state for logs.
func (s *Service) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("cost.Service{session=$%.4f limit=$%.4f exceeded=%v}",
		s.sessionUSD, s.limitUSD, s.exceeded)
}
