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
	"sort"
	"sync"
	"time"
)

// Repository persists usage records for reporting. The session budget gate
// works off in-memory state in Service; the repository is the durable
// trail behind the /usage endpoint and external billing reconciliation.
type Repository interface {
	// SaveUsage persists a usage record.
	SaveUsage(ctx context.Context, record *UsageRecord) error

	// TotalSince returns the summed cost of records at or after since.
	TotalSince(ctx context.Context, since time.Time) (float64, error)

	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]UsageRecord, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}

// MemoryRepository is the in-process Repository used when no database is
// configured and in tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []UsageRecord
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// SaveUsage implements Repository.
func (r *MemoryRepository) SaveUsage(ctx context.Context, record *UsageRecord) error {
	if record == nil {
		return ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

// TotalSince implements Repository.
func (r *MemoryRepository) TotalSince(ctx context.Context, since time.Time) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0.0
	for _, rec := range r.records {
		if !rec.Timestamp.Before(since) {
			total += rec.CostUSD
		}
	}
	return total, nil
}

// ListRecent implements Repository.
func (r *MemoryRepository) ListRecent(ctx context.Context, limit int) ([]UsageRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]UsageRecord, len(r.records))
	copy(out, r.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping implements Repository.
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}
