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
	"database/sql"
	"fmt"
	"time"
)

// PostgresRepository implements Repository using PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE usage_records (
//	    id          TEXT PRIMARY KEY,
//	    workflow_id TEXT NOT NULL,
//	    step_id     TEXT NOT NULL,
//	    capability  TEXT NOT NULL,
//	    provider    TEXT NOT NULL,
//	    cost_usd    DOUBLE PRECISION NOT NULL,
//	    duration_ms BIGINT NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgreSQL-backed repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// SaveUsage implements Repository.
func (r *PostgresRepository) SaveUsage(ctx context.Context, record *UsageRecord) error {
	if record == nil {
		return ErrInvalidInput
	}

	query := `
		INSERT INTO usage_records (
			id, workflow_id, step_id, capability, provider,
			cost_usd, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.WorkflowID, record.StepID, record.Capability,
		record.Provider, record.CostUSD, record.DurationMs, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save usage record: %w", err)
	}
	return nil
}

// TotalSince implements Repository.
func (r *PostgresRepository) TotalSince(ctx context.Context, since time.Time) (float64, error) {
	query := `SELECT COALESCE(SUM(cost_usd), 0) FROM usage_records WHERE created_at >= $1`

	var total float64
	if err := r.db.QueryRowContext(ctx, query, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum usage: %w", err)
	}
	return total, nil
}

// ListRecent implements Repository.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]UsageRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, workflow_id, step_id, capability, provider,
		       cost_usd, duration_ms, created_at
		FROM usage_records
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	var records []UsageRecord
	for rows.Next() {
		var rec UsageRecord
		if err := rows.Scan(
			&rec.ID, &rec.WorkflowID, &rec.StepID, &rec.Capability,
			&rec.Provider, &rec.CostUSD, &rec.DurationMs, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage records: %w", err)
	}
	return records, nil
}

// Ping implements Repository.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
