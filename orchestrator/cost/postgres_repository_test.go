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
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgresRepository(db), mock
}

func TestPostgresSaveUsage(t *testing.T) {
	repo, mock := newMockRepo(t)

	rec := &UsageRecord{
		ID:         "rec-1",
		WorkflowID: "wf-1",
		StepID:     "wf-1-0",
		Capability: "text",
		Provider:   "openai-text",
		CostUSD:    0.02,
		DurationMs: 1200,
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO usage_records").
		WithArgs(rec.ID, rec.WorkflowID, rec.StepID, rec.Capability,
			rec.Provider, rec.CostUSD, rec.DurationMs, rec.Timestamp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveUsage(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveUsageNil(t *testing.T) {
	repo, _ := newMockRepo(t)
	assert.ErrorIs(t, repo.SaveUsage(context.Background(), nil), ErrInvalidInput)
}

func TestPostgresSaveUsageError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO usage_records").
		WillReturnError(errors.New("connection refused"))

	err := repo.SaveUsage(context.Background(), &UsageRecord{ID: "rec-1"})
	assert.ErrorContains(t, err, "failed to save usage record")
}

func TestPostgresTotalSince(t *testing.T) {
	repo, mock := newMockRepo(t)

	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(cost_usd\), 0\) FROM usage_records`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0.13))

	total, err := repo.TotalSince(context.Background(), since)
	require.NoError(t, err)
	assert.InDelta(t, 0.13, total, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRecent(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "workflow_id", "step_id", "capability", "provider",
		"cost_usd", "duration_ms", "created_at",
	}).
		AddRow("rec-2", "wf-2", "wf-2-0", "image", "stability-image", 0.08, int64(3000), now).
		AddRow("rec-1", "wf-1", "wf-1-0", "text", "openai-text", 0.02, int64(1200), now.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM usage_records").
		WithArgs(2).
		WillReturnRows(rows)

	records, err := repo.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec-2", records[0].ID)
	assert.Equal(t, "stability-image", records[0].Provider)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRecentDefaultsLimit(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM usage_records").
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "workflow_id", "step_id", "capability", "provider",
			"cost_usd", "duration_ms", "created_at",
		}))

	records, err := repo.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectPing()
	assert.NoError(t, repo.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
