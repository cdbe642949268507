package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/docenricher/internal/domain/entities"
	apperrors "github.com/zatekoja/docenricher/pkg/errors"
)

func newMockAdapter(t *testing.T) (*RunAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRunAdapter(db), mock
}

func TestRunAdapter_EnsureSchema(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS batch_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, adapter.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunAdapter_Start(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	run := &entities.BatchRun{
		ID:        "0b0c7a4e-8d71-4a55-9b36-9f0d1f3c2a10",
		Action:    entities.ActionSummary,
		Query:     `TYPE:"cm:content"`,
		Status:    entities.BatchRunRunning,
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	mock.ExpectExec(`INSERT INTO "batch_runs"`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, adapter.Start(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, adapter.Start(context.Background(), nil))
}

func TestRunAdapter_Finish(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		execErr  error
		wantType apperrors.ErrorType
	}{
		{name: "updated", affected: 1},
		{name: "unknown run", affected: 0, wantType: apperrors.ErrorTypeNotFound},
		{name: "database down", execErr: errors.New("connection reset"), wantType: apperrors.ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, mock := newMockAdapter(t)
			expect := mock.ExpectExec(`UPDATE "batch_runs" SET .* WHERE \("id" = 'run-1'\)`)
			if tt.execErr != nil {
				expect.WillReturnError(tt.execErr)
			} else {
				expect.WillReturnResult(sqlmock.NewResult(0, tt.affected))
			}

			err := adapter.Finish(context.Background(), &entities.BatchRun{
				ID:        "run-1",
				Status:    entities.BatchRunSucceeded,
				Total:     3,
				Completed: 2,
				Deferred:  1,
			})
			if tt.wantType == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, tt.wantType))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRunAdapter_ListRecent(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	finished := started.Add(time.Minute)

	rows := sqlmock.NewRows([]string{
		"id", "action", "query", "status", "total", "completed",
		"deferred", "skipped", "failed", "last_error", "started_at", "finished_at",
	}).
		AddRow("run-2", "CLASSIFY", "q2", entities.BatchRunRunning, 0, 0, 0, 0, 0, "", started.Add(time.Hour), nil).
		AddRow("run-1", "SUMMARY", "q1", entities.BatchRunFailed, 5, 3, 0, 1, 1, "search failed", started, finished)

	mock.ExpectQuery(`SELECT .* FROM "batch_runs" ORDER BY "started_at" DESC LIMIT 2`).
		WillReturnRows(rows)

	runs, err := adapter.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, entities.ActionClassify, runs[0].Action)
	assert.Nil(t, runs[0].FinishedAt)
	assert.Equal(t, entities.ActionSummary, runs[1].Action)
	assert.Equal(t, "search failed", runs[1].LastError)
	require.NotNil(t, runs[1].FinishedAt)
	assert.True(t, finished.Equal(*runs[1].FinishedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}
