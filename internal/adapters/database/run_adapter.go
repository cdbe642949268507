package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/zatekoja/docenricher/internal/domain/entities"
	"github.com/zatekoja/docenricher/internal/domain/repositories"
	apperrors "github.com/zatekoja/docenricher/pkg/errors"
)

const batchRunsTable = "batch_runs"

const batchRunsSchema = `CREATE TABLE IF NOT EXISTS batch_runs (
	id          UUID PRIMARY KEY,
	action      TEXT NOT NULL,
	query       TEXT NOT NULL,
	status      TEXT NOT NULL,
	total       INTEGER NOT NULL DEFAULT 0,
	completed   INTEGER NOT NULL DEFAULT 0,
	deferred    INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
)`

var batchRunColumns = []any{
	"id", "action", "query", "status", "total", "completed",
	"deferred", "skipped", "failed", "last_error", "started_at", "finished_at",
}

// RunAdapter persists the batch run ledger in Postgres.
type RunAdapter struct {
	db   *sql.DB
	goqu *goqu.Database
}

// NewRunAdapter creates a new run ledger adapter.
func NewRunAdapter(db *sql.DB) *RunAdapter {
	return &RunAdapter{
		db:   db,
		goqu: goqu.New("postgres", db),
	}
}

var _ repositories.RunRepository = (*RunAdapter)(nil)

// EnsureSchema creates the ledger table when it does not exist.
func (a *RunAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, batchRunsSchema); err != nil {
		return apperrors.NewInternalError("failed to create batch_runs table", err)
	}
	return nil
}

// Start inserts a running ledger record.
func (a *RunAdapter) Start(ctx context.Context, run *entities.BatchRun) error {
	if run == nil {
		return apperrors.NewInternalError("batch run is nil", fmt.Errorf("batch run is nil"))
	}

	record := goqu.Record{
		"id":         run.ID,
		"action":     string(run.Action),
		"query":      run.Query,
		"status":     run.Status,
		"started_at": run.StartedAt.UTC(),
	}

	query, args, err := a.goqu.Insert(batchRunsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build batch run insert query", err)
	}

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to record batch run start", err)
	}
	return nil
}

// Finish stores the final counters and status of a run.
func (a *RunAdapter) Finish(ctx context.Context, run *entities.BatchRun) error {
	if run == nil {
		return apperrors.NewInternalError("batch run is nil", fmt.Errorf("batch run is nil"))
	}

	finishedAt := time.Now().UTC()
	if run.FinishedAt != nil {
		finishedAt = run.FinishedAt.UTC()
	}

	query, args, err := a.goqu.Update(batchRunsTable).Set(goqu.Record{
		"status":      run.Status,
		"total":       run.Total,
		"completed":   run.Completed,
		"deferred":    run.Deferred,
		"skipped":     run.Skipped,
		"failed":      run.Failed,
		"last_error":  run.LastError,
		"finished_at": finishedAt,
	}).Where(goqu.C("id").Eq(run.ID)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build batch run update query", err)
	}

	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to record batch run finish", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("batch run %s not found", run.ID))
	}
	return nil
}

// ListRecent returns the latest runs, newest first.
func (a *RunAdapter) ListRecent(ctx context.Context, limit int) ([]*entities.BatchRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query, args, err := a.goqu.From(batchRunsTable).
		Select(batchRunColumns...).
		Order(goqu.C("started_at").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build batch run list query", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list batch runs", err)
	}
	defer rows.Close()

	var runs []*entities.BatchRun
	for rows.Next() {
		var (
			run        entities.BatchRun
			action     string
			finishedAt sql.NullTime
		)
		if err := rows.Scan(
			&run.ID, &action, &run.Query, &run.Status, &run.Total, &run.Completed,
			&run.Deferred, &run.Skipped, &run.Failed, &run.LastError, &run.StartedAt, &finishedAt,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan batch run", err)
		}
		run.Action = entities.ActionKind(action)
		if finishedAt.Valid {
			t := finishedAt.Time
			run.FinishedAt = &t
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate batch runs", err)
	}
	return runs, nil
}
