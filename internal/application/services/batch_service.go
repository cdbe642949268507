package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/docenricher/internal/domain/entities"
	"github.com/zatekoja/docenricher/internal/domain/repositories"
)

const DefaultPageSize = 100

// BatchSummary counts the outcomes of one pass.
type BatchSummary struct {
	Total     int
	Completed int
	Deferred  int
	Skipped   int
	Failed    int
}

func (s BatchSummary) String() string {
	return fmt.Sprintf("total=%d completed=%d deferred=%d skipped=%d failed=%d",
		s.Total, s.Completed, s.Deferred, s.Skipped, s.Failed)
}

// BatchService runs one action over every document a repository query
// yields. A pass never retries; running it again is the retry.
type BatchService struct {
	repo     repositories.NodeRepository
	action   *Action
	runs     repositories.RunRepository
	criteria repositories.SearchCriteria
	workers  int
	logger   zerolog.Logger
}

// NewBatchService creates a batch driver. runs may be nil when no ledger is
// configured.
func NewBatchService(
	repo repositories.NodeRepository,
	action *Action,
	runs repositories.RunRepository,
	criteria repositories.SearchCriteria,
	workers int,
) *BatchService {
	if workers <= 0 {
		workers = 1
	}
	if criteria.PageSize <= 0 {
		criteria.PageSize = DefaultPageSize
	}
	return &BatchService{
		repo:     repo,
		action:   action,
		runs:     runs,
		criteria: criteria,
		workers:  workers,
		logger:   log.With().Str("component", "batch").Str("action", string(action.Kind())).Logger(),
	}
}

// Criteria returns the search the pass runs.
func (s *BatchService) Criteria() repositories.SearchCriteria {
	return s.criteria
}

// Run performs one pass. Per-document failures are counted and logged; a
// search failure ends the pass early and is returned with the partial
// summary.
//
// Offset paging over a query that stops matching enriched documents skips
// entries, so the pass searches again until a sweep yields no document it
// has not dispatched already.
func (s *BatchService) Run(ctx context.Context) (*BatchSummary, error) {
	run := &entities.BatchRun{
		ID:        uuid.NewString(),
		Action:    s.action.Kind(),
		Query:     s.criteria.Query,
		Status:    entities.BatchRunRunning,
		StartedAt: time.Now().UTC(),
	}
	s.startRun(ctx, run)

	s.logger.Info().Str("run_id", run.ID).Str("query", s.criteria.Query).Int("workers", s.workers).Msg("starting batch pass")

	tally := &batchTally{}
	seen := make(map[string]struct{})

	var searchErr error
	for sweep := 1; ; sweep++ {
		fresh, err := s.sweep(ctx, seen, tally)
		if err != nil {
			searchErr = err
			break
		}
		if ctx.Err() != nil {
			searchErr = ctx.Err()
			break
		}
		s.logger.Debug().Str("run_id", run.ID).Int("sweep", sweep).Int("dispatched", fresh).Msg("sweep finished")
		if fresh == 0 {
			break
		}
	}

	summary := tally.summary()

	run.Total, run.Completed, run.Deferred, run.Skipped, run.Failed =
		summary.Total, summary.Completed, summary.Deferred, summary.Skipped, summary.Failed
	run.Status = entities.BatchRunSucceeded
	if msg, ok := tally.lastErr.Load().(string); ok {
		run.LastError = msg
	}
	if searchErr != nil {
		run.Status = entities.BatchRunFailed
		run.LastError = searchErr.Error()
	}
	s.finishRun(ctx, run)

	s.logger.Info().Str("run_id", run.ID).Str("summary", summary.String()).Msg("batch pass finished")
	return summary, searchErr
}

type batchTally struct {
	total, completed, deferred, skipped, failed atomic.Int64
	lastErr                                     atomic.Value
}

func (t *batchTally) summary() *BatchSummary {
	return &BatchSummary{
		Total:     int(t.total.Load()),
		Completed: int(t.completed.Load()),
		Deferred:  int(t.deferred.Load()),
		Skipped:   int(t.skipped.Load()),
		Failed:    int(t.failed.Load()),
	}
}

// sweep walks the search once, dispatching ids not in seen, and waits for
// the workers. It returns how many documents it dispatched.
func (s *BatchService) sweep(ctx context.Context, seen map[string]struct{}, tally *batchTally) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	fresh := 0
	var searchErr error
	for id, err := range s.repo.Search(gctx, s.criteria) {
		if err != nil {
			searchErr = fmt.Errorf("search documents: %w", err)
			break
		}
		if gctx.Err() != nil {
			break
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		fresh++
		tally.total.Add(1)

		g.Go(func() error {
			outcome, err := s.action.Execute(gctx, id)
			if err != nil {
				tally.failed.Add(1)
				tally.lastErr.Store(err.Error())
				s.logger.Error().Err(err).Str("node_id", id).Msg("failed to enrich document")
				return nil
			}
			switch outcome {
			case entities.OutcomeCompleted:
				tally.completed.Add(1)
			case entities.OutcomeDeferred:
				tally.deferred.Add(1)
			case entities.OutcomeSkipped:
				tally.skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return fresh, searchErr
}

// RunEvery repeats Run until ctx ends, waiting interval between passes.
func (s *BatchService) RunEvery(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("batch pass ended early")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce processes a single document.
func (s *BatchService) RunOnce(ctx context.Context, nodeID string) (entities.Outcome, error) {
	outcome, err := s.action.Execute(ctx, nodeID)
	if err != nil {
		return entities.OutcomeFailed, err
	}
	s.logger.Info().Str("node_id", nodeID).Str("outcome", string(outcome)).Msg("document processed")
	return outcome, nil
}

// startRun and finishRun keep the ledger best-effort: an unavailable
// ledger never stops a pass.
func (s *BatchService) startRun(ctx context.Context, run *entities.BatchRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Start(ctx, run); err != nil {
		s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("failed to record batch run start")
	}
}

func (s *BatchService) finishRun(ctx context.Context, run *entities.BatchRun) {
	if s.runs == nil {
		return
	}
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	// The pass context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.runs.Finish(ctx, run); err != nil {
		s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("failed to record batch run result")
	}
}

// BuildDefaultQuery selects the content under rootFolderID that the action
// has not enriched yet. When the action has no property of its own to test
// the query falls back to the missing aspect.
func BuildDefaultQuery(rootFolderID string, action *Action) string {
	var clauses []string
	if root := strings.TrimSpace(rootFolderID); root != "" && root != "-root-" {
		clauses = append(clauses, fmt.Sprintf(`ANCESTOR:"workspace://SpacesStore/%s"`, root))
	}
	clauses = append(clauses, `TYPE:"cm:content"`)
	if property := action.UpdateProperty(); property != "" {
		clauses = append(clauses, fmt.Sprintf(`ISUNSET:"%s"`, property))
	} else {
		clauses = append(clauses, fmt.Sprintf(`NOT ASPECT:"%s"`, action.Mapping().Aspect))
	}
	return strings.Join(clauses, " AND ")
}
