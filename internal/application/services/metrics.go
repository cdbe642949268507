package services

import (
	"context"
	"time"

	"github.com/zatekoja/docenricher/internal/domain/entities"
)

// OutcomeRecorder receives the outcome of every action execution.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, kind entities.ActionKind, outcome entities.Outcome, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordOutcome(context.Context, entities.ActionKind, entities.Outcome, time.Duration) {}
