package repositories

import (
	"context"

	"github.com/zatekoja/docenricher/internal/domain/entities"
)

// RunRepository records batch passes. It is an audit trail only; nothing
// reads it to decide what to enrich.
type RunRepository interface {
	Start(ctx context.Context, run *entities.BatchRun) error
	Finish(ctx context.Context, run *entities.BatchRun) error
	ListRecent(ctx context.Context, limit int) ([]*entities.BatchRun, error)
}
