package providers

import (
	"context"

	"github.com/zatekoja/docenricher/internal/domain/entities"
)

// EnrichmentProvider is the AI enrichment service. Every call is a single
// attempt; failures come back as errors.
type EnrichmentProvider interface {
	Summarize(ctx context.Context, content *entities.Content) (*entities.Summary, error)
	Classify(ctx context.Context, content *entities.Content, termList string) (*entities.Term, error)
	Describe(ctx context.Context, picture *entities.Content) (*entities.Description, error)
	LinkEntities(ctx context.Context, content *entities.Content, target entities.KnowledgeBase) (*entities.EntityLinks, error)
}
