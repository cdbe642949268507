package repositories

import (
	"context"
	"iter"

	"github.com/zatekoja/docenricher/internal/domain/entities"
)

// NodeUpdate replaces the aspect list and merges the given properties.
type NodeUpdate struct {
	Aspects    []string
	Properties map[string]any
}

// SearchCriteria selects documents for a batch pass.
type SearchCriteria struct {
	Query    string
	Language string
	PageSize int
}

// NodeRepository is the content repository boundary.
type NodeRepository interface {
	GetNode(ctx context.Context, id string) (*entities.Document, error)
	UpdateNode(ctx context.Context, id string, update NodeUpdate) error
	CreateTag(ctx context.Context, id, tag string) error
	PrimaryParent(ctx context.Context, id string) (string, error)
	NodeContent(ctx context.Context, id string) (*entities.Content, error)

	RenditionState(ctx context.Context, id, kind string) (entities.RenditionState, error)
	// RequestRendition asks for the rendition to be created. It returns false
	// when the repository already had it queued or created.
	RequestRendition(ctx context.Context, id, kind string) (bool, error)
	RenditionContent(ctx context.Context, id, kind string) (*entities.Content, error)

	// Search lazily yields matching node ids. The sequence cannot be resumed
	// once stopped.
	Search(ctx context.Context, criteria SearchCriteria) iter.Seq2[string, error]
}
