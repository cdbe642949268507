package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/docenricher/internal/domain/entities"
	"github.com/zatekoja/docenricher/internal/domain/repositories"
	apperrors "github.com/zatekoja/docenricher/pkg/errors"
)

// RenditionGate decides whether a document's derived rendition can be used
// yet, and requests it when it cannot. It never waits for readiness.
type RenditionGate struct {
	repo repositories.NodeRepository
	kind string
}

// NewRenditionGate creates a gate for one rendition kind (e.g. "pdf").
func NewRenditionGate(repo repositories.NodeRepository, kind string) *RenditionGate {
	return &RenditionGate{repo: repo, kind: kind}
}

// Kind returns the rendition kind the gate tracks.
func (g *RenditionGate) Kind() string {
	return g.kind
}

// Status reports ready, or pending after making sure creation was requested.
func (g *RenditionGate) Status(ctx context.Context, doc *entities.Document) (entities.GateStatus, error) {
	state, err := g.repo.RenditionState(ctx, doc.ID, g.kind)
	if err != nil {
		return "", fmt.Errorf("rendition state for %s: %w", doc.ID, err)
	}

	switch state {
	case entities.RenditionReady:
		return entities.GateReady, nil
	case entities.RenditionPending:
		return entities.GatePendingAlreadyRequested, nil
	case entities.RenditionMissing:
		requested, err := g.repo.RequestRendition(ctx, doc.ID, g.kind)
		if err != nil {
			return "", fmt.Errorf("request %s rendition for %s: %w", g.kind, doc.ID, err)
		}
		if !requested {
			return entities.GatePendingAlreadyRequested, nil
		}
		return entities.GatePendingRequested, nil
	default:
		return "", apperrors.NewExternalError(fmt.Sprintf("unknown rendition state %q for %s", state, doc.ID), nil)
	}
}

// Content fetches the rendition binary. Only valid after Status returned ready.
func (g *RenditionGate) Content(ctx context.Context, doc *entities.Document) (*entities.Content, error) {
	content, err := g.repo.RenditionContent(ctx, doc.ID, g.kind)
	if err != nil {
		return nil, fmt.Errorf("%s rendition content for %s: %w", g.kind, doc.ID, err)
	}
	if content == nil {
		return nil, apperrors.NewExternalError(fmt.Sprintf("empty %s rendition for %s", g.kind, doc.ID), nil)
	}
	if content.Name == "" {
		content.Name = doc.Name + "." + g.kind
	}
	return content, nil
}
