package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zatekoja/docenricher/internal/domain/entities"
	"github.com/zatekoja/docenricher/internal/domain/repositories"
)

const tracerName = "github.com/zatekoja/docenricher/services"

type enrichFunc func(ctx context.Context, doc *entities.Document, content *entities.Content) (entities.EnrichmentResult, error)

// Action is one enrichment operation. Every kind runs the same sequence:
// applicability, rendition gate, AI call, metadata write. Kinds differ only
// in their applicability, field mapping and AI call.
type Action struct {
	kind          entities.ActionKind
	mapping       entities.FieldMapping
	needsImage    bool
	usesRendition bool
	updateField   entities.Attribute
	enrich        enrichFunc

	repo     repositories.NodeRepository
	gate     *RenditionGate
	writer   *MetadataWriter
	recorder OutcomeRecorder
	logger   zerolog.Logger
}

// Kind returns the action kind
func (a *Action) Kind() entities.ActionKind {
	return a.kind
}

// Mapping returns the aspect and properties the action writes.
func (a *Action) Mapping() entities.FieldMapping {
	return a.mapping
}

// UsesRendition reports whether the action reads the derived rendition
// rather than the document's own binary.
func (a *Action) UsesRendition() bool {
	return a.usesRendition
}

// UpdateProperty is the property whose presence marks the document as
// enriched by this action, or "" when the action only writes tags.
func (a *Action) UpdateProperty() string {
	property := a.mapping.Property(a.updateField)
	if property == entities.TagProperty {
		return ""
	}
	return property
}

// Applicable reports whether the action supports the document's mime type.
// Describe needs a picture; every other action needs anything but a picture.
func (a *Action) Applicable(doc *entities.Document) bool {
	if doc == nil {
		return false
	}
	return doc.IsImage() == a.needsImage
}

// Enriched reports whether the document already carries this action's
// aspect and primary property. When the primary result is only written as
// tags the aspect alone marks the document.
func (a *Action) Enriched(doc *entities.Document) bool {
	if !doc.HasAspect(a.mapping.Aspect) {
		return false
	}
	property := a.UpdateProperty()
	if property == "" {
		return true
	}
	value, ok := doc.Properties[property]
	if !ok || value == nil {
		return false
	}
	if s, isString := value.(string); isString && s == "" {
		return false
	}
	return true
}

// Execute loads the document and runs the action against it.
func (a *Action) Execute(ctx context.Context, nodeID string) (entities.Outcome, error) {
	doc, err := a.repo.GetNode(ctx, nodeID)
	if err != nil {
		return "", fmt.Errorf("%s: load node %s: %w", a.kind, nodeID, err)
	}
	return a.ExecuteDocument(ctx, doc)
}

// ExecuteDocument runs the action against an already loaded document.
// Skipped and deferred are not errors; AI and repository failures are
// returned as-is, without retry and without touching rendition state.
func (a *Action) ExecuteDocument(ctx context.Context, doc *entities.Document) (outcome entities.Outcome, err error) {
	if doc == nil {
		return "", fmt.Errorf("%s: document is nil", a.kind)
	}
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "enrich."+string(a.kind))
	defer func() {
		recorded := outcome
		if err != nil {
			recorded = entities.OutcomeFailed
		}
		a.recorder.RecordOutcome(ctx, a.kind, recorded, time.Since(start))
		span.SetAttributes(
			attribute.String("node.id", doc.ID),
			attribute.String("enrich.outcome", string(recorded)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := a.logger.With().Str("node_id", doc.ID).Str("name", doc.Name).Logger()

	if !a.Applicable(doc) {
		log.Debug().Str("mime_type", doc.MimeType).Msg("document type not supported by action, skipping")
		return entities.OutcomeSkipped, nil
	}

	var content *entities.Content
	if a.usesRendition {
		status, err := a.gate.Status(ctx, doc)
		if err != nil {
			return "", fmt.Errorf("%s: %w", a.kind, err)
		}
		if !status.Ready() {
			log.Debug().Str("gate", string(status)).Msgf("%s rendition not available, deferring", a.gate.Kind())
			return entities.OutcomeDeferred, nil
		}
		content, err = a.gate.Content(ctx, doc)
		if err != nil {
			return "", fmt.Errorf("%s: %w", a.kind, err)
		}
	} else {
		content, err = a.repo.NodeContent(ctx, doc.ID)
		if err != nil {
			return "", fmt.Errorf("%s: content of %s: %w", a.kind, doc.ID, err)
		}
		if content.Name == "" {
			content.Name = doc.Name
		}
		if content.MimeType == "" {
			content.MimeType = doc.MimeType
		}
	}

	result, err := a.enrich(ctx, doc, content)
	if err != nil {
		return "", fmt.Errorf("%s: enrich %s: %w", a.kind, doc.ID, err)
	}

	if err := a.writer.Apply(ctx, doc.ID, a.mapping, result); err != nil {
		return "", fmt.Errorf("%s: %w", a.kind, err)
	}

	log.Info().Msg("document updated")
	return entities.OutcomeCompleted, nil
}
