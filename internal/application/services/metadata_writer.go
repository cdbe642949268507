package services

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/docenricher/internal/domain/entities"
	"github.com/zatekoja/docenricher/internal/domain/repositories"
	apperrors "github.com/zatekoja/docenricher/pkg/errors"
)

// MetadataWriter merges enrichment results into a document's aspects and
// properties. Aspects are read, merged and written back, so repeating a
// write never duplicates an aspect. Fields mapped to TAG become tags, which
// is additive and at-least-once.
type MetadataWriter struct {
	repo   repositories.NodeRepository
	logger zerolog.Logger
}

// NewMetadataWriter creates a new metadata writer
func NewMetadataWriter(repo repositories.NodeRepository) *MetadataWriter {
	return &MetadataWriter{
		repo:   repo,
		logger: log.With().Str("component", "metadata_writer").Logger(),
	}
}

type fieldValue struct {
	attr  entities.Attribute
	value any
}

// Apply writes result onto the node according to mapping.
func (w *MetadataWriter) Apply(ctx context.Context, nodeID string, mapping entities.FieldMapping, result entities.EnrichmentResult) error {
	fields, err := resultFields(result)
	if err != nil {
		return err
	}
	if strings.TrimSpace(mapping.Aspect) == "" {
		return apperrors.NewValidationError(fmt.Sprintf("no aspect mapped for %s", result.Kind()))
	}

	properties := make(map[string]any)
	var tags []string
	for _, f := range fields {
		property := mapping.Property(f.attr)
		switch property {
		case "":
			continue
		case entities.TagProperty:
			tags = append(tags, tagValues(f.value)...)
		default:
			properties[property] = f.value
		}
	}

	doc, err := w.repo.GetNode(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("read node %s before update: %w", nodeID, err)
	}

	aspects := doc.Aspects
	if !doc.HasAspect(mapping.Aspect) {
		aspects = append(slices.Clone(doc.Aspects), mapping.Aspect)
	}

	if len(aspects) != len(doc.Aspects) || !propertiesApplied(doc.Properties, properties) {
		update := repositories.NodeUpdate{Aspects: aspects, Properties: properties}
		if err := w.repo.UpdateNode(ctx, nodeID, update); err != nil {
			return fmt.Errorf("update node %s: %w", nodeID, err)
		}
		w.logger.Debug().
			Str("node_id", nodeID).
			Str("action", string(result.Kind())).
			Int("properties", len(properties)).
			Msg("node metadata updated")
	} else {
		w.logger.Debug().Str("node_id", nodeID).Str("action", string(result.Kind())).Msg("node metadata already up to date")
	}

	for _, tag := range tags {
		if err := w.repo.CreateTag(ctx, nodeID, tag); err != nil {
			return fmt.Errorf("create tag %q on %s: %w", tag, nodeID, err)
		}
	}
	return nil
}

func resultFields(result entities.EnrichmentResult) ([]fieldValue, error) {
	if result == nil || (reflect.ValueOf(result).Kind() == reflect.Pointer && reflect.ValueOf(result).IsNil()) {
		return nil, apperrors.NewValidationError("enrichment result is required")
	}

	switch r := result.(type) {
	case *entities.Summary:
		return []fieldValue{
			{entities.AttrSummary, strings.TrimSpace(r.Text)},
			{entities.AttrTags, r.Tags},
			{entities.AttrModel, r.Model},
		}, nil
	case *entities.Term:
		return []fieldValue{
			{entities.AttrTerm, strings.TrimSpace(r.Term)},
			{entities.AttrModel, r.Model},
		}, nil
	case *entities.Description:
		return []fieldValue{
			{entities.AttrDescription, strings.TrimSpace(r.Text)},
			{entities.AttrModel, r.Model},
		}, nil
	case *entities.EntityLinks:
		if err := r.Validate(); err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		return []fieldValue{
			{entities.AttrLabels, r.Labels},
			{entities.AttrLinks, r.Links},
			{entities.AttrTypeLists, r.TypeLists},
			{entities.AttrModel, r.Model},
		}, nil
	case entities.Summary:
		return resultFields(&r)
	case entities.Term:
		return resultFields(&r)
	case entities.Description:
		return resultFields(&r)
	case entities.EntityLinks:
		return resultFields(&r)
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported enrichment result %T", result))
	}
}

// tagValues turns a field into tag names: dots become spaces, blanks and
// duplicates are dropped.
func tagValues(value any) []string {
	var raw []string
	switch v := value.(type) {
	case string:
		raw = []string{v}
	case []string:
		raw = v
	}

	var tags []string
	for _, tag := range raw {
		tag = strings.TrimSpace(strings.ReplaceAll(tag, ".", " "))
		if tag == "" || slices.Contains(tags, tag) {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

func propertiesApplied(current, wanted map[string]any) bool {
	for name, value := range wanted {
		existing, ok := current[name]
		if !ok || !sameValue(existing, value) {
			return false
		}
	}
	return true
}

// sameValue compares values regardless of whether lists came back from the
// repository as []any or []string.
func sameValue(a, b any) bool {
	return reflect.DeepEqual(normalizeValue(a), normalizeValue(b))
}

func normalizeValue(v any) any {
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return v
			}
			out = append(out, s)
		}
		return out
	case []string:
		if list == nil {
			return []string{}
		}
		return list
	default:
		return v
	}
}
