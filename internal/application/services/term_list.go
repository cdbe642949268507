package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/docenricher/internal/domain/entities"
	"github.com/zatekoja/docenricher/internal/domain/providers"
	"github.com/zatekoja/docenricher/internal/domain/repositories"
	apperrors "github.com/zatekoja/docenricher/pkg/errors"
)

const termListCachePrefix = "docenricher:termlist:"

// TermListSource supplies the candidate terms for classification: a static
// list when one is configured, otherwise the terms property of the
// document's primary parent folder.
type TermListSource struct {
	repo          repositories.NodeRepository
	cache         providers.CacheProvider
	termsProperty string
	static        string
	ttl           time.Duration
	logger        zerolog.Logger
}

// NewTermListSource creates a term list source. cache may be nil.
func NewTermListSource(repo repositories.NodeRepository, cache providers.CacheProvider, termsProperty, static string, ttl time.Duration) *TermListSource {
	return &TermListSource{
		repo:          repo,
		cache:         cache,
		termsProperty: termsProperty,
		static:        strings.TrimSpace(static),
		ttl:           ttl,
		logger:        log.With().Str("component", "term_list").Logger(),
	}
}

// TermList returns the comma-separated candidate terms for doc.
func (s *TermListSource) TermList(ctx context.Context, doc *entities.Document) (string, error) {
	if s.static != "" {
		return formatTermList(s.static), nil
	}

	parentID, err := s.repo.PrimaryParent(ctx, doc.ID)
	if err != nil {
		return "", fmt.Errorf("primary parent of %s: %w", doc.ID, err)
	}

	key := termListCachePrefix + parentID
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err == nil && len(cached) > 0 {
			return string(cached), nil
		}
		if err != nil && !errors.Is(err, providers.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("parent_id", parentID).Msg("term list cache read failed")
		}
	}

	parent, err := s.repo.GetNode(ctx, parentID)
	if err != nil {
		return "", fmt.Errorf("read term list folder %s: %w", parentID, err)
	}
	value, ok := parent.Properties[s.termsProperty]
	if !ok || value == nil {
		return "", apperrors.NewValidationError(fmt.Sprintf("folder %s has no %s property", parentID, s.termsProperty))
	}

	terms := formatTermList(value)
	if terms == "" {
		return "", apperrors.NewValidationError(fmt.Sprintf("folder %s has an empty %s property", parentID, s.termsProperty))
	}

	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.Set(ctx, key, []byte(terms), s.ttl); err != nil {
			s.logger.Warn().Err(err).Str("parent_id", parentID).Msg("term list cache write failed")
		}
	}
	return terms, nil
}

// formatTermList renders "[a, b]", "a,b" or a list value as "a, b".
func formatTermList(value any) string {
	var parts []string
	switch v := value.(type) {
	case string:
		v = strings.TrimSpace(v)
		v = strings.TrimSuffix(strings.TrimPrefix(v, "["), "]")
		parts = strings.Split(v, ",")
	case []string:
		parts = v
	case []any:
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
	default:
		parts = []string{fmt.Sprint(v)}
	}

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, ", ")
}
