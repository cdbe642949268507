package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/docenricher/internal/domain/entities"
	"github.com/zatekoja/docenricher/pkg/config"
	apperrors "github.com/zatekoja/docenricher/pkg/errors"
)

func TestDispatcher_ResolvesEveryKind(t *testing.T) {
	d := newTestDispatcher(newFakeNodeRepository(), new(MockEnrichmentProvider))

	for _, kind := range entities.AllActionKinds() {
		action, err := d.Resolve(kind)
		require.NoError(t, err)
		assert.Equal(t, kind, action.Kind())
	}

	describe := mustResolve(d, entities.ActionDescribe)
	assert.False(t, describe.UsesRendition())
	assert.True(t, mustResolve(d, entities.ActionSummary).UsesRendition())
}

func TestDispatcher_UnknownKind(t *testing.T) {
	d := newTestDispatcher(newFakeNodeRepository(), new(MockEnrichmentProvider))

	_, err := d.Resolve(entities.ActionKind("TRANSLATE"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))

	_, err = d.Execute(context.Background(), entities.ActionKind("TRANSLATE"), "doc-1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}

func TestDispatcher_ValidateKinds(t *testing.T) {
	d := newTestDispatcher(newFakeNodeRepository(), new(MockEnrichmentProvider))

	actions, err := d.ValidateKinds("summary", "entitylink-wikidata", "SUMMARY")
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, entities.ActionSummary, actions[0].Kind())
	assert.Equal(t, entities.ActionEntityLinkWikidata, actions[1].Kind())

	_, err = d.ValidateKinds("summary", "sumary")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
	assert.Contains(t, err.Error(), "sumary")

	_, err = d.ValidateKinds()
	assert.Error(t, err)
}

func TestNewDispatcher_RequiresAspects(t *testing.T) {
	mappings := testMappings()
	delete(mappings, entities.ActionDescribe)

	_, err := NewDispatcher(ActionDeps{
		Repo:          newFakeNodeRepository(),
		Provider:      new(MockEnrichmentProvider),
		TermLists:     NewTermListSource(newFakeNodeRepository(), nil, "genai:terms", "", 0),
		RenditionKind: "pdf",
		Mappings:      mappings,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DESCRIBE")
}

func TestMappingsFromConfig(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	mappings := MappingsFromConfig(cfg.Content)
	require.Len(t, mappings, len(entities.AllActionKinds()))

	summary := mappings[entities.ActionSummary]
	assert.Equal(t, "genai:summarizable", summary.Aspect)
	assert.Equal(t, entities.TagProperty, summary.Property(entities.AttrTags))

	wikidata := mappings[entities.ActionEntityLinkWikidata]
	assert.Equal(t, "genai:linksWikidata", wikidata.Property(entities.AttrLinks))
	assert.Empty(t, wikidata.Property(entities.AttrLabels))
}
