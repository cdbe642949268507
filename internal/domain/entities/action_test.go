package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActionKind(t *testing.T) {
	cases := map[string]ActionKind{
		"SUMMARY":             ActionSummary,
		"classify":            ActionClassify,
		" Describe ":          ActionDescribe,
		"entitylink-wikidata": ActionEntityLinkWikidata,
		"ENTITY_LINK_DBPEDIA": ActionEntityLinkDBpedia,
	}
	for input, want := range cases {
		got, err := ParseActionKind(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseActionKind("TRANSLATE")
	assert.Error(t, err)
}

func TestEntityLinks_Validate(t *testing.T) {
	aligned := EntityLinks{Labels: []string{"Paris"}, Links: []string{"Q90"}, TypeLists: []string{"city"}}
	assert.NoError(t, aligned.Validate())
	assert.Equal(t, ActionEntityLinkWikidata, aligned.Kind())

	skewed := EntityLinks{Labels: []string{"Paris", "Rome"}, Links: []string{"Q90"}, TypeLists: []string{"city"}, Target: KnowledgeBaseDBpedia}
	assert.Error(t, skewed.Validate())
	assert.Equal(t, ActionEntityLinkDBpedia, skewed.Kind())
}

func TestDocument_IsImage(t *testing.T) {
	assert.True(t, (&Document{MimeType: "image/png"}).IsImage())
	assert.False(t, (&Document{MimeType: "application/pdf"}).IsImage())
	assert.False(t, (*Document)(nil).IsImage())
}

func TestNodeEvent_PrimaryParent(t *testing.T) {
	event := &NodeEvent{PrimaryHierarchy: []string{"doc-1", "folder-1"}}
	parent, ok := event.PrimaryParent()
	assert.True(t, ok)
	assert.Equal(t, "doc-1", parent)

	_, ok = (&NodeEvent{}).PrimaryParent()
	assert.False(t, ok)
}
