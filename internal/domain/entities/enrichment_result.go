package entities

import "fmt"

// EnrichmentResult is the typed output of one AI call.
type EnrichmentResult interface {
	Kind() ActionKind
}

// KnowledgeBase is the entity-linking target.
type KnowledgeBase string

const (
	KnowledgeBaseWikidata KnowledgeBase = "Wikidata"
	KnowledgeBaseDBpedia  KnowledgeBase = "DBpedia"
)

// Summary is produced by the summary action.
type Summary struct {
	Text  string   `json:"summary"`
	Tags  []string `json:"tags"`
	Model string   `json:"model"`
}

func (Summary) Kind() ActionKind { return ActionSummary }

// Term is the candidate term selected by the classify action.
type Term struct {
	Term  string `json:"term"`
	Model string `json:"model"`
}

func (Term) Kind() ActionKind { return ActionClassify }

// Description is produced by the describe action for pictures.
type Description struct {
	Text  string `json:"description"`
	Model string `json:"model"`
}

func (Description) Kind() ActionKind { return ActionDescribe }

// EntityLinks holds index-aligned labels, links and type lists.
type EntityLinks struct {
	Labels    []string      `json:"labels"`
	Links     []string      `json:"links"`
	TypeLists []string      `json:"type_lists"`
	Model     string        `json:"model"`
	Target    KnowledgeBase `json:"target"`
}

func (e EntityLinks) Kind() ActionKind {
	if e.Target == KnowledgeBaseDBpedia {
		return ActionEntityLinkDBpedia
	}
	return ActionEntityLinkWikidata
}

// Validate checks that Labels[i], Links[i] and TypeLists[i] describe the same entity.
func (e EntityLinks) Validate() error {
	if len(e.Labels) != len(e.Links) || len(e.Links) != len(e.TypeLists) {
		return fmt.Errorf("entity link lists are not aligned: %d labels, %d links, %d type lists",
			len(e.Labels), len(e.Links), len(e.TypeLists))
	}
	return nil
}
