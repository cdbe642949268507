package entities

import (
	"fmt"
	"strings"
)

// ActionKind is one of the fixed enrichment operations.
type ActionKind string

const (
	ActionSummary            ActionKind = "SUMMARY"
	ActionClassify           ActionKind = "CLASSIFY"
	ActionDescribe           ActionKind = "DESCRIBE"
	ActionEntityLinkWikidata ActionKind = "ENTITYLINKWIKIDATA"
	ActionEntityLinkDBpedia  ActionKind = "ENTITYLINKDBPEDIA"
)

// AllActionKinds returns every supported kind in a stable order.
func AllActionKinds() []ActionKind {
	return []ActionKind{
		ActionSummary,
		ActionClassify,
		ActionDescribe,
		ActionEntityLinkWikidata,
		ActionEntityLinkDBpedia,
	}
}

// ParseActionKind accepts "CLASSIFY", "classify" or "entitylink-wikidata".
func ParseActionKind(s string) (ActionKind, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "", "_", "").Replace(normalized)
	for _, kind := range AllActionKinds() {
		if string(kind) == normalized {
			return kind, nil
		}
	}
	return "", fmt.Errorf("action %q is not supported", s)
}

// Outcome is the result of executing an action against one document.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeDeferred  Outcome = "deferred"
	OutcomeSkipped   Outcome = "skipped"
	// OutcomeFailed is only recorded by drivers; actions return an error instead.
	OutcomeFailed Outcome = "failed"
)
