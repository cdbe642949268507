package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/docenricher/internal/domain/entities"
	"github.com/zatekoja/docenricher/internal/domain/providers"
	"github.com/zatekoja/docenricher/internal/domain/repositories"
	"github.com/zatekoja/docenricher/pkg/config"
	apperrors "github.com/zatekoja/docenricher/pkg/errors"
)

// ActionDeps are the collaborators shared by every action.
type ActionDeps struct {
	Repo      repositories.NodeRepository
	Provider  providers.EnrichmentProvider
	TermLists *TermListSource
	// RenditionKind is the derived content text actions read, e.g. "pdf".
	RenditionKind string
	Mappings      map[entities.ActionKind]entities.FieldMapping
	// Recorder is optional.
	Recorder OutcomeRecorder
}

// Dispatcher resolves an action kind to its action. The set of kinds is
// closed; an unknown kind is a configuration error.
type Dispatcher struct {
	actions map[entities.ActionKind]*Action
}

// NewDispatcher builds one action per supported kind.
func NewDispatcher(deps ActionDeps) (*Dispatcher, error) {
	if deps.Repo == nil || deps.Provider == nil {
		return nil, apperrors.NewConfigurationError("dispatcher needs a node repository and an enrichment provider")
	}
	if strings.TrimSpace(deps.RenditionKind) == "" {
		return nil, apperrors.NewConfigurationError("rendition kind is required")
	}

	gate := NewRenditionGate(deps.Repo, deps.RenditionKind)
	writer := NewMetadataWriter(deps.Repo)
	var recorder OutcomeRecorder = noopRecorder{}
	if deps.Recorder != nil {
		recorder = deps.Recorder
	}

	d := &Dispatcher{actions: make(map[entities.ActionKind]*Action)}
	for _, kind := range entities.AllActionKinds() {
		mapping, ok := deps.Mappings[kind]
		if !ok || strings.TrimSpace(mapping.Aspect) == "" {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("no aspect configured for action %s", kind))
		}
		action, err := newAction(kind, mapping, deps)
		if err != nil {
			return nil, err
		}
		action.repo = deps.Repo
		action.gate = gate
		action.writer = writer
		action.recorder = recorder
		action.logger = log.With().Str("component", "action").Str("action", string(kind)).Logger()
		d.actions[kind] = action
	}
	return d, nil
}

func newAction(kind entities.ActionKind, mapping entities.FieldMapping, deps ActionDeps) (*Action, error) {
	provider := deps.Provider
	action := &Action{kind: kind, mapping: mapping, usesRendition: true}

	switch kind {
	case entities.ActionSummary:
		action.updateField = entities.AttrSummary
		action.enrich = func(ctx context.Context, _ *entities.Document, content *entities.Content) (entities.EnrichmentResult, error) {
			return provider.Summarize(ctx, content)
		}
	case entities.ActionClassify:
		if deps.TermLists == nil {
			return nil, apperrors.NewConfigurationError("classify action needs a term list source")
		}
		terms := deps.TermLists
		action.updateField = entities.AttrTerm
		action.enrich = func(ctx context.Context, doc *entities.Document, content *entities.Content) (entities.EnrichmentResult, error) {
			termList, err := terms.TermList(ctx, doc)
			if err != nil {
				return nil, err
			}
			return provider.Classify(ctx, content, termList)
		}
	case entities.ActionDescribe:
		action.needsImage = true
		action.usesRendition = false
		action.updateField = entities.AttrDescription
		action.enrich = func(ctx context.Context, _ *entities.Document, content *entities.Content) (entities.EnrichmentResult, error) {
			return provider.Describe(ctx, content)
		}
	case entities.ActionEntityLinkWikidata, entities.ActionEntityLinkDBpedia:
		target := entities.KnowledgeBaseWikidata
		if kind == entities.ActionEntityLinkDBpedia {
			target = entities.KnowledgeBaseDBpedia
		}
		action.updateField = entities.AttrLinks
		action.enrich = func(ctx context.Context, _ *entities.Document, content *entities.Content) (entities.EnrichmentResult, error) {
			return provider.LinkEntities(ctx, content, target)
		}
	default:
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("unknown action kind %s", kind))
	}
	return action, nil
}

// Resolve returns the action for kind.
func (d *Dispatcher) Resolve(kind entities.ActionKind) (*Action, error) {
	action, ok := d.actions[kind]
	if !ok {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("unknown action kind %s", kind))
	}
	return action, nil
}

// ResolveName parses a configured action name and resolves it.
func (d *Dispatcher) ResolveName(name string) (*Action, error) {
	kind, err := entities.ParseActionKind(name)
	if err != nil {
		return nil, apperrors.NewConfigurationError(err.Error())
	}
	return d.Resolve(kind)
}

// ValidateKinds checks every configured action name at startup so a typo
// fails the command before any document is touched.
func (d *Dispatcher) ValidateKinds(names ...string) ([]*Action, error) {
	if len(names) == 0 {
		return nil, apperrors.NewConfigurationError("no action configured")
	}
	actions := make([]*Action, 0, len(names))
	seen := make(map[entities.ActionKind]bool, len(names))
	for _, name := range names {
		action, err := d.ResolveName(name)
		if err != nil {
			return nil, err
		}
		if seen[action.Kind()] {
			continue
		}
		seen[action.Kind()] = true
		actions = append(actions, action)
	}
	return actions, nil
}

// Execute runs the action for kind against one document.
func (d *Dispatcher) Execute(ctx context.Context, kind entities.ActionKind, nodeID string) (entities.Outcome, error) {
	action, err := d.Resolve(kind)
	if err != nil {
		return "", err
	}
	return action.Execute(ctx, nodeID)
}

// MappingsFromConfig translates configured aspect and property names into
// field mappings keyed by action kind.
func MappingsFromConfig(cfg config.ContentConfig) map[entities.ActionKind]entities.FieldMapping {
	return map[entities.ActionKind]entities.FieldMapping{
		entities.ActionSummary: {
			Aspect: cfg.Summary.Aspect,
			Properties: map[entities.Attribute]string{
				entities.AttrSummary: cfg.Summary.SummaryProperty,
				entities.AttrTags:    cfg.Summary.TagsProperty,
				entities.AttrModel:   cfg.Summary.ModelProperty,
			},
		},
		entities.ActionClassify: {
			Aspect: cfg.Classify.Aspect,
			Properties: map[entities.Attribute]string{
				entities.AttrTerm:  cfg.Classify.TermProperty,
				entities.AttrModel: cfg.Classify.ModelProperty,
			},
		},
		entities.ActionDescribe: {
			Aspect: cfg.Describe.Aspect,
			Properties: map[entities.Attribute]string{
				entities.AttrDescription: cfg.Describe.DescriptionProperty,
				entities.AttrModel:       cfg.Describe.ModelProperty,
			},
		},
		entities.ActionEntityLinkWikidata: entityLinkMapping(cfg.EntityLinksWikidata),
		entities.ActionEntityLinkDBpedia:  entityLinkMapping(cfg.EntityLinksDBpedia),
	}
}

func entityLinkMapping(fields config.EntityLinkFields) entities.FieldMapping {
	return entities.FieldMapping{
		Aspect: fields.Aspect,
		Properties: map[entities.Attribute]string{
			entities.AttrLabels:    fields.LabelsProperty,
			entities.AttrLinks:     fields.LinksProperty,
			entities.AttrTypeLists: fields.TypeListsProperty,
		},
	}
}
