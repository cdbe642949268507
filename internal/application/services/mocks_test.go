package services

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/docenricher/internal/domain/entities"
	"github.com/zatekoja/docenricher/internal/domain/providers"
	"github.com/zatekoja/docenricher/internal/domain/repositories"
	apperrors "github.com/zatekoja/docenricher/pkg/errors"
)

// fakeNodeRepository is an in-memory repository. Rendition creation only
// happens when a test calls finishRendition, like the real platform.
type fakeNodeRepository struct {
	mu sync.Mutex

	nodes      map[string]*entities.Document
	content    map[string]*entities.Content
	parents    map[string]string
	renditions map[string]entities.RenditionState

	renditionRequests map[string]int
	tags              map[string][]string
	updates           map[string]int
	searchIDs         []string
	searchErr         error
	// searchUnset, when set, makes Search page by offset over the nodes
	// that lack this property, re-evaluated for every page.
	searchUnset string
}

func newFakeNodeRepository() *fakeNodeRepository {
	return &fakeNodeRepository{
		nodes:             make(map[string]*entities.Document),
		content:           make(map[string]*entities.Content),
		parents:           make(map[string]string),
		renditions:        make(map[string]entities.RenditionState),
		renditionRequests: make(map[string]int),
		tags:              make(map[string][]string),
		updates:           make(map[string]int),
	}
}

func (r *fakeNodeRepository) addNode(doc *entities.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc.Properties == nil {
		doc.Properties = make(map[string]any)
	}
	r.nodes[doc.ID] = doc
}

func (r *fakeNodeRepository) finishRendition(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renditions[id] = entities.RenditionReady
}

func (r *fakeNodeRepository) node(id string) *entities.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneDocument(r.nodes[id])
}

func (r *fakeNodeRepository) requestCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renditionRequests[id]
}

func (r *fakeNodeRepository) updateCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[id]
}

func (r *fakeNodeRepository) tagsOf(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.tags[id])
}

func cloneDocument(doc *entities.Document) *entities.Document {
	if doc == nil {
		return nil
	}
	out := *doc
	out.Aspects = slices.Clone(doc.Aspects)
	out.Properties = maps.Clone(doc.Properties)
	return &out
}

func (r *fakeNodeRepository) GetNode(ctx context.Context, id string) (*entities.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.nodes[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("node %s not found", id))
	}
	return cloneDocument(doc), nil
}

func (r *fakeNodeRepository) UpdateNode(ctx context.Context, id string, update repositories.NodeUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.nodes[id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("node %s not found", id))
	}
	if update.Aspects != nil {
		doc.Aspects = slices.Clone(update.Aspects)
	}
	for name, value := range update.Properties {
		doc.Properties[name] = value
	}
	r.updates[id]++
	return nil
}

func (r *fakeNodeRepository) CreateTag(ctx context.Context, id, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags[id] = append(r.tags[id], tag)
	return nil
}

func (r *fakeNodeRepository) PrimaryParent(ctx context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	parent, ok := r.parents[id]
	if !ok {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("node %s has no primary parent", id))
	}
	return parent, nil
}

func (r *fakeNodeRepository) NodeContent(ctx context.Context, id string) (*entities.Content, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.content[id]; ok {
		copied := *c
		return &copied, nil
	}
	return &entities.Content{Data: []byte("binary of " + id)}, nil
}

func (r *fakeNodeRepository) RenditionState(ctx context.Context, id, kind string) (entities.RenditionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.renditions[id]; ok {
		return state, nil
	}
	return entities.RenditionMissing, nil
}

func (r *fakeNodeRepository) RequestRendition(ctx context.Context, id, kind string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.renditions[id]; ok && state != entities.RenditionMissing {
		return false, nil
	}
	r.renditions[id] = entities.RenditionPending
	r.renditionRequests[id]++
	return true, nil
}

func (r *fakeNodeRepository) RenditionContent(ctx context.Context, id, kind string) (*entities.Content, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.renditions[id] != entities.RenditionReady {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s rendition of %s is not ready", kind, id))
	}
	return &entities.Content{MimeType: "application/pdf", Data: []byte("%PDF " + id)}, nil
}

func (r *fakeNodeRepository) Search(ctx context.Context, criteria repositories.SearchCriteria) iter.Seq2[string, error] {
	if r.searchUnset != "" {
		return r.pagedSearch(criteria.PageSize)
	}
	return func(yield func(string, error) bool) {
		for _, id := range r.searchIDs {
			if !yield(id, nil) {
				return
			}
		}
		if r.searchErr != nil {
			yield("", r.searchErr)
		}
	}
}

func (r *fakeNodeRepository) unsetIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, doc := range r.nodes {
		if _, ok := doc.Properties[r.searchUnset]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (r *fakeNodeRepository) pagedSearch(pageSize int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for skip := 0; ; skip += pageSize {
			matches := r.unsetIDs()
			if skip >= len(matches) {
				return
			}
			page := matches[skip:min(skip+pageSize, len(matches))]
			for _, id := range page {
				if !yield(id, nil) {
					return
				}
			}
		}
	}
}

// MockEnrichmentProvider is a mock implementation of EnrichmentProvider
type MockEnrichmentProvider struct {
	mock.Mock
}

func (m *MockEnrichmentProvider) Summarize(ctx context.Context, content *entities.Content) (*entities.Summary, error) {
	args := m.Called(ctx, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Summary), args.Error(1)
}

func (m *MockEnrichmentProvider) Classify(ctx context.Context, content *entities.Content, termList string) (*entities.Term, error) {
	args := m.Called(ctx, content, termList)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Term), args.Error(1)
}

func (m *MockEnrichmentProvider) Describe(ctx context.Context, picture *entities.Content) (*entities.Description, error) {
	args := m.Called(ctx, picture)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Description), args.Error(1)
}

func (m *MockEnrichmentProvider) LinkEntities(ctx context.Context, content *entities.Content, target entities.KnowledgeBase) (*entities.EntityLinks, error) {
	args := m.Called(ctx, content, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.EntityLinks), args.Error(1)
}

// MockCacheProvider is a mock implementation of CacheProvider
type MockCacheProvider struct {
	mock.Mock
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

// MockRunRepository is a mock implementation of RunRepository
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Start(ctx context.Context, run *entities.BatchRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) Finish(ctx context.Context, run *entities.BatchRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) ListRecent(ctx context.Context, limit int) ([]*entities.BatchRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.BatchRun), args.Error(1)
}

// chanEventBus feeds events from a test straight to subscribers.
type chanEventBus struct {
	events       chan *entities.NodeEvent
	unsubscribed []string
}

func newChanEventBus() *chanEventBus {
	return &chanEventBus{events: make(chan *entities.NodeEvent, 16)}
}

func (b *chanEventBus) Publish(ctx context.Context, channel string, event *entities.NodeEvent) error {
	b.events <- event
	return nil
}

func (b *chanEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.NodeEvent, error) {
	return b.events, nil
}

func (b *chanEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.unsubscribed = append(b.unsubscribed, channel)
	return nil
}

func (b *chanEventBus) Close() error { return nil }

var _ providers.NodeEventBus = (*chanEventBus)(nil)

const (
	summaryAspect  = "genai:summarizable"
	classifyAspect = "genai:classifiable"
	describeAspect = "genai:descriptable"
	wikidataAspect = "genai:entitylinkswikidata"
	dbpediaAspect  = "genai:entitylinksdbpedia"
)

func testMappings() map[entities.ActionKind]entities.FieldMapping {
	return map[entities.ActionKind]entities.FieldMapping{
		entities.ActionSummary: {
			Aspect: summaryAspect,
			Properties: map[entities.Attribute]string{
				entities.AttrSummary: "genai:summary",
				entities.AttrTags:    entities.TagProperty,
				entities.AttrModel:   "genai:llmSummary",
			},
		},
		entities.ActionClassify: {
			Aspect: classifyAspect,
			Properties: map[entities.Attribute]string{
				entities.AttrTerm:  "genai:term",
				entities.AttrModel: "genai:llmClassify",
			},
		},
		entities.ActionDescribe: {
			Aspect: describeAspect,
			Properties: map[entities.Attribute]string{
				entities.AttrDescription: "genai:description",
				entities.AttrModel:       "genai:llmDescription",
			},
		},
		entities.ActionEntityLinkWikidata: {
			Aspect: wikidataAspect,
			Properties: map[entities.Attribute]string{
				entities.AttrLinks: "genai:linksWikidata",
			},
		},
		entities.ActionEntityLinkDBpedia: {
			Aspect: dbpediaAspect,
			Properties: map[entities.Attribute]string{
				entities.AttrLinks: "genai:linksDBpedia",
			},
		},
	}
}

func newTestDispatcher(repo *fakeNodeRepository, provider *MockEnrichmentProvider) *Dispatcher {
	d, err := NewDispatcher(ActionDeps{
		Repo:          repo,
		Provider:      provider,
		TermLists:     NewTermListSource(repo, nil, "genai:terms", "", 0),
		RenditionKind: "pdf",
		Mappings:      testMappings(),
	})
	if err != nil {
		panic(err)
	}
	return d
}

func mustResolve(d *Dispatcher, kind entities.ActionKind) *Action {
	action, err := d.Resolve(kind)
	if err != nil {
		panic(err)
	}
	return action
}

func pdfDocument(id string, aspects ...string) *entities.Document {
	return &entities.Document{
		ID:       id,
		Name:     id + ".docx",
		NodeType: "cm:content",
		MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Aspects:  append([]string{"cm:titled"}, aspects...),
	}
}
