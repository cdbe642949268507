package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/docenricher/internal/application/filters"
	"github.com/zatekoja/docenricher/internal/domain/entities"
	"github.com/zatekoja/docenricher/internal/domain/providers"
	"github.com/zatekoja/docenricher/internal/domain/repositories"
)

// EventHandler reacts to one shape of node notification for one action.
type EventHandler struct {
	Name   string
	Action *Action
	Filter filters.Predicate

	// target picks the document the event is about.
	target func(event *entities.NodeEvent) (string, bool)
	// admit may veto a matching event once the document is loaded.
	admit func(doc *entities.Document, event *entities.NodeEvent) bool
}

// HandlerOptions names the node types the handlers filter on.
type HandlerOptions struct {
	ContentNodeType   string
	RenditionNodeType string
	RenditionKind     string
}

// BuildHandlers returns the handlers for each action: rendition created
// (rendition-backed actions only), content created and content updated.
func BuildHandlers(actions []*Action, opts HandlerOptions) []*EventHandler {
	var handlers []*EventHandler
	for _, action := range actions {
		aspect := action.Mapping().Aspect

		if action.UsesRendition() {
			handlers = append(handlers, &EventHandler{
				Name:   fmt.Sprintf("%s:rendition-created", action.Kind()),
				Action: action,
				Filter: filters.And(
					filters.IsCreated(),
					filters.NodeTypeIs(opts.RenditionNodeType),
					filters.NameIs(opts.RenditionKind),
				),
				target: func(event *entities.NodeEvent) (string, bool) {
					return event.PrimaryParent()
				},
				admit: func(doc *entities.Document, _ *entities.NodeEvent) bool {
					return doc.HasAspect(aspect)
				},
			})
		}

		handlers = append(handlers, &EventHandler{
			Name:   fmt.Sprintf("%s:content-created", action.Kind()),
			Action: action,
			Filter: filters.And(
				filters.IsCreated(),
				filters.AspectPresent(aspect),
				filters.NodeTypeIs(opts.ContentNodeType),
			),
			target: resourceTarget,
		})

		contentChanged := filters.And(
			filters.AspectPresent(aspect),
			filters.NodeTypeIs(opts.ContentNodeType),
			filters.ContentChanged(),
		)
		handlers = append(handlers, &EventHandler{
			Name:   fmt.Sprintf("%s:content-updated", action.Kind()),
			Action: action,
			Filter: filters.IsUpdated().And(contentChanged.Or(filters.AspectAdded(aspect))),
			target: resourceTarget,
			// Writing results adds the aspect too; that echo must not
			// trigger a second AI call.
			admit: func(doc *entities.Document, event *entities.NodeEvent) bool {
				if contentChanged.Match(event) {
					return true
				}
				return !action.Enriched(doc)
			},
		})
	}
	return handlers
}

func resourceTarget(event *entities.NodeEvent) (string, bool) {
	return event.ResourceID, event.ResourceID != ""
}

// CompletionService completes deferred work when the repository reports
// that a rendition exists or a tracked document changed. It holds no state
// of its own; every decision is taken from the document.
type CompletionService struct {
	repo     repositories.NodeRepository
	eventBus providers.NodeEventBus
	channel  string
	handlers []*EventHandler
	timeout  time.Duration
	workers  int
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewCompletionService creates the event-reactive driver.
func NewCompletionService(
	repo repositories.NodeRepository,
	eventBus providers.NodeEventBus,
	channel string,
	handlers []*EventHandler,
	timeout time.Duration,
	workers int,
) *CompletionService {
	if channel == "" {
		channel = providers.DefaultNodeEventsChannel
	}
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CompletionService{
		repo:     repo,
		eventBus: eventBus,
		channel:  channel,
		handlers: handlers,
		timeout:  timeout,
		workers:  workers,
		logger:   log.With().Str("component", "completion").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for node events
func (s *CompletionService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, s.channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	s.wg.Add(1)
	go s.processEvents(eventChan)
	s.logger.Info().Str("channel", s.channel).Int("handlers", len(s.handlers)).Msg("completion service started")
	return nil
}

// Stop stops listening and waits for in-flight events to finish.
func (s *CompletionService) Stop() {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.eventBus.Unsubscribe(ctx, s.channel); err != nil {
		s.logger.Warn().Err(err).Str("channel", s.channel).Msg("failed to unsubscribe")
	}
	s.wg.Wait()
	s.logger.Info().Msg("completion service stopped")
}

// Done is closed once a started service stops processing events, either
// after Stop or because the bus closed the subscription.
func (s *CompletionService) Done() <-chan struct{} {
	return s.done
}

func (s *CompletionService) processEvents(eventChan <-chan *entities.NodeEvent) {
	defer s.wg.Done()
	defer close(s.done)

	slots := make(chan struct{}, s.workers)
	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				s.logger.Warn().Str("channel", s.channel).Msg("event subscription closed")
				return
			}
			if event == nil {
				continue
			}
			select {
			case slots <- struct{}{}:
			case <-s.ctx.Done():
				return
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				defer func() { <-slots }()
				s.HandleEvent(s.ctx, event)
			}()
		}
	}
}

// HandleEvent runs every handler whose filter matches the event. Failures
// are logged and the event is dropped; redelivery or a later batch pass
// recovers.
func (s *CompletionService) HandleEvent(ctx context.Context, event *entities.NodeEvent) int {
	matched := 0
	for _, handler := range s.handlers {
		if !handler.Filter.Match(event) {
			continue
		}
		matched++
		s.dispatch(ctx, handler, event)
	}
	return matched
}

func (s *CompletionService) dispatch(ctx context.Context, handler *EventHandler, event *entities.NodeEvent) {
	logger := s.logger.With().Str("handler", handler.Name).Str("event_id", event.ID).Logger()

	docID, ok := handler.target(event)
	if !ok {
		logger.Warn().Str("resource_id", event.ResourceID).Msg("event does not name a document")
		return
	}
	logger = logger.With().Str("node_id", docID).Logger()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	doc, err := s.repo.GetNode(ctx, docID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load document")
		return
	}
	if handler.admit != nil && !handler.admit(doc, event) {
		logger.Debug().Msg("document state does not call for enrichment")
		return
	}

	outcome, err := handler.Action.ExecuteDocument(ctx, doc)
	if err != nil {
		logger.Error().Err(err).Msg("failed to enrich document")
		return
	}
	logger.Info().Str("outcome", string(outcome)).Msg("event handled")
}
