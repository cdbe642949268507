package providers

import (
	"context"

	"github.com/zatekoja/docenricher/internal/domain/entities"
)

// NodeEventBus delivers repository node notifications.
type NodeEventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.NodeEvent) error

	// Subscribe subscribes to events on a channel. The returned channel is
	// closed when ctx ends or the bus is closed.
	Subscribe(ctx context.Context, channel string) (<-chan *entities.NodeEvent, error)

	// Unsubscribe drops every subscriber of a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// DefaultNodeEventsChannel carries every node notification bridged from the repository.
const DefaultNodeEventsChannel = "alfresco:events"
