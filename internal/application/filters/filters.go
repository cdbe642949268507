// Package filters builds the pure boolean expressions that decide which node
// notifications a handler reacts to.
package filters

import "github.com/zatekoja/docenricher/internal/domain/entities"

// Predicate evaluates a notification. Predicates never mutate the event and
// never match a nil event.
type Predicate func(event *entities.NodeEvent) bool

// Match evaluates p; a nil predicate matches nothing.
func (p Predicate) Match(event *entities.NodeEvent) bool {
	if p == nil || event == nil {
		return false
	}
	return p(event)
}

// And is p AND q.
func (p Predicate) And(q Predicate) Predicate {
	return And(p, q)
}

// Or is p OR q.
func (p Predicate) Or(q Predicate) Predicate {
	return Or(p, q)
}

// And matches when every predicate matches, evaluated left to right.
func And(predicates ...Predicate) Predicate {
	return func(event *entities.NodeEvent) bool {
		if len(predicates) == 0 {
			return false
		}
		for _, p := range predicates {
			if !p.Match(event) {
				return false
			}
		}
		return true
	}
}

// Or matches when any predicate matches, evaluated left to right.
func Or(predicates ...Predicate) Predicate {
	return func(event *entities.NodeEvent) bool {
		for _, p := range predicates {
			if p.Match(event) {
				return true
			}
		}
		return false
	}
}

// NodeTypeIs matches nodes of the given content model type.
func NodeTypeIs(nodeType string) Predicate {
	return func(event *entities.NodeEvent) bool {
		return event.NodeType == nodeType
	}
}

// AspectPresent matches nodes carrying the aspect after the change.
func AspectPresent(aspect string) Predicate {
	return func(event *entities.NodeEvent) bool {
		return event.HasAspect(aspect)
	}
}

// AspectAdded matches changes that added the aspect.
func AspectAdded(aspect string) Predicate {
	return func(event *entities.NodeEvent) bool {
		return event.AspectAdded(aspect)
	}
}

// ContentChanged matches changes to the node's binary content.
func ContentChanged() Predicate {
	return func(event *entities.NodeEvent) bool {
		return event.ContentChanged
	}
}

// NameIs matches nodes with the given name, e.g. the "pdf" rendition node.
func NameIs(name string) Predicate {
	return func(event *entities.NodeEvent) bool {
		return event.Name == name
	}
}

// IsCreated matches creation notifications.
func IsCreated() Predicate {
	return func(event *entities.NodeEvent) bool {
		return event.Type == entities.NodeEventCreated
	}
}

// IsUpdated matches update notifications.
func IsUpdated() Predicate {
	return func(event *entities.NodeEvent) bool {
		return event.Type == entities.NodeEventUpdated
	}
}
