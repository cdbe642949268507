package entities

import (
	"slices"
	"time"
)

// NodeEventType distinguishes creation from update notifications.
type NodeEventType string

const (
	NodeEventCreated NodeEventType = "created"
	NodeEventUpdated NodeEventType = "updated"
)

// NodeEvent is a repository notification about a node.
type NodeEvent struct {
	ID               string        `json:"id"`
	Type             NodeEventType `json:"type"`
	ResourceID       string        `json:"resource_id"`
	Name             string        `json:"name"`
	NodeType         string        `json:"node_type"`
	PrimaryHierarchy []string      `json:"primary_hierarchy"`
	AspectsPresent   []string      `json:"aspects_present"`
	AspectsAdded     []string      `json:"aspects_added"`
	ContentChanged   bool          `json:"content_changed"`
	Timestamp        time.Time     `json:"timestamp"`
}

// HasAspect reports whether the aspect was on the node after the change.
func (e *NodeEvent) HasAspect(aspect string) bool {
	return slices.Contains(e.AspectsPresent, aspect)
}

// AspectAdded reports whether the change added the aspect.
func (e *NodeEvent) AspectAdded(aspect string) bool {
	return slices.Contains(e.AspectsAdded, aspect)
}

// PrimaryParent returns the first entry of the primary hierarchy. For a
// rendition node this is the source document.
func (e *NodeEvent) PrimaryParent() (string, bool) {
	if len(e.PrimaryHierarchy) == 0 || e.PrimaryHierarchy[0] == "" {
		return "", false
	}
	return e.PrimaryHierarchy[0], true
}
