package entities

import (
	"slices"
	"strings"
)

// Document is a content node as read from the repository.
type Document struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	NodeType   string         `json:"node_type"`
	MimeType   string         `json:"mime_type"`
	Aspects    []string       `json:"aspects"`
	Properties map[string]any `json:"properties"`
}

// HasAspect reports whether the aspect is applied to the document.
func (d *Document) HasAspect(aspect string) bool {
	return d != nil && slices.Contains(d.Aspects, aspect)
}

// IsImage reports whether the document's binary is a picture.
func (d *Document) IsImage() bool {
	return d != nil && strings.Contains(strings.ToLower(d.MimeType), "image")
}

// Content is a binary handed to the AI service.
type Content struct {
	Name     string
	MimeType string
	Data     []byte
}
