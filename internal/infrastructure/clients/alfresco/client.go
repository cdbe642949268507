// Package alfresco implements the node repository on the Alfresco REST API.
package alfresco

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zatekoja/docenricher/internal/domain/entities"
	"github.com/zatekoja/docenricher/internal/domain/repositories"
	"github.com/zatekoja/docenricher/pkg/config"
	apperrors "github.com/zatekoja/docenricher/pkg/errors"
)

const (
	corePath   = "/alfresco/api/-default-/public/alfresco/versions/1"
	searchPath = "/alfresco/api/-default-/public/search/versions/1/search"

	renditionCreated = "CREATED"
)

// HTTPClient talks to one repository with basic authentication. Every call
// is bounded by the configured timeout.
type HTTPClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

var _ repositories.NodeRepository = (*HTTPClient)(nil)

// NewClient creates a repository client
func NewClient(cfg *config.AlfrescoConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type nodeEntry struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	NodeType    string         `json:"nodeType"`
	AspectNames []string       `json:"aspectNames"`
	Properties  map[string]any `json:"properties"`
	Content     *struct {
		MimeType string `json:"mimeType"`
	} `json:"content"`
}

type entryEnvelope[T any] struct {
	Entry T `json:"entry"`
}

type listEnvelope[T any] struct {
	List struct {
		Pagination struct {
			Count        int  `json:"count"`
			HasMoreItems bool `json:"hasMoreItems"`
			SkipCount    int  `json:"skipCount"`
		} `json:"pagination"`
		Entries []entryEnvelope[T] `json:"entries"`
	} `json:"list"`
}

type renditionEntry struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// GetNode reads a node with its aspects and properties.
func (c *HTTPClient) GetNode(ctx context.Context, id string) (*entities.Document, error) {
	endpoint := c.nodeURL(id, "") + "?include=aspectNames,properties"

	var out entryEnvelope[nodeEntry]
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return toDocument(out.Entry), nil
}

// UpdateNode replaces the aspect list and merges the given properties.
func (c *HTTPClient) UpdateNode(ctx context.Context, id string, update repositories.NodeUpdate) error {
	body := map[string]any{}
	if update.Aspects != nil {
		body["aspectNames"] = update.Aspects
	}
	if len(update.Properties) > 0 {
		body["properties"] = update.Properties
	}
	return c.doJSON(ctx, http.MethodPut, c.nodeURL(id, ""), body, nil)
}

// CreateTag tags a node. The repository ignores a tag the node already has.
func (c *HTTPClient) CreateTag(ctx context.Context, id, tag string) error {
	return c.doJSON(ctx, http.MethodPost, c.nodeURL(id, "/tags"), map[string]string{"tag": tag}, nil)
}

// PrimaryParent returns the folder that primarily contains the node.
func (c *HTTPClient) PrimaryParent(ctx context.Context, id string) (string, error) {
	endpoint := c.nodeURL(id, "/parents") + "?where=" + url.QueryEscape("(isPrimary=true)")

	var out listEnvelope[nodeEntry]
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return "", err
	}
	if len(out.List.Entries) == 0 {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("node %s has no primary parent", id))
	}
	return out.List.Entries[0].Entry.ID, nil
}

// NodeContent downloads the node's own binary.
func (c *HTTPClient) NodeContent(ctx context.Context, id string) (*entities.Content, error) {
	return c.download(ctx, c.nodeURL(id, "/content"))
}

// RenditionState reports ready once the repository has created the
// rendition. The repository does not expose a queued state, so a requested
// rendition still reads as missing until it exists.
func (c *HTTPClient) RenditionState(ctx context.Context, id, kind string) (entities.RenditionState, error) {
	var out entryEnvelope[renditionEntry]
	err := c.doJSON(ctx, http.MethodGet, c.nodeURL(id, "/renditions/"+url.PathEscape(kind)), nil, &out)
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return entities.RenditionMissing, nil
	}
	if err != nil {
		return "", err
	}
	if out.Entry.Status == renditionCreated {
		return entities.RenditionReady, nil
	}
	return entities.RenditionMissing, nil
}

// RequestRendition asks the repository to create the rendition. A 409
// means it is already queued or created and is not an error.
func (c *HTTPClient) RequestRendition(ctx context.Context, id, kind string) (bool, error) {
	err := c.doJSON(ctx, http.MethodPost, c.nodeURL(id, "/renditions"), map[string]string{"id": kind}, nil)
	if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RenditionContent downloads a created rendition.
func (c *HTTPClient) RenditionContent(ctx context.Context, id, kind string) (*entities.Content, error) {
	return c.download(ctx, c.nodeURL(id, "/renditions/"+url.PathEscape(kind)+"/content"))
}

type searchRequest struct {
	Query struct {
		Query    string `json:"query"`
		Language string `json:"language"`
	} `json:"query"`
	Paging struct {
		MaxItems  int `json:"maxItems"`
		SkipCount int `json:"skipCount"`
	} `json:"paging"`
	Sort []searchSort `json:"sort"`
}

type searchSort struct {
	Type      string `json:"type"`
	Field     string `json:"field"`
	Ascending bool   `json:"ascending"`
}

// Oldest first, so documents created during a pass land on later pages.
var searchOrder = []searchSort{{Type: "FIELD", Field: "cm:created", Ascending: true}}

// Search pages through the search service on demand. Each page is only
// fetched once the previous one has been consumed. Paging is by offset, so
// a query that stops matching enriched documents can skip entries; callers
// that need every match search again.
func (c *HTTPClient) Search(ctx context.Context, criteria repositories.SearchCriteria) iter.Seq2[string, error] {
	pageSize := criteria.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	language := criteria.Language
	if language == "" {
		language = "afts"
	}

	return func(yield func(string, error) bool) {
		skip := 0
		for {
			var req searchRequest
			req.Query.Query = criteria.Query
			req.Query.Language = language
			req.Paging.MaxItems = pageSize
			req.Paging.SkipCount = skip
			req.Sort = searchOrder

			var out listEnvelope[nodeEntry]
			if err := c.doJSON(ctx, http.MethodPost, c.baseURL+searchPath, req, &out); err != nil {
				yield("", err)
				return
			}
			for _, e := range out.List.Entries {
				if !yield(e.Entry.ID, nil) {
					return
				}
			}
			if !out.List.Pagination.HasMoreItems || len(out.List.Entries) == 0 {
				return
			}
			skip += len(out.List.Entries)
		}
	}
}

func (c *HTTPClient) nodeURL(id, suffix string) string {
	return c.baseURL + corePath + "/nodes/" + url.PathEscape(id) + suffix
}

func (c *HTTPClient) download(ctx context.Context, endpoint string) (*entities.Content, error) {
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewExternalError("read content of "+endpoint, err)
	}
	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return &entities.Content{MimeType: mimeType, Data: data}, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewInternalError("encode request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	resp, err := c.do(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewExternalError(fmt.Sprintf("%s %s: malformed response", method, endpoint), err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, apperrors.NewInternalError("build request", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError(fmt.Sprintf("%s %s", method, endpoint), err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	statusErr := fmt.Errorf("repository returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	message := fmt.Sprintf("%s %s", method, endpoint)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, &apperrors.AppError{Type: apperrors.ErrorTypeNotFound, Message: message, Err: statusErr}
	case http.StatusConflict:
		return nil, apperrors.NewConflictError(message, statusErr)
	default:
		return nil, apperrors.NewExternalError(message, statusErr)
	}
}

func toDocument(e nodeEntry) *entities.Document {
	doc := &entities.Document{
		ID:         e.ID,
		Name:       e.Name,
		NodeType:   e.NodeType,
		Aspects:    e.AspectNames,
		Properties: e.Properties,
	}
	if doc.Properties == nil {
		doc.Properties = make(map[string]any)
	}
	if e.Content != nil {
		doc.MimeType = e.Content.MimeType
	}
	return doc
}
