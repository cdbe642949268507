// Package genai is the HTTP client of the AI enrichment service.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/zatekoja/docenricher/internal/domain/entities"
	"github.com/zatekoja/docenricher/pkg/config"
	apperrors "github.com/zatekoja/docenricher/pkg/errors"
)

// ErrPartialResponse means the service answered without a field the
// action needs. Nothing is written for such an answer.
var ErrPartialResponse = errors.New("genai response is missing a required field")

const (
	endpointSummary            = "/summary"
	endpointClassify           = "/classify"
	endpointDescribe           = "/describe"
	endpointEntityLinkWikidata = "/entitylink-wikidata"
	endpointEntityLinkDBpedia  = "/entitylink-dbpedia"
)

// Client implements providers.EnrichmentProvider. Calls are single
// attempts: no retry and no cancellation beyond the configured timeouts.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new GenAI client.
func NewClient(cfg *config.GenAIConfig) (*Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.URL) == "" {
		return nil, apperrors.NewConfigurationError("genai url is required")
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext
	// Models can take minutes before the first byte comes back.
	transport.ResponseHeaderTimeout = cfg.RequestTimeout

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		limiter: limiter,
	}, nil
}

type summaryResponse struct {
	Summary *string `json:"summary"`
	Tags    any     `json:"tags"`
	Model   *string `json:"model"`
}

type termResponse struct {
	Term  *string `json:"term"`
	Model *string `json:"model"`
}

type descriptionResponse struct {
	Description *string `json:"description"`
	Model       *string `json:"model"`
}

type entityLinksResponse struct {
	Labels    json.RawMessage `json:"labels"`
	Links     json.RawMessage `json:"links"`
	TypeLists json.RawMessage `json:"type_lists"`
	Model     string          `json:"model"`
}

// Summarize returns a summary and comma-separated tags for a PDF.
func (c *Client) Summarize(ctx context.Context, content *entities.Content) (*entities.Summary, error) {
	var resp summaryResponse
	if err := c.post(ctx, endpointSummary, nil, "file", content, &resp); err != nil {
		return nil, err
	}
	if resp.Summary == nil || resp.Model == nil || resp.Tags == nil {
		return nil, partial(endpointSummary, "summary, tags and model")
	}
	tags, err := stringList(resp.Tags)
	if err != nil {
		return nil, partial(endpointSummary, "tags")
	}
	return &entities.Summary{
		Text:  strings.TrimSpace(*resp.Summary),
		Tags:  tags,
		Model: *resp.Model,
	}, nil
}

// Classify picks one of termList for a PDF.
func (c *Client) Classify(ctx context.Context, content *entities.Content, termList string) (*entities.Term, error) {
	query := url.Values{}
	query.Set("termList", `"`+termList+`"`)

	var resp termResponse
	if err := c.post(ctx, endpointClassify, query, "file", content, &resp); err != nil {
		return nil, err
	}
	if resp.Term == nil || resp.Model == nil {
		return nil, partial(endpointClassify, "term and model")
	}
	return &entities.Term{Term: strings.TrimSpace(*resp.Term), Model: *resp.Model}, nil
}

// Describe returns a description of a picture.
func (c *Client) Describe(ctx context.Context, picture *entities.Content) (*entities.Description, error) {
	var resp descriptionResponse
	if err := c.post(ctx, endpointDescribe, nil, "image", picture, &resp); err != nil {
		return nil, err
	}
	if resp.Description == nil || resp.Model == nil {
		return nil, partial(endpointDescribe, "description and model")
	}
	return &entities.Description{Text: strings.TrimSpace(*resp.Description), Model: *resp.Model}, nil
}

// LinkEntities returns the entities of a PDF linked against target.
func (c *Client) LinkEntities(ctx context.Context, content *entities.Content, target entities.KnowledgeBase) (*entities.EntityLinks, error) {
	endpoint := endpointEntityLinkWikidata
	if target == entities.KnowledgeBaseDBpedia {
		endpoint = endpointEntityLinkDBpedia
	}

	var resp entityLinksResponse
	if err := c.post(ctx, endpoint, nil, "file", content, &resp); err != nil {
		return nil, err
	}

	labels, errLabels := rawStringList(resp.Labels)
	links, errLinks := rawStringList(resp.Links)
	typeLists, errTypes := rawStringList(resp.TypeLists)
	if err := errors.Join(errLabels, errLinks, errTypes); err != nil {
		return nil, apperrors.NewExternalError(fmt.Sprintf("%s: labels, links and type_lists are required", endpoint), errors.Join(ErrPartialResponse, err))
	}

	result := &entities.EntityLinks{
		Labels:    labels,
		Links:     links,
		TypeLists: typeLists,
		Model:     resp.Model,
		Target:    target,
	}
	if err := result.Validate(); err != nil {
		return nil, apperrors.NewExternalError(endpoint, errors.Join(ErrPartialResponse, err))
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, endpoint string, query url.Values, part string, content *entities.Content, out any) error {
	if content == nil || len(content.Data) == 0 {
		return apperrors.NewValidationError(fmt.Sprintf("%s: content is required", endpoint))
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return apperrors.NewExternalError(endpoint+": rate limiter", err)
		}
	}

	body, contentType, err := multipartBody(part, content)
	if err != nil {
		return apperrors.NewInternalError(endpoint+": build request body", err)
	}

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return apperrors.NewInternalError(endpoint+": build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordMetric(ctx, endpoint, 0, time.Since(start), err)
		return apperrors.NewExternalError(endpoint+": request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		recordMetric(ctx, endpoint, resp.StatusCode, time.Since(start), err)
		return apperrors.NewExternalError(endpoint+": request failed", err)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		recordMetric(ctx, endpoint, resp.StatusCode, time.Since(start), err)
		return apperrors.NewExternalError(endpoint+": malformed response", err)
	}

	recordMetric(ctx, endpoint, resp.StatusCode, time.Since(start), nil)
	return nil
}

func multipartBody(part string, content *entities.Content) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	name := content.Name
	if name == "" {
		name = part
	}
	mimeType := content.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, part, escapeQuotes(name)))
	header.Set("Content-Type", mimeType)
	w, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := w.Write(content.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func partial(endpoint, fields string) error {
	return apperrors.NewExternalError(fmt.Sprintf("%s: %s are required", endpoint, fields), ErrPartialResponse)
}

// stringList accepts "a, b", ["a", "b"] or a JSON-encoded list inside a string.
func stringList(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") {
			var list []string
			if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
				return list, nil
			}
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected list value %T", value)
	}
}

func rawStringList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrPartialResponse
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	if s, ok := value.(string); ok {
		var list []any
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			return nil, fmt.Errorf("list encoded as string: %w", err)
		}
		value = list
	}
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected list value %T", value)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, fmt.Sprint(item))
	}
	return out, nil
}

type genaiMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
}

var (
	metricsOnce sync.Once
	metrics     *genaiMetrics
)

func ensureMetrics() *genaiMetrics {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/zatekoja/docenricher/genai")

		requestCount, err := meter.Int64Counter(
			"ai.genai.request.count",
			metric.WithDescription("Number of GenAI requests"),
		)
		if err != nil {
			return
		}
		requestDuration, err := meter.Float64Histogram(
			"ai.genai.request.duration",
			metric.WithDescription("GenAI request duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		requestErrors, err := meter.Int64Counter(
			"ai.genai.request.errors",
			metric.WithDescription("Number of GenAI request errors"),
		)
		if err != nil {
			return
		}
		metrics = &genaiMetrics{
			requestCount:    requestCount,
			requestDuration: requestDuration,
			requestErrors:   requestErrors,
		}
	})
	return metrics
}

func recordMetric(ctx context.Context, endpoint string, statusCode int, duration time.Duration, err error) {
	m := ensureMetrics()
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.endpoint", endpoint),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	m.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
