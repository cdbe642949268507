package genai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/docenricher/internal/domain/entities"
	"github.com/zatekoja/docenricher/pkg/config"
	apperrors "github.com/zatekoja/docenricher/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&config.GenAIConfig{
		URL:            server.URL + "/",
		ConnectTimeout: time.Second,
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func pdf() *entities.Content {
	return &entities.Content{Name: "report.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.7")}
}

func TestSummarize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/summary", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "report.pdf", header.Filename)
		assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))
		assert.Equal(t, "%PDF-1.7", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"summary":"  Annual results. ","tags":"finance, results,report","model":"llama3"}`)
	})

	summary, err := client.Summarize(context.Background(), pdf())
	require.NoError(t, err)
	assert.Equal(t, "Annual results.", summary.Text)
	assert.Equal(t, []string{"finance", "results", "report"}, summary.Tags)
	assert.Equal(t, "llama3", summary.Model)
}

func TestClassify_QuotesTermList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/classify", r.URL.Path)
		assert.Equal(t, `"Finance, Legal"`, r.URL.Query().Get("termList"))
		_, _ = io.WriteString(w, `{"term":"Legal ","model":"llama3"}`)
	})

	term, err := client.Classify(context.Background(), pdf(), "Finance, Legal")
	require.NoError(t, err)
	assert.Equal(t, &entities.Term{Term: "Legal", Model: "llama3"}, term)
}

func TestDescribe_UsesImagePart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/describe", r.URL.Path)
		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		assert.Equal(t, "cat.png", header.Filename)
		_, _ = io.WriteString(w, `{"description":"A cat","model":"llava"}`)
	})

	description, err := client.Describe(context.Background(), &entities.Content{Name: "cat.png", MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}})
	require.NoError(t, err)
	assert.Equal(t, "A cat", description.Text)
	assert.Equal(t, "llava", description.Model)
}

func TestLinkEntities(t *testing.T) {
	tests := []struct {
		name     string
		target   entities.KnowledgeBase
		path     string
		response string
	}{
		{"wikidata lists", entities.KnowledgeBaseWikidata, "/entitylink-wikidata", `{"labels":["Paris"],"links":["Q90"],"type_lists":["city"],"model":"m1"}`},
		{"dbpedia lists encoded as strings", entities.KnowledgeBaseDBpedia, "/entitylink-dbpedia", `{"labels":"[\"Paris\"]","links":"[\"Q90\"]","type_lists":"[\"city\"]","model":"m1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.path, r.URL.Path)
				_, _ = io.WriteString(w, tt.response)
			})

			links, err := client.LinkEntities(context.Background(), pdf(), tt.target)
			require.NoError(t, err)
			assert.Equal(t, []string{"Paris"}, links.Labels)
			assert.Equal(t, []string{"Q90"}, links.Links)
			assert.Equal(t, []string{"city"}, links.TypeLists)
			assert.Equal(t, "m1", links.Model)
			assert.Equal(t, tt.target, links.Target)
		})
	}
}

func TestPartialResponses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/summary":
			_, _ = io.WriteString(w, `{"summary":"x","model":"m"}`)
		case "/classify":
			_, _ = io.WriteString(w, `{"model":"m"}`)
		case "/entitylink-wikidata":
			_, _ = io.WriteString(w, `{"labels":["Paris","Rome"],"links":["Q90"],"type_lists":["city"]}`)
		}
	})

	_, err := client.Summarize(context.Background(), pdf())
	assert.True(t, errors.Is(err, ErrPartialResponse))

	_, err = client.Classify(context.Background(), pdf(), "a, b")
	assert.True(t, errors.Is(err, ErrPartialResponse))

	_, err = client.LinkEntities(context.Background(), pdf(), entities.KnowledgeBaseWikidata)
	assert.True(t, errors.Is(err, ErrPartialResponse))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestTransportFailures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/summary" {
			http.Error(w, "model overloaded", http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `not json`)
	})

	_, err := client.Summarize(context.Background(), pdf())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	assert.Contains(t, err.Error(), "status 502")

	_, err = client.Describe(context.Background(), pdf())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed response")
}

func TestRequiresContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.Summarize(context.Background(), &entities.Content{Name: "empty.pdf"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(&config.GenAIConfig{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}

func TestRateLimiterHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"term":"a","model":"m"}`)
	}))
	defer server.Close()

	client, err := NewClient(&config.GenAIConfig{URL: server.URL, RequestTimeout: time.Second, RateLimitRPS: 0.001, RateLimitBurst: 1})
	require.NoError(t, err)

	_, err = client.Classify(context.Background(), pdf(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Classify(ctx, pdf(), "a")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}
