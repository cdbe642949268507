package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/docenricher/internal/domain/entities"
)

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Start(ctx context.Context, run *entities.BatchRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockRunRepository) Finish(ctx context.Context, run *entities.BatchRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockRunRepository) ListRecent(ctx context.Context, limit int) ([]*entities.BatchRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.BatchRun), args.Error(1)
}

func TestHealthHandler_Live(t *testing.T) {
	h := NewHealthHandler(nil, 0)
	rec := httptest.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		wantBody   ReadyResponse
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   ReadyResponse{Status: "ok", Checks: map[string]string{}},
		},
		{
			name: "all healthy",
			checks: map[string]Check{
				"redis":    func(context.Context) error { return nil },
				"alfresco": func(context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			wantBody:   ReadyResponse{Status: "ok", Checks: map[string]string{"redis": "ok", "alfresco": "ok"}},
		},
		{
			name: "one failing",
			checks: map[string]Check{
				"redis":    func(context.Context) error { return errors.New("connection refused") },
				"alfresco": func(context.Context) error { return nil },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   ReadyResponse{Status: "unavailable", Checks: map[string]string{"redis": "connection refused", "alfresco": "ok"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks, time.Second)
			rec := httptest.NewRecorder()
			h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ReadyResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestHealthHandler_ReadyBoundsSlowChecks(t *testing.T) {
	h := NewHealthHandler(map[string]Check{
		"slow": func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "deadline exceeded")
}

func TestRunsHandler_ListRuns(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("default limit", func(t *testing.T) {
		repo := new(MockRunRepository)
		repo.On("ListRecent", mock.Anything, 20).Return([]*entities.BatchRun{
			{ID: "run-1", Action: entities.ActionSummary, Status: entities.BatchRunSucceeded, StartedAt: started},
		}, nil)

		rec := httptest.NewRecorder()
		NewRunsHandler(repo).ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var body RunsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 1, body.Count)
		assert.Equal(t, "run-1", body.Runs[0].ID)
		repo.AssertExpectations(t)
	})

	t.Run("limit is capped", func(t *testing.T) {
		repo := new(MockRunRepository)
		repo.On("ListRecent", mock.Anything, maxRunsLimit).Return(nil, nil)

		rec := httptest.NewRecorder()
		NewRunsHandler(repo).ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=5000", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"runs":[],"count":0}`, rec.Body.String())
		repo.AssertExpectations(t)
	})

	t.Run("bad limit", func(t *testing.T) {
		repo := new(MockRunRepository)
		rec := httptest.NewRecorder()
		NewRunsHandler(repo).ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=-1", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		repo.AssertNotCalled(t, "ListRecent", mock.Anything, mock.Anything)
	})

	t.Run("ledger error", func(t *testing.T) {
		repo := new(MockRunRepository)
		repo.On("ListRecent", mock.Anything, 20).Return(nil, errors.New("connection reset"))

		rec := httptest.NewRecorder()
		NewRunsHandler(repo).ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection reset")
	})
}
