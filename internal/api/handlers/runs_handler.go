package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/docenricher/internal/domain/entities"
	"github.com/zatekoja/docenricher/internal/domain/repositories"
)

const maxRunsLimit = 200

// RunsHandler exposes the batch run ledger.
type RunsHandler struct {
	runs repositories.RunRepository
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(runs repositories.RunRepository) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// RunsResponse is the body of GET /api/runs.
type RunsResponse struct {
	Runs  []*entities.BatchRun `json:"runs"`
	Count int                  `json:"count"`
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxRunsLimit)
	}

	runs, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list batch runs")
		respondWithError(w, http.StatusInternalServerError, "failed to list batch runs")
		return
	}
	if runs == nil {
		runs = []*entities.BatchRun{}
	}

	respondWithJSON(w, http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}
