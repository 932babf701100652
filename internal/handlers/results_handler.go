package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
)

// ResultsHandler serves mining results
type ResultsHandler struct {
	resultStorage interfaces.ResultStorage
	logger        arbor.ILogger
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(resultStorage interfaces.ResultStorage, logger arbor.ILogger) *ResultsHandler {
	return &ResultsHandler{resultStorage: resultStorage, logger: logger}
}

// ListResultsHandler returns a page of a job's results, highest
// confidence first.
// GET /api/jobs/{id}/results?limit=100&offset=0
func (h *ResultsHandler) ListResultsHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if _, err := uuid.Parse(jobID); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	ctx := r.Context()
	limit := QueryInt(r, "limit", 100)
	offset := QueryInt(r, "offset", 0)

	results, err := h.resultStorage.ListResults(ctx, jobID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to list results")
		WriteError(w, http.StatusInternalServerError, "failed to list results")
		return
	}
	total, err := h.resultStorage.CountResults(ctx, jobID)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to count results")
		total = len(results)
	}

	if results == nil {
		results = []*models.MiningResult{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}
