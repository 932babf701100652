package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
)

// JobRunner starts a job; the orchestrator satisfies this
type JobRunner interface {
	Run(ctx context.Context, jobID string) error
}

// JobHandler handles job API requests
type JobHandler struct {
	jobStorage    interfaces.JobStorage
	resultStorage interfaces.ResultStorage
	runner        JobRunner
	validate      *validator.Validate
	logger        arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobStorage interfaces.JobStorage, resultStorage interfaces.ResultStorage, runner JobRunner, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobStorage:    jobStorage,
		resultStorage: resultStorage,
		runner:        runner,
		validate:      validator.New(),
		logger:        logger,
	}
}

// createJobRequest is the POST /api/jobs body
type createJobRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Type        string           `json:"type" validate:"required,oneof=url pdf excel word csv other"`
	Input       string           `json:"input" validate:"required"`
	Strategy    string           `json:"strategy" validate:"omitempty,oneof=auto playwright http"`
	SiteProfile string           `json:"site_profile"`
	OrganizerID string           `json:"organizer_id"`
	Config      models.JobConfig `json:"config"`

	// FileData carries the uploaded payload for file jobs in any of the
	// accepted buffer encodings
	FileData string `json:"file_data,omitempty"`
}

// CreateJobHandler creates a job and starts a worker for auto/playwright
// strategies.
// POST /api/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobType := models.JobType(req.Type)
	if jobType == models.JobTypeURL {
		parsed, err := url.Parse(req.Input)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			WriteError(w, http.StatusBadRequest, "input must be a valid http(s) URL")
			return
		}
	}

	job := &models.Job{
		ID:          uuid.NewString(),
		OrganizerID: req.OrganizerID,
		Name:        req.Name,
		Type:        jobType,
		Input:       req.Input,
		Strategy:    strategyOrDefault(req.Strategy),
		SiteProfile: req.SiteProfile,
		Config:      req.Config,
		Status:      models.JobStatusPending,
	}

	if jobType.IsFile() {
		if req.FileData == "" {
			WriteError(w, http.StatusBadRequest, "file jobs require file_data")
			return
		}
		data, err := common.NormalizeBuffer(req.FileData)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "unreadable file_data: "+err.Error())
			return
		}
		job.FileData = data
	}

	if err := h.jobStorage.SaveJob(r.Context(), job); err != nil {
		h.logger.Error().Err(err).Msg("Failed to create job")
		WriteError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	if job.Strategy == "auto" || job.Strategy == "playwright" {
		h.startWorker(job.ID)
	}

	h.logger.Info().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("Job created")
	WriteJSON(w, http.StatusCreated, job)
}

func strategyOrDefault(s string) string {
	if s == "" {
		return "auto"
	}
	return s
}

// startWorker runs the job in the background with its own lifetime; the
// orchestrator enforces the wall-clock timeout internally.
func (h *JobHandler) startWorker(jobID string) {
	go func() {
		if err := h.runner.Run(context.Background(), jobID); err != nil {
			h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Background job run ended with error")
		}
	}()
}

// ListJobsHandler returns a page of jobs plus aggregate stats.
// GET /api/jobs?page=1&limit=50&status=&search=&organizer_id=
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	opts := &interfaces.JobListOptions{
		OrganizerID: r.URL.Query().Get("organizer_id"),
		Status:      r.URL.Query().Get("status"),
		Search:      r.URL.Query().Get("search"),
		Page:        QueryInt(r, "page", 1),
		Limit:       QueryInt(r, "limit", 50),
	}

	jobs, total, err := h.jobStorage.ListJobs(ctx, opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	stats, err := h.jobStorage.GetJobStats(ctx, opts.OrganizerID)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to load job stats")
		stats = &interfaces.JobStats{}
	}

	if jobs == nil {
		jobs = []*models.Job{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"total": total,
		"page":  opts.Page,
		"limit": opts.Limit,
		"stats": stats,
	})
}

// jobFromPath resolves the {id} segment, enforcing UUID shape (400) and
// existence (404). Returns nil after writing the error response.
func (h *JobHandler) jobFromPath(w http.ResponseWriter, r *http.Request, jobID string) *models.Job {
	if _, err := uuid.Parse(jobID); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid job id")
		return nil
	}

	job, err := h.jobStorage.GetJob(r.Context(), jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to load job")
		WriteError(w, http.StatusInternalServerError, "failed to load job")
		return nil
	}
	if job == nil {
		WriteError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}

// GetJobHandler returns one job.
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job := h.jobFromPath(w, r, jobID)
	if job == nil {
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// updateJobRequest restricts PATCH to the mutable fields
type updateJobRequest struct {
	Status         *string  `json:"status"`
	Progress       *float64 `json:"progress"`
	ProcessedPages *int     `json:"processed_pages"`
	TotalPages     *int     `json:"total_pages"`
	Notes          *string  `json:"notes"`
}

// UpdateJobHandler applies a partial update.
// PATCH /api/jobs/{id}
func (h *JobHandler) UpdateJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job := h.jobFromPath(w, r, jobID)
	if job == nil {
		return
	}

	var req updateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Status != nil {
		status := models.JobStatus(*req.Status)
		switch status {
		case models.JobStatusPending, models.JobStatusQueued, models.JobStatusRunning,
			models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusBlocked:
			job.Status = status
		default:
			WriteError(w, http.StatusBadRequest, "invalid status")
			return
		}
	}
	if req.Progress != nil {
		job.Progress = *req.Progress
	}
	if req.ProcessedPages != nil {
		job.ProcessedPages = *req.ProcessedPages
	}
	if req.TotalPages != nil {
		job.TotalPages = *req.TotalPages
	}
	if req.Notes != nil {
		job.SetStat("notes", *req.Notes)
	}

	if err := h.jobStorage.SaveJob(r.Context(), job); err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to update job")
		WriteError(w, http.StatusInternalServerError, "failed to update job")
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// RunJobHandler re-runs an existing job.
// POST /api/jobs/{id}/run
func (h *JobHandler) RunJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job := h.jobFromPath(w, r, jobID)
	if job == nil {
		return
	}
	if job.Status == models.JobStatusRunning {
		WriteError(w, http.StatusConflict, "job is already running")
		return
	}

	// Reset run state so the orchestrator starts clean
	job.Status = models.JobStatusPending
	job.Error = ""
	job.Progress = 0
	job.ProcessedPages = 0
	job.StartedAt = time.Time{}
	job.CompletedAt = time.Time{}
	if err := h.jobStorage.SaveJob(r.Context(), job); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to reset job")
		return
	}

	h.startWorker(job.ID)
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "started",
		"job_id": job.ID,
	})
}

// RetryJobHandler creates and starts a child job with the same config.
// POST /api/jobs/{id}/retry
func (h *JobHandler) RetryJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	parent := h.jobFromPath(w, r, jobID)
	if parent == nil {
		return
	}

	child := &models.Job{
		ID:          uuid.NewString(),
		OrganizerID: parent.OrganizerID,
		Name:        parent.Name + " (Retry)",
		Type:        parent.Type,
		Input:       parent.Input,
		Strategy:    parent.Strategy,
		SiteProfile: parent.SiteProfile,
		Config:      parent.Config,
		Status:      models.JobStatusPending,
		ParentJobID: parent.ID,
	}
	if err := h.jobStorage.SaveJob(r.Context(), child); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to create retry job")
		return
	}

	parent.RetryJobID = child.ID
	if err := h.jobStorage.SaveJob(r.Context(), parent); err != nil {
		h.logger.Warn().Err(err).Str("job_id", parent.ID).Msg("Failed to link retry job")
	}

	h.startWorker(child.ID)
	h.logger.Info().Str("parent", parent.ID).Str("child", child.ID).Msg("Retry job created")
	WriteJSON(w, http.StatusCreated, child)
}

// DeleteJobHandler removes a job and its mining results.
// DELETE /api/jobs/{id}
func (h *JobHandler) DeleteJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job := h.jobFromPath(w, r, jobID)
	if job == nil {
		return
	}
	if job.Status == models.JobStatusRunning {
		WriteError(w, http.StatusConflict, "cannot delete a running job")
		return
	}

	ctx := r.Context()
	if err := h.resultStorage.DeleteResultsForJob(ctx, jobID); err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to delete job results")
		WriteError(w, http.StatusInternalServerError, "failed to delete job results")
		return
	}
	if err := h.jobStorage.DeleteJob(ctx, jobID); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to delete job")
		return
	}

	WriteSuccess(w, "job deleted")
}
