// Package handlers implements the HTTP surface of the service
package handlers

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/appforge/forge/internal/db/models"
	"github.com/appforge/forge/internal/jobs"
	"github.com/appforge/forge/internal/orchestrator"
	"github.com/appforge/forge/internal/types"
)

// GenerateRequest is the body of POST /api/generate
type GenerateRequest struct {
	Prompt      string   `json:"prompt"`
	Threshold   int      `json:"threshold"`
	Attachments []string `json:"attachments"`
}

// GenerateResponse is the body returned by POST /api/generate
type GenerateResponse struct {
	JobID string `json:"job_id"`
}

// DownloadDir resolves a packaged artifact path for the download route
type DownloadDir interface {
	Path(jobID string) string
}

// JobHandler handles HTTP requests for job operations
type JobHandler struct {
	orch      *orchestrator.Orchestrator
	store     jobs.Store
	downloads DownloadDir
}

// NewJobHandler creates a new job handler instance
func NewJobHandler(orch *orchestrator.Orchestrator, store jobs.Store, downloads DownloadDir) *JobHandler {
	return &JobHandler{orch: orch, store: store, downloads: downloads}
}

// Generate starts a new generation job and returns its id immediately; the
// pipeline runs in the background.
func (h *JobHandler) Generate(c *fiber.Ctx) error {
	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errInvalidInput(err.Error()))
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errInvalidInput("prompt is required"))
	}

	jobID, err := h.orch.StartJob(c.Context(), req.Prompt, req.Threshold, req.Attachments, OwnerID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errServer(err.Error()))
	}
	return c.Status(fiber.StatusCreated).JSON(GenerateResponse{JobID: jobID})
}

// GetStatus returns the authoritative status snapshot for one job
func (h *JobHandler) GetStatus(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errInvalidInput("invalid job id"))
	}

	job, err := h.store.Get(c.Context(), jobID)
	if errors.Is(err, jobs.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(errNotFound("job not found"))
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errServer(err.Error()))
	}
	return c.JSON(job.Snapshot())
}

// ListJobs returns job summaries ordered by creation time descending,
// filtered to the calling identity when one is present
func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	opts := &models.ListOptions{
		Limit:   c.QueryInt("limit", models.DefaultLimit),
		Offset:  c.QueryInt("offset", 0),
		Query:   c.Query("q"),
		OwnerID: OwnerID(c),
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status, err := models.ParseJobStatus(statusStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errInvalidInput("invalid job status"))
		}
		opts.Status = &status
	}

	list, err := h.store.List(c.Context(), opts)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errServer(err.Error()))
	}
	summaries := make([]types.JobSummary, len(list))
	for i := range list {
		summaries[i] = list[i].Summary()
	}
	return c.JSON(summaries)
}

// Download serves a packaged artifact archive
func (h *JobHandler) Download(c *fiber.Ctx) error {
	file := c.Params("file")
	jobID := strings.TrimSuffix(file, ".zip")
	if jobID == "" || jobID == file || filepath.Base(file) != file {
		return c.Status(fiber.StatusBadRequest).JSON(errInvalidInput("invalid download name"))
	}
	return c.SendFile(h.downloads.Path(jobID))
}
