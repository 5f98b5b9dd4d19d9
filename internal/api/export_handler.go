package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/export"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ExportHandler handles export endpoints
type ExportHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(services *service.Services, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		services: services,
		log:      log.With().Str("handler", "export").Logger(),
	}
}

// StreamExport handles GET /v1/exports?resource=...&format=...
// Streams the export directly to the response
func (h *ExportHandler) StreamExport(c *gin.Context) {
	ctx := c.Request.Context()

	resource := c.Query("resource")
	if !models.ValidResources[resource] {
		_ = c.Error(fmt.Errorf("resource must be one of: people, articles, comments: %w", apperr.ErrIllegalArgument))
		return
	}

	format := c.DefaultQuery("format", models.FormatNDJSON)
	if !models.ValidFormats[format] {
		_ = c.Error(fmt.Errorf("format must be one of: ndjson, json, csv, xlsx: %w", apperr.ErrIllegalArgument))
		return
	}

	h.log.Info().
		Str("resource", resource).
		Str("format", format).
		Msg("Starting streaming export")

	c.Header("Content-Type", export.ContentType(format))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(resource, format)))
	c.Status(http.StatusOK)

	if _, err := h.services.Export.Stream(ctx, c.Writer, resource, format); err != nil {
		// Can't return error JSON after streaming has started
		h.log.Error().Err(err).Str("resource", resource).Msg("Export failed")
	}
}

// CreateExport handles POST /v1/exports
// Queues an async export job; an Idempotency-Key header makes retries safe
func (h *ExportHandler) CreateExport(c *gin.Context) {
	var req struct {
		Resource string `json:"resource" binding:"required"`
		Format   string `json:"format"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("invalid request body: %v: %w", err, apperr.ErrIllegalArgument))
		return
	}
	if req.Format == "" {
		req.Format = models.FormatNDJSON
	}

	exportReq := &models.ExportRequest{
		Resource:       req.Resource,
		Format:         req.Format,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	}
	if p := currentPerson(c); p != nil {
		exportReq.RequestedBy = p.ID
	}

	job, existing, err := h.services.Job.CreateExportJob(c.Request.Context(), exportReq)
	if err != nil {
		_ = c.Error(err)
		return
	}

	status := http.StatusAccepted
	if existing {
		status = http.StatusOK
	}
	c.JSON(status, job)
}

// GetExportStatus handles GET /v1/exports/:job_id
func (h *ExportHandler) GetExportStatus(c *gin.Context) {
	job, err := h.services.Job.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Download handles GET /v1/exports/:job_id/download
func (h *ExportHandler) Download(c *gin.Context) {
	job, f, err := h.services.Job.OpenDownload(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		_ = c.Error(err)
		return
	}
	name := export.Filename(job.Resource, job.Format)
	c.DataFromReader(http.StatusOK, info.Size(), export.ContentType(job.Format), f, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(name)),
	})
}

// Workbook handles GET /v1/workbook?resource=...
// Writes one XLSX sheet per requested resource, or all of them
func (h *ExportHandler) Workbook(c *gin.Context) {
	resources := c.QueryArray("resource")
	for _, r := range resources {
		if !models.ValidResources[r] {
			_ = c.Error(fmt.Errorf("unknown resource %q: %w", r, apperr.ErrIllegalArgument))
			return
		}
	}

	name := fmt.Sprintf("alpha-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Type", export.ContentType(models.FormatXLSX))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Status(http.StatusOK)

	if err := h.services.Export.Workbook(c.Request.Context(), c.Writer, resources...); err != nil {
		h.log.Error().Err(err).Strs("resources", resources).Msg("Workbook export failed")
	}
}
