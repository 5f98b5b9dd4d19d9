package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/config"
	"github.com/alpha-framework/alpha/internal/pagination"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/alpha-framework/alpha/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	maxRecordBody = 1 << 20
	maxPageSize   = 500
)

// RecordHandler is the generic record controller of the JSON API, plus the
// record operations that need more than CRUD.
type RecordHandler struct {
	services *service.Services
	pageSize int
	log      zerolog.Logger
}

// NewRecordHandler creates a new RecordHandler
func NewRecordHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *RecordHandler {
	return &RecordHandler{
		services: services,
		pageSize: cfg.Site.PageSize,
		log:      log.With().Str("handler", "record").Logger(),
	}
}

// Types handles GET /v1/records
func (h *RecordHandler) Types(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"types": h.services.Records.Names()})
}

// List handles GET /v1/records/:type?start=&limit=
func (h *RecordHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	rt, ok := h.lookup(c)
	if !ok {
		return
	}

	total, err := rt.Count(ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}
	limit := queryInt(c, "limit", h.pageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	pager := pagination.New(int(total), limit, queryInt(c, pagination.StartParam, 0))
	list, err := rt.List(ctx, repository.Page{Offset: pager.Start, Limit: pager.Limit()})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"type":    rt.Name(),
		"total":   total,
		"start":   pager.Start,
		"limit":   pager.Limit(),
		"records": list.Records,
	})
}

// Get handles GET /v1/records/:type/:id
func (h *RecordHandler) Get(c *gin.Context) {
	rt, ok := h.lookup(c)
	if !ok {
		return
	}
	rec, err := rt.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Create handles POST /v1/records/:type
func (h *RecordHandler) Create(c *gin.Context) {
	rt, ok := h.lookup(c)
	if !ok {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}
	rec, err := rt.Create(c.Request.Context(), body)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.log.Info().Str("type", rt.Name()).Msg("Record created")
	c.JSON(http.StatusCreated, rec)
}

// Update handles PUT /v1/records/:type/:id. The body must carry the version
// it was read at.
func (h *RecordHandler) Update(c *gin.Context) {
	rt, ok := h.lookup(c)
	if !ok {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}
	rec, err := rt.Update(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Delete handles DELETE /v1/records/:type/:id?version=N
func (h *RecordHandler) Delete(c *gin.Context) {
	rt, ok := h.lookup(c)
	if !ok {
		return
	}
	version, err := strconv.Atoi(c.Query("version"))
	if err != nil {
		_ = c.Error(fmt.Errorf("version query parameter: %w", apperr.ErrIllegalArgument))
		return
	}
	if err := rt.Delete(c.Request.Context(), c.Param("id"), version); err != nil {
		_ = c.Error(err)
		return
	}
	h.log.Info().Str("type", rt.Name()).Str("id", c.Param("id")).Msg("Record deleted")
	c.Status(http.StatusNoContent)
}

// GetDEnum handles GET /v1/denums/:name
func (h *RecordHandler) GetDEnum(c *gin.Context) {
	denum, err := h.services.DEnum.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, denum)
}

// ReplaceDEnum handles PUT /v1/denums/:name
func (h *RecordHandler) ReplaceDEnum(c *gin.Context) {
	var req struct {
		Version int      `json:"version" binding:"required"`
		Values  []string `json:"values"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("denum: %v: %w", err, apperr.ErrIllegalArgument))
		return
	}
	denum, err := h.services.DEnum.Replace(c.Request.Context(), c.Param("name"), req.Version, req.Values)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, denum)
}

// NextSequence handles POST /v1/sequences/:prefix/next
func (h *RecordHandler) NextSequence(c *gin.Context) {
	seq, err := h.services.Sequence.Next(c.Request.Context(), c.Param("prefix"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"prefix": seq.Prefix,
		"value":  seq.Value,
		"id":     seq.String(),
	})
}

// Publish handles POST /v1/articles/:slug/publish
func (h *RecordHandler) Publish(c *gin.Context) {
	var req struct {
		Version   int  `json:"version" binding:"required"`
		Published bool `json:"published"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("publish: %v: %w", err, apperr.ErrIllegalArgument))
		return
	}
	article, err := h.services.Article.SetPublished(c.Request.Context(), c.Param("slug"), req.Version, req.Published)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, article)
}

// ChangeRights handles PUT /v1/people/:id/rights
func (h *RecordHandler) ChangeRights(c *gin.Context) {
	var req struct {
		Grant  []string `json:"grant"`
		Revoke []string `json:"revoke"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("rights: %v: %w", err, apperr.ErrIllegalArgument))
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	person, err := h.services.Person.Get(ctx, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if len(req.Grant) > 0 {
		if person, err = h.services.Person.AssignRights(ctx, id, req.Grant...); err != nil {
			_ = c.Error(err)
			return
		}
	}
	if len(req.Revoke) > 0 {
		if person, err = h.services.Person.RevokeRights(ctx, id, req.Revoke...); err != nil {
			_ = c.Error(err)
			return
		}
	}
	c.JSON(http.StatusOK, person)
}

// DisablePerson handles POST /v1/people/:id/disable
func (h *RecordHandler) DisablePerson(c *gin.Context) {
	var req struct {
		Version int `json:"version" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("disable: %v: %w", err, apperr.ErrIllegalArgument))
		return
	}
	person, err := h.services.Person.Disable(c.Request.Context(), c.Param("id"), req.Version)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, person)
}

func (h *RecordHandler) lookup(c *gin.Context) (service.RecordType, bool) {
	rt, err := h.services.Records.Lookup(c.Param("type"))
	if err != nil {
		_ = c.Error(err)
		return nil, false
	}
	return rt, true
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRecordBody))
	if err != nil {
		_ = c.Error(fmt.Errorf("read body: %v: %w", err, apperr.ErrIllegalArgument))
		return nil, false
	}
	return body, true
}
