package api

import (
	"net/http"
	"strings"

	"github.com/alpha-framework/alpha/internal/pagination"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/alpha-framework/alpha/internal/service"
	"github.com/alpha-framework/alpha/internal/view"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const defaultLogLines = 200

var logLevels = []string{"debug", "info", "warn", "error"}

// AdminHandler serves the administration pages
type AdminHandler struct {
	services *service.Services
	pages    *pages
	log      zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(services *service.Services, p *pages, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		services: services,
		pages:    p,
		log:      log.With().Str("handler", "admin").Logger(),
	}
}

// Logs handles GET /admin/logs?level=&n=
func (h *AdminHandler) Logs(c *gin.Context) {
	level := c.Query("level")
	n := queryInt(c, "n", defaultLogLines)

	entries, err := h.services.Log.Tail(c.Request.Context(), n, level)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.pages.render(c, http.StatusOK, "logs", "Logs", view.Logs{
		Level:   level,
		Levels:  logLevels,
		Limit:   n,
		Entries: entries,
	})
}

// LogsJSON handles GET /v1/logs?level=&n=
func (h *AdminHandler) LogsJSON(c *gin.Context) {
	entries, err := h.services.Log.Tail(c.Request.Context(), queryInt(c, "n", defaultLogLines), c.Query("level"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// ClearCache handles POST /admin/cache/clear
func (h *AdminHandler) ClearCache(c *gin.Context) {
	n, err := h.services.Maintenance.ClearCache()
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.log.Info().Int("files", n).Str("person_id", currentPerson(c).ID).Msg("Cache cleared by admin")
	flash(c, "Cache cleared.")
	seeOther(c, localPath(c.Request.Referer(), "/"))
}

// RunMaintenance handles POST /v1/maintenance/run
func (h *AdminHandler) RunMaintenance(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Maintenance.RunOnce(c.Request.Context()))
}

// ListRecords handles GET /admin/records/:type?start=N
func (h *AdminHandler) ListRecords(c *gin.Context) {
	ctx := c.Request.Context()
	rt, err := h.services.Records.Lookup(c.Param("type"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	total, err := rt.Count(ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}
	pager := pagination.New(int(total), h.pages.cfg.Site.PageSize, queryInt(c, pagination.StartParam, 0))
	list, err := rt.List(ctx, repository.Page{Offset: pager.Start, Limit: pager.Limit()})
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.pages.render(c, http.StatusOK, h.pages.views.Select(rt.Name(), "list"), rt.Name(), view.List{
		Type:    rt.Name(),
		Heading: rt.Name(),
		Columns: rt.Columns(),
		Records: list.Records,
		Rows:    list.Rows,
		IDs:     list.IDs,
		Pager:   pager,
		BaseURL: "/admin/records/" + strings.ToLower(rt.Name()),
	})
}

// ShowRecord handles GET /admin/records/:type/:id
func (h *AdminHandler) ShowRecord(c *gin.Context) {
	rt, err := h.services.Records.Lookup(c.Param("type"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	id := c.Param("id")
	rec, err := rt.Load(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	pairs := rt.Fields(rec)
	fields := make([]view.Field, 0, len(pairs))
	for _, f := range pairs {
		fields = append(fields, view.Field{Name: f[0], Value: f[1]})
	}
	h.pages.render(c, http.StatusOK, h.pages.views.Select(rt.Name(), "detail"), rt.Name()+" "+id, view.Detail{
		Type:   rt.Name(),
		ID:     id,
		Record: rec,
		Fields: fields,
	})
}
