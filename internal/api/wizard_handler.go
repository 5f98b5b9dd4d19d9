package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/service"
	"github.com/alpha-framework/alpha/internal/unitofwork"
	"github.com/alpha-framework/alpha/internal/validation"
	"github.com/alpha-framework/alpha/internal/view"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	stepDetails = "details"
	stepTags    = "tags"
)

// WizardHandler walks a visitor through creating an article in several steps.
// The draft lives in the session until the last step commits it.
type WizardHandler struct {
	services *service.Services
	unit     *unitofwork.Unit
	pages    *pages
	log      zerolog.Logger
}

// NewWizardHandler creates a new WizardHandler
func NewWizardHandler(services *service.Services, unit *unitofwork.Unit, p *pages, log zerolog.Logger) *WizardHandler {
	return &WizardHandler{
		services: services,
		unit:     unit,
		pages:    p,
		log:      log.With().Str("handler", "wizard").Str("unit", unit.Name).Logger(),
	}
}

// Begin handles GET /uow/article-wizard
func (h *WizardHandler) Begin(c *gin.Context) {
	flow, err := h.unit.Bind(currentSession(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	seeOther(c, h.stepURL(flow.Start()))
}

// Step handles GET /uow/article-wizard/:step
func (h *WizardHandler) Step(c *gin.Context) {
	flow, err := h.unit.Bind(currentSession(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !flow.Active() {
		seeOther(c, h.stepURL(flow.Start()))
		return
	}

	err = flow.Goto(c.Param("step"))
	if errors.Is(err, apperr.ErrIllegalArgument) {
		// Steps can't be skipped
		seeOther(c, h.stepURL(flow.Current()))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	in, err := h.draft(flow)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.render(c, http.StatusOK, flow, in, nil)
}

// Submit handles POST /uow/article-wizard/:step
func (h *WizardHandler) Submit(c *gin.Context) {
	flow, err := h.unit.Bind(currentSession(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	nav := c.PostForm("nav")
	if nav == "abort" {
		flow.Abort()
		flash(c, "Article discarded.")
		seeOther(c, "/")
		return
	}
	if !flow.Active() {
		seeOther(c, h.stepURL(flow.Start()))
		return
	}
	if err := flow.Goto(c.Param("step")); err != nil {
		_ = c.Error(err)
		return
	}

	in, err := h.draft(flow)
	if err != nil {
		_ = c.Error(err)
		return
	}
	mergeStep(c, flow.Current(), in)
	if err := flow.StageNew(models.Article{}.RecordType(), in); err != nil {
		_ = c.Error(err)
		return
	}

	switch nav {
	case "previous":
		step, err := flow.Previous()
		if err != nil {
			_ = c.Error(err)
			return
		}
		seeOther(c, h.stepURL(step))

	case "next":
		if flow.Current() == stepDetails && strings.TrimSpace(in.Title) == "" {
			h.render(c, http.StatusUnprocessableEntity, flow, in,
				[]apperr.FieldError{{Field: "title", Message: "title is required"}})
			return
		}
		step, err := flow.Next()
		if err != nil {
			_ = c.Error(err)
			return
		}
		seeOther(c, h.stepURL(step))

	case "commit":
		if !flow.IsLast() {
			_ = c.Error(fmt.Errorf("commit before step %s: %w", flow.Last(), apperr.ErrIllegalArgument))
			return
		}
		h.commit(c, flow)

	default:
		_ = c.Error(fmt.Errorf("unknown navigation %q: %w", nav, apperr.ErrIllegalArgument))
	}
}

func (h *WizardHandler) commit(c *gin.Context, flow *unitofwork.Flow) {
	person := currentPerson(c)
	var article *models.Article

	err := flow.Commit(c.Request.Context(), h.services.Tx, func(ctx context.Context, newRecs, _ []unitofwork.Staged) error {
		for _, s := range newRecs {
			if s.Type != (models.Article{}).RecordType() {
				continue
			}
			in, err := unitofwork.Decode[models.ArticleInput](s)
			if err != nil {
				return err
			}
			if article, err = h.services.Article.Create(ctx, person, in); err != nil {
				return err
			}
		}
		return nil
	})
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		in, derr := h.draft(flow)
		if derr != nil {
			_ = c.Error(derr)
			return
		}
		h.render(c, http.StatusUnprocessableEntity, flow, in, verr.Fields)
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	if article == nil {
		_ = c.Error(fmt.Errorf("nothing staged: %w", apperr.ErrIllegalArgument))
		return
	}

	h.log.Info().Str("article_id", article.ID).Str("person_id", person.ID).Msg("Wizard committed")
	flash(c, "Article created.")
	seeOther(c, "/articles/"+article.Slug)
}

// draft returns the staged article input, or an empty one.
func (h *WizardHandler) draft(flow *unitofwork.Flow) (*models.ArticleInput, error) {
	s, ok := flow.Staged(models.Article{}.RecordType(), "")
	if !ok {
		return &models.ArticleInput{}, nil
	}
	return unitofwork.Decode[models.ArticleInput](s)
}

func (h *WizardHandler) render(c *gin.Context, status int, flow *unitofwork.Flow, in *models.ArticleInput, errs []apperr.FieldError) {
	sections, err := h.services.DEnum.Sections(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.pages.render(c, status, "uow/step", "New article", view.Wizard{
		Unit:     h.unit.Name,
		Step:     flow.Current(),
		Steps:    h.unit.Steps,
		Position: flow.Position() + 1,
		IsFirst:  flow.Current() == flow.First(),
		IsLast:   flow.IsLast(),
		Input:    *in,
		Tags:     strings.Join(in.Tags, ", "),
		Sections: sections,
		Errors:   errs,
	})
}

func (h *WizardHandler) stepURL(step string) string {
	return "/uow/" + h.unit.Name + "/" + step
}

// mergeStep copies the fields a step's form owns into in.
func mergeStep(c *gin.Context, step string, in *models.ArticleInput) {
	switch step {
	case stepDetails:
		in.Title = c.PostForm("title")
		in.Description = c.PostForm("description")
		in.SectionID = c.PostForm("section_id")
		in.Content = c.PostForm("content")
	case stepTags:
		in.Tags = validation.NormalizeTags([]string{c.PostForm("tags")})
	}
}
