package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/feed"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/pagination"
	"github.com/alpha-framework/alpha/internal/security"
	"github.com/alpha-framework/alpha/internal/service"
	"github.com/alpha-framework/alpha/internal/view"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const cloudSize = 30

// ArticleHandler serves the public article pages and the article editor
type ArticleHandler struct {
	services *service.Services
	pages    *pages
	tokens   *security.Tokenizer
	log      zerolog.Logger
}

// NewArticleHandler creates a new ArticleHandler
func NewArticleHandler(services *service.Services, p *pages, tokens *security.Tokenizer, log zerolog.Logger) *ArticleHandler {
	return &ArticleHandler{
		services: services,
		pages:    p,
		tokens:   tokens,
		log:      log.With().Str("handler", "article").Logger(),
	}
}

// Index handles GET /?start=N
func (h *ArticleHandler) Index(c *gin.Context) {
	ctx := c.Request.Context()

	page, err := h.services.Article.ListPublished(ctx, queryInt(c, pagination.StartParam, 0))
	if err != nil {
		_ = c.Error(err)
		return
	}
	cloud, err := h.services.Article.TagCloud(ctx, cloudSize)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.pages.render(c, http.StatusOK, "article/list", "", view.List{
		Type:    models.Article{}.RecordType(),
		Records: page.Articles,
		Pager:   page.Pager,
		BaseURL: "/",
		Extra:   map[string]any{"Cloud": cloud},
	})
}

// Show handles GET /articles/:slug
func (h *ArticleHandler) Show(c *gin.Context) {
	v, err := h.services.Article.View(c.Request.Context(), c.Param("slug"), currentPerson(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	a := v.Article
	h.pages.render(c, http.StatusOK, h.pages.views.Select(a.RecordType(), "detail"), a.Title, view.Detail{
		Type:   a.RecordType(),
		ID:     a.ID,
		Record: a,
		Extra: map[string]any{
			"Section":  v.Section,
			"TOC":      v.TOC,
			"HTML":     v.HTML,
			"Comments": v.Comments,
			"Related":  v.Related,
		},
	})
}

// PDF handles GET /articles/:slug/pdf?tk=... The token pins the article
// version the link was rendered for; stale links are redirected to the
// current version.
func (h *ArticleHandler) PDF(c *gin.Context) {
	data, article, err := h.services.Article.PDF(c.Request.Context(), c.Param("slug"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	if v := c.Query("version"); v != "" && v != strconv.Itoa(article.Version) {
		fresh, err := h.tokens.SecureURL(c.Request.URL.Path, url.Values{"version": {strconv.Itoa(article.Version)}})
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.Redirect(http.StatusFound, fresh)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, article.Slug))
	c.Data(http.StatusOK, "application/pdf", data)
}

// New handles GET /articles/new
func (h *ArticleHandler) New(c *gin.Context) {
	h.form(c, http.StatusOK, "", &models.ArticleInput{AllowComments: true}, nil)
}

// Create handles POST /articles
func (h *ArticleHandler) Create(c *gin.Context) {
	in, err := bindArticleForm(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	article, err := h.services.Article.Create(c.Request.Context(), currentPerson(c), in)
	if apperr.Fields(err) != nil {
		h.form(c, http.StatusUnprocessableEntity, "", in, apperr.Fields(err))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	flash(c, "Article created.")
	seeOther(c, "/articles/"+article.Slug)
}

// Edit handles GET /articles/:slug/edit
func (h *ArticleHandler) Edit(c *gin.Context) {
	article, err := h.services.Article.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.form(c, http.StatusOK, article.Slug, &models.ArticleInput{
		Title:         article.Title,
		Description:   article.Description,
		SectionID:     article.SectionID,
		Content:       article.Content,
		HeaderImage:   article.HeaderImage,
		Published:     article.Published,
		AllowComments: article.AllowComments,
		Tags:          article.Tags,
		Version:       article.Version,
	}, nil)
}

// Update handles POST /articles/:slug
func (h *ArticleHandler) Update(c *gin.Context) {
	slug := c.Param("slug")
	in, err := bindArticleForm(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	article, err := h.services.Article.Update(c.Request.Context(), slug, in)
	if apperr.Fields(err) != nil {
		h.form(c, http.StatusUnprocessableEntity, slug, in, apperr.Fields(err))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	flash(c, "Article saved.")
	seeOther(c, "/articles/"+article.Slug)
}

// Delete handles POST /articles/:slug/delete
func (h *ArticleHandler) Delete(c *gin.Context) {
	version, err := strconv.Atoi(c.PostForm("version"))
	if err != nil {
		_ = c.Error(fmt.Errorf("version: %w", apperr.ErrIllegalArgument))
		return
	}
	if err := h.services.Article.Delete(c.Request.Context(), c.Param("slug"), version); err != nil {
		_ = c.Error(err)
		return
	}
	flash(c, "Article deleted.")
	seeOther(c, "/")
}

// Comment handles POST /articles/:slug/comments
func (h *ArticleHandler) Comment(c *gin.Context) {
	slug := c.Param("slug")
	comment, err := h.services.Article.AddComment(c.Request.Context(), slug, currentPerson(c), c.PostForm("content"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	seeOther(c, "/articles/"+slug+"#comment-"+comment.ID)
}

// DeleteComment handles POST /comments/:id/delete
func (h *ArticleHandler) DeleteComment(c *gin.Context) {
	if err := h.services.Article.DeleteComment(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	flash(c, "Comment deleted.")
	seeOther(c, localPath(c.Request.Referer(), "/"))
}

// Tags handles GET /tags
func (h *ArticleHandler) Tags(c *gin.Context) {
	cloud, err := h.services.Article.TagCloud(c.Request.Context(), 0)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.pages.render(c, http.StatusOK, "tags", "Tags", cloud)
}

// Search handles GET /search?q=tag
func (h *ArticleHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	data := view.List{
		Type:    models.Article{}.RecordType(),
		BaseURL: "/search?q=" + url.QueryEscape(q),
		Extra:   map[string]any{"Query": q},
	}
	if q != "" {
		page, err := h.services.Article.ListByTag(c.Request.Context(), q, queryInt(c, pagination.StartParam, 0))
		if err != nil {
			_ = c.Error(err)
			return
		}
		data.Records = page.Articles
		data.Pager = page.Pager
	}
	h.pages.render(c, http.StatusOK, "search", "Search", data)
}

// Feed handles GET /feeds/rss and GET /feeds/atom
func (h *ArticleHandler) Feed(c *gin.Context) {
	format := feed.FormatRSS
	if strings.HasSuffix(c.Request.URL.Path, "/atom") {
		format = feed.FormatAtom
	}

	f, err := h.services.Feed.Recent(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Content-Type", feed.ContentType(format))
	c.Status(http.StatusOK)
	if err := feed.Write(c.Writer, f, format); err != nil {
		h.log.Error().Err(err).Str("format", format).Msg("Feed write failed")
	}
}

func (h *ArticleHandler) form(c *gin.Context, status int, slug string, in *models.ArticleInput, errs []apperr.FieldError) {
	sections, err := h.services.DEnum.Sections(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	action, title := "/articles", "New article"
	if slug != "" {
		action, title = "/articles/"+slug, "Edit article"
	}
	h.pages.render(c, status, "article/edit", title, view.ArticleForm{
		Action:   action,
		Slug:     slug,
		Input:    *in,
		Tags:     strings.Join(in.Tags, ", "),
		Sections: sections,
		Errors:   errs,
	})
}

func bindArticleForm(c *gin.Context) (*models.ArticleInput, error) {
	var in models.ArticleInput
	if err := c.ShouldBind(&in); err != nil {
		return nil, fmt.Errorf("article form: %v: %w", err, apperr.ErrIllegalArgument)
	}
	return &in, nil
}
