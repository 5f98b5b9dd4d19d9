package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/config"
	"github.com/alpha-framework/alpha/internal/export"
	"github.com/alpha-framework/alpha/internal/filecache"
	"github.com/alpha-framework/alpha/internal/markdown"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/pagination"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/alpha-framework/alpha/internal/validation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Cache kinds of the article artifacts
const (
	cacheArticleHTML = "article-html"
	cacheArticlePDF  = "article-pdf"
)

const relatedLimit = 5

// articleService is the concrete implementation of ArticleService
type articleService struct {
	repos     *repository.Repositories
	denums    DEnumService
	validator *validation.Validator
	md        *markdown.Renderer
	cache     *filecache.Cache
	site      config.SiteConfig
	renders   singleflight.Group
	log       zerolog.Logger
}

// newArticleService creates a new ArticleService
func newArticleService(repos *repository.Repositories, denums DEnumService, validator *validation.Validator,
	md *markdown.Renderer, cache *filecache.Cache, site config.SiteConfig, log zerolog.Logger) *articleService {
	return &articleService{
		repos:     repos,
		denums:    denums,
		validator: validator,
		md:        md,
		cache:     cache,
		site:      site,
		log:       log.With().Str("service", "article").Logger(),
	}
}

// Create saves a new article and its tags in one transaction. The slug is
// derived from the title and made unique.
func (s *articleService) Create(ctx context.Context, author *models.Person, in *models.ArticleInput) (*models.Article, error) {
	article := &models.Article{}
	if author != nil {
		article.Author = author.DisplayName
		if article.Author == "" {
			article.Author = author.Username
		}
	}
	s.apply(article, in, time.Now().UTC())

	err := s.repos.Transaction(ctx, func(ctx context.Context) error {
		slug, err := validation.UniqueSlug(validation.Slugify(article.Title), func(candidate string) (bool, error) {
			return s.repos.Article.SlugExists(ctx, candidate, "")
		})
		if err != nil {
			return err
		}
		article.Slug = slug

		return s.save(ctx, article)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("article_id", article.ID).Str("slug", article.Slug).Msg("Article created")
	return article, nil
}

// Update applies in to the article with the given slug. in.Version must be
// the version the editor started from.
func (s *articleService) Update(ctx context.Context, slug string, in *models.ArticleInput) (*models.Article, error) {
	return s.update(ctx, func(ctx context.Context) (*models.Article, error) {
		return s.repos.Article.BySlug(ctx, slug)
	}, in)
}

// UpdateByID is Update addressed by record id.
func (s *articleService) UpdateByID(ctx context.Context, id string, in *models.ArticleInput) (*models.Article, error) {
	return s.update(ctx, func(ctx context.Context) (*models.Article, error) {
		return s.repos.Article.Load(ctx, id)
	}, in)
}

func (s *articleService) update(ctx context.Context, load func(context.Context) (*models.Article, error), in *models.ArticleInput) (*models.Article, error) {
	if in.Version <= 0 {
		return nil, fmt.Errorf("article update needs the version being replaced: %w", apperr.ErrIllegalArgument)
	}
	var article *models.Article
	err := s.repos.Transaction(ctx, func(ctx context.Context) error {
		var err error
		article, err = load(ctx)
		if err != nil {
			return err
		}
		article.Version = in.Version
		s.apply(article, in, time.Now().UTC())
		return s.save(ctx, article)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, article.ID)
	s.log.Info().Str("article_id", article.ID).Int("version", article.Version).Msg("Article updated")
	return article, nil
}

// apply copies the editable fields of in onto article.
func (s *articleService) apply(article *models.Article, in *models.ArticleInput, now time.Time) {
	article.Title = strings.TrimSpace(in.Title)
	article.Description = strings.TrimSpace(in.Description)
	article.SectionID = in.SectionID
	article.Content = in.Content
	article.HeaderImage = strings.TrimSpace(in.HeaderImage)
	article.AllowComments = in.AllowComments
	article.Tags = validation.NormalizeTags(in.Tags)
	if in.Published {
		article.Publish(now)
	} else {
		article.Unpublish()
	}
}

// save validates and persists article and replaces its tag set. ctx must carry
// a transaction.
func (s *articleService) save(ctx context.Context, article *models.Article) error {
	if errs := s.validator.ValidateArticle(article); len(errs) > 0 {
		return apperr.NewValidation(article.RecordType(), errs)
	}
	if err := s.repos.Article.Save(ctx, article); err != nil {
		return err
	}
	return s.repos.Tag.Replace(ctx, article.RecordType(), article.ID, article.Tags)
}

// Delete removes an article with its tags and comments.
func (s *articleService) Delete(ctx context.Context, slug string, version int) error {
	var id string
	err := s.repos.Transaction(ctx, func(ctx context.Context) error {
		article, err := s.repos.Article.BySlug(ctx, slug)
		if err != nil {
			return err
		}
		id = article.ID
		article.Version = version

		if err := s.repos.Comment.DeleteByArticle(ctx, article.ID); err != nil {
			return err
		}
		if err := s.repos.Tag.DeleteForRecord(ctx, article.RecordType(), article.ID); err != nil {
			return err
		}
		return s.repos.Article.Delete(ctx, article)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.log.Info().Str("article_id", id).Str("slug", slug).Msg("Article deleted")
	return nil
}

// SetPublished publishes or unpublishes an article.
func (s *articleService) SetPublished(ctx context.Context, slug string, version int, published bool) (*models.Article, error) {
	article, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	article.Version = version
	if published {
		article.Publish(time.Now().UTC())
	} else {
		article.Unpublish()
	}
	if errs := s.validator.ValidateArticle(article); len(errs) > 0 {
		return nil, apperr.NewValidation(article.RecordType(), errs)
	}
	if err := s.repos.Article.Save(ctx, article); err != nil {
		return nil, err
	}
	s.invalidate(ctx, article.ID)
	return article, nil
}

// Get loads an article and its tags.
func (s *articleService) Get(ctx context.Context, slug string) (*models.Article, error) {
	article, err := s.repos.Article.BySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.withTags(ctx, article); err != nil {
		return nil, err
	}
	return article, nil
}

// View loads everything the article page shows and counts the view. Drafts
// are only visible to people with Standard rights.
func (s *articleService) View(ctx context.Context, slug string, viewer *models.Person) (*ArticleView, error) {
	article, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !article.Published && (viewer == nil || !viewer.InRights(models.RightsStandard)) {
		return nil, fmt.Errorf("article %s: %w", slug, apperr.ErrRecordNotFound)
	}

	if article.Published {
		if err := s.repos.Article.IncrementViews(ctx, article.ID); err != nil {
			s.log.Warn().Err(err).Str("article_id", article.ID).Msg("Failed to count view")
		} else {
			article.ViewCount++
		}
	}

	doc, err := s.Render(ctx, article)
	if err != nil {
		return nil, err
	}

	view := &ArticleView{Article: article, HTML: string(doc.HTML), TOC: doc.TOC}

	if article.SectionID != "" {
		items, err := s.denums.Sections(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.ID == article.SectionID {
				view.Section = item.Value
			}
		}
	}

	comments, err := s.repos.Comment.ByArticle(ctx, article.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		html, err := s.md.HTML(c.Content)
		if err != nil {
			return nil, err
		}
		view.Comments = append(view.Comments, CommentView{ArticleComment: c, HTML: string(html)})
	}

	if view.Related, err = s.Related(ctx, article, relatedLimit); err != nil {
		return nil, err
	}
	return view, nil
}

// Render converts the article's markdown. Results are cached per article
// version, and concurrent renders of the same version share one conversion.
func (s *articleService) Render(ctx context.Context, article *models.Article) (markdown.Document, error) {
	key := filecache.Key{Kind: cacheArticleHTML, ID: article.ID, Version: article.Version, Ext: "json"}

	v, err, _ := s.renders.Do(cacheArticleHTML+":"+article.ID+":"+strconv.Itoa(article.Version), func() (any, error) {
		if s.cache != nil {
			data, ok, err := s.cache.Get(ctx, key)
			if err != nil {
				s.log.Warn().Err(err).Str("article_id", article.ID).Msg("Render cache read failed")
			} else if ok {
				var doc markdown.Document
				if err := json.Unmarshal(data, &doc); err == nil {
					return doc, nil
				}
			}
		}

		doc, err := s.md.Render(article.Content)
		if err != nil {
			return markdown.Document{}, fmt.Errorf("render article %s: %w", article.ID, err)
		}

		if s.cache != nil {
			data, err := json.Marshal(doc)
			if err == nil {
				err = s.cache.Put(ctx, key, data)
			}
			if err != nil {
				s.log.Warn().Err(err).Str("article_id", article.ID).Msg("Render cache write failed")
			}
		}
		return doc, nil
	})
	if err != nil {
		return markdown.Document{}, err
	}
	return v.(markdown.Document), nil
}

// ListPublished returns the page of published articles starting at offset start.
func (s *articleService) ListPublished(ctx context.Context, start int) (*ArticlePage, error) {
	total, err := s.repos.Article.CountPublished(ctx)
	if err != nil {
		return nil, err
	}
	pager := pagination.New(int(total), s.site.PageSize, start)
	articles, err := s.repos.Article.ListPublished(ctx, repository.Page{Offset: pager.Start, Limit: pager.Limit()})
	if err != nil {
		return nil, err
	}
	if err := s.withTags(ctx, articles...); err != nil {
		return nil, err
	}
	return &ArticlePage{Articles: articles, Pager: pager}, nil
}

// ListByTag returns the page of published articles carrying tag.
func (s *articleService) ListByTag(ctx context.Context, tag string, start int) (*ArticlePage, error) {
	tags := validation.NormalizeTags([]string{tag})
	if len(tags) == 0 {
		return &ArticlePage{Pager: pagination.New(0, s.site.PageSize, 0)}, nil
	}

	total, err := s.repos.Article.CountByTag(ctx, tags[0])
	if err != nil {
		return nil, err
	}
	pager := pagination.New(int(total), s.site.PageSize, start)
	articles, err := s.repos.Article.ListByTag(ctx, tags[0], repository.Page{Offset: pager.Start, Limit: pager.Limit()})
	if err != nil {
		return nil, err
	}
	if err := s.withTags(ctx, articles...); err != nil {
		return nil, err
	}
	return &ArticlePage{Articles: articles, Pager: pager}, nil
}

// Related returns published articles sharing tags with article.
func (s *articleService) Related(ctx context.Context, article *models.Article, limit int) ([]*models.Article, error) {
	return s.repos.Article.Related(ctx, article, limit)
}

// TagCloud returns the most used article tags with their weights.
func (s *articleService) TagCloud(ctx context.Context, limit int) ([]models.TagCount, error) {
	return s.repos.Tag.Cloud(ctx, models.Article{}.RecordType(), limit)
}

// AddComment posts a comment on a published article that allows comments.
func (s *articleService) AddComment(ctx context.Context, slug string, author *models.Person, content string) (*models.ArticleComment, error) {
	if author == nil {
		return nil, fmt.Errorf("comment: %w", apperr.ErrUnauthorized)
	}
	article, err := s.repos.Article.BySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !article.Published || !article.AllowComments {
		return nil, fmt.Errorf("article %s does not accept comments: %w", slug, apperr.ErrIllegalArgument)
	}

	comment := &models.ArticleComment{
		ArticleID:  article.ID,
		PersonID:   author.ID,
		AuthorName: author.DisplayName,
		Content:    strings.TrimSpace(content),
	}
	if comment.AuthorName == "" {
		comment.AuthorName = author.Username
	}
	if errs := s.validator.ValidateComment(comment); len(errs) > 0 {
		return nil, apperr.NewValidation(comment.RecordType(), errs)
	}
	if err := s.repos.Comment.Save(ctx, comment); err != nil {
		return nil, err
	}

	s.log.Info().Str("article_id", article.ID).Str("comment_id", comment.ID).Msg("Comment added")
	return comment, nil
}

// DeleteComment removes a comment.
func (s *articleService) DeleteComment(ctx context.Context, id string) error {
	comment, err := s.repos.Comment.Load(ctx, id)
	if err != nil {
		return err
	}
	return s.repos.Comment.Delete(ctx, comment)
}

// PDF renders a published article as PDF, cached per article version.
func (s *articleService) PDF(ctx context.Context, slug string) ([]byte, *models.Article, error) {
	article, err := s.Get(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	if !article.Published {
		return nil, nil, fmt.Errorf("article %s: %w", slug, apperr.ErrRecordNotFound)
	}

	key := filecache.Key{Kind: cacheArticlePDF, ID: article.ID, Version: article.Version, Ext: "pdf"}
	v, err, _ := s.renders.Do(cacheArticlePDF+":"+article.ID+":"+strconv.Itoa(article.Version), func() (any, error) {
		if s.cache != nil {
			if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
				return data, nil
			}
		}

		var section string
		if article.SectionID != "" {
			if items, err := s.denums.Sections(ctx); err == nil {
				for _, item := range items {
					if item.ID == article.SectionID {
						section = item.Value
					}
				}
			}
		}

		var buf bytes.Buffer
		err := export.WriteArticlePDF(&buf, export.PDFArticle{
			Title:       article.Title,
			Author:      article.Author,
			Section:     section,
			Description: article.Description,
			Published:   article.PublishedAt,
			Tags:        article.Tags,
			URL:         strings.TrimRight(s.site.URL, "/") + "/articles/" + article.Slug,
			Content:     article.Content,
			SiteTitle:   s.site.Title,
		})
		if err != nil {
			return nil, fmt.Errorf("pdf article %s: %w", article.ID, err)
		}

		data := buf.Bytes()
		if s.cache != nil {
			if err := s.cache.Put(ctx, key, data); err != nil {
				s.log.Warn().Err(err).Str("article_id", article.ID).Msg("PDF cache write failed")
			}
		}
		return data, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return v.([]byte), article, nil
}

// withTags fills in the Tags of each article.
func (s *articleService) withTags(ctx context.Context, articles ...*models.Article) error {
	for _, a := range articles {
		tags, err := s.repos.Tag.ForRecord(ctx, a.RecordType(), a.ID)
		if err != nil {
			return err
		}
		a.Tags = make([]string, 0, len(tags))
		for _, t := range tags {
			a.Tags = append(a.Tags, t.Content)
		}
	}
	return nil
}

// invalidate drops the cached artifacts of an article.
func (s *articleService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	for _, kind := range []string{cacheArticleHTML, cacheArticlePDF} {
		if err := s.cache.Invalidate(ctx, kind, id); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn().Err(err).Str("article_id", id).Str("kind", kind).Msg("Cache invalidation failed")
		}
	}
}
