package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/database"
	"github.com/alpha-framework/alpha/internal/models"
	"gorm.io/gorm"
)

// articleRepo is the concrete implementation of ArticleRepository
type articleRepo struct {
	*Store[models.Article, *models.Article]
	db *database.DB
}

// NewArticleRepo creates a new article repository
func NewArticleRepo(db *database.DB) ArticleRepository {
	return &articleRepo{
		Store: NewStore[models.Article, *models.Article](db),
		db:    db,
	}
}

// BySlug retrieves an article by its URL slug
func (r *articleRepo) BySlug(ctx context.Context, slug string) (*models.Article, error) {
	var article models.Article
	err := conn(ctx, r.db).Where("slug = ?", slug).First(&article).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("article %q: %w", slug, apperr.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// SlugExists checks if another article already uses the slug
func (r *articleRepo) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	var n int64
	q := conn(ctx, r.db).Model(&models.Article{}).Where("slug = ?", slug)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func published(db *gorm.DB) *gorm.DB {
	return db.Where("published = ?", true)
}

// ListPublished returns published articles, newest publication first
func (r *articleRepo) ListPublished(ctx context.Context, page Page) ([]*models.Article, error) {
	if page.Order == "" {
		page.Order = "published_at desc"
	}
	return r.List(ctx, page, published)
}

// CountPublished returns the number of published articles
func (r *articleRepo) CountPublished(ctx context.Context) (int64, error) {
	return r.Count(ctx, published)
}

func (r *articleRepo) taggedWith(ctx context.Context, tag string) Filter {
	sub := conn(ctx, r.db).Model(&models.Tag{}).
		Select("tagged_id").
		Where("tagged_class = ? AND content = ?", models.Article{}.RecordType(), tag)
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id IN (?)", sub)
	}
}

// ListByTag returns published articles carrying the tag
func (r *articleRepo) ListByTag(ctx context.Context, tag string, page Page) ([]*models.Article, error) {
	if page.Order == "" {
		page.Order = "published_at desc"
	}
	return r.List(ctx, page, published, r.taggedWith(ctx, tag))
}

// CountByTag returns the number of published articles carrying the tag
func (r *articleRepo) CountByTag(ctx context.Context, tag string) (int64, error) {
	return r.Count(ctx, published, r.taggedWith(ctx, tag))
}

// Related returns published articles sharing the most tags with article
func (r *articleRepo) Related(ctx context.Context, article *models.Article, limit int) ([]*models.Article, error) {
	if len(article.Tags) == 0 || limit <= 0 {
		return nil, nil
	}

	var matches []struct {
		TaggedID string
		Shared   int
	}
	err := conn(ctx, r.db).Model(&models.Tag{}).
		Select("tagged_id, COUNT(*) AS shared").
		Where("tagged_class = ? AND content IN ? AND tagged_id <> ?", article.RecordType(), article.Tags, article.ID).
		Group("tagged_id").
		Order("shared desc, tagged_id").
		Scan(&matches).Error
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.TaggedID)
	}

	var found []*models.Article
	if err := published(conn(ctx, r.db)).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Article, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	related := make([]*models.Article, 0, limit)
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			related = append(related, a)
			if len(related) == limit {
				break
			}
		}
	}
	return related, nil
}

// IncrementViews bumps the view counter without touching the version
func (r *articleRepo) IncrementViews(ctx context.Context, id string) error {
	return conn(ctx, r.db).Model(&models.Article{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}
