package repository

import (
	"context"

	"github.com/alpha-framework/alpha/internal/database"
	"github.com/alpha-framework/alpha/internal/models"
)

// commentRepo is the concrete implementation of CommentRepository
type commentRepo struct {
	*Store[models.ArticleComment, *models.ArticleComment]
	db *database.DB
}

// NewCommentRepo creates a new comment repository
func NewCommentRepo(db *database.DB) CommentRepository {
	return &commentRepo{
		Store: NewStore[models.ArticleComment, *models.ArticleComment](db),
		db:    db,
	}
}

// ByArticle returns the comments of an article, oldest first
func (r *commentRepo) ByArticle(ctx context.Context, articleID string) ([]*models.ArticleComment, error) {
	return r.List(ctx, Page{Order: "created_at asc"}, Where("article_id", articleID))
}

// CountByArticle returns the number of comments on an article
func (r *commentRepo) CountByArticle(ctx context.Context, articleID string) (int64, error) {
	return r.Count(ctx, Where("article_id", articleID))
}

// DeleteByArticle removes all comments of an article
func (r *commentRepo) DeleteByArticle(ctx context.Context, articleID string) error {
	return conn(ctx, r.db).Where("article_id = ?", articleID).Delete(&models.ArticleComment{}).Error
}
