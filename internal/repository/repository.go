package repository

import (
	"context"
	"time"

	"github.com/alpha-framework/alpha/internal/database"
	"github.com/alpha-framework/alpha/internal/models"
	"gorm.io/gorm"
)

// ArticleRepository defines the interface for article data operations
type ArticleRepository interface {
	RecordStore[models.Article]
	BySlug(ctx context.Context, slug string) (*models.Article, error)
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
	ListPublished(ctx context.Context, page Page) ([]*models.Article, error)
	CountPublished(ctx context.Context) (int64, error)
	ListByTag(ctx context.Context, tag string, page Page) ([]*models.Article, error)
	CountByTag(ctx context.Context, tag string) (int64, error)
	Related(ctx context.Context, article *models.Article, limit int) ([]*models.Article, error)
	IncrementViews(ctx context.Context, id string) error
}

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	RecordStore[models.ArticleComment]
	ByArticle(ctx context.Context, articleID string) ([]*models.ArticleComment, error)
	CountByArticle(ctx context.Context, articleID string) (int64, error)
	DeleteByArticle(ctx context.Context, articleID string) error
}

// TagRepository defines the interface for tag data operations
type TagRepository interface {
	RecordStore[models.Tag]
	ForRecord(ctx context.Context, class, id string) ([]*models.Tag, error)
	Replace(ctx context.Context, class, id string, contents []string) error
	DeleteForRecord(ctx context.Context, class, id string) error
	Cloud(ctx context.Context, class string, limit int) ([]models.TagCount, error)
}

// PersonRepository defines the interface for person data operations
type PersonRepository interface {
	RecordStore[models.Person]
	LoadWithRights(ctx context.Context, id string) (*models.Person, error)
	ByUsername(ctx context.Context, username string) (*models.Person, error)
	EmailExists(ctx context.Context, email, excludeID string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	AssignRights(ctx context.Context, person *models.Person, rights ...*models.Rights) error
	RevokeRights(ctx context.Context, person *models.Person, rights ...*models.Rights) error
}

// RightsRepository defines the interface for rights group operations
type RightsRepository interface {
	RecordStore[models.Rights]
	ByName(ctx context.Context, name string) (*models.Rights, error)
	Ensure(ctx context.Context, name string) (*models.Rights, error)
}

// DEnumRepository defines the interface for dynamic enum operations
type DEnumRepository interface {
	RecordStore[models.DEnum]
	ByName(ctx context.Context, name string) (*models.DEnum, error)
	ReplaceItems(ctx context.Context, denum *models.DEnum, values []string) error
	Ensure(ctx context.Context, name string, defaults []string) (*models.DEnum, error)
}

// SequenceRepository defines the interface for named counters
type SequenceRepository interface {
	RecordStore[models.Sequence]
	Next(ctx context.Context, prefix string) (*models.Sequence, error)
}

// JobRepository defines the interface for export job operations
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	Update(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error)
	GetPendingJobs(ctx context.Context) ([]*models.Job, error)
	MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error)
	FinishedBefore(ctx context.Context, before time.Time) ([]*models.Job, error)
	Delete(ctx context.Context, id string) error
}

// Repositories holds all repository interfaces
type Repositories struct {
	db *database.DB

	Article  ArticleRepository
	Comment  CommentRepository
	Tag      TagRepository
	Person   PersonRepository
	Rights   RightsRepository
	DEnum    DEnumRepository
	Sequence SequenceRepository
	Job      JobRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		db:       db,
		Article:  NewArticleRepo(db),
		Comment:  NewCommentRepo(db),
		Tag:      NewTagRepo(db),
		Person:   NewPersonRepo(db),
		Rights:   NewRightsRepo(db),
		DEnum:    NewDEnumRepo(db),
		Sequence: NewSequenceRepo(db),
		Job:      NewJobRepo(db),
	}
}

// Transaction runs fn inside one database transaction. Repository calls made
// with the context passed to fn join that transaction. Nested calls reuse the
// outer transaction.
func (r *Repositories) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return InTx(ctx, r.db, fn)
}

type txKey struct{}

type actorKey struct{}

// InTx begins a transaction unless ctx already carries one, commits when fn
// returns nil and rolls back otherwise.
func InTx(ctx context.Context, db *database.DB, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return db.Gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction carried by ctx, or the pool.
func conn(ctx context.Context, db *database.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.Gorm.WithContext(ctx)
}

// WithActor records the id of the person performing writes; it is stamped
// into CreatedBy/UpdatedBy.
func WithActor(ctx context.Context, personID string) context.Context {
	return context.WithValue(ctx, actorKey{}, personID)
}

// ActorFrom returns the person id set by WithActor.
func ActorFrom(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}
