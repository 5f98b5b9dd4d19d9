package service

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/alpha-framework/alpha/internal/config"
	"github.com/alpha-framework/alpha/internal/filecache"
	"github.com/alpha-framework/alpha/internal/markdown"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/pagination"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/alpha-framework/alpha/internal/session"
	"github.com/alpha-framework/alpha/internal/unitofwork"
	"github.com/alpha-framework/alpha/internal/validation"
	"github.com/gorilla/feeds"
	"github.com/rs/zerolog"
)

// ArticleService defines the interface for article, tag and comment operations
type ArticleService interface {
	Create(ctx context.Context, author *models.Person, in *models.ArticleInput) (*models.Article, error)
	Update(ctx context.Context, slug string, in *models.ArticleInput) (*models.Article, error)
	UpdateByID(ctx context.Context, id string, in *models.ArticleInput) (*models.Article, error)
	Delete(ctx context.Context, slug string, version int) error
	SetPublished(ctx context.Context, slug string, version int, published bool) (*models.Article, error)
	Get(ctx context.Context, slug string) (*models.Article, error)
	View(ctx context.Context, slug string, viewer *models.Person) (*ArticleView, error)
	Render(ctx context.Context, article *models.Article) (markdown.Document, error)
	ListPublished(ctx context.Context, start int) (*ArticlePage, error)
	ListByTag(ctx context.Context, tag string, start int) (*ArticlePage, error)
	Related(ctx context.Context, article *models.Article, limit int) ([]*models.Article, error)
	TagCloud(ctx context.Context, limit int) ([]models.TagCount, error)
	AddComment(ctx context.Context, slug string, author *models.Person, content string) (*models.ArticleComment, error)
	DeleteComment(ctx context.Context, id string) error
	PDF(ctx context.Context, slug string) ([]byte, *models.Article, error)
}

// PersonService defines the interface for people and rights
type PersonService interface {
	Register(ctx context.Context, req *RegisterRequest) (*models.Person, error)
	Authenticate(ctx context.Context, username, password string) (*models.Person, error)
	Get(ctx context.Context, id string) (*models.Person, error)
	AssignRights(ctx context.Context, personID string, names ...string) (*models.Person, error)
	RevokeRights(ctx context.Context, personID string, names ...string) (*models.Person, error)
	Disable(ctx context.Context, personID string, version int) (*models.Person, error)
	EnsureRights(ctx context.Context) error
}

// DEnumService defines the interface for dynamic enums
type DEnumService interface {
	Get(ctx context.Context, name string) (*models.DEnum, error)
	Replace(ctx context.Context, name string, version int, values []string) (*models.DEnum, error)
	EnsureDefaults(ctx context.Context) error
	Sections(ctx context.Context) ([]models.DEnumItem, error)
}

// SequenceService defines the interface for named counters
type SequenceService interface {
	Next(ctx context.Context, prefix string) (*models.Sequence, error)
}

// FeedService defines the interface for syndication feeds
type FeedService interface {
	Recent(ctx context.Context) (*feeds.Feed, error)
}

// ExportService defines the interface for export operations
type ExportService interface {
	Stream(ctx context.Context, w io.Writer, resource, format string) (int, error)
	Workbook(ctx context.Context, w io.Writer, resources ...string) error
	GetCount(ctx context.Context, resource string) (int64, error)
}

// JobService defines the interface for export job management
type JobService interface {
	StartProcessor(ctx context.Context)
	StopProcessor()
	RunPending(ctx context.Context)
	CreateExportJob(ctx context.Context, req *models.ExportRequest) (*models.Job, bool, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetJobByIdempotencyKey(ctx context.Context, key string) (*models.Job, error)
	OpenDownload(ctx context.Context, id string) (*models.Job, *os.File, error)
	PurgeFinished(ctx context.Context, before time.Time) (int, error)
}

// LogService defines the interface for the log viewer
type LogService interface {
	Tail(ctx context.Context, n int, level string) ([]LogEntry, error)
}

// MaintenanceService defines the interface for scheduled housekeeping
type MaintenanceService interface {
	Start() error
	Stop() context.Context
	RunOnce(ctx context.Context) MaintenanceReport
	ClearCache() (int, error)
}

// ArticlePage is one page of an article listing
type ArticlePage struct {
	Articles []*models.Article
	Pager    pagination.Paginator
}

// CommentView is a comment with its rendered body
type CommentView struct {
	*models.ArticleComment
	HTML string
}

// ArticleView is everything the article page shows
type ArticleView struct {
	Article  *models.Article
	HTML     string
	TOC      []markdown.Heading
	Section  string
	Comments []CommentView
	Related  []*models.Article
}

// RegisterRequest holds the fields of a new person
type RegisterRequest struct {
	Username    string `json:"username" form:"username"`
	Email       string `json:"email" form:"email"`
	DisplayName string `json:"display_name" form:"display_name"`
	Password    string `json:"password" form:"password"`
}

// Services holds all service interfaces
type Services struct {
	Article     ArticleService
	Person      PersonService
	DEnum       DEnumService
	Sequence    SequenceService
	Feed        FeedService
	Export      ExportService
	Job         JobService
	Log         LogService
	Maintenance MaintenanceService
	Records     *Records

	// Tx runs multi-service writes in one transaction
	Tx unitofwork.Transactor
}

// Deps are the non-database collaborators of the services. Cache may be nil,
// which disables render caching.
type Deps struct {
	Cache    *filecache.Cache
	Sessions session.Store
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, cfg *config.Config, deps Deps, log zerolog.Logger) *Services {
	validator := validation.NewValidator()
	md := markdown.New()

	denumSvc := newDEnumService(repos, validator, log)
	articleSvc := newArticleService(repos, denumSvc, validator, md, deps.Cache, cfg.Site, log)
	personSvc := newPersonService(repos, validator, log)
	exportSvc := newExportService(repos, log)
	jobSvc := newJobService(repos.Job, exportSvc, cfg.Export, log)

	return &Services{
		Article:     articleSvc,
		Person:      personSvc,
		DEnum:       denumSvc,
		Sequence:    newSequenceService(repos.Sequence),
		Feed:        newFeedService(repos, md, cfg.Site),
		Export:      exportSvc,
		Job:         jobSvc,
		Log:         newLogService(cfg.Log.File),
		Maintenance: newMaintenanceService(deps.Sessions, deps.Cache, jobSvc, cfg, log),
		Records:     newRecords(repos, articleSvc, validator),
		Tx:          repos,
	}
}
