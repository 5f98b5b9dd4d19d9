package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/alpha-framework/alpha/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	return repository.New(tester.DB(t))
}

func TestStore_SaveInsertsTransientRecord(t *testing.T) {
	repos := newRepos(t)
	ctx := repository.WithActor(context.Background(), "person-1")

	article := &models.Article{Title: "Hello", Slug: "hello", Content: "body"}
	require.NoError(t, repos.Article.Save(ctx, article))

	assert.NotEmpty(t, article.ID)
	assert.Equal(t, 1, article.Version)
	assert.Equal(t, "person-1", article.CreatedBy)
	assert.Equal(t, "person-1", article.UpdatedBy)
	assert.False(t, article.CreatedAt.IsZero())

	loaded, err := repos.Article.Load(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", loaded.Title)
	assert.Equal(t, 1, loaded.Version)
}

func TestStore_SaveUpdatesAndBumpsVersion(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	article := &models.Article{Title: "Hello", Slug: "hello"}
	require.NoError(t, repos.Article.Save(ctx, article))
	createdAt := article.CreatedAt

	article.Title = "Hello again"
	require.NoError(t, repos.Article.Save(repository.WithActor(ctx, "editor"), article))
	assert.Equal(t, 2, article.Version)

	loaded, err := repos.Article.Load(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello again", loaded.Title)
	assert.Equal(t, 2, loaded.Version)
	assert.Equal(t, "editor", loaded.UpdatedBy)
	assert.WithinDuration(t, createdAt, loaded.CreatedAt, time.Second)
}

func TestStore_StaleSaveIsRejected(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	article := &models.Article{Title: "Original", Slug: "original"}
	require.NoError(t, repos.Article.Save(ctx, article))

	first, err := repos.Article.Load(ctx, article.ID)
	require.NoError(t, err)
	second, err := repos.Article.Load(ctx, article.ID)
	require.NoError(t, err)

	first.Title = "First writer"
	require.NoError(t, repos.Article.Save(ctx, first))

	second.Title = "Second writer"
	err = repos.Article.Save(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrLocking), "expected locking error, got %v", err)
	assert.Equal(t, 1, second.Version, "failed save must not bump the version")

	loaded, err := repos.Article.Load(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, "First writer", loaded.Title)
}

func TestStore_Delete(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	article := &models.Article{Title: "Doomed", Slug: "doomed"}
	require.NoError(t, repos.Article.Save(ctx, article))

	stale := *article
	article.Title = "Changed"
	require.NoError(t, repos.Article.Save(ctx, article))

	err := repos.Article.Delete(ctx, &stale)
	assert.ErrorIs(t, err, apperr.ErrLocking)

	require.NoError(t, repos.Article.Delete(ctx, article))

	_, err = repos.Article.Load(ctx, article.ID)
	assert.ErrorIs(t, err, apperr.ErrRecordNotFound)

	err = repos.Article.Delete(ctx, article)
	assert.ErrorIs(t, err, apperr.ErrRecordNotFound)
}

func TestStore_ListCountAndStream(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	for _, slug := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, repos.Article.Save(ctx, &models.Article{Title: slug, Slug: slug}))
	}

	n, err := repos.Article.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	page, err := repos.Article.List(ctx, repository.Page{Offset: 1, Limit: 2, Order: "slug asc"})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Slug)
	assert.Equal(t, "c", page[1].Slug)

	filtered, err := repos.Article.List(ctx, repository.Page{}, repository.Where("slug", "d"))
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	var seen int
	require.NoError(t, repos.Article.StreamAll(ctx, func(a *models.Article) error {
		seen++
		return nil
	}))
	assert.Equal(t, 5, seen)
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repos.Transaction(ctx, func(ctx context.Context) error {
		if err := repos.Article.Save(ctx, &models.Article{Title: "tx", Slug: "tx"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := repos.Article.SlugExists(ctx, "tx", "")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestArticleRepo_PublishedAndTags(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mk := func(slug string, published bool, tags ...string) *models.Article {
		a := &models.Article{Title: slug, Slug: slug, Tags: tags}
		if published {
			a.Publish(now)
		}
		require.NoError(t, repos.Article.Save(ctx, a))
		require.NoError(t, repos.Tag.Replace(ctx, a.RecordType(), a.ID, tags))
		return a
	}

	golang := mk("go-intro", true, "go", "intro")
	mk("go-advanced", true, "go", "advanced")
	mk("draft", false, "go")
	mk("unrelated", true, "cooking")

	n, err := repos.Article.CountPublished(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	byTag, err := repos.Article.ListByTag(ctx, "go", repository.Page{})
	require.NoError(t, err)
	assert.Len(t, byTag, 2)

	count, err := repos.Article.CountByTag(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	related, err := repos.Article.Related(ctx, golang, 5)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "go-advanced", related[0].Slug)

	require.NoError(t, repos.Article.IncrementViews(ctx, golang.ID))
	loaded, err := repos.Article.BySlug(ctx, "go-intro")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.ViewCount)
	assert.Equal(t, golang.Version, loaded.Version)

	_, err = repos.Article.BySlug(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrRecordNotFound)
}

func TestTagRepo_ReplaceAndCloud(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Tag.Replace(ctx, "Article", "a1", []string{"go", "web"}))
	require.NoError(t, repos.Tag.Replace(ctx, "Article", "a2", []string{"go"}))
	require.NoError(t, repos.Tag.Replace(ctx, "Article", "a3", []string{"go", "db"}))

	require.NoError(t, repos.Tag.Replace(ctx, "Article", "a1", []string{"go", "cli"}))
	tags, err := repos.Tag.ForRecord(ctx, "Article", "a1")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "cli", tags[0].Content)
	assert.Equal(t, "go", tags[1].Content)

	cloud, err := repos.Tag.Cloud(ctx, "Article", 0)
	require.NoError(t, err)
	require.Len(t, cloud, 3)
	assert.Equal(t, "cli", cloud[0].Content)
	assert.Equal(t, 1, cloud[0].Weight)
	assert.Equal(t, "go", cloud[2].Content)
	assert.Equal(t, 3, cloud[2].Count)
	assert.Equal(t, 5, cloud[2].Weight)

	require.NoError(t, repos.Tag.DeleteForRecord(ctx, "Article", "a3"))
	n, err := repos.Tag.Count(ctx, repository.Where("tagged_id", "a3"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCommentRepo_ByArticle(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	for _, body := range []string{"first", "second"} {
		require.NoError(t, repos.Comment.Save(ctx, &models.ArticleComment{ArticleID: "a1", Content: body}))
		time.Sleep(2 * time.Millisecond)
	}
	require.NoError(t, repos.Comment.Save(ctx, &models.ArticleComment{ArticleID: "a2", Content: "other"}))

	comments, err := repos.Comment.ByArticle(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)

	require.NoError(t, repos.Comment.DeleteByArticle(ctx, "a1"))
	n, err := repos.Comment.CountByArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPersonRepo_RightsAndLookups(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	admin, err := repos.Rights.Ensure(ctx, models.RightsAdmin)
	require.NoError(t, err)
	again, err := repos.Rights.Ensure(ctx, models.RightsAdmin)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	person := &models.Person{Username: "alice", Email: "Alice@Example.com", State: models.PersonActive}
	require.NoError(t, repos.Person.Save(ctx, person))
	require.NoError(t, repos.Person.AssignRights(ctx, person, admin))

	loaded, err := repos.Person.ByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, loaded.InRights(models.RightsAdmin))
	assert.True(t, loaded.InRights(models.RightsStandard))

	exists, err := repos.Person.EmailExists(ctx, "alice@example.com", "")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repos.Person.EmailExists(ctx, "alice@example.com", person.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repos.Person.RevokeRights(ctx, loaded, admin))
	loaded, err = repos.Person.LoadWithRights(ctx, person.ID)
	require.NoError(t, err)
	assert.False(t, loaded.InRights(models.RightsAdmin))

	require.NoError(t, repos.Person.Delete(ctx, loaded))
	exists, err = repos.Person.UsernameExists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDEnumRepo_EnsureAndReplaceItems(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	denum, err := repos.DEnum.Ensure(ctx, models.SectionEnum, []string{"News", "Tutorials"})
	require.NoError(t, err)
	assert.Equal(t, []string{"News", "Tutorials"}, denum.Options())

	loaded, err := repos.DEnum.ByName(ctx, models.SectionEnum)
	require.NoError(t, err)
	newsID := loaded.Items[0].ID

	require.NoError(t, repos.DEnum.ReplaceItems(ctx, loaded, []string{"Reviews", "News"}))

	reloaded, err := repos.DEnum.ByName(ctx, models.SectionEnum)
	require.NoError(t, err)
	assert.Equal(t, []string{"Reviews", "News"}, reloaded.Options())
	item, ok := reloaded.ItemByID(newsID)
	require.True(t, ok, "surviving item keeps its id")
	assert.Equal(t, "News", item.Value)
	assert.Equal(t, 2, reloaded.Version)
}

func TestSequenceRepo_Next(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	first, err := repos.Sequence.Next(ctx, "INV")
	require.NoError(t, err)
	assert.Equal(t, "INV-1", first.String())

	second, err := repos.Sequence.Next(ctx, "INV")
	require.NoError(t, err)
	assert.Equal(t, "INV-2", second.String())

	other, err := repos.Sequence.Next(ctx, "ORD")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Value)
}

func TestJobRepo_Lifecycle(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	job := &models.Job{
		ID:             "job-1",
		Resource:       models.ResourceArticles,
		Format:         models.FormatCSV,
		Status:         models.JobStatusPending,
		IdempotencyKey: "key-1",
		CreatedAt:      time.Now(),
	}
	require.NoError(t, repos.Job.Create(ctx, job))

	pending, err := repos.Job.GetPendingJobs(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	claimed, err := repos.Job.MarkJobAsProcessing(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repos.Job.MarkJobAsProcessing(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "job can only be claimed once")

	done := time.Now().Add(-2 * time.Hour)
	job.Status = models.JobStatusCompleted
	job.TotalRecords = 10
	job.CompletedAt = &done
	require.NoError(t, repos.Job.Update(ctx, job))

	byKey, err := repos.Job.GetByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, 10, byKey.TotalRecords)

	old, err := repos.Job.FinishedBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, old, 1)

	require.NoError(t, repos.Job.Delete(ctx, job.ID))
	missing, err := repos.Job.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
