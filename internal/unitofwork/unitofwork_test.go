package unitofwork_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/alpha-framework/alpha/internal/session"
	"github.com/alpha-framework/alpha/internal/tester"
	"github.com/alpha-framework/alpha/internal/unitofwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wizard(t *testing.T) *unitofwork.Unit {
	t.Helper()
	u, err := unitofwork.New("article-wizard", "details", "tags", "confirm")
	require.NoError(t, err)
	return u
}

func TestNew_RejectsBadDefinitions(t *testing.T) {
	_, err := unitofwork.New("", "a")
	assert.Error(t, err)
	_, err = unitofwork.New("x")
	assert.Error(t, err)
	_, err = unitofwork.New("x", "a", "a")
	assert.Error(t, err)
}

func TestFlow_Navigation(t *testing.T) {
	sess := session.New(time.Hour)
	flow, err := wizard(t).Bind(sess)
	require.NoError(t, err)
	assert.False(t, flow.Active())

	assert.Equal(t, "details", flow.Start())
	assert.True(t, flow.Active())
	assert.Equal(t, "details", flow.First())
	assert.Equal(t, "confirm", flow.Last())

	_, err = flow.Previous()
	assert.ErrorIs(t, err, apperr.ErrIllegalArgument)

	assert.ErrorIs(t, flow.Goto("confirm"), apperr.ErrIllegalArgument, "cannot skip ahead")
	assert.ErrorIs(t, flow.Goto("nope"), apperr.ErrResourceNotFound)

	step, err := flow.Next()
	require.NoError(t, err)
	assert.Equal(t, "tags", step)
	step, err = flow.Next()
	require.NoError(t, err)
	assert.Equal(t, "confirm", step)
	assert.True(t, flow.IsLast())

	_, err = flow.Next()
	assert.ErrorIs(t, err, apperr.ErrIllegalArgument)

	require.NoError(t, flow.Goto("details"))
	assert.Equal(t, 0, flow.Position())

	// state survives a new request on the same session
	rebound, err := wizard(t).Bind(sess)
	require.NoError(t, err)
	assert.Equal(t, "details", rebound.Current())
}

func TestFlow_Staging(t *testing.T) {
	sess := session.New(time.Hour)
	flow, err := wizard(t).Bind(sess)
	require.NoError(t, err)
	flow.Start()

	require.NoError(t, flow.StageNew("Article", &models.Article{Title: "Draft"}))
	require.NoError(t, flow.StageNew("Article", &models.Article{Title: "Draft 2"}))
	require.Len(t, flow.StagedNew(), 1, "staging the same new type replaces it")

	require.NoError(t, flow.StageDirty("Tag", "t1", &models.Tag{Content: "go"}))
	require.NoError(t, flow.StageDirty("Tag", "t2", &models.Tag{Content: "web"}))
	require.NoError(t, flow.StageDirty("Tag", "t1", &models.Tag{Content: "golang"}))
	require.Len(t, flow.StagedDirty(), 2)
	assert.ErrorIs(t, flow.StageDirty("Tag", "", &models.Tag{}), apperr.ErrIllegalArgument)

	rebound, err := wizard(t).Bind(sess)
	require.NoError(t, err)
	staged, ok := rebound.Staged("Article", "")
	require.True(t, ok)
	article, err := unitofwork.Decode[models.Article](staged)
	require.NoError(t, err)
	assert.Equal(t, "Draft 2", article.Title)

	staged, ok = rebound.Staged("Tag", "t1")
	require.True(t, ok)
	tag, err := unitofwork.Decode[models.Tag](staged)
	require.NoError(t, err)
	assert.Equal(t, "golang", tag.Content)

	rebound.Abort()
	assert.False(t, rebound.Active())
	assert.Empty(t, rebound.StagedNew())
}

func TestFlow_CommitWritesInOneTransaction(t *testing.T) {
	repos := repository.New(tester.DB(t))
	ctx := context.Background()
	sess := session.New(time.Hour)

	flow, err := wizard(t).Bind(sess)
	require.NoError(t, err)
	flow.Start()
	require.NoError(t, flow.StageNew("Article", &models.Article{Title: "Staged", Slug: "staged"}))

	save := func(ctx context.Context, newRecs, _ []unitofwork.Staged) error {
		for _, s := range newRecs {
			a, err := unitofwork.Decode[models.Article](s)
			if err != nil {
				return err
			}
			if err := repos.Article.Save(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}

	boom := errors.New("boom")
	err = flow.Commit(ctx, repos, func(ctx context.Context, newRecs, dirty []unitofwork.Staged) error {
		if err := save(ctx, newRecs, dirty); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, flow.Active(), "failed commit keeps the staged state")
	n, err := repos.Article.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "failed commit rolls back")

	require.NoError(t, flow.Commit(ctx, repos, save))
	assert.False(t, flow.Active())
	exists, err := repos.Article.SlugExists(ctx, "staged", "")
	require.NoError(t, err)
	assert.True(t, exists)
}
