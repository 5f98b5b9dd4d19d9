package service_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/filecache"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportService_Stream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ivan")
	f.register(t, "judy")

	var buf bytes.Buffer
	n, err := f.svc.Export.Stream(ctx, &buf, models.ResourcePeople, models.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "username", rows[0][1])
	assert.NotContains(t, strings.Join(rows[0], ","), "password")

	buf.Reset()
	n, err = f.svc.Export.Stream(ctx, &buf, models.ResourcePeople, models.FormatNDJSON)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var p map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &p))
		assert.NotContains(t, p, "password_hash")
		lines++
	}
	assert.Equal(t, 2, lines)

	_, err = f.svc.Export.Stream(ctx, io.Discard, "widgets", models.FormatCSV)
	assert.ErrorIs(t, err, apperr.ErrIllegalArgument)
	_, err = f.svc.Export.Stream(ctx, io.Discard, models.ResourcePeople, "yaml")
	assert.ErrorIs(t, err, apperr.ErrIllegalArgument)

	count, err := f.svc.Export.GetCount(ctx, models.ResourcePeople)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestExportService_Workbook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kim := f.register(t, "kim")
	a := f.publish(t, kim, "Sheeted")
	_, err := f.svc.Article.AddComment(ctx, a.Slug, kim, "one")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export.Workbook(ctx, &buf))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{models.ResourcePeople, models.ResourceArticles, models.ResourceComments}, wb.GetSheetList())

	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		require.NoError(t, err)
		assert.Len(t, rows, 2, sheet)
	}

	err = f.svc.Export.Workbook(ctx, io.Discard, "widgets")
	assert.ErrorIs(t, err, apperr.ErrIllegalArgument)
}

func TestJobService_ExportLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "lena")

	job, existing, err := f.svc.Job.CreateExportJob(ctx, &models.ExportRequest{
		Resource:       models.ResourcePeople,
		Format:         models.FormatJSON,
		IdempotencyKey: "nightly-1",
	})
	require.NoError(t, err)
	assert.False(t, existing)
	assert.Equal(t, models.JobStatusPending, job.Status)

	again, existing, err := f.svc.Job.CreateExportJob(ctx, &models.ExportRequest{
		Resource:       models.ResourcePeople,
		Format:         models.FormatJSON,
		IdempotencyKey: "nightly-1",
	})
	require.NoError(t, err)
	assert.True(t, existing)
	assert.Equal(t, job.ID, again.ID)

	_, _, err = f.svc.Job.OpenDownload(ctx, job.ID)
	assert.ErrorIs(t, err, apperr.ErrIllegalArgument, "pending jobs have nothing to download")

	f.svc.Job.RunPending(ctx)

	done, err := f.svc.Job.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, done.Status, done.Error)
	assert.Equal(t, 1, done.TotalRecords)
	assert.Equal(t, "/v1/exports/"+job.ID+"/download", done.DownloadURL)
	assert.NotNil(t, done.CompletedAt)

	_, file, err := f.svc.Job.OpenDownload(ctx, job.ID)
	require.NoError(t, err)
	var people []map[string]any
	require.NoError(t, json.NewDecoder(file).Decode(&people))
	require.NoError(t, file.Close())
	require.Len(t, people, 1)
	assert.Equal(t, "lena", people[0]["username"])

	byKey, err := f.svc.Job.GetJobByIdempotencyKey(ctx, "nightly-1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, byKey.ID)

	purged, err := f.svc.Job.PurgeFinished(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	_, err = os.Stat(done.FilePath)
	assert.True(t, os.IsNotExist(err))

	_, err = f.svc.Job.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, apperr.ErrResourceNotFound)
}

func TestJobService_RejectsUnknownResource(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Job.CreateExportJob(context.Background(), &models.ExportRequest{Resource: "widgets", Format: models.FormatCSV})
	assert.ErrorIs(t, err, apperr.ErrIllegalArgument)
}

func TestLogService_Tail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entries, err := f.svc.Log.Tail(ctx, 10, "")
	require.NoError(t, err)
	assert.Empty(t, entries, "missing file reads as empty")

	lines := []string{
		`{"level":"debug","time":"2024-01-01T00:00:00Z","message":"noise"}`,
		`{"level":"info","time":"2024-01-01T00:00:01Z","message":"started","port":8080}`,
		`not json at all`,
		`{"level":"error","time":"2024-01-01T00:00:02Z","message":"boom","error":"disk full","service":"job"}`,
		`{"level":"warn","time":"2024-01-01T00:00:03Z","message":"slow"}`,
	}
	require.NoError(t, os.WriteFile(f.cfg.Log.File, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	entries, err = f.svc.Log.Tail(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, "not json at all", entries[2].Message)

	entries, err = f.svc.Log.Tail(ctx, 10, "WARN")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "boom", entries[0].Message)
	assert.Equal(t, "error=disk full service=job", entries[0].Fields)
	assert.Equal(t, "slow", entries[1].Message)

	entries, err = f.svc.Log.Tail(ctx, 2, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "boom", entries[0].Message, "last entries, oldest first")

	_, err = f.svc.Log.Tail(ctx, 10, "loud")
	assert.ErrorIs(t, err, apperr.ErrIllegalArgument)
}

func TestMaintenanceService_RunOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expired := session.New(-time.Minute)
	require.NoError(t, f.sessions.Save(ctx, expired))
	live := session.New(time.Hour)
	require.NoError(t, f.sessions.Save(ctx, live))

	stale := filecache.Key{Kind: "article-html", ID: "old", Version: 1, Ext: "json"}
	require.NoError(t, f.cache.Put(ctx, stale, []byte("{}")))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(f.cache.Path(stale), old, old))
	fresh := filecache.Key{Kind: "article-html", ID: "new", Version: 1, Ext: "json"}
	require.NoError(t, f.cache.Put(ctx, fresh, []byte("{}")))

	report := f.svc.Maintenance.RunOnce(ctx)
	assert.Equal(t, 1, report.Sessions)
	assert.Equal(t, 1, report.CacheFiles)
	assert.Equal(t, 0, report.Exports)

	_, err := f.sessions.Get(ctx, live.ID)
	assert.NoError(t, err)

	n, err := f.svc.Maintenance.ClearCache()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok, err := f.cache.Get(ctx, fresh)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMaintenanceService_StartStop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Maintenance.Start())
	<-f.svc.Maintenance.Stop().Done()
}
