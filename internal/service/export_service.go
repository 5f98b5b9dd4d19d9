package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/export"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/rs/zerolog"
)

// exportService is the concrete implementation of ExportService
type exportService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

// newExportService creates a new ExportService
func newExportService(repos *repository.Repositories, log zerolog.Logger) *exportService {
	return &exportService{
		repos: repos,
		log:   log.With().Str("service", "export").Logger(),
	}
}

// streamRecords writes every record of a store through ew.
func streamRecords[T any](ctx context.Context, store repository.RecordStore[T], cols export.Columns[T], ew export.Writer) (int, error) {
	count := 0
	err := store.StreamAll(ctx, func(rec *T) error {
		if err := ew.Write(rec, cols.Row(rec)); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func validateExport(resource, format string) error {
	if !models.ValidResources[resource] {
		return fmt.Errorf("unknown resource %q: %w", resource, apperr.ErrIllegalArgument)
	}
	if !models.ValidFormats[format] {
		return fmt.Errorf("unsupported format %q: %w", format, apperr.ErrIllegalArgument)
	}
	return nil
}

func header(resource string) []string {
	switch resource {
	case models.ResourcePeople:
		return export.PersonColumns.Header
	case models.ResourceArticles:
		return export.ArticleColumns.Header
	default:
		return export.CommentColumns.Header
	}
}

// Stream writes a whole resource in the given format and returns the number
// of records written.
func (s *exportService) Stream(ctx context.Context, w io.Writer, resource, format string) (int, error) {
	if err := validateExport(resource, format); err != nil {
		return 0, err
	}

	start := time.Now()
	s.log.Info().Str("resource", resource).Str("format", format).Msg("Starting export")

	ew, err := export.NewWriter(w, format, resource, header(resource))
	if err != nil {
		return 0, err
	}

	count, err := s.writeResource(ctx, ew, resource)
	if err != nil {
		return count, fmt.Errorf("export %s: %w", resource, err)
	}
	if err := ew.Close(); err != nil {
		return count, fmt.Errorf("export %s: %w", resource, err)
	}

	s.log.Info().
		Str("resource", resource).
		Str("format", format).
		Int("count", count).
		Dur("duration", time.Since(start)).
		Msg("Export completed")
	return count, nil
}

func (s *exportService) writeResource(ctx context.Context, ew export.Writer, resource string) (int, error) {
	switch resource {
	case models.ResourcePeople:
		return streamRecords[models.Person](ctx, s.repos.Person, export.PersonColumns, ew)
	case models.ResourceArticles:
		return streamRecords[models.Article](ctx, s.repos.Article, export.ArticleColumns, ew)
	case models.ResourceComments:
		return streamRecords[models.ArticleComment](ctx, s.repos.Comment, export.CommentColumns, ew)
	default:
		return 0, fmt.Errorf("unknown resource %q: %w", resource, apperr.ErrIllegalArgument)
	}
}

// Workbook writes an XLSX document with one sheet per resource. With no
// resources every resource is included.
func (s *exportService) Workbook(ctx context.Context, w io.Writer, resources ...string) error {
	if len(resources) == 0 {
		resources = []string{models.ResourcePeople, models.ResourceArticles, models.ResourceComments}
	}
	for _, r := range resources {
		if err := validateExport(r, models.FormatXLSX); err != nil {
			return err
		}
	}

	wb := export.NewWorkbook()
	defer wb.Close()

	for _, resource := range resources {
		sheet, err := wb.AddSheet(resource, header(resource))
		if err != nil {
			return err
		}
		count, err := s.writeResource(ctx, sheetWriter{sheet}, resource)
		if err != nil {
			return fmt.Errorf("workbook %s: %w", resource, err)
		}
		s.log.Debug().Str("resource", resource).Int("count", count).Msg("Workbook sheet written")
	}
	return wb.Save(w)
}

// sheetWriter adapts a worksheet to export.Writer.
type sheetWriter struct {
	sheet *export.Sheet
}

func (sw sheetWriter) Write(_ any, row []string) error { return sw.sheet.Append(row) }
func (sw sheetWriter) Close() error                    { return nil }

// GetCount returns count for a resource
func (s *exportService) GetCount(ctx context.Context, resource string) (int64, error) {
	switch resource {
	case models.ResourcePeople:
		return s.repos.Person.Count(ctx)
	case models.ResourceArticles:
		return s.repos.Article.Count(ctx)
	case models.ResourceComments:
		return s.repos.Comment.Count(ctx)
	default:
		return 0, fmt.Errorf("unknown resource %q: %w", resource, apperr.ErrIllegalArgument)
	}
}
