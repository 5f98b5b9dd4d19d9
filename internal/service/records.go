package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/export"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/alpha-framework/alpha/internal/validation"
)

// RecordType is the surface the generic record controller drives. Records
// are passed around as pointers to the concrete model.
type RecordType interface {
	Name() string
	Columns() []string
	List(ctx context.Context, page repository.Page) (RecordList, error)
	Count(ctx context.Context) (int64, error)
	Load(ctx context.Context, id string) (any, error)
	Fields(rec any) [][2]string
	Create(ctx context.Context, body []byte) (any, error)
	Update(ctx context.Context, id string, body []byte) (any, error)
	Delete(ctx context.Context, id string, version int) error
}

// RecordList is one page of records with their tabular rendering.
type RecordList struct {
	Records any
	Rows    [][]string
	IDs     []string
}

// Records maps record type names to their handlers.
type Records struct {
	types map[string]RecordType
}

// Lookup finds a record type by name, case-insensitively.
func (r *Records) Lookup(name string) (RecordType, error) {
	rt, ok := r.types[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("record type %q: %w", name, apperr.ErrResourceNotFound)
	}
	return rt, nil
}

// Names lists the registered record types.
func (r *Records) Names() []string {
	names := make([]string, 0, len(r.types))
	for _, rt := range r.types {
		names = append(names, rt.Name())
	}
	sort.Strings(names)
	return names
}

func (r *Records) register(rt RecordType) {
	r.types[strings.ToLower(rt.Name())] = rt
}

func newRecords(repos *repository.Repositories, articles ArticleService, v *validation.Validator) *Records {
	r := &Records{types: make(map[string]RecordType)}

	r.register(&recordType[models.Article]{
		store:   repos.Article,
		columns: export.ArticleColumns,
		create: func(ctx context.Context, body []byte) (*models.Article, error) {
			in, err := decodeArticleInput(body)
			if err != nil {
				return nil, err
			}
			return articles.Create(ctx, nil, in)
		},
		update: func(ctx context.Context, id string, body []byte) (*models.Article, error) {
			in, err := decodeArticleInput(body)
			if err != nil {
				return nil, err
			}
			return articles.UpdateByID(ctx, id, in)
		},
		remove: func(ctx context.Context, a *models.Article) error {
			return articles.Delete(ctx, a.Slug, a.Version)
		},
		load: func(ctx context.Context, a *models.Article) error {
			tags, err := repos.Tag.ForRecord(ctx, a.RecordType(), a.ID)
			if err != nil {
				return err
			}
			for _, t := range tags {
				a.Tags = append(a.Tags, t.Content)
			}
			return nil
		},
	})

	r.register(&recordType[models.ArticleComment]{
		store:    repos.Comment,
		columns:  export.CommentColumns,
		validate: v.ValidateComment,
	})

	r.register(&recordType[models.Person]{
		store:    repos.Person,
		columns:  export.PersonColumns,
		validate: v.ValidatePerson,
		create: func(context.Context, []byte) (*models.Person, error) {
			return nil, fmt.Errorf("people are created by registration: %w", apperr.ErrIllegalArgument)
		},
		load: func(ctx context.Context, p *models.Person) error {
			full, err := repos.Person.LoadWithRights(ctx, p.ID)
			if err != nil {
				return err
			}
			p.Rights = full.Rights
			return nil
		},
	})

	r.register(&recordType[models.Rights]{
		store:   repos.Rights,
		columns: rightsColumns,
		validate: func(rights *models.Rights) []apperr.FieldError {
			if !validation.IsAlphaNum(rights.Name) {
				return []apperr.FieldError{{Field: "name", Message: "name must be letters and digits", Value: rights.Name}}
			}
			return nil
		},
	})

	r.register(&recordType[models.Tag]{
		store:    repos.Tag,
		columns:  tagColumns,
		validate: v.ValidateTag,
	})

	r.register(&recordType[models.DEnum]{
		store:    repos.DEnum,
		columns:  denumColumns,
		readOnly: true,
	})

	r.register(&recordType[models.Sequence]{
		store:    repos.Sequence,
		columns:  sequenceColumns,
		readOnly: true,
	})

	return r
}

func decodeArticleInput(body []byte) (*models.ArticleInput, error) {
	var in models.ArticleInput
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("decode article: %v: %w", err, apperr.ErrIllegalArgument)
	}
	return &in, nil
}

var rightsColumns = export.Columns[models.Rights]{
	Header: []string{"id", "name", "version"},
	Row: func(r *models.Rights) []string {
		return []string{r.ID, r.Name, strconv.Itoa(r.Version)}
	},
}

var tagColumns = export.Columns[models.Tag]{
	Header: []string{"id", "tagged_class", "tagged_id", "content"},
	Row: func(t *models.Tag) []string {
		return []string{t.ID, t.TaggedClass, t.TaggedID, t.Content}
	},
}

var denumColumns = export.Columns[models.DEnum]{
	Header: []string{"id", "name", "options", "version"},
	Row: func(d *models.DEnum) []string {
		return []string{d.ID, d.Name, strings.Join(d.Options(), ", "), strconv.Itoa(d.Version)}
	},
}

var sequenceColumns = export.Columns[models.Sequence]{
	Header: []string{"id", "prefix", "value", "current"},
	Row: func(s *models.Sequence) []string {
		return []string{s.ID, s.Prefix, strconv.FormatInt(s.Value, 10), s.String()}
	},
}

// recordType adapts a RecordStore to RecordType. The optional hooks replace
// the plain store behaviour for types with extra rules.
type recordType[T any] struct {
	store    repository.RecordStore[T]
	columns  export.Columns[T]
	validate func(*T) []apperr.FieldError
	readOnly bool

	create func(ctx context.Context, body []byte) (*T, error)
	update func(ctx context.Context, id string, body []byte) (*T, error)
	remove func(ctx context.Context, rec *T) error
	load   func(ctx context.Context, rec *T) error
}

func (t *recordType[T]) Name() string {
	var zero T
	return any(&zero).(models.Record).RecordType()
}

func (t *recordType[T]) Columns() []string { return t.columns.Header }

func (t *recordType[T]) List(ctx context.Context, page repository.Page) (RecordList, error) {
	recs, err := t.store.List(ctx, page)
	if err != nil {
		return RecordList{}, err
	}
	list := RecordList{Records: recs, Rows: make([][]string, 0, len(recs)), IDs: make([]string, 0, len(recs))}
	for _, rec := range recs {
		list.Rows = append(list.Rows, t.columns.Row(rec))
		list.IDs = append(list.IDs, any(rec).(models.Record).GetID())
	}
	return list, nil
}

func (t *recordType[T]) Count(ctx context.Context) (int64, error) {
	return t.store.Count(ctx)
}

func (t *recordType[T]) Load(ctx context.Context, id string) (any, error) {
	rec, err := t.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.load != nil {
		if err := t.load(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (t *recordType[T]) Fields(rec any) [][2]string {
	r, ok := rec.(*T)
	if !ok {
		return nil
	}
	row := t.columns.Row(r)
	fields := make([][2]string, 0, len(row))
	for i, name := range t.columns.Header {
		fields = append(fields, [2]string{name, row[i]})
	}
	return fields
}

func (t *recordType[T]) Create(ctx context.Context, body []byte) (any, error) {
	if t.readOnly {
		return nil, fmt.Errorf("%s records are read-only: %w", t.Name(), apperr.ErrIllegalArgument)
	}
	if t.create != nil {
		return t.create(ctx, body)
	}

	rec := new(T)
	if err := json.Unmarshal(body, rec); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", t.Name(), err, apperr.ErrIllegalArgument)
	}
	r := any(rec).(models.Record)
	r.SetID("")
	r.SetVersion(0)
	if err := t.check(rec); err != nil {
		return nil, err
	}
	if err := t.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update merges the JSON body into the stored record. The body's version is
// the one checked by optimistic locking and the id cannot be changed.
func (t *recordType[T]) Update(ctx context.Context, id string, body []byte) (any, error) {
	if t.readOnly {
		return nil, fmt.Errorf("%s records are read-only: %w", t.Name(), apperr.ErrIllegalArgument)
	}
	var lock struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(body, &lock); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", t.Name(), err, apperr.ErrIllegalArgument)
	}
	if lock.Version == nil || *lock.Version <= 0 {
		return nil, fmt.Errorf("%s update needs the version being replaced: %w", t.Name(), apperr.ErrIllegalArgument)
	}
	if t.update != nil {
		return t.update(ctx, id, body)
	}

	rec, err := t.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, rec); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", t.Name(), err, apperr.ErrIllegalArgument)
	}
	any(rec).(models.Record).SetID(id)

	if err := t.check(rec); err != nil {
		return nil, err
	}
	if err := t.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (t *recordType[T]) Delete(ctx context.Context, id string, version int) error {
	if t.readOnly {
		return fmt.Errorf("%s records are read-only: %w", t.Name(), apperr.ErrIllegalArgument)
	}
	rec, err := t.store.Load(ctx, id)
	if err != nil {
		return err
	}
	any(rec).(models.Record).SetVersion(version)
	if t.remove != nil {
		return t.remove(ctx, rec)
	}
	return t.store.Delete(ctx, rec)
}

func (t *recordType[T]) check(rec *T) error {
	if t.validate == nil {
		return nil
	}
	if errs := t.validate(rec); len(errs) > 0 {
		return apperr.NewValidation(t.Name(), errs)
	}
	return nil
}
