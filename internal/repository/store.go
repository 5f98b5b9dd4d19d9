package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/database"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter narrows a query. Filters are gorm scopes.
type Filter = func(*gorm.DB) *gorm.DB

// Where filters on column = value.
func Where(column string, value any) Filter {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{Column: clause.Column{Name: column}, Value: value})
	}
}

// Page selects a window of rows. A zero Limit means no limit.
type Page struct {
	Offset int
	Limit  int
	Order  string
}

func (p Page) apply(db *gorm.DB) *gorm.DB {
	order := p.Order
	if order == "" {
		order = "created_at desc"
	}
	db = db.Order(order)
	if p.Offset > 0 {
		db = db.Offset(p.Offset)
	}
	if p.Limit > 0 {
		db = db.Limit(p.Limit)
	}
	return db
}

// RecordStore is the save/load/delete surface every record type gets.
type RecordStore[T any] interface {
	Load(ctx context.Context, id string) (*T, error)
	Save(ctx context.Context, rec *T) error
	Delete(ctx context.Context, rec *T) error
	List(ctx context.Context, page Page, filters ...Filter) ([]*T, error)
	Count(ctx context.Context, filters ...Filter) (int64, error)
	StreamAll(ctx context.Context, fn func(*T) error) error
}

type recordPtr[T any] interface {
	*T
	models.Record
}

// Store implements RecordStore for one record type using gorm, with
// optimistic locking on the version column.
type Store[T any, P recordPtr[T]] struct {
	db *database.DB
}

// NewStore creates a store for record type T.
func NewStore[T any, P recordPtr[T]](db *database.DB) *Store[T, P] {
	return &Store[T, P]{db: db}
}

func (s *Store[T, P]) conn(ctx context.Context) *gorm.DB {
	return conn(ctx, s.db)
}

func (s *Store[T, P]) recordType() string {
	var zero T
	return P(&zero).RecordType()
}

// Load fetches a record by id.
func (s *Store[T, P]) Load(ctx context.Context, id string) (*T, error) {
	var rec T
	err := s.conn(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s %s: %w", s.recordType(), id, apperr.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", s.recordType(), id, err)
	}
	return &rec, nil
}

// Save inserts a transient record (version 0) or updates a persisted one.
// Updates only apply when the stored version equals the record's version;
// otherwise apperr.ErrLocking is returned and the record is left unchanged.
func (s *Store[T, P]) Save(ctx context.Context, rec *T) error {
	p := P(rec)
	p.Stamp(ActorFrom(ctx), time.Now().UTC())

	if p.GetVersion() == 0 {
		if p.GetID() == "" {
			p.SetID(uuid.NewString())
		}
		p.SetVersion(1)
		if err := s.conn(ctx).Omit(clause.Associations).Create(rec).Error; err != nil {
			p.SetVersion(0)
			return fmt.Errorf("insert %s: %w", p.RecordType(), err)
		}
		return nil
	}

	old := p.GetVersion()
	p.SetVersion(old + 1)
	res := s.conn(ctx).Model(rec).
		Where("version = ?", old).
		Select("*").
		Omit("id", "created_at", "created_by", clause.Associations).
		Updates(rec)
	if res.Error != nil {
		p.SetVersion(old)
		return fmt.Errorf("update %s %s: %w", p.RecordType(), p.GetID(), res.Error)
	}
	if res.RowsAffected == 0 {
		p.SetVersion(old)
		return fmt.Errorf("update %s %s (version %d): %w", p.RecordType(), p.GetID(), old, apperr.ErrLocking)
	}
	return nil
}

// Delete removes a record if its stored version still matches.
func (s *Store[T, P]) Delete(ctx context.Context, rec *T) error {
	p := P(rec)
	res := s.conn(ctx).Where("version = ?", p.GetVersion()).Delete(rec)
	if res.Error != nil {
		return fmt.Errorf("delete %s %s: %w", p.RecordType(), p.GetID(), res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := s.conn(ctx).Model(new(T)).Where("id = ?", p.GetID()).Count(&n).Error; err != nil {
		return fmt.Errorf("delete %s %s: %w", p.RecordType(), p.GetID(), err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", p.RecordType(), p.GetID(), apperr.ErrRecordNotFound)
	}
	return fmt.Errorf("delete %s %s (version %d): %w", p.RecordType(), p.GetID(), p.GetVersion(), apperr.ErrLocking)
}

// List returns a page of records matching the filters.
func (s *Store[T, P]) List(ctx context.Context, page Page, filters ...Filter) ([]*T, error) {
	var recs []*T
	if err := page.apply(s.conn(ctx).Scopes(filters...)).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", s.recordType(), err)
	}
	return recs, nil
}

// Count returns the number of records matching the filters.
func (s *Store[T, P]) Count(ctx context.Context, filters ...Filter) (int64, error) {
	var n int64
	if err := s.conn(ctx).Model(new(T)).Scopes(filters...).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", s.recordType(), err)
	}
	return n, nil
}

// StreamAll walks every record in creation order without loading them all.
func (s *Store[T, P]) StreamAll(ctx context.Context, fn func(*T) error) error {
	db := s.conn(ctx)
	rows, err := db.Model(new(T)).Order("created_at").Rows()
	if err != nil {
		return fmt.Errorf("stream %s: %w", s.recordType(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec T
		if err := db.ScanRows(rows, &rec); err != nil {
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return rows.Err()
}
