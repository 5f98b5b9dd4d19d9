package models

import (
	"time"
)

// Record is implemented by every persisted business object. Records are
// saved, loaded and deleted through repository.Store, which uses Version for
// optimistic locking.
type Record interface {
	RecordType() string
	TableName() string
	GetID() string
	SetID(id string)
	GetVersion() int
	SetVersion(v int)
	Stamp(personID string, now time.Time)
}

// Base holds the columns shared by all records.
type Base struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Version   int       `json:"version" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by,omitempty" gorm:"type:varchar(36)"`
	UpdatedBy string    `json:"updated_by,omitempty" gorm:"type:varchar(36)"`
}

func (b *Base) GetID() string     { return b.ID }
func (b *Base) SetID(id string)   { b.ID = id }
func (b *Base) GetVersion() int   { return b.Version }
func (b *Base) SetVersion(v int)  { b.Version = v }
func (b *Base) IsTransient() bool { return b.Version == 0 }

// Stamp records who touched the record and when. CreatedBy is only set once.
func (b *Base) Stamp(personID string, now time.Time) {
	if b.CreatedBy == "" {
		b.CreatedBy = personID
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedBy = personID
	b.UpdatedAt = now
}

// All lists every record type, in dependency order, for schema creation.
func All() []any {
	return []any{
		&Rights{},
		&Person{},
		&DEnum{},
		&DEnumItem{},
		&Article{},
		&ArticleComment{},
		&Tag{},
		&Sequence{},
		&Job{},
	}
}
