package models

import "fmt"

// DEnum is a database-backed enumeration whose options are editable at runtime
type DEnum struct {
	Base
	Name  string      `json:"name" gorm:"type:varchar(128);uniqueIndex;not null"`
	Items []DEnumItem `json:"items" gorm:"foreignKey:DEnumID"`
}

func (DEnum) RecordType() string { return "DEnum" }
func (DEnum) TableName() string  { return "denums" }

// Options returns item values in display order.
func (d *DEnum) Options() []string {
	out := make([]string, 0, len(d.Items))
	for _, item := range d.Items {
		out = append(out, item.Value)
	}
	return out
}

// ItemByID finds an item of this enum.
func (d *DEnum) ItemByID(id string) (*DEnumItem, bool) {
	for i := range d.Items {
		if d.Items[i].ID == id {
			return &d.Items[i], true
		}
	}
	return nil, false
}

// DEnumItem is one option of a DEnum
type DEnumItem struct {
	Base
	DEnumID      string `json:"denum_id" gorm:"column:denum_id;type:varchar(36);index;not null"`
	Value        string `json:"value" gorm:"type:varchar(255);not null"`
	DisplayOrder int    `json:"display_order"`
}

func (DEnumItem) RecordType() string { return "DEnumItem" }
func (DEnumItem) TableName() string  { return "denum_items" }

// Sequence is a named counter
type Sequence struct {
	Base
	Prefix string `json:"prefix" gorm:"type:varchar(32);uniqueIndex;not null"`
	Value  int64  `json:"value"`
}

func (Sequence) RecordType() string { return "Sequence" }
func (Sequence) TableName() string  { return "sequences" }

// String renders the sequence as PREFIX-N.
func (s *Sequence) String() string {
	return fmt.Sprintf("%s-%d", s.Prefix, s.Value)
}
