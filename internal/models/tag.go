package models

// Tag attaches a keyword to a record of another type
type Tag struct {
	Base
	TaggedClass string `json:"tagged_class" gorm:"type:varchar(64);not null;uniqueIndex:idx_tags_unique"`
	TaggedID    string `json:"tagged_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_tags_unique"`
	Content     string `json:"content" gorm:"type:varchar(64);not null;uniqueIndex:idx_tags_unique;index"`
}

func (Tag) RecordType() string { return "Tag" }
func (Tag) TableName() string  { return "tags" }

// TagCount is one entry of a tag cloud
type TagCount struct {
	Content string `json:"content"`
	Count   int    `json:"count"`
	Weight  int    `json:"weight"` // 1..5, for font sizing
}
