package models

import (
	"time"
)

// SectionEnum is the DEnum holding the article section options.
const SectionEnum = "Article.section"

// Article represents a published or draft article
type Article struct {
	Base
	Title         string     `json:"title" gorm:"type:varchar(255);not null"`
	Slug          string     `json:"slug" gorm:"type:varchar(255);uniqueIndex;not null"`
	Description   string     `json:"description" gorm:"type:varchar(500)"`
	Author        string     `json:"author" gorm:"type:varchar(100)"`
	SectionID     string     `json:"section_id,omitempty" gorm:"type:varchar(36);index"`
	Content       string     `json:"content" gorm:"type:text"`
	Published     bool       `json:"published" gorm:"index"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	HeaderImage   string     `json:"header_image,omitempty" gorm:"type:varchar(500)"`
	ViewCount     int        `json:"view_count"`
	AllowComments bool       `json:"allow_comments"`
	Tags          []string   `json:"tags" gorm:"-"`
}

func (Article) RecordType() string { return "Article" }
func (Article) TableName() string  { return "articles" }

// Publish marks the article as published, keeping the first publication date.
func (a *Article) Publish(now time.Time) {
	a.Published = true
	if a.PublishedAt == nil {
		a.PublishedAt = &now
	}
}

// Unpublish returns the article to draft state.
func (a *Article) Unpublish() {
	a.Published = false
	a.PublishedAt = nil
}

// ArticleInput is the editable subset of an article accepted from forms and JSON
type ArticleInput struct {
	Title         string   `json:"title" form:"title"`
	Description   string   `json:"description" form:"description"`
	SectionID     string   `json:"section_id" form:"section_id"`
	Content       string   `json:"content" form:"content"`
	HeaderImage   string   `json:"header_image" form:"header_image"`
	Published     bool     `json:"published" form:"published"`
	AllowComments bool     `json:"allow_comments" form:"allow_comments"`
	Tags          []string `json:"tags" form:"tags"`
	Version       int      `json:"version" form:"version"`
}
