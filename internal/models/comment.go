package models

// ArticleComment represents a comment on an article
type ArticleComment struct {
	Base
	ArticleID  string `json:"article_id" gorm:"type:varchar(36);index;not null"`
	PersonID   string `json:"person_id" gorm:"type:varchar(36)"`
	AuthorName string `json:"author_name" gorm:"type:varchar(100)"`
	Content    string `json:"content" gorm:"type:text;not null"`
}

func (ArticleComment) RecordType() string { return "ArticleComment" }
func (ArticleComment) TableName() string  { return "article_comments" }

// MaxCommentWords is the maximum allowed words in a comment body
const MaxCommentWords = 500
