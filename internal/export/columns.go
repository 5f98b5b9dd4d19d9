package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/alpha-framework/alpha/internal/models"
)

const timeLayout = time.RFC3339

// Columns flattens a record type into a tabular row.
type Columns[T any] struct {
	Header []string
	Row    func(*T) []string
}

// PersonColumns never include the password hash.
var PersonColumns = Columns[models.Person]{
	Header: []string{"id", "username", "email", "display_name", "state", "version", "created_at", "updated_at"},
	Row: func(p *models.Person) []string {
		return []string{
			p.ID, p.Username, p.Email, p.DisplayName, p.State,
			strconv.Itoa(p.Version), formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
		}
	},
}

var ArticleColumns = Columns[models.Article]{
	Header: []string{"id", "slug", "title", "author", "section_id", "published", "published_at", "view_count", "tags", "version", "created_at", "updated_at"},
	Row: func(a *models.Article) []string {
		published := ""
		if a.PublishedAt != nil {
			published = formatTime(*a.PublishedAt)
		}
		return []string{
			a.ID, a.Slug, a.Title, a.Author, a.SectionID,
			strconv.FormatBool(a.Published), published, strconv.Itoa(a.ViewCount),
			strings.Join(a.Tags, ","),
			strconv.Itoa(a.Version), formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
		}
	},
}

var CommentColumns = Columns[models.ArticleComment]{
	Header: []string{"id", "article_id", "person_id", "author_name", "content", "created_at"},
	Row: func(c *models.ArticleComment) []string {
		return []string{c.ID, c.ArticleID, c.PersonID, c.AuthorName, c.Content, formatTime(c.CreatedAt)}
	},
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
