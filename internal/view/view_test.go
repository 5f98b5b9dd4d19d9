package view_test

import (
	"bytes"
	"html"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/pagination"
	"github.com/alpha-framework/alpha/internal/security"
	"github.com/alpha-framework/alpha/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func newRenderer(t *testing.T) (*view.Renderer, *security.Tokenizer) {
	t.Helper()
	tk, err := security.NewTokenizer(secret)
	require.NoError(t, err)
	r, err := view.New(tk, view.Site{Title: "Alpha", Description: "Articles", URL: "http://localhost"})
	require.NoError(t, err)
	return r, tk
}

func render(t *testing.T, r *view.Renderer, name string, page view.Page) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, name, page))
	return buf.String()
}

func TestRenderer_AllPagesParsed(t *testing.T) {
	r, _ := newRenderer(t)
	for _, name := range []string{
		"article/list", "article/detail", "article/edit",
		"record/list", "record/detail",
		"error", "login", "tags", "search", "uow/step", "logs",
	} {
		assert.True(t, r.Has(name), name)
	}
	assert.False(t, r.Has("layout"))
}

func TestRenderer_Select(t *testing.T) {
	r, _ := newRenderer(t)

	tests := []struct {
		recordType string
		action     string
		want       string
	}{
		{"Article", "list", "article/list"},
		{"Article", "detail", "article/detail"},
		{"Person", "list", "record/list"},
		{"DEnum", "detail", "record/detail"},
	}
	for _, tt := range tests {
		if got := r.Select(tt.recordType, tt.action); got != tt.want {
			t.Errorf("Select(%q, %q) = %q, want %q", tt.recordType, tt.action, got, tt.want)
		}
	}
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	r, _ := newRenderer(t)
	err := r.Render(&bytes.Buffer{}, "nope", view.Page{})
	assert.Error(t, err)
}

func TestRender_ArticleList(t *testing.T) {
	r, _ := newRenderer(t)
	published := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	articles := []*models.Article{
		{Base: models.Base{ID: "a1"}, Title: "First <post>", Slug: "first-post", Published: true, PublishedAt: &published, Tags: []string{"go"}},
	}

	out := render(t, r, "article/list", view.Page{
		Title: "Home",
		Data: view.List{
			Records: articles,
			Pager:   pagination.New(25, 10, 10),
			BaseURL: "/",
			Extra:   map[string]any{"Cloud": []models.TagCount{{Content: "go", Count: 1, Weight: 3}}},
		},
	})

	assert.Contains(t, out, "<title>Home | Alpha</title>")
	assert.Contains(t, out, `href="/articles/first-post"`)
	assert.Contains(t, out, "First &lt;post&gt;")
	assert.Contains(t, out, "9 Mar 2024")
	assert.Contains(t, out, `<ul class="pagination">`)
	assert.Contains(t, out, `<li class="active"><span>2</span></li>`)
	assert.Contains(t, out, "font-size: 1.4em")
	assert.Contains(t, out, `href="/login"`)
}

type comment struct {
	ID         string
	AuthorName string
	HTML       string
	CreatedAt  time.Time
}

func TestRender_ArticleDetail(t *testing.T) {
	r, tk := newRenderer(t)
	admin := &models.Person{Username: "root", Rights: []models.Rights{{Name: models.RightsAdmin}}}
	a := &models.Article{Base: models.Base{ID: "a1", Version: 4}, Title: "Hello", Slug: "hello", Published: true, AllowComments: true}

	out := render(t, r, "article/detail", view.Page{
		Person: admin,
		Data: view.Detail{
			Type:   "Article",
			Record: a,
			Extra: map[string]any{
				"HTML":     "<p>body <strong>bold</strong></p>",
				"Comments": []comment{{ID: "c1", AuthorName: "bob", HTML: "<p>nice</p>"}},
			},
		},
	})

	assert.Contains(t, out, "<p>body <strong>bold</strong></p>")
	assert.Contains(t, out, "<p>nice</p>")
	assert.Contains(t, out, `action="/comments/c1/delete"`)
	assert.Contains(t, out, `action="/articles/hello/delete"`)
	assert.Contains(t, out, `action="/articles/hello/comments"`)
	assert.Contains(t, out, "root")

	m := regexp.MustCompile(`href="(/articles/hello/pdf\?[^"]+)"`).FindStringSubmatch(out)
	require.NotNil(t, m, "pdf link")
	u, err := url.Parse(html.UnescapeString(m[1]))
	require.NoError(t, err)
	values, err := tk.ResolveQuery(u.Query())
	require.NoError(t, err)
	assert.Equal(t, "4", values.Get("version"))
}

func TestRender_ArticleDetail_DraftHasNoPDFLink(t *testing.T) {
	r, _ := newRenderer(t)
	a := &models.Article{Base: models.Base{ID: "a2", Version: 1}, Title: "Draft", Slug: "draft"}

	out := render(t, r, "article/detail", view.Page{Data: view.Detail{Type: "Article", Record: a}})

	assert.Contains(t, out, "Draft")
	assert.NotContains(t, out, "/articles/draft/pdf")
}

func TestRender_ArticleDetail_AnonymousHasNoForms(t *testing.T) {
	r, _ := newRenderer(t)
	a := &models.Article{Title: "Hello", Slug: "hello", AllowComments: true}

	out := render(t, r, "article/detail", view.Page{Data: view.Detail{Type: "Article", Record: a}})

	assert.NotContains(t, out, "/delete")
	assert.NotContains(t, out, "comment-form")
	assert.NotContains(t, out, "/edit")
}

func TestRender_RecordFallback(t *testing.T) {
	r, _ := newRenderer(t)

	out := render(t, r, r.Select("Person", "list"), view.Page{
		Data: view.List{
			Type:    "Person",
			Columns: []string{"id", "username"},
			Rows:    [][]string{{"p1", "alice"}, {"p2", "<bob>"}},
			IDs:     []string{"p1", "p2"},
			BaseURL: "/admin/records/person",
			Pager:   pagination.New(2, 10, 0),
		},
	})
	assert.Contains(t, out, "<th>username</th>")
	assert.Contains(t, out, "&lt;bob&gt;")
	assert.Contains(t, out, `href="/admin/records/person/p2"`)
	assert.NotContains(t, out, "pagination")

	out = render(t, r, r.Select("Person", "detail"), view.Page{
		Data: view.Detail{Type: "Person", ID: "p1", Fields: []view.Field{{Name: "username", Value: "alice"}}},
	})
	assert.Contains(t, out, "<dt>username</dt><dd>alice</dd>")
	assert.Contains(t, out, `href="/admin/records/person"`)
}

func TestRender_ArticleEdit(t *testing.T) {
	r, _ := newRenderer(t)
	out := render(t, r, "article/edit", view.Page{
		Data: view.ArticleForm{
			Action:   "/articles",
			Input:    models.ArticleInput{Title: "Draft", SectionID: "s2"},
			Tags:     "go, web",
			Sections: []models.DEnumItem{{Base: models.Base{ID: "s1"}, Value: "News"}, {Base: models.Base{ID: "s2"}, Value: "Tech"}},
			Errors:   []apperr.FieldError{{Field: "content", Message: "is required"}},
		},
	})
	assert.Contains(t, out, "New article")
	assert.Contains(t, out, `<option value="s2" selected>Tech</option>`)
	assert.Contains(t, out, `<strong>content</strong>: is required`)
	assert.Contains(t, out, `value="go, web"`)
}

func TestRender_Error(t *testing.T) {
	r, _ := newRenderer(t)
	out := render(t, r, "error", view.Page{
		Title: "Not Found",
		Data:  view.ErrorPage{Status: 404, Message: "no article <x>"},
	})
	assert.Contains(t, out, "<h1>404</h1>")
	assert.Contains(t, out, "no article &lt;x&gt;")
}

func TestRender_Wizard(t *testing.T) {
	r, _ := newRenderer(t)
	out := render(t, r, "uow/step", view.Page{
		Data: view.Wizard{
			Unit:     "article-wizard",
			Step:     "tags",
			Steps:    []string{"details", "tags", "confirm"},
			Position: 2,
			Tags:     "go",
		},
	})
	assert.Contains(t, out, "step 2 of 3")
	assert.Contains(t, out, `action="/uow/article-wizard/tags"`)
	assert.Contains(t, out, `value="previous"`)
	assert.Contains(t, out, `value="next"`)
	assert.NotContains(t, out, `value="commit"`)
}
