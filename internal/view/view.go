// Package view renders server-side HTML pages from embedded templates.
//
// Each page template lives in templates/<name>.html and is executed inside
// templates/layout.html. Pages about a record type are looked up as
// "<type>/<action>" first and fall back to the generic "record/<action>".
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/pagination"
	"github.com/alpha-framework/alpha/internal/security"
)

//go:embed templates
var templatesFS embed.FS

const (
	layoutFile   = "templates/layout.html"
	partialsGlob = "templates/partials/*.html"
)

// Site is the information every page shows.
type Site struct {
	Title       string
	Description string
	URL         string
}

// Page is the data passed to every template.
type Page struct {
	Site    Site
	Title   string
	Person  *models.Person
	Flash   string
	Error   string
	Path    string
	Data    any
	Version string
}

// IsAdmin reports whether the viewer holds Admin rights.
func (p Page) IsAdmin() bool {
	return p.Person != nil && p.Person.InRights(models.RightsAdmin)
}

// CanEdit reports whether the viewer holds Standard rights.
func (p Page) CanEdit() bool {
	return p.Person != nil && p.Person.InRights(models.RightsStandard)
}

// List is the data of a "<type>/list" page.
type List struct {
	Type    string
	Heading string
	Columns []string
	Records any
	Rows    [][]string
	IDs     []string
	Pager   pagination.Paginator
	BaseURL string
	Extra   map[string]any
}

// Field is one labelled value of a "<type>/detail" page.
type Field struct {
	Name  string
	Value string
}

// Detail is the data of a "<type>/detail" page.
type Detail struct {
	Type   string
	ID     string
	Record any
	Fields []Field
	Extra  map[string]any
}

// ArticleForm is the data of the article editor.
type ArticleForm struct {
	Action   string
	Slug     string
	Input    models.ArticleInput
	Tags     string
	Sections []models.DEnumItem
	Errors   []apperr.FieldError
}

// Login is the data of the login page.
type Login struct {
	Username string
	Next     string
}

// ErrorPage is the data of the error page.
type ErrorPage struct {
	Status  int
	Message string
	Fields  []apperr.FieldError
}

// Wizard is the data of one unit of work step.
type Wizard struct {
	Unit     string
	Step     string
	Steps    []string
	Position int
	IsFirst  bool
	IsLast   bool
	Input    models.ArticleInput
	Tags     string
	Sections []models.DEnumItem
	Errors   []apperr.FieldError
}

// Logs is the data of the log viewer.
type Logs struct {
	Level   string
	Levels  []string
	Limit   int
	Entries any
}

// Renderer executes the embedded templates.
type Renderer struct {
	pages map[string]*template.Template
	site  Site
}

// New parses all templates. tk signs the URLs produced by the secureURL
// template function.
func New(tk *security.Tokenizer, site Site) (*Renderer, error) {
	return newRenderer(templatesFS, tk, site)
}

func newRenderer(fsys fs.FS, tk *security.Tokenizer, site Site) (*Renderer, error) {
	base, err := template.New("base").Funcs(funcs(tk)).ParseFS(fsys, layoutFile, partialsGlob)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template), site: site}
	err = fs.WalkDir(fsys, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || p == layoutFile || strings.HasPrefix(p, "templates/partials/") || path.Ext(p) != ".html" {
			return nil
		}

		page, err := base.Clone()
		if err != nil {
			return err
		}
		if _, err := page.ParseFS(fsys, p); err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, "templates/"), ".html")
		r.pages[name] = page
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Site returns the site information.
func (r *Renderer) Site() Site { return r.site }

// Has reports whether a page template exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Select picks the template for an action on a record type: the type's own
// template when there is one, otherwise the generic record template.
func (r *Renderer) Select(recordType, action string) string {
	name := strings.ToLower(recordType) + "/" + action
	if r.Has(name) {
		return name
	}
	return "record/" + action
}

// Render executes page name inside the layout. The page is fully rendered
// before anything is written to w.
func (r *Renderer) Render(w io.Writer, name string, page Page) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("view: no template %q", name)
	}
	page.Site = r.site

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		return fmt.Errorf("view %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func funcs(tk *security.Tokenizer) template.FuncMap {
	return template.FuncMap{
		"secureURL": func(p string, kv ...string) (string, error) {
			if len(kv)%2 != 0 {
				return "", fmt.Errorf("secureURL: odd number of arguments")
			}
			values := url.Values{}
			for i := 0; i < len(kv); i += 2 {
				values.Set(kv[i], kv[i+1])
			}
			return tk.SecureURL(p, values)
		},
		"pagination": func(p pagination.Paginator, baseURL string) template.HTML {
			return p.Links(baseURL)
		},
		"safeHTML": func(s string) template.HTML {
			return template.HTML(s)
		},
		"date": func(t any) string {
			switch v := t.(type) {
			case time.Time:
				if v.IsZero() {
					return ""
				}
				return v.Format("2 Jan 2006")
			case *time.Time:
				if v == nil {
					return ""
				}
				return v.Format("2 Jan 2006")
			default:
				return ""
			}
		},
		"join":  strings.Join,
		"lower": strings.ToLower,
		"tagSize": func(weight int) string {
			return fmt.Sprintf("%.1fem", 0.8+0.2*float64(weight))
		},
	}
}
