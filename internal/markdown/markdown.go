// Package markdown renders user-written markdown to sanitized HTML.
package markdown

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// Heading is one table-of-contents entry.
type Heading struct {
	Level  int
	Text   string
	Anchor string
}

// Document is rendered markdown.
type Document struct {
	HTML template.HTML
	TOC  []Heading
}

// Renderer converts markdown with GFM tables, strikethrough, task lists,
// autolinks and footnotes. Output is passed through a UGC sanitizing policy.
type Renderer struct {
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	strict   *bluemonday.Policy
	tocDepth int
}

// New creates a renderer whose TOC lists headings up to level 3.
func New() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6", "li", "sup")
	policy.AllowAttrs("class").Matching(regexp.MustCompile(`^(language-[\w-]+|footnotes|footnote-ref|footnote-backref)$`)).OnElements("code", "div", "a", "section")
	policy.AllowAttrs("role").Matching(regexp.MustCompile(`^doc-(noteref|backlink|endnotes)$`)).OnElements("a", "div", "section")
	policy.AllowAttrs("type", "checked", "disabled").OnElements("input")

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		policy:   policy,
		strict:   bluemonday.StrictPolicy(),
		tocDepth: 3,
	}
}

// Render converts src and extracts its table of contents.
func (r *Renderer) Render(src string) (Document, error) {
	source := []byte(src)
	doc := r.md.Parser().Parse(text.NewReader(source))

	var toc []Heading
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || h.Level > r.tocDepth {
			return ast.WalkContinue, nil
		}
		heading := Heading{Level: h.Level, Text: plainText(h, source)}
		if id, ok := h.AttributeString("id"); ok {
			if b, ok := id.([]byte); ok {
				heading.Anchor = string(b)
			}
		}
		toc = append(toc, heading)
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return Document{}, fmt.Errorf("walk markdown: %w", err)
	}

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, doc); err != nil {
		return Document{}, fmt.Errorf("render markdown: %w", err)
	}

	return Document{
		HTML: template.HTML(r.policy.SanitizeBytes(buf.Bytes())),
		TOC:  toc,
	}, nil
}

// HTML renders src, dropping the TOC.
func (r *Renderer) HTML(src string) (template.HTML, error) {
	doc, err := r.Render(src)
	return doc.HTML, err
}

var spaces = regexp.MustCompile(`\s+`)

// Excerpt returns at most n runes of the plain text of src, cut at a word
// boundary, with an ellipsis when truncated.
func (r *Renderer) Excerpt(src string, n int) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		buf.Reset()
		buf.WriteString(src)
	}

	plain := html.UnescapeString(r.strict.Sanitize(buf.String()))
	plain = strings.TrimSpace(spaces.ReplaceAllString(plain, " "))
	if utf8.RuneCountInString(plain) <= n {
		return plain
	}

	runes := []rune(plain)
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " .,;:") + "…"
}

func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
