// Package pagination computes page windows over offset-based listings and
// renders the matching navigation links.
package pagination

import (
	"fmt"
	"html"
	"html/template"
	"net/url"
	"strings"
)

// StartParam is the query parameter holding the 0-based offset.
const StartParam = "start"

// Paginator describes one page of a listing.
type Paginator struct {
	Total   int
	PerPage int
	Start   int // offset of the first row on this page
	End     int // offset after the last row on this page
	Pages   int
	Current int // 1-based page number
}

// New computes the page containing offset start. Negative offsets clamp to 0
// and offsets past the end clamp to the start of the last page; offsets that
// fall inside a page are aligned to its start.
func New(total, perPage, start int) Paginator {
	if perPage <= 0 {
		perPage = 1
	}
	if total < 0 {
		total = 0
	}

	pages := (total + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}

	if start < 0 {
		start = 0
	}
	lastStart := (pages - 1) * perPage
	if start > lastStart {
		start = lastStart
	}
	start -= start % perPage

	end := start + perPage
	if end > total {
		end = total
	}

	return Paginator{
		Total:   total,
		PerPage: perPage,
		Start:   start,
		End:     end,
		Pages:   pages,
		Current: start/perPage + 1,
	}
}

// Limit returns the page size, for repository queries.
func (p Paginator) Limit() int { return p.PerPage }

// HasPrev reports whether a previous page exists.
func (p Paginator) HasPrev() bool { return p.Current > 1 }

// HasNext reports whether a next page exists.
func (p Paginator) HasNext() bool { return p.Current < p.Pages }

// PrevStart returns the offset of the previous page.
func (p Paginator) PrevStart() int {
	if !p.HasPrev() {
		return 0
	}
	return p.Start - p.PerPage
}

// NextStart returns the offset of the next page.
func (p Paginator) NextStart() int {
	if !p.HasNext() {
		return p.Start
	}
	return p.Start + p.PerPage
}

// Links renders a <ul class="pagination"> navigating baseURL. Existing query
// parameters of baseURL are kept. Nothing is rendered for a single page.
func (p Paginator) Links(baseURL string) template.HTML {
	if p.Pages <= 1 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<ul class="pagination">`)

	if p.HasPrev() {
		fmt.Fprintf(&b, `<li><a href="%s" rel="prev">&laquo; Previous</a></li>`, pageURL(baseURL, p.PrevStart()))
	} else {
		b.WriteString(`<li class="disabled"><span>&laquo; Previous</span></li>`)
	}

	for page := 1; page <= p.Pages; page++ {
		if page == p.Current {
			fmt.Fprintf(&b, `<li class="active"><span>%d</span></li>`, page)
			continue
		}
		fmt.Fprintf(&b, `<li><a href="%s">%d</a></li>`, pageURL(baseURL, (page-1)*p.PerPage), page)
	}

	if p.HasNext() {
		fmt.Fprintf(&b, `<li><a href="%s" rel="next">Next &raquo;</a></li>`, pageURL(baseURL, p.NextStart()))
	} else {
		b.WriteString(`<li class="disabled"><span>Next &raquo;</span></li>`)
	}

	b.WriteString(`</ul>`)
	return template.HTML(b.String())
}

func pageURL(baseURL string, start int) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return html.EscapeString(baseURL)
	}
	q := u.Query()
	if start == 0 {
		q.Del(StartParam)
	} else {
		q.Set(StartParam, fmt.Sprint(start))
	}
	u.RawQuery = q.Encode()
	return html.EscapeString(u.String())
}
