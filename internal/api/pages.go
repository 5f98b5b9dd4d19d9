package api

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/config"
	"github.com/alpha-framework/alpha/internal/view"
	"github.com/gin-gonic/gin"
)

const flashKey = "flash"

// pages renders HTML responses.
type pages struct {
	views *view.Renderer
	cfg   *config.Config
}

// render writes the named page with the current person and pending flash.
func (p *pages) render(c *gin.Context, status int, name, title string, data any) {
	p.renderError(c, status, name, title, "", data)
}

// renderError is render with an error message shown above the content.
func (p *pages) renderError(c *gin.Context, status int, name, title, msg string, data any) {
	page := view.Page{
		Title:  title,
		Person: currentPerson(c),
		Error:  msg,
		Path:   c.Request.URL.Path,
		Data:   data,
	}
	if sess := currentSession(c); sess != nil {
		if flash, ok := sess.Get(flashKey); ok {
			page.Flash = flash
			sess.Delete(flashKey)
		}
	}

	var buf bytes.Buffer
	if err := p.views.Render(&buf, name, page); err != nil {
		_ = c.Error(err)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// fail answers with the status err maps to.
func (p *pages) fail(c *gin.Context, err error) {
	status := apperr.Status(err)
	msg := apperr.PublicMessage(err)

	if wantsJSON(c) {
		body := gin.H{"error": msg}
		if fields := apperr.Fields(err); len(fields) > 0 {
			body["fields"] = fields
		}
		c.JSON(status, body)
		return
	}

	if status == http.StatusUnauthorized {
		c.Redirect(http.StatusSeeOther, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		return
	}

	page := view.Page{
		Title:  strconv.Itoa(status),
		Person: currentPerson(c),
		Path:   c.Request.URL.Path,
		Data:   view.ErrorPage{Status: status, Message: msg, Fields: apperr.Fields(err)},
	}
	var buf bytes.Buffer
	if rerr := p.views.Render(&buf, "error", page); rerr != nil {
		c.String(status, msg)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// flash stores a message shown on the next rendered page.
func flash(c *gin.Context, msg string) {
	if sess := currentSession(c); sess != nil {
		sess.Set(flashKey, msg)
	}
}

// seeOther redirects after a successful form post.
func seeOther(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}

// queryInt reads a non-negative integer query parameter.
func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}
