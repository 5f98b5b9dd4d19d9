package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/alpha-framework/alpha/internal/security"
	"github.com/alpha-framework/alpha/internal/service"
	"github.com/alpha-framework/alpha/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Context keys
const (
	keySession = "alpha.session"
	keyPerson  = "alpha.person"
	keySecure  = "alpha.secure"
	keyJSON    = "alpha.json"
)

var errNoRoute = fmt.Errorf("no route: %w", apperr.ErrResourceNotFound)

// recoveryMiddleware handles panics
func recoveryMiddleware(p *pages, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Str("path", c.Request.URL.Path).Msg("Panic recovered")
				if c.Writer.Written() {
					c.Abort()
					return
				}
				p.fail(c, fmt.Errorf("panic: %v", err))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}
		if p := currentPerson(c); p != nil {
			event = event.Str("person_id", p.ID)
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Idempotency-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// sessionWriter saves the session just before the response header goes out,
// so a changed session always reaches the client as a cookie.
type sessionWriter struct {
	gin.ResponseWriter
	save func()
	done bool
}

func (w *sessionWriter) flush() {
	if !w.done {
		w.done = true
		w.save()
	}
}

func (w *sessionWriter) WriteHeader(code int) {
	w.flush()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) WriteHeaderNow() {
	w.flush()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *sessionWriter) Write(data []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(data)
}

func (w *sessionWriter) WriteString(s string) (int, error) {
	w.flush()
	return w.ResponseWriter.WriteString(s)
}

// sessionMiddleware binds the visitor's session to the request.
func sessionMiddleware(m *session.Manager, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := m.Load(c.Request)
		if err != nil {
			log.Error().Err(err).Msg("Session load failed")
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Set(keySession, sess)

		sw := &sessionWriter{ResponseWriter: c.Writer}
		sw.save = func() {
			if err := m.Save(c.Request.Context(), sw.ResponseWriter, sess); err != nil {
				log.Error().Err(err).Str("session_id", sess.ID).Msg("Session save failed")
			}
		}
		c.Writer = sw

		c.Next()
		sw.flush()
	}
}

// errorMiddleware turns the last handler error into a response: JSON for the
// API, the error page or a login redirect for HTML.
func errorMiddleware(p *pages, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status := apperr.Status(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		} else {
			log.Debug().Err(err).Int("status", status).Str("path", c.Request.URL.Path).Msg("Request rejected")
		}
		p.fail(c, err)
	}
}

// tokenMiddleware replaces the query of requests carrying a secure token by
// the token's decoded values.
func tokenMiddleware(tk *security.Tokenizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		if _, ok := query[security.TokenParam]; !ok {
			c.Next()
			return
		}
		resolved, err := tk.ResolveQuery(query)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Request.URL.RawQuery = resolved.Encode()
		c.Set(keySecure, true)
		c.Next()
	}
}

// requireToken rejects requests whose query did not come from a secure token.
func requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(keySecure) {
			_ = c.Error(fmt.Errorf("%s requires a secure token: %w", c.Request.URL.Path, apperr.ErrSecurity))
			c.Abort()
			return
		}
		c.Next()
	}
}

// personMiddleware loads the logged-in person and records them as the actor
// of database writes.
func personMiddleware(people service.PersonService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		if sess == nil || !sess.Authenticated() {
			c.Next()
			return
		}

		person, err := people.Get(c.Request.Context(), sess.PersonID)
		switch {
		case errors.Is(err, apperr.ErrRecordNotFound):
			sess.Logout()
		case err != nil:
			log.Error().Err(err).Str("person_id", sess.PersonID).Msg("Failed to load session person")
			_ = c.Error(err)
			c.Abort()
			return
		case !person.Active():
			sess.Logout()
		default:
			c.Set(keyPerson, person)
			c.Request = c.Request.WithContext(repository.WithActor(c.Request.Context(), person.ID))
		}
		c.Next()
	}
}

// requireLogin rejects anonymous visitors.
func requireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentPerson(c) == nil {
			_ = c.Error(fmt.Errorf("%s: %w", c.Request.URL.Path, apperr.ErrUnauthorized))
			c.Abort()
			return
		}
		c.Next()
	}
}

// requireRights rejects visitors who do not hold the named rights. Admin
// holds every right.
func requireRights(rights string) gin.HandlerFunc {
	return func(c *gin.Context) {
		person := currentPerson(c)
		if person == nil {
			_ = c.Error(fmt.Errorf("%s: %w", c.Request.URL.Path, apperr.ErrUnauthorized))
			c.Abort()
			return
		}
		if !person.InRights(rights) {
			_ = c.Error(fmt.Errorf("%s requires %s rights: %w", c.Request.URL.Path, rights, apperr.ErrSecurity))
			c.Abort()
			return
		}
		c.Next()
	}
}

// jsonAPI marks a route group as answering in JSON.
func jsonAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(keyJSON, true)
		c.Next()
	}
}

func wantsJSON(c *gin.Context) bool {
	if c.GetBool(keyJSON) {
		return true
	}
	if strings.HasPrefix(c.Request.URL.Path, "/v1/") {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

func currentSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(keySession); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return nil
}

func currentPerson(c *gin.Context) *models.Person {
	if v, ok := c.Get(keyPerson); ok {
		if p, ok := v.(*models.Person); ok {
			return p
		}
	}
	return nil
}

// localPath returns target when it is a path on this site, otherwise fallback.
func localPath(target, fallback string) string {
	if target == "" {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return fallback
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}
