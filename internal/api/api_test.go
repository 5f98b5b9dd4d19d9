package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alpha-framework/alpha/internal/api"
	"github.com/alpha-framework/alpha/internal/config"
	"github.com/alpha-framework/alpha/internal/filecache"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/alpha-framework/alpha/internal/security"
	"github.com/alpha-framework/alpha/internal/service"
	"github.com/alpha-framework/alpha/internal/session"
	"github.com/alpha-framework/alpha/internal/tester"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type server struct {
	router *gin.Engine
	svc    *service.Services
	tokens *security.Tokenizer
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repos := repository.New(tester.DB(t))
	dir := t.TempDir()
	cfg := &config.Config{
		Security: config.SecurityConfig{Secret: testSecret, CookieName: "alpha_session", SessionTTL: time.Hour},
		Site: config.SiteConfig{
			Title:       "Alpha",
			Description: "Articles",
			URL:         "http://example.com",
			PageSize:    10,
			FeedSize:    10,
		},
		Cache:  config.CacheConfig{Dir: filepath.Join(dir, "cache"), Enabled: true, MaxAge: time.Hour},
		Export: config.ExportConfig{Dir: filepath.Join(dir, "exports"), MaxWorkers: 1, Retention: time.Hour},
		Log:    config.LogConfig{File: filepath.Join(dir, "alpha.log")},
	}
	cache, err := filecache.New(cfg.Cache.Dir)
	require.NoError(t, err)
	store := session.NewMemoryStore()

	svc := service.NewServices(repos, cfg, service.Deps{Cache: cache, Sessions: store}, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, svc.DEnum.EnsureDefaults(ctx))
	require.NoError(t, svc.Person.EnsureRights(ctx))

	sessions := session.NewManager(store, testSecret, session.Options{
		CookieName: cfg.Security.CookieName,
		TTL:        cfg.Security.SessionTTL,
	})
	router, err := api.NewRouter(svc, sessions, cfg, zerolog.Nop())
	require.NoError(t, err)

	tokens, err := security.NewTokenizer(testSecret)
	require.NoError(t, err)

	return &server{router: router, svc: svc, tokens: tokens}
}

// client keeps the cookies one browser would.
type client struct {
	s       *server
	cookies map[string]*http.Cookie
}

func (s *server) client() *client {
	return &client{s: s, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.s.router.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *client) get(t *testing.T, target string) *httptest.ResponseRecorder {
	return c.do(t, http.MethodGet, target, nil, "")
}

func (c *client) form(t *testing.T, target string, values url.Values) *httptest.ResponseRecorder {
	return c.do(t, http.MethodPost, target, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
}

func (c *client) json(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	return c.do(t, method, target, strings.NewReader(body), "application/json")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *server) register(t *testing.T, username string, rights ...string) *models.Person {
	t.Helper()
	ctx := context.Background()
	p, err := s.svc.Person.Register(ctx, &service.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	if len(rights) > 0 {
		p, err = s.svc.Person.AssignRights(ctx, p.ID, rights...)
		require.NoError(t, err)
	}
	return p
}

// login registers a person and returns a client logged in as them.
func (s *server) login(t *testing.T, username string, rights ...string) *client {
	t.Helper()
	s.register(t, username, rights...)
	c := s.client()
	w := c.json(t, http.MethodPost, "/v1/login", fmt.Sprintf(`{"username":%q,"password":"correct horse"}`, username))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return c
}

func (s *server) publish(t *testing.T, author *models.Person, title string) *models.Article {
	t.Helper()
	a, err := s.svc.Article.Create(context.Background(), author, &models.ArticleInput{
		Title:         title,
		Content:       "Body of " + title,
		Published:     true,
		AllowComments: true,
	})
	require.NoError(t, err)
	return a
}

func TestHealthEndpoint(t *testing.T) {
	s := newServer(t)

	w := s.client().get(t, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Values("Set-Cookie"))
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "alpha", body["service"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	alice := s.register(t, "alice")
	s.publish(t, alice, "First")

	w := s.client().get(t, "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	db := decode(t, w)["database"].(map[string]any)
	assert.Equal(t, float64(1), db["people"])
	assert.Equal(t, float64(1), db["articles"])
	assert.Equal(t, float64(0), db["comments"])
}

func TestNoRoute(t *testing.T) {
	s := newServer(t)
	c := s.client()

	w := c.get(t, "/v1/nowhere")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, decode(t, w)["error"])

	w = c.get(t, "/nowhere")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}

func TestAnonymousAccess(t *testing.T) {
	s := newServer(t)
	c := s.client()

	w := c.get(t, "/articles/new")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?next=%2Farticles%2Fnew", w.Header().Get("Location"))

	w = c.get(t, "/v1/me")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, decode(t, w)["error"])
}

func TestRightsAreEnforced(t *testing.T) {
	s := newServer(t)
	c := s.login(t, "bob")

	w := c.get(t, "/v1/records")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = c.get(t, "/admin/logs")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	admin := s.login(t, "root", models.RightsAdmin)
	w = admin.get(t, "/v1/records")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Person")
}

func TestLoginFlow(t *testing.T) {
	s := newServer(t)
	s.register(t, "carol")
	c := s.client()

	w := c.get(t, "/login?next=/tags")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Values("Set-Cookie"), "anonymous visits store no session")

	w = c.form(t, "/login", url.Values{"username": {"carol"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid username or password.")

	w = c.form(t, "/login", url.Values{"username": {"carol"}, "password": {"correct horse"}, "next": {"/tags"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/tags", w.Header().Get("Location"))
	first := c.cookies["alpha_session"]
	require.NotNil(t, first)

	w = c.form(t, "/login", url.Values{"username": {"carol"}, "password": {"correct horse"}, "next": {"/tags"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.NotEqual(t, first.Value, c.cookies["alpha_session"].Value, "login rotates the session id")

	w = c.get(t, "/v1/me")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "carol", decode(t, w)["username"])

	w = c.get(t, "/tags")
	assert.Contains(t, w.Body.String(), "Welcome back, carol.")

	w = c.json(t, http.MethodPost, "/v1/logout", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = c.get(t, "/v1/me")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_RejectsOffsiteNext(t *testing.T) {
	s := newServer(t)
	s.register(t, "dave")
	c := s.client()

	w := c.form(t, "/login", url.Values{"username": {"dave"}, "password": {"correct horse"}, "next": {"//evil.example.com/"}})

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestRegister(t *testing.T) {
	s := newServer(t)
	c := s.client()

	w := c.json(t, http.MethodPost, "/v1/register", `{"username":"erin","email":"erin@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "erin", decode(t, w)["username"])
	assert.NotContains(t, w.Body.String(), "correct horse")

	w = c.json(t, http.MethodPost, "/v1/register", `{"username":"erin","email":"other@example.com","password":"correct horse"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotEmpty(t, decode(t, w)["fields"])
}

func TestArticle_CreateAndShow(t *testing.T) {
	s := newServer(t)
	c := s.login(t, "frank")

	w := c.form(t, "/articles", url.Values{
		"title":     {"Hello World"},
		"content":   {"Some *markdown*."},
		"tags":      {"Go, web"},
		"published": {"true"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/articles/hello-world", w.Header().Get("Location"))

	w = c.get(t, "/articles/hello-world")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hello World")
	assert.Contains(t, w.Body.String(), "<em>markdown</em>")

	article, err := s.svc.Article.Get(context.Background(), "hello-world")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "web"}, article.Tags)

	w = c.form(t, "/articles", url.Values{"title": {""}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "title is required")
}

func TestArticle_UpdateWithStaleVersionConflicts(t *testing.T) {
	s := newServer(t)
	c := s.login(t, "gina")
	article := s.publish(t, s.register(t, "author"), "Versioned")

	form := url.Values{
		"title":   {"Versioned again"},
		"content": {"new"},
		"version": {fmt.Sprint(article.Version)},
	}
	w := c.form(t, "/articles/versioned", form)
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/articles/versioned", w.Header().Get("Location"))

	w = c.form(t, "/articles/versioned", form)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdatesRequireVersion(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, "root", models.RightsAdmin)
	ivan := s.register(t, "ivan")
	article := s.publish(t, ivan, "Unversioned")

	w := admin.json(t, http.MethodPut, "/v1/records/article/"+article.ID, `{"title":"Changed","content":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = admin.json(t, http.MethodPut, "/v1/records/person/"+ivan.ID, `{"display_name":"X","version":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = admin.form(t, "/articles/"+article.Slug, url.Values{"title": {"Changed"}, "content": {"x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	current, err := s.svc.Article.Get(context.Background(), article.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Unversioned", current.Title)
	assert.Equal(t, article.Version, current.Version)
}

func TestArticle_PDFRequiresToken(t *testing.T) {
	s := newServer(t)
	article := s.publish(t, s.register(t, "hank"), "Printable")
	c := s.client()
	path := "/articles/" + article.Slug + "/pdf"

	w := c.get(t, path)
	assert.Equal(t, http.StatusForbidden, w.Code)

	current, err := s.svc.Article.Get(context.Background(), article.Slug)
	require.NoError(t, err)
	link, err := s.tokens.SecureURL(path, url.Values{"version": {fmt.Sprint(current.Version)}})
	require.NoError(t, err)

	w = c.get(t, link)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))

	w = c.get(t, link+"x")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = c.get(t, link+"&version=1")
	assert.Equal(t, http.StatusForbidden, w.Code)

	stale, err := s.tokens.SecureURL(path, url.Values{"version": {"999"}})
	require.NoError(t, err)
	w = c.get(t, stale)
	require.Equal(t, http.StatusFound, w.Code)
	fresh := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(fresh, path+"?"+security.TokenParam+"="))
	w = c.get(t, fresh)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecordsAPI(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, "root", models.RightsAdmin)
	ivan := s.register(t, "ivan")

	w := admin.get(t, "/v1/records/person?limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	assert.Equal(t, float64(2), list["total"])
	assert.Len(t, list["records"], 1)

	w = admin.get(t, "/v1/records/person/"+ivan.ID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ivan", decode(t, w)["username"])

	w = admin.json(t, http.MethodPut, "/v1/records/person/"+ivan.ID, `{"display_name":"Ivan","version":1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decode(t, w)["version"])

	w = admin.json(t, http.MethodPut, "/v1/records/person/"+ivan.ID, `{"display_name":"Stale","version":1}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = admin.json(t, http.MethodPut, "/v1/records/person/"+ivan.ID, `{"state":"Banned","version":2}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotEmpty(t, decode(t, w)["fields"])

	w = admin.json(t, http.MethodPost, "/v1/records/person", `{"username":"nobody"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = admin.get(t, "/v1/records/widget")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = admin.json(t, http.MethodPost, "/v1/records/article", `{"title":"Via API","content":"x","published":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "via-api", created["slug"])

	id := created["id"].(string)
	w = admin.do(t, http.MethodDelete, "/v1/records/article/"+id, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = admin.do(t, http.MethodDelete, "/v1/records/article/"+id+"?version=1", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestPeopleAPI(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, "root", models.RightsAdmin)
	judy := s.register(t, "judy")

	w := admin.json(t, http.MethodPut, "/v1/people/"+judy.ID+"/rights", `{"grant":["Editor"],"revoke":["Standard"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rights := decode(t, w)["rights"].([]any)
	require.Len(t, rights, 1)
	assert.Equal(t, "Editor", rights[0].(map[string]any)["name"])

	current, err := s.svc.Person.Get(context.Background(), judy.ID)
	require.NoError(t, err)
	w = admin.json(t, http.MethodPost, "/v1/people/"+judy.ID+"/disable", fmt.Sprintf(`{"version":%d}`, current.Version))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	c := s.client()
	w = c.json(t, http.MethodPost, "/v1/login", `{"username":"judy","password":"correct horse"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDEnumsAndSequences(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, "root", models.RightsAdmin)

	w := admin.get(t, "/v1/denums/"+url.PathEscape(models.SectionEnum))
	require.Equal(t, http.StatusOK, w.Code)
	version := decode(t, w)["version"].(float64)

	w = admin.json(t, http.MethodPut, "/v1/denums/"+url.PathEscape(models.SectionEnum),
		fmt.Sprintf(`{"version":%d,"values":["News","Opinion"]}`, int(version)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sections, err := s.svc.DEnum.Sections(context.Background())
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "Opinion", sections[1].Value)

	w = admin.json(t, http.MethodPost, "/v1/sequences/INV/next", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode(t, w)["value"])
	w = admin.json(t, http.MethodPost, "/v1/sequences/INV/next", "")
	assert.Equal(t, float64(2), decode(t, w)["value"])
}

func TestPublishAPI(t *testing.T) {
	s := newServer(t)
	c := s.login(t, "kate")
	article := s.publish(t, s.register(t, "writer"), "Going Dark")

	w := c.json(t, http.MethodPost, "/v1/articles/going-dark/publish", fmt.Sprintf(`{"version":%d,"published":false}`, article.Version))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decode(t, w)["published"])

	w = s.client().get(t, "/articles/going-dark")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestComments(t *testing.T) {
	s := newServer(t)
	article := s.publish(t, s.register(t, "leo"), "Discuss")

	w := s.client().form(t, "/articles/discuss/comments", url.Values{"content": {"hi"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/login"))

	c := s.login(t, "mia")
	w = c.form(t, "/articles/discuss/comments", url.Values{"content": {"First!"}})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/articles/"+article.Slug+"#comment-"))

	w = c.get(t, "/articles/discuss")
	assert.Contains(t, w.Body.String(), "First!")
}

func TestArticleWizard(t *testing.T) {
	s := newServer(t)
	c := s.login(t, "nina")
	base := "/uow/" + api.ArticleWizard

	w := c.get(t, base)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, base+"/details", w.Header().Get("Location"))

	w = c.get(t, base+"/confirm")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, base+"/details", w.Header().Get("Location"))

	w = c.get(t, base+"/details")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "step 1 of 3")

	w = c.form(t, base+"/details", url.Values{"nav": {"next"}, "title": {""}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = c.form(t, base+"/details", url.Values{"nav": {"next"}, "title": {"Built in Steps"}, "content": {"body"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, base+"/tags", w.Header().Get("Location"))

	w = c.form(t, base+"/tags", url.Values{"nav": {"next"}, "tags": {"Go, wizard"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, base+"/confirm", w.Header().Get("Location"))

	w = c.get(t, base+"/confirm")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Built in Steps")
	assert.Contains(t, w.Body.String(), "go, wizard")

	_, err := s.svc.Article.Get(context.Background(), "built-in-steps")
	assert.Error(t, err)

	w = c.form(t, base+"/confirm", url.Values{"nav": {"commit"}})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/articles/built-in-steps", w.Header().Get("Location"))

	article, err := s.svc.Article.Get(context.Background(), "built-in-steps")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "wizard"}, article.Tags)
	assert.False(t, article.Published)

	// The flow starts over once committed.
	w = c.get(t, base+"/confirm")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, base+"/details", w.Header().Get("Location"))
}

func TestArticleWizard_Abort(t *testing.T) {
	s := newServer(t)
	c := s.login(t, "omar")
	base := "/uow/" + api.ArticleWizard

	c.get(t, base)
	w := c.form(t, base+"/details", url.Values{"nav": {"next"}, "title": {"Never Saved"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = c.form(t, base+"/tags", url.Values{"nav": {"abort"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	_, err := s.svc.Article.Get(context.Background(), "never-saved")
	assert.Error(t, err)

	w = c.get(t, base+"/tags")
	assert.Equal(t, base+"/details", w.Header().Get("Location"))
}

func TestStreamExport(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, "root", models.RightsAdmin)
	s.register(t, "pat")

	w := admin.get(t, "/v1/exports?resource=people&format=csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Body.String(), "username")
	assert.Contains(t, w.Body.String(), "pat")
	assert.NotContains(t, w.Body.String(), "correct horse")

	w = admin.get(t, "/v1/exports?resource=secrets")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = admin.get(t, "/v1/exports?resource=people&format=yaml")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportJob(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, "root", models.RightsAdmin)
	s.publish(t, s.register(t, "quinn"), "Exported")

	create := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/exports", strings.NewReader(`{"resource":"articles","format":"json"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "export-1")
		for _, ck := range admin.cookies {
			req.AddCookie(ck)
		}
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	w := create()
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	jobID := decode(t, w)["job_id"].(string)

	w = create()
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, jobID, decode(t, w)["job_id"])

	w = admin.get(t, "/v1/exports/"+jobID+"/download")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.svc.Job.RunPending(context.Background())

	w = admin.get(t, "/v1/exports/"+jobID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(models.JobStatusCompleted), decode(t, w)["status"])

	w = admin.get(t, "/v1/exports/"+jobID+"/download")
	require.Equal(t, http.StatusOK, w.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Exported", rows[0]["title"])

	w = admin.get(t, "/v1/exports/does-not-exist")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorkbook(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, "root", models.RightsAdmin)

	w := admin.get(t, "/v1/workbook?resource=people")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))

	w = admin.get(t, "/v1/workbook?resource=nope")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeeds(t *testing.T) {
	s := newServer(t)
	s.publish(t, s.register(t, "rita"), "Syndicated")
	c := s.client()

	w := c.get(t, "/feeds/rss")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<rss")
	assert.Contains(t, w.Body.String(), "Syndicated")

	w = c.get(t, "/feeds/atom")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<feed")
}

func TestAdminPages(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, "root", models.RightsAdmin)
	sam := s.register(t, "sam")

	w := admin.get(t, "/admin/records/person")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sam")

	w = admin.get(t, "/admin/records/person/"+sam.ID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sam@example.com")

	w = admin.get(t, "/admin/logs")
	assert.Equal(t, http.StatusOK, w.Code)

	w = admin.json(t, http.MethodPost, "/v1/maintenance/run", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
