package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/service"
	"github.com/alpha-framework/alpha/internal/session"
	"github.com/alpha-framework/alpha/internal/view"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuthHandler handles login, logout and registration
type AuthHandler struct {
	services *service.Services
	sessions *session.Manager
	pages    *pages
	log      zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(services *service.Services, sessions *session.Manager, p *pages, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		services: services,
		sessions: sessions,
		pages:    p,
		log:      log.With().Str("handler", "auth").Logger(),
	}
}

type credentials struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
	Next     string `json:"-" form:"next"`
}

// LoginForm handles GET /login
func (h *AuthHandler) LoginForm(c *gin.Context) {
	h.pages.render(c, http.StatusOK, "login", "Log in", view.Login{Next: localPath(c.Query("next"), "")})
}

// Login handles POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBind(&req); err != nil {
		h.pages.render(c, http.StatusBadRequest, "login", "Log in", view.Login{Username: req.Username, Next: req.Next})
		return
	}

	person, err := h.authenticate(c, req)
	if errors.Is(err, apperr.ErrUnauthorized) {
		h.renderFailed(c, req)
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	flash(c, "Welcome back, "+displayName(person)+".")
	seeOther(c, localPath(req.Next, "/"))
}

func (h *AuthHandler) renderFailed(c *gin.Context, req credentials) {
	h.pages.renderError(c, http.StatusUnauthorized, "login", "Log in", "Invalid username or password.",
		view.Login{Username: req.Username, Next: req.Next})
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.logout(c); err != nil {
		_ = c.Error(err)
		return
	}
	seeOther(c, "/")
}

// LoginJSON handles POST /v1/login
func (h *AuthHandler) LoginJSON(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("login: %v: %w", err, apperr.ErrIllegalArgument))
		return
	}
	person, err := h.authenticate(c, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, person)
}

// LogoutJSON handles POST /v1/logout
func (h *AuthHandler) LogoutJSON(c *gin.Context) {
	if err := h.logout(c); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Register handles POST /v1/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("register: %v: %w", err, apperr.ErrIllegalArgument))
		return
	}
	person, err := h.services.Person.Register(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, person)
}

// Me handles GET /v1/me
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentPerson(c))
}

// authenticate checks the credentials and binds the person to a fresh
// session id.
func (h *AuthHandler) authenticate(c *gin.Context, req credentials) (*models.Person, error) {
	ctx := c.Request.Context()
	person, err := h.services.Person.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	sess := currentSession(c)
	if err := h.sessions.Renew(ctx, sess); err != nil {
		return nil, err
	}
	sess.Login(person.ID)

	h.log.Info().Str("person_id", person.ID).Str("username", person.Username).Msg("Logged in")
	return person, nil
}

// logout drops the identity and moves the visitor to a new session id.
func (h *AuthHandler) logout(c *gin.Context) error {
	sess := currentSession(c)
	if person := currentPerson(c); person != nil {
		h.log.Info().Str("person_id", person.ID).Msg("Logged out")
	}
	sess.Logout()
	return h.sessions.Renew(c.Request.Context(), sess)
}

func displayName(p *models.Person) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}
