package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Options configures the session cookie.
type Options struct {
	CookieName string
	Secure     bool
	TTL        time.Duration
}

// Manager loads and saves sessions for HTTP requests.
type Manager struct {
	store  Store
	secret []byte
	opts   Options
}

// NewManager creates a manager signing cookies with secret.
func NewManager(store Store, secret string, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "alpha_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Manager{store: store, secret: []byte(secret), opts: opts}
}

// Store returns the underlying store.
func (m *Manager) Store() Store { return m.store }

// Load returns the session named by the request cookie. A missing, forged or
// expired cookie yields a fresh anonymous session.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil {
		return New(m.opts.TTL), nil
	}

	id, ok := m.verify(c.Value)
	if !ok {
		return New(m.opts.TTL), nil
	}

	s, err := m.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired) {
		return New(m.opts.TTL), nil
	}
	if err != nil {
		return nil, err
	}
	s.touch(m.opts.TTL)
	return s, nil
}

// Save persists a dirty session and refreshes the cookie.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if !s.Dirty() {
		return nil
	}
	if err := m.store.Save(ctx, s); err != nil {
		return err
	}
	s.clean()
	http.SetCookie(w, m.cookie(m.sign(s.ID), int(m.opts.TTL.Seconds())))
	return nil
}

// Renew moves the session to a new id, keeping its values. Call it when the
// privilege level changes, e.g. at login.
func (m *Manager) Renew(ctx context.Context, s *Session) error {
	if err := m.store.Delete(ctx, s.ID); err != nil {
		return err
	}
	s.ID = uuid.NewString()
	s.ExpiresAt = time.Now().Add(m.opts.TTL)
	s.dirty = true
	return nil
}

// Destroy deletes the session and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	http.SetCookie(w, m.cookie("", -1))
	return m.store.Delete(ctx, s.ID)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   m.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// sign produces base64(id).base64(hmac).
func (m *Manager) sign(id string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString([]byte(id)) + "." +
		base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (m *Manager) verify(value string) (string, bool) {
	parts := strings.SplitN(value, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	id, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", false
	}

	mac := hmac.New(sha256.New, m.secret)
	mac.Write(id)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return "", false
	}
	return string(id), true
}
