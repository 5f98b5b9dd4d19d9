// Package security provides tamper-proof URL tokens and password hashing.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/alpha-framework/alpha/internal/apperr"
)

// TokenParam is the query parameter carrying an encrypted query string.
const TokenParam = "tk"

// Tokenizer encrypts query strings into opaque URL tokens so GET parameters
// cannot be edited by the client.
type Tokenizer struct {
	aead cipher.AEAD
}

// NewTokenizer derives an AES-256-GCM key from secret.
func NewTokenizer(secret string) (*Tokenizer, error) {
	if secret == "" {
		return nil, errors.New("security: empty secret")
	}
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Tokenizer{aead: aead}, nil
}

// Encode encrypts the values into a base64url token.
func (t *Tokenizer) Encode(values url.Values) (string, error) {
	nonce := make([]byte, t.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := t.aead.Seal(nonce, nonce, []byte(values.Encode()), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode reverses Encode. A malformed, tampered or foreign token yields
// apperr.ErrSecurity.
func (t *Tokenizer) Decode(token string) (url.Values, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("token encoding: %w", apperr.ErrSecurity)
	}

	ns := t.aead.NonceSize()
	if len(data) < ns {
		return nil, fmt.Errorf("token too short: %w", apperr.ErrSecurity)
	}

	plain, err := t.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("token rejected: %w", apperr.ErrSecurity)
	}

	values, err := url.ParseQuery(string(plain))
	if err != nil {
		return nil, fmt.Errorf("token payload: %w", apperr.ErrSecurity)
	}
	return values, nil
}

// SecureURL returns path?tk=<token> for the values.
func (t *Tokenizer) SecureURL(path string, values url.Values) (string, error) {
	token, err := t.Encode(values)
	if err != nil {
		return "", err
	}
	return path + "?" + TokenParam + "=" + token, nil
}

// ResolveQuery returns the effective query of a request. Without a token the
// visible query is returned unchanged. With a token, the decoded values are
// returned and any other visible parameter is rejected.
func (t *Tokenizer) ResolveQuery(query url.Values) (url.Values, error) {
	token := query.Get(TokenParam)
	if token == "" {
		if _, present := query[TokenParam]; present {
			return nil, fmt.Errorf("empty token: %w", apperr.ErrSecurity)
		}
		return query, nil
	}

	for key := range query {
		if key != TokenParam {
			return nil, fmt.Errorf("parameter %q next to a secure token: %w", key, apperr.ErrSecurity)
		}
	}
	if len(query[TokenParam]) > 1 {
		return nil, fmt.Errorf("multiple tokens: %w", apperr.ErrSecurity)
	}
	return t.Decode(token)
}
