// Package auth persists the session token cookie and supplies it as a
// bearer credential for authenticated API calls.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Guliveer/feedsync-go/internal/constants"
)

// ErrNoToken is returned when an operation needs a token and none is stored.
var ErrNoToken = errors.New("no session token")

// Cookie is the persisted form of the session token cookie.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires"`
	MaxAge   int       `json:"max_age,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	SameSite string    `json:"same_site,omitempty"`
}

// TokenStore holds the session token cookie with thread-safe access
// and JSON persistence.
type TokenStore struct {
	mu     sync.RWMutex
	cookie Cookie
	path   string
	now    func() time.Time
}

// NewTokenStore creates an empty TokenStore persisted at path.
// An empty path keeps the token in memory only.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{
		cookie: Cookie{Name: constants.TokenCookieName},
		path:   path,
		now:    time.Now,
	}
}

// Load reads the cookie from the store's file.
// Returns an error if the file does not exist or cannot be parsed.
func (s *TokenStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading token file %s: %w", s.path, err)
	}

	var c Cookie
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parsing token file %s: %w", s.path, err)
	}
	if c.Name != constants.TokenCookieName {
		return fmt.Errorf("token file %s holds cookie %q", s.path, c.Name)
	}

	s.cookie = c
	return nil
}

// Set stores a fresh token with the session cookie attributes and persists it.
func (s *TokenStore) Set(token string) error {
	s.mu.Lock()
	s.cookie = Cookie{
		Name:     constants.TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(constants.TokenCookieMaxAge * time.Second).UTC(),
		MaxAge:   constants.TokenCookieMaxAge,
		Secure:   true,
		SameSite: "Strict",
	}
	s.mu.Unlock()

	return s.save()
}

// Clear replaces the token with an immediately expired cookie and persists it.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	s.cookie = Cookie{
		Name:    constants.TokenCookieName,
		Path:    "/",
		Expires: time.Unix(0, 0).UTC(),
	}
	s.mu.Unlock()

	return s.save()
}

// AuthToken returns the stored token, or "" if it is missing or expired.
func (s *TokenStore) AuthToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cookie.Value == "" || !s.now().Before(s.cookie.Expires) {
		return ""
	}
	return s.cookie.Value
}

// AuthHeaders returns the Authorization header for the stored token,
// or an empty map when there is no valid token.
func (s *TokenStore) AuthHeaders() map[string]string {
	token := s.AuthToken()
	if token == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// HTTPCookie renders the stored cookie as an *http.Cookie.
func (s *TokenStore) HTTPCookie() *http.Cookie {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &http.Cookie{
		Name:    s.cookie.Name,
		Value:   s.cookie.Value,
		Path:    s.cookie.Path,
		Expires: s.cookie.Expires,
		MaxAge:  s.cookie.MaxAge,
		Secure:  s.cookie.Secure,
	}
	if s.cookie.SameSite == "Strict" {
		c.SameSite = http.SameSiteStrictMode
	}
	return c
}

// save writes the cookie to disk. It creates parent directories if they
// do not exist and uses atomic write (temp file, then rename).
func (s *TokenStore) save() error {
	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	data, err := json.MarshalIndent(s.cookie, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshaling token cookie: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating token directory %s: %w", dir, err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing temp token file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("renaming temp token file %s to %s: %w", tmpPath, s.path, err)
	}

	return nil
}

// TokenFileExists checks if a token file exists at the given path.
func TokenFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
