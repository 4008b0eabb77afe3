package auth

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenStore_SetAppliesCookieAttributes(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewTokenStore("")
	s.now = fixedClock(now)

	require.NoError(t, s.Set("abc"))

	assert.Equal(t, "abc", s.AuthToken())
	assert.Equal(t, map[string]string{"Authorization": "Bearer abc"}, s.AuthHeaders())

	c := s.HTTPCookie()
	assert.Equal(t, "token", c.Name)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 604800, c.MaxAge)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, now.Add(7*24*time.Hour), c.Expires)
}

func TestTokenStore_ExpiredTokenIsIgnored(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewTokenStore("")
	s.now = fixedClock(now)
	require.NoError(t, s.Set("abc"))

	s.now = fixedClock(now.Add(8 * 24 * time.Hour))

	assert.Empty(t, s.AuthToken())
	assert.Empty(t, s.AuthHeaders())
}

func TestTokenStore_ClearWritesExpiredCookie(t *testing.T) {
	s := NewTokenStore("")
	require.NoError(t, s.Set("abc"))
	require.NoError(t, s.Clear())

	assert.Empty(t, s.AuthToken())
	c := s.HTTPCookie()
	assert.Empty(t, c.Value)
	assert.Equal(t, time.Unix(0, 0).UTC(), c.Expires)
}

func TestTokenStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies", "alice.json")

	first := NewTokenStore(path)
	require.NoError(t, first.Set("persisted"))
	assert.True(t, TokenFileExists(path))
	assert.False(t, TokenFileExists(path+".tmp"))

	second := NewTokenStore(path)
	require.NoError(t, second.Load())
	assert.Equal(t, "persisted", second.AuthToken())
}

func TestTokenStore_LoadMissingFile(t *testing.T) {
	s := NewTokenStore(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, s.Load())
	assert.Empty(t, s.AuthToken())
}
