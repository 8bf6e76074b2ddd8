package session_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/navikt/keys2text-backend/pkg/auth"
	"github.com/navikt/keys2text-backend/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionValues(t *testing.T) {
	s := session.New()
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Modified())

	require.NoError(t, s.Set("theme", "dark"))
	assert.True(t, s.Modified())
	assert.True(t, s.Has("theme"))

	var theme string
	ok, err := s.Get("theme", &theme)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", theme)

	ok, err = s.Get("missing", &theme)
	require.NoError(t, err)
	assert.False(t, ok)

	var wrongType int
	ok, err = s.Get("theme", &wrongType)
	assert.True(t, ok)
	assert.Error(t, err)

	s.Delete("theme")
	assert.False(t, s.Has("theme"))
	assert.Equal(t, 0, s.Len())
}

func TestSessionSignIn(t *testing.T) {
	s := session.New()

	_, ok := s.Token()
	assert.False(t, ok)

	_, ok = s.LastSignIn()
	assert.False(t, ok)

	at := time.Unix(1734876000, 0)
	tok := &auth.Token{
		AccessToken: "ya29.abc",
		IDToken:     "eyJ.x.y",
		UserInfo: &auth.UserInfo{
			Sub:   "1234",
			Email: "mock.anderson@example.com",
		},
	}

	require.NoError(t, s.SetSignIn(tok, at))
	assert.Equal(t, []string{session.KeyGoogleToken, session.KeyUserLastSignIn}, s.Keys())

	got, ok := s.Token()
	require.True(t, ok)
	assert.Equal(t, tok, got)

	last, ok := s.LastSignIn()
	require.True(t, ok)
	assert.Equal(t, at, last)
}

func TestSessionClear(t *testing.T) {
	s := session.New()
	require.NoError(t, s.Set("a", 1))
	require.NoError(t, s.Set("b", 2))

	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Cleared())

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestPendingLogins(t *testing.T) {
	now := time.Now()

	s := session.New()
	require.NoError(t, s.SetPendingLogin("fresh", session.PendingLogin{
		RedirectURI: "http://localhost:3000/google/callback",
		Nonce:       "n1",
		ExpiresAt:   now.Add(time.Hour).Unix(),
	}))
	require.NoError(t, s.SetPendingLogin("stale", session.PendingLogin{
		RedirectURI: "http://localhost:3000/google/callback",
		Nonce:       "n2",
		ExpiresAt:   now.Add(-time.Minute).Unix(),
	}))
	require.NoError(t, s.Set("userlastsignin", now.Unix()))

	_, ok := s.PendingLogin("")
	assert.False(t, ok)

	p, ok := s.PendingLogin("fresh")
	require.True(t, ok)
	assert.Equal(t, "n1", p.Nonce)
	assert.False(t, p.Expired(now))

	s.PruneExpired(now)

	_, ok = s.PendingLogin("stale")
	assert.False(t, ok)
	_, ok = s.PendingLogin("fresh")
	assert.True(t, ok)
	assert.True(t, s.Has("userlastsignin"))

	s.DeletePendingLogin("fresh")
	_, ok = s.PendingLogin("fresh")
	assert.False(t, ok)
}

func TestPendingLoginsCapped(t *testing.T) {
	now := time.Now()

	s := session.New()
	require.NoError(t, s.Set("userlastsignin", now.Unix()))

	for i := 0; i < 7; i++ {
		require.NoError(t, s.SetPendingLogin(fmt.Sprintf("state-%d", i), session.PendingLogin{
			RedirectURI: "http://localhost:3000/google/callback",
			Nonce:       fmt.Sprintf("n%d", i),
			ExpiresAt:   now.Add(time.Duration(i) * time.Minute).Unix(),
		}))
	}

	// Written last but expiring first, it must still survive.
	require.NoError(t, s.SetPendingLogin("latest", session.PendingLogin{
		RedirectURI: "http://localhost:3000/google/callback",
		Nonce:       "latest",
		ExpiresAt:   now.Add(-time.Hour).Unix(),
	}))

	assert.Equal(t, session.MaxPendingLogins+1, s.Len())
	assert.True(t, s.Has("userlastsignin"))

	for _, state := range []string{"latest", "state-3", "state-4", "state-5", "state-6"} {
		_, ok := s.PendingLogin(state)
		assert.True(t, ok, state)
	}

	for _, state := range []string{"state-0", "state-1", "state-2"} {
		_, ok := s.PendingLogin(state)
		assert.False(t, ok, state)
	}
}
