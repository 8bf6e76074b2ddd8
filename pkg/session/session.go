// Package session keeps per-request key-value state in a sealed client-side
// cookie. Nothing is stored on the server.
package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/navikt/keys2text-backend/pkg/auth"
)

const (
	// KeyGoogleToken holds the full provider token, including userinfo claims.
	KeyGoogleToken = "gootoken"
	// KeyUserLastSignIn holds the Unix time, in seconds, of the last successful sign in.
	KeyUserLastSignIn = "userlastsignin"

	pendingLoginPrefix = "_state_google_"

	// MaxPendingLogins keeps concurrent login attempts from growing the
	// cookie past what browsers store.
	MaxPendingLogins = 5
)

type Values map[string]json.RawMessage

// Session is the decrypted view of one request's cookie. It is owned by the
// request and must not be shared between requests.
type Session struct {
	values   Values
	modified bool
	cleared  bool
}

func New() *Session {
	return &Session{values: Values{}}
}

func newFromValues(values Values) *Session {
	if values == nil {
		values = Values{}
	}

	return &Session{values: values}
}

// Get unmarshals the value stored under key into v, and reports whether the key exists.
func (s *Session) Get(key string, v any) (bool, error) {
	raw, ok := s.values[key]
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("unmarshal session key %s: %w", key, err)
	}

	return true, nil
}

func (s *Session) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal session key %s: %w", key, err)
	}

	s.values[key] = raw
	s.modified = true

	return nil
}

func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}

	delete(s.values, key)
	s.modified = true
}

// Clear removes every key and marks the cookie for deletion.
func (s *Session) Clear() {
	s.values = Values{}
	s.modified = true
	s.cleared = true
}

func (s *Session) Len() int {
	return len(s.values)
}

func (s *Session) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns the stored keys in sorted order.
func (s *Session) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func (s *Session) Modified() bool {
	return s.modified
}

func (s *Session) Cleared() bool {
	return s.cleared
}

// Token returns the signed in user's provider token, if any.
func (s *Session) Token() (*auth.Token, bool) {
	tok := &auth.Token{}

	ok, err := s.Get(KeyGoogleToken, tok)
	if !ok || err != nil {
		return nil, false
	}

	return tok, true
}

// LastSignIn returns the time of the last successful sign in, if any.
func (s *Session) LastSignIn() (time.Time, bool) {
	var unix int64

	ok, err := s.Get(KeyUserLastSignIn, &unix)
	if !ok || err != nil {
		return time.Time{}, false
	}

	return time.Unix(unix, 0), true
}

// SetSignIn records a successful sign in.
func (s *Session) SetSignIn(tok *auth.Token, at time.Time) error {
	if err := s.Set(KeyGoogleToken, tok); err != nil {
		return err
	}

	return s.Set(KeyUserLastSignIn, at.Unix())
}

// PendingLogin is written by login and consumed by the callback that
// completes the same authorization request.
type PendingLogin struct {
	RedirectURI string `json:"redirect_uri"`
	Nonce       string `json:"nonce"`
	ExpiresAt   int64  `json:"exp"`
}

func (p PendingLogin) Expired(now time.Time) bool {
	return now.Unix() >= p.ExpiresAt
}

func (s *Session) PendingLogin(state string) (*PendingLogin, bool) {
	if state == "" {
		return nil, false
	}

	p := &PendingLogin{}

	ok, err := s.Get(pendingLoginPrefix+state, p)
	if !ok || err != nil {
		return nil, false
	}

	return p, true
}

// SetPendingLogin stores p under state. When more than MaxPendingLogins are
// pending, the ones expiring first are dropped; p itself is always kept.
func (s *Session) SetPendingLogin(state string, p PendingLogin) error {
	key := pendingLoginPrefix + state

	err := s.Set(key, p)
	if err != nil {
		return err
	}

	type pending struct {
		key string
		exp int64
	}

	var others []pending

	for k := range s.values {
		if k == key || !strings.HasPrefix(k, pendingLoginPrefix) {
			continue
		}

		var exp int64
		if o, ok := s.PendingLogin(strings.TrimPrefix(k, pendingLoginPrefix)); ok {
			exp = o.ExpiresAt
		}

		others = append(others, pending{key: k, exp: exp})
	}

	excess := len(others) + 1 - MaxPendingLogins
	if excess <= 0 {
		return nil
	}

	sort.Slice(others, func(i, j int) bool {
		if others[i].exp != others[j].exp {
			return others[i].exp < others[j].exp
		}

		return others[i].key < others[j].key
	})

	for _, o := range others[:excess] {
		s.Delete(o.key)
	}

	return nil
}

func (s *Session) DeletePendingLogin(state string) {
	s.Delete(pendingLoginPrefix + state)
}

// PruneExpired drops pending logins that can no longer complete.
func (s *Session) PruneExpired(now time.Time) {
	for key := range s.values {
		if !strings.HasPrefix(key, pendingLoginPrefix) {
			continue
		}

		p, ok := s.PendingLogin(strings.TrimPrefix(key, pendingLoginPrefix))
		if !ok || p.Expired(now) {
			s.Delete(key)
		}
	}
}

type contextKey int

const sessionContextKey contextKey = 1

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// FromContext returns the request's session. Outside the middleware it returns
// a fresh, empty session that is never persisted.
func FromContext(ctx context.Context) *Session {
	s, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok || s == nil {
		return New()
	}

	return s
}
