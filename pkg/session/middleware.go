package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/navikt/keys2text-backend/pkg/config/v2"
	"github.com/rs/zerolog"
)

// maxCookieSize is the largest cookie value browsers are required to keep.
const maxCookieSize = 4096

type Manager struct {
	codec    *Codec
	settings config.CookieSettings
	log      zerolog.Logger
}

func NewManager(secretKey string, settings config.CookieSettings, log zerolog.Logger) (*Manager, error) {
	codec, err := NewCodec(secretKey, settings.Name, time.Duration(settings.MaxAge)*time.Second)
	if err != nil {
		return nil, err
	}

	return &Manager{
		codec:    codec,
		settings: settings,
		log:      log,
	}, nil
}

// Load opens the session cookie on r. A missing, tampered or expired cookie
// yields an empty session.
func (m *Manager) Load(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(m.settings.Name)
	if err != nil {
		return New(), false
	}

	values, err := m.codec.Decode(cookie.Value)
	if err != nil {
		if !errors.Is(err, ErrExpiredCookie) {
			m.log.Debug().Err(err).Str("remote_ip", r.RemoteAddr).Msg("discarding session cookie")
		}

		return New(), true
	}

	return newFromValues(values), true
}

// Save writes the cookie that reflects the state of s, if any is needed.
func (m *Manager) Save(w http.ResponseWriter, s *Session, hadCookie bool) {
	switch {
	case s.Cleared() || (s.Len() == 0 && hadCookie):
		http.SetCookie(w, m.expiredCookie())
	case s.Len() > 0 && s.Modified():
		value, err := m.codec.Encode(s.values)
		if err != nil {
			m.log.Error().Err(err).Msg("encoding session cookie")
			return
		}

		if len(value) > maxCookieSize {
			m.log.Warn().Int("size", len(value)).Msg("session cookie exceeds browser size limit")
		}

		http.SetCookie(w, m.cookie(value))
	}
}

func (m *Manager) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     m.settings.Name,
		Value:    value,
		Path:     m.settings.Path,
		Domain:   m.settings.Domain,
		MaxAge:   m.settings.MaxAge,
		Expires:  time.Now().Add(time.Duration(m.settings.MaxAge) * time.Second),
		Secure:   m.settings.Secure,
		HttpOnly: m.settings.HttpOnly,
		SameSite: m.settings.GetSameSite(),
	}
}

func (m *Manager) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.settings.Name,
		Value:    "",
		Path:     m.settings.Path,
		Domain:   m.settings.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.settings.Secure,
		HttpOnly: m.settings.HttpOnly,
		SameSite: m.settings.GetSameSite(),
	}
}

// Middleware makes the request's session available through FromContext and
// writes it back before the response headers go out.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, hadCookie := m.Load(r)

		cw := &committingWriter{
			ResponseWriter: w,
			commit: func(w http.ResponseWriter) {
				m.Save(w, sess, hadCookie)
			},
		}

		next.ServeHTTP(cw, r.WithContext(NewContext(r.Context(), sess)))

		cw.flushCommit()
	})
}

// committingWriter runs commit exactly once, right before the header is
// written, since cookies cannot be added afterwards.
type committingWriter struct {
	http.ResponseWriter
	commit    func(w http.ResponseWriter)
	committed bool
}

func (c *committingWriter) flushCommit() {
	if c.committed {
		return
	}

	c.committed = true
	c.commit(c.ResponseWriter)
}

func (c *committingWriter) WriteHeader(code int) {
	c.flushCommit()
	c.ResponseWriter.WriteHeader(code)
}

func (c *committingWriter) Write(b []byte) (int, error) {
	c.flushCommit()
	return c.ResponseWriter.Write(b)
}

func (c *committingWriter) Flush() {
	c.flushCommit()

	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (c *committingWriter) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}
