package handlers

import (
	"context"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gilcrest/diygoapi/errs"
	"github.com/google/uuid"
	"github.com/navikt/keys2text-backend/pkg/auth"
	"github.com/navikt/keys2text-backend/pkg/service/core/transport"
	"github.com/navikt/keys2text-backend/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	CallbackPath = "/google/callback"

	// PendingLoginTTL bounds how long a user may spend at the provider.
	PendingLoginTTL = time.Hour

	LoginStarted   = "started"
	LoginSucceeded = "succeeded"
	LoginFailed    = "failed"
)

var errorPage = template.Must(template.New("auth_error").Parse(`<h1>Authentication failed: {{.}}</h1>`))

// OAuthProvider is the part of auth.Google the handlers need.
type OAuthProvider interface {
	AuthCodeURL(state, nonce, redirectURL string, selectAccount bool) string
	Exchange(ctx context.Context, code, redirectURL, nonce string) (*auth.Token, error)
}

type AuthHandler struct {
	provider OAuthProvider
	baseURL  string
	logins   *prometheus.CounterVec
	now      func() time.Time
	log      zerolog.Logger
}

func NewAuthHandler(provider OAuthProvider, baseURL string, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keys2text_backend",
			Name:      "logins_total",
			Help:      "Google sign in attempts by outcome.",
		}, []string{"outcome"}),
		now: time.Now,
		log: log,
	}
}

// Login starts an authorization request and sends the browser to Google.
// With ?prompt=select_account Google shows its account chooser.
func (h *AuthHandler) Login(ctx context.Context, r *http.Request, _ any) (*transport.Redirect, error) {
	const op errs.Op = "AuthHandler.Login"

	sess := session.FromContext(ctx)
	now := h.now()

	state := uuid.NewString()
	nonce := uuid.NewString()
	redirectURI := h.callbackURL(r)

	sess.PruneExpired(now)

	err := sess.SetPendingLogin(state, session.PendingLogin{
		RedirectURI: redirectURI,
		Nonce:       nonce,
		ExpiresAt:   now.Add(PendingLoginTTL).Unix(),
	})
	if err != nil {
		return nil, errs.E(errs.Internal, op, err)
	}

	selectAccount := r.URL.Query().Get("prompt") == auth.PromptSelectAccount

	h.logins.WithLabelValues(LoginStarted).Inc()

	return transport.NewRedirect(h.provider.AuthCodeURL(state, nonce, redirectURI, selectAccount), r), nil
}

// Callback completes the authorization request Google redirected back with.
// Authorization failures render an error page with status 200 and leave the
// session as it was.
func (h *AuthHandler) Callback(ctx context.Context, r *http.Request, _ any) (transport.Encoder, error) {
	const op errs.Op = "AuthHandler.Callback"

	sess := session.FromContext(ctx)
	q := r.URL.Query()

	tok, err := h.exchange(ctx, sess, q)
	if err != nil {
		h.logins.WithLabelValues(LoginFailed).Inc()

		if oae, ok := auth.AsOAuthError(err); ok {
			h.log.Info().Str("code", oae.Code).Str("description", oae.Description).Msg("authentication failed")

			return transport.NewHTML(http.StatusOK, errorPage, oae.Code), nil
		}

		return nil, errs.E(errs.IO, op, err)
	}

	sess.DeletePendingLogin(q.Get("state"))

	if sub, ok := tok.Subject(); ok {
		err = sess.SetSignIn(tok, h.now())
		if err != nil {
			return nil, errs.E(errs.Internal, op, err)
		}

		h.log.Debug().Str("sub", sub).Msg("signed in")
	} else {
		h.log.Warn().Msg("token response without userinfo, session not updated")
	}

	h.logins.WithLabelValues(LoginSucceeded).Inc()

	return transport.NewRedirect("/", r), nil
}

func (h *AuthHandler) exchange(ctx context.Context, sess *session.Session, q url.Values) (*auth.Token, error) {
	if code := q.Get("error"); code != "" {
		return nil, auth.NewOAuthError(code, q.Get("error_description"))
	}

	pending, ok := sess.PendingLogin(q.Get("state"))
	if !ok || pending.Expired(h.now()) {
		return nil, auth.NewOAuthError(auth.ErrCodeMismatchingState, "CSRF Warning! State not equal in request and response.")
	}

	return h.provider.Exchange(ctx, q.Get("code"), pending.RedirectURI, pending.Nonce)
}

// Logout forgets everything about the browser. Calling it without a session
// is fine.
func (h *AuthHandler) Logout(ctx context.Context, r *http.Request, _ any) (*transport.Redirect, error) {
	session.FromContext(ctx).Clear()

	return transport.NewRedirect("/", r), nil
}

// callbackURL is the absolute callback address as the browser sees this
// server, either configured or taken from the request.
func (h *AuthHandler) callbackURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL + CallbackPath
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}

	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}

	u := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   CallbackPath,
	}

	return u.String()
}
