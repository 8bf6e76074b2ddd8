// Package frontend is the product surface mounted after the auth routes.
// The backend only knows InitFunc; New provides a minimal landing page used
// when no other frontend is wired in.
package frontend

import (
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/navikt/keys2text-backend/pkg/session"
	"github.com/rs/zerolog"
)

// InitFunc attaches a frontend to router. It is called exactly once at
// startup, after every auth route has been registered, with the secret the
// session cookie is sealed with.
type InitFunc func(secretKey string, router chi.Router)

var page = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>keys2text</title>
</head>
<body>
{{- if .SignedIn }}
<p>Signed in as {{ .Name }}{{ if .Email }} ({{ .Email }}){{ end }}{{ if .LastSignIn }}, last sign in {{ .LastSignIn }}{{ end }}.</p>
<p><a href="/google/logout">Sign out</a></p>
{{- else }}
<p><a href="/google/login">Sign in with Google</a></p>
<p><a href="/google/login?prompt=select_account">Sign in with another Google account</a></p>
{{- end }}
<script>
window.addEventListener("pagehide", function () {
  navigator.sendBeacon("/user/disconnect");
});
</script>
</body>
</html>
`))

type pageData struct {
	SignedIn   bool
	Name       string
	Email      string
	LastSignIn string
}

type Frontend struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Frontend {
	return &Frontend{log: log}
}

// Init serves the landing page. The page keeps no state of its own, so the
// secret is not needed.
func (f *Frontend) Init(_ string, router chi.Router) {
	router.Get("/", f.index)
}

func (f *Frontend) index(w http.ResponseWriter, r *http.Request) {
	data := pageData{}

	sess := session.FromContext(r.Context())
	if tok, ok := sess.Token(); ok && tok.UserInfo != nil {
		data.SignedIn = true
		data.Name = tok.UserInfo.Name
		data.Email = tok.UserInfo.Email

		if data.Name == "" {
			data.Name = tok.UserInfo.Sub
		}

		if at, ok := sess.LastSignIn(); ok {
			data.LastSignIn = at.UTC().Format(time.RFC1123)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := page.Execute(w, data); err != nil {
		f.log.Error().Err(err).Msg("rendering landing page")
	}
}
