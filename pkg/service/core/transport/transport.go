// Package transport provides a generic HTTP transport layer for handlers.
//
// Inspired by:
// - https://www.willem.dev/articles/generic-http-handlers/ - for use of generics

package transport

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gilcrest/diygoapi/errs"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type Encoder interface {
	Encode(w http.ResponseWriter) error
}

// TargetFunc is a function that handles the request and returns a response, ideally
// we shouldn't have to use the http.Request, but sometimes we need it to fetch
// query parameters, headers, or similar
type TargetFunc[In any, Out any] func(context.Context, *http.Request, In) (Out, error)

type Transport[In any, Out any] struct {
	targetFn TargetFunc[In, Out]
}

func For[In any, Out any](target TargetFunc[In, Out]) *Transport[In, Out] {
	return &Transport[In, Out]{
		targetFn: target,
	}
}

func (h *Transport[In, Out]) encode(w http.ResponseWriter, out Out) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(out)
	if err != nil {
		return err
	}

	return nil
}

func (h *Transport[In, Out]) Build(logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Debug().Str("method", r.Method).Str("url", r.URL.RequestURI()).Msg("handling request")

		var in In

		out, err := h.targetFn(r.Context(), r, in)
		if err != nil {
			errs.HTTPErrorResponse(w, logger, err)
			return
		}

		// If the output implements the Encoder interface, use it
		if v, ok := any(out).(Encoder); ok {
			err := v.Encode(w)
			if err != nil {
				errs.HTTPErrorResponse(w, logger, errs.E(errs.Internal, err))
				return
			}

			return
		}

		// By default, we always encode the response as JSON, you can use
		// the Encoder interface to customize the response
		err = h.encode(w, out)
		if err != nil {
			errs.HTTPErrorResponse(w, logger, errs.E(errs.Internal, err))
			return
		}
	}
}

type Redirect struct {
	newURL string
	code   int
	r      *http.Request
}

func (r *Redirect) Encode(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "")
	http.Redirect(w, r.r, r.newURL, r.code)
	return nil
}

// NewRedirect responds with 302 Found to newURL.
func NewRedirect(newURL string, r *http.Request) *Redirect {
	return &Redirect{
		newURL: newURL,
		code:   http.StatusFound,
		r:      r,
	}
}

// HTML renders a template into the response. The template is executed into a
// buffer first, so a failing template produces an error and not half a page.
type HTML struct {
	tmpl   *template.Template
	data   any
	status int
}

func (h *HTML) Encode(w http.ResponseWriter) error {
	var buf bytes.Buffer

	err := h.tmpl.Execute(&buf, h.data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(h.status)

	_, err = w.Write(buf.Bytes())

	return err
}

func NewHTML(status int, tmpl *template.Template, data any) *HTML {
	return &HTML{
		tmpl:   tmpl,
		data:   data,
		status: status,
	}
}

// Blank responds with 200 OK and no body
type Blank struct{}

func (b *Blank) Encode(w http.ResponseWriter) error {
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusOK)

	return nil
}
