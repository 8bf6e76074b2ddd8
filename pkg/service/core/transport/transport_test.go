package transport

import (
	"context"
	"html/template"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gilcrest/diygoapi/errs"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

type TestData struct {
	ID string `json:"id,omitempty"`
}

type testSimpleHandler struct {
	invocations int
	NewURL      string
	Template    *template.Template
}

func (h *testSimpleHandler) Reset() {
	h.invocations = 0
}

func (h *testSimpleHandler) Invocations() int {
	return h.invocations
}

func (h *testSimpleHandler) Simple(_ context.Context, _ *http.Request, in TestData) (*TestData, error) {
	h.invocations++

	return &TestData{
		ID: in.ID,
	}, nil
}

func (h *testSimpleHandler) SimpleNoInput(_ context.Context, _ *http.Request, _ any) (*TestData, error) {
	h.invocations++

	return &TestData{
		ID: "test",
	}, nil
}

func (h *testSimpleHandler) ParamFromContext(ctx context.Context, _ *http.Request, _ any) (*TestData, error) {
	h.invocations++

	return &TestData{
		ID: chi.URLParamFromCtx(ctx, "id"),
	}, nil
}

func (h *testSimpleHandler) RedirectEncoder(_ context.Context, r *http.Request, _ any) (*Redirect, error) {
	h.invocations++

	return NewRedirect(h.NewURL, r), nil
}

func (h *testSimpleHandler) Receiver(_ context.Context, _ *http.Request, _ any) (*TestData, error) {
	h.invocations++

	return &TestData{
		ID: "I was redirected",
	}, nil
}

func (h *testSimpleHandler) HTMLEncoder(_ context.Context, _ *http.Request, _ any) (Encoder, error) {
	h.invocations++

	return NewHTML(http.StatusOK, h.Template, "<script>alert(1)</script>"), nil
}

func (h *testSimpleHandler) BlankEncoder(_ context.Context, _ *http.Request, _ any) (*Blank, error) {
	h.invocations++

	return &Blank{}, nil
}

func (h *testSimpleHandler) Failing(_ context.Context, _ *http.Request, _ any) (*TestData, error) {
	h.invocations++

	return nil, errs.E(errs.InvalidRequest, "missing code")
}

func TestHandlerFor(t *testing.T) {
	simple := &testSimpleHandler{
		NewURL:   "/receiver",
		Template: template.Must(template.New("page").Parse("<h1>{{.}}</h1>")),
	}

	logger := zerolog.New(os.Stdout)

	testCases := []struct {
		name    string
		desc    string
		routes  map[string]http.HandlerFunc
		request *http.Request
		status  int
		count   int
	}{
		{
			name: "handler-for-json-response",
			desc: "Invokes the handler and returns the response as JSON, expecting the result to be empty {}",
			routes: map[string]http.HandlerFunc{
				"/test": For(simple.Simple).Build(logger),
			},
			request: httptest.NewRequest(http.MethodGet, "/test", nil),
			status:  http.StatusOK,
			count:   1,
		},
		{
			name: "handler-for-json-request-response-no-input",
			desc: "Invokes the handler without input and returns the response as JSON",
			routes: map[string]http.HandlerFunc{
				"/test": For(simple.SimpleNoInput).Build(logger),
			},
			request: httptest.NewRequest(http.MethodGet, "/test", nil),
			status:  http.StatusOK,
			count:   1,
		},
		{
			name: "handler-for-param-from-context",
			desc: "Invokes the handler and expects the parameter to be taken from the context",
			routes: map[string]http.HandlerFunc{
				"/test/{id}": For(simple.ParamFromContext).Build(logger),
			},
			request: httptest.NewRequest(http.MethodGet, "/test/123", nil),
			status:  http.StatusOK,
			count:   1,
		},
		{
			name: "handler-for-redirect-encoder",
			desc: "Invokes the handler and expects a 302 without a body, then follows it",
			routes: map[string]http.HandlerFunc{
				"/whatever": For(simple.RedirectEncoder).Build(logger),
				"/receiver": For(simple.Receiver).Build(logger),
			},
			request: httptest.NewRequest(http.MethodGet, "/whatever", nil),
			status:  http.StatusFound,
			count:   2,
		},
		{
			name: "handler-for-html-encoder",
			desc: "Invokes the handler and expects the template output, escaped",
			routes: map[string]http.HandlerFunc{
				"/page": For(simple.HTMLEncoder).Build(logger),
			},
			request: httptest.NewRequest(http.MethodGet, "/page", nil),
			status:  http.StatusOK,
			count:   1,
		},
		{
			name: "handler-for-blank-encoder",
			desc: "Invokes the handler and expects 200 with an empty body",
			routes: map[string]http.HandlerFunc{
				"/blank": For(simple.BlankEncoder).Build(logger),
			},
			request: httptest.NewRequest(http.MethodGet, "/blank", nil),
			status:  http.StatusOK,
			count:   1,
		},
		{
			name: "handler-for-error",
			desc: "Invokes the handler and expects the error to be mapped to a status",
			routes: map[string]http.HandlerFunc{
				"/fail": For(simple.Failing).Build(logger),
			},
			request: httptest.NewRequest(http.MethodGet, "/fail", nil),
			status:  http.StatusBadRequest,
			count:   1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()

			r := chi.NewRouter()
			for path, handler := range tc.routes {
				r.Get(path, handler)
			}

			r.ServeHTTP(rr, tc.request)

			if rr.Code == http.StatusFound {
				r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, rr.Header().Get("Location"), nil))
			}

			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.count, simple.Invocations())
			defer simple.Reset()

			g := goldie.New(t)
			g.Assert(t, tc.name, rr.Body.Bytes())
		})
	}
}

func TestHTMLEncoderTemplateError(t *testing.T) {
	tmpl := template.Must(template.New("page").Parse("{{.Missing.Field}}"))

	handler := func(_ context.Context, _ *http.Request, _ any) (Encoder, error) {
		return NewHTML(http.StatusOK, tmpl, 42), nil
	}

	rr := httptest.NewRecorder()
	For(handler).Build(zerolog.Nop()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotContains(t, rr.Body.String(), "{{")
	assert.Contains(t, rr.Body.String(), `"kind":"internal error"`)
}
