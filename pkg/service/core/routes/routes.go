package routes

import (
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"

	"github.com/go-chi/chi"
	"github.com/go-chi/cors"
)

type AddRoutesFn func(router chi.Router)

// CorsOptions allows credentialed requests with any method and header, but
// only from allowedOrigins.
func CorsOptions(allowedOrigins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
}

// Add registers routes in order on r, behind the CORS policy. Anything that
// must see every other route, such as the frontend, goes last.
func Add(r chi.Router, corsOpts cors.Options, routes ...AddRoutesFn) {
	r.Use(cors.Handler(corsOpts))

	for _, route := range routes {
		route(r)
	}
}

func Print(r chi.Router, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "Method\tRoute\tMiddlewares")

	err := chi.Walk(r, func(method, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", method, route, len(middlewares))

		return nil
	})
	if err != nil {
		return fmt.Errorf("walking routes: %w", err)
	}

	err = w.Flush()
	if err != nil {
		return err
	}

	return nil
}
