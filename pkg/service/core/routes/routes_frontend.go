package routes

import (
	"github.com/go-chi/chi"
	"github.com/navikt/keys2text-backend/pkg/frontend"
)

// NewFrontendRoutes hands the router to the frontend. Pass it last to Add.
func NewFrontendRoutes(secretKey string, init frontend.InitFunc) AddRoutesFn {
	return func(router chi.Router) {
		init(secretKey, router)
	}
}
