package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/navikt/keys2text-backend/pkg/service/core/handlers"
	"github.com/navikt/keys2text-backend/pkg/service/core/transport"
	"github.com/rs/zerolog"
)

type UserEndpoints struct {
	Disconnect http.HandlerFunc
}

func NewUserEndpoints(log zerolog.Logger, h *handlers.UserHandler) *UserEndpoints {
	return &UserEndpoints{
		Disconnect: transport.For(h.Disconnect).Build(log),
	}
}

func NewUserRoutes(endpoints *UserEndpoints) AddRoutesFn {
	return func(router chi.Router) {
		router.Post("/user/disconnect", endpoints.Disconnect)
	}
}
