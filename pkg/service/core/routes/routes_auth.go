package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/navikt/keys2text-backend/pkg/service/core/handlers"
	"github.com/navikt/keys2text-backend/pkg/service/core/transport"
	"github.com/rs/zerolog"
)

type AuthEndpoints struct {
	Login    http.HandlerFunc
	Callback http.HandlerFunc
	Logout   http.HandlerFunc
}

func NewAuthEndpoints(log zerolog.Logger, h *handlers.AuthHandler) *AuthEndpoints {
	return &AuthEndpoints{
		Login:    transport.For(h.Login).Build(log),
		Callback: transport.For(h.Callback).Build(log),
		Logout:   transport.For(h.Logout).Build(log),
	}
}

func NewAuthRoutes(endpoints *AuthEndpoints) AddRoutesFn {
	return func(router chi.Router) {
		router.Route("/google", func(r chi.Router) {
			r.Get("/login", endpoints.Login)
			r.Get("/callback", endpoints.Callback)
			r.Get("/logout", endpoints.Logout)
		})
	}
}
