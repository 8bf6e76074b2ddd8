package handlers

import (
	"github.com/navikt/keys2text-backend/pkg/memprobe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type Handlers struct {
	AuthHandler *AuthHandler
	UserHandler *UserHandler
}

func NewHandlers(provider OAuthProvider, baseURL string, probe *memprobe.Probe, log zerolog.Logger) *Handlers {
	return &Handlers{
		AuthHandler: NewAuthHandler(provider, baseURL, log.With().Str("handler", "auth").Logger()),
		UserHandler: NewUserHandler(probe),
	}
}

// Metrics returns the collectors owned by the handlers.
func (h *Handlers) Metrics() []prometheus.Collector {
	return []prometheus.Collector{
		h.AuthHandler.logins,
	}
}
