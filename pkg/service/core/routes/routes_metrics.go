package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsEndpoints struct {
	GetMetrics http.Handler
	IsAlive    http.HandlerFunc
}

func NewMetricsEndpoints(promReg *prometheus.Registry) *MetricsEndpoints {
	return &MetricsEndpoints{
		GetMetrics: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
		IsAlive: func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("ok"))
		},
	}
}

func NewMetricsRoutes(endpoints *MetricsEndpoints) AddRoutesFn {
	return func(router chi.Router) {
		router.Handle("/internal/metrics", endpoints.GetMetrics)
		router.Get("/internal/isalive", endpoints.IsAlive)
	}
}
