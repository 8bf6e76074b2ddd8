package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/navikt/keys2text-backend/pkg/auth"
	"github.com/navikt/keys2text-backend/pkg/config/v2"
	"github.com/navikt/keys2text-backend/pkg/frontend"
	"github.com/navikt/keys2text-backend/pkg/memprobe"
	"github.com/navikt/keys2text-backend/pkg/requestlogger"
	"github.com/navikt/keys2text-backend/pkg/service/core/handlers"
	"github.com/navikt/keys2text-backend/pkg/service/core/routes"
	"github.com/navikt/keys2text-backend/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

var configFilePath = flag.String("config", "config.yaml", "path to config file")

const shutdownTimeout = 5 * time.Second

func main() {
	flag.Parse()

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	fileParts, err := config.ProcessConfigPath(*configFilePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("processing config path")
	}

	cfg, err := config.NewFileSystemLoader().Load(fileParts.FileName, fileParts.Path, "KEYS2TEXT", config.NewDefaultEnvBinder())
	if err != nil {
		zlog.Fatal().Err(err).Msg("loading config")
	}

	err = cfg.Validate()
	if err != nil {
		zlog.Fatal().Err(err).Msg("validating config")
	}

	zlog = newLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	httpClient := &http.Client{
		Timeout: cfg.Oauth.HTTPTimeout(),
	}

	google, err := auth.NewGoogle(
		ctx,
		cfg.Oauth.Issuer,
		cfg.Oauth.ClientID,
		cfg.Oauth.ClientSecret,
		cfg.Oauth.Scopes,
		httpClient,
	)
	if err != nil {
		zlog.Fatal().Err(err).Msg("setting up google oauth client")
	}

	sessions, err := session.NewManager(
		cfg.Session.SecretKey,
		cfg.Session.Cookie,
		zlog.With().Str("subsystem", "session").Logger(),
	)
	if err != nil {
		zlog.Fatal().Err(err).Msg("setting up sessions")
	}

	probe := memprobe.New(zlog.With().Str("subsystem", "memprobe").Logger())

	h := handlers.NewHandlers(
		google,
		cfg.Server.BaseURL,
		probe,
		zlog.With().Str("subsystem", "handlers").Logger(),
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestlogger.Middleware(zlog.With().Str("subsystem", "access").Logger(), "/internal/"))
	router.Use(middleware.Recoverer)
	router.Use(sessions.Middleware)

	routes.Add(router, routes.CorsOptions(cfg.Cors.AllowedOrigins),
		routes.NewAuthRoutes(routes.NewAuthEndpoints(zlog, h.AuthHandler)),
		routes.NewUserRoutes(routes.NewUserEndpoints(zlog, h.UserHandler)),
		routes.NewMetricsRoutes(routes.NewMetricsEndpoints(prom(append(h.Metrics(), probe.Collectors()...)...))),
		routes.NewFrontendRoutes(cfg.Session.SecretKey, frontend.New(zlog.With().Str("subsystem", "frontend").Logger()).Init),
	)

	if cfg.Debug {
		err = routes.Print(router, os.Stdout)
		if err != nil {
			zlog.Error().Err(err).Msg("printing routes")
		}
	}

	server := http.Server{
		Addr:              cfg.Server.ListenAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		zlog.Info().Str("address", server.Addr).Str("app_env", cfg.AppEnv).Msg("listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("serving http")
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Warn().Err(err).Msg("shutdown error")
	}
}

// newLogger writes JSON in production and human readable lines elsewhere.
func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if !cfg.IsProduction() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

func prom(cols ...prometheus.Collector) *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewGoCollector())
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(cols...)

	return r
}
