package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"
	"github.com/tendant/simple-registry/pkg/registry"
	"github.com/tendant/simple-registry/pkg/registry/api"
	"github.com/tendant/simple-registry/pkg/registry/config"
)

// Config holds process-level settings. Store and publish settings are read by
// config.WithEnv using EnvPrefix.
type Config struct {
	EnvPrefix       string        `env:"REGISTRY_ENV_PREFIX" env-default:"REGISTRY_"`
	ApiKeySHA256    string        `env:"API_KEY_SHA256"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	LogJSON         bool          `env:"LOG_JSON" env-default:"false"`
}

func main() {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	if cfg.LogJSON {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	serverConfig, err := config.Load(config.WithEnv(cfg.EnvPrefix))
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	stores, err := serverConfig.BuildStores(ctx)
	if err != nil {
		slog.Error("Failed to build stores", "err", err)
		os.Exit(1)
	}
	defer stores.Close()

	publisher, err := serverConfig.BuildPublisher(stores, slog.Default())
	if err != nil {
		slog.Error("Failed to build publisher", "err", err)
		os.Exit(1)
	}

	var auth []func(http.Handler) http.Handler
	if cfg.ApiKeySHA256 != "" {
		apiKeyMiddleware, err := middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
			APIKeys: map[string]string{
				"key1": cfg.ApiKeySHA256,
			},
		})
		if err != nil {
			slog.Error("Failed initialize API Key middleware", "err", err)
			os.Exit(1)
		}
		auth = append(auth, apiKeyMiddleware)
	} else {
		slog.Warn("API_KEY_SHA256 not set, publish endpoint is unauthenticated")
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: newRouter(publisher, serverConfig, cfg.RequestTimeout, auth...),
	}

	go func() {
		slog.Info("Registry server starting",
			"port", serverConfig.Port,
			"environment", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"storage", serverConfig.Storage.Type,
			"strict_frames", serverConfig.StrictFrames)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
	}
	slog.Info("Server exiting")
}

// newRouter wires health checks and the crate endpoints. auth guards the
// crate endpoints when present.
func newRouter(publisher registry.Publisher, serverConfig *config.ServerConfig, timeout time.Duration, auth ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	if timeout > 0 {
		r.Use(chimiddleware.Timeout(timeout))
	}

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)

	handler := api.NewRegistryHandler(publisher, serverConfig.MaxPublishBytes)
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth...)
			r.Mount("/crates", handler.Routes())
		})
	})

	return r
}
