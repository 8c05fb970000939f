package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/psymetrics/internal/api"
	"github.com/soaringjerry/psymetrics/internal/config"
	"github.com/soaringjerry/psymetrics/internal/logging"
	"github.com/soaringjerry/psymetrics/internal/middleware"
	"github.com/soaringjerry/psymetrics/internal/monitoring"
	"github.com/soaringjerry/psymetrics/internal/utils"
)

var version = "dev"

func main() {
	cfg, err := config.Load(utils.SafeEnv("PSYMETRICS_CONFIG", ""))
	if err != nil {
		_, _ = os.Stderr.WriteString("psymetrics: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("psymetrics: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	store, closeStore, err := openStore(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			logger.Warn("failed to close report store", zap.Error(cerr))
		}
	}()

	var auth *middleware.Authenticator
	if cfg.AuthEnabled() {
		if auth, err = middleware.NewAuthenticator(cfg.Auth.JWTSecret, "psymetrics"); err != nil {
			return err
		}
		logger.Info("bearer-token auth enabled for write endpoints")
	}

	build := utils.ReadBuildInfo(version)
	handler := newHandler(cfg, store, auth, monitoring.New(), build, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("psymetrics server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("version", build.Version),
			zap.String("commit", build.Commit))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newHandler registers every route and wraps the mux in the middleware chain.
func newHandler(cfg *config.Config, store api.Store, auth *middleware.Authenticator, metrics *monitoring.Metrics, build utils.BuildInfo, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	api.NewRouter(api.Options{
		Store:          store,
		Logger:         logger,
		Metrics:        metrics,
		Auth:           auth,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}).Register(mux)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		locale := middleware.LocaleFromContext(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":      true,
			"name":    "psymetrics",
			"locale":  locale,
			"msg":     utils.T(locale, "health.ok"),
			"version": build.Version,
		})
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(build)
	})
	mux.Handle("GET /metrics", metrics.Handler())

	if cfg.Server.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.Server.StaticDir)))
	}

	mws := []func(http.Handler) http.Handler{
		middleware.RequestLogger(logger.Named("http")),
	}
	// Preflights are answered before auth and routing see them.
	if cfg.Server.CORSOrigin != "" {
		mws = append(mws, middleware.CORS(cfg.Server.CORSOrigin))
	}
	mws = append(mws,
		middleware.SecureHeaders,
		middleware.NoStore,
		middleware.LocaleMiddleware,
	)
	if auth != nil {
		mws = append(mws, auth.WithAuth)
	}
	// Innermost, so the ServeMux pattern is visible after routing.
	mws = append(mws, metrics.Middleware)
	return middleware.Chain(mux, mws...)
}
