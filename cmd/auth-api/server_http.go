package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	config "github.com/gatherly/gatherly/internal/config/auth-api"
	"github.com/gatherly/gatherly/internal/keys"
	"github.com/gatherly/gatherly/internal/obs"
	pg "github.com/gatherly/gatherly/internal/repository/postgres"
	"github.com/gatherly/gatherly/internal/services/auth-api/account"
	"github.com/gatherly/gatherly/internal/services/auth-api/rest"
	"github.com/gatherly/gatherly/internal/services/auth-api/token"
)

func buildHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	db *pg.DB,
	keyStore *keys.Store,
	tokens *token.Manager,
	accounts *account.Usecase,
) *http.Server {
	r := mux.NewRouter()
	rest.NewTokenHandler(logger, tokens, keyStore).Register(r)
	rest.NewAccountHandler(logger, accounts).Register(r)

	r.Handle("/metrics", obs.MetricsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		hctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		if err := db.Pool.Ping(hctx); err != nil {
			http.Error(w, "unhealthy: db", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           otelhttp.NewHandler(r, "auth-api"),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
