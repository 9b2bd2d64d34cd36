package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	config "github.com/gatherly/gatherly/internal/config/auth-api"
	"github.com/gatherly/gatherly/internal/keys"
	pg "github.com/gatherly/gatherly/internal/repository/postgres"
	"github.com/gatherly/gatherly/internal/services/auth-api/account"
	"github.com/gatherly/gatherly/internal/services/auth-api/token"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := flag.String("config", "config/auth-api.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting auth-api", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	otelShutdown, err := initOTel(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(rootCtx) }()

	db, err := initDB(rootCtx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	keyStore, err := initKeys(cfg, logger)
	if err != nil {
		logger.Fatal("signing keys init", zap.Error(err))
	}

	// wiring
	userRepo := pg.NewUserRepo(db)
	tokenRepo := pg.NewRefreshTokenRepo(db)
	tx := pg.NewTransactor(db, logger)

	codec := token.NewCodec(keyStore, token.CodecConfig{
		Issuer:    cfg.Auth.Issuer,
		AccessTTL: cfg.Auth.AccessTTL,
	})
	tokens := token.NewManager(codec, tokenRepo, userRepo, tx, logger, token.ManagerConfig{
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	accounts := account.NewUsecase(userRepo, tokens)

	// background runners
	rotator := keys.NewRotator(logger, keyStore, cfg.Keys.RotationInterval, prometheus.DefaultRegisterer)
	cleaner := token.NewCleaner(logger, tokenRepo, cfg.Cleanup.Interval, prometheus.DefaultRegisterer)

	rotatorErrCh := make(chan error, 1)
	go func() { rotatorErrCh <- rotator.Run(rootCtx) }()

	cleanerErrCh := make(chan error, 1)
	go func() { cleanerErrCh <- cleaner.Run(rootCtx) }()

	httpSrv := buildHTTPServer(cfg, logger, db, keyStore, tokens, accounts)
	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, cfg, logger) }()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal")
	case err := <-httpErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shCtx)

	time.Sleep(100 * time.Millisecond)
	logger.Info("bye")
}
