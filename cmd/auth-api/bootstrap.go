package main

import (
	"context"

	"go.uber.org/zap"

	config "github.com/gatherly/gatherly/internal/config/auth-api"
	"github.com/gatherly/gatherly/internal/keys"
	"github.com/gatherly/gatherly/internal/obs"
	pg "github.com/gatherly/gatherly/internal/repository/postgres"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(obs.LogConfig{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		App:    cfg.App.Name,
		Env:    cfg.App.Env,
		Ver:    cfg.App.Version,
	})
}

func initOTel(ctx context.Context, cfg *config.Config, logger *zap.Logger) (func(context.Context) error, error) {
	closer, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error { return closer.Shutdown(ctx) }, nil
}

func initDB(ctx context.Context, cfg *config.Config) (*pg.DB, error) {
	return pg.NewDB(ctx, cfg.DB)
}

// initKeys activates either the configured PEM key or a freshly generated
// one. Failure here aborts startup: the process never runs without an
// active signing key.
func initKeys(cfg *config.Config, logger *zap.Logger) (*keys.Store, error) {
	var kc keys.Config
	if cfg.Keys.PrivateKeyFile != "" {
		priv, err := keys.LoadPrivateKeyFile(cfg.Keys.PrivateKeyFile)
		if err != nil {
			return nil, err
		}
		kc.PrivateKey = priv
	}
	return keys.NewStore(kc, logger)
}
