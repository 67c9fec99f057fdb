// Command authd runs the back-office session agent: it owns one
// authentication state machine and serves it over HTTP.
//
//	@title		Back-office Auth Agent API
//	@version	1.0
//	@BasePath	/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pharmaai/backoffice-auth/internal/api"
	"github.com/pharmaai/backoffice-auth/internal/core/service"
	"github.com/pharmaai/backoffice-auth/internal/infrastructure/config"
	mongostore "github.com/pharmaai/backoffice-auth/internal/infrastructure/db/mongo"
	redisstore "github.com/pharmaai/backoffice-auth/internal/infrastructure/db/redis"
	"github.com/pharmaai/backoffice-auth/internal/infrastructure/http/handlers"
	"github.com/pharmaai/backoffice-auth/internal/infrastructure/identity"
	"github.com/pharmaai/backoffice-auth/internal/infrastructure/queue"
	"github.com/pharmaai/backoffice-auth/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
	cfg, err := config.Load(ctx, boot)
	if err != nil {
		boot.Error().Err(err).Msg("invalid configuration")
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Env == "development",
		Service: "backoffice-auth",
	})

	mongoClient, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Error().Err(err).Msg("mongo unavailable")
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()

	rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		log.Error().Err(err).Msg("redis unavailable")
		return err
	}
	defer rdb.Close()

	directory := mongostore.NewDirectoryRepository(db, log)
	credentials := mongostore.NewCredentialRepository(db)
	audit := mongostore.NewAuditRepository(db)
	backupCache := mongostore.NewCacheStore(db)
	if err := mongostore.EnsureIndexes(ctx, directory, audit, backupCache); err != nil {
		log.Error().Err(err).Msg("failed to ensure indexes")
		return err
	}

	provider := identity.NewProvider(credentials, cfg.JWTSecret, cfg.Identity.TokenTTL, log)
	defer provider.Close()

	toucher := queue.NewDispatcher(cfg.Touch.Workers, cfg.Touch.Delay, directory, log)
	toucher.Start(ctx)

	loader := service.NewSessionLoader(provider, directory, toucher, service.LoaderConfig{
		UserTimeout:       cfg.Session.UserTimeout,
		PermissionTimeout: cfg.Session.PermissionTimeout,
	}, log)
	cache := service.NewSessionCache(redisstore.NewSessionStore(rdb), backupCache, cfg.Session.CacheTTL, log).
		WithNamespace(cfg.AgentID)
	machine := service.NewAuthStateMachine(provider, loader, cache, audit, service.StateMachineConfig{
		SafetyTimeout:    cfg.Session.SafetyTimeout,
		LoginSettleDelay: cfg.Session.LoginSettleDelay,
	}, log)
	machine.Mount(ctx)
	defer machine.Close()

	checks := map[string]handlers.Check{
		"mongo": handlers.MongoCheck(db),
		"redis": handlers.RedisCheck(rdb),
	}
	e := api.NewRouter(api.Deps{
		Auth:   machine,
		Audit:  audit,
		Checks: checks,
		Log:    logger.Component("http"),
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("auth agent listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-serverErr:
		log.Error().Err(err).Msg("http server failed")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown failed")
	}
	return nil
}
