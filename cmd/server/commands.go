package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ngo-data-hub/internal/config"
	"github.com/iliyamo/ngo-data-hub/internal/database"
	"github.com/iliyamo/ngo-data-hub/internal/logger"
	"github.com/iliyamo/ngo-data-hub/internal/middleware"
	"github.com/iliyamo/ngo-data-hub/internal/permission"
	"github.com/iliyamo/ngo-data-hub/internal/queue"
	"github.com/iliyamo/ngo-data-hub/internal/repository"
	"github.com/iliyamo/ngo-data-hub/internal/router"
	"github.com/iliyamo/ngo-data-hub/internal/service"
	"github.com/iliyamo/ngo-data-hub/internal/utils"
)

// Globals are shared by every sub-command.
type Globals struct {
	EnvFile string
	Version string
}

// ServeCmd runs the API until the process is signalled.
type ServeCmd struct {
	NoPurge bool `help:"Do not run the expired session purge loop."`
}

func (s *ServeCmd) Run(ctx context.Context, g *Globals) error {
	config.LoadDotEnv(g.EnvFile)
	cfg := config.Load()
	lg := logger.Setup(cfg.IsDevelopment())

	lg.Info().Str("version", g.Version).Str("env", cfg.Env).Msg("starting server")

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	perms, err := permission.Load(cfg.PermissionFile)
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}

	var publisher service.AuditPublisher
	if cfg.AuditQueue {
		rp := service.NewRabbitPublisher(cfg.RabbitURL, cfg.AuditBuffer)
		go func() { _ = rp.Run(ctx) }()
		publisher = rp
		lg.Info().Str("queue", queue.LoginAttemptsQueue).Msg("login attempts published to rabbitmq")
	}

	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	codec := utils.NewTokenCodec(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL(), cfg.RefreshTTL(), nil)
	auth := service.NewAuthService(users, sessions, repository.NewLoginLogRepo(db), codec, publisher, service.Options{
		LockThreshold: cfg.LockThreshold,
		LockDuration:  cfg.LockDuration,
		SessionTTL:    cfg.SessionTTL(),
		RotateRefresh: cfg.RotateRefresh,
	})

	var cache *middleware.ResponseCache
	if cacheCfg := config.LoadCacheConfig(); cacheCfg.Enabled {
		if rdb := config.NewRedisClient(); rdb != nil {
			defer rdb.Close()
			cache = middleware.NewResponseCache(cacheCfg, rdb)
		}
	}

	e, err := router.New(router.Deps{
		Cfg:         cfg,
		Auth:        auth,
		Users:       users,
		Records:     repository.NewRecordRepo(db),
		Permissions: perms,
		Cache:       cache,
		DB:          db,
		Logger:      lg,
	})
	if err != nil {
		return err
	}

	if !s.NoPurge {
		go service.RunSessionPurge(ctx, sessions, cfg.PurgeInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", ":"+cfg.Port).Msg("listening")
		errCh <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	lg.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// AuditConsumerCmd drains the login attempts queue into a log file.
type AuditConsumerCmd struct {
	LogFile string `help:"File the login attempts are appended to." default:"logs/login.log"`
}

func (a *AuditConsumerCmd) Run(ctx context.Context, g *Globals) error {
	config.LoadDotEnv(g.EnvFile)
	logger.Setup(config.IsDevelopmentEnv())

	url := config.RabbitURL()
	log.Info().Str("queue", queue.LoginAttemptsQueue).Str("file", a.LogFile).Msg("audit consumer started")
	err := queue.StartLoginAuditConsumer(ctx, url, a.LogFile)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HashPasswordCmd prints the bcrypt hash of a password.
type HashPasswordCmd struct {
	Password string `arg:"" help:"Plain-text password."`
	Cost     int    `help:"bcrypt cost." default:"12"`
}

func (h *HashPasswordCmd) Run() error {
	hash, err := utils.HashPassword(h.Password, h.Cost)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
