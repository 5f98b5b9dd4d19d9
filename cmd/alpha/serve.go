package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alpha-framework/alpha/internal/api"
	"github.com/alpha-framework/alpha/internal/filecache"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/alpha-framework/alpha/internal/service"
	"github.com/alpha-framework/alpha/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var skipMigrations bool

	command := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(a, skipMigrations)
		},
	}
	command.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on start")

	return command
}

func serve(a *app, skipMigrations bool) error {
	cfg, log := a.cfg, a.log
	log.Info().Msg("Starting Alpha server...")

	if !skipMigrations {
		if err := a.db.RunMigrations(cfg.Server.MigrationsPath); err != nil {
			return err
		}
	}

	// Session store
	var store session.Store
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		redisStore := session.NewRedisStore(client, "alpha:session")
		if err := redisStore.Ping(context.Background()); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		store = redisStore
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Sessions stored in redis")
	} else {
		store = session.NewMemoryStore()
		log.Warn().Msg("REDIS_ADDR not set, sessions are kept in memory")
	}

	var cache *filecache.Cache
	if cfg.Cache.Enabled {
		var err error
		if cache, err = filecache.New(cfg.Cache.Dir); err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
	}

	repos := repository.New(a.db)
	services := service.NewServices(repos, cfg, service.Deps{Cache: cache, Sessions: store}, log)

	ctx := context.Background()
	if err := services.DEnum.EnsureDefaults(ctx); err != nil {
		return err
	}
	if err := services.Person.EnsureRights(ctx); err != nil {
		return err
	}

	// Background work
	go services.Job.StartProcessor(ctx)
	if err := services.Maintenance.Start(); err != nil {
		return err
	}

	sessions := session.NewManager(store, cfg.Security.Secret, session.Options{
		CookieName: cfg.Security.CookieName,
		Secure:     cfg.Security.CookieSecure,
		TTL:        cfg.Security.SessionTTL,
	})
	router, err := api.NewRouter(services, sessions, cfg, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	services.Job.StopProcessor()
	select {
	case <-services.Maintenance.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("Maintenance still running at shutdown")
	}

	log.Info().Msg("Server exited gracefully")
	return nil
}
