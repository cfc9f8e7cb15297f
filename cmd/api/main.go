package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal/config"
	"github.com/scythe504/linkrace-backend/internal/database"
	"github.com/scythe504/linkrace-backend/internal/events"
	"github.com/scythe504/linkrace-backend/internal/game"
	"github.com/scythe504/linkrace-backend/internal/logger"
	"github.com/scythe504/linkrace-backend/internal/lookup"
	"github.com/scythe504/linkrace-backend/internal/server"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("error loading .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func newCommand() *cli.Command {
	def := config.Default()

	return &cli.Command{
		Name:  "linkrace-api",
		Usage: "multiplayer link race game server",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Value: def.Port, Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "log-level", Value: def.LogLevel, Sources: cli.EnvVars("LOG_LEVEL")},
			&cli.StringFlag{Name: "log-format", Value: def.LogFormat, Usage: "console or json", Sources: cli.EnvVars("LOG_FORMAT")},
			&cli.StringFlag{Name: "public-url", Value: def.PublicURL, Usage: "base url used in join links", Sources: cli.EnvVars("PUBLIC_URL")},
			&cli.StringFlag{Name: "allowed-origins", Value: "*", Usage: "comma separated origins", Sources: cli.EnvVars("ALLOWED_ORIGINS")},

			&cli.IntFlag{Name: "max-rooms", Value: def.MaxRooms, Sources: cli.EnvVars("MAX_ROOMS")},
			&cli.DurationFlag{Name: "reconnect-grace", Value: def.ReconnectGrace, Sources: cli.EnvVars("RECONNECT_GRACE")},
			&cli.DurationFlag{Name: "cleanup-grace", Value: def.CleanupGrace, Sources: cli.EnvVars("CLEANUP_GRACE")},
			&cli.DurationFlag{Name: "fallback-retry-interval", Value: def.FallbackRetryInterval, Sources: cli.EnvVars("FALLBACK_RETRY_INTERVAL")},
			&cli.IntFlag{Name: "fallback-retries", Value: def.FallbackRetries, Sources: cli.EnvVars("FALLBACK_RETRIES")},
			&cli.DurationFlag{Name: "lookup-timeout", Value: def.LookupTimeout, Sources: cli.EnvVars("LOOKUP_TIMEOUT")},

			&cli.StringFlag{Name: "database-url", Sources: cli.EnvVars("DATABASE_URL")},
			&cli.StringFlag{Name: "redis-url", Sources: cli.EnvVars("REDIS_URL")},
			&cli.StringFlag{Name: "nats-url", Sources: cli.EnvVars("NATS_URL")},
			&cli.StringFlag{Name: "path-service-url", Sources: cli.EnvVars("PATH_SERVICE_URL")},
			&cli.StringFlag{Name: "preview-service-url", Sources: cli.EnvVars("PREVIEW_SERVICE_URL")},
			&cli.DurationFlag{Name: "cache-ttl", Value: def.CacheTTL, Sources: cli.EnvVars("CACHE_TTL")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Config{
				Port:                  cmd.Int("port"),
				LogLevel:              cmd.String("log-level"),
				LogFormat:             cmd.String("log-format"),
				PublicURL:             cmd.String("public-url"),
				AllowedOrigins:        config.SplitList(cmd.String("allowed-origins")),
				MaxRooms:              cmd.Int("max-rooms"),
				ReconnectGrace:        cmd.Duration("reconnect-grace"),
				CleanupGrace:          cmd.Duration("cleanup-grace"),
				FallbackRetryInterval: cmd.Duration("fallback-retry-interval"),
				FallbackRetries:       cmd.Int("fallback-retries"),
				LookupTimeout:         cmd.Duration("lookup-timeout"),
				DatabaseURL:           cmd.String("database-url"),
				RedisURL:              cmd.String("redis-url"),
				NatsURL:               cmd.String("nats-url"),
				PathServiceURL:        cmd.String("path-service-url"),
				PreviewServiceURL:     cmd.String("preview-service-url"),
				CacheTTL:              cmd.Duration("cache-ttl"),
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(ctx, cfg)
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	deps, cleanup, err := buildDeps(ctx, cfg)
	defer cleanup()
	if err != nil {
		return err
	}

	registry := game.NewRegistry(game.Options{
		MaxRooms:              cfg.MaxRooms,
		ReconnectGrace:        cfg.ReconnectGrace,
		CleanupGrace:          cfg.CleanupGrace,
		FallbackRetryInterval: cfg.FallbackRetryInterval,
		FallbackRetries:       cfg.FallbackRetries,
		LookupTimeout:         cfg.LookupTimeout,
	}, deps)

	srv := server.NewServer(cfg, registry)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			registry.Shutdown()
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	registry.Shutdown()
	log.Info().Msg("server stopped")
	return nil
}

// buildDeps connects the optional backing services. The returned cleanup is
// always safe to call.
func buildDeps(ctx context.Context, cfg config.Config) (game.Deps, func(), error) {
	deps := game.Deps{Clock: game.RealClock()}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PathServiceURL != "" {
		deps.Paths = lookup.NewPathClient(cfg.PathServiceURL, cfg.LookupTimeout)
	}
	if cfg.PreviewServiceURL != "" {
		deps.Previews = lookup.NewPreviewClient(cfg.PreviewServiceURL, cfg.LookupTimeout)
	}

	if cfg.DatabaseURL != "" {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return deps, cleanup, err
		}
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, pool.Close)
		deps.Titles = database.NewTitleStore(pool)
	}

	if cfg.RedisURL != "" {
		client, err := lookup.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, func() { _ = client.Close() })

		cache := lookup.NewCache(client, cfg.CacheTTL)
		if deps.Paths != nil {
			deps.Paths = cache.Paths(deps.Paths)
		}
		if deps.Previews != nil {
			deps.Previews = cache.Previews(deps.Previews)
		}
		if deps.Titles != nil {
			deps.Titles = cache.Titles(deps.Titles)
		}
		log.Info().Dur("ttl", cfg.CacheTTL).Msg("redis lookup cache enabled")
	}

	if cfg.NatsURL != "" {
		pub, err := events.Connect(cfg.NatsURL, "linkrace-api")
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, func() { _ = pub.Close() })
		deps.Events = pub
	}

	return deps, cleanup, nil
}
