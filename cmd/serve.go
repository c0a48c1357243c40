package main

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jukebox/internal/queue"
	"github.com/desertthunder/jukebox/internal/realtime"
	"github.com/desertthunder/jukebox/internal/repositories"
	"github.com/desertthunder/jukebox/internal/server"
	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/shared"
)

type closeFunc func() error

// Serve wires storage, the change broker and the catalog into the API server and blocks until ctx is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.config
	if port := cmd.Int("port"); port > 0 {
		config.Server.Port = port
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if !config.HasSpotifyCredentials() {
		return fmt.Errorf("%w: set credentials.spotify in %s or %s/%s", shared.ErrMissingCredentials,
			r.configPath, shared.EnvSpotifyClientID, shared.EnvSpotifyClientSecret)
	}

	var closers []closeFunc
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				r.logger.Warn("shutdown cleanup failed", "error", err)
			}
		}
	}()

	store, closeStore, err := r.openStore(ctx, config.Database)
	if err != nil {
		return err
	}
	closers = append(closers, closeStore)

	broker, err := r.openBroker(ctx, config.Realtime)
	if err != nil {
		return err
	}
	closers = append(closers, broker.Close)

	catalog, err := services.NewSpotifyService(services.SpotifyOptionsFromConfig(config.Credentials.Spotify))
	if err != nil {
		return err
	}

	svc := queue.NewService(store, catalog, broker, r.logger)
	feed := realtime.NewHandler(broker, realtime.HandlerOptions{
		AllowedOrigins: config.Server.AllowedOrigins,
		PingInterval:   config.Realtime.PingInterval.Duration,
		Logger:         r.logger,
	})

	srv := server.New(server.Options{
		Queue:       svc,
		Feed:        feed,
		Auth:        server.NewAuth(config.Auth),
		Origins:     config.Server.AllowedOrigins,
		CatalogName: catalog.Name(),
		Logger:      r.logger,
	})

	if config.Auth.JWTSecret == "" {
		r.logger.Warn("auth.jwt_secret is empty, owner routes are unauthenticated")
	}
	return srv.ListenAndServe(ctx, config.Server.Addr(), config.Server.ShutdownTimeout.Duration)
}

// openStore opens the request store selected by database.driver.
func (r *Runner) openStore(ctx context.Context, c shared.DatabaseConfig) (repositories.RequestStore, closeFunc, error) {
	if c.Driver == "postgres" {
		pool, err := repositories.NewPostgresPool(ctx, c.URL)
		if err != nil {
			return nil, nil, err
		}
		if err := repositories.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		r.logger.Info("using postgres request store")
		return repositories.NewPGRequestRepository(pool), func() error { pool.Close(); return nil }, nil
	}

	db, err := shared.OpenMigratedDatabase(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	r.logger.Info("using sqlite request store", "path", c.Path)
	return repositories.NewRequestRepository(db), db.Close, nil
}

// broker is a [realtime.Broker] that can be shut down.
type broker interface {
	realtime.Broker
	io.Closer
}

// openBroker creates the change broker selected by realtime.broker.
func (r *Runner) openBroker(ctx context.Context, c shared.RealtimeConfig) (broker, error) {
	if c.Broker == "redis" {
		client, err := realtime.NewRedisClient(ctx, c.RedisURL)
		if err != nil {
			return nil, err
		}
		r.logger.Info("using redis change broker", "prefix", c.ChannelPrefix)
		return realtime.NewRedisBroker(client, c.ChannelPrefix, c.Buffer, r.logger), nil
	}
	r.logger.Info("using in-memory change broker")
	return realtime.NewHub(c.Buffer, r.logger), nil
}
