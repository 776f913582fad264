// Package server wires the gophauth components together and runs the HTTP
// and internal gRPC endpoints until the process is signalled to stop.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/cache"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/gateway"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/store"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	store       store.Store
	userService *services.UserService
	authorizer  *gateway.Authorizer
	registry    *prometheus.Registry

	redis       *redis.Client
	broadcaster *events.RedisBroadcaster
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	bus := events.NewBus(logger.With("module", "events"))
	resolutions := cache.New(c.CacheSize, c.CacheTTL, registry)
	events.CacheCleaner(bus, resolutions, common.UsersNamespace, c.CacheCleanEvents...)

	app := &App{config: c, logger: logger, registry: registry}

	if c.RedisURL != "" {
		client, err := events.NewRedisClient(ctx, c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		b := events.NewRedisBroadcaster(client, c.RedisChannel, bus, logger.With("module", "broadcast"))
		if err := b.Start(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("broadcaster init error: %w", err)
		}
		app.redis, app.broadcaster = client, b
	}

	st, err := store.Open(ctx, c, events.MutationPublisher(bus, common.UsersNamespace, gateway.EventMeta), logger.With("module", "store"))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.store = st

	tokens := auth.NewTokenService([]byte(c.SecretKey), c.TokenValidityDuration, st)
	app.userService = services.NewUserService(st, tokens, resolutions, c, logger.With("module", "users"))
	app.authorizer = gateway.NewAuthorizer(app.userService, logger.With("module", "gateway"))

	return app, nil
}

// Close releases the store and the broadcast connection.
func (app *App) Close() error {
	var errs []error
	if app.broadcaster != nil {
		errs = append(errs, app.broadcaster.Close())
	}
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.store != nil {
		errs = append(errs, app.store.Close())
	}
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	api := httpapi.NewServer(app.userService, app.authorizer, app.registry, app.logger.With("module", "http"))
	srv := &http.Server{
		Addr:              app.config.HTTPAddr(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "HTTP shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger.With("module", "grpc"), app.userService, app.authorizer)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves HTTP and gRPC until ctx is cancelled, a signal arrives or
// either server fails, then releases resources.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "close resources", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
