package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirerelay/internal/auth"
	"github.com/vovakirdan/wirerelay/internal/config"
	"github.com/vovakirdan/wirerelay/internal/core"
	"github.com/vovakirdan/wirerelay/internal/session"
	"github.com/vovakirdan/wirerelay/internal/store"
	"github.com/vovakirdan/wirerelay/internal/store/dir"
	"github.com/vovakirdan/wirerelay/internal/store/memory"
	"github.com/vovakirdan/wirerelay/internal/store/postgres"
	"github.com/vovakirdan/wirerelay/internal/store/redis"
	"github.com/vovakirdan/wirerelay/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirerelay/internal/transport/http"
	"github.com/vovakirdan/wirerelay/internal/transport/tcp"
)

// storeOpenTimeout bounds connecting to a networked file store.
const storeOpenTimeout = 10 * time.Second

// App wires together core and transport layers.
type App struct {
	tcp             *tcp.Server
	http            *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.FileStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Storage.Driver).Msg("file store initialized")

	gate, err := auth.NewGate(cfg.AccessKeyHash)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if gate != nil {
		logger.Info().Msg("access key required on auth")
	}

	hub := core.NewHub(st, logger)
	handler := session.NewHandler(hub, session.Config{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Gate:               gate,
	}, logger)

	a := &App{
		tcp: tcp.NewServer(handler, tcp.Config{
			Addr:          cfg.Addr,
			MaxFrameBytes: cfg.MaxFrameBytes,
			ReadTimeout:   cfg.ReadTimeout,
			WriteTimeout:  cfg.WriteTimeout,
		}, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}
	if cfg.HTTPAddr != "" {
		a.http = transporthttp.NewServer(hub, handler, cfg, logger)
	}
	return a, nil
}

func openStore(cfg config.StorageConfig) (store.FileStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpenTimeout)
	defer cancel()

	switch cfg.Driver {
	case config.DriverMemory, "":
		return memory.New(), nil
	case config.DriverSQLite:
		return sqlite.New(cfg.SQLitePath)
	case config.DriverDir:
		return dir.New(cfg.Dir)
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.PostgresDSN)
	case config.DriverRedis:
		return redis.New(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Run starts the servers and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 2)
	running := 1

	go func() {
		if err := a.tcp.ListenAndServe(ctx); err != nil {
			serverErr <- fmt.Errorf("tcp server: %w", err)
			return
		}
		serverErr <- nil
	}()

	if a.http != nil {
		running++
		// WebSocket sessions outlive Shutdown; tie them to the run context.
		a.http.BaseContext = func(net.Listener) context.Context { return ctx }
		go func() {
			a.log.Info().Str("addr", a.http.Addr).Msg("http server listening")
			if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- fmt.Errorf("http server: %w", err)
				return
			}
			serverErr <- nil
		}()
	}

	var runErr error
	select {
	case runErr = <-serverErr:
		running--
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancelShutdown()

	if a.http != nil {
		a.log.Info().Msg("shutting down http server")
		if err := a.http.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = err
		}
	}

wait:
	for ; running > 0; running-- {
		select {
		case err := <-serverErr:
			if err != nil && runErr == nil {
				runErr = err
			}
		case <-shutdownCtx.Done():
			a.log.Warn().Msg("shutdown timed out")
			break wait
		}
	}

	a.hub.Shutdown()
	a.cleanup()
	return runErr
}

// cleanup closes the file store.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
