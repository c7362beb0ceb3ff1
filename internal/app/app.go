package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/config"
	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/export/natsexport"
	"github.com/vovakirdan/pairchat-server/internal/metrics"
	"github.com/vovakirdan/pairchat-server/internal/store"
	"github.com/vovakirdan/pairchat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/pairchat-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	exporter        *natsexport.Publisher
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.Store.Path).Msg("database initialized")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	opts := core.Options{
		Directory: st,
		Messages:  st,
		Metrics:   m,
		Logger:    logger,
		Presence: core.PresenceConfig{
			WriteTimeout: cfg.Presence.WriteTimeout,
			MaxRetries:   cfg.Presence.MaxRetries,
			RetryBackoff: cfg.Presence.RetryBackoff,
		},
		Pipeline: core.PipelineConfig{
			StoreTimeout:    cfg.Store.Timeout,
			MaxContentBytes: cfg.WS.MaxContentBytes,
		},
	}

	var exporter *natsexport.Publisher
	if cfg.NATS.URL != "" {
		exporter, err = natsexport.Connect(cfg.NATS.URL, logger)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		opts.Publisher = exporter
		logger.Info().Str("url", cfg.NATS.URL).Msg("event export enabled")
	}

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	})

	hub := core.NewHub(opts)
	server := transporthttp.NewServer(hub, authService, st, cfg, logger, registry)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		exporter:        exporter,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		a.hub.Run(hubCtx)
		close(hubDone)
	}()

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		// Shutdown does not wait for hijacked websocket connections; the hub
		// closes those below.
		runErr = a.server.Shutdown(shutdownCtx)
		if err := <-serverErr; runErr == nil {
			runErr = err
		}
	}

	stopHub()
	<-hubDone
	a.cleanup()
	return runErr
}

// cleanup closes the exporter, the database and other resources.
func (a *App) cleanup() {
	if a.exporter != nil {
		if err := a.exporter.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close event exporter")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
