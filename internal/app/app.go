package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirethread/internal/auth"
	"github.com/vovakirdan/wirethread/internal/config"
	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/service/history"
	"github.com/vovakirdan/wirethread/internal/service/messages"
	"github.com/vovakirdan/wirethread/internal/service/notify"
	"github.com/vovakirdan/wirethread/internal/service/threads"
	"github.com/vovakirdan/wirethread/internal/service/unread"
	"github.com/vovakirdan/wirethread/internal/store"
	"github.com/vovakirdan/wirethread/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirethread/internal/transport/http"
)

// App wires together store, services and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	hub := core.NewHub(logger)

	// The store calls these at its transaction points.
	dispatcher := notify.NewDispatcher(st, hub, logger)
	recorder := history.NewRecorder(logger)
	st.SetHooks(store.MessageHooks{
		Created:  dispatcher.OnMessageCreated,
		Updating: recorder.OnMessageUpdating,
	})

	authService := NewAuthService(st, cfg)

	server := transporthttp.NewServer(hub, transporthttp.Services{
		Auth:          authService,
		Users:         st,
		Messages:      messages.New(st, logger, cfg.MaxBodyLength),
		Threads:       threads.New(st, logger),
		Unread:        unread.New(st, hub, logger),
		History:       history.New(st),
		Notifications: notify.New(st),
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// NewAuthService builds the auth service from configuration.
func NewAuthService(users store.UserStore, cfg *config.Config) *auth.Service {
	return auth.NewService(users, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		// Closing the hub ends websocket write loops so Shutdown does not wait on them.
		stopHub()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
