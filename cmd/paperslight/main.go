package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/papers-light/internal/adapters"
	"github.com/example/papers-light/internal/application"
	"github.com/example/papers-light/internal/config"
	httptransport "github.com/example/papers-light/internal/http"
	"github.com/example/papers-light/internal/logging"
	"github.com/example/papers-light/internal/persistence"
	"github.com/example/papers-light/internal/persistence/memory"
	"github.com/example/papers-light/internal/persistence/sqlite"
	"github.com/example/papers-light/internal/ratelimit"
	"github.com/example/papers-light/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("invalid log level", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("papers API listening", "addr", server.Addr, "endpoint", cfg.EndpointPath, "storage", cfg.Storage, "session_backend", cfg.SessionBackend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// storage is satisfied by both the SQLite and the in-memory implementation.
type storage interface {
	persistence.AdminRepository
	persistence.PaperRepository
	persistence.SessionRepository
	Ping(ctx context.Context) error
	Close() error
}

// app holds the wired handler and the resources it must release.
type app struct {
	Handler http.Handler
	closers []func() error
	logger  *slog.Logger
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	definitions, err := config.LoadTypes(cfg.TypesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load paper types: %w", err)
	}

	accounts := adapters.NewAdminAccounts(store)
	if cfg.AdminUsername != "" {
		if err := application.EnsureAdmin(ctx, accounts, cfg.AdminUsername, cfg.AdminPassword, time.Now, logger); err != nil {
			return nil, fmt.Errorf("failed to provision admin: %w", err)
		}
	}

	lib, err := application.NewLibrary(application.LibraryDeps{
		Types:  paperTypes(definitions),
		Admins: accounts,
		Papers: adapters.NewPapers(store),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build library: %w", err)
	}

	states, closeSessions, err := session.NewStore(ctx, cfg, store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build session store: %w", err)
	}
	a.closers = append(a.closers, closeSessions)

	var limiter httptransport.LoginLimiter
	if l := ratelimit.New(cfg.LoginRate, cfg.LoginBurst, 0); l != nil {
		limiter = l
	}

	dispatcher := httptransport.NewDispatcher(httptransport.DispatcherConfig{
		Opener:   httptransport.LibraryOpener(lib),
		Sessions: states,
		Limiter:  limiter,
		Logger:   logger,
	})

	a.Handler = httptransport.NewRouter(httptransport.RouterConfig{
		Endpoint:   cfg.EndpointPath,
		Dispatcher: dispatcher,
		Health:     store,
		Metrics:    promhttp.Handler(),
		Logger:     logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	})
	return a, nil
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.New(), nil
	}

	db, err := sqlite.Open(cfg.SQLiteDSN, sqlite.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return db, nil
}

func paperTypes(definitions []config.TypeDefinition) []application.PaperType {
	types := make([]application.PaperType, 0, len(definitions))
	for _, def := range definitions {
		types = append(types, application.PaperType{
			Name:       def.Name,
			Attributes: append([]string(nil), def.Attributes...),
		})
	}
	return types
}
