package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/example/papers-light/internal/config"
	"github.com/example/papers-light/internal/persistence"
	"github.com/example/papers-light/internal/persistence/memory"
)

// NewStore builds the StateStore selected by cfg.SessionBackend. repo is used
// by the sqlite backend and may be nil otherwise. The returned close function
// releases backend connections.
func NewStore(ctx context.Context, cfg config.Config, repo persistence.SessionRepository, logger *slog.Logger) (*StateStore, func() error, error) {
	keys := keyPairs(cfg)
	options := sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	noop := func() error { return nil }

	var (
		store   sessions.Store
		closeFn = noop
	)

	switch cfg.SessionBackend {
	case config.SessionBackendCookie:
		cookieStore := sessions.NewCookieStore(keys...)
		cookieStore.Options = &options
		cookieStore.MaxAge(options.MaxAge)
		store = cookieStore
	case config.SessionBackendSQLite:
		if repo == nil {
			return nil, nil, fmt.Errorf("session: sqlite backend requires a session repository")
		}
		store = newServerStore(NewRepositoryBackend(repo, config.SessionBackendSQLite), options, keys)
	case config.SessionBackendMemory:
		backend := NewRepositoryBackend(memory.New(), config.SessionBackendMemory)
		store = newServerStore(backend, options, keys)
	case config.SessionBackendRedis:
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		store = newServerStore(NewRedisBackend(client), options, keys)
		closeFn = client.Close
	default:
		return nil, nil, fmt.Errorf("session: unknown backend %q", cfg.SessionBackend)
	}

	return NewStateStore(store, options, logger), closeFn, nil
}

func newServerStore(backend Backend, options sessions.Options, keys [][]byte) *ServerStore {
	store := NewServerStore(backend, keys...)
	store.Options = &options
	store.MaxAge(options.MaxAge)
	return store
}

func keyPairs(cfg config.Config) [][]byte {
	hashKey := []byte(cfg.SessionSecret)
	if cfg.SessionEncryptionKey == "" {
		return [][]byte{hashKey}
	}
	return [][]byte{hashKey, []byte(cfg.SessionEncryptionKey)}
}
