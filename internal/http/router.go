package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// HealthChecker reports whether the backing storage is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterConfig collects the handlers mounted by NewRouter. Health and Metrics
// are optional.
type RouterConfig struct {
	Endpoint   string
	Dispatcher http.Handler
	Health     HealthChecker
	Metrics    http.Handler
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

// NewRouter builds the application handler.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "/request"
	}

	if cfg.Dispatcher != nil {
		dispatcher := Instrument("request", cfg.Dispatcher)
		mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodPost:
				dispatcher.ServeHTTP(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
	}

	if cfg.Health != nil {
		health := Instrument("healthz", healthHandler(cfg.Health, cfg.Logger))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			health.ServeHTTP(w, r)
		})
	}

	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

type healthResponse struct {
	Status string `json:"status"`
}

func healthHandler(checker HealthChecker, logger *slog.Logger) http.Handler {
	responder := newResponder(logger)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := checker.Ping(ctx); err != nil {
			handlerLogger(ctx, logger, "Health", "Ping").ErrorContext(ctx, "storage ping failed", "error", err)
			responder.writeJSON(ctx, w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
		responder.writeJSON(ctx, w, http.StatusOK, healthResponse{Status: "ok"})
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
