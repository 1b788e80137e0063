package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/sessions"

	"github.com/example/papers-light/internal/application"
	"github.com/example/papers-light/internal/logging"
	"github.com/example/papers-light/internal/metrics"
)

// StateObject is the session-bound collaborator the dispatcher calls into.
type StateObject interface {
	User() string
	AdminLogin(ctx context.Context, username, password string) (application.LoginResult, error)
	Logout() application.LogoutResult
	GetTypes() []application.PaperType
	GetPapers(ctx context.Context, filter application.PaperFilter) ([]application.Paper, error)
	AddPaper(ctx context.Context, paperType string, value any) (application.AddPaperResult, error)
	RemovePaper(ctx context.Context, id string) (application.RemovePaperResult, error)
	GetStats(ctx context.Context) (application.Stats, error)
	State() application.State
}

// StateOpener constructs a fresh StateObject for a nil state, or restores one.
type StateOpener interface {
	Open(state *application.State) StateObject
}

// OpenerFunc adapts a function to StateOpener.
type OpenerFunc func(state *application.State) StateObject

// Open calls f(state).
func (f OpenerFunc) Open(state *application.State) StateObject {
	return f(state)
}

// LibraryOpener opens PapersLight objects from lib.
func LibraryOpener(lib *application.Library) StateOpener {
	return OpenerFunc(func(state *application.State) StateObject {
		return lib.Open(state)
	})
}

// SessionStore loads and saves the serialized state of a request.
type SessionStore interface {
	Load(r *http.Request) (*application.State, *sessions.Session)
	Save(w http.ResponseWriter, r *http.Request, sess *sessions.Session, state application.State) error
}

// LoginLimiter throttles adminlogin attempts per client key.
type LoginLimiter interface {
	Allow(key string, now time.Time) bool
}

// maxFormMemory bounds the in-memory part of a multipart body; file parts
// beyond it spill to disk and are discarded after parsing.
const maxFormMemory = 1 << 20

type actionFunc func(d *Dispatcher, r *http.Request, obj StateObject) (any, error)

type action struct {
	params []string
	run    actionFunc
}

var actions = map[string]action{
	"init": {
		run: func(_ *Dispatcher, _ *http.Request, obj StateObject) (any, error) {
			return initResponse{Username: obj.User()}, nil
		},
	},
	"adminlogin": {
		params: []string{"username", "password"},
		run:    (*Dispatcher).adminLogin,
	},
	"logout": {
		run: func(_ *Dispatcher, _ *http.Request, obj StateObject) (any, error) {
			return obj.Logout(), nil
		},
	},
	"gettypes": {
		run: func(_ *Dispatcher, _ *http.Request, obj StateObject) (any, error) {
			return obj.GetTypes(), nil
		},
	},
	"getpapers": {
		run: func(_ *Dispatcher, r *http.Request, obj StateObject) (any, error) {
			filter := application.PaperFilter{
				Field: r.PostForm.Get("field"),
				Value: r.PostForm.Get("value"),
			}
			return obj.GetPapers(r.Context(), filter)
		},
	},
	"addpaper": {
		params: []string{"type", "paper"},
		run:    (*Dispatcher).addPaper,
	},
	"removepaper": {
		params: []string{"id"},
		run: func(_ *Dispatcher, r *http.Request, obj StateObject) (any, error) {
			return obj.RemovePaper(r.Context(), r.PostForm.Get("id"))
		},
	},
	"getstats": {
		run: func(_ *Dispatcher, r *http.Request, obj StateObject) (any, error) {
			return obj.GetStats(r.Context())
		},
	},
}

type initResponse struct {
	Username string `json:"username"`
}

// DispatcherConfig wires the dispatcher collaborators. Limiter and Now are optional.
type DispatcherConfig struct {
	Opener   StateOpener
	Sessions SessionStore
	Limiter  LoginLimiter
	Now      func() time.Time
	Logger   *slog.Logger
}

// Dispatcher restores the session state object, runs the requested action
// against it and writes the state back to the session.
type Dispatcher struct {
	opener    StateOpener
	sessions  SessionStore
	limiter   LoginLimiter
	now       func() time.Time
	logger    *slog.Logger
	responder responder
}

// NewDispatcher constructs a Dispatcher. Opener and Sessions are required.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Opener == nil || cfg.Sessions == nil {
		panic("http: dispatcher requires an opener and a session store")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := logging.OrDefault(cfg.Logger)
	return &Dispatcher{
		opener:    cfg.Opener,
		sessions:  cfg.Sessions,
		limiter:   cfg.Limiter,
		now:       now,
		logger:    logger,
		responder: newResponder(logger),
	}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.URL.Query().Get("action")
	logger := handlerLogger(ctx, d.logger, "Dispatcher", "ServeHTTP", "action", name)

	state, sess := d.sessions.Load(r)
	obj := d.opener.Open(state)

	if err := parseBody(r); err != nil {
		logger.DebugContext(ctx, "request body could not be parsed", "error", err)
		r.PostForm = url.Values{}
	}

	act, outcome := d.resolve(name, r.PostForm)
	if outcome != "dispatched" {
		if name != "" {
			logger.DebugContext(ctx, "action ignored", "outcome", outcome)
		}
		metrics.ActionsTotal.WithLabelValues(metricAction(name), outcome).Inc()
		d.save(w, r, sess, obj, logger)
		return
	}

	result, err := act.run(d, r, obj)
	if err != nil {
		metrics.ActionsTotal.WithLabelValues(name, "error").Inc()
		d.save(w, r, sess, obj, logger)
		d.responder.writeError(ctx, w, http.StatusInternalServerError, err)
		return
	}

	metrics.ActionsTotal.WithLabelValues(name, outcome).Inc()
	// Cookies must be set before the body is written.
	d.save(w, r, sess, obj, logger)
	d.responder.writeJSON(ctx, w, http.StatusOK, result)
}

func (d *Dispatcher) resolve(name string, form url.Values) (action, string) {
	if name == "" {
		return action{}, "none"
	}
	act, ok := actions[name]
	if !ok {
		return action{}, "unknown"
	}
	for _, param := range act.params {
		if !form.Has(param) {
			return action{}, "missing_params"
		}
	}
	return act, "dispatched"
}

func (d *Dispatcher) save(w http.ResponseWriter, r *http.Request, sess *sessions.Session, obj StateObject, logger *slog.Logger) {
	if err := d.sessions.Save(w, r, sess, obj.State()); err != nil {
		logger.ErrorContext(r.Context(), "session could not be saved", "error", err)
	}
}

func (d *Dispatcher) adminLogin(r *http.Request, obj StateObject) (any, error) {
	ctx := r.Context()
	if d.limiter != nil && !d.limiter.Allow(clientKey(r), d.now()) {
		metrics.LoginAttemptsTotal.WithLabelValues("limited").Inc()
		handlerLogger(ctx, d.logger, "Dispatcher", "AdminLogin").WarnContext(ctx, "login attempt rate limited", "client", clientKey(r))
		return application.LoginResult{
			Success:  false,
			Username: obj.User(),
			Message:  application.MessageRateLimited,
		}, nil
	}

	result, err := obj.AdminLogin(ctx, r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		return nil, err
	}
	if result.Success {
		metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	} else {
		metrics.LoginAttemptsTotal.WithLabelValues("rejected").Inc()
	}
	return result, nil
}

func (d *Dispatcher) addPaper(r *http.Request, obj StateObject) (any, error) {
	ctx := r.Context()

	var value any
	if err := json.Unmarshal([]byte(r.PostForm.Get("paper")), &value); err != nil {
		handlerLogger(ctx, d.logger, "Dispatcher", "AddPaper").DebugContext(ctx, "paper is not valid JSON", "error", err)
		value = nil
	}
	return obj.AddPaper(ctx, r.PostForm.Get("type"), value)
}

// parseBody fills r.PostForm from urlencoded and multipart bodies alike.
func parseBody(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.ParseForm()
	}
	err := r.ParseMultipartForm(maxFormMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	return err
}

// metricAction keeps label cardinality bounded for arbitrary action names.
func metricAction(name string) string {
	if name == "" {
		return "none"
	}
	if _, ok := actions[name]; ok {
		return name
	}
	return "other"
}
