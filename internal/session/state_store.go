package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/example/papers-light/internal/application"
	"github.com/example/papers-light/internal/logging"
	"github.com/example/papers-light/internal/metrics"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "paperslight"

	stateKey = "pl"
)

// StateStore loads and saves the serialized PapersLight state of a request.
type StateStore struct {
	store   sessions.Store
	name    string
	options sessions.Options
	logger  *slog.Logger
}

// NewStateStore wraps store. options are applied to sessions created after a
// failed load, which the underlying store could not initialise itself.
func NewStateStore(store sessions.Store, options sessions.Options, logger *slog.Logger) *StateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateStore{
		store:   store,
		name:    CookieName,
		options: options,
		logger:  logger,
	}
}

// Load returns the stored state, or nil when the request carries none. Any
// decoding or backend failure is logged and treated as a fresh session.
func (s *StateStore) Load(r *http.Request) (*application.State, *sessions.Session) {
	logger := s.loggerFor(r)

	sess, err := s.store.Get(r, s.name)
	if err != nil {
		metrics.SessionLoadFailures.Inc()
		logger.WarnContext(r.Context(), "session could not be restored", "error", err)
		return nil, s.fresh()
	}

	raw, ok := sess.Values[stateKey]
	if !ok {
		return nil, sess
	}

	state, err := decodeState(raw)
	if err != nil {
		metrics.SessionLoadFailures.Inc()
		logger.WarnContext(r.Context(), "session state discarded", "error", err)
		return nil, s.fresh()
	}
	return state, sess
}

// Save writes state into sess and persists it.
func (s *StateStore) Save(w http.ResponseWriter, r *http.Request, sess *sessions.Session, state application.State) error {
	if sess == nil {
		sess = s.fresh()
	}
	if sess.Options == nil {
		opts := s.options
		sess.Options = &opts
	}

	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("session: encode state: %w", err)
	}
	sess.Values[stateKey] = encoded

	if err := sess.Save(r, w); err != nil {
		metrics.SessionSaveFailures.Inc()
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

func (s *StateStore) fresh() *sessions.Session {
	sess := sessions.NewSession(s.store, s.name)
	opts := s.options
	sess.Options = &opts
	sess.IsNew = true
	return sess
}

func (s *StateStore) loggerFor(r *http.Request) *slog.Logger {
	if logger := logging.FromContext(r.Context()); logger != nil {
		return logger.With("component", "session")
	}
	return s.logger.With("component", "session")
}

func decodeState(raw any) (*application.State, error) {
	data, ok := raw.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected state value of type %T", raw)
	}
	var state application.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if state.Version != application.StateVersion {
		return nil, errors.New("unsupported state version")
	}
	return &state, nil
}
