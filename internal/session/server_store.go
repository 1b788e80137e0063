package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

// ErrSessionNotFound is returned by a Backend when no live record exists.
var ErrSessionNotFound = errors.New("session: not found")

// Backend stores encoded session values keyed by session ID.
type Backend interface {
	Load(ctx context.Context, id string) (string, error)
	Save(ctx context.Context, id, data string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// ServerStore is a sessions.Store that keeps only a signed session ID in the
// cookie. Values are encoded with the same codecs and kept in a Backend.
type ServerStore struct {
	Codecs  []securecookie.Codec
	Options *sessions.Options

	backend Backend
	newID   func() string
}

var _ sessions.Store = (*ServerStore)(nil)

// NewServerStore returns a ServerStore. keyPairs follow the gorilla
// convention: hash key, then optional block key, repeated for rotation.
func NewServerStore(backend Backend, keyPairs ...[]byte) *ServerStore {
	s := &ServerStore{
		Codecs: securecookie.CodecsFromPairs(keyPairs...),
		Options: &sessions.Options{
			Path:     "/",
			MaxAge:   86400,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
		backend: backend,
		newID:   uuid.NewString,
	}
	s.MaxAge(s.Options.MaxAge)
	return s
}

// MaxAge sets the cookie and codec lifetime in seconds.
func (s *ServerStore) MaxAge(age int) {
	s.Options.MaxAge = age
	for _, codec := range s.Codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(age)
			// Stored values never travel in a cookie, so no length cap.
			sc.MaxLength(0)
		}
	}
}

// Get returns a cached session for the request, loading it on first use.
func (s *ServerStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New loads the session named by the request cookie, or returns a new one.
// A missing or expired backend record yields a new session without error.
func (s *ServerStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	cookie, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}

	var id string
	if err := securecookie.DecodeMulti(name, cookie.Value, &id, s.Codecs...); err != nil {
		return session, fmt.Errorf("session: decode cookie: %w", err)
	}

	data, err := s.backend.Load(r.Context(), id)
	if errors.Is(err, ErrSessionNotFound) {
		return session, nil
	}
	if err != nil {
		return session, fmt.Errorf("session: load %s: %w", id, err)
	}

	if err := securecookie.DecodeMulti(name, data, &session.Values, s.Codecs...); err != nil {
		return session, fmt.Errorf("session: decode values: %w", err)
	}
	session.ID = id
	session.IsNew = false
	return session, nil
}

// Save persists the session values and refreshes the cookie. A negative
// MaxAge deletes the record and expires the cookie.
func (s *ServerStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if session.Options == nil {
		opts := *s.Options
		session.Options = &opts
	}

	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.backend.Delete(r.Context(), session.ID); err != nil {
				return fmt.Errorf("session: delete %s: %w", session.ID, err)
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = s.newID()
	}

	data, err := securecookie.EncodeMulti(session.Name(), session.Values, s.Codecs...)
	if err != nil {
		return fmt.Errorf("session: encode values: %w", err)
	}
	ttl := time.Duration(session.Options.MaxAge) * time.Second
	if err := s.backend.Save(r.Context(), session.ID, data, ttl); err != nil {
		return fmt.Errorf("session: store %s: %w", session.ID, err)
	}

	encodedID, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return fmt.Errorf("session: encode cookie: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encodedID, session.Options))
	return nil
}
