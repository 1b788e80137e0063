package application

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/papers-light/internal/logging"
)

// LibraryDeps captures the collaborators shared by every session.
type LibraryDeps struct {
	Types          []PaperType
	Admins         AdminDirectory
	Papers         PaperRepository
	VerifyPassword PasswordVerifier
	IDGenerator    func() string
	Now            func() time.Time
	Logger         *slog.Logger
}

// Library is the long-lived half of the application: the type catalog and the
// stores. Session-bound PapersLight values are opened from it per request.
type Library struct {
	types          []PaperType
	attributes     map[string]map[string]struct{}
	admins         AdminDirectory
	papers         PaperRepository
	verifyPassword PasswordVerifier
	newID          func() string
	now            func() time.Time
	logger         *slog.Logger
}

// NewLibrary validates the catalog and constructs a Library.
func NewLibrary(deps LibraryDeps) (*Library, error) {
	if deps.Admins == nil {
		return nil, errors.New("application: admin directory not configured")
	}
	if deps.Papers == nil {
		return nil, errors.New("application: paper repository not configured")
	}
	if len(deps.Types) == 0 {
		return nil, errors.New("application: type catalog is empty")
	}

	types := clonePaperTypes(deps.Types)
	attributes := make(map[string]map[string]struct{}, len(types))
	for i, t := range types {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, errors.New("application: paper type name cannot be empty")
		}
		if _, dup := attributes[name]; dup {
			return nil, fmt.Errorf("application: duplicate paper type %q", name)
		}
		set := make(map[string]struct{}, len(t.Attributes))
		for _, attr := range t.Attributes {
			set[attr] = struct{}{}
		}
		attributes[name] = set
		types[i].Name = name
	}

	lib := &Library{
		types:          types,
		attributes:     attributes,
		admins:         deps.Admins,
		papers:         deps.Papers,
		verifyPassword: deps.VerifyPassword,
		newID:          deps.IDGenerator,
		now:            deps.Now,
		logger:         logging.OrDefault(deps.Logger),
	}
	if lib.verifyPassword == nil {
		lib.verifyPassword = VerifyPassword
	}
	if lib.newID == nil {
		lib.newID = uuid.NewString
	}
	if lib.now == nil {
		lib.now = time.Now
	}
	return lib, nil
}

// Types returns a copy of the configured catalog.
func (l *Library) Types() []PaperType {
	return clonePaperTypes(l.types)
}

// Open returns a PapersLight for one session. A nil state, or one written by
// an incompatible version, yields an anonymous object.
func (l *Library) Open(state *State) *PapersLight {
	pl := &PapersLight{lib: l}
	if state != nil && state.Version == StateVersion {
		pl.user = strings.TrimSpace(state.User)
		if pl.user != "" {
			pl.loggedInAt = state.LoggedInAt
		}
	}
	return pl
}

func (l *Library) hasType(name string) bool {
	_, ok := l.attributes[name]
	return ok
}

func (l *Library) declares(typeName, attribute string) bool {
	_, ok := l.attributes[typeName][attribute]
	return ok
}

func clonePaperTypes(types []PaperType) []PaperType {
	out := make([]PaperType, len(types))
	for i, t := range types {
		out[i] = PaperType{
			Name:       t.Name,
			Attributes: append([]string(nil), t.Attributes...),
		}
	}
	return out
}
