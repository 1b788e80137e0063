package application

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type adminStoreStub struct {
	mu       sync.Mutex
	admins   map[string]Admin
	getErr   error
	upserts  int
	upsertFn func(Admin) error
}

func newAdminStoreStub(admins ...Admin) *adminStoreStub {
	s := &adminStoreStub{admins: make(map[string]Admin)}
	for _, a := range admins {
		s.admins[a.Username] = a
	}
	return s
}

func (s *adminStoreStub) GetAdmin(ctx context.Context, username string) (Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return Admin{}, s.getErr
	}
	admin, ok := s.admins[username]
	if !ok {
		return Admin{}, ErrNotFound
	}
	return admin, nil
}

func (s *adminStoreStub) UpsertAdmin(ctx context.Context, admin Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.upsertFn != nil {
		if err := s.upsertFn(admin); err != nil {
			return err
		}
	}
	s.admins[admin.Username] = admin
	return nil
}

type paperRepoStub struct {
	mu        sync.Mutex
	papers    []Paper
	createErr error
	listErr   error
	deleteErr error
	getErr    error
	updateErr error
	listTypes []string
}

func (r *paperRepoStub) GetPaper(ctx context.Context, id string) (Paper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return Paper{}, r.getErr
	}
	for _, p := range r.papers {
		if p.ID == id {
			return p, nil
		}
	}
	return Paper{}, ErrNotFound
}

func (r *paperRepoStub) UpdatePaper(ctx context.Context, paper Paper) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	for i, p := range r.papers {
		if p.ID == paper.ID {
			r.papers[i] = paper
			return nil
		}
	}
	return ErrNotFound
}

func (r *paperRepoStub) CreatePaper(ctx context.Context, paper Paper) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.papers {
		if existing.ID == paper.ID {
			return ErrAlreadyExists
		}
	}
	r.papers = append(r.papers, paper)
	return nil
}

func (r *paperRepoStub) ListPapers(ctx context.Context, paperType string) ([]Paper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listTypes = append(r.listTypes, paperType)
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]Paper, 0, len(r.papers))
	for _, p := range r.papers {
		if paperType == "" || p.Type == paperType {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *paperRepoStub) DeletePaper(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	for i, p := range r.papers {
		if p.ID == id {
			r.papers = append(r.papers[:i], r.papers[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

var testTypes = []PaperType{
	{Name: "article", Attributes: []string{"title", "author", "journal", "year", "tags"}},
	{Name: "inproceedings", Attributes: []string{"title", "author", "booktitle", "year", "tags"}},
}

var testNow = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

type libraryHarness struct {
	lib    *Library
	admins *adminStoreStub
	papers *paperRepoStub
}

// plainVerifier treats the stored hash as "plain:<password>" to keep tests fast.
func plainVerifier(hash, password string) error {
	if hash != "plain:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

func newLibraryHarness(admins ...Admin) (*libraryHarness, error) {
	h := &libraryHarness{
		admins: newAdminStoreStub(admins...),
		papers: &paperRepoStub{},
	}
	counter := 0
	lib, err := NewLibrary(LibraryDeps{
		Types:          testTypes,
		Admins:         h.admins,
		Papers:         h.papers,
		VerifyPassword: plainVerifier,
		IDGenerator: func() string {
			counter++
			return fmt.Sprintf("paper-%d", counter)
		},
		Now: func() time.Time { return testNow },
	})
	if err != nil {
		return nil, err
	}
	h.lib = lib
	return h, nil
}
