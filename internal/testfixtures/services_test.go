package testfixtures

import (
	"context"
	"testing"

	"github.com/example/papers-light/internal/adapters"
	"github.com/example/papers-light/internal/persistence/memory"
)

func TestServiceFactoryNewLibrary(t *testing.T) {
	factory := NewServiceFactory()
	lib := factory.NewLibrary(t, LibraryDeps{})
	pl := lib.Open(nil)

	result, err := pl.AddPaper(context.Background(), "article", map[string]any{"title": "X"})
	if err != nil {
		t.Fatalf("AddPaper returned error: %v", err)
	}
	if !result.Success || result.Paper == nil {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Paper.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", result.Paper.ID)
	}
	if !result.Paper.CreatedAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Current(), result.Paper.CreatedAt)
	}
}

func TestSeedAdminAllowsLogin(t *testing.T) {
	storage := memory.New()
	accounts := adapters.NewAdminAccounts(storage)
	SeedAdmin(t, accounts, "admin", "correct")

	lib := NewServiceFactory().NewLibrary(t, LibraryDeps{Admins: accounts})
	result, err := lib.Open(nil).AdminLogin(context.Background(), "admin", "correct")
	if err != nil {
		t.Fatalf("AdminLogin returned error: %v", err)
	}
	if !result.Success || result.Username != "admin" {
		t.Fatalf("expected successful login, got %+v", result)
	}
}
