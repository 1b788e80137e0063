// Package adapters bridges the persistence repositories to the interfaces the
// application layer consumes, translating models and sentinel errors.
package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/papers-light/internal/application"
	"github.com/example/papers-light/internal/persistence"
)

// AdminAccounts adapts persistence.AdminRepository to application.AdminAccounts.
type AdminAccounts struct {
	repo persistence.AdminRepository
}

// NewAdminAccounts wraps repo.
func NewAdminAccounts(repo persistence.AdminRepository) *AdminAccounts {
	return &AdminAccounts{repo: repo}
}

func (a *AdminAccounts) GetAdmin(ctx context.Context, username string) (application.Admin, error) {
	stored, err := a.repo.GetAdmin(ctx, username)
	if err != nil {
		return application.Admin{}, translateError(err)
	}
	return application.Admin{
		Username:     stored.Username,
		PasswordHash: stored.PasswordHash,
		CreatedAt:    stored.CreatedAt,
		UpdatedAt:    stored.UpdatedAt,
	}, nil
}

func (a *AdminAccounts) UpsertAdmin(ctx context.Context, admin application.Admin) error {
	return translateError(a.repo.UpsertAdmin(ctx, persistence.Admin{
		Username:     admin.Username,
		PasswordHash: admin.PasswordHash,
		CreatedAt:    admin.CreatedAt,
		UpdatedAt:    admin.UpdatedAt,
	}))
}

// Papers adapts persistence.PaperRepository to application.PaperRepository.
type Papers struct {
	repo persistence.PaperRepository
}

// NewPapers wraps repo.
func NewPapers(repo persistence.PaperRepository) *Papers {
	return &Papers{repo: repo}
}

func (a *Papers) CreatePaper(ctx context.Context, paper application.Paper) error {
	return translateError(a.repo.CreatePaper(ctx, toPersistencePaper(paper)))
}

func (a *Papers) GetPaper(ctx context.Context, id string) (application.Paper, error) {
	model, err := a.repo.GetPaper(ctx, id)
	if err != nil {
		return application.Paper{}, translateError(err)
	}
	return toApplicationPaper(model), nil
}

func (a *Papers) UpdatePaper(ctx context.Context, paper application.Paper) error {
	return translateError(a.repo.UpdatePaper(ctx, toPersistencePaper(paper)))
}

func (a *Papers) ListPapers(ctx context.Context, paperType string) ([]application.Paper, error) {
	models, err := a.repo.ListPapers(ctx, persistence.PaperFilter{Type: paperType})
	if err != nil {
		return nil, translateError(err)
	}
	papers := make([]application.Paper, 0, len(models))
	for _, model := range models {
		papers = append(papers, toApplicationPaper(model))
	}
	return papers, nil
}

func (a *Papers) DeletePaper(ctx context.Context, id string) error {
	return translateError(a.repo.DeletePaper(ctx, id))
}

func toApplicationPaper(model persistence.Paper) application.Paper {
	attrs := persistence.CloneAttributes(model.Attributes)
	if attrs == nil {
		attrs = map[string]any{}
	}
	return application.Paper{
		ID:         model.ID,
		Type:       model.Type,
		Attributes: attrs,
		CreatedBy:  model.CreatedBy,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toPersistencePaper(paper application.Paper) persistence.Paper {
	return persistence.Paper{
		ID:         paper.ID,
		Type:       paper.Type,
		Attributes: persistence.CloneAttributes(paper.Attributes),
		CreatedBy:  paper.CreatedBy,
		CreatedAt:  paper.CreatedAt,
		UpdatedAt:  paper.UpdatedAt,
	}
}

// translateError swaps persistence sentinels for their application
// counterparts, keeping the original error in the message.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return application.ErrNotFound
	case errors.Is(err, persistence.ErrAlreadyExists):
		return fmt.Errorf("%w: %v", application.ErrAlreadyExists, err)
	}
	return err
}
