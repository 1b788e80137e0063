package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// PapersLight is the session-bound application object. It remembers the
// signed-in admin and exposes the catalog and paper operations of its Library.
type PapersLight struct {
	lib        *Library
	user       string
	loggedInAt time.Time
}

func (p *PapersLight) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, p.lib.logger, "PapersLight", operation, attrs...)
}

// User returns the signed-in admin username, or "" when anonymous.
func (p *PapersLight) User() string {
	return p.user
}

// State returns the serializable snapshot of the object.
func (p *PapersLight) State() State {
	return State{
		Version:    StateVersion,
		User:       p.user,
		LoggedInAt: p.loggedInAt,
	}
}

// AdminLogin authenticates an administrator. Credential problems are reported
// in the result; only lookup failures are returned as errors. A failed attempt
// leaves an existing login in place.
func (p *PapersLight) AdminLogin(ctx context.Context, username, password string) (result LoginResult, err error) {
	username = strings.TrimSpace(username)
	logger := p.loggerWith(ctx, "AdminLogin", "username", username)
	defer func() {
		switch {
		case err != nil:
			logger.ErrorContext(ctx, "admin login failed", "error", err, "error_kind", ErrorKind(err))
		case result.Success:
			logger.InfoContext(ctx, "admin login succeeded")
		default:
			logger.WarnContext(ctx, "admin login rejected")
		}
	}()

	reject := LoginResult{Success: false, Username: p.user, Message: MessageInvalidCredentials}

	if username == "" || password == "" {
		return reject, nil
	}

	admin, err := p.lib.admins.GetAdmin(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return reject, nil
		}
		return LoginResult{}, fmt.Errorf("lookup admin: %w", err)
	}

	if verr := p.lib.verifyPassword(admin.PasswordHash, password); verr != nil {
		if !errors.Is(verr, ErrInvalidCredentials) {
			logger.WarnContext(ctx, "stored password hash rejected", "error", verr)
		}
		return reject, nil
	}

	p.user = admin.Username
	p.loggedInAt = p.lib.now().UTC()
	return LoginResult{Success: true, Username: p.user}, nil
}

// Logout clears the signed-in admin.
func (p *PapersLight) Logout() LogoutResult {
	p.user = ""
	p.loggedInAt = time.Time{}
	return LogoutResult{Success: true}
}

// GetTypes returns the configured paper types in catalog order.
func (p *PapersLight) GetTypes() []PaperType {
	return p.lib.Types()
}

// GetPapers lists stored papers ordered by creation time, then ID. Unknown
// filter fields match nothing.
func (p *PapersLight) GetPapers(ctx context.Context, filter PaperFilter) ([]Paper, error) {
	field := strings.ToLower(strings.TrimSpace(filter.Field))
	value := strings.TrimSpace(filter.Value)

	paperType := ""
	if field == FilterType {
		paperType = value
	}

	papers, err := p.lib.papers.ListPapers(ctx, paperType)
	if err != nil {
		p.loggerWith(ctx, "GetPapers").ErrorContext(ctx, "failed to list papers", "error", err, "error_kind", ErrorKind(err))
		return nil, fmt.Errorf("list papers: %w", err)
	}

	out := make([]Paper, 0, len(papers))
	for _, paper := range papers {
		if field == "" || field == FilterType || matchesFilter(paper, field, value) {
			out = append(out, paper)
		}
	}
	sortPapers(out)
	return out, nil
}

// AddPaper validates value against the catalog entry for paperType and stores
// it. A value carrying an "id" member updates that paper instead; updates
// require a signed-in admin. Invalid input is reported in the result.
func (p *PapersLight) AddPaper(ctx context.Context, paperType string, value any) (result AddPaperResult, err error) {
	paperType = strings.TrimSpace(paperType)
	logger := p.loggerWith(ctx, "AddPaper", "type", paperType)
	defer func() {
		switch {
		case err != nil:
			logger.ErrorContext(ctx, "failed to save paper", "error", err, "error_kind", ErrorKind(err))
		case result.Success:
			logger.InfoContext(ctx, "paper saved", "paper_id", result.Paper.ID)
		default:
			logger.WarnContext(ctx, "paper rejected", "message", result.Message)
		}
	}()

	attrs, ok := value.(map[string]any)
	if !ok || attrs == nil {
		return AddPaperResult{Message: MessageInvalidPaper}, nil
	}
	attrs = cloneAttributes(attrs)
	rawID, update := attrs[paperIDKey]
	delete(attrs, paperIDKey)

	if !p.lib.hasType(paperType) {
		return AddPaperResult{Message: MessageUnknownType}, nil
	}
	id, _ := rawID.(string)
	id = strings.TrimSpace(id)
	if update && id == "" {
		return AddPaperResult{
			Message: MessageValidationFailed,
			Errors:  map[string]string{paperIDKey: "id must be a non-empty string"},
		}, nil
	}
	if vErr := p.validateAttributes(paperType, attrs); vErr.HasErrors() {
		return AddPaperResult{Message: MessageValidationFailed, Errors: vErr.FieldErrors}, nil
	}

	if update {
		return p.updatePaper(ctx, id, paperType, attrs)
	}

	now := p.lib.now().UTC()
	paper := Paper{
		ID:         p.lib.newID(),
		Type:       paperType,
		Attributes: attrs,
		CreatedBy:  p.user,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.lib.papers.CreatePaper(ctx, paper); err != nil {
		return AddPaperResult{}, fmt.Errorf("create paper: %w", err)
	}
	return AddPaperResult{Success: true, Paper: &paper}, nil
}

// updatePaper replaces the type and attributes of a stored paper. Creation
// metadata is kept.
func (p *PapersLight) updatePaper(ctx context.Context, id, paperType string, attrs map[string]any) (AddPaperResult, error) {
	if p.user == "" {
		return AddPaperResult{Message: MessageLoginRequired}, nil
	}

	paper, err := p.lib.papers.GetPaper(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AddPaperResult{Message: MessagePaperNotFound}, nil
		}
		return AddPaperResult{}, fmt.Errorf("get paper: %w", err)
	}

	paper.Type = paperType
	paper.Attributes = attrs
	paper.UpdatedAt = p.lib.now().UTC()
	if err := p.lib.papers.UpdatePaper(ctx, paper); err != nil {
		if errors.Is(err, ErrNotFound) {
			return AddPaperResult{Message: MessagePaperNotFound}, nil
		}
		return AddPaperResult{}, fmt.Errorf("update paper: %w", err)
	}
	return AddPaperResult{Success: true, Paper: &paper}, nil
}

func (p *PapersLight) validateAttributes(paperType string, attrs map[string]any) *ValidationError {
	vErr := &ValidationError{}
	filled := false
	for name, v := range attrs {
		if !p.lib.declares(paperType, name) {
			vErr.add(name, fmt.Sprintf("attribute is not defined for type %s", paperType))
			continue
		}
		if !isEmptyValue(v) {
			filled = true
		}
	}
	if !filled && !vErr.HasErrors() {
		vErr.add("paper", "at least one attribute must be set")
	}
	return vErr
}

// RemovePaper deletes a paper. It requires a signed-in admin.
func (p *PapersLight) RemovePaper(ctx context.Context, id string) (result RemovePaperResult, err error) {
	id = strings.TrimSpace(id)
	logger := p.loggerWith(ctx, "RemovePaper", "paper_id", id)
	defer func() {
		switch {
		case err != nil:
			logger.ErrorContext(ctx, "failed to remove paper", "error", err, "error_kind", ErrorKind(err))
		case result.Success:
			logger.InfoContext(ctx, "paper removed")
		default:
			logger.WarnContext(ctx, "paper removal rejected", "message", result.Message)
		}
	}()

	if p.user == "" {
		return RemovePaperResult{Message: MessageLoginRequired}, nil
	}
	if id == "" {
		return RemovePaperResult{Message: MessagePaperNotFound}, nil
	}
	if err := p.lib.papers.DeletePaper(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return RemovePaperResult{Message: MessagePaperNotFound}, nil
		}
		return RemovePaperResult{}, fmt.Errorf("delete paper: %w", err)
	}
	return RemovePaperResult{Success: true}, nil
}

// GetStats counts papers per year, booktitle, author, and tag.
func (p *PapersLight) GetStats(ctx context.Context) (Stats, error) {
	papers, err := p.lib.papers.ListPapers(ctx, "")
	if err != nil {
		p.loggerWith(ctx, "GetStats").ErrorContext(ctx, "failed to list papers", "error", err, "error_kind", ErrorKind(err))
		return Stats{}, fmt.Errorf("list papers: %w", err)
	}
	return computeStats(papers), nil
}

// paperIDKey names the paper object member that selects an update.
const paperIDKey = "id"

func sortPapers(papers []Paper) {
	sort.SliceStable(papers, func(i, j int) bool {
		if papers[i].CreatedAt.Equal(papers[j].CreatedAt) {
			return papers[i].ID < papers[j].ID
		}
		return papers[i].CreatedAt.Before(papers[j].CreatedAt)
	})
}

func cloneAttributes(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneAttributes(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
