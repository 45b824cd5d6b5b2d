package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agent-console/internal/audit"
	"agent-console/internal/directory"
	"agent-console/pkg/logger"

	"github.com/google/uuid"
)

type Service struct {
	repo  Repository
	audit *audit.Service
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, auditSvc *audit.Service, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		audit: auditSvc,
		log:   logger.Component(log, "templates"),
		clock: time.Now,
	}
}

func (s *Service) record(ctx context.Context, actor directory.Actor, typ audit.EventType, t Template) {
	if s.audit == nil {
		return
	}
	a := audit.Actor{UserID: actor.UserID.String(), Role: actor.Role.String(), IP: actor.IP}
	meta := map[string]string{"template_id": t.ID.String(), "name": t.Name}
	if err := s.audit.Record(ctx, actor.TenantID, typ, a, "", "", "template "+t.Name, meta); err != nil {
		s.log.Warn("audit record failed", "type", string(typ), "tenant_id", actor.TenantID.String(), "err", err)
	}
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, f Filter) ([]Template, error) {
	f.Category = strings.TrimSpace(f.Category)
	if f.Category != "" && !knownCategory(f.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, f.Category)
	}
	return s.repo.List(ctx, tenantID, f)
}

func (s *Service) Presets(ctx context.Context) ([]Template, error) {
	return s.repo.ListPresets(ctx)
}

func (s *Service) Categories() []Category {
	return append([]Category(nil), categories...)
}

func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (Template, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// normalize trims every field, fills defaults and checks required ones.
func normalize(t *Template) error {
	t.Name = strings.TrimSpace(t.Name)
	t.Description = strings.TrimSpace(t.Description)
	t.Category = strings.TrimSpace(t.Category)
	t.Greeting = strings.TrimSpace(t.Greeting)
	t.SystemPrompt = strings.TrimSpace(t.SystemPrompt)
	t.Voice = strings.TrimSpace(t.Voice)
	t.Language = strings.TrimSpace(t.Language)
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	if strings.TrimSpace(t.Icon) == "" {
		t.Icon = DefaultIcon
	}
	if t.Voice == "" {
		t.Voice = DefaultVoice
	}
	if t.Language == "" {
		t.Language = DefaultLanguage
	}

	switch {
	case t.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidArgument)
	case len(t.Name) > 100:
		return fmt.Errorf("%w: name is longer than 100 characters", ErrInvalidArgument)
	case t.Greeting == "":
		return fmt.Errorf("%w: greeting is required", ErrInvalidArgument)
	case t.SystemPrompt == "":
		return fmt.Errorf("%w: system_prompt is required", ErrInvalidArgument)
	case !knownCategory(t.Category):
		return fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, t.Category)
	}
	return nil
}

func fromNew(in NewTemplate) Template {
	return Template{
		Name:         in.Name,
		Description:  in.Description,
		Category:     in.Category,
		Icon:         in.Icon,
		Greeting:     in.Greeting,
		SystemPrompt: in.SystemPrompt,
		Voice:        in.Voice,
		Language:     in.Language,
	}
}

func (s *Service) Create(ctx context.Context, actor directory.Actor, in NewTemplate) (Template, error) {
	t := fromNew(in)
	if err := normalize(&t); err != nil {
		return Template{}, err
	}
	now := s.clock().UTC()
	t.ID = uuid.New()
	t.TenantID = actor.TenantID
	t.CreatedBy = actor.UserID
	t.CreatedAt, t.UpdatedAt = now, now

	out, err := s.repo.Create(ctx, t)
	if err != nil {
		return Template{}, err
	}
	s.record(ctx, actor, audit.EventTemplateCreated, out)
	return out, nil
}

func (s *Service) Update(ctx context.Context, actor directory.Actor, id uuid.UUID, p Patch) (Template, error) {
	if p.empty() {
		return Template{}, fmt.Errorf("%w: nothing to update", ErrInvalidArgument)
	}
	cur, err := s.repo.Get(ctx, actor.TenantID, id)
	if err != nil {
		return Template{}, err
	}
	if cur.IsPreset {
		return Template{}, ErrNotFound
	}

	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&cur.Name, p.Name)
	set(&cur.Description, p.Description)
	set(&cur.Category, p.Category)
	set(&cur.Icon, p.Icon)
	set(&cur.Greeting, p.Greeting)
	set(&cur.SystemPrompt, p.SystemPrompt)
	set(&cur.Voice, p.Voice)
	set(&cur.Language, p.Language)
	if err := normalize(&cur); err != nil {
		return Template{}, err
	}
	cur.UpdatedAt = s.clock().UTC()

	out, err := s.repo.Update(ctx, cur)
	if err != nil {
		return Template{}, err
	}
	s.record(ctx, actor, audit.EventTemplateUpdated, out)
	return out, nil
}

func (s *Service) Delete(ctx context.Context, actor directory.Actor, id uuid.UUID) error {
	cur, err := s.repo.Get(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}
	if cur.IsPreset {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, actor.TenantID, id); err != nil {
		return err
	}
	s.record(ctx, actor, audit.EventTemplateDeleted, cur)
	return nil
}

// Use counts one more use of a tenant template or preset.
func (s *Service) Use(ctx context.Context, tenantID, id uuid.UUID) (Template, error) {
	return s.repo.IncrementUsage(ctx, tenantID, id)
}

// SeedPresets inserts the built-in presets whose names are not stored yet.
func (s *Service) SeedPresets(ctx context.Context) (SeedResult, error) {
	existing, err := s.repo.ListPresets(ctx)
	if err != nil {
		return SeedResult{}, err
	}
	have := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		have[t.Name] = struct{}{}
	}

	res := SeedResult{TotalPresets: len(presets)}
	now := s.clock().UTC()
	for _, in := range presets {
		if _, ok := have[in.Name]; ok {
			continue
		}
		t := fromNew(in)
		if err := normalize(&t); err != nil {
			return res, fmt.Errorf("preset %q: %w", in.Name, err)
		}
		t.ID = uuid.New()
		t.IsPreset = true
		t.CreatedAt, t.UpdatedAt = now, now
		if _, err := s.repo.Create(ctx, t); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return res, fmt.Errorf("preset %q: %w", in.Name, err)
		}
		res.Created++
	}
	if res.Created > 0 {
		s.log.Info("presets seeded", "created", res.Created, "total", res.TotalPresets)
	}
	return res, nil
}
