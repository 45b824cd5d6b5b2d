package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agent-console/internal/audit"
	"agent-console/internal/directory"
	"agent-console/internal/reporting"
	"agent-console/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Service struct {
	repo  Repository
	calls reporting.CallSource
	audit *audit.Service
	log   *slog.Logger
	clock func() time.Time

	validate *validator.Validate
}

func NewService(repo Repository, src reporting.CallSource, auditSvc *audit.Service, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		calls:    src,
		audit:    auditSvc,
		log:      logger.Component(log, "alerts"),
		clock:    time.Now,
		validate: validator.New(),
	}
}

func (s *Service) record(ctx context.Context, actor directory.Actor, typ audit.EventType, r Rule) {
	if s.audit == nil {
		return
	}
	a := audit.Actor{UserID: actor.UserID.String(), Role: actor.Role.String(), IP: actor.IP}
	meta := map[string]string{"rule_id": r.ID.String(), "rule_type": string(r.Type)}
	if err := s.audit.Record(ctx, actor.TenantID, typ, a, "", "", "alert rule "+r.Name, meta); err != nil {
		s.log.Warn("audit record failed", "type", string(typ), "tenant_id", actor.TenantID.String(), "err", err)
	}
}

func (s *Service) Rules(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Rule, error) {
	return s.repo.ListRules(ctx, tenantID, activeOnly)
}

func (s *Service) Presets() []Preset {
	return append([]Preset(nil), presets...)
}

func (s *Service) check(r *Rule) error {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.WebhookURL = strings.TrimSpace(r.WebhookURL)
	switch {
	case r.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidArgument)
	case len(r.Name) > 100:
		return fmt.Errorf("%w: name is longer than 100 characters", ErrInvalidArgument)
	case !r.Type.Valid():
		return fmt.Errorf("%w: invalid rule_type %q", ErrInvalidArgument, r.Type)
	case r.CooldownMinutes < 0 || r.CooldownMinutes > maxCooldownMinutes:
		return fmt.Errorf("%w: cooldown_minutes must be between 0 and %d", ErrInvalidArgument, maxCooldownMinutes)
	case r.NotifyWebhook && r.WebhookURL == "":
		return fmt.Errorf("%w: webhook_url is required when notify_webhook is set", ErrInvalidArgument)
	}
	if r.WebhookURL != "" {
		if err := s.validate.Var(r.WebhookURL, "url"); err != nil {
			return fmt.Errorf("%w: invalid webhook_url", ErrInvalidArgument)
		}
	}
	r.Conditions = r.Conditions.withDefaults(r.Type)
	return nil
}

func (s *Service) CreateRule(ctx context.Context, actor directory.Actor, in NewRule) (Rule, error) {
	now := s.clock().UTC()
	r := Rule{
		ID:              uuid.New(),
		TenantID:        actor.TenantID,
		Name:            in.Name,
		Description:     in.Description,
		Type:            RuleType(strings.ToLower(strings.TrimSpace(string(in.Type)))),
		Conditions:      in.Conditions,
		NotifyEmail:     true,
		NotifyWebhook:   in.NotifyWebhook,
		WebhookURL:      in.WebhookURL,
		Active:          true,
		CooldownMinutes: DefaultCooldownMinutes,
		CreatedBy:       actor.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.NotifyEmail != nil {
		r.NotifyEmail = *in.NotifyEmail
	}
	if in.CooldownMinutes != nil {
		r.CooldownMinutes = *in.CooldownMinutes
	}
	if err := s.check(&r); err != nil {
		return Rule{}, err
	}

	out, err := s.repo.CreateRule(ctx, r)
	if err != nil {
		return Rule{}, err
	}
	s.record(ctx, actor, audit.EventAlertRuleCreated, out)
	return out, nil
}

// CreateFromPreset instantiates a preset as an active rule of the caller's tenant.
func (s *Service) CreateFromPreset(ctx context.Context, actor directory.Actor, presetID string) (Rule, error) {
	p, ok := findPreset(presetID)
	if !ok {
		return Rule{}, fmt.Errorf("%w: preset %q", ErrNotFound, presetID)
	}
	cooldown := p.CooldownMinutes
	return s.CreateRule(ctx, actor, NewRule{
		Name:            p.Name,
		Description:     p.Description,
		Type:            p.Type,
		Conditions:      p.Conditions,
		CooldownMinutes: &cooldown,
	})
}

func (s *Service) UpdateRule(ctx context.Context, actor directory.Actor, id uuid.UUID, p RulePatch) (Rule, error) {
	if p.empty() {
		return Rule{}, fmt.Errorf("%w: nothing to update", ErrInvalidArgument)
	}
	r, err := s.repo.GetRule(ctx, actor.TenantID, id)
	if err != nil {
		return Rule{}, err
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Conditions != nil {
		r.Conditions = *p.Conditions
	}
	if p.NotifyEmail != nil {
		r.NotifyEmail = *p.NotifyEmail
	}
	if p.NotifyWebhook != nil {
		r.NotifyWebhook = *p.NotifyWebhook
	}
	if p.WebhookURL != nil {
		r.WebhookURL = *p.WebhookURL
	}
	if p.Active != nil {
		r.Active = *p.Active
	}
	if p.CooldownMinutes != nil {
		r.CooldownMinutes = *p.CooldownMinutes
	}
	if err := s.check(&r); err != nil {
		return Rule{}, err
	}
	r.UpdatedAt = s.clock().UTC()

	out, err := s.repo.UpdateRule(ctx, r)
	if err != nil {
		return Rule{}, err
	}
	s.record(ctx, actor, audit.EventAlertRuleUpdated, out)
	return out, nil
}

func (s *Service) DeleteRule(ctx context.Context, actor directory.Actor, id uuid.UUID) error {
	r, err := s.repo.GetRule(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRule(ctx, actor.TenantID, id); err != nil {
		return err
	}
	s.record(ctx, actor, audit.EventAlertRuleDeleted, r)
	return nil
}

// Events lists a tenant's events. A zero limit means DefaultEventLimit.
func (s *Service) Events(ctx context.Context, tenantID uuid.UUID, f EventFilter) ([]Event, error) {
	if f.Limit == 0 {
		f.Limit = DefaultEventLimit
	}
	if f.Limit < 1 || f.Limit > MaxEventLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidArgument, MaxEventLimit)
	}
	f.Severity = Severity(strings.ToLower(strings.TrimSpace(string(f.Severity))))
	if f.Severity != "" && !f.Severity.Valid() {
		return nil, fmt.Errorf("%w: invalid severity %q", ErrInvalidArgument, f.Severity)
	}
	return s.repo.ListEvents(ctx, tenantID, f)
}

func (s *Service) Acknowledge(ctx context.Context, actor directory.Actor, id uuid.UUID) (Event, error) {
	return s.repo.Acknowledge(ctx, actor.TenantID, id, actor.UserID, s.clock())
}

func (s *Service) AcknowledgeAll(ctx context.Context, actor directory.Actor) (int, error) {
	return s.repo.AcknowledgeAll(ctx, actor.TenantID, actor.UserID, s.clock())
}

func (s *Service) Stats(ctx context.Context, tenantID uuid.UUID) (Stats, error) {
	return s.repo.Stats(ctx, tenantID, s.clock().Add(-24*time.Hour))
}

// EvaluateTenant runs every active rule of a tenant against its calls and
// stores the events raised. It returns how many fired. Calls are loaded only
// when at least one rule is active.
func (s *Service) EvaluateTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	rules, err := s.repo.ListRules(ctx, tenantID, true)
	if err != nil {
		return 0, err
	}
	if len(rules) == 0 {
		return 0, nil
	}
	cs, err := s.calls.TenantCalls(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("load calls: %w", err)
	}

	now := s.clock().UTC()
	fired := 0
	for _, r := range rules {
		ev, ok := Evaluate(r, cs, now)
		if !ok {
			continue
		}
		if _, err := s.repo.CreateEvent(ctx, ev); err != nil {
			return fired, fmt.Errorf("store event for rule %s: %w", r.ID, err)
		}
		if err := s.repo.MarkTriggered(ctx, tenantID, r.ID, now); err != nil {
			return fired, fmt.Errorf("mark rule %s: %w", r.ID, err)
		}
		fired++
		s.log.Info("alert raised",
			"tenant_id", tenantID.String(),
			"rule_id", r.ID.String(),
			"rule_type", string(r.Type),
			"severity", string(ev.Severity),
		)
	}
	return fired, nil
}
