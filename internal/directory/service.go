package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agent-console/internal/audit"
	"agent-console/internal/auth"
	"agent-console/internal/rbac"
	"agent-console/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// AgentCatalog lists the agent ids a tenant has at the provider.
type AgentCatalog interface {
	KnownAgents(ctx context.Context, tenantID uuid.UUID) (map[string]struct{}, error)
}

type Service struct {
	repo   Repository
	audit  *audit.Service
	agents AgentCatalog
	log    *slog.Logger
	clock  func() time.Time

	validate *validator.Validate
}

func NewService(repo Repository, auditSvc *audit.Service, agents AgentCatalog, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		audit:    auditSvc,
		agents:   agents,
		log:      logger.Component(log, "directory"),
		clock:    time.Now,
		validate: validator.New(),
	}
}

func (s *Service) normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidArgument)
	}
	return email, nil
}

// record writes an audit event. Audit is best-effort: failures are logged.
func (s *Service) record(ctx context.Context, actor Actor, typ audit.EventType, targetUserID uuid.UUID, agentID, msg string, meta any) {
	if s.audit == nil {
		return
	}
	target := ""
	if targetUserID != uuid.Nil {
		target = targetUserID.String()
	}
	a := audit.Actor{UserID: actor.UserID.String(), Role: actor.Role.String(), IP: actor.IP}
	if err := s.audit.Record(ctx, actor.TenantID, typ, a, target, agentID, msg, meta); err != nil {
		s.log.Warn("audit record failed", "type", string(typ), "tenant_id", actor.TenantID.String(), "err", err)
	}
}

// Authenticate checks credentials. tenantName may be empty when the email is
// registered in exactly one tenant; otherwise it selects the tenant. Every
// failure is ErrInvalidCredentials so callers cannot tell which accounts exist.
func (s *Service) Authenticate(ctx context.Context, tenantName, email, password string) (User, Tenant, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	tenantName = strings.TrimSpace(tenantName)

	users, err := s.repo.FindUsersByEmail(ctx, email)
	if err != nil {
		return User{}, Tenant{}, err
	}

	var (
		match  User
		tenant Tenant
		found  int
	)
	for _, u := range users {
		if !u.Active {
			continue
		}
		t, err := s.repo.GetTenant(ctx, u.TenantID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return User{}, Tenant{}, err
		}
		if tenantName != "" && t.Name != tenantName {
			continue
		}
		match, tenant = u, t
		found++
	}
	if found != 1 {
		return User{}, Tenant{}, ErrInvalidCredentials
	}
	if err := auth.CheckPassword(match.PasswordHash, password); err != nil {
		return User{}, Tenant{}, ErrInvalidCredentials
	}
	return match, tenant, nil
}

func (s *Service) Tenant(ctx context.Context, tenantID uuid.UUID) (Tenant, error) {
	return s.repo.GetTenant(ctx, tenantID)
}

func (s *Service) Tenants(ctx context.Context) ([]Tenant, error) {
	return s.repo.ListTenants(ctx)
}

func (s *Service) UpdateTenant(ctx context.Context, actor Actor, p TenantPatch) (Tenant, error) {
	t, err := s.repo.GetTenant(ctx, actor.TenantID)
	if err != nil {
		return Tenant{}, err
	}
	if p.DisplayName == nil {
		return t, nil
	}
	name := strings.TrimSpace(*p.DisplayName)
	if len(name) > 200 {
		return Tenant{}, fmt.Errorf("%w: display name too long", ErrInvalidArgument)
	}
	updated, err := s.repo.UpdateTenantDisplayName(ctx, actor.TenantID, name)
	if err != nil {
		return Tenant{}, err
	}
	s.record(ctx, actor, audit.EventTenantUpdated, uuid.Nil, "", "tenant display name updated",
		map[string]string{"from": t.DisplayName, "to": name})
	return updated, nil
}

// AgentIDsForUser returns the user's current assignments.
func (s *Service) AgentIDsForUser(ctx context.Context, tenantID, userID uuid.UUID) ([]string, error) {
	return s.repo.AgentIDsForUser(ctx, tenantID, userID)
}

// UserByID loads a user regardless of tenant. Tenancy checks are the caller's.
func (s *Service) UserByID(ctx context.Context, userID uuid.UUID) (User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *Service) ListUsers(ctx context.Context, tenantID uuid.UUID) ([]UserView, error) {
	users, err := s.repo.ListUsers(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	byUser, err := s.repo.AgentIDsByUser(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		agents := byUser[u.ID]
		if agents == nil {
			agents = []string{}
		}
		out = append(out, UserView{User: u, AssignedAgents: agents})
	}
	return out, nil
}

func (s *Service) GetUser(ctx context.Context, tenantID, userID uuid.UUID) (UserView, error) {
	u, err := s.repo.GetUser(ctx, tenantID, userID)
	if err != nil {
		return UserView{}, err
	}
	return s.view(ctx, u)
}

func (s *Service) view(ctx context.Context, u User) (UserView, error) {
	agents, err := s.repo.AgentIDsForUser(ctx, u.TenantID, u.ID)
	if err != nil {
		return UserView{}, err
	}
	return UserView{User: u, AssignedAgents: agents}, nil
}

// mayGrant reports whether actor may create or manage a user holding role.
// Only super admins manage super admins.
func mayGrant(actor Actor, role rbac.Role) bool {
	if role == rbac.RoleSuperAdmin {
		return actor.Role == rbac.RoleSuperAdmin
	}
	return actor.Role.IsAdmin()
}

func (s *Service) CreateUser(ctx context.Context, actor Actor, in NewUser) (UserView, error) {
	email, err := s.normalizeEmail(in.Email)
	if err != nil {
		return UserView{}, err
	}
	role := in.Role
	if role == "" {
		role = rbac.RoleUser
	}
	if !role.Valid() {
		return UserView{}, fmt.Errorf("%w: %v", ErrInvalidArgument, rbac.ErrUnknownRole)
	}
	if !mayGrant(actor, role) {
		return UserView{}, ErrForbidden
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return UserView{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	u, err := s.repo.CreateUser(ctx, User{
		ID:           uuid.New(),
		TenantID:     actor.TenantID,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    s.clock().UTC(),
	})
	if err != nil {
		return UserView{}, err
	}
	s.record(ctx, actor, audit.EventUserCreated, u.ID, "", "user created",
		map[string]string{"email": u.Email, "role": u.Role.String()})
	return UserView{User: u, AssignedAgents: []string{}}, nil
}

func (s *Service) UpdateUser(ctx context.Context, actor Actor, userID uuid.UUID, p UserPatch) (UserView, error) {
	cur, err := s.repo.GetUser(ctx, actor.TenantID, userID)
	if err != nil {
		return UserView{}, err
	}
	if !mayGrant(actor, cur.Role) {
		return UserView{}, ErrForbidden
	}
	self := userID == actor.UserID

	next := cur
	changes := map[string]any{}
	if p.Email != nil {
		email, err := s.normalizeEmail(*p.Email)
		if err != nil {
			return UserView{}, err
		}
		if email != cur.Email {
			next.Email = email
			changes["email"] = email
		}
	}
	if p.Role != nil && *p.Role != cur.Role {
		if self {
			return UserView{}, ErrSelfModification
		}
		if !p.Role.Valid() {
			return UserView{}, fmt.Errorf("%w: %v", ErrInvalidArgument, rbac.ErrUnknownRole)
		}
		if !mayGrant(actor, *p.Role) {
			return UserView{}, ErrForbidden
		}
		next.Role = *p.Role
		changes["role"] = next.Role.String()
	}
	if p.Active != nil && *p.Active != cur.Active {
		if self {
			return UserView{}, ErrSelfModification
		}
		next.Active = *p.Active
		changes["is_active"] = next.Active
	}
	if p.Password != nil {
		hash, err := auth.HashPassword(*p.Password)
		if err != nil {
			return UserView{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		next.PasswordHash = hash
		changes["password"] = "changed"
	}

	if len(changes) == 0 {
		return s.view(ctx, cur)
	}
	u, err := s.repo.UpdateUser(ctx, next)
	if err != nil {
		return UserView{}, err
	}
	s.record(ctx, actor, audit.EventUserUpdated, u.ID, "", "user updated", changes)
	return s.view(ctx, u)
}

// DeleteUser hard-deletes the user and cascades their assignments. The audit
// event keeps the email and the removed assignment set.
func (s *Service) DeleteUser(ctx context.Context, actor Actor, userID uuid.UUID) error {
	if userID == actor.UserID {
		return ErrSelfModification
	}
	u, err := s.repo.GetUser(ctx, actor.TenantID, userID)
	if err != nil {
		return err
	}
	if !mayGrant(actor, u.Role) {
		return ErrForbidden
	}
	removed, err := s.repo.DeleteUser(ctx, actor.TenantID, userID)
	if err != nil {
		return err
	}
	s.record(ctx, actor, audit.EventUserDeleted, userID, "", "user deleted",
		map[string]any{"email": u.Email, "role": u.Role.String(), "agents": removed})
	return nil
}

func (s *Service) ListAssignments(ctx context.Context, tenantID, userID uuid.UUID) ([]Assignment, error) {
	if _, err := s.repo.GetUser(ctx, tenantID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListAssignments(ctx, tenantID, userID)
}

// checkAgents loads the tenant catalog once and fails on the first unknown id.
func (s *Service) checkAgents(ctx context.Context, tenantID uuid.UUID, agentIDs ...string) error {
	if s.agents == nil {
		return nil
	}
	known, err := s.agents.KnownAgents(ctx, tenantID)
	if err != nil {
		return err
	}
	for _, id := range agentIDs {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: agent %s", ErrNotFound, id)
		}
	}
	return nil
}

func (s *Service) Assign(ctx context.Context, actor Actor, userID uuid.UUID, agentID string) (Assignment, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return Assignment{}, fmt.Errorf("%w: agent id is required", ErrInvalidArgument)
	}
	if _, err := s.repo.GetUser(ctx, actor.TenantID, userID); err != nil {
		return Assignment{}, err
	}
	if err := s.checkAgents(ctx, actor.TenantID, agentID); err != nil {
		return Assignment{}, err
	}
	a, err := s.repo.CreateAssignment(ctx, Assignment{
		ID:              uuid.New(),
		UserID:          userID,
		TenantID:        actor.TenantID,
		AgentExternalID: agentID,
		AssignedBy:      actor.UserID,
		AssignedAt:      s.clock().UTC(),
	})
	if err != nil {
		return Assignment{}, err
	}
	s.record(ctx, actor, audit.EventAgentAssigned, userID, agentID, "agent assigned", nil)
	return a, nil
}

// AssignBulk assigns every listed agent not yet assigned, all or nothing.
// Unknown agents fail the whole request before anything is written.
func (s *Service) AssignBulk(ctx context.Context, actor Actor, userID uuid.UUID, agentIDs []string) (BulkResult, error) {
	seen := make(map[string]struct{}, len(agentIDs))
	ids := make([]string, 0, len(agentIDs))
	for _, id := range agentIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return BulkResult{}, fmt.Errorf("%w: empty agent id", ErrInvalidArgument)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return BulkResult{}, fmt.Errorf("%w: no agent ids", ErrInvalidArgument)
	}

	if _, err := s.repo.GetUser(ctx, actor.TenantID, userID); err != nil {
		return BulkResult{}, err
	}
	if err := s.checkAgents(ctx, actor.TenantID, ids...); err != nil {
		return BulkResult{}, err
	}

	created, err := s.repo.CreateAssignments(ctx, actor.TenantID, userID, ids, actor.UserID, s.clock().UTC())
	if err != nil {
		return BulkResult{}, err
	}
	for _, a := range created {
		s.record(ctx, actor, audit.EventAgentAssigned, userID, a.AgentExternalID, "agent assigned (bulk)", nil)
	}
	return BulkResult{Requested: len(agentIDs), Created: created}, nil
}

func (s *Service) Unassign(ctx context.Context, actor Actor, userID uuid.UUID, agentID string) error {
	if err := s.repo.DeleteAssignment(ctx, actor.TenantID, userID, agentID); err != nil {
		return err
	}
	s.record(ctx, actor, audit.EventAgentUnassigned, userID, agentID, "agent unassigned", nil)
	return nil
}
