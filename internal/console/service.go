// Package console answers the console's resource and analytics requests for
// one authenticated principal: it asks the provider, falls back to the cache,
// applies the caller's agent scope and, for analytics, aggregates.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agent-console/internal/access"
	"agent-console/internal/cache"
	"agent-console/internal/calls"
	"agent-console/internal/directory"
	"agent-console/internal/tenancy"
	"agent-console/internal/throttle"
	"agent-console/internal/upstream"

	"github.com/google/uuid"
)

var (
	// ErrNotFound also covers resources that exist but are outside the caller's scope.
	ErrNotFound        = errors.New("console: not found")
	ErrFeatureDisabled = errors.New("console: feature disabled for tenant")
)

// Upstream is the provider surface the console needs.
type Upstream interface {
	ListAgents(ctx context.Context, t upstream.Tenant) ([]upstream.Agent, error)
	GetAgent(ctx context.Context, t upstream.Tenant, id string) (upstream.Agent, error)
	UpdateAgent(ctx context.Context, t upstream.Tenant, id string, patch map[string]any) (upstream.Agent, error)
	ListCalls(ctx context.Context, t upstream.Tenant, limit, page int) (upstream.CallPage, error)
	GetCall(ctx context.Context, t upstream.Tenant, id string) (calls.Call, error)
	ListPhoneNumbers(ctx context.Context, t upstream.Tenant) ([]upstream.PhoneNumber, error)
	ListKnowledgeBases(ctx context.Context, t upstream.Tenant) ([]upstream.KnowledgeBase, error)
}

// Directory supplies tenant settings and agent assignments. directory.Repository
// satisfies it.
type Directory interface {
	GetTenant(ctx context.Context, tenantID uuid.UUID) (directory.Tenant, error)
	AgentIDsForUser(ctx context.Context, tenantID, userID uuid.UUID) ([]string, error)
}

type Options struct {
	// PageSize and MaxPages bound how many calls are pulled for analytics.
	PageSize int
	MaxPages int

	Names    *cache.NameCache
	Throttle *throttle.Cap
	Logger   *slog.Logger
}

type Service struct {
	up  Upstream
	dir Directory

	agents *cache.Typed[upstream.Agent]
	calls  *cache.Typed[calls.Call]
	phones *cache.Typed[upstream.PhoneNumber]
	kbs    *cache.Typed[upstream.KnowledgeBase]

	names    *cache.NameCache
	cap      *throttle.Cap
	pageSize int
	maxPages int

	log   *slog.Logger
	clock func() time.Time
}

func NewService(up Upstream, dir Directory, repo cache.Repository, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	if opts.Names == nil {
		opts.Names = cache.NewNameCache(1024, 10*time.Minute)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		up:  up,
		dir: dir,

		agents: cache.NewTyped(repo, cache.KindAgent,
			func(a upstream.Agent) string { return a.ID },
			func(a upstream.Agent) string { return a.ID }),
		calls: cache.NewTyped(repo, cache.KindCall,
			func(c calls.Call) string { return c.ID },
			func(c calls.Call) string { return c.AgentID }),
		phones: cache.NewTyped(repo, cache.KindPhoneNumber,
			func(p upstream.PhoneNumber) string { return p.ID },
			func(p upstream.PhoneNumber) string { return p.AgentID }),
		kbs: cache.NewTyped(repo, cache.KindKnowledgeBase,
			func(k upstream.KnowledgeBase) string { return k.ID },
			func(k upstream.KnowledgeBase) string { return k.AgentID }),

		names:    opts.Names,
		cap:      opts.Throttle,
		pageSize: opts.PageSize,
		maxPages: opts.MaxPages,

		log:   opts.Logger.With("component", "console"),
		clock: time.Now,
	}
}

// Scope is recomputed on every request so assignment changes apply at once.
func (s *Service) Scope(ctx context.Context, p tenancy.Principal) (access.Scope, error) {
	if p.Role.IsAdmin() {
		return access.Unrestricted(), nil
	}
	ids, err := s.dir.AgentIDsForUser(ctx, p.TenantID, p.UserID)
	if err != nil {
		return access.Scope{}, fmt.Errorf("load assignments: %w", err)
	}
	return access.ResolveScope(p.Role, ids), nil
}

func (s *Service) tenant(ctx context.Context, tenantID uuid.UUID) (directory.Tenant, upstream.Tenant, error) {
	t, err := s.dir.GetTenant(ctx, tenantID)
	if err != nil {
		return directory.Tenant{}, upstream.Tenant{}, fmt.Errorf("load tenant: %w", err)
	}
	return t, upstream.Tenant{ID: t.ID, APIKey: t.UpstreamAPIKey}, nil
}

// request resolves everything a scoped read needs.
func (s *Service) request(ctx context.Context, p tenancy.Principal) (upstream.Tenant, access.Scope, error) {
	_, ut, err := s.tenant(ctx, p.TenantID)
	if err != nil {
		return upstream.Tenant{}, access.Scope{}, err
	}
	scope, err := s.Scope(ctx, p)
	if err != nil {
		return upstream.Tenant{}, access.Scope{}, err
	}
	return ut, scope, nil
}

// throttled runs one provider call inside the tenant's concurrency cap.
func throttled[T any](ctx context.Context, s *Service, tenantID uuid.UUID, fn func(context.Context) (T, error)) (T, error) {
	release, err := s.cap.Acquire(ctx, tenantID)
	if err != nil {
		var zero T
		return zero, err
	}
	defer release()
	return fn(ctx)
}

func (s *Service) rememberNames(tenantID uuid.UUID, agents []upstream.Agent) {
	for _, a := range agents {
		s.names.Set(tenantID, a.ID, a.Name)
	}
}

func (s *Service) agentName(tenantID uuid.UUID, agentID string) string {
	if agentID == "" {
		return ""
	}
	name, _ := s.names.Get(tenantID, agentID)
	return name
}

func (s *Service) nameCalls(tenantID uuid.UUID, cs []calls.Call) {
	for i := range cs {
		if cs[i].AgentName == "" {
			cs[i].AgentName = s.agentName(tenantID, cs[i].AgentID)
		}
	}
}

func notFound(err error) error {
	if errors.Is(err, upstream.ErrNotFound) || errors.Is(err, cache.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
