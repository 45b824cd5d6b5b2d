package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository for tests. It enforces the same
// uniqueness rules as the database schema.
type MemoryRepo struct {
	mu          sync.Mutex
	tenants     map[uuid.UUID]Tenant
	users       map[uuid.UUID]User
	assignments []Assignment
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		tenants: map[uuid.UUID]Tenant{},
		users:   map[uuid.UUID]User{},
	}
}

// PutTenant seeds a tenant.
func (r *MemoryRepo) PutTenant(t Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[t.ID] = t
}

func (r *MemoryRepo) GetTenant(_ context.Context, id uuid.UUID) (Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) FindTenantByName(_ context.Context, name string) (Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tenants {
		if t.Name == name {
			return t, nil
		}
	}
	return Tenant{}, ErrNotFound
}

func (r *MemoryRepo) ListTenants(context.Context) ([]Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) UpdateTenantDisplayName(_ context.Context, id uuid.UUID, displayName string) (Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	t.DisplayName = displayName
	r.tenants[id] = t
	return t, nil
}

func (r *MemoryRepo) GetUserByID(_ context.Context, userID uuid.UUID) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepo) GetUser(_ context.Context, tenantID, userID uuid.UUID) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.TenantID != tenantID {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepo) FindUsersByEmail(_ context.Context, email string) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]User, 0, 1)
	for _, u := range r.users {
		if u.Email == email {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) ListUsers(_ context.Context, tenantID uuid.UUID) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]User, 0)
	for _, u := range r.users {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

func (r *MemoryRepo) emailTaken(tenantID, exceptID uuid.UUID, email string) bool {
	for _, u := range r.users {
		if u.TenantID == tenantID && u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) CreateUser(_ context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tenants[u.TenantID]; !ok {
		return User{}, ErrNotFound
	}
	if r.emailTaken(u.TenantID, uuid.Nil, u.Email) {
		return User{}, ErrConflict
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.ID] = u
	return u, nil
}

func (r *MemoryRepo) UpdateUser(_ context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.users[u.ID]
	if !ok || cur.TenantID != u.TenantID {
		return User{}, ErrNotFound
	}
	if r.emailTaken(u.TenantID, u.ID, u.Email) {
		return User{}, ErrConflict
	}
	u.CreatedAt = cur.CreatedAt
	r.users[u.ID] = u
	return u, nil
}

func (r *MemoryRepo) DeleteUser(_ context.Context, tenantID, userID uuid.UUID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.TenantID != tenantID {
		return nil, ErrNotFound
	}
	delete(r.users, userID)

	removed := make([]string, 0)
	kept := r.assignments[:0]
	for _, a := range r.assignments {
		if a.UserID == userID {
			removed = append(removed, a.AgentExternalID)
			continue
		}
		kept = append(kept, a)
	}
	r.assignments = kept
	sort.Strings(removed)
	return removed, nil
}

func (r *MemoryRepo) AgentIDsForUser(_ context.Context, tenantID, userID uuid.UUID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0)
	for _, a := range r.assignments {
		if a.TenantID == tenantID && a.UserID == userID {
			out = append(out, a.AgentExternalID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepo) AgentIDsByUser(_ context.Context, tenantID uuid.UUID) (map[uuid.UUID][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[uuid.UUID][]string{}
	for _, a := range r.assignments {
		if a.TenantID == tenantID {
			out[a.UserID] = append(out[a.UserID], a.AgentExternalID)
		}
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out, nil
}

func (r *MemoryRepo) ListAssignments(_ context.Context, tenantID, userID uuid.UUID) ([]Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Assignment, 0)
	for _, a := range r.assignments {
		if a.TenantID == tenantID && a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}

func (r *MemoryRepo) assigned(userID uuid.UUID, agentID string) bool {
	for _, a := range r.assignments {
		if a.UserID == userID && a.AgentExternalID == agentID {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) CreateAssignment(_ context.Context, a Assignment) (Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[a.UserID]; !ok || u.TenantID != a.TenantID {
		return Assignment{}, ErrNotFound
	}
	if r.assigned(a.UserID, a.AgentExternalID) {
		return Assignment{}, ErrConflict
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.assignments = append(r.assignments, a)
	return a, nil
}

func (r *MemoryRepo) CreateAssignments(_ context.Context, tenantID, userID uuid.UUID, agentIDs []string, by uuid.UUID, at time.Time) ([]Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; !ok || u.TenantID != tenantID {
		return nil, ErrNotFound
	}
	created := make([]Assignment, 0, len(agentIDs))
	for _, id := range agentIDs {
		if r.assigned(userID, id) {
			continue
		}
		a := Assignment{
			ID:              uuid.New(),
			UserID:          userID,
			TenantID:        tenantID,
			AgentExternalID: id,
			AssignedBy:      by,
			AssignedAt:      at,
		}
		r.assignments = append(r.assignments, a)
		created = append(created, a)
	}
	return created, nil
}

func (r *MemoryRepo) DeleteAssignment(_ context.Context, tenantID, userID uuid.UUID, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.assignments {
		if a.TenantID == tenantID && a.UserID == userID && a.AgentExternalID == agentID {
			r.assignments = append(r.assignments[:i], r.assignments[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
