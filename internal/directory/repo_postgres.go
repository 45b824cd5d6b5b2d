package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"agent-console/internal/database"
	"agent-console/internal/rbac"

	"github.com/google/uuid"
)

const (
	constraintUserEmail  = "users_tenant_email_key"
	constraintAssignment = "user_agent_assignments_user_agent_key"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

type scanner interface{ Scan(...any) error }

const tenantColumns = `id, name, display_name, plan, agent_enabled, upstream_api_key, created_at`

func scanTenant(row scanner) (Tenant, error) {
	var t Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.DisplayName, &t.Plan, &t.AgentEnabled, &t.UpstreamAPIKey, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

func (r *PostgresRepo) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
}

func (r *PostgresRepo) FindTenantByName(ctx context.Context, name string) (Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE name = $1`, name))
}

func (r *PostgresRepo) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Tenant, 0)
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateTenantDisplayName(ctx context.Context, id uuid.UUID, displayName string) (Tenant, error) {
	q := `UPDATE tenants SET display_name = $2 WHERE id = $1 RETURNING ` + tenantColumns
	return scanTenant(r.db.QueryRowContext(ctx, q, id, displayName))
}

const userColumns = `id, tenant_id, email, password_hash, role, active, created_at`

func scanUser(row scanner) (User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &role, &u.Active, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	// The CHECK constraint keeps role inside the enumeration.
	u.Role = rbac.Role(role)
	return u, nil
}

func scanUsers(rows *sql.Rows) ([]User, error) {
	defer rows.Close()
	out := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

func (r *PostgresRepo) GetUser(ctx context.Context, tenantID, userID uuid.UUID) (User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND id = $2`
	return scanUser(r.db.QueryRowContext(ctx, q, tenantID, userID))
}

func (r *PostgresRepo) FindUsersByEmail(ctx context.Context, email string) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 ORDER BY created_at`, email)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}

func (r *PostgresRepo) ListUsers(ctx context.Context, tenantID uuid.UUID) ([]User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 ORDER BY created_at DESC, email`
	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}

func mapUserWriteErr(err error) error {
	switch {
	case database.IsUniqueViolation(err, constraintUserEmail):
		return fmt.Errorf("%w: email already in use", ErrConflict)
	case database.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: tenant", ErrNotFound)
	default:
		return err
	}
}

func (r *PostgresRepo) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	q := `
INSERT INTO users (id, tenant_id, email, password_hash, role, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + userColumns
	out, err := scanUser(r.db.QueryRowContext(ctx, q,
		u.ID, u.TenantID, u.Email, u.PasswordHash, string(u.Role), u.Active, u.CreatedAt.UTC(),
	))
	if err != nil {
		return User{}, mapUserWriteErr(err)
	}
	return out, nil
}

func (r *PostgresRepo) UpdateUser(ctx context.Context, u User) (User, error) {
	q := `
UPDATE users SET email = $3, password_hash = $4, role = $5, active = $6
WHERE tenant_id = $1 AND id = $2
RETURNING ` + userColumns
	out, err := scanUser(r.db.QueryRowContext(ctx, q,
		u.TenantID, u.ID, u.Email, u.PasswordHash, string(u.Role), u.Active,
	))
	if err != nil {
		return User{}, mapUserWriteErr(err)
	}
	return out, nil
}

func (r *PostgresRepo) DeleteUser(ctx context.Context, tenantID, userID uuid.UUID) ([]string, error) {
	var removed []string
	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		ids, err := assignedAgentIDs(ctx, tx, tenantID, userID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE tenant_id = $1 AND id = $2`, tenantID, userID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		removed = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func assignedAgentIDs(ctx context.Context, q database.Querier, tenantID, userID uuid.UUID) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
SELECT agent_external_id FROM user_agent_assignments
WHERE tenant_id = $1 AND user_id = $2
ORDER BY agent_external_id`, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) AgentIDsForUser(ctx context.Context, tenantID, userID uuid.UUID) ([]string, error) {
	return assignedAgentIDs(ctx, r.db, tenantID, userID)
}

func (r *PostgresRepo) AgentIDsByUser(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID][]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT user_id, agent_external_id FROM user_agent_assignments
WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[uuid.UUID][]string{}
	for rows.Next() {
		var (
			userID uuid.UUID
			id     string
		)
		if err := rows.Scan(&userID, &id); err != nil {
			return nil, err
		}
		out[userID] = append(out[userID], id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out, nil
}

const assignmentColumns = `id, user_id, tenant_id, agent_external_id, assigned_by, assigned_at`

func scanAssignment(row scanner) (Assignment, error) {
	var (
		a  Assignment
		by uuid.NullUUID
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.TenantID, &a.AgentExternalID, &by, &a.AssignedAt); err != nil {
		return Assignment{}, err
	}
	if by.Valid {
		a.AssignedBy = by.UUID
	}
	return a, nil
}

func (r *PostgresRepo) ListAssignments(ctx context.Context, tenantID, userID uuid.UUID) ([]Assignment, error) {
	q := `SELECT ` + assignmentColumns + ` FROM user_agent_assignments
WHERE tenant_id = $1 AND user_id = $2
ORDER BY assigned_at, agent_external_id`
	rows, err := r.db.QueryContext(ctx, q, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullable(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

func (r *PostgresRepo) CreateAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	// The user must belong to the tenant; a cross-tenant user id inserts nothing.
	q := `
INSERT INTO user_agent_assignments (id, user_id, tenant_id, agent_external_id, assigned_by, assigned_at)
SELECT $1, u.id, u.tenant_id, $4, $5, $6
FROM users u WHERE u.id = $2 AND u.tenant_id = $3
RETURNING ` + assignmentColumns
	out, err := scanAssignment(r.db.QueryRowContext(ctx, q,
		a.ID, a.UserID, a.TenantID, a.AgentExternalID, nullable(a.AssignedBy), a.AssignedAt.UTC(),
	))
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, sql.ErrNoRows):
		return Assignment{}, ErrNotFound
	case database.IsUniqueViolation(err, constraintAssignment):
		return Assignment{}, fmt.Errorf("%w: agent already assigned", ErrConflict)
	default:
		return Assignment{}, err
	}
}

func (r *PostgresRepo) CreateAssignments(ctx context.Context, tenantID, userID uuid.UUID, agentIDs []string, by uuid.UUID, at time.Time) ([]Assignment, error) {
	created := make([]Assignment, 0, len(agentIDs))
	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		// Lock the user row so a concurrent delete cannot interleave.
		var locked uuid.UUID
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, userID).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		q := `
INSERT INTO user_agent_assignments (id, user_id, tenant_id, agent_external_id, assigned_by, assigned_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT ON CONSTRAINT ` + constraintAssignment + ` DO NOTHING
RETURNING ` + assignmentColumns
		for _, agentID := range agentIDs {
			a, err := scanAssignment(tx.QueryRowContext(ctx, q, uuid.New(), userID, tenantID, agentID, nullable(by), at.UTC()))
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("assign %s: %w", agentID, err)
			}
			created = append(created, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PostgresRepo) DeleteAssignment(ctx context.Context, tenantID, userID uuid.UUID, agentID string) error {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM user_agent_assignments
WHERE tenant_id = $1 AND user_id = $2 AND agent_external_id = $3`, tenantID, userID, agentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
