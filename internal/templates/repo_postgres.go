package templates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agent-console/internal/database"

	"github.com/google/uuid"
)

const (
	constraintTenantName = "agent_templates_tenant_name_key"
	constraintPresetName = "agent_templates_preset_name_key"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const columns = `
id, tenant_id, name, description, category, icon, is_preset,
greeting, system_prompt, voice, language, usage_count, created_by, created_at, updated_at`

func scan(row interface{ Scan(...any) error }) (Template, error) {
	var (
		t         Template
		tenantID  uuid.NullUUID
		createdBy uuid.NullUUID
	)
	err := row.Scan(
		&t.ID,
		&tenantID,
		&t.Name,
		&t.Description,
		&t.Category,
		&t.Icon,
		&t.IsPreset,
		&t.Greeting,
		&t.SystemPrompt,
		&t.Voice,
		&t.Language,
		&t.UsageCount,
		&createdBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Template{}, ErrNotFound
		}
		return Template{}, err
	}
	t.TenantID, t.CreatedBy = tenantID.UUID, createdBy.UUID
	t.CreatedAt, t.UpdatedAt = t.CreatedAt.UTC(), t.UpdatedAt.UTC()
	return t, nil
}

func nullable(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

func mapWriteErr(err error) error {
	switch {
	case database.IsUniqueViolation(err, constraintTenantName), database.IsUniqueViolation(err, constraintPresetName):
		return fmt.Errorf("%w: a template with this name already exists", ErrConflict)
	case database.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: tenant", ErrNotFound)
	default:
		return err
	}
}

func (r *PostgresRepo) query(ctx context.Context, q string, args ...any) ([]Template, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Template, 0)
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) List(ctx context.Context, tenantID uuid.UUID, f Filter) ([]Template, error) {
	q := `SELECT ` + columns + `
FROM agent_templates
WHERE (tenant_id = $1 OR ($2 AND is_preset))
  AND ($3 = '' OR category = $3)
ORDER BY is_preset DESC, usage_count DESC, name`
	return r.query(ctx, q, tenantID, f.IncludePresets, f.Category)
}

func (r *PostgresRepo) ListPresets(ctx context.Context) ([]Template, error) {
	return r.query(ctx, `SELECT `+columns+` FROM agent_templates WHERE is_preset ORDER BY category, name`)
}

func (r *PostgresRepo) Get(ctx context.Context, tenantID, id uuid.UUID) (Template, error) {
	q := `SELECT ` + columns + ` FROM agent_templates WHERE id = $1 AND (tenant_id = $2 OR is_preset)`
	return scan(r.db.QueryRowContext(ctx, q, id, tenantID))
}

func (r *PostgresRepo) Create(ctx context.Context, t Template) (Template, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	q := `
INSERT INTO agent_templates (
	id, tenant_id, name, description, category, icon, is_preset,
	greeting, system_prompt, voice, language, created_by, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
RETURNING ` + columns
	out, err := scan(r.db.QueryRowContext(ctx, q,
		t.ID,
		nullable(t.TenantID),
		t.Name,
		t.Description,
		t.Category,
		t.Icon,
		t.IsPreset,
		t.Greeting,
		t.SystemPrompt,
		t.Voice,
		t.Language,
		nullable(t.CreatedBy),
		t.CreatedAt.UTC(),
	))
	if err != nil {
		return Template{}, mapWriteErr(err)
	}
	return out, nil
}

func (r *PostgresRepo) Update(ctx context.Context, t Template) (Template, error) {
	q := `
UPDATE agent_templates SET
	name = $3, description = $4, category = $5, icon = $6,
	greeting = $7, system_prompt = $8, voice = $9, language = $10, updated_at = $11
WHERE id = $1 AND tenant_id = $2 AND NOT is_preset
RETURNING ` + columns
	out, err := scan(r.db.QueryRowContext(ctx, q,
		t.ID,
		t.TenantID,
		t.Name,
		t.Description,
		t.Category,
		t.Icon,
		t.Greeting,
		t.SystemPrompt,
		t.Voice,
		t.Language,
		t.UpdatedAt.UTC(),
	))
	if err != nil {
		return Template{}, mapWriteErr(err)
	}
	return out, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM agent_templates WHERE id = $1 AND tenant_id = $2 AND NOT is_preset`, id, tenantID)
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

func (r *PostgresRepo) IncrementUsage(ctx context.Context, tenantID, id uuid.UUID) (Template, error) {
	q := `
UPDATE agent_templates SET usage_count = usage_count + 1
WHERE id = $1 AND (tenant_id = $2 OR is_preset)
RETURNING ` + columns
	return scan(r.db.QueryRowContext(ctx, q, id, tenantID))
}
