package audit

import (
	"context"
	"database/sql"

	"agent-console/internal/database"
)

type PostgresRepo struct {
	db database.Querier
}

// NewPostgresRepo accepts a *sql.DB or a *sql.Tx, so events can be written in
// the same transaction as the change they describe.
func NewPostgresRepo(db database.Querier) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
	id, tenant_id, type, actor_user_id, actor_role, ip_address,
	target_user_id, agent_external_id, message, metadata, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`
	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		metadata = sql.NullString{String: string(e.Metadata), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.TenantID,
		string(e.Type),
		e.ActorUserID,
		e.ActorRole,
		e.IPAddress,
		e.TargetUserID,
		e.AgentExternalID,
		e.Message,
		metadata,
		e.CreatedAt.UTC(),
	)
	return err
}
