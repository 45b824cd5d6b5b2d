package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agent-console/internal/database"

	"github.com/google/uuid"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// UpsertMany writes all entries in one transaction. A conflicting
// (tenant_id, external_id) row is overwritten; last writer wins.
func (r *PostgresRepo) UpsertMany(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return err
		}
	}
	return database.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, e := range entries {
			table, _ := e.Kind.table()
			q := fmt.Sprintf(`
INSERT INTO %s (tenant_id, external_id, agent_external_id, payload, synced_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (tenant_id, external_id) DO UPDATE SET
	agent_external_id = EXCLUDED.agent_external_id,
	payload = EXCLUDED.payload,
	synced_at = EXCLUDED.synced_at
`, table)
			if _, err := tx.ExecContext(ctx, q, e.TenantID, e.ExternalID, e.AgentID, string(e.Payload), e.SyncedAt.UTC()); err != nil {
				return fmt.Errorf("upsert %s %s: %w", e.Kind, e.ExternalID, err)
			}
		}
		return nil
	})
}

func (r *PostgresRepo) ReadAll(ctx context.Context, tenantID uuid.UUID, kind Kind) ([]Entry, error) {
	table, err := kind.table()
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
SELECT external_id, agent_external_id, payload, synced_at
FROM %s
WHERE tenant_id = $1
ORDER BY external_id
`, table)
	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		e := Entry{TenantID: tenantID, Kind: kind}
		var payload []byte
		if err := rows.Scan(&e.ExternalID, &e.AgentID, &payload, &e.SyncedAt); err != nil {
			return nil, err
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ReadOne(ctx context.Context, tenantID uuid.UUID, kind Kind, externalID string) (Entry, error) {
	table, err := kind.table()
	if err != nil {
		return Entry{}, err
	}
	q := fmt.Sprintf(`
SELECT agent_external_id, payload, synced_at
FROM %s
WHERE tenant_id = $1 AND external_id = $2
`, table)
	e := Entry{TenantID: tenantID, Kind: kind, ExternalID: externalID}
	var payload []byte
	if err := r.db.QueryRowContext(ctx, q, tenantID, externalID).Scan(&e.AgentID, &payload, &e.SyncedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	e.Payload = payload
	return e, nil
}
