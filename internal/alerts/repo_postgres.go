package alerts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agent-console/internal/database"

	"github.com/google/uuid"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const ruleColumns = `
id, tenant_id, name, description, rule_type, conditions,
notify_email, notify_webhook, webhook_url, is_active, cooldown_minutes,
last_triggered_at, trigger_count, created_by, created_at, updated_at`

func scanRule(row interface{ Scan(...any) error }) (Rule, error) {
	var (
		r          Rule
		conditions []byte
		lastFired  sql.NullTime
		createdBy  uuid.NullUUID
	)
	err := row.Scan(
		&r.ID,
		&r.TenantID,
		&r.Name,
		&r.Description,
		&r.Type,
		&conditions,
		&r.NotifyEmail,
		&r.NotifyWebhook,
		&r.WebhookURL,
		&r.Active,
		&r.CooldownMinutes,
		&lastFired,
		&r.TriggerCount,
		&createdBy,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Rule{}, ErrNotFound
		}
		return Rule{}, err
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &r.Conditions); err != nil {
			return Rule{}, fmt.Errorf("decode conditions: %w", err)
		}
	}
	if lastFired.Valid {
		t := lastFired.Time.UTC()
		r.LastTriggered = &t
	}
	r.CreatedBy = createdBy.UUID
	r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	return r, nil
}

const eventColumns = `
id, tenant_id, rule_id, severity, title, message, context,
notified_at, acknowledged_at, acknowledged_by, created_at`

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var (
		e        Event
		ruleID   uuid.NullUUID
		ctxJSON  []byte
		notified sql.NullTime
		acked    sql.NullTime
		ackedBy  uuid.NullUUID
	)
	err := row.Scan(
		&e.ID,
		&e.TenantID,
		&ruleID,
		&e.Severity,
		&e.Title,
		&e.Message,
		&ctxJSON,
		&notified,
		&acked,
		&ackedBy,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	e.Context = map[string]any{}
	if len(ctxJSON) > 0 {
		if err := json.Unmarshal(ctxJSON, &e.Context); err != nil {
			return Event{}, fmt.Errorf("decode context: %w", err)
		}
	}
	if ruleID.Valid {
		e.RuleID = &ruleID.UUID
	}
	if notified.Valid {
		t := notified.Time.UTC()
		e.NotifiedAt = &t
	}
	if acked.Valid {
		t := acked.Time.UTC()
		e.AcknowledgedAt = &t
	}
	if ackedBy.Valid {
		e.AcknowledgedBy = &ackedBy.UUID
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func mapWriteErr(err error) error {
	if database.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: tenant", ErrNotFound)
	}
	return err
}

func (r *PostgresRepo) ListRules(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Rule, error) {
	q := `SELECT ` + ruleColumns + `
FROM alert_rules
WHERE tenant_id = $1 AND (NOT $2 OR is_active)
ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, tenantID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetRule(ctx context.Context, tenantID, id uuid.UUID) (Rule, error) {
	q := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE id = $1 AND tenant_id = $2`
	return scanRule(r.db.QueryRowContext(ctx, q, id, tenantID))
}

func (r *PostgresRepo) CreateRule(ctx context.Context, rule Rule) (Rule, error) {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return Rule{}, err
	}
	q := `
INSERT INTO alert_rules (
	id, tenant_id, name, description, rule_type, conditions,
	notify_email, notify_webhook, webhook_url, is_active, cooldown_minutes,
	created_by, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
RETURNING ` + ruleColumns
	out, err := scanRule(r.db.QueryRowContext(ctx, q,
		rule.ID,
		rule.TenantID,
		rule.Name,
		rule.Description,
		rule.Type,
		conditions,
		rule.NotifyEmail,
		rule.NotifyWebhook,
		rule.WebhookURL,
		rule.Active,
		rule.CooldownMinutes,
		uuid.NullUUID{UUID: rule.CreatedBy, Valid: rule.CreatedBy != uuid.Nil},
		rule.CreatedAt.UTC(),
	))
	if err != nil {
		return Rule{}, mapWriteErr(err)
	}
	return out, nil
}

func (r *PostgresRepo) UpdateRule(ctx context.Context, rule Rule) (Rule, error) {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return Rule{}, err
	}
	q := `
UPDATE alert_rules SET
	name = $3, description = $4, conditions = $5, notify_email = $6, notify_webhook = $7,
	webhook_url = $8, is_active = $9, cooldown_minutes = $10, updated_at = $11
WHERE id = $1 AND tenant_id = $2
RETURNING ` + ruleColumns
	return scanRule(r.db.QueryRowContext(ctx, q,
		rule.ID,
		rule.TenantID,
		rule.Name,
		rule.Description,
		conditions,
		rule.NotifyEmail,
		rule.NotifyWebhook,
		rule.WebhookURL,
		rule.Active,
		rule.CooldownMinutes,
		rule.UpdatedAt.UTC(),
	))
}

func (r *PostgresRepo) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
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

func (r *PostgresRepo) DeleteRule(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.exec(ctx, `DELETE FROM alert_rules WHERE id = $1 AND tenant_id = $2`, id, tenantID)
}

func (r *PostgresRepo) MarkTriggered(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	q := `UPDATE alert_rules SET last_triggered_at = $3, trigger_count = trigger_count + 1 WHERE id = $1 AND tenant_id = $2`
	return r.exec(ctx, q, id, tenantID, at.UTC())
}

func (r *PostgresRepo) ListEvents(ctx context.Context, tenantID uuid.UUID, f EventFilter) ([]Event, error) {
	var acked sql.NullBool
	if f.Acknowledged != nil {
		acked = sql.NullBool{Bool: *f.Acknowledged, Valid: true}
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	q := `SELECT ` + eventColumns + `
FROM alert_events
WHERE tenant_id = $1
  AND ($2 = '' OR severity = $2)
  AND ($3::boolean IS NULL OR (acknowledged_at IS NOT NULL) = $3)
ORDER BY created_at DESC
LIMIT $4`
	rows, err := r.db.QueryContext(ctx, q, tenantID, string(f.Severity), acked, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CreateEvent(ctx context.Context, e Event) (Event, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	ctxJSON, err := json.Marshal(e.Context)
	if err != nil {
		return Event{}, err
	}
	var ruleID uuid.NullUUID
	if e.RuleID != nil {
		ruleID = uuid.NullUUID{UUID: *e.RuleID, Valid: true}
	}
	q := `
INSERT INTO alert_events (id, tenant_id, rule_id, severity, title, message, context, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + eventColumns
	out, err := scanEvent(r.db.QueryRowContext(ctx, q,
		e.ID,
		e.TenantID,
		ruleID,
		e.Severity,
		e.Title,
		e.Message,
		ctxJSON,
		e.CreatedAt.UTC(),
	))
	if err != nil {
		return Event{}, mapWriteErr(err)
	}
	return out, nil
}

func (r *PostgresRepo) Acknowledge(ctx context.Context, tenantID, id, by uuid.UUID, at time.Time) (Event, error) {
	q := `
UPDATE alert_events SET
	acknowledged_at = COALESCE(acknowledged_at, $3),
	acknowledged_by = COALESCE(acknowledged_by, $4)
WHERE id = $1 AND tenant_id = $2
RETURNING ` + eventColumns
	return scanEvent(r.db.QueryRowContext(ctx, q, id, tenantID, at.UTC(), by))
}

func (r *PostgresRepo) AcknowledgeAll(ctx context.Context, tenantID, by uuid.UUID, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE alert_events SET acknowledged_at = $2, acknowledged_by = $3
WHERE tenant_id = $1 AND acknowledged_at IS NULL`, tenantID, at.UTC(), by)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *PostgresRepo) Stats(ctx context.Context, tenantID uuid.UUID, since time.Time) (Stats, error) {
	st := Stats{BySeverity: emptyBySeverity()}
	err := r.db.QueryRowContext(ctx, `
SELECT
	(SELECT count(*) FROM alert_events WHERE tenant_id = $1 AND acknowledged_at IS NULL),
	(SELECT count(*) FROM alert_events WHERE tenant_id = $1 AND created_at >= $2),
	(SELECT count(*) FROM alert_rules WHERE tenant_id = $1 AND is_active)`,
		tenantID, since.UTC(),
	).Scan(&st.Unacknowledged, &st.Last24h, &st.ActiveRules)
	if err != nil {
		return Stats{}, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT severity, count(*) FROM alert_events
WHERE tenant_id = $1 AND created_at >= $2
GROUP BY severity`, tenantID, since.UTC())
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			sev Severity
			n   int
		)
		if err := rows.Scan(&sev, &n); err != nil {
			return Stats{}, err
		}
		st.BySeverity[sev] = n
	}
	return st, rows.Err()
}
