package reporting

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const configColumns = `
tenant_id, enabled, recipients, schedule_day, schedule_time,
include_call_summary, include_analytics, include_alerts, include_recommendations,
last_sent_at, updated_at`

func scanConfig(row interface{ Scan(...any) error }) (ReportConfig, error) {
	var (
		c          ReportConfig
		recipients []byte
		lastSent   sql.NullTime
	)
	if err := row.Scan(
		&c.TenantID,
		&c.Enabled,
		&recipients,
		&c.Schedule.Day,
		&c.Schedule.Time,
		&c.Include.CallSummary,
		&c.Include.Analytics,
		&c.Include.Alerts,
		&c.Include.Recommendations,
		&lastSent,
		&c.UpdatedAt,
	); err != nil {
		return ReportConfig{}, err
	}
	c.Recipients = []string{}
	if len(recipients) > 0 {
		if err := json.Unmarshal(recipients, &c.Recipients); err != nil {
			return ReportConfig{}, err
		}
	}
	if lastSent.Valid {
		t := lastSent.Time.UTC()
		c.LastSentAt = &t
	}
	return c, nil
}

func (r *PostgresRepo) GetConfig(ctx context.Context, tenantID uuid.UUID) (ReportConfig, error) {
	q := `SELECT ` + configColumns + ` FROM weekly_report_configs WHERE tenant_id = $1`
	c, err := scanConfig(r.db.QueryRowContext(ctx, q, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ReportConfig{}, ErrNotFound
		}
		return ReportConfig{}, err
	}
	return c, nil
}

func (r *PostgresRepo) SaveConfig(ctx context.Context, c ReportConfig) error {
	recipients, err := json.Marshal(nonNil(c.Recipients))
	if err != nil {
		return err
	}
	const q = `
INSERT INTO weekly_report_configs (
	tenant_id, enabled, recipients, schedule_day, schedule_time,
	include_call_summary, include_analytics, include_alerts, include_recommendations,
	last_sent_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
ON CONFLICT (tenant_id) DO UPDATE SET
	enabled = EXCLUDED.enabled,
	recipients = EXCLUDED.recipients,
	schedule_day = EXCLUDED.schedule_day,
	schedule_time = EXCLUDED.schedule_time,
	include_call_summary = EXCLUDED.include_call_summary,
	include_analytics = EXCLUDED.include_analytics,
	include_alerts = EXCLUDED.include_alerts,
	include_recommendations = EXCLUDED.include_recommendations,
	last_sent_at = EXCLUDED.last_sent_at,
	updated_at = now()
`
	_, err = r.db.ExecContext(ctx, q,
		c.TenantID,
		c.Enabled,
		string(recipients),
		c.Schedule.Day,
		c.Schedule.Time,
		c.Include.CallSummary,
		c.Include.Analytics,
		c.Include.Alerts,
		c.Include.Recommendations,
		c.LastSentAt,
	)
	return err
}

func (r *PostgresRepo) ListEnabledConfigs(ctx context.Context) ([]ReportConfig, error) {
	q := `SELECT ` + configColumns + ` FROM weekly_report_configs WHERE enabled ORDER BY tenant_id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ReportConfig, 0)
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const reportColumns = `
id, tenant_id, week_start, week_end,
total_calls, completed_calls, missed_calls, failed_calls,
completion_rate, avg_duration, total_cost,
calls_change_pct, completed_change_pct,
generated_at, sent_at, sent_to`

func scanReport(row interface{ Scan(...any) error }) (WeeklyReport, error) {
	var (
		rep             WeeklyReport
		callsChange     sql.NullFloat64
		completedChange sql.NullFloat64
		sentAt          sql.NullTime
		sentTo          []byte
	)
	if err := row.Scan(
		&rep.ID,
		&rep.TenantID,
		&rep.WeekStart,
		&rep.WeekEnd,
		&rep.TotalCalls,
		&rep.CompletedCalls,
		&rep.MissedCalls,
		&rep.FailedCalls,
		&rep.CompletionRate,
		&rep.AvgDuration,
		&rep.TotalCost,
		&callsChange,
		&completedChange,
		&rep.GeneratedAt,
		&sentAt,
		&sentTo,
	); err != nil {
		return WeeklyReport{}, err
	}
	rep.WeekStart, rep.WeekEnd, rep.GeneratedAt = rep.WeekStart.UTC(), rep.WeekEnd.UTC(), rep.GeneratedAt.UTC()
	if callsChange.Valid {
		rep.CallsChangePct = &callsChange.Float64
	}
	if completedChange.Valid {
		rep.CompletedChangePct = &completedChange.Float64
	}
	if sentAt.Valid {
		t := sentAt.Time.UTC()
		rep.SentAt = &t
	}
	if len(sentTo) > 0 {
		if err := json.Unmarshal(sentTo, &rep.SentTo); err != nil {
			return WeeklyReport{}, err
		}
	}
	return rep, nil
}

// SaveReport regenerating an existing week keeps its id and delivery state.
func (r *PostgresRepo) SaveReport(ctx context.Context, rep WeeklyReport) (WeeklyReport, error) {
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	q := `
INSERT INTO weekly_reports (
	id, tenant_id, week_start, week_end,
	total_calls, completed_calls, missed_calls, failed_calls,
	completion_rate, avg_duration, total_cost,
	calls_change_pct, completed_change_pct, generated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT ON CONSTRAINT weekly_reports_tenant_week_key DO UPDATE SET
	week_end = EXCLUDED.week_end,
	total_calls = EXCLUDED.total_calls,
	completed_calls = EXCLUDED.completed_calls,
	missed_calls = EXCLUDED.missed_calls,
	failed_calls = EXCLUDED.failed_calls,
	completion_rate = EXCLUDED.completion_rate,
	avg_duration = EXCLUDED.avg_duration,
	total_cost = EXCLUDED.total_cost,
	calls_change_pct = EXCLUDED.calls_change_pct,
	completed_change_pct = EXCLUDED.completed_change_pct,
	generated_at = EXCLUDED.generated_at
RETURNING ` + reportColumns
	return scanReport(r.db.QueryRowContext(ctx, q,
		rep.ID,
		rep.TenantID,
		rep.WeekStart.UTC(),
		rep.WeekEnd.UTC(),
		rep.TotalCalls,
		rep.CompletedCalls,
		rep.MissedCalls,
		rep.FailedCalls,
		rep.CompletionRate,
		rep.AvgDuration,
		rep.TotalCost,
		rep.CallsChangePct,
		rep.CompletedChangePct,
		rep.GeneratedAt.UTC(),
	))
}

func (r *PostgresRepo) ListReports(ctx context.Context, tenantID uuid.UUID, limit int) ([]WeeklyReport, error) {
	if limit <= 0 {
		limit = 52
	}
	q := `SELECT ` + reportColumns + `
FROM weekly_reports
WHERE tenant_id = $1
ORDER BY week_start DESC
LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]WeeklyReport, 0)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) MarkSent(ctx context.Context, tenantID, reportID uuid.UUID, at time.Time, to []string) error {
	recipients, err := json.Marshal(nonNil(to))
	if err != nil {
		return err
	}
	const q = `UPDATE weekly_reports SET sent_at = $3, sent_to = $4 WHERE tenant_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, q, tenantID, reportID, at.UTC(), string(recipients))
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

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
