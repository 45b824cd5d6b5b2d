package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// GetConfig returns ErrNotFound when the tenant has no stored config.
	GetConfig(ctx context.Context, tenantID uuid.UUID) (ReportConfig, error)
	SaveConfig(ctx context.Context, c ReportConfig) error
	ListEnabledConfigs(ctx context.Context) ([]ReportConfig, error)

	// SaveReport upserts on (tenant, week start) and returns the stored row.
	SaveReport(ctx context.Context, r WeeklyReport) (WeeklyReport, error)
	// ListReports returns newest weeks first.
	ListReports(ctx context.Context, tenantID uuid.UUID, limit int) ([]WeeklyReport, error)
	MarkSent(ctx context.Context, tenantID, reportID uuid.UUID, at time.Time, to []string) error
}
