package repositories

import (
	"context"

	"coachhub/internal/models"
)

type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	CountPendingByTenant(ctx context.Context) ([]models.PendingReportCount, error)
}

type reportRepo struct {
	db DBTX
}

func NewReportRepo(db DBTX) ReportRepository {
	return &reportRepo{db: db}
}

func (r *reportRepo) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (id, tenant_id, reporter_id, reported_id, message_id, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := r.db.Exec(ctx, query, report.ID, report.TenantID, report.ReporterID, report.ReportedID,
		report.MessageID, report.Reason, string(report.Status))
	return mapError(err)
}

func (r *reportRepo) CountPendingByTenant(ctx context.Context) ([]models.PendingReportCount, error) {
	query := `
		SELECT tenant_id, COUNT(*)
		FROM reports
		WHERE status = 'pending' AND tenant_id IS NOT NULL
		GROUP BY tenant_id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.PendingReportCount
	for rows.Next() {
		var c models.PendingReportCount
		if err := rows.Scan(&c.TenantID, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
