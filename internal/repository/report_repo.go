package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"social-chat/internal/domain"
)

type ReportRepository interface {
	Create(ctx context.Context, report domain.Report) (int64, error)
}

type PgReportRepository struct {
	pool *pgxpool.Pool
}

func NewPgReportRepository(pool *pgxpool.Pool) *PgReportRepository {
	return &PgReportRepository{pool: pool}
}

func (r *PgReportRepository) Create(ctx context.Context, report domain.Report) (int64, error) {
	const query = `
		INSERT INTO reports (reporter_id, reported_user_id, reason, details, is_resolved, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		report.ReporterID,
		report.ReportedUserID,
		string(report.Reason),
		report.Details,
		report.CreatedAt,
	).Scan(&id)
	return id, err
}
