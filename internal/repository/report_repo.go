package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

const ReportStatusPending = "pending"

type Report struct {
	ID          string    `db:"id"`
	ReporterID  string    `db:"reporter_id"`
	TargetID    string    `db:"target_id"`
	TargetType  string    `db:"target_type"`
	Reason      string    `db:"reason"`
	Description *string   `db:"description"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
}

type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, rep *Report) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reports (id, reporter_id, target_id, target_type, reason, description, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rep.ID, rep.ReporterID, rep.TargetID, rep.TargetType, rep.Reason, rep.Description, rep.Status, rep.CreatedAt)
	return err
}
