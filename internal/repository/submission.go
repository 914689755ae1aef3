package repository

import (
	"context"

	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/jmoiron/sqlx"
)

type SubmissionRepository interface {
	Create(ctx context.Context, submission *model.PendingSubmission) error
	CountByFingerprint(ctx context.Context, fingerprint string) (int, error)
}

type submissionRepository struct {
	db sqlx.ExtContext
}

func NewSubmissionRepository(db sqlx.ExtContext) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *model.PendingSubmission) error {
	query := `INSERT INTO pending_submissions (id, title, description, file_type, drive_link, fingerprint, ip_address, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		submission.ID,
		submission.Title,
		submission.Description,
		submission.FileType,
		submission.DriveLink,
		submission.Fingerprint,
		submission.IPAddress,
		submission.CreatedAt,
	)

	return err
}

func (r *submissionRepository) CountByFingerprint(ctx context.Context, fingerprint string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM pending_submissions WHERE fingerprint = $1`
	err := r.db.QueryRowxContext(ctx, query, fingerprint).Scan(&count)
	return count, err
}
