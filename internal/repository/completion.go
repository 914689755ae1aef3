package repository

import (
	"context"
	"errors"
	"time"

	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrCompletionExists = errors.New("session token has already been used")
)

type CompletionRepository interface {
	Create(ctx context.Context, record *model.CompletionRecord) error
	ExistsByToken(ctx context.Context, sessionToken string) (bool, error)
	CountByFingerprint(ctx context.Context, fingerprint, completionType string) (int, error)
}

type completionRepository struct {
	db sqlx.ExtContext
}

func NewCompletionRepository(db sqlx.ExtContext) CompletionRepository {
	return &completionRepository{db: db}
}

// Create appends a completion. The unique session_token column decides races:
// only the first insert for a token affects a row, every later one gets
// ErrCompletionExists.
func (r *completionRepository) Create(ctx context.Context, record *model.CompletionRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO completion_records (id, fingerprint, ip_address, session_token, completion_type, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_token) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.Fingerprint,
		record.IPAddress,
		record.SessionToken,
		record.CompletionType,
		record.UserAgent,
		record.CreatedAt,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrCompletionExists
	}

	return nil
}

func (r *completionRepository) ExistsByToken(ctx context.Context, sessionToken string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM completion_records WHERE session_token = $1)`
	err := r.db.QueryRowxContext(ctx, query, sessionToken).Scan(&exists)
	return exists, err
}

func (r *completionRepository) CountByFingerprint(ctx context.Context, fingerprint, completionType string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM completion_records WHERE fingerprint = $1 AND completion_type = $2`
	err := r.db.QueryRowxContext(ctx, query, fingerprint, completionType).Scan(&count)
	return count, err
}
