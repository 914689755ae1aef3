package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/jmoiron/sqlx"
)

var (
	ErrTierNotFound = errors.New("tier record not found")
)

type TierRepository interface {
	ByFingerprint(ctx context.Context, fingerprint string) (*model.TierRecord, error)
	UpsertUpgrade(ctx context.Context, record *model.TierRecord) (*model.TierRecord, error)
	ResetExpired(ctx context.Context, fingerprint string, tier int, now time.Time) (bool, error)
}

type tierRepository struct {
	db sqlx.ExtContext
}

func NewTierRepository(db sqlx.ExtContext) TierRepository {
	return &tierRepository{db: db}
}

func (r *tierRepository) ByFingerprint(ctx context.Context, fingerprint string) (*model.TierRecord, error) {
	record := &model.TierRecord{}
	query := `SELECT * FROM tier_records WHERE fingerprint = $1`

	err := sqlx.GetContext(ctx, r.db, record, query, fingerprint)
	if err == sql.ErrNoRows {
		return nil, ErrTierNotFound
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

// UpsertUpgrade inserts the record or merges it into the stored one in a single
// statement. Tier and expiry only move when the candidate tier is higher, and
// completion_count never decreases, so replaying an older count is harmless.
func (r *tierRepository) UpsertUpgrade(ctx context.Context, record *model.TierRecord) (*model.TierRecord, error) {
	query := `
		INSERT INTO tier_records (fingerprint, ip_address, tier, completion_count, tier_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (fingerprint) DO UPDATE SET
			tier = CASE WHEN excluded.tier > tier_records.tier
				THEN excluded.tier ELSE tier_records.tier END,
			tier_expires_at = CASE WHEN excluded.tier > tier_records.tier
				THEN excluded.tier_expires_at ELSE tier_records.tier_expires_at END,
			completion_count = CASE WHEN excluded.completion_count > tier_records.completion_count
				THEN excluded.completion_count ELSE tier_records.completion_count END,
			ip_address = excluded.ip_address,
			updated_at = excluded.updated_at
		RETURNING *
	`

	stored := &model.TierRecord{}
	err := sqlx.GetContext(ctx, r.db, stored, query,
		record.Fingerprint,
		record.IPAddress,
		record.Tier,
		record.CompletionCount,
		record.TierExpiresAt,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// ResetExpired drops the record back to tier 0 if it still holds the given tier.
// It reports false when a concurrent write already changed the tier.
func (r *tierRepository) ResetExpired(ctx context.Context, fingerprint string, tier int, now time.Time) (bool, error) {
	query := `UPDATE tier_records
	          SET tier = 0, tier_expires_at = NULL, updated_at = $1
	          WHERE fingerprint = $2 AND tier = $3`

	result, err := r.db.ExecContext(ctx, query, now, fingerprint, tier)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}
