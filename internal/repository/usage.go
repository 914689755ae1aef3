package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrUsageNotFound   = errors.New("usage record not found")
	ErrExtraCapReached = errors.New("extra upload cap reached for this period")
)

// UsageKey addresses one usage row and carries the values an upsert needs.
type UsageKey struct {
	IPAddress   string
	MonthKey    string
	Fingerprint string
	Ceiling     int // ceiling of the caller's current tier
	Now         time.Time
}

type UsageRepository interface {
	ByPeriod(ctx context.Context, ipAddress, monthKey string) (*model.UsageRecord, error)
	Increment(ctx context.Context, key UsageKey) (*model.UsageRecord, error)
	GrantExtra(ctx context.Context, key UsageKey, amount, periodCap int) (*model.UsageRecord, error)
}

type usageRepository struct {
	db sqlx.ExtContext
}

func NewUsageRepository(db sqlx.ExtContext) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) ByPeriod(ctx context.Context, ipAddress, monthKey string) (*model.UsageRecord, error) {
	record := &model.UsageRecord{}
	query := `SELECT * FROM usage_records WHERE ip_address = $1 AND month_key = $2`

	err := sqlx.GetContext(ctx, r.db, record, query, ipAddress, monthKey)
	if err == sql.ErrNoRows {
		return nil, ErrUsageNotFound
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

// Increment adds exactly one upload to the period, creating the row on first use.
// max_uploads becomes the largest of its previous value, the tier ceiling and the
// new count, in the same statement as the increment.
func (r *usageRepository) Increment(ctx context.Context, key UsageKey) (*model.UsageRecord, error) {
	query := `
		INSERT INTO usage_records (id, ip_address, month_key, fingerprint, upload_count, max_uploads, bonus_uploads, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, 0, $6, $7)
		ON CONFLICT (ip_address, month_key) DO UPDATE SET
			upload_count = usage_records.upload_count + 1,
			max_uploads = CASE
				WHEN usage_records.max_uploads >= excluded.max_uploads
					AND usage_records.max_uploads >= usage_records.upload_count + 1
					THEN usage_records.max_uploads
				WHEN excluded.max_uploads >= usage_records.upload_count + 1
					THEN excluded.max_uploads
				ELSE usage_records.upload_count + 1
			END,
			fingerprint = excluded.fingerprint,
			updated_at = excluded.updated_at
		RETURNING *
	`

	ceiling := key.Ceiling
	if ceiling < 1 {
		ceiling = 1
	}

	record := &model.UsageRecord{}
	err := sqlx.GetContext(ctx, r.db, record, query,
		uuid.New().String(),
		key.IPAddress,
		key.MonthKey,
		key.Fingerprint,
		ceiling,
		key.Now,
		key.Now,
	)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// GrantExtra raises the period ceiling to max(stored, tier ceiling) + amount.
// periodCap bounds the sum of grants in one period; 0 disables the bound.
func (r *usageRepository) GrantExtra(ctx context.Context, key UsageKey, amount, periodCap int) (*model.UsageRecord, error) {
	if periodCap > 0 && amount > periodCap {
		return nil, ErrExtraCapReached
	}

	// excluded.max_uploads - excluded.bonus_uploads is the tier ceiling.
	query := `
		INSERT INTO usage_records (id, ip_address, month_key, fingerprint, upload_count, max_uploads, bonus_uploads, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8)
		ON CONFLICT (ip_address, month_key) DO UPDATE SET
			max_uploads = CASE
				WHEN usage_records.max_uploads > excluded.max_uploads - excluded.bonus_uploads
					THEN usage_records.max_uploads
				ELSE excluded.max_uploads - excluded.bonus_uploads
			END + excluded.bonus_uploads,
			bonus_uploads = usage_records.bonus_uploads + excluded.bonus_uploads,
			updated_at = excluded.updated_at
		WHERE $9 = 0 OR usage_records.bonus_uploads + excluded.bonus_uploads <= $10
		RETURNING *
	`

	record := &model.UsageRecord{}
	err := sqlx.GetContext(ctx, r.db, record, query,
		uuid.New().String(),
		key.IPAddress,
		key.MonthKey,
		key.Fingerprint,
		key.Ceiling+amount,
		amount,
		key.Now,
		key.Now,
		periodCap,
		periodCap,
	)
	if err == sql.ErrNoRows {
		return nil, ErrExtraCapReached
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}
