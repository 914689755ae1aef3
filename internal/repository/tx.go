package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Tx holds repositories bound to one open transaction.
type Tx struct {
	Tiers       TierRepository
	Usage       UsageRepository
	Completions CompletionRepository
}

type Transactor interface {
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type transactor struct {
	db *sqlx.DB
}

func NewTransactor(db *sqlx.DB) Transactor {
	return &transactor{db: db}
}

func (t *transactor) InTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	err = fn(Tx{
		Tiers:       NewTierRepository(sqlTx),
		Usage:       NewUsageRepository(sqlTx),
		Completions: NewCompletionRepository(sqlTx),
	})
	if err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
