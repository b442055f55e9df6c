package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"custodia/internal/vault/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
)

// Postgres persists vault records keyed by owner identity.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the vaults table when it does not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS vaults (
			owner      TEXT PRIMARY KEY,
			address    TEXT NOT NULL,
			bump       SMALLINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure vaults schema: %w", err)
	}
	return nil
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Create inserts a record. The owner primary key enforces the one-record-
// per-owner invariant; a conflicting insert surfaces as ErrConflict without
// touching the existing row.
func (s *Postgres) Create(ctx context.Context, rec *models.VaultRecord) error {
	const insert = `
		INSERT INTO vaults (owner, address, bump, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner) DO NOTHING
	`
	res, err := s.querier(ctx).ExecContext(ctx, insert,
		rec.Owner.String(),
		rec.Address.String(),
		int16(rec.Bump),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert vault: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert vault: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) FindByOwner(ctx context.Context, owner domain.Identity) (*models.VaultRecord, error) {
	const query = `
		SELECT owner, address, bump, created_at FROM vaults WHERE owner = $1
	`
	rec := &models.VaultRecord{}
	var rawOwner, rawAddress string
	var bump int16
	err := s.querier(ctx).QueryRowContext(ctx, query, owner.String()).
		Scan(&rawOwner, &rawAddress, &bump, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select vault: %w", err)
	}
	if rec.Owner, err = domain.ParseIdentity(rawOwner); err != nil {
		return nil, fmt.Errorf("stored vault owner: %w", err)
	}
	if rec.Address, err = domain.ParseIdentity(rawAddress); err != nil {
		return nil, fmt.Errorf("stored vault address: %w", err)
	}
	rec.Bump = uint8(bump)
	return rec, nil
}
