package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"custodia/internal/derive"
	"custodia/internal/registry/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
)

// Postgres persists the registry singleton. The record row is keyed by the
// derivation tag; the ordered operator set lives in a child table so the
// duplicate-tolerant ordering survives round-trips.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the registry tables when they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS registry (
			tag           TEXT PRIMARY KEY,
			address       TEXT NOT NULL,
			administrator TEXT NOT NULL,
			bump          SMALLINT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS registry_operators (
			tag      TEXT NOT NULL,
			pos      INT NOT NULL,
			identity TEXT NOT NULL,
			PRIMARY KEY (tag, pos)
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure registry schema: %w", err)
	}
	return nil
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Create inserts the singleton record. A second insert for the same tag
// conflicts on the primary key and surfaces as ErrConflict.
func (s *Postgres) Create(ctx context.Context, registry *models.Registry) error {
	return txcontext.RunInTx(ctx, s.db, func(ctx context.Context) error {
		q := s.querier(ctx)

		const insert = `
			INSERT INTO registry (tag, address, administrator, bump, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (tag) DO NOTHING
		`
		res, err := q.ExecContext(ctx, insert,
			derive.RegistryTag,
			registry.Address.String(),
			registry.Administrator.String(),
			int16(registry.Bump),
			registry.CreatedAt,
			registry.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert registry: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert registry: %w", err)
		}
		if rows == 0 {
			return sentinel.ErrConflict
		}
		return s.writeOperators(ctx, q, registry.Operators)
	})
}

func (s *Postgres) Get(ctx context.Context) (*models.Registry, error) {
	q := s.querier(ctx)

	const query = `
		SELECT address, administrator, bump, created_at, updated_at
		FROM registry WHERE tag = $1
	`
	registry := &models.Registry{}
	var address, administrator string
	var bump int16
	err := q.QueryRowContext(ctx, query, derive.RegistryTag).
		Scan(&address, &administrator, &bump, &registry.CreatedAt, &registry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select registry: %w", err)
	}
	if registry.Address, err = domain.ParseIdentity(address); err != nil {
		return nil, fmt.Errorf("stored registry address: %w", err)
	}
	if registry.Administrator, err = domain.ParseIdentity(administrator); err != nil {
		return nil, fmt.Errorf("stored administrator: %w", err)
	}
	registry.Bump = uint8(bump)

	if registry.Operators, err = s.readOperators(ctx, q); err != nil {
		return nil, err
	}
	return registry, nil
}

// Execute loads the registry under FOR UPDATE, runs validate then mutate,
// and persists the result in the same transaction.
func (s *Postgres) Execute(ctx context.Context, validate func(*models.Registry) error, mutate func(*models.Registry)) (*models.Registry, error) {
	var updated *models.Registry
	err := txcontext.RunInTx(ctx, s.db, func(ctx context.Context) error {
		q := s.querier(ctx)

		const lock = `SELECT 1 FROM registry WHERE tag = $1 FOR UPDATE`
		var one int
		if err := q.QueryRowContext(ctx, lock, derive.RegistryTag).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("lock registry: %w", err)
		}

		registry, err := s.Get(ctx)
		if err != nil {
			return err
		}
		if err := validate(registry); err != nil {
			return err
		}
		mutate(registry)

		const update = `
			UPDATE registry SET administrator = $2, updated_at = $3 WHERE tag = $1
		`
		if _, err := q.ExecContext(ctx, update,
			derive.RegistryTag,
			registry.Administrator.String(),
			registry.UpdatedAt,
		); err != nil {
			return fmt.Errorf("update registry: %w", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM registry_operators WHERE tag = $1`, derive.RegistryTag); err != nil {
			return fmt.Errorf("clear operators: %w", err)
		}
		if err := s.writeOperators(ctx, q, registry.Operators); err != nil {
			return err
		}
		updated = registry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Postgres) writeOperators(ctx context.Context, q dbQuerier, operators []domain.Identity) error {
	const insert = `INSERT INTO registry_operators (tag, pos, identity) VALUES ($1, $2, $3)`
	for pos, op := range operators {
		if _, err := q.ExecContext(ctx, insert, derive.RegistryTag, pos, op.String()); err != nil {
			return fmt.Errorf("insert operator %d: %w", pos, err)
		}
	}
	return nil
}

func (s *Postgres) readOperators(ctx context.Context, q dbQuerier) ([]domain.Identity, error) {
	const query = `
		SELECT identity FROM registry_operators WHERE tag = $1 ORDER BY pos
	`
	rows, err := q.QueryContext(ctx, query, derive.RegistryTag)
	if err != nil {
		return nil, fmt.Errorf("select operators: %w", err)
	}
	defer rows.Close()

	var operators []domain.Identity
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan operator: %w", err)
		}
		op, err := domain.ParseIdentity(raw)
		if err != nil {
			return nil, fmt.Errorf("stored operator: %w", err)
		}
		operators = append(operators, op)
	}
	return operators, rows.Err()
}
