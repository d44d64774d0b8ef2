// Package postgres implements the compound Source and Catalog over a
// postgres database using pgx.  The compounds table is the system of record
// for the curated compound collection the fingerprint index is built from.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/antimet/internal/config"
	"github.com/turtacn/antimet/internal/domain/compound"
	"github.com/turtacn/antimet/pkg/errors"
)

// DSN renders the pgx connection string for a database config.
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode, cfg.MaxConns)
}

// Connect opens a pgx pool and verifies connectivity.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, DSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "cannot create pgx pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "cannot reach postgres")
	}
	return pool, nil
}

// CompoundRepository reads compounds ordered by InChIKey so that chunk
// ranges stay stable across builds.  It satisfies both compound.Source and
// compound.Catalog.
type CompoundRepository struct {
	pool *pgxpool.Pool
}

// NewCompoundRepository wraps an open pool.
func NewCompoundRepository(pool *pgxpool.Pool) *CompoundRepository {
	return &CompoundRepository{pool: pool}
}

const (
	countQuery = `SELECT count(*) FROM compounds`

	sliceQuery = `
		SELECT inchi_key, names, smiles, solubility, num_atoms, num_bonds
		FROM compounds
		ORDER BY inchi_key
		OFFSET $1 LIMIT $2`

	getQuery = `
		SELECT inchi_key, names, smiles, solubility, num_atoms, num_bonds
		FROM compounds
		WHERE inchi_key = $1`
)

// Count implements compound.Source.
func (r *CompoundRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countQuery).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "cannot count compounds")
	}
	return n, nil
}

// Slice implements compound.Source.  The ORDER BY matches Count's table, so
// [start, end) over concurrent chunks partitions the collection exactly.
func (r *CompoundRepository) Slice(ctx context.Context, start, end int) ([]compound.Record, error) {
	if start > end {
		return nil, errors.InvalidParam("slice start after end").
			WithDetailf("start=%d end=%d", start, end)
	}
	rows, err := r.pool.Query(ctx, sliceQuery, start, end-start)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "cannot read compound slice").
			WithDetailf("range [%d, %d)", start, end)
	}
	defer rows.Close()

	var out []compound.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "compound slice scan failed")
	}
	return out, nil
}

// Get implements compound.Catalog.
func (r *CompoundRepository) Get(ctx context.Context, inchiKey string) (compound.Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, getQuery, inchiKey))
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeCompoundNotFound) {
			return compound.Record{}, err
		}
		return compound.Record{}, errors.Wrap(err, errors.ErrCodeSourceUnavailable,
			"cannot read compound").WithDetail(inchiKey)
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (compound.Record, error) {
	var rec compound.Record
	err := row.Scan(&rec.InChIKey, &rec.Names, &rec.SMILES,
		&rec.Solubility, &rec.NumAtoms, &rec.NumBonds)
	if err == pgx.ErrNoRows {
		return compound.Record{}, errors.New(errors.ErrCodeCompoundNotFound, "compound not found")
	}
	if err != nil {
		return compound.Record{}, err
	}
	return rec, nil
}
