package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/roadrings/internal/aggregate"
	"github.com/sells-group/roadrings/internal/db"
)

// Schema is the Postgres schema holding the summary tables.
const Schema = "roadrings"

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects to Postgres and returns a store.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE SCHEMA IF NOT EXISTS roadrings;

CREATE TABLE IF NOT EXISTS roadrings.by_ring_year (
	ring_id    TEXT NOT NULL,
	ring_order INTEGER NOT NULL,
	year       INTEGER NOT NULL,
	area_ha    DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (ring_id, year)
);

CREATE TABLE IF NOT EXISTS roadrings.by_ring (
	ring_id    TEXT PRIMARY KEY,
	ring_order INTEGER NOT NULL,
	area_ha    DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS roadrings.summary_meta (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	meta TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_by_ring_year_year ON roadrings.by_ring_year(year);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Persist stages all three summary tables and swaps them in one
// transaction.
func (s *PostgresStore) Persist(ctx context.Context, table *aggregate.Table) error {
	metaJSON, err := json.Marshal(table.Meta)
	if err != nil {
		return eris.Wrapf(ErrPersistenceFailure, "postgres: encode meta: %v", err)
	}
	order := ringOrder(table)

	yearRows := make([][]any, 0, len(table.ByRingYear))
	for _, row := range table.ByRingYear {
		yearRows = append(yearRows, []any{row.RingID, order[row.RingID], row.Year, row.AreaHa})
	}
	ringRows := make([][]any, 0, len(table.ByRing))
	for i, row := range table.ByRing {
		ringRows = append(ringRows, []any{row.RingID, i, row.AreaHa})
	}

	_, err = db.StageAndSwapAll(ctx, s.pool, []db.SwapTable{
		{
			Config: db.SwapConfig{
				Schema:  Schema,
				Table:   "by_ring_year",
				Columns: []string{"ring_id", "ring_order", "year", "area_ha"},
				DDL: `(ring_id TEXT NOT NULL, ring_order INTEGER NOT NULL,
					year INTEGER NOT NULL, area_ha DOUBLE PRECISION NOT NULL,
					PRIMARY KEY (ring_id, year))`,
			},
			Rows: yearRows,
		},
		{
			Config: db.SwapConfig{
				Schema:  Schema,
				Table:   "by_ring",
				Columns: []string{"ring_id", "ring_order", "area_ha"},
				DDL: `(ring_id TEXT PRIMARY KEY, ring_order INTEGER NOT NULL,
					area_ha DOUBLE PRECISION NOT NULL)`,
			},
			Rows: ringRows,
		},
		{
			Config: db.SwapConfig{
				Schema:  Schema,
				Table:   "summary_meta",
				Columns: []string{"id", "meta"},
				DDL:     `(id INTEGER PRIMARY KEY CHECK (id = 1), meta TEXT NOT NULL)`,
			},
			Rows: [][]any{{1, string(metaJSON)}},
		},
	})
	if err != nil {
		return eris.Wrapf(ErrPersistenceFailure, "postgres: persist summary: %v", err)
	}

	// The swap replaces the indexed table, so restore the year index.
	if _, err := s.pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_by_ring_year_year ON roadrings.by_ring_year(year)`,
	); err != nil {
		return eris.Wrapf(ErrPersistenceFailure, "postgres: restore index: %v", err)
	}
	return nil
}

func (s *PostgresStore) ByRingYear(ctx context.Context, yearMin, yearMax int) ([]aggregate.RowRingYear, error) {
	query := `SELECT ring_id, year, area_ha FROM roadrings.by_ring_year WHERE 1=1`
	var args []any
	if yearMin != 0 {
		args = append(args, yearMin)
		query += fmt.Sprintf(` AND year >= $%d`, len(args))
	}
	if yearMax != 0 {
		args = append(args, yearMax)
		query += fmt.Sprintf(` AND year <= $%d`, len(args))
	}
	query += ` ORDER BY year, ring_order`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: by ring year")
	}
	defer rows.Close()

	var out []aggregate.RowRingYear
	for rows.Next() {
		var r aggregate.RowRingYear
		if err := rows.Scan(&r.RingID, &r.Year, &r.AreaHa); err != nil {
			return nil, eris.Wrap(err, "postgres: scan by_ring_year")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: by ring year iterate")
}

func (s *PostgresStore) ByRing(ctx context.Context) ([]aggregate.RowRing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ring_id, area_ha FROM roadrings.by_ring ORDER BY ring_order`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: by ring")
	}
	defer rows.Close()

	var out []aggregate.RowRing
	for rows.Next() {
		var r aggregate.RowRing
		if err := rows.Scan(&r.RingID, &r.AreaHa); err != nil {
			return nil, eris.Wrap(err, "postgres: scan by_ring")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: by ring iterate")
}

func (s *PostgresStore) Meta(ctx context.Context) (*aggregate.Meta, error) {
	row := s.pool.QueryRow(ctx, `SELECT meta FROM roadrings.summary_meta WHERE id = 1`)

	var raw string
	err := row.Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get meta")
	}
	var m aggregate.Meta
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, eris.Wrap(err, "postgres: decode meta")
	}
	return &m, nil
}
