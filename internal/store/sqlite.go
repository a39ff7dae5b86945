package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/roadrings/internal/aggregate"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. For plain file paths the parent directory is created as needed.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn != "" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, eris.Wrapf(err, "sqlite: create directory for %s", dsn)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS by_ring_year (
	ring_id    TEXT NOT NULL,
	ring_order INTEGER NOT NULL,
	year       INTEGER NOT NULL,
	area_ha    REAL NOT NULL,
	PRIMARY KEY (ring_id, year)
);

CREATE TABLE IF NOT EXISTS by_ring (
	ring_id    TEXT PRIMARY KEY,
	ring_order INTEGER NOT NULL,
	area_ha    REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS summary_meta (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	meta TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_by_ring_year_year ON by_ring_year(year);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Persist loads the summary into staging tables and swaps them over the
// live ones in a single transaction. A failure at any point rolls back and
// leaves the previous summary untouched.
func (s *SQLiteStore) Persist(ctx context.Context, table *aggregate.Table) error {
	metaJSON, err := json.Marshal(table.Meta)
	if err != nil {
		return eris.Wrapf(ErrPersistenceFailure, "sqlite: encode meta: %v", err)
	}
	order := ringOrder(table)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(ErrPersistenceFailure, "sqlite: begin: %v", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, q := range []string{
		`DROP TABLE IF EXISTS by_ring_year_staging`,
		`CREATE TABLE by_ring_year_staging (
			ring_id    TEXT NOT NULL,
			ring_order INTEGER NOT NULL,
			year       INTEGER NOT NULL,
			area_ha    REAL NOT NULL,
			PRIMARY KEY (ring_id, year)
		)`,
		`DROP TABLE IF EXISTS by_ring_staging`,
		`CREATE TABLE by_ring_staging (
			ring_id    TEXT PRIMARY KEY,
			ring_order INTEGER NOT NULL,
			area_ha    REAL NOT NULL
		)`,
		`DROP TABLE IF EXISTS summary_meta_staging`,
		`CREATE TABLE summary_meta_staging (
			id   INTEGER PRIMARY KEY CHECK (id = 1),
			meta TEXT NOT NULL
		)`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return eris.Wrapf(ErrPersistenceFailure, "sqlite: stage tables: %v", err)
		}
	}

	for _, row := range table.ByRingYear {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO by_ring_year_staging (ring_id, ring_order, year, area_ha) VALUES (?, ?, ?, ?)`,
			row.RingID, order[row.RingID], row.Year, row.AreaHa,
		); err != nil {
			return eris.Wrapf(ErrPersistenceFailure, "sqlite: load by_ring_year: %v", err)
		}
	}
	for i, row := range table.ByRing {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO by_ring_staging (ring_id, ring_order, area_ha) VALUES (?, ?, ?)`,
			row.RingID, i, row.AreaHa,
		); err != nil {
			return eris.Wrapf(ErrPersistenceFailure, "sqlite: load by_ring: %v", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO summary_meta_staging (id, meta) VALUES (1, ?)`, string(metaJSON),
	); err != nil {
		return eris.Wrapf(ErrPersistenceFailure, "sqlite: load summary_meta: %v", err)
	}

	for _, q := range []string{
		`DROP TABLE IF EXISTS by_ring_year`,
		`ALTER TABLE by_ring_year_staging RENAME TO by_ring_year`,
		`DROP TABLE IF EXISTS by_ring`,
		`ALTER TABLE by_ring_staging RENAME TO by_ring`,
		`DROP TABLE IF EXISTS summary_meta`,
		`ALTER TABLE summary_meta_staging RENAME TO summary_meta`,
		`CREATE INDEX IF NOT EXISTS idx_by_ring_year_year ON by_ring_year(year)`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return eris.Wrapf(ErrPersistenceFailure, "sqlite: swap tables: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(ErrPersistenceFailure, "sqlite: commit: %v", err)
	}
	return nil
}

func (s *SQLiteStore) ByRingYear(ctx context.Context, yearMin, yearMax int) ([]aggregate.RowRingYear, error) {
	query := `SELECT ring_id, year, area_ha FROM by_ring_year WHERE 1=1`
	var args []any
	if yearMin != 0 {
		query += ` AND year >= ?`
		args = append(args, yearMin)
	}
	if yearMax != 0 {
		query += ` AND year <= ?`
		args = append(args, yearMax)
	}
	query += ` ORDER BY year, ring_order`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: by ring year")
	}
	defer rows.Close()

	var out []aggregate.RowRingYear
	for rows.Next() {
		var r aggregate.RowRingYear
		if err := rows.Scan(&r.RingID, &r.Year, &r.AreaHa); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan by_ring_year")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: by ring year iterate")
}

func (s *SQLiteStore) ByRing(ctx context.Context) ([]aggregate.RowRing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ring_id, area_ha FROM by_ring ORDER BY ring_order`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: by ring")
	}
	defer rows.Close()

	var out []aggregate.RowRing
	for rows.Next() {
		var r aggregate.RowRing
		if err := rows.Scan(&r.RingID, &r.AreaHa); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan by_ring")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: by ring iterate")
}

func (s *SQLiteStore) Meta(ctx context.Context) (*aggregate.Meta, error) {
	row := s.db.QueryRowContext(ctx, `SELECT meta FROM summary_meta WHERE id = 1`)

	var raw string
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get meta")
	}
	var m aggregate.Meta
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode meta")
	}
	return &m, nil
}
