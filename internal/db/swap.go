package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// SwapConfig defines a staged replacement of a table's full contents.
type SwapConfig struct {
	Schema  string   // optional schema (e.g., "roadrings")
	Table   string   // target table name
	Columns []string // columns being loaded
	DDL     string   // column definition list for the staging table, e.g. "(ring_id TEXT NOT NULL, area_ha DOUBLE PRECISION NOT NULL)"
}

// SwapTable pairs a swap config with the rows to load.
type SwapTable struct {
	Config SwapConfig
	Rows   [][]any
}

// StageAndSwapAll replaces the contents of one or more tables without
// readers ever observing a partial load. For each table it
// 1. recreates <table>_staging with the given column definitions,
// 2. COPYs the rows into the staging table,
// then in a single transaction drops every target and renames its staging
// table over it, so readers move from the old generation of every table to
// the new generation at one point. If any step fails the previous tables
// are left intact.
func StageAndSwapAll(ctx context.Context, pool Pool, tables []SwapTable) ([]int64, error) {
	if len(tables) == 0 {
		return nil, eris.New("db: swap: no tables specified")
	}
	for _, t := range tables {
		if err := t.Config.validate(); err != nil {
			return nil, err
		}
	}

	counts := make([]int64, len(tables))
	for i, t := range tables {
		n, err := stageTable(ctx, pool, t.Config, t.Rows)
		if err != nil {
			return nil, err
		}
		counts[i] = n
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "db: swap: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, t := range tables {
		cfg := t.Config
		staging := cfg.Table + "_staging"
		if _, err := tx.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", qualify(cfg.Schema, cfg.Table))); err != nil {
			return nil, eris.Wrapf(err, "db: swap: drop %s", cfg.Table)
		}
		renameSQL := fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
			qualify(cfg.Schema, staging), pgx.Identifier{cfg.Table}.Sanitize())
		if _, err := tx.Exec(ctx, renameSQL); err != nil {
			return nil, eris.Wrapf(err, "db: swap: rename staging to %s", cfg.Table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "db: swap: commit tx")
	}

	return counts, nil
}

func (cfg SwapConfig) validate() error {
	if cfg.Table == "" {
		return eris.New("db: swap: no table specified")
	}
	if len(cfg.Columns) == 0 {
		return eris.New("db: swap: no columns specified")
	}
	if cfg.DDL == "" {
		return eris.New("db: swap: no staging DDL specified")
	}
	return nil
}

// stageTable recreates the staging table and loads rows into it.
func stageTable(ctx context.Context, pool Pool, cfg SwapConfig, rows [][]any) (int64, error) {
	staging := cfg.Table + "_staging"

	dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", qualify(cfg.Schema, staging))
	if _, err := pool.Exec(ctx, dropSQL); err != nil {
		return 0, eris.Wrapf(err, "db: swap: drop stale staging for %s", cfg.Table)
	}

	createSQL := fmt.Sprintf("CREATE TABLE %s %s", qualify(cfg.Schema, staging), cfg.DDL)
	if _, err := pool.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: swap: create staging for %s", cfg.Table)
	}

	var (
		n   int64
		err error
	)
	if cfg.Schema != "" {
		n, err = CopyFromSchema(ctx, pool, cfg.Schema, staging, cfg.Columns, rows)
	} else {
		n, err = CopyFrom(ctx, pool, staging, cfg.Columns, rows)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "db: swap: COPY into staging for %s", cfg.Table)
	}
	return n, nil
}

func identifier(schema, table string) pgx.Identifier {
	if schema != "" {
		return pgx.Identifier{schema, table}
	}
	return pgx.Identifier{table}
}

// qualify renders an optionally schema-qualified identifier.
func qualify(schema, table string) string {
	return identifier(schema, table).Sanitize()
}
