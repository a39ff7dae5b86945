// Package store persists aggregated summaries and serves them back to the
// exporter, the status command and the HTTP API. Both backends replace the
// summary tables by staging and swapping, so readers always see either the
// previous complete summary or the new one.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roadrings/internal/aggregate"
	"github.com/sells-group/roadrings/internal/config"
)

// ErrPersistenceFailure marks summary writes that did not take effect. The
// previously persisted summary, if any, is still intact when this is
// returned.
var ErrPersistenceFailure = eris.New("persistence failure")

// Store is the persistence interface for aggregation results.
type Store interface {
	// Persist atomically replaces the stored summary with the table.
	Persist(ctx context.Context, table *aggregate.Table) error
	// ByRingYear returns rows ordered by year then ring, optionally
	// bounded by min and max year (zero means unbounded).
	ByRingYear(ctx context.Context, yearMin, yearMax int) ([]aggregate.RowRingYear, error)
	// ByRing returns per-ring totals in ring order.
	ByRing(ctx context.Context) ([]aggregate.RowRing, error)
	// Meta returns the stored run metadata, or nil when nothing has been
	// persisted yet.
	Meta(ctx context.Context) (*aggregate.Meta, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open builds the configured store backend and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var st Store
	switch cfg.Driver {
	case "", "sqlite":
		s, err := NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		st = s
	case "postgres":
		s, err := NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st = s
	default:
		return nil, eris.Wrapf(config.ErrInvalidConfiguration, "store: unknown driver %q", cfg.Driver)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// ringOrder maps each ring to its position in the vocabulary, taken from the
// per-ring table's row order.
func ringOrder(table *aggregate.Table) map[string]int {
	order := make(map[string]int, len(table.ByRing))
	for i, row := range table.ByRing {
		order[row.RingID] = i
	}
	return order
}
