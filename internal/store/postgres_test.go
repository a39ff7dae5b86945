package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func expectStage(mock pgxmock.PgxPoolIface, table string, cols []string, rows int64) {
	mock.ExpectExec(`DROP TABLE IF EXISTS "roadrings"\."` + table + `_staging"`).
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec(`CREATE TABLE "roadrings"\."` + table + `_staging"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"roadrings", table + "_staging"}, cols).
		WillReturnResult(rows)
}

func expectSwap(mock pgxmock.PgxPoolIface, table string) {
	mock.ExpectExec(`DROP TABLE IF EXISTS "roadrings"\."` + table + `"`).
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec(`ALTER TABLE "roadrings"\."` + table + `_staging" RENAME TO "` + table + `"`).
		WillReturnResult(pgxmock.NewResult("ALTER", 0))
}

func TestPostgresStore_Persist(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	tbl := sampleTable()

	expectStage(mock, "by_ring_year", []string{"ring_id", "ring_order", "year", "area_ha"}, 6)
	expectStage(mock, "by_ring", []string{"ring_id", "ring_order", "area_ha"}, 3)
	expectStage(mock, "summary_meta", []string{"id", "meta"}, 1)
	mock.ExpectBegin()
	expectSwap(mock, "by_ring_year")
	expectSwap(mock, "by_ring")
	expectSwap(mock, "summary_meta")
	mock.ExpectCommit()
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_by_ring_year_year`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Persist(context.Background(), tbl))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Persist_StagingFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DROP TABLE IF EXISTS "roadrings"\."by_ring_year_staging"`).
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec(`CREATE TABLE "roadrings"\."by_ring_year_staging"`).
		WillReturnError(eris.New("permission denied"))

	err := s.Persist(context.Background(), sampleTable())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrPersistenceFailure))
	assert.Contains(t, err.Error(), "persist summary")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ByRingYear_Bounds(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT ring_id, year, area_ha FROM roadrings\.by_ring_year WHERE 1=1 AND year >= \$1 AND year <= \$2 ORDER BY year, ring_order`).
		WithArgs(2019, 2020).
		WillReturnRows(pgxmock.NewRows([]string{"ring_id", "year", "area_ha"}).
			AddRow("0-5km", 2019, 120.5).
			AddRow("5-10km", 2019, 40.25).
			AddRow("0-5km", 2020, 95.0))

	rows, err := s.ByRingYear(context.Background(), 2019, 2020)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "0-5km", rows[0].RingID)
	assert.Equal(t, 2019, rows[0].Year)
	assert.InDelta(t, 120.5, rows[0].AreaHa, 1e-9)
	assert.Equal(t, 2020, rows[2].Year)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ByRingYear_Unbounded(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT ring_id, year, area_ha FROM roadrings\.by_ring_year WHERE 1=1 ORDER BY year, ring_order`).
		WillReturnRows(pgxmock.NewRows([]string{"ring_id", "year", "area_ha"}))

	rows, err := s.ByRingYear(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ByRing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT ring_id, area_ha FROM roadrings\.by_ring ORDER BY ring_order`).
		WillReturnRows(pgxmock.NewRows([]string{"ring_id", "area_ha"}).
			AddRow("0-5km", 215.5).
			AddRow(">5km", 53.0))

	rows, err := s.ByRing(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "0-5km", rows[0].RingID)
	assert.Equal(t, ">5km", rows[1].RingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Meta(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT meta FROM roadrings\.summary_meta WHERE id = 1`).
		WillReturnRows(pgxmock.NewRows([]string{"meta"}).
			AddRow(`{"RunID":"run-7","AOICode":"14","Features":940}`))

	meta, err := s.Meta(context.Background())
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "run-7", meta.RunID)
	assert.Equal(t, "14", meta.AOICode)
	assert.Equal(t, 940, meta.Features)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Meta_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT meta FROM roadrings\.summary_meta`).
		WillReturnError(pgx.ErrNoRows)

	meta, err := s.Meta(context.Background())
	require.NoError(t, err)
	assert.Nil(t, meta)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS roadrings`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
