package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roadrings/internal/aggregate"
)

func testTable() *aggregate.Table {
	return &aggregate.Table{
		ByRingYear: []aggregate.RowRingYear{
			{RingID: "0-5km", Year: 2019, AreaHa: 24047.25},
			{RingID: "5-10km", Year: 2019, AreaHa: 40.5},
			{RingID: ">10km", Year: 2019, AreaHa: 0},
			{RingID: "0-5km", Year: 2020, AreaHa: 95},
			{RingID: "5-10km", Year: 2020, AreaHa: 12.75},
			{RingID: ">10km", Year: 2020, AreaHa: 3.5},
		},
		ByRing: []aggregate.RowRing{
			{RingID: "0-5km", AreaHa: 24142.25},
			{RingID: "5-10km", AreaHa: 53.25},
			{RingID: ">10km", AreaHa: 3.5},
		},
		Meta: aggregate.Meta{
			RunID:        "run-export-test",
			GeneratedAt:  time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
			AOICode:      "14",
			SRID:         5880,
			ThresholdsKm: []float64{5, 10},
			AOIAreaHa:    2.2e7,
			ToleranceM2:  220,
			Years:        []int{2019, 2020},
			Features:     940,
			Skipped:      2,
			Fragments:    1310,
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "csv")
	paths, err := WriteCSV(dir, testTable())
	require.NoError(t, err)
	require.Len(t, paths, 2)

	byYear := readCSV(t, filepath.Join(dir, "by_ring_year.csv"))
	require.Len(t, byYear, 7)
	assert.Equal(t, []string{"ring_id", "year", "area_ha"}, byYear[0])
	assert.Equal(t, []string{"0-5km", "2019", "24047.25"}, byYear[1])
	assert.Equal(t, []string{">10km", "2019", "0"}, byYear[3])
	assert.Equal(t, []string{">10km", "2020", "3.5"}, byYear[6])

	byRing := readCSV(t, filepath.Join(dir, "by_ring.csv"))
	require.Len(t, byRing, 4)
	assert.Equal(t, []string{"ring_id", "area_ha"}, byRing[0])
	assert.Equal(t, []string{"0-5km", "24142.25"}, byRing[1])
}

func TestWriteCSV_EmptyTable(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteCSV(dir, &aggregate.Table{})
	require.NoError(t, err)
	require.Len(t, paths, 2)

	byYear := readCSV(t, paths[0])
	require.Len(t, byYear, 1)
	assert.Equal(t, []string{"ring_id", "year", "area_ha"}, byYear[0])
}
