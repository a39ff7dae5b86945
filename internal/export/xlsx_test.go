package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export", "summary.xlsx")
	require.NoError(t, WriteXLSX(path, testTable()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	byYear, ok := f.Sheet["By Ring Year"]
	require.True(t, ok, "By Ring Year sheet missing")
	require.Len(t, byYear.Rows, 7)
	assert.Equal(t, "ring_id", byYear.Rows[0].Cells[0].String())
	assert.Equal(t, "0-5km", byYear.Rows[1].Cells[0].String())
	year, err := byYear.Rows[1].Cells[1].Int()
	require.NoError(t, err)
	assert.Equal(t, 2019, year)
	area, err := byYear.Rows[1].Cells[2].Float()
	require.NoError(t, err)
	assert.InDelta(t, 24047.25, area, 1e-9)

	byRing, ok := f.Sheet["By Ring"]
	require.True(t, ok, "By Ring sheet missing")
	require.Len(t, byRing.Rows, 4)

	meta, ok := f.Sheet["Meta"]
	require.True(t, ok, "Meta sheet missing")
	kv := make(map[string]string)
	for _, row := range meta.Rows {
		if len(row.Cells) >= 2 {
			kv[row.Cells[0].String()] = row.Cells[1].String()
		}
	}
	assert.Equal(t, "run-export-test", kv["run_id"])
	assert.Equal(t, "14", kv["aoi_code"])
	assert.Equal(t, "5880", kv["srid"])
	assert.Equal(t, "5, 10", kv["thresholds_km"])
	assert.Equal(t, "2019, 2020", kv["years"])
	assert.Equal(t, "940", kv["features"])
}

func TestJoinInts(t *testing.T) {
	assert.Equal(t, "", joinInts(nil))
	assert.Equal(t, "2019", joinInts([]int{2019}))
	assert.Equal(t, "2019, 2020", joinInts([]int{2019, 2020}))
	assert.Equal(t, "2019-2022", joinInts([]int{2019, 2020, 2021, 2022}))
	assert.Equal(t, "2019, 2021, 2023", joinInts([]int{2019, 2021, 2023}))
}

func TestJoinFloats(t *testing.T) {
	assert.Equal(t, "5, 10, 20", joinFloats([]float64{5, 10, 20}))
	assert.Equal(t, "2.5", joinFloats([]float64{2.5}))
}
