package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/roadrings/internal/aggregate"
)

// WriteXLSX writes the summary as a three-sheet workbook: the
// by-ring-and-year grid, the per-ring totals, and the run metadata.
func WriteXLSX(path string, table *aggregate.Table) error {
	f := xlsx.NewFile()

	byYear, err := f.AddSheet("By Ring Year")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	header := byYear.AddRow()
	header.AddCell().SetString("ring_id")
	header.AddCell().SetString("year")
	header.AddCell().SetString("area_ha")
	for _, r := range table.ByRingYear {
		row := byYear.AddRow()
		row.AddCell().SetString(r.RingID)
		row.AddCell().SetInt(r.Year)
		row.AddCell().SetFloat(r.AreaHa)
	}

	byRing, err := f.AddSheet("By Ring")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	header = byRing.AddRow()
	header.AddCell().SetString("ring_id")
	header.AddCell().SetString("area_ha")
	for _, r := range table.ByRing {
		row := byRing.AddRow()
		row.AddCell().SetString(r.RingID)
		row.AddCell().SetFloat(r.AreaHa)
	}

	meta, err := f.AddSheet("Meta")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	for _, kv := range metaRows(table.Meta) {
		row := meta.AddRow()
		row.AddCell().SetString(kv[0])
		row.AddCell().SetString(kv[1])
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create output directory")
	}
	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}

	zap.L().Info("wrote xlsx export", zap.String("path", path))
	return nil
}

func metaRows(m aggregate.Meta) [][2]string {
	return [][2]string{
		{"run_id", m.RunID},
		{"generated_at", m.GeneratedAt.UTC().Format(time.RFC3339)},
		{"aoi_code", m.AOICode},
		{"srid", strconv.Itoa(m.SRID)},
		{"thresholds_km", joinFloats(m.ThresholdsKm)},
		{"aoi_area_ha", formatArea(m.AOIAreaHa)},
		{"tolerance_m2", formatArea(m.ToleranceM2)},
		{"years", joinInts(m.Years)},
		{"features", strconv.Itoa(m.Features)},
		{"skipped", strconv.Itoa(m.Skipped)},
		{"fragments", strconv.Itoa(m.Fragments)},
		{"unattributed_ha", formatArea(m.UnattributedHa)},
	}
}

func joinFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ", ")
}

func joinInts(vals []int) string {
	if len(vals) == 0 {
		return ""
	}
	// Contiguous year runs render as a range.
	contiguous := true
	for i := 1; i < len(vals); i++ {
		if vals[i] != vals[i-1]+1 {
			contiguous = false
			break
		}
	}
	if contiguous && len(vals) > 2 {
		return fmt.Sprintf("%d-%d", vals[0], vals[len(vals)-1])
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
