// Package export renders the persisted summary table as CSV files, an
// XLSX workbook, and a console table.
package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roadrings/internal/aggregate"
)

// WriteCSV writes by_ring_year.csv and by_ring.csv into dir. Returns the
// written paths.
func WriteCSV(dir string, table *aggregate.Table) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "export: create output directory")
	}

	yearPath := filepath.Join(dir, "by_ring_year.csv")
	yearRows := make([][]string, 0, len(table.ByRingYear)+1)
	yearRows = append(yearRows, []string{"ring_id", "year", "area_ha"})
	for _, r := range table.ByRingYear {
		yearRows = append(yearRows, []string{
			r.RingID,
			strconv.Itoa(r.Year),
			formatArea(r.AreaHa),
		})
	}
	if err := writeCSVFile(yearPath, yearRows); err != nil {
		return nil, err
	}

	ringPath := filepath.Join(dir, "by_ring.csv")
	ringRows := make([][]string, 0, len(table.ByRing)+1)
	ringRows = append(ringRows, []string{"ring_id", "area_ha"})
	for _, r := range table.ByRing {
		ringRows = append(ringRows, []string{r.RingID, formatArea(r.AreaHa)})
	}
	if err := writeCSVFile(ringPath, ringRows); err != nil {
		return nil, err
	}

	zap.L().Info("wrote csv export",
		zap.String("dir", dir),
		zap.Int("by_ring_year_rows", len(table.ByRingYear)),
		zap.Int("by_ring_rows", len(table.ByRing)),
	)
	return []string{yearPath, ringPath}, nil
}

func writeCSVFile(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", filepath.Base(path))
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return eris.Wrapf(err, "export: write %s", filepath.Base(path))
	}
	return eris.Wrap(f.Close(), "export: close csv")
}

// formatArea renders hectares with the shortest round-tripping decimal
// form, so spreadsheet parsers see plain numbers.
func formatArea(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
