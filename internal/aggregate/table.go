package aggregate

import (
	"sort"
	"time"

	"github.com/sells-group/roadrings/internal/geometry"
)

// RowRingYear is one cell of the by-ring-and-year table.
type RowRingYear struct {
	RingID string
	Year   int
	AreaHa float64
}

// RowRing is one ring's total across the year domain.
type RowRing struct {
	RingID string
	AreaHa float64
}

// Meta describes how a table was produced.
type Meta struct {
	RunID        string
	GeneratedAt  time.Time
	AOICode      string
	SRID         int
	ThresholdsKm []float64
	AOIAreaHa    float64
	ToleranceM2  float64
	Years        []int
	Features     int
	Skipped      int
	Fragments    int
	// UnattributedHa is area carried by fragments without a year; it is
	// reported here and excluded from the rows.
	UnattributedHa float64
}

// Table is the complete aggregation output: the dense by-ring-and-year
// grid, the per-ring totals, and run metadata.
type Table struct {
	ByRingYear []RowRingYear
	ByRing     []RowRing
	Meta       Meta
}

// BuildTable renders an accumulator as a dense table over the full ring
// vocabulary and year domain. Every combination appears even when zero.
// Rows are ordered year ascending, then ring vocabulary order; the per-ring
// totals are the row sums, so marginals always agree.
func BuildTable(acc *Accumulator, ringIDs []string, years []int, meta Meta) *Table {
	domain := yearDomain(acc, years)

	t := &Table{Meta: meta}
	t.Meta.Years = domain
	t.Meta.Fragments = acc.Fragments()
	t.Meta.UnattributedHa = acc.UnattributedArea() / geometry.SquareMetersPerHectare

	totals := make([]float64, len(ringIDs))
	for _, y := range domain {
		for ri, id := range ringIDs {
			ha := acc.Sum(id, y) / geometry.SquareMetersPerHectare
			t.ByRingYear = append(t.ByRingYear, RowRingYear{RingID: id, Year: y, AreaHa: ha})
			totals[ri] += ha
		}
	}
	for ri, id := range ringIDs {
		t.ByRing = append(t.ByRing, RowRing{RingID: id, AreaHa: totals[ri]})
	}
	return t
}

// yearDomain merges the caller-supplied years with the observed ones.
func yearDomain(acc *Accumulator, years []int) []int {
	seen := make(map[int]struct{})
	for _, y := range years {
		if y != 0 {
			seen[y] = struct{}{}
		}
	}
	for _, y := range acc.Years() {
		seen[y] = struct{}{}
	}
	domain := make([]int, 0, len(seen))
	for y := range seen {
		domain = append(domain, y)
	}
	sort.Ints(domain)
	return domain
}
