// Package aggregate folds overlay fragments into per-ring, per-year area
// sums. Sums are kept in square meters and converted to hectares only when
// tables are built. Merging per-chunk accumulators in chunk order makes a
// run deterministic for a fixed chunk size; any processing order agrees
// within area tolerance.
package aggregate

import (
	"sort"

	"github.com/sells-group/roadrings/internal/overlay"
)

// Key addresses one cell of the aggregation: a ring and an observation
// year.
type Key struct {
	RingID string
	Year   int
}

// Accumulator sums fragment areas per key. Not safe for concurrent use;
// run one per worker and merge.
type Accumulator struct {
	sums      map[Key]float64
	fragments int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{sums: make(map[Key]float64)}
}

// Add folds one fragment in.
func (a *Accumulator) Add(f overlay.Fragment) {
	a.sums[Key{RingID: f.RingID, Year: f.Year}] += f.Area
	a.fragments++
}

// AddAll folds fragments in slice order.
func (a *Accumulator) AddAll(frags []overlay.Fragment) {
	for _, f := range frags {
		a.Add(f)
	}
}

// Merge folds another accumulator into this one. Each key's total is a
// single addition, so merge results do not depend on key iteration order.
func (a *Accumulator) Merge(o *Accumulator) {
	for k, v := range o.sums {
		a.sums[k] += v
	}
	a.fragments += o.fragments
}

// Sum returns the accumulated area in square meters for one cell.
func (a *Accumulator) Sum(ringID string, year int) float64 {
	return a.sums[Key{RingID: ringID, Year: year}]
}

// Fragments returns how many fragments have been folded in.
func (a *Accumulator) Fragments() int {
	return a.fragments
}

// Years returns the sorted distinct years observed, excluding the zero year
// used by fragments without a usable year attribute.
func (a *Accumulator) Years() []int {
	seen := make(map[int]struct{})
	for k := range a.sums {
		if k.Year != 0 {
			seen[k.Year] = struct{}{}
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// UnattributedArea returns the total area in square meters carried by
// fragments without a year. Summed in ring order so the reported number is
// stable.
func (a *Accumulator) UnattributedArea() float64 {
	var ids []string
	for k := range a.sums {
		if k.Year == 0 {
			ids = append(ids, k.RingID)
		}
	}
	sort.Strings(ids)
	var sum float64
	for _, id := range ids {
		sum += a.sums[Key{RingID: id}]
	}
	return sum
}
