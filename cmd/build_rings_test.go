//go:build !integration

package main

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/roadrings/internal/rings"
)

func TestFormatRings(t *testing.T) {
	part := &rings.Partition{
		AOIArea: 4e8,
		Rings: []rings.Ring{
			{ID: "0-5km", MinKm: 0, MaxKm: 5, Area: 1e8},
			{ID: "5-10km", MinKm: 5, MaxKm: 10, Area: 1e8},
			{ID: ">10km", MinKm: 10, MaxKm: math.Inf(1), Area: 2e8},
		},
	}

	var buf bytes.Buffer
	formatRings(&buf, part)

	output := buf.String()
	assert.Contains(t, output, "RING")
	assert.Contains(t, output, "AREA_HA")
	assert.Contains(t, output, "0-5km")
	assert.Contains(t, output, "5-10km")
	assert.Contains(t, output, ">10km")
	// 1e8 square meters is 10000 hectares, a quarter of the AOI.
	assert.Contains(t, output, "10000.00")
	assert.Contains(t, output, "25.0%")
	assert.Contains(t, output, "50.0%")
}

func TestFormatRings_UnboundedOuterRing(t *testing.T) {
	part := &rings.Partition{
		AOIArea: 1e8,
		Rings: []rings.Ring{
			{ID: ">20km", MinKm: 20, MaxKm: math.Inf(1), Area: 1e8},
		},
	}

	var buf bytes.Buffer
	formatRings(&buf, part)

	lines := bytes.Split(buf.Bytes(), []byte("\n"))
	assert.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, string(lines[2]), ">20km")
	assert.Contains(t, string(lines[2]), "-")
	assert.Contains(t, string(lines[2]), "100.0%")
}
