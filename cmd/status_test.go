//go:build !integration

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roadrings/internal/aggregate"
	"github.com/sells-group/roadrings/internal/config"
)

func TestFormatStatus(t *testing.T) {
	c := &config.Config{Paths: config.PathsConfig{DataDir: t.TempDir()}}
	require.NoError(t, os.MkdirAll(filepath.Dir(c.Paths.AOIPath()), 0o755))
	require.NoError(t, os.WriteFile(c.Paths.AOIPath(), []byte("{}"), 0o644))

	meta := &aggregate.Meta{
		RunID:        "run-9",
		GeneratedAt:  time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC),
		ThresholdsKm: []float64{5, 10},
		Years:        []int{2019, 2020, 2021},
		Features:     42,
		Fragments:    120,
		Skipped:      1,
	}

	var buf bytes.Buffer
	require.NoError(t, formatStatus(&buf, c, meta))

	output := buf.String()
	assert.Contains(t, output, "ARTIFACT")
	assert.Contains(t, output, "aoi")
	assert.Contains(t, output, "1 KB")
	assert.Contains(t, output, "missing")
	assert.Contains(t, output, "run-9")
	assert.Contains(t, output, "2026-02-14T09:00:00Z")
	assert.Contains(t, output, "42 features")
	assert.Contains(t, output, "years 2019-2021")
	assert.Contains(t, output, "summary rows: 9 by ring and year, 3 by ring")
}

func TestFormatStatus_NoRun(t *testing.T) {
	c := &config.Config{Paths: config.PathsConfig{DataDir: t.TempDir()}}

	var buf bytes.Buffer
	require.NoError(t, formatStatus(&buf, c, nil))

	output := buf.String()
	assert.Contains(t, output, "missing")
	assert.Contains(t, output, "No summary persisted yet")
}

func TestFormatYearSpan(t *testing.T) {
	assert.Equal(t, "none", formatYearSpan(nil))
	assert.Equal(t, "2020", formatYearSpan([]int{2020}))
	assert.Equal(t, "2019-2022", formatYearSpan([]int{2019, 2020, 2021, 2022}))
}
