package rings

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePartition() *Partition {
	return &Partition{
		SRID:       5880,
		Thresholds: []float64{5, 10},
		AOIArea:    2.5e10,
		Epsilon:    25,
		Rings: []Ring{
			{ID: "0-5km", MinKm: 0, MaxKm: 5, Area: 1e10},
			{ID: "5-10km", MinKm: 5, MaxKm: 10, Area: 1e10},
			{ID: ">10km", MinKm: 10, MaxKm: math.Inf(1), Area: 5e9},
		},
	}
}

func TestPartition_Manifest(t *testing.T) {
	m := samplePartition().Manifest("RR", 8)

	_, err := uuid.Parse(m.RunID)
	require.NoError(t, err)
	assert.Equal(t, "RR", m.AOICode)
	assert.Equal(t, 5880, m.SRID)
	assert.Equal(t, []float64{5, 10}, m.ThresholdsKm)
	assert.Equal(t, 8, m.QuadSegments)
	assert.InDelta(t, 2.5e6, m.AOIAreaHa, 1e-6)
	require.Len(t, m.Rings, 3)
	assert.InDelta(t, 1e6, m.Rings[0].AreaHa, 1e-6)
	assert.True(t, math.IsInf(m.Rings[2].MaxKm, 1))
	assert.WithinDuration(t, time.Now().UTC(), m.BuiltAt, time.Minute)
}

func TestManifest_FileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "buffers", "manifest.yaml")

	m := samplePartition().Manifest("RR", 8)
	require.NoError(t, WriteManifest(path, m))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	got, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m.RunID, got.RunID)
	assert.Equal(t, m.ThresholdsKm, got.ThresholdsKm)
	assert.Equal(t, m.AOICode, got.AOICode)
	assert.InDelta(t, m.AOIAreaM2, got.AOIAreaM2, 1e-6)
	require.Len(t, got.Rings, 3)
	assert.Equal(t, "0-5km", got.Rings[0].ID)
	assert.True(t, math.IsInf(got.Rings[2].MaxKm, 1))
	assert.WithinDuration(t, m.BuiltAt, got.BuiltAt, time.Second)
}

func TestReadManifest_Missing(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read manifest")
}
