package geometry

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestValidate_AcceptsSimplePolygon(t *testing.T) {
	assert.NoError(t, Validate(square(0, 0, 10)))
	assert.NoError(t, Validate(holedSquare()))
}

func TestValidate_AcceptsMultiPolygon(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(square(0, 0, 1)))
	require.NoError(t, mp.Push(square(5, 5, 1)))
	assert.NoError(t, Validate(mp))
}

func TestValidate_RejectsEmpty(t *testing.T) {
	err := Validate(geom.NewMultiPolygon(geom.XY))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidGeometry))

	err = Validate(nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidGeometry))
}

func TestValidate_RejectsUnclosedRing(t *testing.T) {
	open := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 4, 0, 4, 4, 0, 4}, []int{8})
	err := Validate(open)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidGeometry))
	assert.Contains(t, err.Error(), "not closed")
}

func TestValidate_RejectsUndersizedRing(t *testing.T) {
	tri := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 0, 0}, []int{6})
	err := Validate(tri)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidGeometry))
}

func TestValidate_RejectsSelfCrossing(t *testing.T) {
	// Bowtie: edges cross at the center.
	bowtie := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 4, 4, 4, 0, 0, 4, 0, 0}, []int{10})
	err := Validate(bowtie)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidGeometry))
	assert.Contains(t, err.Error(), "cross")
}

func TestValidate_RejectsNaN(t *testing.T) {
	bad := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 4, 0, 4, math.NaN(), 0, 4, 0, 0}, []int{10})
	err := Validate(bad)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidGeometry))
}

func TestValidate_RejectsNonPolygonal(t *testing.T) {
	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1})
	err := Validate(line)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidGeometry))
}

func TestValidate_AllowsSharedVertexTouch(t *testing.T) {
	// Two triangles of one multipolygon touching at a point.
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(geom.NewPolygonFlat(geom.XY, []float64{0, 0, 2, 0, 2, 2, 0, 0}, []int{8})))
	require.NoError(t, mp.Push(geom.NewPolygonFlat(geom.XY, []float64{2, 2, 4, 2, 4, 4, 2, 2}, []int{8})))
	assert.NoError(t, Validate(mp))
}
