package sirt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sirt3d/internal/models"
	"sirt3d/pkg/projector"
)

func TestAccumulatorUpdate(t *testing.T) {
	const n = 4
	mask := projector.NewMask(n, 1)
	slab := models.NewSlab(n, 1, 3)
	for i := range slab.Data {
		slab.Data[i] = 3
	}
	a := NewAccumulator(slab, mask, 0.5)

	// centre (2, 2, 2) is inside, (0, 0, 1) is outside
	inside := (2-slab.ZStart)*n*n + 2*n + 2
	outside := 0
	require.Equal(t, 3.0, slab.Data[inside])
	require.Zero(t, slab.Data[outside])

	acc := make([]float64, len(slab.Data))
	weight := make([]float64, len(slab.Data))
	for i := range acc {
		acc[i] = 2
		weight[i] = 4
	}
	require.NoError(t, a.Update(acc, weight))
	require.Equal(t, 3.25, slab.Data[inside])
	require.Zero(t, slab.Data[outside])

	// no weight leaves the voxel unchanged
	weight[inside] = 0
	require.NoError(t, a.Update(acc, weight))
	require.Equal(t, 3.25, slab.Data[inside])

	weight[inside] = weightEpsilon / 2
	require.NoError(t, a.Update(acc, weight))
	require.Equal(t, 3.25, slab.Data[inside])
}

func TestAccumulatorRejectsShapeMismatch(t *testing.T) {
	slab := models.NewSlab(4, 0, 2)
	a := NewAccumulator(slab, projector.NewMask(4, 1), 1)
	err := a.Update(make([]float64, 3), make([]float64, len(slab.Data)))
	require.ErrorIs(t, err, ErrShapeMismatch)
}
