package sirt

import (
	"fmt"

	"sirt3d/internal/models"
	"sirt3d/pkg/projector"
)

// weightEpsilon guards the normalisation against voxels that received
// (almost) no back-projection weight.
const weightEpsilon = 1e-12

// Accumulator owns a process's slab of the volume estimate and applies the
// damped update once per iteration.
type Accumulator struct {
	slab   *models.Slab
	mask   projector.Mask
	lambda float64
}

// NewAccumulator wraps slab, which is zeroed outside mask.
func NewAccumulator(slab *models.Slab, mask projector.Mask, lambda float64) *Accumulator {
	mask.Apply(slab.Data, slab.ZStart)
	return &Accumulator{slab: slab, mask: mask, lambda: lambda}
}

// Slab returns the current estimate of the owned slab.
func (a *Accumulator) Slab() *models.Slab {
	return a.slab
}

// Update applies v += lam*acc/w to every voxel with w > epsilon, leaves the
// others unchanged and forces voxels outside the mask to zero.
func (a *Accumulator) Update(acc, weight []float64) error {
	if len(acc) != len(a.slab.Data) || len(weight) != len(a.slab.Data) {
		return fmt.Errorf("%w: update with %d/%d samples for a slab of %d",
			ErrShapeMismatch, len(acc), len(weight), len(a.slab.Data))
	}

	for i, w := range weight {
		if w > weightEpsilon {
			a.slab.Data[i] += a.lambda * acc[i] / w
		}
	}
	a.mask.Apply(a.slab.Data, a.slab.ZStart)
	return nil
}
