package projector

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"sirt3d/internal/models"
)

// voxel is a masked voxel: its offset in the volume and its position
// relative to the volume centre.
type voxel struct {
	index  int
	offset r3.Vec
}

// Projector simulates N x N projections of an N^3 volume and smears
// residuals back into it. A Projector is safe for concurrent use.
type Projector struct {
	kernel Kernel
	mask   Mask
	voxels []voxel
}

// New creates a projector for volumes of edge n restricted to mask.
func New(n int, mask Mask, kernel Kernel) *Projector {
	if kernel == nil {
		kernel = Bilinear{}
	}

	c := mask.Center()
	p := &Projector{kernel: kernel, mask: mask}
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				if !mask.Inside(x, y, z) {
					continue
				}
				p.voxels = append(p.voxels, voxel{
					index:  z*n*n + y*n + x,
					offset: r3.Vec{X: float64(x) - c, Y: float64(y) - c, Z: float64(z) - c},
				})
			}
		}
	}
	return p
}

// Size returns the volume edge length.
func (p *Projector) Size() int {
	return p.mask.Size
}

// Mask returns the sphere the projector is restricted to.
func (p *Projector) Mask() Mask {
	return p.mask
}

// Kernel returns the interpolation kernel in use.
func (p *Projector) Kernel() Kernel {
	return p.kernel
}

// Project computes the simulated image of vol seen through view.
// Only voxels inside the mask contribute.
func (p *Projector) Project(vol *models.Volume, view View) (*models.ProjectionImage, error) {
	n := p.mask.Size
	if vol.Size != n || len(vol.Data) != n*n*n {
		return nil, fmt.Errorf("%w: volume edge %d, projector edge %d", models.ErrShapeMismatch, vol.Size, n)
	}

	out := models.NewProjectionImage(n, n)
	c := p.mask.Center()
	taps := make([]Tap, 0, 4)
	for _, vx := range p.voxels {
		value := vol.Data[vx.index]
		if value == 0 {
			continue
		}
		u, w := view.Detector(vx.offset, c)
		taps = p.kernel.Taps(taps[:0], u, w, n, n)
		for _, t := range taps {
			out.Data[t.Index] += t.Weight * value
		}
	}
	return out, nil
}

// BackProject adds the transpose of Project applied to residual into acc and
// the raw kernel weights into weight. Both are full N^3 arrays.
func (p *Projector) BackProject(residual *models.ProjectionImage, view View, acc, weight []float64) error {
	n := p.mask.Size
	if residual.Width != n || residual.Height != n {
		return fmt.Errorf("%w: image %dx%d, projector edge %d",
			models.ErrShapeMismatch, residual.Width, residual.Height, n)
	}
	if len(acc) != n*n*n || len(weight) != n*n*n {
		return fmt.Errorf("%w: accumulator length %d, weight length %d, want %d",
			models.ErrShapeMismatch, len(acc), len(weight), n*n*n)
	}

	c := p.mask.Center()
	taps := make([]Tap, 0, 4)
	for _, vx := range p.voxels {
		u, w := view.Detector(vx.offset, c)
		taps = p.kernel.Taps(taps[:0], u, w, n, n)
		for _, t := range taps {
			acc[vx.index] += t.Weight * residual.Data[t.Index]
			weight[vx.index] += t.Weight
		}
	}
	return nil
}

// Residual returns observed - simulated.
func Residual(observed, simulated *models.ProjectionImage) (*models.ProjectionImage, error) {
	if !observed.SameShape(simulated) {
		return nil, fmt.Errorf("%w: observed %dx%d, simulated %dx%d", models.ErrShapeMismatch,
			observed.Width, observed.Height, simulated.Width, simulated.Height)
	}

	out := models.NewProjectionImage(observed.Width, observed.Height)
	floats.SubTo(out.Data, observed.Data, simulated.Data)
	return out, nil
}

// SumSquares returns the sum of squared pixel values of img.
func SumSquares(img *models.ProjectionImage) float64 {
	return floats.Dot(img.Data, img.Data)
}
