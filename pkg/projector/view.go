// Package projector implements the forward and back-projection operators of
// the reconstruction. Both operators walk the voxels inside a spherical mask
// and share the taps a Kernel reports, so back-projection is the exact
// adjoint of forward projection.
package projector

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"sirt3d/internal/models"
)

// View is the projection geometry of one image: the rotation taking volume
// offsets to detector offsets, plus an in-plane shift.
type View struct {
	Orientation models.Orientation
	Shift       models.Shift

	// rows of the rotation matrix
	rx, ry, rz r3.Vec
}

// NewView builds the ZYZ rotation R = Rz(psi) Ry(theta) Rz(phi) for o.
func NewView(o models.Orientation, s models.Shift) View {
	var zy, r mat.Dense
	zy.Mul(rotZ(o.Psi), rotY(o.Theta))
	r.Mul(&zy, rotZ(o.Phi))

	row := func(i int) r3.Vec {
		return r3.Vec{X: r.At(i, 0), Y: r.At(i, 1), Z: r.At(i, 2)}
	}
	return View{
		Orientation: o,
		Shift:       s,
		rx:          row(0),
		ry:          row(1),
		rz:          row(2),
	}
}

// ViewOf is shorthand for NewView on a pose.
func ViewOf(p models.Pose) View {
	return NewView(p.Orientation, p.Shift)
}

// Rotate applies the view rotation to a volume offset.
func (v View) Rotate(d r3.Vec) r3.Vec {
	return r3.Vec{X: r3.Dot(v.rx, d), Y: r3.Dot(v.ry, d), Z: r3.Dot(v.rz, d)}
}

// Matrix returns the rotation as a 3x3 dense matrix.
func (v View) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		v.rx.X, v.rx.Y, v.rx.Z,
		v.ry.X, v.ry.Y, v.ry.Z,
		v.rz.X, v.rz.Y, v.rz.Z,
	})
}

// Detector returns the detector coordinates a volume offset d lands on,
// for a detector centred at c.
func (v View) Detector(d r3.Vec, c float64) (u, w float64) {
	return r3.Dot(v.rx, d) + c + v.Shift.X, r3.Dot(v.ry, d) + c + v.Shift.Y
}

func rotZ(deg float64) *mat.Dense {
	s, c := math.Sincos(deg * math.Pi / 180)
	return mat.NewDense(3, 3, []float64{
		c, s, 0,
		-s, c, 0,
		0, 0, 1,
	})
}

func rotY(deg float64) *mat.Dense {
	s, c := math.Sincos(deg * math.Pi / 180)
	return mat.NewDense(3, 3, []float64{
		c, 0, -s,
		0, 1, 0,
		s, 0, c,
	})
}
