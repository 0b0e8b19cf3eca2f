package models

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch reports arrays or images whose dimensions disagree.
var ErrShapeMismatch = errors.New("shape mismatch")

// AngleShiftStride is the number of values per image in the flat
// angle/shift layout: phi, theta, psi, sx, sy.
const AngleShiftStride = 5

// ProjectionImage is a 2D grid of real samples stored row-major
// (index = y*Width + x).
type ProjectionImage struct {
	Data []float64

	Width  int
	Height int
}

// NewProjectionImage allocates a zeroed image.
func NewProjectionImage(width, height int) *ProjectionImage {
	return &ProjectionImage{
		Data:   make([]float64, width*height),
		Width:  width,
		Height: height,
	}
}

// At returns the pixel at (x, y).
func (p *ProjectionImage) At(x, y int) float64 {
	return p.Data[y*p.Width+x]
}

// Set stores a pixel at (x, y).
func (p *ProjectionImage) Set(x, y int, value float64) {
	p.Data[y*p.Width+x] = value
}

// SameShape reports whether both images have identical dimensions.
func (p *ProjectionImage) SameShape(o *ProjectionImage) bool {
	return p.Width == o.Width && p.Height == o.Height && len(p.Data) == len(o.Data)
}

// Orientation holds ZYZ Euler angles in degrees.
type Orientation struct {
	Phi, Theta, Psi float64
}

// Shift is an in-plane translation in pixels.
type Shift struct {
	X, Y float64
}

// Pose pairs the orientation and shift a projection image was taken at.
type Pose struct {
	Orientation
	Shift
}

// PosesFromAngleShift decodes the flat angle/shift layout,
// five values per image: phi, theta, psi, sx, sy.
func PosesFromAngleShift(angleShift []float64) ([]Pose, error) {
	if len(angleShift)%AngleShiftStride != 0 {
		return nil, fmt.Errorf("%w: angle/shift array length %d is not a multiple of %d",
			ErrShapeMismatch, len(angleShift), AngleShiftStride)
	}

	poses := make([]Pose, len(angleShift)/AngleShiftStride)
	for i := range poses {
		v := angleShift[i*AngleShiftStride : (i+1)*AngleShiftStride]
		poses[i] = Pose{
			Orientation: Orientation{Phi: v[0], Theta: v[1], Psi: v[2]},
			Shift:       Shift{X: v[3], Y: v[4]},
		}
	}
	return poses, nil
}

// AngleShift encodes poses into the flat five-values-per-image layout.
func AngleShift(poses []Pose) []float64 {
	out := make([]float64, 0, len(poses)*AngleShiftStride)
	for _, p := range poses {
		out = append(out, p.Phi, p.Theta, p.Psi, p.Shift.X, p.Shift.Y)
	}
	return out
}
