package sirt

import (
	"fmt"
	"math"

	"sirt3d/pkg/logger"
	"sirt3d/pkg/projector"
)

// RadiusUnits selects how Params.Radius is interpreted.
type RadiusUnits int

const (
	// Voxels interprets the radius as a distance in voxels.
	Voxels RadiusUnits = iota

	// Fraction interprets the radius as a fraction of the inscribed radius N/2-1.
	Fraction
)

// StoppingRule selects how consecutive global residuals are compared.
type StoppingRule int

const (
	// RelativeChange stops when |prev-cur|/prev < tol.
	RelativeChange StoppingRule = iota

	// AbsoluteChange stops when |prev-cur| < tol.
	AbsoluteChange
)

// ParseRadiusUnits resolves "voxels" (or "") and "fraction".
func ParseRadiusUnits(s string) (RadiusUnits, error) {
	switch s {
	case "", "voxels":
		return Voxels, nil
	case "fraction":
		return Fraction, nil
	default:
		return 0, fmt.Errorf("%w: radius units %q", ErrInvalidParameter, s)
	}
}

// ParseStoppingRule resolves "relative" (or "") and "absolute".
func ParseStoppingRule(s string) (StoppingRule, error) {
	switch s {
	case "", "relative":
		return RelativeChange, nil
	case "absolute":
		return AbsoluteChange, nil
	default:
		return 0, fmt.Errorf("%w: stopping rule %q", ErrInvalidParameter, s)
	}
}

// DefaultRadius is the radius sentinel selecting the inscribed sphere.
const DefaultRadius = -1

// Params configures a reconstruction. Every process must pass identical values.
type Params struct {
	// Size is the volume edge. Zero derives it from the local images.
	Size int

	// Radius of the reconstruction sphere; DefaultRadius for the inscribed sphere.
	Radius      float64
	RadiusUnits RadiusUnits

	// Lambda is the damping parameter.
	Lambda float64

	MaxIterations int
	Tolerance     float64
	Stopping      StoppingRule

	// Symmetry is the point-group label, e.g. "c1".
	Symmetry string

	// Kernel is the projection kernel; nil selects projector.Bilinear.
	Kernel projector.Kernel

	// Workers bounds the goroutines used for forward projection. Zero means one.
	Workers int

	// MaxVoxels caps Size^3. Zero disables the cap.
	MaxVoxels int

	Logger logger.Logger
}

// DefaultParams returns the defaults of ReconstructSIRT:
// radius -1, lam 1e-4, maxit 100, symmetry c1, tol 1e-3.
func DefaultParams() Params {
	return Params{
		Radius:        DefaultRadius,
		Lambda:        1.0e-4,
		MaxIterations: 100,
		Tolerance:     1.0e-3,
		Symmetry:      "c1",
		Kernel:        projector.Bilinear{},
		Workers:       1,
	}
}

func (p Params) validate() error {
	if !(p.Lambda > 0) || math.IsInf(p.Lambda, 0) {
		return fmt.Errorf("%w: lam must be positive, got %g", ErrInvalidParameter, p.Lambda)
	}
	if !(p.Tolerance > 0) || math.IsInf(p.Tolerance, 0) {
		return fmt.Errorf("%w: tol must be positive, got %g", ErrInvalidParameter, p.Tolerance)
	}
	if p.MaxIterations < 1 {
		return fmt.Errorf("%w: maxit must be at least 1, got %d", ErrInvalidParameter, p.MaxIterations)
	}
	if p.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidParameter, p.Workers)
	}
	if p.Size < 0 {
		return fmt.Errorf("%w: size must not be negative, got %d", ErrInvalidParameter, p.Size)
	}
	if p.Radius != DefaultRadius && !(p.Radius > 0) {
		return fmt.Errorf("%w: radius must be positive or %d, got %g", ErrInvalidParameter, DefaultRadius, p.Radius)
	}
	return nil
}

// radiusVoxels resolves the mask radius in voxels for an n^3 volume.
func (p Params) radiusVoxels(n int) (float64, error) {
	limit := projector.DefaultRadius(n)
	if p.Radius == DefaultRadius {
		return limit, nil
	}

	r := p.Radius
	switch p.RadiusUnits {
	case Voxels:
	case Fraction:
		if r > 1 {
			return 0, fmt.Errorf("%w: radius fraction %g exceeds 1", ErrInvalidParameter, r)
		}
		r *= limit
	default:
		return 0, fmt.Errorf("%w: radius units %d", ErrInvalidParameter, p.RadiusUnits)
	}

	if r > limit {
		return 0, fmt.Errorf("%w: radius %g exceeds %g for a volume of edge %d", ErrInvalidParameter, r, limit, n)
	}
	return r, nil
}
