package sirt

import (
	"errors"
	"fmt"

	"sirt3d/internal/models"
	"sirt3d/pkg/cart"
	"sirt3d/pkg/symmetry"
)

var (
	// ErrInvalidSymmetryLabel reports a symmetry label naming no known point group.
	ErrInvalidSymmetryLabel = symmetry.ErrInvalidLabel

	// ErrShapeMismatch reports image/pose arrays of different lengths or
	// images whose dimensions disagree with the volume geometry.
	ErrShapeMismatch = models.ErrShapeMismatch

	// ErrInvalidParameter reports a non-positive lam or tol, maxit < 1, or a bad radius.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidGrid reports process-topology handles that do not form a
	// consistent grid, or a grid too large for the volume.
	ErrInvalidGrid = errors.New("invalid process grid")

	// ErrAllocationFailure reports a volume that cannot be allocated.
	ErrAllocationFailure = errors.New("allocation failure")

	// ErrCommunicationFailure reports a collective that did not complete.
	ErrCommunicationFailure = errors.New("communication failure")
)

// Status codes returned by ReconstructSIRT.
const (
	StatusOK                   = 0
	StatusInvalidSymmetry      = 1
	StatusShapeMismatch        = 2
	StatusInvalidGrid          = 3
	StatusAllocationFailure    = 4
	StatusCommunicationFailure = 5
	StatusInvalidParameter     = 6
	StatusInternal             = 7
)

// StatusCode maps an error returned by the driver onto its status code.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidSymmetryLabel):
		return StatusInvalidSymmetry
	case errors.Is(err, ErrShapeMismatch):
		return StatusShapeMismatch
	case errors.Is(err, ErrInvalidGrid), errors.Is(err, cart.ErrInvalidShape):
		return StatusInvalidGrid
	case errors.Is(err, ErrAllocationFailure):
		return StatusAllocationFailure
	case errors.Is(err, ErrCommunicationFailure), errors.Is(err, cart.ErrAborted):
		return StatusCommunicationFailure
	case errors.Is(err, ErrInvalidParameter):
		return StatusInvalidParameter
	default:
		return StatusInternal
	}
}

func commFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCommunicationFailure, op, err)
}

// allocate returns a zeroed buffer, turning an impossible allocation into
// ErrAllocationFailure.
func allocate(n int) (buf []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("%w: %d samples: %v", ErrAllocationFailure, n, r)
		}
	}()
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrAllocationFailure, n)
	}
	return make([]float64, n), nil
}
