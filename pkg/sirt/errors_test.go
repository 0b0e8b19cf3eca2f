package sirt

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"sirt3d/pkg/cart"
	"sirt3d/pkg/symmetry"
)

func TestStatusCode(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want int
	}{
		{err: nil, want: StatusOK},
		{err: fmt.Errorf("parse: %w", symmetry.ErrInvalidLabel), want: StatusInvalidSymmetry},
		{err: fmt.Errorf("%w: 3 images, 2 orientations", ErrShapeMismatch), want: StatusShapeMismatch},
		{err: ErrInvalidGrid, want: StatusInvalidGrid},
		{err: fmt.Errorf("grid: %w", cart.ErrInvalidShape), want: StatusInvalidGrid},
		{err: ErrAllocationFailure, want: StatusAllocationFailure},
		{err: commFailure("row reduce", cart.ErrAborted), want: StatusCommunicationFailure},
		{err: cart.ErrAborted, want: StatusCommunicationFailure},
		{err: fmt.Errorf("%w: lam", ErrInvalidParameter), want: StatusInvalidParameter},
		{err: errors.New("boom"), want: StatusInternal},
	} {
		require.Equal(t, tc.want, StatusCode(tc.err), "%v", tc.err)
	}
}

func TestAllocate(t *testing.T) {
	buf, err := allocate(8)
	require.NoError(t, err)
	require.Len(t, buf, 8)

	_, err = allocate(-1)
	require.ErrorIs(t, err, ErrAllocationFailure)
}
