package sirt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"sirt3d/pkg/projector"
)

func TestParseOptions(t *testing.T) {
	u, err := ParseRadiusUnits("")
	require.NoError(t, err)
	require.Equal(t, Voxels, u)
	u, err = ParseRadiusUnits("fraction")
	require.NoError(t, err)
	require.Equal(t, Fraction, u)
	_, err = ParseRadiusUnits("parsecs")
	require.ErrorIs(t, err, ErrInvalidParameter)

	r, err := ParseStoppingRule("absolute")
	require.NoError(t, err)
	require.Equal(t, AbsoluteChange, r)
	r, err = ParseStoppingRule("relative")
	require.NoError(t, err)
	require.Equal(t, RelativeChange, r)
	_, err = ParseStoppingRule("never")
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultParams().validate())

	for name, mutate := range map[string]func(p *Params){
		"zero lam":         func(p *Params) { p.Lambda = 0 },
		"negative lam":     func(p *Params) { p.Lambda = -1 },
		"NaN lam":          func(p *Params) { p.Lambda = math.NaN() },
		"zero tol":         func(p *Params) { p.Tolerance = 0 },
		"infinite tol":     func(p *Params) { p.Tolerance = math.Inf(1) },
		"zero maxit":       func(p *Params) { p.MaxIterations = 0 },
		"negative workers": func(p *Params) { p.Workers = -2 },
		"negative size":    func(p *Params) { p.Size = -8 },
		"zero radius":      func(p *Params) { p.Radius = 0 },
		"negative radius":  func(p *Params) { p.Radius = -3 },
	} {
		t.Run(name, func(t *testing.T) {
			p := DefaultParams()
			mutate(&p)
			require.ErrorIs(t, p.validate(), ErrInvalidParameter)
		})
	}
}

func TestRadiusVoxels(t *testing.T) {
	p := DefaultParams()
	r, err := p.radiusVoxels(16)
	require.NoError(t, err)
	require.Equal(t, 7.0, r)

	p.Radius = 5
	r, err = p.radiusVoxels(16)
	require.NoError(t, err)
	require.Equal(t, 5.0, r)

	p.Radius = 7.5
	_, err = p.radiusVoxels(16)
	require.ErrorIs(t, err, ErrInvalidParameter)

	p.RadiusUnits = Fraction
	p.Radius = 0.5
	r, err = p.radiusVoxels(16)
	require.NoError(t, err)
	require.Equal(t, 3.5, r)

	p.Radius = 1
	r, err = p.radiusVoxels(16)
	require.NoError(t, err)
	require.Equal(t, projector.DefaultRadius(16), r)

	p.Radius = 1.5
	_, err = p.radiusVoxels(16)
	require.ErrorIs(t, err, ErrInvalidParameter)
}
