package sirt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sirt3d/pkg/cart"
)

func TestMonitorStoppingRules(t *testing.T) {
	for _, tc := range []struct {
		name      string
		rule      StoppingRule
		maxit     int
		tol       float64
		residuals []float64
		want      []Verdict
	}{
		{
			name:      "relative change converges",
			rule:      RelativeChange,
			maxit:     10,
			tol:       1e-3,
			residuals: []float64{10, 5, 4.9999},
			want:      []Verdict{VerdictContinue, VerdictContinue, VerdictConverged},
		},
		{
			name:      "first iteration never converges",
			rule:      RelativeChange,
			maxit:     10,
			tol:       1e-3,
			residuals: []float64{0, 0},
			want:      []Verdict{VerdictContinue, VerdictConverged},
		},
		{
			name:      "zero previous residual needs zero current",
			rule:      RelativeChange,
			maxit:     10,
			tol:       1e-3,
			residuals: []float64{0, 1e-20},
			want:      []Verdict{VerdictContinue, VerdictContinue},
		},
		{
			name:      "maxit exhausts",
			rule:      RelativeChange,
			maxit:     2,
			tol:       1e-3,
			residuals: []float64{10, 5},
			want:      []Verdict{VerdictContinue, VerdictExhausted},
		},
		{
			name:      "convergence wins over maxit",
			rule:      RelativeChange,
			maxit:     2,
			tol:       1e-3,
			residuals: []float64{10, 10},
			want:      []Verdict{VerdictContinue, VerdictConverged},
		},
		{
			name:      "single iteration",
			rule:      AbsoluteChange,
			maxit:     1,
			tol:       100,
			residuals: []float64{10},
			want:      []Verdict{VerdictExhausted},
		},
		{
			name:      "absolute change",
			rule:      AbsoluteChange,
			maxit:     10,
			tol:       0.5,
			residuals: []float64{10, 9, 8.6},
			want:      []Verdict{VerdictContinue, VerdictContinue, VerdictConverged},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMonitor(cart.Single().Grid, tc.maxit, tc.tol, tc.rule)
			for i, r := range tc.residuals {
				global, verdict, err := m.Evaluate(r)
				require.NoError(t, err)
				require.Equal(t, r, global)
				require.Equal(t, tc.want[i], verdict, "iteration %d", i+1)
			}
			require.Equal(t, len(tc.residuals), m.Iterations())
			require.Equal(t, tc.residuals, m.Trace())
		})
	}
}

func TestMonitorSumsOverGrid(t *testing.T) {
	g, err := cart.NewGrid(1, 3)
	require.NoError(t, err)

	globals := make([]float64, 3)
	err = g.Run(t.Context(), func(topo *cart.Topology) error {
		m := NewMonitor(topo.Grid, 5, 1e-3, RelativeChange)
		global, _, err := m.Evaluate(float64(topo.Grid.Rank() + 1))
		globals[topo.Grid.Rank()] = global
		return err
	})
	require.NoError(t, err)
	require.Equal(t, []float64{6, 6, 6}, globals)
}

func TestMonitorReportsCommunicationFailure(t *testing.T) {
	g, err := cart.NewGrid(1, 2)
	require.NoError(t, err)
	g.Abort(nil)

	_, _, err = NewMonitor(g.Topology(0).Grid, 5, 1e-3, RelativeChange).Evaluate(1)
	require.ErrorIs(t, err, ErrCommunicationFailure)
	require.ErrorIs(t, err, cart.ErrAborted)
}
