package sirt

import (
	"math"
	"time"

	"sirt3d/pkg/cart"
)

// Verdict is the outcome of one convergence evaluation.
type Verdict int

const (
	VerdictContinue Verdict = iota
	VerdictConverged
	VerdictExhausted
)

// Monitor aggregates the residual over the grid and applies the stopping policy.
type Monitor struct {
	grid      cart.Comm
	maxit     int
	tol       float64
	rule      StoppingRule
	iteration int
	trace     []float64
}

// NewMonitor creates a monitor for at most maxit iterations.
func NewMonitor(grid cart.Comm, maxit int, tol float64, rule StoppingRule) *Monitor {
	return &Monitor{grid: grid, maxit: maxit, tol: tol, rule: rule}
}

// Evaluate sums the local squared residual over the grid, records it and
// decides whether to stop. The first evaluation never stops on tolerance.
func (m *Monitor) Evaluate(local float64) (float64, Verdict, error) {
	start := time.Now()
	buf := []float64{local}
	err := m.grid.AllreduceSum(buf)
	observeCollective("residual", start)
	if err != nil {
		return 0, VerdictContinue, commFailure("residual reduce", err)
	}

	global := buf[0]
	m.iteration++
	m.trace = append(m.trace, global)

	if len(m.trace) > 1 && m.settled(m.trace[len(m.trace)-2], global) {
		return global, VerdictConverged, nil
	}
	if m.iteration >= m.maxit {
		return global, VerdictExhausted, nil
	}
	return global, VerdictContinue, nil
}

func (m *Monitor) settled(prev, cur float64) bool {
	change := math.Abs(prev - cur)
	switch m.rule {
	case AbsoluteChange:
		return change < m.tol
	default:
		if prev == 0 {
			return cur == 0
		}
		return change/prev < m.tol
	}
}

// Iterations returns the number of evaluations so far.
func (m *Monitor) Iterations() int {
	return m.iteration
}

// Trace returns the global residual of every evaluation.
func (m *Monitor) Trace() []float64 {
	out := make([]float64, len(m.trace))
	copy(out, m.trace)
	return out
}
