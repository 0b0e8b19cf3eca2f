package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewGridRejectsBadShape(t *testing.T) {
	for _, dims := range [][2]int{{0, 1}, {1, 0}, {-2, 3}} {
		_, err := NewGrid(dims[0], dims[1])
		require.ErrorIs(t, err, ErrInvalidShape)
	}
}

func TestCoordinates(t *testing.T) {
	g, err := NewGrid(2, 3)
	require.NoError(t, err)
	require.Equal(t, 6, g.Size())

	for rank := 0; rank < g.Size(); rank++ {
		topo := g.Topology(rank)
		r, c := topo.Coords()
		require.Equal(t, rank, topo.Grid.Rank())
		require.Equal(t, rank, r*3+c)

		rows, cols := topo.Dims()
		require.Equal(t, 2, rows)
		require.Equal(t, 3, cols)
		require.Equal(t, 3, topo.Row.Size())
		require.Equal(t, 2, topo.Col.Size())
	}
}

func TestAllreduceOverEveryGroup(t *testing.T) {
	const rows, cols = 2, 3

	var mu sync.Mutex
	results := map[int][3][]float64{}

	err := Run(context.Background(), rows, cols, func(topo *Topology) error {
		r, c := topo.Coords()

		grid := []float64{float64(topo.Grid.Rank()), 1}
		if err := topo.Grid.AllreduceSum(grid); err != nil {
			return err
		}
		row := []float64{float64(c)}
		if err := topo.Row.AllreduceSum(row); err != nil {
			return err
		}
		col := []float64{float64(r + 1)}
		if err := topo.Col.AllreduceSum(col); err != nil {
			return err
		}

		mu.Lock()
		results[topo.Grid.Rank()] = [3][]float64{grid, row, col}
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, results, rows*cols)

	for _, res := range results {
		require.Equal(t, []float64{15, 6}, res[0])
		require.Equal(t, []float64{3}, res[1])
		require.Equal(t, []float64{3}, res[2])
	}
}

func TestReduceScatterSum(t *testing.T) {
	counts := []int{1, 2, 0}

	var mu sync.Mutex
	got := make([][]float64, 3)

	err := Run(context.Background(), 1, 3, func(topo *Topology) error {
		k := float64(topo.Row.Rank() + 1)
		out, err := topo.Row.ReduceScatterSum([]float64{k, 2 * k, 3 * k}, counts)
		if err != nil {
			return err
		}
		mu.Lock()
		got[topo.Row.Rank()] = out
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []float64{6}, got[0])
	require.Equal(t, []float64{12, 18}, got[1])
	require.Empty(t, got[2])
}

func TestReduceScatterRejectsBadCounts(t *testing.T) {
	topo := Single()
	_, err := topo.Grid.ReduceScatterSum([]float64{1, 2}, []int{3})
	require.ErrorIs(t, err, ErrCountMismatch)

	_, err = topo.Grid.ReduceScatterSum([]float64{1, 2}, []int{1, 1})
	require.ErrorIs(t, err, ErrCountMismatch)
}

func TestAllgatherKeepsRankOrder(t *testing.T) {
	var mu sync.Mutex
	got := map[int][]float64{}

	err := Run(context.Background(), 3, 1, func(topo *Topology) error {
		r := topo.Col.Rank()
		part := make([]float64, r+1)
		for i := range part {
			part[i] = float64(r)
		}
		out, err := topo.Col.Allgather(part)
		if err != nil {
			return err
		}
		mu.Lock()
		got[r] = out
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	for r := 0; r < 3; r++ {
		require.Equal(t, []float64{0, 1, 1, 2, 2, 2}, got[r])
	}
}

func TestManyRounds(t *testing.T) {
	const rounds = 200

	err := Run(context.Background(), 2, 2, func(topo *Topology) error {
		for i := 0; i < rounds; i++ {
			v := []float64{float64(i)}
			if err := topo.Grid.AllreduceSum(v); err != nil {
				return err
			}
			if v[0] != float64(4*i) {
				return errors.New("unexpected sum")
			}
			if err := topo.Row.Barrier(); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRunAbortsOnFailure(t *testing.T) {
	boom := errors.New("boom")

	var mu sync.Mutex
	var aborted int

	err := Run(context.Background(), 2, 2, func(topo *Topology) error {
		if topo.Grid.Rank() == 3 {
			return boom
		}
		err := topo.Grid.Barrier()
		if errors.Is(err, ErrAborted) {
			mu.Lock()
			aborted++
			mu.Unlock()
		}
		return err
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, aborted)
}

func TestAbortedGroupFailsFast(t *testing.T) {
	g, err := NewGrid(1, 2)
	require.NoError(t, err)
	g.Abort(errors.New("stop"))

	err = g.Topology(0).Row.AllreduceSum([]float64{1})
	require.ErrorIs(t, err, ErrAborted)
	_, err = g.Topology(1).Col.Allgather(nil)
	require.ErrorIs(t, err, ErrAborted)
}

func TestSingle(t *testing.T) {
	topo := Single()
	v := []float64{1, 2}
	require.NoError(t, topo.Grid.AllreduceSum(v))
	require.Equal(t, []float64{1, 2}, v)

	out, err := topo.Row.Allgather([]float64{4})
	require.NoError(t, err)
	require.Equal(t, []float64{4}, out)
}

func TestRunWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	err := Run(ctx, 2, 2, func(*Topology) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, calls)
}

func TestGridReusableAfterSuccessfulRun(t *testing.T) {
	g, err := NewGrid(2, 2)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		err := g.Run(context.Background(), func(topo *Topology) error {
			v := []float64{1}
			if err := topo.Grid.AllreduceSum(v); err != nil {
				return err
			}
			if v[0] != 4 {
				return fmt.Errorf("sum %g", v[0])
			}
			return topo.Row.Barrier()
		})
		require.NoError(t, err, "run %d", i)
	}
}

func TestRunAbortsPeersOnError(t *testing.T) {
	g, err := NewGrid(1, 3)
	require.NoError(t, err)

	failure := errors.New("rank failed")
	err = g.Run(context.Background(), func(topo *Topology) error {
		if topo.Grid.Rank() == 1 {
			return failure
		}
		return topo.Grid.Barrier()
	})
	require.Error(t, err)

	err = g.Run(context.Background(), func(topo *Topology) error {
		return topo.Grid.Barrier()
	})
	require.ErrorIs(t, err, ErrAborted)
}
