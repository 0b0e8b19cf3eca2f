package cart

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Topology is one process's view of a rows x cols grid: the full grid, the
// group of processes sharing its row, and the group sharing its column.
// Process (r, c) has grid rank r*cols + c, row rank c and column rank r.
type Topology struct {
	Grid Comm
	Row  Comm
	Col  Comm
}

// Dims returns the grid shape as (rows, cols).
func (t *Topology) Dims() (rows, cols int) {
	return t.Col.Size(), t.Row.Size()
}

// Coords returns the caller's (row, col) position.
func (t *Topology) Coords() (row, col int) {
	return t.Col.Rank(), t.Row.Rank()
}

// Grid holds the handles of every process of an in-process grid.
type Grid struct {
	rows, cols int
	topologies []*Topology
	hubs       []*hub
}

// NewGrid builds the grid, row and column groups for a rows x cols grid.
func NewGrid(rows, cols int) (*Grid, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidShape, rows, cols)
	}

	g := &Grid{rows: rows, cols: cols}
	grid := newHub(rows * cols)
	rowHubs := make([]*hub, rows)
	for r := range rowHubs {
		rowHubs[r] = newHub(cols)
	}
	colHubs := make([]*hub, cols)
	for c := range colHubs {
		colHubs[c] = newHub(rows)
	}
	g.hubs = append(g.hubs, grid)
	g.hubs = append(g.hubs, rowHubs...)
	g.hubs = append(g.hubs, colHubs...)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g.topologies = append(g.topologies, &Topology{
				Grid: &member{hub: grid, rank: r*cols + c},
				Row:  &member{hub: rowHubs[r], rank: c},
				Col:  &member{hub: colHubs[c], rank: r},
			})
		}
	}
	return g, nil
}

// Single returns the topology of a one-process grid.
func Single() *Topology {
	g, _ := NewGrid(1, 1)
	return g.Topology(0)
}

// Size returns the number of processes.
func (g *Grid) Size() int {
	return len(g.topologies)
}

// Dims returns the grid shape as (rows, cols).
func (g *Grid) Dims() (rows, cols int) {
	return g.rows, g.cols
}

// Topology returns the handles of the process with the given grid rank.
func (g *Grid) Topology(rank int) *Topology {
	return g.topologies[rank]
}

// Abort fails every pending and future collective on every group of the grid.
func (g *Grid) Abort(cause error) {
	for _, h := range g.hubs {
		h.abort(cause)
	}
}

// Run executes fn once per process of a rows x cols grid and waits for all
// of them. When a process returns an error, or ctx is done, the grid is
// aborted so that the remaining processes return instead of blocking.
// The first error is returned.
func Run(ctx context.Context, rows, cols int, fn func(t *Topology) error) error {
	g, err := NewGrid(rows, cols)
	if err != nil {
		return err
	}
	return g.Run(ctx, fn)
}

// Run executes fn on every process of g. See the package-level Run.
func (g *Grid) Run(ctx context.Context, fn func(t *Topology) error) error {
	if ctx.Err() != nil {
		g.Abort(context.Cause(ctx))
		return context.Cause(ctx)
	}

	var eg errgroup.Group

	stop := make(chan struct{})
	watcher := make(chan struct{})
	go func() {
		defer close(watcher)
		select {
		case <-ctx.Done():
			g.Abort(context.Cause(ctx))
		case <-stop:
		}
	}()

	for _, t := range g.topologies {
		eg.Go(func() error {
			if err := fn(t); err != nil {
				g.Abort(err)
				return err
			}
			return nil
		})
	}

	err := eg.Wait()
	close(stop)
	<-watcher
	return err
}
