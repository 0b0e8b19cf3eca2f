package sirt

import (
	"fmt"
	"time"

	"sirt3d/pkg/cart"
)

// span is a half-open range of z planes.
type span struct {
	Start, End int
}

func (s span) len() int { return s.End - s.Start }

// partition splits [0, n) into k contiguous spans whose lengths differ by at
// most one, longer spans first.
func partition(start, n, k int) []span {
	out := make([]span, k)
	base, extra := n/k, n%k
	for i := range out {
		l := base
		if i < extra {
			l++
		}
		out[i] = span{Start: start, End: start + l}
		start += l
	}
	return out
}

// Decomposition assigns z slabs of an n^3 volume to a rows x cols grid.
// The z axis is cut into cols bands and every band into rows slabs; process
// (r, c) owns slab r of band c.
type Decomposition struct {
	Size       int
	Rows, Cols int

	bands []span
	slabs [][]span
}

// NewDecomposition fails with ErrInvalidGrid when some slab would be empty.
func NewDecomposition(n, rows, cols int) (*Decomposition, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGrid, rows, cols)
	}
	if n < rows*cols {
		return nil, fmt.Errorf("%w: %dx%d grid needs at least %d planes, volume has %d",
			ErrInvalidGrid, rows, cols, rows*cols, n)
	}

	d := &Decomposition{Size: n, Rows: rows, Cols: cols}
	d.bands = partition(0, n, cols)
	for _, b := range d.bands {
		d.slabs = append(d.slabs, partition(b.Start, b.len(), rows))
	}
	return d, nil
}

// Band returns the planes [start, end) shared by column col.
func (d *Decomposition) Band(col int) (start, end int) {
	b := d.bands[col]
	return b.Start, b.End
}

// Slab returns the planes [start, end) owned by process (row, col).
func (d *Decomposition) Slab(row, col int) (start, end int) {
	s := d.slabs[col][row]
	return s.Start, s.End
}

// bandCounts returns the voxel count of every band, in column order.
func (d *Decomposition) bandCounts() []int {
	plane := d.Size * d.Size
	out := make([]int, d.Cols)
	for c, b := range d.bands {
		out[c] = b.len() * plane
	}
	return out
}

// slabCounts returns the voxel count of every slab of band col, in row order.
func (d *Decomposition) slabCounts(col int) []int {
	plane := d.Size * d.Size
	out := make([]int, d.Rows)
	for r, s := range d.slabs[col] {
		out[r] = s.len() * plane
	}
	return out
}

// Reducer moves volume data between the full-volume view every process
// works in and the slab each process owns.
type Reducer struct {
	topo     *cart.Topology
	dec      *Decomposition
	row, col int
}

// NewReducer binds a decomposition to the caller's position in topo.
func NewReducer(topo *cart.Topology, dec *Decomposition) *Reducer {
	row, col := topo.Coords()
	return &Reducer{topo: topo, dec: dec, row: row, col: col}
}

// Reduce sums full-volume partial accumulators and weights over the grid and
// returns the fully summed values of the caller's slab. The row group first
// reduces every band onto the process of that band's column; the column
// group then reduces the band onto the process owning each slab.
func (r *Reducer) Reduce(acc, weight []float64) (accSlab, weightSlab []float64, err error) {
	defer observeCollective("reduce", time.Now())

	accSlab, err = r.reduce(acc)
	if err != nil {
		return nil, nil, err
	}
	weightSlab, err = r.reduce(weight)
	if err != nil {
		return nil, nil, err
	}
	return accSlab, weightSlab, nil
}

func (r *Reducer) reduce(data []float64) ([]float64, error) {
	n := r.dec.Size
	if len(data) != n*n*n {
		return nil, fmt.Errorf("%w: reduce buffer length %d, want %d", ErrShapeMismatch, len(data), n*n*n)
	}

	band, err := r.topo.Row.ReduceScatterSum(data, r.dec.bandCounts())
	if err != nil {
		return nil, commFailure("row reduce", err)
	}
	slab, err := r.topo.Col.ReduceScatterSum(band, r.dec.slabCounts(r.col))
	if err != nil {
		return nil, commFailure("column reduce", err)
	}
	return slab, nil
}

// Replicate gathers every process's slab into a full volume on every
// process: slabs are gathered over the column group into a band, bands over
// the row group into the volume.
func (r *Reducer) Replicate(slab []float64) ([]float64, error) {
	defer observeCollective("replicate", time.Now())

	counts := r.dec.slabCounts(r.col)
	if len(slab) != counts[r.row] {
		return nil, fmt.Errorf("%w: slab length %d, want %d", ErrShapeMismatch, len(slab), counts[r.row])
	}

	band, err := r.topo.Col.Allgather(slab)
	if err != nil {
		return nil, commFailure("column gather", err)
	}
	full, err := r.topo.Row.Allgather(band)
	if err != nil {
		return nil, commFailure("row gather", err)
	}

	n := r.dec.Size
	if len(full) != n*n*n {
		return nil, fmt.Errorf("%w: replicated volume has %d samples, want %d", ErrCommunicationFailure, len(full), n*n*n)
	}
	return full, nil
}
