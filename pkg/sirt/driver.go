// Package sirt reconstructs a 3D volume from projection images with the
// Simultaneous Iterative Reconstruction Technique, run cooperatively by every
// process of a 2D Cartesian grid.
//
// Every process executes the same driver in lockstep. Each iteration
//
//  1. replicates the volume estimate from the owning slabs to every process,
//  2. forward projects it for every local image and symmetry equivalent,
//  3. back-projects the residuals into a full-volume accumulator,
//  4. reduces accumulators and weights over the row then the column group so
//     that each process receives the sums for the slab it owns,
//  5. applies the damped update to that slab, and
//  6. sums the squared residual over the grid to decide whether to stop.
package sirt

import (
	"fmt"

	"go.uber.org/zap"

	"sirt3d/internal/models"
	"sirt3d/pkg/cart"
	"sirt3d/pkg/logger"
	"sirt3d/pkg/projector"
	"sirt3d/pkg/symmetry"
)

// State is a phase of the driver.
type State int

const (
	Initializing State = iota
	Iterating
	Converged
	ExhaustedIterations
	Finalizing
	Done
	Error
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case ExhaustedIterations:
		return "exhausted-iterations"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is what a successful run hands back to the caller.
type Result struct {
	// Slab is the reconstructed slab owned by this process
	Slab *models.Slab

	// Outcome is Converged or ExhaustedIterations
	Outcome State

	Iterations int

	// Residuals holds the global residual of every iteration
	Residuals []float64
}

// Driver runs one process's share of a reconstruction.
type Driver struct {
	topo   *cart.Topology
	images []*models.ProjectionImage
	poses  []models.Pose
	params Params
	log    logger.Logger

	state State
	n     int

	reducer *Reducer
	accum   *Accumulator
	monitor *Monitor
	pipe    *pipeline

	full, acc, weight []float64
}

// NewDriver prepares a driver; nothing is validated until Run.
func NewDriver(topo *cart.Topology, images []*models.ProjectionImage, poses []models.Pose, params Params) *Driver {
	log := params.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Driver{
		topo:   topo,
		images: images,
		poses:  poses,
		params: params,
		log:    log,
		state:  Initializing,
	}
}

// State returns the current phase.
func (d *Driver) State() State {
	return d.state
}

func (d *Driver) transition(s State) {
	d.log.Debug("sirt state transition", zap.Stringer("from", d.state), zap.Stringer("to", s))
	d.state = s
}

func (d *Driver) fail(err error) (*Result, error) {
	d.transition(Error)
	d.log.Error("sirt reconstruction failed", zap.Error(err), zap.Int("status", StatusCode(err)))
	return nil, err
}

// Run executes the reconstruction. It must be called by every process of
// the grid; on error the result is nil and the driver is in the Error state.
func (d *Driver) Run() (*Result, error) {
	if d.state != Initializing {
		return nil, fmt.Errorf("%w: driver already ran", ErrInvalidParameter)
	}
	if err := d.initialize(); err != nil {
		return d.fail(err)
	}

	d.transition(Iterating)
	outcome, err := d.iterate()
	if err != nil {
		return d.fail(err)
	}
	d.transition(outcome)

	d.transition(Finalizing)
	res := &Result{
		Slab:       d.accum.Slab(),
		Outcome:    outcome,
		Iterations: d.monitor.Iterations(),
		Residuals:  d.monitor.Trace(),
	}
	d.full, d.acc, d.weight = nil, nil, nil
	d.transition(Done)
	return res, nil
}

func (d *Driver) initialize() error {
	if d.topo == nil || d.topo.Grid == nil || d.topo.Row == nil || d.topo.Col == nil {
		return fmt.Errorf("%w: missing topology handle", ErrInvalidGrid)
	}
	if len(d.images) != len(d.poses) {
		return fmt.Errorf("%w: %d images, %d orientations", ErrShapeMismatch, len(d.images), len(d.poses))
	}

	group, err := symmetry.Parse(d.params.Symmetry)
	if err != nil {
		return err
	}
	if err := d.params.validate(); err != nil {
		return err
	}

	n, err := d.volumeSize()
	if err != nil {
		return err
	}
	d.n = n

	rows, cols := d.topo.Dims()
	row, col := d.topo.Coords()
	if rows*cols != d.topo.Grid.Size() || d.topo.Grid.Rank() != row*cols+col {
		return fmt.Errorf("%w: grid of %d processes with %dx%d groups at rank %d (row %d, col %d)",
			ErrInvalidGrid, d.topo.Grid.Size(), rows, cols, d.topo.Grid.Rank(), row, col)
	}
	dec, err := NewDecomposition(n, rows, cols)
	if err != nil {
		return err
	}

	radius, err := d.params.radiusVoxels(n)
	if err != nil {
		return err
	}
	mask := projector.NewMask(n, radius)

	if err := d.allocate(); err != nil {
		return err
	}
	zStart, zEnd := dec.Slab(row, col)
	slabData, err := allocate((zEnd - zStart) * n * n)
	if err != nil {
		return err
	}
	slab := &models.Slab{Data: slabData, Size: n, ZStart: zStart, ZEnd: zEnd}

	d.log = d.log.With(zap.Int("rank", d.topo.Grid.Rank()), zap.Int("row", row), zap.Int("col", col))
	d.reducer = NewReducer(d.topo, dec)
	d.accum = NewAccumulator(slab, mask, d.params.Lambda)
	d.monitor = NewMonitor(d.topo.Grid, d.params.MaxIterations, d.params.Tolerance, d.params.Stopping)
	d.pipe = newPipeline(projector.New(n, mask, d.params.Kernel), group, d.images, d.poses, d.params.Workers)

	d.log.Info("sirt initialized",
		zap.Int("size", n),
		zap.Int("images", len(d.images)),
		zap.String("symmetry", group.Label()),
		zap.Float64("radius", radius),
		zap.Int("slabStart", zStart),
		zap.Int("slabEnd", zEnd))
	return nil
}

// volumeSize derives the volume edge and checks every image against it.
func (d *Driver) volumeSize() (int, error) {
	n := d.params.Size
	if n == 0 {
		if len(d.images) == 0 {
			return 0, fmt.Errorf("%w: volume size unknown without local images", ErrInvalidParameter)
		}
		n = d.images[0].Width
	}
	for i, img := range d.images {
		if img == nil || img.Width != n || img.Height != n || len(img.Data) != n*n {
			return 0, fmt.Errorf("%w: image %d is not %dx%d", ErrShapeMismatch, i, n, n)
		}
	}
	return n, nil
}

func (d *Driver) allocate() error {
	n := d.n
	if n > 1<<20 || (d.params.MaxVoxels > 0 && n*n*n > d.params.MaxVoxels) {
		return fmt.Errorf("%w: volume of edge %d exceeds the limit of %d voxels", ErrAllocationFailure, n, d.params.MaxVoxels)
	}

	var err error
	if d.full, err = allocate(n * n * n); err != nil {
		return err
	}
	if d.acc, err = allocate(n * n * n); err != nil {
		return err
	}
	if d.weight, err = allocate(n * n * n); err != nil {
		return err
	}
	return nil
}

func (d *Driver) iterate() (State, error) {
	vol := &models.Volume{Data: d.full, Size: d.n}
	for {
		full, err := d.reducer.Replicate(d.accum.Slab().Data)
		if err != nil {
			return Error, err
		}
		copy(vol.Data, full)

		clear(d.acc)
		clear(d.weight)
		local, err := d.pipe.run(vol, d.acc, d.weight)
		if err != nil {
			return Error, err
		}

		accSlab, weightSlab, err := d.reducer.Reduce(d.acc, d.weight)
		if err != nil {
			return Error, err
		}
		if err := d.accum.Update(accSlab, weightSlab); err != nil {
			return Error, err
		}

		global, verdict, err := d.monitor.Evaluate(local)
		if err != nil {
			return Error, err
		}
		iterationsCounter.Inc()
		globalResidualGauge.Set(global)
		fields := []zap.Field{zap.Int("iteration", d.monitor.Iterations()), zap.Float64("residual", global)}
		if d.topo.Grid.Rank() == 0 {
			d.log.Info("sirt iteration", fields...)
		} else {
			d.log.Debug("sirt iteration", fields...)
		}

		switch verdict {
		case VerdictConverged:
			return Converged, nil
		case VerdictExhausted:
			return ExhaustedIterations, nil
		}
	}
}

// Reconstruct runs the driver for this process and returns its slab.
func Reconstruct(topo *cart.Topology, images []*models.ProjectionImage, poses []models.Pose, params Params) (*Result, error) {
	return NewDriver(topo, images, poses, params).Run()
}

// Output receives the result of ReconstructSIRT. Slab stays nil on failure.
type Output struct {
	Slab   *models.Slab
	Result *Result
}

// ReconstructSIRT is the status-code entry point: grid, row and col are the
// pre-built topology handles, images and poses hold nangloc local entries.
// It returns StatusOK and fills out, or a non-zero status and leaves out untouched.
func ReconstructSIRT(grid, row, col cart.Comm, images []*models.ProjectionImage, poses []models.Pose, out *Output,
	nangloc int, radius int, lam float64, maxit int, symmetryLabel string, tol float64) int {
	if len(images) != nangloc || len(poses) != nangloc {
		return StatusShapeMismatch
	}

	params := DefaultParams()
	params.Radius = float64(radius)
	params.Lambda = lam
	params.MaxIterations = maxit
	params.Symmetry = symmetryLabel
	params.Tolerance = tol

	res, err := Reconstruct(&cart.Topology{Grid: grid, Row: row, Col: col}, images, poses, params)
	if err != nil {
		return StatusCode(err)
	}
	if out != nil {
		out.Slab = res.Slab
		out.Result = res
	}
	return StatusOK
}
