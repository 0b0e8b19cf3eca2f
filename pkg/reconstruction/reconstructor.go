// Package reconstruction runs a complete distributed SIRT reconstruction:
// it deals the projection set over a process grid, runs the solver on every
// process, assembles the volume and scores it against a reference.
package reconstruction

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sirt3d/internal/models"
	"sirt3d/pkg/cart"
	"sirt3d/pkg/logger"
	"sirt3d/pkg/phantom"
	"sirt3d/pkg/sirt"
	"sirt3d/pkg/visualization"
)

// Params holds the reconstruction parameters.
type Params struct {
	// Rows and Cols shape the process grid.
	Rows, Cols int

	// SIRT configures the solver every process runs. Size is derived from
	// the images when zero.
	SIRT sirt.Params

	// Images and Poses are the whole projection set; image i is dealt to
	// grid rank i mod Rows*Cols.
	Images []*models.ProjectionImage
	Poses  []models.Pose

	// Reference is the ground truth. When set, Process computes validation
	// metrics against it.
	Reference *models.Volume

	// SlicesDir receives x, y and z slice sequences of the result when non-empty.
	SlicesDir string

	Logger logger.Logger
}

// Reconstructor drives one reconstruction.
//
// The reconstruction process consists of several steps:
// 1. Validating the projection set against the grid
// 2. Running the SIRT driver on every process of the grid
// 3. Assembling the full volume from the slabs
// 4. Calculating quality metrics
// 5. Saving slice sequences
type Reconstructor struct {
	params *Params
	log    logger.Logger

	size    int
	volume  *models.Volume
	result  *sirt.Result
	elapsed time.Duration

	// metrics stores the quality assessment metrics after reconstruction
	metrics ValidationMetrics
}

// NewReconstructor creates a new reconstructor instance with the provided parameters.
func NewReconstructor(params *Params) *Reconstructor {
	log := params.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Reconstructor{params: params, log: log}
}

// Process runs the complete reconstruction pipeline.
func (r *Reconstructor) Process(ctx context.Context) error {
	r.log.Info("step 1: validating projection set")
	if err := r.validate(); err != nil {
		return fmt.Errorf("failed to validate projection set: %w", err)
	}

	r.log.Info("step 2: running SIRT",
		zap.Int("rows", r.params.Rows),
		zap.Int("cols", r.params.Cols),
		zap.Int("images", len(r.params.Images)),
		zap.Int("size", r.size))
	start := time.Now()
	if err := r.run(ctx); err != nil {
		return fmt.Errorf("failed to reconstruct: %w", err)
	}
	r.elapsed = time.Since(start)
	r.log.Info("step 3: volume assembled",
		zap.Stringer("outcome", r.result.Outcome),
		zap.Int("iterations", r.result.Iterations),
		zap.Duration("elapsed", r.elapsed))

	if r.params.Reference != nil {
		r.log.Info("step 4: calculating validation metrics")
		metrics, err := Validate(r.params.Reference, r.volume)
		if err != nil {
			return fmt.Errorf("failed to validate reconstruction: %w", err)
		}
		r.metrics = metrics
		r.log.Info("validation metrics",
			zap.Float64("rmse", metrics.RMSE),
			zap.Float64("correlation", metrics.Correlation),
			zap.Float64("ssim", metrics.SSIM),
			zap.Int("resolutionShell", metrics.ResolutionShell))
	}

	if r.params.SlicesDir != "" {
		r.log.Info("step 5: saving slices", zap.String("dir", r.params.SlicesDir))
		if err := visualization.NewViewer(r.volume).SaveAll(r.params.SlicesDir); err != nil {
			return fmt.Errorf("failed to save slices: %w", err)
		}
	}
	return nil
}

func (r *Reconstructor) validate() error {
	p := r.params
	if len(p.Images) != len(p.Poses) {
		return fmt.Errorf("%w: %d images, %d poses", sirt.ErrShapeMismatch, len(p.Images), len(p.Poses))
	}

	r.size = p.SIRT.Size
	if r.size == 0 {
		if len(p.Images) == 0 {
			return fmt.Errorf("%w: no images and no volume size", sirt.ErrInvalidParameter)
		}
		r.size = p.Images[0].Width
	}
	if p.Reference != nil && p.Reference.Size != r.size {
		return fmt.Errorf("%w: reference edge %d, volume edge %d", sirt.ErrShapeMismatch, p.Reference.Size, r.size)
	}
	return nil
}

// run executes the driver on every process of the grid and gathers the slabs.
func (r *Reconstructor) run(ctx context.Context) error {
	p := r.params
	params := p.SIRT
	params.Size = r.size
	if params.Logger == nil {
		params.Logger = r.log
	}

	size := p.Rows * p.Cols
	vol := models.NewVolume(r.size)
	results := make([]*sirt.Result, max(size, 0))

	err := cart.Run(ctx, p.Rows, p.Cols, func(topo *cart.Topology) error {
		rank := topo.Grid.Rank()
		res, err := sirt.Reconstruct(topo,
			phantom.Distribute(p.Images, rank, size),
			phantom.Distribute(p.Poses, rank, size),
			params)
		if err != nil {
			return fmt.Errorf("rank %d: %w", rank, err)
		}
		results[rank] = res
		return res.Slab.CopyInto(vol)
	})
	if err != nil {
		return err
	}

	r.volume = vol
	r.result = results[0]
	return nil
}

// GetMetrics returns the validation metrics of the last Process call.
func (r *Reconstructor) GetMetrics() ValidationMetrics {
	return r.metrics
}

// GetVolume returns the assembled volume, or nil before a successful Process.
func (r *Reconstructor) GetVolume() *models.Volume {
	return r.volume
}

// GetResult returns rank 0's solver result: outcome, iterations and residual trace.
func (r *Reconstructor) GetResult() *sirt.Result {
	return r.result
}

// Elapsed returns the wall time spent in the solver.
func (r *Reconstructor) Elapsed() time.Duration {
	return r.elapsed
}
