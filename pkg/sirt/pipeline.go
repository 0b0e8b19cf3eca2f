package sirt

import (
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"sirt3d/internal/models"
	"sirt3d/pkg/projector"
	"sirt3d/pkg/symmetry"
)

// ray is one row block of the linear system: an observed image paired with
// one of the symmetry equivalents of its orientation.
type ray struct {
	image *models.ProjectionImage
	view  projector.View
}

// pipeline runs the per-image work of an iteration on one process:
// symmetry expansion, forward projection, residual and back-projection.
type pipeline struct {
	proj    *projector.Projector
	rays    []ray
	workers int

	residuals []*models.ProjectionImage
	squares   []float64
}

func newPipeline(proj *projector.Projector, group symmetry.Group, images []*models.ProjectionImage, poses []models.Pose, workers int) *pipeline {
	if workers < 1 {
		workers = 1
	}

	p := &pipeline{proj: proj, workers: workers}
	for i, img := range images {
		for _, o := range group.Expand(poses[i].Orientation) {
			p.rays = append(p.rays, ray{image: img, view: projector.NewView(o, poses[i].Shift)})
		}
	}
	batch := min(workers, len(p.rays))
	p.residuals = make([]*models.ProjectionImage, batch)
	p.squares = make([]float64, batch)
	return p
}

// run back-projects the residual of every ray against vol into acc and
// weight, which the caller has zeroed, and returns the local sum of squared
// residuals. Rays are taken in batches of at most workers: a batch is
// forward projected concurrently and then back-projected in ray order, so
// the accumulation order is fixed and at most one batch of residuals is live.
func (p *pipeline) run(vol *models.Volume, acc, weight []float64) (float64, error) {
	var sum float64
	for start := 0; start < len(p.rays); start += len(p.residuals) {
		batch := p.rays[start:min(start+len(p.residuals), len(p.rays))]
		if err := p.project(vol, batch); err != nil {
			return 0, err
		}
		for i, r := range batch {
			if err := p.proj.BackProject(p.residuals[i], r.view, acc, weight); err != nil {
				return 0, fmt.Errorf("back-projection: %w", err)
			}
			sum += p.squares[i]
			p.residuals[i] = nil
		}
	}
	return sum, nil
}

// project fills residuals and squares for batch.
func (p *pipeline) project(vol *models.Volume, batch []ray) error {
	workers := pool.New().WithErrors().WithMaxGoroutines(len(batch))
	for i := range batch {
		workers.Go(func() error {
			simulated, err := p.proj.Project(vol, batch[i].view)
			if err != nil {
				return err
			}
			res, err := projector.Residual(batch[i].image, simulated)
			if err != nil {
				return err
			}
			p.residuals[i] = res
			p.squares[i] = projector.SumSquares(res)
			return nil
		})
	}
	if err := workers.Wait(); err != nil {
		return fmt.Errorf("forward projection: %w", err)
	}
	return nil
}
