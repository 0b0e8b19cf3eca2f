// Package phantom builds synthetic volumes and the consistent projection
// images used to exercise and validate reconstructions.
package phantom

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"sirt3d/internal/models"
	"sirt3d/pkg/projector"
)

// ball is a Gaussian blob of the given density.
type ball struct {
	center  r3.Vec
	sigma   float64
	density float64
}

func render(n int, balls []ball) *models.Volume {
	vol := models.NewVolume(n)
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				p := r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)}
				var v float64
				for _, b := range balls {
					d := r3.Sub(p, b.center)
					v += b.density * math.Exp(-r3.Dot(d, d)/(2*b.sigma*b.sigma))
				}
				vol.Set(x, y, z, v)
			}
		}
	}
	projector.NewMask(n, projector.DefaultRadius(n)).Apply(vol.Data, 0)
	return vol
}

// Spheres returns an asymmetric arrangement of blobs of different densities.
func Spheres(n int) *models.Volume {
	c := float64(n / 2)
	s := float64(n) / 16
	return render(n, []ball{
		{center: r3.Vec{X: c, Y: c, Z: c}, sigma: 2.0 * s, density: 1.0},
		{center: r3.Vec{X: c + 3*s, Y: c - 1*s, Z: c + 1*s}, sigma: 1.2 * s, density: 0.8},
		{center: r3.Vec{X: c - 2*s, Y: c + 3*s, Z: c - 2*s}, sigma: 1.0 * s, density: 0.6},
		{center: r3.Vec{X: c - 1*s, Y: c - 3*s, Z: c + 3*s}, sigma: 0.8 * s, density: 1.2},
	})
}

// CyclicBlobs returns fold identical blobs spaced evenly about the z axis
// through the volume centre, plus a central blob. For fold 1, 2 and 4 the
// blob centres sit on lattice points, so the sampled volume is exactly
// invariant under the corresponding rotations.
func CyclicBlobs(n, fold int) *models.Volume {
	c := float64(n / 2)
	radius := math.Round(float64(n) / 4)
	s := float64(n) / 16

	balls := []ball{{center: r3.Vec{X: c, Y: c, Z: c}, sigma: 1.5 * s, density: 0.5}}
	for k := 0; k < fold; k++ {
		a := 2 * math.Pi * float64(k) / float64(fold)
		balls = append(balls, ball{
			center:  r3.Vec{X: c + radius*roundTiny(math.Cos(a)), Y: c + radius*roundTiny(math.Sin(a)), Z: c + s},
			sigma:   1.2 * s,
			density: 1.0,
		})
	}
	return render(n, balls)
}

// Generate builds the phantom named kind: "spheres" or "blobs". fold is
// only used by "blobs".
func Generate(kind string, n, fold int) (*models.Volume, error) {
	if n < 2 {
		return nil, fmt.Errorf("phantom size must be at least 2, got %d", n)
	}
	switch kind {
	case "", "spheres":
		return Spheres(n), nil
	case "blobs":
		if fold < 1 {
			return nil, fmt.Errorf("blob fold must be positive, got %d", fold)
		}
		return CyclicBlobs(n, fold), nil
	default:
		return nil, fmt.Errorf("unknown phantom kind %q", kind)
	}
}

// roundTiny snaps values within 1e-12 of an integer, so that the lattice
// directions of cos/sin at multiples of 90 degrees are exact.
func roundTiny(v float64) float64 {
	if r := math.Round(v); math.Abs(v-r) < 1e-12 {
		return r
	}
	return v
}

// SaffOrientations spreads k viewing directions evenly over the sphere with
// the Saff-Kuijlaars spiral. Angles are in degrees; psi is zero.
func SaffOrientations(k int) []models.Orientation {
	out := make([]models.Orientation, k)
	if k == 1 {
		return out
	}

	var phi float64
	for i := 0; i < k; i++ {
		h := -1 + 2*float64(i)/float64(k-1)
		theta := math.Acos(h)
		if i == 0 || i == k-1 {
			phi = 0
		} else {
			phi += 3.6 / math.Sqrt(float64(k)*(1-h*h))
			phi = math.Mod(phi, 2*math.Pi)
		}
		out[i] = models.Orientation{Phi: phi * 180 / math.Pi, Theta: theta * 180 / math.Pi}
	}
	return out
}

// Poses pairs orientations with zero shifts.
func Poses(orientations []models.Orientation) []models.Pose {
	out := make([]models.Pose, len(orientations))
	for i, o := range orientations {
		out[i] = models.Pose{Orientation: o}
	}
	return out
}

// Project simulates one image per pose with the same operator the
// reconstruction uses, restricted to the inscribed sphere.
func Project(vol *models.Volume, poses []models.Pose, kernel projector.Kernel) ([]*models.ProjectionImage, error) {
	n := vol.Size
	p := projector.New(n, projector.NewMask(n, projector.DefaultRadius(n)), kernel)

	out := make([]*models.ProjectionImage, len(poses))
	for i, pose := range poses {
		img, err := p.Project(vol, projector.ViewOf(pose))
		if err != nil {
			return nil, fmt.Errorf("failed to project view %d: %w", i, err)
		}
		out[i] = img
	}
	return out, nil
}

// AddNoise adds zero-mean Gaussian noise of standard deviation sigma to every pixel.
func AddNoise(images []*models.ProjectionImage, sigma float64, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for _, img := range images {
		for i := range img.Data {
			img.Data[i] += sigma * rng.NormFloat64()
		}
	}
}

// Distribute returns the items assigned round-robin to rank out of size.
func Distribute[T any](items []T, rank, size int) []T {
	var out []T
	for i := rank; i < len(items); i += size {
		out = append(out, items[i])
	}
	return out
}
