package projector

// Mask is a sphere of validity centred on voxel (n/2, n/2, n/2).
type Mask struct {
	Size   int
	Radius float64

	center float64
	r2     float64
}

// DefaultRadius is the largest radius, in voxels, whose sphere about the
// centre lies inside an n^3 grid.
func DefaultRadius(n int) float64 {
	return float64(n/2 - 1)
}

// NewMask returns the mask of the given radius in voxels.
func NewMask(n int, radius float64) Mask {
	return Mask{
		Size:   n,
		Radius: radius,
		center: float64(n / 2),
		r2:     radius * radius,
	}
}

// Center returns the coordinate of the volume centre along any axis.
func (m Mask) Center() float64 {
	return m.center
}

// Inside reports whether voxel (x, y, z) lies within the sphere.
func (m Mask) Inside(x, y, z int) bool {
	dx := float64(x) - m.center
	dy := float64(y) - m.center
	dz := float64(z) - m.center
	return dx*dx+dy*dy+dz*dz <= m.r2
}

// Apply zeroes every voxel of a Size^3 volume, or of the planes
// [zStart, zStart+len(data)/Size^2), that lies outside the sphere.
func (m Mask) Apply(data []float64, zStart int) {
	plane := m.Size * m.Size
	for i := range data {
		z := zStart + i/plane
		y := (i % plane) / m.Size
		x := i % m.Size
		if !m.Inside(x, y, z) {
			data[i] = 0
		}
	}
}
