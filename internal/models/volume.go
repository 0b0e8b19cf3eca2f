package models

import "fmt"

// Volume is a dense cubic grid of real samples with edge length Size.
// Data is stored in row-major order: index = z*Size*Size + y*Size + x.
type Volume struct {
	// Data holds Size*Size*Size samples
	Data []float64

	// Size is the edge length of the cube in voxels
	Size int
}

// NewVolume allocates a zeroed volume of edge length n.
func NewVolume(n int) *Volume {
	return &Volume{
		Data: make([]float64, n*n*n),
		Size: n,
	}
}

// Index returns the offset of voxel (x, y, z) in Data.
func (v *Volume) Index(x, y, z int) int {
	return z*v.Size*v.Size + y*v.Size + x
}

// At returns the sample at (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores a sample at (x, y, z).
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	data := make([]float64, len(v.Data))
	copy(data, v.Data)
	return &Volume{Data: data, Size: v.Size}
}

// Slab is the contiguous range of z planes [ZStart, ZEnd) of a Size^3 volume
// owned by a single process.
type Slab struct {
	// Data holds (ZEnd-ZStart)*Size*Size samples, same layout as Volume
	Data []float64

	// Size is the edge length of the full volume
	Size int

	// ZStart is the first z plane of the slab, ZEnd is one past the last
	ZStart, ZEnd int
}

// NewSlab allocates a zeroed slab covering planes [zStart, zEnd).
func NewSlab(n, zStart, zEnd int) *Slab {
	return &Slab{
		Data:   make([]float64, (zEnd-zStart)*n*n),
		Size:   n,
		ZStart: zStart,
		ZEnd:   zEnd,
	}
}

// Depth returns the number of z planes in the slab.
func (s *Slab) Depth() int {
	return s.ZEnd - s.ZStart
}

// Contains reports whether global plane z belongs to the slab.
func (s *Slab) Contains(z int) bool {
	return z >= s.ZStart && z < s.ZEnd
}

// Offset returns the offset of the slab's first voxel inside a full volume.
func (s *Slab) Offset() int {
	return s.ZStart * s.Size * s.Size
}

// At returns the sample at (x, y, z) where z is a global plane index.
func (s *Slab) At(x, y, z int) float64 {
	return s.Data[(z-s.ZStart)*s.Size*s.Size+y*s.Size+x]
}

// CopyInto writes the slab into the matching planes of vol.
func (s *Slab) CopyInto(vol *Volume) error {
	if vol.Size != s.Size {
		return fmt.Errorf("%w: slab edge %d, volume edge %d", ErrShapeMismatch, s.Size, vol.Size)
	}
	copy(vol.Data[s.Offset():], s.Data)
	return nil
}
