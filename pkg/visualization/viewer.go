// Package visualization renders slices of a reconstructed volume as
// grayscale images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"sirt3d/internal/models"
)

// Viewer extracts and saves orthogonal slices of a cubic volume. Intensities
// are rescaled from the volume's [min, max] range onto 16-bit gray.
type Viewer struct {
	volume *models.Volume

	// lo and hi bound the intensities mapped to black and white
	lo, hi float64
}

// NewViewer creates a viewer for vol.
func NewViewer(vol *models.Volume) *Viewer {
	v := &Viewer{volume: vol}
	if len(vol.Data) > 0 {
		v.lo, v.hi = floats.Min(vol.Data), floats.Max(vol.Data)
	}
	return v
}

// gray maps a sample onto 16-bit gray.
func (v *Viewer) gray(value float64) color.Gray16 {
	if v.hi <= v.lo {
		return color.Gray16{}
	}
	scaled := (value - v.lo) / (v.hi - v.lo) * 65535
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, math.Round(scaled))))}
}

// ExtractSlice extracts the plane at position perpendicular to axis
// ("x", "y" or "z"). An x slice is indexed (z, y), a y slice (x, z) and a
// z slice (x, y).
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	n := v.volume.Size
	if position < 0 || position >= n {
		return nil, fmt.Errorf("position %d outside [0, %d)", position, n)
	}

	img := image.NewGray16(image.Rect(0, 0, n, n))
	switch axis {
	case "x", "X":
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				img.SetGray16(z, y, v.gray(v.volume.At(position, y, z)))
			}
		}
	case "y", "Y":
		for z := 0; z < n; z++ {
			for x := 0; x < n; x++ {
				img.SetGray16(x, z, v.gray(v.volume.At(x, position, z)))
			}
		}
	case "z", "Z":
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				img.SetGray16(x, y, v.gray(v.volume.At(x, y, position)))
			}
		}
	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
	return img, nil
}

// ExtractRegion copies the box of the given size starting at (startX,
// startY, startZ), in the volume's x-fastest layout.
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) ([]float64, error) {
	n := v.volume.Size
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	if startX+sizeX > n || startY+sizeY > n || startZ+sizeZ > n {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region := make([]float64, 0, sizeX*sizeY*sizeZ)
	for z := startZ; z < startZ+sizeZ; z++ {
		for y := startY; y < startY+sizeY; y++ {
			row := v.volume.Index(startX, y, z)
			region = append(region, v.volume.Data[row:row+sizeX]...)
		}
	}
	return region, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along axis into outputDir.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	switch axis {
	case "x", "X", "y", "Y", "z", "Z":
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < v.volume.Size; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return fmt.Errorf("failed to save slice %s/%d: %w", axis, pos, err)
		}
	}
	return nil
}

// SaveAll writes the x, y and z slice sequences into subdirectories of outputDir.
func (v *Viewer) SaveAll(outputDir string) error {
	for _, axis := range []string{"x", "y", "z"} {
		if err := v.SaveSliceSequence(axis, filepath.Join(outputDir, axis)); err != nil {
			return err
		}
	}
	return nil
}
