package projector

import (
	"fmt"
	"math"
	"strings"
)

// Tap is one detector pixel touched by a voxel and its kernel weight.
type Tap struct {
	Index  int
	Weight float64
}

// Kernel maps a point on the detector to the pixels it is spread over.
// Taps outside the width x height detector are never reported.
type Kernel interface {
	Name() string
	Taps(dst []Tap, u, v float64, width, height int) []Tap
}

// Bilinear spreads a point over its four neighbouring pixels.
type Bilinear struct{}

// Name implements Kernel.
func (Bilinear) Name() string { return "bilinear" }

// Taps implements Kernel.
func (Bilinear) Taps(dst []Tap, u, v float64, width, height int) []Tap {
	x0 := int(math.Floor(u))
	y0 := int(math.Floor(v))
	fx := u - float64(x0)
	fy := v - float64(y0)

	weights := [4]float64{(1 - fx) * (1 - fy), fx * (1 - fy), (1 - fx) * fy, fx * fy}
	for i, w := range weights {
		x := x0 + i%2
		y := y0 + i/2
		if w <= 0 || x < 0 || y < 0 || x >= width || y >= height {
			continue
		}
		dst = append(dst, Tap{Index: y*width + x, Weight: w})
	}
	return dst
}

// Nearest assigns a point entirely to the closest pixel.
type Nearest struct{}

// Name implements Kernel.
func (Nearest) Name() string { return "nearest" }

// Taps implements Kernel.
func (Nearest) Taps(dst []Tap, u, v float64, width, height int) []Tap {
	x := int(math.Floor(u + 0.5))
	y := int(math.Floor(v + 0.5))
	if x < 0 || y < 0 || x >= width || y >= height {
		return dst
	}
	return append(dst, Tap{Index: y*width + x, Weight: 1})
}

// KernelByName resolves "bilinear" (also the empty string) or "nearest".
func KernelByName(name string) (Kernel, error) {
	switch strings.ToLower(name) {
	case "", "bilinear":
		return Bilinear{}, nil
	case "nearest":
		return Nearest{}, nil
	default:
		return nil, fmt.Errorf("unknown projection kernel %q", name)
	}
}
