package reconstruction

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// fft3D performs a 3D FFT of an n^3 volume stored x-fastest, one axis at a time.
func fft3D(data []float64, n int) []complex128 {
	out := make([]complex128, len(data))
	for i, v := range data {
		out[i] = complex(v, 0)
	}

	fft := fourier.NewCmplxFFT(n)
	line := make([]complex128, n)
	coeffs := make([]complex128, n)
	for _, stride := range []int{1, n, n * n} {
		for i := range out {
			// visit every line once, from its first sample
			if (i/stride)%n != 0 {
				continue
			}
			for k := 0; k < n; k++ {
				line[k] = out[i+k*stride]
			}
			fft.Coefficients(coeffs, line)
			for k := 0; k < n; k++ {
				out[i+k*stride] = coeffs[k]
			}
		}
	}
	return out
}

// frequency maps an FFT index onto its signed frequency.
func frequency(k, n int) int {
	if k > n/2 {
		return k - n
	}
	return k
}

// calculateFSC computes the Fourier shell correlation of two n^3 volumes
// for the integer shells 0 .. n/2-1.
func calculateFSC(a, b []float64, n int) []float64 {
	shells := n / 2
	if shells == 0 || len(a) != n*n*n || len(b) != n*n*n {
		return nil
	}

	fa := fft3D(a, n)
	fb := fft3D(b, n)

	num := make([]float64, shells)
	powA := make([]float64, shells)
	powB := make([]float64, shells)
	for z := 0; z < n; z++ {
		fz := frequency(z, n)
		for y := 0; y < n; y++ {
			fy := frequency(y, n)
			for x := 0; x < n; x++ {
				fx := frequency(x, n)
				shell := int(math.Round(math.Sqrt(float64(fx*fx + fy*fy + fz*fz))))
				if shell >= shells {
					continue
				}

				i := z*n*n + y*n + x
				ca, cb := fa[i], fb[i]
				num[shell] += real(ca)*real(cb) + imag(ca)*imag(cb)
				powA[shell] += real(ca)*real(ca) + imag(ca)*imag(ca)
				powB[shell] += real(cb)*real(cb) + imag(cb)*imag(cb)
			}
		}
	}

	fsc := make([]float64, shells)
	for s := range fsc {
		if den := math.Sqrt(powA[s] * powB[s]); den > 0 {
			fsc[s] = num[s] / den
		}
	}
	return fsc
}
