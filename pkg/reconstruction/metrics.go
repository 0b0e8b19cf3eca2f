package reconstruction

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"sirt3d/internal/models"
	"sirt3d/pkg/sirt"
)

// fscThreshold is the FSC value whose first crossing defines the resolution shell.
const fscThreshold = 0.5

// ValidationMetrics holds the reconstruction quality metrics measured
// against a reference volume.
type ValidationMetrics struct {
	// RMSE is the root mean square voxel difference.
	RMSE float64

	// Correlation is the Pearson correlation of the voxel intensities.
	Correlation float64

	// SSIM is the global structural similarity index, using the
	// reference's intensity range as dynamic range.
	SSIM float64

	// MI approximates the mutual information under a Gaussian model,
	// -0.5*log(1-rho^2).
	MI float64

	// FSC is the Fourier shell correlation per integer shell radius, up to Nyquist.
	FSC []float64

	// ResolutionShell is the first shell beyond the origin whose FSC drops
	// below 0.5, or len(FSC) when it never does.
	ResolutionShell int
}

// Validate scores reconstructed against reference.
func Validate(reference, reconstructed *models.Volume) (ValidationMetrics, error) {
	if reference.Size != reconstructed.Size || len(reference.Data) != len(reconstructed.Data) {
		return ValidationMetrics{}, fmt.Errorf("%w: reference edge %d, reconstruction edge %d",
			sirt.ErrShapeMismatch, reference.Size, reconstructed.Size)
	}

	m := ValidationMetrics{
		RMSE:        calculateRMSE(reference.Data, reconstructed.Data),
		Correlation: calculateCorrelation(reference.Data, reconstructed.Data),
		SSIM:        calculateSSIM(reference.Data, reconstructed.Data),
		FSC:         calculateFSC(reference.Data, reconstructed.Data, reference.Size),
	}
	m.MI = calculateMutualInformation(m.Correlation)
	m.ResolutionShell = resolutionShell(m.FSC)
	return m, nil
}

// calculateRMSE computes the root mean square error
func calculateRMSE(original, reconstructed []float64) float64 {
	n := len(original)
	if n != len(reconstructed) || n == 0 {
		return 0
	}
	return floats.Distance(original, reconstructed, 2) / math.Sqrt(float64(n))
}

func calculateCorrelation(original, reconstructed []float64) float64 {
	if len(original) != len(reconstructed) || len(original) < 2 {
		return 0
	}
	if stat.Variance(original, nil) == 0 || stat.Variance(reconstructed, nil) == 0 {
		return 0
	}
	return stat.Correlation(original, reconstructed, nil)
}

// calculateSSIM computes the Structural Similarity Index
func calculateSSIM(original, reconstructed []float64) float64 {
	const k1 = 0.01
	const k2 = 0.03

	n := len(original)
	if n != len(reconstructed) || n == 0 {
		return 0
	}

	L := floats.Max(original) - floats.Min(original)
	if L == 0 {
		L = 1
	}
	c1 := (k1 * L) * (k1 * L)
	c2 := (k2 * L) * (k2 * L)

	muX := stat.Mean(original, nil)
	muY := stat.Mean(reconstructed, nil)
	sigmaX := stat.Variance(original, nil)
	sigmaY := stat.Variance(reconstructed, nil)
	sigmaXY := stat.Covariance(original, reconstructed, nil)

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)
	if den > 0 {
		return num / den
	}
	return 0
}

// calculateMutualInformation returns the mutual information of two jointly
// Gaussian variables with correlation rho.
func calculateMutualInformation(rho float64) float64 {
	d := 1 - rho*rho
	if d <= 0 {
		return math.Inf(1)
	}
	return -0.5 * math.Log(d)
}

func resolutionShell(fsc []float64) int {
	for k := 1; k < len(fsc); k++ {
		if fsc[k] < fscThreshold {
			return k
		}
	}
	return len(fsc)
}
