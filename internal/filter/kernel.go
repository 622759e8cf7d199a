package filter

import (
	"math"

	"github.com/gogpu/ggpaint/internal/cache"
)

// MaxRadius is the largest Gaussian radius accepted by the workspace.
const MaxRadius = 64

// GaussianKernel generates a 1D Gaussian kernel with standard deviation
// radius. The kernel is normalized so all values sum to 1.0.
//
// The kernel size is 2 * ceil(radius * 3) + 1, which covers 99.7% of the
// distribution. For radius <= 0 it is the identity kernel [1.0].
func GaussianKernel(radius float64) []float32 {
	if radius <= 0 {
		return []float32{1.0}
	}

	half := KernelSize(radius) / 2
	kernel := make([]float32, 2*half+1)

	// exp(-x²/(2σ²)); the constant factor cancels when normalizing.
	twoSigmaSq := 2 * radius * radius
	sum := 0.0
	for i := range kernel {
		x := float64(i - half)
		v := math.Exp(-(x * x) / twoSigmaSq)
		kernel[i] = float32(v)
		sum += v
	}
	inv := float32(1 / sum)
	for i := range kernel {
		kernel[i] *= inv
	}
	return kernel
}

// KernelSize returns the number of taps of the Gaussian kernel for radius.
func KernelSize(radius float64) int {
	if radius <= 0 {
		return 1
	}
	return 2*int(math.Ceil(radius*3)) + 1
}

// kernels caches Gaussian kernels by radius quantized to 0.01 pixels.
var kernels = cache.New[int, []float32](64)

// CachedGaussianKernel returns a shared Gaussian kernel for radius. The
// result must not be modified.
func CachedGaussianKernel(radius float64) []float32 {
	key := int(math.Round(radius * 100))
	return kernels.GetOrCreate(key, func() []float32 {
		return GaussianKernel(float64(key) / 100)
	})
}
