package recon

import (
	"fmt"

	"github.com/tomography/orthorec/pkg/device"
)

// RampFilter applies the filtering half of filtered backprojection: each
// detector row is transformed to the frequency domain, weighted by a
// parzen-windowed ramp, and transformed back. The weighting vector is
// built once per detector width and broadcast across all rows.
type RampFilter struct {
	width int
	w     []float64
}

// NewRampFilter builds the filter for one detector row width.
func NewRampFilter(width int) *RampFilter {
	return &RampFilter{width: width, w: ParzenWeights(width)}
}

// ParzenWeights evaluates w(f) = f * (1 - 2f)^3 at the real-FFT frequency
// bins of a row of the given width, f in [0, 0.5]. The window is zero at
// DC and at the Nyquist bin, suppressing the noise amplification of a
// plain ramp.
func ParzenWeights(width int) []float64 {
	n := width/2 + 1
	w := make([]float64, n)
	for i := range w {
		f := float64(i) / float64(width)
		t := 1 - 2*f
		w[i] = f * t * t * t
	}
	return w
}

// Apply filters every projection of the chunk in place. Rows are
// transformed one at a time to bound peak FFT workspace.
func (f *RampFilter) Apply(b device.Backend, chunk *device.Array) error {
	if chunk.Dim(chunk.NDim()-1) != f.width {
		return fmt.Errorf("recon: filter built for width %d applied to %v", f.width, chunk.Shape())
	}
	return b.FilterRows(chunk, f.w)
}
