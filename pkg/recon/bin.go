// Package recon implements orthogonal-slice tomographic reconstruction
// with a rotation-center sweep: projection correction and filtering,
// backprojection assembly, and the chunked transfer/compute pipeline that
// drives them.
package recon

import (
	"fmt"

	"github.com/tomography/orthorec/pkg/device"
)

// Bin applies level halving-averaging passes to both trailing spatial
// axes of a. Each pass halves the extents by averaging adjacent element
// pairs. Intermediate arrays, including the input when level > 0, are
// freed; the caller owns only the returned array.
func Bin(b device.Backend, a *device.Array, level int) (*device.Array, error) {
	if level < 0 {
		return nil, fmt.Errorf("recon: negative binning level %d", level)
	}
	cur := a
	for i := 0; i < level; i++ {
		next, err := b.BinHalf(cur)
		if err != nil {
			return nil, fmt.Errorf("recon: binning pass %d: %w", i, err)
		}
		b.Free(cur)
		cur = next
	}
	return cur, nil
}

// CheckBinnable verifies that a height x width frame can survive level
// halving passes, i.e. both extents are divisible by 2^level. Violations
// are precondition failures and abort the run.
func CheckBinnable(height, width, level int) error {
	if level < 0 {
		return fmt.Errorf("recon: negative binning level %d", level)
	}
	div := 1 << uint(level)
	if height%div != 0 || width%div != 0 {
		return fmt.Errorf("recon: frame %dx%d not divisible by 2^%d", height, width, level)
	}
	return nil
}
