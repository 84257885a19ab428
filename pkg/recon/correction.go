package recon

import (
	"fmt"

	"github.com/tomography/orthorec/pkg/device"
)

// Eps clamps denominators and log arguments throughout the correction
// chain. Dead or saturated detector pixels routinely produce values at or
// below this threshold; they are clamped rather than surfaced as errors.
const Eps = 1e-6

// DarkFlat normalizes every projection of chunk in place:
// (frame - dark) / max(flat - dark, Eps), per pixel.
func DarkFlat(b device.Backend, chunk, dark, flat *device.Array) error {
	den, err := b.Zeros(dark.Shape()...)
	if err != nil {
		return fmt.Errorf("recon: dark/flat denominator: %w", err)
	}
	defer b.Free(den)
	if err := b.Sub(den, flat, dark); err != nil {
		return fmt.Errorf("recon: dark/flat denominator: %w", err)
	}
	if err := b.SubFrames(chunk, dark); err != nil {
		return fmt.Errorf("recon: dark subtraction: %w", err)
	}
	if err := b.DivFramesMax(chunk, den, Eps); err != nil {
		return fmt.Errorf("recon: flat division: %w", err)
	}
	return nil
}

// MinusLog converts transmission intensities to attenuation-path
// integrals: -log(max(v, Eps)) elementwise, in place. Zero and negative
// inputs are clamped and never reach the logarithm.
func MinusLog(b device.Backend, chunk *device.Array) {
	b.NegLog(chunk, Eps)
}

// Sanitize zeroes any NaN or infinite value remaining in chunk. It is a
// safety net for corrupted readings that survive the clamps upstream,
// e.g. exact zeros introduced by binning.
func Sanitize(b device.Backend, chunk *device.Array) {
	b.ZeroNonFinite(chunk)
}

// Correct runs the full correction chain on a chunk, in fixed order:
// dark/flat normalization, negative log, non-finite sanitization.
func Correct(b device.Backend, chunk, dark, flat *device.Array) error {
	if err := DarkFlat(b, chunk, dark, flat); err != nil {
		return err
	}
	MinusLog(b, chunk)
	Sanitize(b, chunk)
	return nil
}
