package device

// Backend is the capability contract between the reconstruction pipeline
// and a compute device. All arrays passed to an op must originate from the
// same backend.
//
// Elementwise ops mutate in place unless documented otherwise. Shape
// mismatches are reported as errors; numerical edge cases (division by
// tiny denominators, non-positive log inputs) are handled by clamping as
// documented per op, never by returning an error.
type Backend interface {
	// Zeros allocates a zero-filled array of the given shape.
	Zeros(shape ...int) (*Array, error)

	// Upload copies host data into a new device array of the given shape.
	// len(src) must equal the shape's element count.
	Upload(src []float32, shape ...int) (*Array, error)

	// Download copies an array back to host memory.
	Download(a *Array) []float32

	// Free releases one array. Freeing an already-freed array is a no-op.
	Free(a *Array)

	// Arena reports the allocation tracker for this backend.
	Arena() *Arena

	// Add accumulates src into dst elementwise. Shapes must be equal.
	Add(dst, src *Array) error

	// Sub computes dst = a - b elementwise. dst may alias a or b.
	Sub(dst, a, b *Array) error

	// Scale multiplies every element of a by s.
	Scale(a *Array, s float32)

	// SubFrames subtracts ref from every leading-axis frame of stack.
	// ref's shape must equal one frame of stack.
	SubFrames(stack, ref *Array) error

	// DivFramesMax divides every leading-axis frame of stack by
	// max(den, eps) elementwise, guarding against tiny denominators.
	DivFramesMax(stack, den *Array, eps float32) error

	// NegLog replaces every element v with -log(max(v, eps)).
	NegLog(a *Array, eps float32)

	// ZeroNonFinite replaces every NaN or infinite element with 0.
	ZeroNonFinite(a *Array)

	// MeanAxis0 reduces the leading axis by arithmetic mean.
	MeanAxis0(a *Array) (*Array, error)

	// MedianAxis0 reduces the leading axis by per-element median.
	MedianAxis0(a *Array) (*Array, error)

	// BinHalf halves both trailing spatial axes by averaging adjacent
	// element pairs. Both trailing extents must be even.
	BinHalf(a *Array) (*Array, error)

	// FilterRows multiplies each trailing-axis row's real-FFT spectrum by
	// w (len = width/2 + 1) and inverse transforms in place. Rows are
	// processed one at a time to bound transform workspace.
	FilterRows(a *Array, w []float64) error

	// Insert copies src, shaped [n, rows, width], into dst, shaped
	// [n, h, cw], top-aligned at column offset col. Requires rows <= h and
	// col+width <= cw. The copy is elementwise exact.
	Insert(dst, src *Array, col int) error
}
