// Package dataset provides read-only streaming access to tomographic
// projection datasets: projection frames, dark/flat reference stacks and
// per-frame rotation angles.
package dataset

// Source exposes one scan for range-indexed reads. Implementations own
// the underlying storage for their lifetime; callers borrow the returned
// buffers. Reads never require loading the full projection array.
type Source interface {
	// Dims returns projection frame count, frame height and frame width.
	Dims() (frames, height, width int)

	// ReadProjections returns frames [start, end) as a contiguous
	// [end-start, height, width] float32 buffer.
	ReadProjections(start, end int) ([]float32, error)

	// ReadAngles returns the rotation angles for frames [start, end),
	// in radians.
	ReadAngles(start, end int) ([]float32, error)

	// ReadDark returns the full dark reference stack and its frame count.
	ReadDark() ([]float32, int, error)

	// ReadFlat returns the full flat reference stack and its frame count.
	ReadFlat() ([]float32, int, error)

	Close() error
}
