// Package device models device-resident float32 arrays and the narrow
// capability surface the reconstruction pipeline needs from a compute
// backend: allocation, elementwise arithmetic, axis-0 reductions, 2x2
// average binning and a real-FFT row filter.
//
// The pipeline, correction chain and filter are written against the
// Backend interface only, so a GPU-accelerated backend can be substituted
// without changing any reconstruction logic. The CPU backend in this
// package is both the reference implementation and the production backend
// of this repository.
package device

import "fmt"

// Array is a dense row-major float32 array held by a Backend.
// Arrays are created through a Backend and tracked by its Arena until
// freed; the shape is immutable after allocation.
type Array struct {
	data  []float32
	shape []int
}

// Shape returns the array dimensions. The returned slice must not be mutated.
func (a *Array) Shape() []int {
	return a.shape
}

// NDim returns the number of dimensions.
func (a *Array) NDim() int {
	return len(a.shape)
}

// Dim returns the extent along axis i.
func (a *Array) Dim(i int) int {
	return a.shape[i]
}

// Len returns the total number of elements.
func (a *Array) Len() int {
	return len(a.data)
}

// Data exposes the backing buffer in row-major order. Backends and kernel
// implementations use it directly; pipeline code goes through Backend ops.
func (a *Array) Data() []float32 {
	return a.data
}

// sizeOf returns the element count for a shape, validating positivity.
func sizeOf(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("device: empty shape")
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("device: non-positive dimension in shape %v", shape)
		}
		n *= d
	}
	return n, nil
}

// sameShape reports whether two arrays have identical shapes.
func sameShape(a, b *Array) bool {
	if len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	return true
}
