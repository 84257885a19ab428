package recon

import (
	"fmt"

	"github.com/tomography/orthorec/pkg/device"
)

// Assembler invokes the backprojection kernels for the three orthogonal
// planes and stitches their outputs side by side into one composite image
// per trial center. Assembly is pure concatenation: given identical
// kernel outputs, the composite is bitwise identical.
type Assembler struct {
	b device.Backend
	k Kernels
}

// NewAssembler binds the kernel contract to a backend.
func NewAssembler(b device.Backend, k Kernels) *Assembler {
	return &Assembler{b: b, k: k}
}

// Backproject reconstructs the partial composite for one filtered chunk.
// The composite is shaped [nCenters, width, 3*width]: the X plane fills
// columns [0, w), Y [w, 2w), Z [2w, 3w). Each plane occupies only its own
// row extent, top-aligned; the extents are independent per plane
// (X and Y span the detector height, Z the detector width).
func (s *Assembler) Backproject(chunk, angles, centers *device.Array, idx, idy, idz int) (*device.Array, error) {
	if chunk.NDim() != 3 {
		return nil, fmt.Errorf("recon: backprojection of %v, want 3 dimensions", chunk.Shape())
	}
	w := chunk.Dim(2)
	nc := centers.Len()
	out, err := s.b.Zeros(nc, w, 3*w)
	if err != nil {
		return nil, fmt.Errorf("recon: composite allocation: %w", err)
	}
	planes := []struct {
		name string
		run  func() (*device.Array, error)
		col  int
	}{
		{"x", func() (*device.Array, error) { return s.k.PlaneX(chunk, angles, centers, idx) }, 0},
		{"y", func() (*device.Array, error) { return s.k.PlaneY(chunk, angles, centers, idy) }, w},
		{"z", func() (*device.Array, error) { return s.k.PlaneZ(chunk, angles, centers, idz) }, 2 * w},
	}
	for _, p := range planes {
		part, err := p.run()
		if err != nil {
			s.b.Free(out)
			return nil, fmt.Errorf("recon: plane %s kernel: %w", p.name, err)
		}
		err = s.b.Insert(out, part, p.col)
		s.b.Free(part)
		if err != nil {
			s.b.Free(out)
			return nil, fmt.Errorf("recon: plane %s assembly: %w", p.name, err)
		}
	}
	return out, nil
}
