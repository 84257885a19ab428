package recon

import "github.com/tomography/orthorec/pkg/device"

// Kernels is the backprojection kernel contract. Each method maps a
// filtered projection chunk to the partial reconstruction of one
// orthogonal plane, for every trial center simultaneously.
//
// chunk is shaped [nProj, height, width], angles [nProj] in radians,
// centers [nCenters]. idx is the fixed slice index of the plane, in
// binned pixel coordinates. The result is shaped
// [nCenters, rows, width]; the row extent may differ per plane and is
// read back from the returned array rather than assumed. The kernel's
// numerical method is opaque to the pipeline.
type Kernels interface {
	PlaneX(chunk, angles, centers *device.Array, idx int) (*device.Array, error)
	PlaneY(chunk, angles, centers *device.Array, idy int) (*device.Array, error)
	PlaneZ(chunk, angles, centers *device.Array, idz int) (*device.Array, error)
}
