// Package kernels provides a CPU reference implementation of the
// backprojection kernel contract: parallel-beam filtered backprojection
// onto three fixed orthogonal planes, evaluated for every trial rotation
// center simultaneously.
//
// A point (x, y) of a slice maps to detector coordinate
// u = (x - n/2)*cos(theta) + (y - n/2)*sin(theta) + center, sampled with
// linear interpolation along the detector row. Contributions falling
// outside the detector are dropped. No intensity normalization is applied
// here; the pipeline divides the accumulated result by the total
// projection count.
package kernels

import (
	"fmt"
	"math"

	"github.com/tomography/orthorec/pkg/device"
)

// Ortho backprojects filtered chunks onto the three orthogonal planes.
type Ortho struct {
	b device.Backend
}

// New binds the kernels to the backend used for output allocation.
func New(b device.Backend) *Ortho {
	return &Ortho{b: b}
}

func chunkDims(chunk, angles *device.Array) (np, nz, n int, err error) {
	if chunk.NDim() != 3 {
		return 0, 0, 0, fmt.Errorf("kernels: chunk shape %v, want 3 dimensions", chunk.Shape())
	}
	np, nz, n = chunk.Dim(0), chunk.Dim(1), chunk.Dim(2)
	if angles.Len() != np {
		return 0, 0, 0, fmt.Errorf("kernels: %d angles for %d projections", angles.Len(), np)
	}
	return np, nz, n, nil
}

// PlaneX reconstructs the plane x = idx. Result shape [nCenters, nz, n]:
// detector rows by the slice's y axis.
func (o *Ortho) PlaneX(chunk, angles, centers *device.Array, idx int) (*device.Array, error) {
	np, nz, n, err := chunkDims(chunk, angles)
	if err != nil {
		return nil, err
	}
	cs := centers.Data()
	out, err := o.b.Zeros(len(cs), nz, n)
	if err != nil {
		return nil, err
	}
	data, th, od := chunk.Data(), angles.Data(), out.Data()
	half := float64(n) / 2
	for a := 0; a < np; a++ {
		sin, cos := math.Sincos(float64(th[a]))
		frame := data[a*nz*n : (a+1)*nz*n]
		for ci, c := range cs {
			base := (float64(idx)-half)*cos + float64(c)
			for y := 0; y < n; y++ {
				u := base + (float64(y)-half)*sin
				i0 := int(math.Floor(u))
				if i0 < 0 || i0+1 >= n {
					continue
				}
				f := float32(u - float64(i0))
				for z := 0; z < nz; z++ {
					od[(ci*nz+z)*n+y] += (1-f)*frame[z*n+i0] + f*frame[z*n+i0+1]
				}
			}
		}
	}
	return out, nil
}

// PlaneY reconstructs the plane y = idy. Result shape [nCenters, nz, n]:
// detector rows by the slice's x axis.
func (o *Ortho) PlaneY(chunk, angles, centers *device.Array, idy int) (*device.Array, error) {
	np, nz, n, err := chunkDims(chunk, angles)
	if err != nil {
		return nil, err
	}
	cs := centers.Data()
	out, err := o.b.Zeros(len(cs), nz, n)
	if err != nil {
		return nil, err
	}
	data, th, od := chunk.Data(), angles.Data(), out.Data()
	half := float64(n) / 2
	for a := 0; a < np; a++ {
		sin, cos := math.Sincos(float64(th[a]))
		frame := data[a*nz*n : (a+1)*nz*n]
		for ci, c := range cs {
			base := (float64(idy)-half)*sin + float64(c)
			for x := 0; x < n; x++ {
				u := base + (float64(x)-half)*cos
				i0 := int(math.Floor(u))
				if i0 < 0 || i0+1 >= n {
					continue
				}
				f := float32(u - float64(i0))
				for z := 0; z < nz; z++ {
					od[(ci*nz+z)*n+x] += (1-f)*frame[z*n+i0] + f*frame[z*n+i0+1]
				}
			}
		}
	}
	return out, nil
}

// PlaneZ reconstructs the axial plane z = idz from detector row idz.
// Result shape [nCenters, n, n].
func (o *Ortho) PlaneZ(chunk, angles, centers *device.Array, idz int) (*device.Array, error) {
	np, nz, n, err := chunkDims(chunk, angles)
	if err != nil {
		return nil, err
	}
	if idz < 0 || idz >= nz {
		return nil, fmt.Errorf("kernels: z slice %d outside %d detector rows", idz, nz)
	}
	cs := centers.Data()
	out, err := o.b.Zeros(len(cs), n, n)
	if err != nil {
		return nil, err
	}
	data, th, od := chunk.Data(), angles.Data(), out.Data()
	half := float64(n) / 2
	for a := 0; a < np; a++ {
		sin, cos := math.Sincos(float64(th[a]))
		row := data[(a*nz+idz)*n : (a*nz+idz+1)*n]
		for ci, c := range cs {
			for y := 0; y < n; y++ {
				base := (float64(y)-half)*sin + float64(c)
				for x := 0; x < n; x++ {
					u := base + (float64(x)-half)*cos
					i0 := int(math.Floor(u))
					if i0 < 0 || i0+1 >= n {
						continue
					}
					f := float32(u - float64(i0))
					od[(ci*n+y)*n+x] += (1-f)*row[i0] + f*row[i0+1]
				}
			}
		}
	}
	return out, nil
}
