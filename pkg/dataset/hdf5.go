package dataset

import (
	"fmt"

	"gonum.org/v1/hdf5"
)

// Exchange group entry names used by tomography beamline HDF5 files.
const (
	pathData  = "exchange/data"
	pathWhite = "exchange/data_white"
	pathDark  = "exchange/data_dark"
	pathTheta = "exchange/theta"
)

// HDF5 reads a scan from an HDF5 file laid out with the exchange group
// convention. Projection reads use hyperslab selections so only the
// requested frame range is pulled from disk; the HDF5 library converts
// the stored element type to float32 on read.
type HDF5 struct {
	file  *hdf5.File
	data  *hdf5.Dataset
	white *hdf5.Dataset
	dark  *hdf5.Dataset
	theta *hdf5.Dataset

	frames, height, width int
}

// OpenHDF5 opens a scan for read-only streaming access.
func OpenHDF5(path string) (*HDF5, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	s := &HDF5{file: f}
	for _, e := range []struct {
		name string
		dst  **hdf5.Dataset
	}{
		{pathData, &s.data},
		{pathWhite, &s.white},
		{pathDark, &s.dark},
		{pathTheta, &s.theta},
	} {
		d, err := f.OpenDataset(e.name)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("dataset: missing entry %s in %s: %w", e.name, path, err)
		}
		*e.dst = d
	}
	dims, _, err := s.data.Space().SimpleExtentDims()
	if err != nil || len(dims) != 3 {
		s.Close()
		return nil, fmt.Errorf("dataset: %s must be a 3-dimensional stack (err: %v)", pathData, err)
	}
	s.frames, s.height, s.width = int(dims[0]), int(dims[1]), int(dims[2])
	return s, nil
}

// Dims returns projection frame count, frame height and frame width.
func (s *HDF5) Dims() (frames, height, width int) {
	return s.frames, s.height, s.width
}

// ReadProjections returns frames [start, end) via a hyperslab selection.
func (s *HDF5) ReadProjections(start, end int) ([]float32, error) {
	if start < 0 || end > s.frames || start >= end {
		return nil, fmt.Errorf("dataset: projection range [%d, %d) outside %d frames", start, end, s.frames)
	}
	count := end - start
	buf := make([]float32, count*s.height*s.width)
	filespace := s.data.Space()
	defer filespace.Close()
	dims := []uint{uint(count), uint(s.height), uint(s.width)}
	if err := filespace.SelectHyperslab([]uint{uint(start), 0, 0}, nil, dims, nil); err != nil {
		return nil, fmt.Errorf("dataset: projection selection [%d, %d): %w", start, end, err)
	}
	memspace, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return nil, fmt.Errorf("dataset: projection read buffer: %w", err)
	}
	defer memspace.Close()
	if err := s.data.ReadSubset(&buf, memspace, filespace); err != nil {
		return nil, fmt.Errorf("dataset: projection read [%d, %d): %w", start, end, err)
	}
	return buf, nil
}

// ReadAngles returns rotation angles for frames [start, end) in radians.
func (s *HDF5) ReadAngles(start, end int) ([]float32, error) {
	if start < 0 || end > s.frames || start >= end {
		return nil, fmt.Errorf("dataset: angle range [%d, %d) outside %d frames", start, end, s.frames)
	}
	count := end - start
	buf := make([]float32, count)
	filespace := s.theta.Space()
	defer filespace.Close()
	dims := []uint{uint(count)}
	if err := filespace.SelectHyperslab([]uint{uint(start)}, nil, dims, nil); err != nil {
		return nil, fmt.Errorf("dataset: angle selection [%d, %d): %w", start, end, err)
	}
	memspace, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return nil, fmt.Errorf("dataset: angle read buffer: %w", err)
	}
	defer memspace.Close()
	if err := s.theta.ReadSubset(&buf, memspace, filespace); err != nil {
		return nil, fmt.Errorf("dataset: angle read [%d, %d): %w", start, end, err)
	}
	return buf, nil
}

// ReadDark returns the full dark reference stack.
func (s *HDF5) ReadDark() ([]float32, int, error) {
	return s.readStack(s.dark, pathDark)
}

// ReadFlat returns the full flat reference stack.
func (s *HDF5) ReadFlat() ([]float32, int, error) {
	return s.readStack(s.white, pathWhite)
}

func (s *HDF5) readStack(d *hdf5.Dataset, name string) ([]float32, int, error) {
	dims, _, err := d.Space().SimpleExtentDims()
	if err != nil || len(dims) != 3 {
		return nil, 0, fmt.Errorf("dataset: %s must be a 3-dimensional stack (err: %v)", name, err)
	}
	if int(dims[1]) != s.height || int(dims[2]) != s.width {
		return nil, 0, fmt.Errorf("dataset: %s frame %dx%d does not match projections %dx%d",
			name, dims[1], dims[2], s.height, s.width)
	}
	n := int(dims[0])
	buf := make([]float32, n*s.height*s.width)
	if err := d.Read(&buf); err != nil {
		return nil, 0, fmt.Errorf("dataset: read %s: %w", name, err)
	}
	return buf, n, nil
}

// Close releases the HDF5 handles. Safe to call on a partially opened
// source.
func (s *HDF5) Close() error {
	for _, d := range []*hdf5.Dataset{s.data, s.white, s.dark, s.theta} {
		if d != nil {
			d.Close()
		}
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
