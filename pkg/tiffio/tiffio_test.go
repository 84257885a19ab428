package tiffio

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func TestCenterPath(t *testing.T) {
	got := CenterPath(filepath.Join("/data", "scan5.h5"), 1, 612.25)
	want := filepath.Join("/data_rec", "try_rec", "scan5", "bin1", "r_612.25.tiff")
	assert.Equal(t, want, got)
}

func TestCenterPathRounding(t *testing.T) {
	// nearby centers may collide after rounding; that is accepted
	a := CenterPath("/data/s.h5", 0, 100.004)
	b := CenterPath("/data/s.h5", 0, 100.001)
	assert.Equal(t, a, b)
}

func TestCenterPathIn(t *testing.T) {
	got := CenterPathIn("/out", filepath.Join("/data", "scan.h5"), 2, 50)
	want := filepath.Join("/out", "try_rec", "scan", "bin2", "r_50.00.tiff")
	assert.Equal(t, want, got)
}

func TestWriteSliceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "r_10.00.tiff")

	const w, h = 6, 4
	data := make([]float32, w*h)
	for i := range data {
		data[i] = float32(i)
	}
	require.NoError(t, WriteSlice(path, data, w, h))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := tiff.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, w, h), img.Bounds())
	// min maps to black, max to full scale
	r0, _, _, _ := img.At(0, 0).RGBA()
	rN, _, _, _ := img.At(w-1, h-1).RGBA()
	assert.EqualValues(t, 0, r0)
	assert.EqualValues(t, 65535, rN)
}

func TestWriteSliceConstantImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flat.tiff")
	data := []float32{3, 3, 3, 3}
	require.NoError(t, WriteSlice(path, data, 2, 2))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := tiff.Decode(f)
	require.NoError(t, err)
	r, _, _, _ := img.At(1, 1).RGBA()
	assert.EqualValues(t, 0, r)
}

func TestWriteSliceSizeMismatch(t *testing.T) {
	err := WriteSlice(filepath.Join(t.TempDir(), "x.tiff"), make([]float32, 5), 2, 2)
	assert.Error(t, err)
}
