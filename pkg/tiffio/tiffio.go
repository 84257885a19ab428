// Package tiffio writes reconstructed slices as TIFF files, one per
// trial rotation center.
package tiffio

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

// CenterPath builds the output path for one trial center, encoding the
// input file's directory and base name, the binning level and the center
// value to two decimal places:
//
//	<dir>_rec/try_rec/<base>/bin<level>/r_<center>.tiff
//
// Centers that collide after rounding overwrite each other; callers pick
// a sweep step coarse enough for the formatting precision.
func CenterPath(input string, binLevel int, center float32) string {
	return CenterPathIn("", input, binLevel, center)
}

// CenterPathIn is CenterPath with the output root overridden; an empty
// root falls back to "<input dir>_rec".
func CenterPathIn(root, input string, binLevel int, center float32) string {
	if root == "" {
		root = filepath.Dir(input) + "_rec"
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(root, "try_rec", base,
		fmt.Sprintf("bin%d", binLevel), fmt.Sprintf("r_%.2f.tiff", center))
}

// WriteSlice saves one width x height float32 image as a deflate
// compressed 16-bit grayscale TIFF, creating parent directories as
// needed. Values are min/max scaled to the full 16-bit range; a constant
// image maps to black. Existing files are overwritten.
func WriteSlice(path string, data []float32, width, height int) error {
	if len(data) != width*height {
		return fmt.Errorf("tiffio: %d values for %dx%d image", len(data), width, height)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("tiffio: create output directory: %w", err)
	}
	lo, hi := data[0], data[0]
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	scale := float32(0)
	if hi > lo {
		scale = 65535 / (hi - lo)
	}
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint16((data[y*width+x] - lo) * scale)
			// Gray16 stores big-endian samples.
			img.Pix[2*(y*width+x)] = uint8(v >> 8)
			img.Pix[2*(y*width+x)+1] = uint8(v)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tiffio: create %s: %w", path, err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("tiffio: encode %s: %w", path, err)
	}
	return nil
}
