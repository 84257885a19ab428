package device

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
)

// CPU is the reference Backend. It keeps arrays in host memory and
// implements the transform pair with gonum's real FFT. It is safe for the
// two concurrent pipeline roles because no two in-flight ops ever touch
// the same array (guaranteed by the scheduler's per-step join).
type CPU struct {
	arena *Arena
}

// NewCPU returns a CPU backend with a fresh arena.
func NewCPU() *CPU {
	return &CPU{arena: NewArena()}
}

// Arena returns the backend's allocation tracker.
func (c *CPU) Arena() *Arena {
	return c.arena
}

// Zeros allocates a zero-filled array.
func (c *CPU) Zeros(shape ...int) (*Array, error) {
	n, err := sizeOf(shape)
	if err != nil {
		return nil, err
	}
	a := &Array{data: make([]float32, n), shape: append([]int(nil), shape...)}
	c.arena.track(a)
	return a, nil
}

// Upload copies host data into a new array.
func (c *CPU) Upload(src []float32, shape ...int) (*Array, error) {
	n, err := sizeOf(shape)
	if err != nil {
		return nil, err
	}
	if len(src) != n {
		return nil, fmt.Errorf("device: upload of %d elements into shape %v", len(src), shape)
	}
	a := &Array{data: make([]float32, n), shape: append([]int(nil), shape...)}
	copy(a.data, src)
	c.arena.track(a)
	return a, nil
}

// Download copies an array back to host memory.
func (c *CPU) Download(a *Array) []float32 {
	out := make([]float32, len(a.data))
	copy(out, a.data)
	return out
}

// Free releases one array.
func (c *CPU) Free(a *Array) {
	if a == nil || a.data == nil {
		return
	}
	a.data = nil
	c.arena.untrack(a)
}

// Add accumulates src into dst elementwise.
func (c *CPU) Add(dst, src *Array) error {
	if !sameShape(dst, src) {
		return fmt.Errorf("device: add shape mismatch %v vs %v", dst.shape, src.shape)
	}
	for i, v := range src.data {
		dst.data[i] += v
	}
	return nil
}

// Sub computes dst = a - b elementwise.
func (c *CPU) Sub(dst, a, b *Array) error {
	if !sameShape(a, b) || !sameShape(dst, a) {
		return fmt.Errorf("device: sub shape mismatch %v, %v, %v", dst.shape, a.shape, b.shape)
	}
	for i := range dst.data {
		dst.data[i] = a.data[i] - b.data[i]
	}
	return nil
}

// Scale multiplies every element by s.
func (c *CPU) Scale(a *Array, s float32) {
	for i := range a.data {
		a.data[i] *= s
	}
}

// SubFrames subtracts ref from every leading-axis frame of stack.
func (c *CPU) SubFrames(stack, ref *Array) error {
	fs := ref.Len()
	if stack.NDim() < 2 || stack.Len()%fs != 0 || stack.Len()/stack.Dim(0) != fs {
		return fmt.Errorf("device: frame shape %v does not tile stack %v", ref.shape, stack.shape)
	}
	for k := 0; k < stack.Dim(0); k++ {
		frame := stack.data[k*fs : (k+1)*fs]
		for i := range frame {
			frame[i] -= ref.data[i]
		}
	}
	return nil
}

// DivFramesMax divides every leading-axis frame of stack by max(den, eps).
func (c *CPU) DivFramesMax(stack, den *Array, eps float32) error {
	fs := den.Len()
	if stack.NDim() < 2 || stack.Len()%fs != 0 || stack.Len()/stack.Dim(0) != fs {
		return fmt.Errorf("device: frame shape %v does not tile stack %v", den.shape, stack.shape)
	}
	for k := 0; k < stack.Dim(0); k++ {
		frame := stack.data[k*fs : (k+1)*fs]
		for i := range frame {
			d := den.data[i]
			if d < eps {
				d = eps
			}
			frame[i] /= d
		}
	}
	return nil
}

// NegLog replaces every element v with -log(max(v, eps)).
func (c *CPU) NegLog(a *Array, eps float32) {
	for i, v := range a.data {
		if v < eps {
			v = eps
		}
		a.data[i] = float32(-math.Log(float64(v)))
	}
}

// ZeroNonFinite replaces every NaN or infinite element with 0.
func (c *CPU) ZeroNonFinite(a *Array) {
	for i, v := range a.data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			a.data[i] = 0
		}
	}
}

// MeanAxis0 reduces the leading axis by arithmetic mean.
func (c *CPU) MeanAxis0(a *Array) (*Array, error) {
	if a.NDim() < 2 {
		return nil, fmt.Errorf("device: mean over axis 0 of %v", a.shape)
	}
	frames := a.Dim(0)
	fs := a.Len() / frames
	out, err := c.Zeros(a.shape[1:]...)
	if err != nil {
		return nil, err
	}
	for i := 0; i < fs; i++ {
		var sum float64
		for k := 0; k < frames; k++ {
			sum += float64(a.data[k*fs+i])
		}
		out.data[i] = float32(sum / float64(frames))
	}
	return out, nil
}

// MedianAxis0 reduces the leading axis by per-element median.
func (c *CPU) MedianAxis0(a *Array) (*Array, error) {
	if a.NDim() < 2 {
		return nil, fmt.Errorf("device: median over axis 0 of %v", a.shape)
	}
	frames := a.Dim(0)
	fs := a.Len() / frames
	out, err := c.Zeros(a.shape[1:]...)
	if err != nil {
		return nil, err
	}
	scratch := make([]float64, frames)
	for i := 0; i < fs; i++ {
		for k := 0; k < frames; k++ {
			scratch[k] = float64(a.data[k*fs+i])
		}
		sort.Float64s(scratch)
		if frames%2 == 0 {
			out.data[i] = float32((scratch[frames/2-1] + scratch[frames/2]) / 2)
		} else {
			out.data[i] = float32(scratch[frames/2])
		}
	}
	return out, nil
}

// BinHalf halves both trailing spatial axes by averaging 2x2 blocks.
func (c *CPU) BinHalf(a *Array) (*Array, error) {
	nd := a.NDim()
	if nd < 2 {
		return nil, fmt.Errorf("device: binning needs at least 2 dimensions, got %v", a.shape)
	}
	h, w := a.Dim(nd-2), a.Dim(nd-1)
	if h%2 != 0 || w%2 != 0 {
		return nil, fmt.Errorf("device: binning requires even trailing dimensions, got %dx%d", h, w)
	}
	outShape := append([]int(nil), a.shape...)
	outShape[nd-2] = h / 2
	outShape[nd-1] = w / 2
	out, err := c.Zeros(outShape...)
	if err != nil {
		return nil, err
	}
	frames := a.Len() / (h * w)
	oh, ow := h/2, w/2
	for k := 0; k < frames; k++ {
		src := a.data[k*h*w : (k+1)*h*w]
		dst := out.data[k*oh*ow : (k+1)*oh*ow]
		for y := 0; y < oh; y++ {
			r0 := src[2*y*w : (2*y+1)*w]
			r1 := src[(2*y+1)*w : (2*y+2)*w]
			for x := 0; x < ow; x++ {
				dst[y*ow+x] = 0.25 * (r0[2*x] + r0[2*x+1] + r1[2*x] + r1[2*x+1])
			}
		}
	}
	return out, nil
}

// FilterRows multiplies each row's real-FFT spectrum by w and inverse
// transforms in place. gonum's inverse is unnormalized, so the result is
// rescaled by 1/width.
func (c *CPU) FilterRows(a *Array, w []float64) error {
	nd := a.NDim()
	if nd < 1 {
		return fmt.Errorf("device: filter of scalar array")
	}
	width := a.Dim(nd - 1)
	if len(w) != width/2+1 {
		return fmt.Errorf("device: filter length %d for width %d (want %d)", len(w), width, width/2+1)
	}
	fft := fourier.NewFFT(width)
	seq := make([]float64, width)
	coeff := make([]complex128, width/2+1)
	inv := 1 / float64(width)
	rows := a.Len() / width
	for r := 0; r < rows; r++ {
		row := a.data[r*width : (r+1)*width]
		for i, v := range row {
			seq[i] = float64(v)
		}
		fft.Coefficients(coeff, seq)
		for i := range coeff {
			coeff[i] *= complex(w[i], 0)
		}
		fft.Sequence(seq, coeff)
		for i := range row {
			row[i] = float32(seq[i] * inv)
		}
	}
	return nil
}

// Insert copies src [n, rows, width] into dst [n, h, cw] at column col.
func (c *CPU) Insert(dst, src *Array, col int) error {
	if dst.NDim() != 3 || src.NDim() != 3 || dst.Dim(0) != src.Dim(0) {
		return fmt.Errorf("device: insert of %v into %v", src.shape, dst.shape)
	}
	n, rows, width := src.Dim(0), src.Dim(1), src.Dim(2)
	h, cw := dst.Dim(1), dst.Dim(2)
	if rows > h || col < 0 || col+width > cw {
		return fmt.Errorf("device: insert region %dx%d at column %d exceeds %dx%d", rows, width, col, h, cw)
	}
	for k := 0; k < n; k++ {
		for y := 0; y < rows; y++ {
			d := dst.data[(k*h+y)*cw+col:]
			s := src.data[(k*rows+y)*width : (k*rows+y+1)*width]
			copy(d[:width], s)
		}
	}
	return nil
}
