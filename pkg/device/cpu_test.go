package device

import (
	"math"
	"math/rand"
	"testing"
)

// TestZerosAndUpload verifies allocation shapes and arena tracking.
func TestZerosAndUpload(t *testing.T) {
	c := NewCPU()

	a, err := c.Zeros(2, 3, 4)
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}
	if a.Len() != 24 {
		t.Errorf("Expected 24 elements, got %d", a.Len())
	}
	if c.Arena().Live() != 1 {
		t.Errorf("Expected 1 live allocation, got %d", c.Arena().Live())
	}
	if c.Arena().Bytes() != 96 {
		t.Errorf("Expected 96 tracked bytes, got %d", c.Arena().Bytes())
	}

	src := make([]float32, 6)
	for i := range src {
		src[i] = float32(i)
	}
	b, err := c.Upload(src, 2, 3)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	got := c.Download(b)
	for i := range src {
		if got[i] != src[i] {
			t.Errorf("Download[%d] = %f, want %f", i, got[i], src[i])
		}
	}

	if _, err := c.Upload(src, 4, 4); err == nil {
		t.Error("Expected error uploading 6 elements into shape [4 4]")
	}
	if _, err := c.Zeros(); err == nil {
		t.Error("Expected error for empty shape")
	}

	c.Free(a)
	c.Free(b)
	if c.Arena().Live() != 0 {
		t.Errorf("Expected 0 live allocations after free, got %d", c.Arena().Live())
	}
}

// TestArenaRelease verifies that Release frees everything at once.
func TestArenaRelease(t *testing.T) {
	c := NewCPU()
	for i := 0; i < 5; i++ {
		if _, err := c.Zeros(4, 4); err != nil {
			t.Fatalf("Zeros failed: %v", err)
		}
	}
	if c.Arena().Live() != 5 {
		t.Fatalf("Expected 5 live allocations, got %d", c.Arena().Live())
	}
	c.Arena().Release()
	if c.Arena().Live() != 0 {
		t.Errorf("Expected 0 live allocations after release, got %d", c.Arena().Live())
	}
	if c.Arena().Bytes() != 0 {
		t.Errorf("Expected 0 tracked bytes after release, got %d", c.Arena().Bytes())
	}
}

// TestElementwiseOps covers Add, Sub, Scale and the frame-broadcast ops.
func TestElementwiseOps(t *testing.T) {
	c := NewCPU()

	a, _ := c.Upload([]float32{1, 2, 3, 4}, 2, 2)
	b, _ := c.Upload([]float32{10, 20, 30, 40}, 2, 2)

	if err := c.Add(a, b); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	want := []float32{11, 22, 33, 44}
	for i, v := range c.Download(a) {
		if v != want[i] {
			t.Errorf("Add[%d] = %f, want %f", i, v, want[i])
		}
	}

	d, _ := c.Zeros(2, 2)
	if err := c.Sub(d, b, b); err != nil {
		t.Fatalf("Sub failed: %v", err)
	}
	for i, v := range c.Download(d) {
		if v != 0 {
			t.Errorf("Sub[%d] = %f, want 0", i, v)
		}
	}

	c.Scale(b, 0.5)
	want = []float32{5, 10, 15, 20}
	for i, v := range c.Download(b) {
		if v != want[i] {
			t.Errorf("Scale[%d] = %f, want %f", i, v, want[i])
		}
	}

	bad, _ := c.Zeros(3, 3)
	if err := c.Add(a, bad); err == nil {
		t.Error("Expected shape mismatch error from Add")
	}
}

// TestFrameOps verifies the per-frame broadcast subtraction and guarded
// division used by the correction chain.
func TestFrameOps(t *testing.T) {
	c := NewCPU()

	// two 2x2 frames
	stack, _ := c.Upload([]float32{1, 2, 3, 4, 5, 6, 7, 8}, 2, 2, 2)
	ref, _ := c.Upload([]float32{1, 1, 1, 1}, 2, 2)

	if err := c.SubFrames(stack, ref); err != nil {
		t.Fatalf("SubFrames failed: %v", err)
	}
	want := []float32{0, 1, 2, 3, 4, 5, 6, 7}
	for i, v := range c.Download(stack) {
		if v != want[i] {
			t.Errorf("SubFrames[%d] = %f, want %f", i, v, want[i])
		}
	}

	// denominator with one zero entry exercises the clamp
	den, _ := c.Upload([]float32{2, 0, 2, 2}, 2, 2)
	if err := c.DivFramesMax(stack, den, 1e-6); err != nil {
		t.Fatalf("DivFramesMax failed: %v", err)
	}
	got := c.Download(stack)
	if got[0] != 0 || got[2] != 1 || got[3] != 1.5 {
		t.Errorf("DivFramesMax frame 0 = %v", got[:4])
	}
	// element over the clamped zero denominator stays finite
	if math.IsInf(float64(got[1]), 0) || math.IsNaN(float64(got[1])) {
		t.Errorf("DivFramesMax produced non-finite value %f", got[1])
	}
}

// TestNegLogAndSanitize verifies clamping and non-finite replacement.
func TestNegLogAndSanitize(t *testing.T) {
	c := NewCPU()

	a, _ := c.Upload([]float32{1, math.E, 0, -5}, 4, 1)
	c.NegLog(a, 1e-6)
	got := c.Download(a)
	if got[0] != 0 {
		t.Errorf("NegLog(1) = %f, want 0", got[0])
	}
	if math.Abs(float64(got[1])+1) > 1e-6 {
		t.Errorf("NegLog(e) = %f, want -1", got[1])
	}
	for i, v := range got {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Errorf("NegLog[%d] = %f is non-finite", i, v)
		}
	}

	b, _ := c.Upload([]float32{1, float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))}, 4, 1)
	c.ZeroNonFinite(b)
	got = c.Download(b)
	if got[0] != 1 || got[1] != 0 || got[2] != 0 || got[3] != 0 {
		t.Errorf("ZeroNonFinite = %v, want [1 0 0 0]", got)
	}
}

// TestReductions verifies mean and median over the leading axis.
func TestReductions(t *testing.T) {
	c := NewCPU()

	// three 1x2 frames
	a, _ := c.Upload([]float32{1, 10, 2, 20, 6, 60}, 3, 1, 2)

	mean, err := c.MeanAxis0(a)
	if err != nil {
		t.Fatalf("MeanAxis0 failed: %v", err)
	}
	got := c.Download(mean)
	if got[0] != 3 || got[1] != 30 {
		t.Errorf("MeanAxis0 = %v, want [3 30]", got)
	}
	if mean.Dim(0) != 1 || mean.Dim(1) != 2 {
		t.Errorf("MeanAxis0 shape = %v, want [1 2]", mean.Shape())
	}

	med, err := c.MedianAxis0(a)
	if err != nil {
		t.Fatalf("MedianAxis0 failed: %v", err)
	}
	got = c.Download(med)
	if got[0] != 2 || got[1] != 20 {
		t.Errorf("MedianAxis0 = %v, want [2 20]", got)
	}

	// even frame count averages the middle pair
	b, _ := c.Upload([]float32{1, 2, 3, 8}, 4, 1, 1)
	med, err = c.MedianAxis0(b)
	if err != nil {
		t.Fatalf("MedianAxis0 failed: %v", err)
	}
	if v := c.Download(med)[0]; v != 2.5 {
		t.Errorf("MedianAxis0 even = %f, want 2.5", v)
	}
}

// TestBinHalf verifies shape halving and 2x2 averaging.
func TestBinHalf(t *testing.T) {
	c := NewCPU()

	a, _ := c.Upload([]float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
	}, 1, 2, 4)
	out, err := c.BinHalf(a)
	if err != nil {
		t.Fatalf("BinHalf failed: %v", err)
	}
	if out.Dim(1) != 1 || out.Dim(2) != 2 {
		t.Errorf("BinHalf shape = %v, want [1 1 2]", out.Shape())
	}
	got := c.Download(out)
	if got[0] != 3.5 || got[1] != 5.5 {
		t.Errorf("BinHalf = %v, want [3.5 5.5]", got)
	}

	odd, _ := c.Zeros(1, 3, 4)
	if _, err := c.BinHalf(odd); err == nil {
		t.Error("Expected error binning odd height")
	}
}

// TestFilterRowsZero verifies that filtering an all-zero array yields an
// all-zero result.
func TestFilterRowsZero(t *testing.T) {
	c := NewCPU()

	a, _ := c.Zeros(2, 4, 8)
	w := make([]float64, 5)
	for i := range w {
		w[i] = float64(i)
	}
	if err := c.FilterRows(a, w); err != nil {
		t.Fatalf("FilterRows failed: %v", err)
	}
	for i, v := range c.Download(a) {
		if v != 0 {
			t.Errorf("FilterRows zero input produced %f at %d", v, i)
		}
	}

	if err := c.FilterRows(a, w[:3]); err == nil {
		t.Error("Expected error for wrong filter length")
	}
}

// TestFilterRowsIdentity verifies that an all-ones weighting reproduces
// the input row within floating tolerance.
func TestFilterRowsIdentity(t *testing.T) {
	c := NewCPU()

	rng := rand.New(rand.NewSource(1))
	src := make([]float32, 16)
	for i := range src {
		src[i] = rng.Float32()
	}
	a, _ := c.Upload(src, 1, 1, 16)
	w := make([]float64, 9)
	for i := range w {
		w[i] = 1
	}
	if err := c.FilterRows(a, w); err != nil {
		t.Fatalf("FilterRows failed: %v", err)
	}
	for i, v := range c.Download(a) {
		if math.Abs(float64(v-src[i])) > 1e-5 {
			t.Errorf("FilterRows identity[%d] = %f, want %f", i, v, src[i])
		}
	}
}

// TestInsert verifies the top-aligned region copy used by the assembler.
func TestInsert(t *testing.T) {
	c := NewCPU()

	dst, _ := c.Zeros(1, 3, 6)
	src, _ := c.Upload([]float32{1, 2, 3, 4}, 1, 2, 2)
	if err := c.Insert(dst, src, 2); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	got := c.Download(dst)
	want := []float32{
		0, 0, 1, 2, 0, 0,
		0, 0, 3, 4, 0, 0,
		0, 0, 0, 0, 0, 0,
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Insert[%d] = %f, want %f", i, got[i], want[i])
		}
	}

	if err := c.Insert(dst, src, 5); err == nil {
		t.Error("Expected error for out-of-range insert column")
	}
	tall, _ := c.Zeros(1, 4, 2)
	if err := c.Insert(dst, tall, 0); err == nil {
		t.Error("Expected error for insert taller than destination")
	}
}
