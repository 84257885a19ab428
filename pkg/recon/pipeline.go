package recon

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomography/orthorec/pkg/dataset"
	"github.com/tomography/orthorec/pkg/device"
)

// Defaults for the tunable pipeline parameters. The chunk size bounds
// device memory for one in-flight generation; any positive value is
// valid.
const (
	DefaultChunkSize = 64
	DefaultSweepSpan = 20.0
	DefaultSweepStep = 0.5
)

// Params configures one reconstruction run. Center and the slice indices
// are given in unbinned pixel coordinates and rescaled internally by the
// binning level.
type Params struct {
	// Center is the nominal rotation center the sweep is built around.
	Center float64

	// IdxX, IdxY, IdxZ are the fixed slice indices of the three
	// orthogonal planes.
	IdxX, IdxY, IdxZ int

	// BinLevel is the number of halving-averaging passes applied to
	// every frame on transfer.
	BinLevel int

	// ChunkSize is the number of projections per pipeline chunk.
	// DefaultChunkSize when zero.
	ChunkSize int

	// SweepSpan and SweepStep shape the trial-center sweep, in binned
	// detector pixels. Defaults when zero.
	SweepSpan float64
	SweepStep float64
}

func (p Params) withDefaults() Params {
	if p.ChunkSize <= 0 {
		p.ChunkSize = DefaultChunkSize
	}
	if p.SweepSpan <= 0 {
		p.SweepSpan = DefaultSweepSpan
	}
	if p.SweepStep <= 0 {
		p.SweepStep = DefaultSweepStep
	}
	return p
}

// Result is the finished reconstruction, copied back to host memory so
// the backend arena can be released before the caller sees it.
type Result struct {
	// Centers holds the trial rotation centers, in binned coordinates.
	Centers []float32

	// Data is the stack of composite images, [len(Centers), Height, Width]
	// row-major.
	Data []float32

	Height, Width int
}

// Slice returns the composite image for trial center i.
func (r *Result) Slice(i int) []float32 {
	n := r.Height * r.Width
	return r.Data[i*n : (i+1)*n]
}

// Pipeline drives the chunked reconstruction: it splits the angular range
// into chunks, overlaps host-to-device transfer of chunk k with
// processing of chunk k-1, and accumulates per-chunk composites into the
// running total.
type Pipeline struct {
	b   device.Backend
	src dataset.Source
	k   Kernels
	p   Params
	log zerolog.Logger
}

// NewPipeline assembles a pipeline from its collaborators.
func NewPipeline(b device.Backend, src dataset.Source, k Kernels, p Params, log zerolog.Logger) *Pipeline {
	return &Pipeline{b: b, src: src, k: k, p: p.withDefaults(), log: log}
}

// chunkBuf is one transferred, binned chunk generation. Exactly two of
// these alternate by chunk-index parity; a slot is never rewritten while
// the compute role of its previous occupant is in flight, guaranteed by
// the per-step join.
type chunkBuf struct {
	data   *device.Array
	angles *device.Array
}

// runState is the per-run device-resident state shared by compute steps.
// Everything here is read-only during the loop except the accumulator,
// which is mutated serially, one chunk per step.
type runState struct {
	dark, flat *device.Array
	centers    *device.Array
	acc        *device.Array
	filter     *RampFilter
	asm        *Assembler
	idx, idy, idz int
}

// Run executes the reconstruction. All device allocations of the run come
// from the backend's arena, which is released on every exit path; the
// result lives in host memory. Cancelling ctx aborts the run with no
// partial output.
func (pl *Pipeline) Run(ctx context.Context) (*Result, error) {
	defer pl.b.Arena().Release()

	frames, h, w := pl.src.Dims()
	if frames <= 0 {
		return nil, fmt.Errorf("recon: dataset has no projections")
	}
	if err := CheckBinnable(h, w, pl.p.BinLevel); err != nil {
		return nil, err
	}
	div := 1 << uint(pl.p.BinLevel)
	n, nz := w/div, h/div
	st := runState{
		idx: pl.p.IdxX / div,
		idy: pl.p.IdxY / div,
		idz: pl.p.IdxZ / div,
	}
	if st.idx < 0 || st.idx >= n || st.idy < 0 || st.idy >= n {
		return nil, fmt.Errorf("recon: slice index (%d, %d) outside binned width %d", st.idx, st.idy, n)
	}
	if st.idz < 0 || st.idz >= nz {
		return nil, fmt.Errorf("recon: slice index %d outside binned height %d", st.idz, nz)
	}

	centers := SweepCenters(pl.p.Center/float64(div), pl.p.SweepSpan, pl.p.SweepStep)
	nchunks := (frames + pl.p.ChunkSize - 1) / pl.p.ChunkSize
	pl.log.Info().
		Int("projections", frames).
		Int("height", h).Int("width", w).
		Int("binLevel", pl.p.BinLevel).
		Int("chunks", nchunks).
		Int("centers", len(centers)).
		Msg("starting reconstruction")

	var err error
	if st.dark, err = pl.reduceReference("dark", pl.src.ReadDark, pl.b.MeanAxis0, h, w); err != nil {
		return nil, err
	}
	if st.flat, err = pl.reduceReference("flat", pl.src.ReadFlat, pl.b.MedianAxis0, h, w); err != nil {
		return nil, err
	}
	if st.centers, err = pl.b.Upload(centers, len(centers)); err != nil {
		return nil, fmt.Errorf("recon: center sweep upload: %w", err)
	}
	if st.acc, err = pl.b.Zeros(len(centers), n, 3*n); err != nil {
		return nil, fmt.Errorf("recon: accumulator allocation: %w", err)
	}
	st.filter = NewRampFilter(n)
	st.asm = NewAssembler(pl.b, pl.k)

	// Two-slot ring: step k transfers chunk k into slot k%2 while the
	// compute role consumes chunk k-1 from slot (k-1)%2. Both tasks are
	// joined before advancing, so exactly two generations are ever in
	// flight. The extra step k = nchunks drains the pipeline.
	var slots [2]*chunkBuf
	for k := 0; k <= nchunks; k++ {
		g, gctx := errgroup.WithContext(ctx)
		if k < nchunks {
			cur := k
			g.Go(func() error {
				start := cur * pl.p.ChunkSize
				end := min(start+pl.p.ChunkSize, frames)
				buf, err := pl.transfer(gctx, start, end, h, w)
				if err != nil {
					return fmt.Errorf("recon: chunk %d transfer: %w", cur, err)
				}
				slots[cur%2] = buf
				return nil
			})
		}
		if k >= 1 {
			cur := k - 1
			buf := slots[cur%2]
			g.Go(func() error {
				if err := pl.compute(gctx, buf, &st); err != nil {
					return fmt.Errorf("recon: chunk %d compute: %w", cur, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		pl.log.Debug().Int("step", k).Int("chunks", nchunks).Msg("pipeline step complete")
	}

	pl.b.Scale(st.acc, 1/float32(frames))
	res := &Result{
		Centers: centers,
		Data:    pl.b.Download(st.acc),
		Height:  n,
		Width:   3 * n,
	}
	pl.log.Info().Int("centers", len(centers)).Msg("reconstruction complete")
	return res, nil
}

// reduceReference loads a reference stack, reduces it along the frame
// axis and bins the result to the working resolution.
func (pl *Pipeline) reduceReference(name string, read func() ([]float32, int, error),
	reduce func(*device.Array) (*device.Array, error), h, w int) (*device.Array, error) {

	raw, count, err := read()
	if err != nil {
		return nil, fmt.Errorf("recon: %s field: %w", name, err)
	}
	if count <= 0 || len(raw) != count*h*w {
		return nil, fmt.Errorf("recon: %s field stack of %d frames has %d elements, want %d",
			name, count, len(raw), count*h*w)
	}
	stack, err := pl.b.Upload(raw, count, h, w)
	if err != nil {
		return nil, fmt.Errorf("recon: %s field upload: %w", name, err)
	}
	red, err := reduce(stack)
	pl.b.Free(stack)
	if err != nil {
		return nil, fmt.Errorf("recon: %s field reduction: %w", name, err)
	}
	out, err := Bin(pl.b, red, pl.p.BinLevel)
	if err != nil {
		return nil, fmt.Errorf("recon: %s field binning: %w", name, err)
	}
	return out, nil
}

// transfer materializes one chunk on the device: range-read, upload, bin.
func (pl *Pipeline) transfer(ctx context.Context, start, end, h, w int) (*chunkBuf, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := pl.src.ReadProjections(start, end)
	if err != nil {
		return nil, err
	}
	ang, err := pl.src.ReadAngles(start, end)
	if err != nil {
		return nil, err
	}
	data, err := pl.b.Upload(raw, end-start, h, w)
	if err != nil {
		return nil, err
	}
	if data, err = Bin(pl.b, data, pl.p.BinLevel); err != nil {
		return nil, err
	}
	angles, err := pl.b.Upload(ang, end-start)
	if err != nil {
		return nil, err
	}
	return &chunkBuf{data: data, angles: angles}, nil
}

// compute consumes one transferred chunk: correction chain, ramp filter,
// backprojection, accumulation. The chunk buffers are released after use.
func (pl *Pipeline) compute(ctx context.Context, buf *chunkBuf, st *runState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Correct(pl.b, buf.data, st.dark, st.flat); err != nil {
		return err
	}
	if err := st.filter.Apply(pl.b, buf.data); err != nil {
		return err
	}
	obj, err := st.asm.Backproject(buf.data, buf.angles, st.centers, st.idx, st.idy, st.idz)
	if err != nil {
		return err
	}
	err = pl.b.Add(st.acc, obj)
	pl.b.Free(obj)
	pl.b.Free(buf.data)
	pl.b.Free(buf.angles)
	return err
}
