// Command orthorec reconstructs three orthogonal slices from a
// tomographic scan for a sweep of trial rotation centers, writing one
// TIFF per center so an operator can pick the correct one.
//
// Example:
//
//	orthorec -input /data/scan.h5 -center 1224 -idx 512 -idy 512 -idz 512 -bin 1
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomography/orthorec/internal/kernels"
	"github.com/tomography/orthorec/pkg/config"
	"github.com/tomography/orthorec/pkg/dataset"
	"github.com/tomography/orthorec/pkg/device"
	"github.com/tomography/orthorec/pkg/recon"
	"github.com/tomography/orthorec/pkg/tiffio"
)

func main() {
	input := flag.String("input", "", "Input HDF5 scan with the exchange group layout")
	center := flag.Float64("center", 0, "Nominal rotation center, unbinned pixels")
	idx := flag.Int("idx", 0, "X ortho slice index, unbinned pixels")
	idy := flag.Int("idy", 0, "Y ortho slice index, unbinned pixels")
	idz := flag.Int("idz", 0, "Z ortho slice index, unbinned pixels")
	binLevel := flag.Int("bin", 0, "Binning level (2^level averaging per axis)")
	configPath := flag.String("config", "orthorec.yaml", "Optional YAML configuration file")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().
		Timestamp().
		Logger()

	if *input == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *verbose || cfg.Output.Verbose {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	// An interrupt aborts the run outright: in-flight work terminates and
	// every device allocation is released before exit. No partial result
	// is kept.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *input, *center, *idx, *idy, *idz, *binLevel); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("aborted")
		} else {
			log.Error().Err(err).Msg("reconstruction failed")
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger,
	input string, center float64, idx, idy, idz, binLevel int) error {

	start := time.Now()
	src, err := dataset.OpenHDF5(input)
	if err != nil {
		return err
	}
	defer src.Close()
	log.Info().Str("input", input).Dur("elapsed", time.Since(start)).Msg("opened dataset")

	backend := device.NewCPU()
	defer backend.Arena().Release()

	params := recon.Params{
		Center:    center,
		IdxX:      idx,
		IdxY:      idy,
		IdxZ:      idz,
		BinLevel:  binLevel,
		ChunkSize: cfg.Pipeline.ChunkSize,
		SweepSpan: cfg.Pipeline.SweepSpan,
		SweepStep: cfg.Pipeline.SweepStep,
	}
	pipeline := recon.NewPipeline(backend, src, kernels.New(backend), params, log)

	start = time.Now()
	res, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("reconstructed orthoslices")

	start = time.Now()
	for i, c := range res.Centers {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := tiffio.CenterPathIn(cfg.Output.Dir, input, binLevel, c)
		if err := tiffio.WriteSlice(path, res.Slice(i), res.Width, res.Height); err != nil {
			return err
		}
		log.Debug().Str("path", path).Msg("wrote slice")
	}
	log.Info().Int("files", len(res.Centers)).Dur("elapsed", time.Since(start)).Msg("output written")
	return nil
}
