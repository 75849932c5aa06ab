package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/san-kum/servotrack/internal/bench"
	"github.com/san-kum/servotrack/internal/config"
	"github.com/san-kum/servotrack/internal/cv"
	"github.com/san-kum/servotrack/internal/track"
)

func runBenchVOT(cmd *cobra.Command, args []string) error {
	return runBench(cmd, args[0], func(cfg *config.Config, sess *track.Session) (benchAdapter, error) {
		conv, err := bench.ParseConversion(cfg.Bench.Conversion)
		if err != nil {
			return nil, err
		}
		return &bench.PolygonAdapter{
			Session:    sess,
			Loader:     bench.LoaderFunc(cv.LoadImage),
			Conversion: conv,
			Log:        slog.Default(),
		}, nil
	})
}

func runBenchVOT2020(cmd *cobra.Command, args []string) error {
	return runBench(cmd, args[0], func(cfg *config.Config, sess *track.Session) (benchAdapter, error) {
		return &bench.RegionAdapter{
			Session:      sess,
			Loader:       bench.LoaderFunc(cv.LoadImage),
			PredictsMask: cfg.Bench.PredictsMask,
			Log:          slog.Default(),
		}, nil
	})
}

// benchAdapter is satisfied by both bench adapters.
type benchAdapter interface {
	Run(ctx context.Context, h bench.Harness) error
}

type adapterFunc func(*config.Config, *track.Session) (benchAdapter, error)

func runBench(cmd *cobra.Command, dir string, build adapterFunc) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	seq, err := bench.OpenSequence(dir)
	if err != nil {
		return err
	}
	sess, err := track.NewSession(cfg.TrackerMode(), cv.Factory())
	if err != nil {
		return err
	}
	adapter, err := build(cfg, sess)
	if err != nil {
		return err
	}

	slog.Info("running sequence", "name", seq.Name, "frames", seq.Len(), "mode", cfg.Tracker.Mode)
	runErr := adapter.Run(ctx, seq)

	var out io.Writer = os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	for _, r := range seq.Reports {
		if _, err := fmt.Fprintln(out, r.String()); err != nil {
			return err
		}
	}
	return runErr
}
