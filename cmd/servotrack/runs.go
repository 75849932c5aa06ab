package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/servotrack/internal/analysis"
	"github.com/san-kum/servotrack/internal/storage"
	"github.com/san-kum/servotrack/internal/viz"
)

func runStore(cmd *cobra.Command) (*storage.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return storage.New(cfg.DataDir), nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := runStore(cmd)
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSOURCE\tMODE\tFRAMES\tSENT\tDURATION\tRMS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%.2fs\t%.1f\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Source,
			run.Mode,
			run.Frames,
			run.Transmissions,
			run.Duration,
			run.Metrics["centring_rms"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st, err := runStore(cmd)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}

	fmt.Printf("run %s  %s  %d samples\n\n", meta.ID, meta.Source, len(samples))

	fields := []string{"err_x", "err_y", "pan", "tilt"}
	if field != "" {
		fields = []string{field}
	}
	for _, f := range fields {
		graph, err := viz.Plot(samples, f, 80, 10)
		if err != nil {
			return err
		}
		fmt.Println(graph)
		fmt.Println()
	}

	errX := make([]float64, len(samples))
	dts := make([]float64, len(samples))
	for i, s := range samples {
		errX[i], dts[i] = s.ErrX, s.Dt
	}
	if hz, amp, err := analysis.Dominant(errX, analysis.Rate(dts)); err == nil {
		fmt.Printf("dominant error oscillation: %.2f Hz, %.1f px\n\n", hz, amp)
	}

	if len(meta.Metrics) > 0 {
		fmt.Println("metrics:")
		for name, val := range meta.Metrics {
			fmt.Printf("  %s: %.4f\n", name, val)
		}
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st, err := runStore(cmd)
	if err != nil {
		return err
	}
	return st.Export(args[0], format, os.Stdout)
}
