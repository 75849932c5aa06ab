package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/servotrack/internal/config"
	"github.com/san-kum/servotrack/internal/track"
)

var (
	dataDir    string
	configFile string
	preset     string
	verbose    bool

	// track flags
	port        string
	device      string
	baud        int
	kp          float64
	ki          float64
	kd          float64
	gain        float64
	intLimit    float64
	interval    time.Duration
	mode        string
	initialBox  string
	useTUI      bool
	noSave      bool
	sampleLimit int

	// bench flags
	conversion   string
	predictsMask bool
	outFile      string

	// run inspection flags
	field  string
	format string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "servotrack",
		Short:         "pan/tilt servo target tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "run data directory (default from config)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "camera preset")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	trackCmd := &cobra.Command{
		Use:   "track",
		Short: "track a target and steer the mount",
		Long: `Track targets from a camera or video and steer the pan/tilt mount.

Without --tui, operator commands are read from stdin:
  box X Y W H   select a target
  press X Y     start or finish a drag selection
  move X Y      move the free corner of a drag
  reset         centre the mount and drop all targets
  quit          stop`,
		Args: cobra.NoArgs,
		RunE: runTrack,
	}
	trackCmd.Flags().StringVar(&port, "port", "", "servo controller serial port")
	trackCmd.Flags().StringVar(&device, "device", "0", "camera index or video file")
	trackCmd.Flags().IntVar(&baud, "baud", config.DefaultBaudRate, "serial baud rate")
	trackCmd.Flags().Float64Var(&kp, "kp", config.DefaultKp, "pid kp")
	trackCmd.Flags().Float64Var(&ki, "ki", config.DefaultKi, "pid ki")
	trackCmd.Flags().Float64Var(&kd, "kd", config.DefaultKd, "pid kd")
	trackCmd.Flags().Float64Var(&gain, "gain", 10, "output gain")
	trackCmd.Flags().Float64Var(&intLimit, "integral-limit", 0, "pid integral clamp (0 = unbounded)")
	trackCmd.Flags().DurationVar(&interval, "interval", config.DefaultMinTransmitInterval, "minimum time between servo writes")
	trackCmd.Flags().StringVar(&mode, "mode", "default", "multi-object mode: default or parallel")
	trackCmd.Flags().StringVar(&initialBox, "box", "", "initial target box x,y,w,h")
	trackCmd.Flags().BoolVar(&useTUI, "tui", false, "show the live monitor")
	trackCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	trackCmd.Flags().IntVar(&sampleLimit, "max-samples", 100000, "samples kept for the stored run")

	centerCmd := &cobra.Command{
		Use:   "center",
		Short: "move both axes to the centre angle",
		Args:  cobra.NoArgs,
		RunE:  runCenter,
	}
	centerCmd.Flags().StringVar(&port, "port", "", "servo controller serial port")
	centerCmd.Flags().IntVar(&baud, "baud", config.DefaultBaudRate, "serial baud rate")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "run a tracker over benchmark sequences",
	}
	votCmd := &cobra.Command{
		Use:   "vot [sequence_dir]",
		Short: "rectangle/polygon protocol",
		Args:  cobra.ExactArgs(1),
		RunE:  runBenchVOT,
	}
	votCmd.Flags().StringVar(&conversion, "conversion", "preserve_area", "polygon conversion: union or preserve_area")
	vot2020Cmd := &cobra.Command{
		Use:   "vot2020 [sequence_dir]",
		Short: "rectangle/mask protocol",
		Args:  cobra.ExactArgs(1),
		RunE:  runBenchVOT2020,
	}
	vot2020Cmd.Flags().BoolVar(&predictsMask, "mask", false, "report segmentation masks")
	for _, c := range []*cobra.Command{votCmd, vot2020Cmd} {
		c.Flags().StringVarP(&outFile, "output", "o", "", "write reports to file (default stdout)")
		c.Flags().StringVar(&mode, "mode", "default", "multi-object mode: default or parallel")
	}
	benchCmd.AddCommand(votCmd, vot2020Cmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run telemetry",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&field, "field", "", "single column to plot (default: error and servo angles)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run samples",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCSVCmd.Flags().StringVar(&format, "format", "csv", "csv or json")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list camera presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("camera presets:")
			for _, name := range config.ListPresets() {
				p := config.Presets[name]
				fmt.Printf("  %-16s %dx%d  fov %.3g x %.3g\n", name, p.Width, p.Height, p.FovH, p.FovV)
			}
			return nil
		},
	}

	rootCmd.AddCommand(trackCmd, centerCmd, benchCmd, listCmd, plotCmd, exportCSVCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "servotrack:", err)
		os.Exit(1)
	}
}

// loadConfig layers preset, config file and explicitly set flags, in that
// order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if preset != "" {
			loaded.Camera = cfg.Camera
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("port") {
		cfg.Serial.Path = port
	}
	if flags.Changed("baud") {
		cfg.Serial.BaudRate = baud
	}
	if flags.Changed("device") {
		cfg.Camera.Device = device
	} else if cfg.Camera.Device == "" {
		cfg.Camera.Device = device
	}
	if flags.Changed("kp") {
		cfg.PID.Kp = kp
	}
	if flags.Changed("ki") {
		cfg.PID.Ki = ki
	}
	if flags.Changed("kd") {
		cfg.PID.Kd = kd
	}
	if flags.Changed("gain") {
		cfg.PID.OutputGain = gain
	}
	if flags.Changed("integral-limit") {
		cfg.PID.IntegralLimit = intLimit
	}
	if flags.Changed("interval") {
		cfg.Loop.MinTransmitInterval = interval
	}
	if flags.Changed("mode") {
		cfg.Tracker.Mode = mode
	}
	if flags.Changed("box") {
		box, err := parseBox(initialBox)
		if err != nil {
			return nil, err
		}
		cfg.Loop.InitialBox = []float64{box.X, box.Y, box.Width, box.Height}
	}
	if flags.Changed("conversion") {
		cfg.Bench.Conversion = conversion
	}
	if flags.Changed("mask") {
		cfg.Bench.PredictsMask = predictsMask
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseBox(s string) (track.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return track.BoundingBox{}, fmt.Errorf("box %q: want x,y,w,h", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return track.BoundingBox{}, fmt.Errorf("box %q: %w", s, err)
		}
		v[i] = f
	}
	box := track.Box(v[0], v[1], v[2], v[3])
	if !box.Valid() {
		return track.BoundingBox{}, fmt.Errorf("box %q: negative size", s)
	}
	return box, nil
}
