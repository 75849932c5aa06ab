package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/servotrack/internal/actuator"
	"github.com/san-kum/servotrack/internal/config"
	"github.com/san-kum/servotrack/internal/control"
	"github.com/san-kum/servotrack/internal/cv"
	"github.com/san-kum/servotrack/internal/frame"
	"github.com/san-kum/servotrack/internal/loop"
	"github.com/san-kum/servotrack/internal/metrics"
	"github.com/san-kum/servotrack/internal/operator"
	"github.com/san-kum/servotrack/internal/storage"
	"github.com/san-kum/servotrack/internal/track"
	"github.com/san-kum/servotrack/internal/viz"
)

// openLink opens and configures the servo controller. A connection failure
// is reported and ends the process.
func openLink(cfg *config.Config) *actuator.Link {
	if cfg.Serial.Path == "" {
		fmt.Fprintln(os.Stderr, "servotrack: no serial port given (use --port or serial.path)")
		os.Exit(1)
	}
	link, err := actuator.Open(cfg.Serial.Path, cfg.Serial.PortOptions)
	if err != nil {
		if errors.Is(err, actuator.ErrConnection) {
			fmt.Fprintf(os.Stderr, "servotrack: cannot connect to servo controller on %s at %d baud: %v\n",
				cfg.Serial.Path, cfg.Serial.BaudRate, err)
		} else {
			fmt.Fprintln(os.Stderr, "servotrack:", err)
		}
		os.Exit(1)
	}
	return link
}

func runCenter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	link := openLink(cfg)
	defer link.Close()

	if err := link.Center(cfg.Actuator.CenterAngle); err != nil {
		return err
	}
	fmt.Printf("centred at %d°\n", cfg.Actuator.CenterAngle)
	return nil
}

func runTrack(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	link := openLink(cfg)
	defer link.Close()
	for _, axis := range []int{cfg.Actuator.TiltAxis, cfg.Actuator.PanAxis} {
		if err := link.SetAxisMoveTime(axis, cfg.Actuator.MoveTimeMs); err != nil {
			return err
		}
	}
	if err := link.Center(cfg.Actuator.CenterAngle); err != nil {
		return err
	}

	src, err := cv.Open(cfg.Camera.Device)
	if err != nil {
		return err
	}
	defer src.Close()
	if w, h := src.Size(); w > 0 && h > 0 && (w != cfg.Camera.Width || h != cfg.Camera.Height) {
		log.WarnContext(ctx, "capture size differs from camera config; angle scale may be off",
			"capture", fmt.Sprintf("%dx%d", w, h),
			"config", fmt.Sprintf("%dx%d", cfg.Camera.Width, cfg.Camera.Height))
	}
	latest := frame.NewLatest(ctx, src)
	defer latest.Close()

	sess, err := track.NewSession(cfg.TrackerMode(), cv.Factory())
	if err != nil {
		return err
	}
	ctrl, err := cfg.Controller()
	if err != nil {
		return err
	}

	sig := loop.NewSignals()
	rec := storage.NewRecorder(sampleLimit)
	opts := []loop.Option{loop.WithLogger(log), loop.WithObserver(rec)}
	for _, m := range metrics.Default() {
		opts = append(opts, loop.WithMetric(m))
	}

	var (
		result *loop.Result
		runErr error
	)
	if useTUI {
		result, runErr = runWithMonitor(ctx, cfg, latest, sess, ctrl, link, sig, opts)
	} else {
		console := operator.NewConsole(sig, log)
		go func() {
			if err := console.Run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
				log.WarnContext(ctx, "operator input closed", "err", err)
			}
		}()
		l := loop.New(latest, sess, ctrl, link, sig, cfg.LoopConfig(), opts...)
		result, runErr = l.Run(ctx)
	}

	if err := link.Center(cfg.Actuator.CenterAngle); err != nil && !errors.Is(err, actuator.ErrClosed) {
		log.Warn("final centring failed", "err", err)
	}

	if result != nil {
		printResult(result, latest.Dropped())
		if !noSave {
			if err := saveRun(cfg, result, rec.Samples(), ctrl.GetParams()); err != nil {
				log.Warn("run not saved", "err", err)
			}
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func runWithMonitor(
	ctx context.Context,
	cfg *config.Config,
	src frame.Source,
	sess *track.Session,
	ctrl *control.DualAxis,
	link *actuator.Link,
	sig *loop.Signals,
	opts []loop.Option,
) (*loop.Result, error) {
	p := tea.NewProgram(viz.NewMonitor("servotrack "+cfg.Camera.Device, sig), tea.WithContext(ctx))
	opts = append(opts, loop.WithObserver(viz.NewFeed(p)))
	l := loop.New(src, sess, ctrl, link, sig, cfg.LoopConfig(), opts...)

	type outcome struct {
		res *loop.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := l.Run(ctx)
		done <- outcome{res, err}
		p.Send(viz.DoneMsg{Result: res, Err: err})
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		slog.Warn("monitor stopped", "err", err)
	}
	sig.Quit()

	select {
	case o := <-done:
		return o.res, o.err
	case <-time.After(5 * time.Second):
		return nil, errors.New("control loop did not stop")
	}
}

func printResult(r *loop.Result, dropped int64) {
	fmt.Printf("frames: %d (dropped %d)\n", r.Frames, dropped)
	fmt.Printf("samples: %d  transmissions: %d  resets: %d\n", r.Samples, r.Transmissions, r.Resets)
	fmt.Printf("errors: tracking %d  actuation %d\n", r.TrackErrors, r.ActuationErrors)
	fmt.Printf("duration: %v\n", r.Duration.Round(time.Millisecond))
	if len(r.Metrics) > 0 {
		fmt.Println("\nmetrics:")
		for name, val := range r.Metrics {
			fmt.Printf("  %s: %.4f\n", name, val)
		}
	}
}

func saveRun(cfg *config.Config, r *loop.Result, samples []loop.Sample, params map[string]float64) error {
	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(storage.RunInfo{
		Source:  cfg.Camera.Device,
		Port:    cfg.Serial.Path,
		Mode:    cfg.Tracker.Mode,
		Tracker: cfg.Tracker.Kind,
		Params:  params,
	}, r, samples)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}
