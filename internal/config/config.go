package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/servotrack/internal/actuator"
	"github.com/san-kum/servotrack/internal/bench"
	"github.com/san-kum/servotrack/internal/control"
	"github.com/san-kum/servotrack/internal/loop"
	"github.com/san-kum/servotrack/internal/track"
)

const (
	DefaultBaudRate            = 115200
	DefaultWidth               = 1280
	DefaultHeight              = 1024
	DefaultFovH                = 34.5
	DefaultFovV                = 19.815
	DefaultKp                  = 1.0
	DefaultKi                  = 0.0
	DefaultKd                  = 0.0
	DefaultCenterAngle         = 90
	DefaultMoveTimeMs          = 800
	DefaultPanAxis             = 1
	DefaultTiltAxis            = 0
	DefaultMinTransmitInterval = 200 * time.Millisecond
	DefaultDataDir             = "runs"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	Camera   CameraConfig   `yaml:"camera"`
	PID      PIDConfig      `yaml:"pid"`
	Actuator ActuatorConfig `yaml:"actuator"`
	Loop     LoopConfig     `yaml:"loop"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Bench    BenchConfig    `yaml:"bench"`
	DataDir  string         `yaml:"data_dir"`
}

type SerialConfig struct {
	Path                 string `yaml:"path"`
	actuator.PortOptions `yaml:",inline"`
}

// CameraConfig describes the frame geometry. AnglePerPixelX/Y, when
// positive, replace the value derived from the field of view.
type CameraConfig struct {
	Device         string  `yaml:"device"`
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	FovH           float64 `yaml:"fov_h"`
	FovV           float64 `yaml:"fov_v"`
	AnglePerPixelX float64 `yaml:"angle_per_pixel_x"`
	AnglePerPixelY float64 `yaml:"angle_per_pixel_y"`
}

type PIDConfig struct {
	control.Gains `yaml:",inline"`
	OutputGain    float64 `yaml:"output_gain"`
}

type ActuatorConfig struct {
	CenterAngle int `yaml:"center_angle"`
	MoveTimeMs  int `yaml:"move_time_ms"`
	PanAxis     int `yaml:"pan_axis"`
	TiltAxis    int `yaml:"tilt_axis"`
}

type LoopConfig struct {
	MinTransmitInterval time.Duration `yaml:"min_transmit_interval"`
	FixedDt             time.Duration `yaml:"fixed_dt"`
	MinDt               time.Duration `yaml:"min_dt"`
	// InitialBox is x, y, w, h of a target tracked from the first frame.
	InitialBox []float64 `yaml:"initial_box,omitempty"`
}

type TrackerConfig struct {
	Mode string `yaml:"mode"`
	Kind string `yaml:"kind"`
}

type BenchConfig struct {
	Conversion   string `yaml:"conversion"`
	PredictsMask bool   `yaml:"predicts_mask"`
}

func DefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			PortOptions: actuator.PortOptions{BaudRate: DefaultBaudRate, ReadTimeout: time.Second},
		},
		Camera: CameraConfig{
			Width:  DefaultWidth,
			Height: DefaultHeight,
			FovH:   DefaultFovH,
			FovV:   DefaultFovV,
		},
		PID: PIDConfig{
			Gains:      control.Gains{Kp: DefaultKp, Ki: DefaultKi, Kd: DefaultKd},
			OutputGain: control.DefaultOutputGain,
		},
		Actuator: ActuatorConfig{
			CenterAngle: DefaultCenterAngle,
			MoveTimeMs:  DefaultMoveTimeMs,
			PanAxis:     DefaultPanAxis,
			TiltAxis:    DefaultTiltAxis,
		},
		Loop: LoopConfig{
			MinTransmitInterval: DefaultMinTransmitInterval,
			MinDt:               time.Millisecond,
		},
		Tracker: TrackerConfig{Mode: track.ModeDefault.String(), Kind: "mil"},
		Bench:   BenchConfig{Conversion: bench.ConvertPreserveArea.String()},
		DataDir: DefaultDataDir,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate fills zero camera size and data dir with defaults and rejects
// settings the loop cannot run with. A zero output gain is kept as given.
func (c *Config) Validate() error {
	d := DefaultConfig()
	if c.Camera.Width == 0 {
		c.Camera.Width = d.Camera.Width
	}
	if c.Camera.Height == 0 {
		c.Camera.Height = d.Camera.Height
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}

	opts, err := c.Serial.PortOptions.Normalize()
	if err != nil {
		return fmt.Errorf("%w: serial: %v", ErrInvalidConfig, err)
	}
	c.Serial.PortOptions = opts

	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		return fmt.Errorf("%w: camera size %dx%d", ErrInvalidConfig, c.Camera.Width, c.Camera.Height)
	}
	if c.Actuator.MoveTimeMs < 0 {
		return fmt.Errorf("%w: move_time_ms %d", ErrInvalidConfig, c.Actuator.MoveTimeMs)
	}
	if c.Actuator.PanAxis == c.Actuator.TiltAxis {
		return fmt.Errorf("%w: pan and tilt share axis %d", ErrInvalidConfig, c.Actuator.PanAxis)
	}
	for _, a := range []int{c.Actuator.PanAxis, c.Actuator.TiltAxis} {
		if a != 0 && a != 1 {
			return fmt.Errorf("%w: axis %d", ErrInvalidConfig, a)
		}
	}
	if c.PID.OutputGain < 0 {
		return fmt.Errorf("%w: output_gain %v", ErrInvalidConfig, c.PID.OutputGain)
	}
	if c.PID.IntegralLimit < 0 {
		return fmt.Errorf("%w: integral_limit %v", ErrInvalidConfig, c.PID.IntegralLimit)
	}
	if _, err := track.ParseMode(c.Tracker.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := bench.ParseConversion(c.Bench.Conversion); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if n := len(c.Loop.InitialBox); n != 0 && n != 4 {
		return fmt.Errorf("%w: initial_box needs 4 values, got %d", ErrInvalidConfig, n)
	}
	return nil
}

// Scale returns degrees per pixel on each axis.
func (c *Config) Scale() (sx, sy float64, err error) {
	sx, sy = c.Camera.AnglePerPixelX, c.Camera.AnglePerPixelY
	if sx <= 0 {
		if sx, err = control.AnglePerPixel(c.Camera.FovH, c.Camera.Width); err != nil {
			return 0, 0, err
		}
	}
	if sy <= 0 {
		if sy, err = control.AnglePerPixel(c.Camera.FovV, c.Camera.Height); err != nil {
			return 0, 0, err
		}
	}
	return sx, sy, nil
}

func (c *Config) Controller() (*control.DualAxis, error) {
	sx, sy, err := c.Scale()
	if err != nil {
		return nil, err
	}
	ctrl := control.NewDualAxis(c.PID.Gains, sx, sy)
	ctrl.OutputGain = c.PID.OutputGain
	return ctrl, nil
}

func (c *Config) LoopConfig() loop.Config {
	lc := loop.DefaultConfig()
	lc.CenterAngle = c.Actuator.CenterAngle
	lc.PanAxis = c.Actuator.PanAxis
	lc.TiltAxis = c.Actuator.TiltAxis
	lc.MinTransmitInterval = c.Loop.MinTransmitInterval
	lc.FixedDt = c.Loop.FixedDt
	if c.Loop.MinDt > 0 {
		lc.MinDt = c.Loop.MinDt
	}
	if b := c.Loop.InitialBox; len(b) == 4 {
		box := track.Box(b[0], b[1], b[2], b[3])
		lc.InitialBox = &box
	}
	return lc
}

func (c *Config) TrackerMode() track.Mode {
	m, _ := track.ParseMode(c.Tracker.Mode)
	return m
}
