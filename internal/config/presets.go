package config

import "sort"

// Presets holds camera geometries by name. Each entry only sets the camera
// section; the rest of the configuration keeps its defaults.
var Presets = map[string]CameraConfig{
	"oak1-1280x1024": {
		Width:  1280,
		Height: 1024,
		FovH:   34.5,
		FovV:   19.815,
	},
	"oak1-640x512": {
		Width:  640,
		Height: 512,
		FovH:   34.5,
		FovV:   19.815,
	},
	"webcam-640x480": {
		Width:  640,
		Height: 480,
		FovH:   60,
		FovV:   45,
	},
	"bench-1280": {
		Width:          1280,
		Height:         1024,
		FovH:           34.5,
		FovV:           19.815,
		AnglePerPixelX: 17.25 / 1280,
		AnglePerPixelY: 17.25 / 1280,
	},
}

// GetPreset returns a default configuration with the named camera, or nil.
func GetPreset(name string) *Config {
	cam, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cam.Device = cfg.Camera.Device
	cfg.Camera = cam
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
