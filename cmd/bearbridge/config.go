package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the bearbridge daemon.
//
// Layering: DefaultConfig() < config file < flag overrides, then Validate().
type Config struct {
	// Host bridge behavior
	Bridge BridgeConfig `yaml:"bridge"`

	// Actor, animation and mode tables
	Scene SceneFileConfig `yaml:"scene"`

	// Periodic capture loop
	Capture CaptureFileConfig `yaml:"capture"`

	// HTTP control surface and the /bridge websocket
	HTTP HTTPConfig `yaml:"http"`

	// IPC configuration (bear-ctl)
	IPC IPCConfig `yaml:"ipc"`

	// Debug key input devices
	Input InputConfig `yaml:"input"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type BridgeConfig struct {
	LocalDebug bool `yaml:"local_debug"` // log emitted events instead of forwarding them
	QueueSize  int  `yaml:"queue_size"`
}

type SceneFileConfig struct {
	FrameHz         int         `yaml:"frame_hz"`
	ScaleFactor     float64     `yaml:"scale_factor"`
	PhaseDurationMS int         `yaml:"phase_duration_ms"`
	DegreesPerMode  float64     `yaml:"degrees_per_mode"`
	ModeVibration   []int       `yaml:"mode_vibration"`
	WakeVibration   []int       `yaml:"wake_vibration"`
	Materials       []string    `yaml:"materials,omitempty"` // index 0 = default, 1..3 = modes
	Actor           ActorConfig `yaml:"actor"`
}

type ActorConfig struct {
	Name      string `yaml:"name"`
	Bound     bool   `yaml:"bound"`
	BaseScale Vec3   `yaml:"base_scale"`
}

type CaptureFileConfig struct {
	Enabled           bool   `yaml:"enabled"`
	IntervalMS        int    `yaml:"interval_ms"`
	LogEvery          int    `yaml:"log_every"`
	SourceDir         string `yaml:"source_dir"`
	AnalysisURL       string `yaml:"analysis_url,omitempty"` // empty: frames are only logged
	AnalysisTimeoutMS int    `yaml:"analysis_timeout_ms"`
	InitRetryMS       int    `yaml:"init_retry_ms"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type InputConfig struct {
	Devices []string `yaml:"devices,omitempty"` // empty disables debug keys
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text|json
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Bridge: BridgeConfig{
			LocalDebug: false,
			QueueSize:  defaultQueueSize,
		},
		Scene: SceneFileConfig{
			FrameHz:         defaultFrameHz,
			ScaleFactor:     defaultScaleFactor,
			PhaseDurationMS: defaultPhaseDurationMS,
			DegreesPerMode:  defaultDegreesPerMode,
			ModeVibration:   append([]int(nil), defaultModeVibration...),
			WakeVibration:   append([]int(nil), defaultWakeVibration...),
			Actor: ActorConfig{
				Name:      defaultActorName,
				Bound:     true,
				BaseScale: Vec3{X: 1, Y: 1, Z: 1},
			},
		},
		Capture: CaptureFileConfig{
			Enabled:           false,
			IntervalMS:        defaultCaptureIntervalMS,
			LogEvery:          defaultCaptureLogEvery,
			AnalysisTimeoutMS: defaultAnalysisTimeoutMS,
			InitRetryMS:       defaultInitRetryMS,
		},
		HTTP: HTTPConfig{
			Listen: defaultHTTPListen,
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(LogFormatText),
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var trailing yaml.Node
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds optional flag values. Each non-nil pointer is applied
// on top of the loaded config, even if it holds a zero value.
type FlagOverrides struct {
	LocalDebug *bool
	QueueSize  *int

	FrameHz   *int
	ActorName *string

	CaptureEnabled    *bool
	CaptureIntervalMS *int
	CaptureSourceDir  *string
	AnalysisURL       *string

	HTTPListen    *string
	IPCSocketPath *string
	InputDevice   *string

	LogLevel  *string
	LogFormat *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.LocalDebug != nil {
		cfg.Bridge.LocalDebug = *o.LocalDebug
	}
	if o.QueueSize != nil {
		cfg.Bridge.QueueSize = *o.QueueSize
	}

	if o.FrameHz != nil {
		cfg.Scene.FrameHz = *o.FrameHz
	}
	if o.ActorName != nil {
		cfg.Scene.Actor.Name = *o.ActorName
	}

	if o.CaptureEnabled != nil {
		cfg.Capture.Enabled = *o.CaptureEnabled
	}
	if o.CaptureIntervalMS != nil {
		cfg.Capture.IntervalMS = *o.CaptureIntervalMS
	}
	if o.CaptureSourceDir != nil {
		cfg.Capture.SourceDir = *o.CaptureSourceDir
	}
	if o.AnalysisURL != nil {
		cfg.Capture.AnalysisURL = *o.AnalysisURL
	}

	if o.HTTPListen != nil {
		cfg.HTTP.Listen = *o.HTTPListen
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.InputDevice != nil {
		cfg.Input.Devices = []string{*o.InputDevice}
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		cfg.Logging.Format = *o.LogFormat
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Bridge
	if c.Bridge.QueueSize <= 0 {
		return errors.New("bridge.queue_size must be > 0")
	}

	// Scene
	if c.Scene.FrameHz <= 0 || c.Scene.FrameHz > 1000 {
		return errors.New("scene.frame_hz must be between 1 and 1000")
	}
	if c.Scene.ScaleFactor <= 0 {
		return errors.New("scene.scale_factor must be > 0")
	}
	if c.Scene.PhaseDurationMS < 0 {
		return errors.New("scene.phase_duration_ms must be >= 0")
	}
	for i, v := range c.Scene.ModeVibration {
		if v < 0 {
			return fmt.Errorf("scene.mode_vibration[%d] must be >= 0", i)
		}
	}
	for i, v := range c.Scene.WakeVibration {
		if v < 0 {
			return fmt.Errorf("scene.wake_vibration[%d] must be >= 0", i)
		}
	}
	if len(c.Scene.Materials) > 4 {
		return errors.New("scene.materials has at most 4 entries (default + 3 modes)")
	}
	if c.Scene.Actor.Name == "" {
		return errors.New("scene.actor.name must not be empty")
	}

	// Capture
	if c.Capture.Enabled {
		if c.Capture.SourceDir == "" {
			return errors.New("capture.enabled is true but capture.source_dir is empty")
		}
		if c.Capture.IntervalMS <= 0 {
			return errors.New("capture.interval_ms must be > 0")
		}
		if c.Capture.LogEvery <= 0 {
			return errors.New("capture.log_every must be > 0")
		}
		if c.Capture.AnalysisTimeoutMS <= 0 {
			return errors.New("capture.analysis_timeout_ms must be > 0")
		}
	}

	// Input
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, err := parseLogFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("logging.format: %w", err)
	}

	return nil
}

// ToSceneConfig converts file config into the reducer/animator config.
func (c *Config) ToSceneConfig() SceneConfig {
	return SceneConfig{
		ScaleFactor:    c.Scene.ScaleFactor,
		PhaseDuration:  float64(c.Scene.PhaseDurationMS) / 1000.0,
		DegreesPerMode: c.Scene.DegreesPerMode,
		ModeVibration:  append([]int(nil), c.Scene.ModeVibration...),
		WakeVibration:  append([]int(nil), c.Scene.WakeVibration...),
	}
}

// ToCaptureConfig converts file config into the capture loop config.
func (c *Config) ToCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Interval: time.Duration(c.Capture.IntervalMS) * time.Millisecond,
		LogEvery: c.Capture.LogEvery,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
