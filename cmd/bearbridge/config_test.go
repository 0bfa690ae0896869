package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_LayersOnDefaults(t *testing.T) {
	cfg, err := parseConfig([]byte(`
scene:
  frame_hz: 30
  materials: [fur_default, fur_focus, fur_rest, fur_play]
  actor:
    name: Teddy
    base_scale: {x: 2, y: 2, z: 2}
capture:
  enabled: true
  source_dir: /var/spool/frames
logging:
  format: json
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30, cfg.Scene.FrameHz)
	assert.Equal(t, "Teddy", cfg.Scene.Actor.Name)
	assert.True(t, cfg.Scene.Actor.Bound)
	assert.Equal(t, Vec3{X: 2, Y: 2, Z: 2}, cfg.Scene.Actor.BaseScale)
	assert.Equal(t, defaultScaleFactor, cfg.Scene.ScaleFactor)
	assert.Equal(t, defaultCaptureIntervalMS, cfg.Capture.IntervalMS)
	assert.Equal(t, defaultQueueSize, cfg.Bridge.QueueSize)

	sc := cfg.ToSceneConfig()
	assert.InDelta(t, 0.3, sc.PhaseDuration, 1e-12)
	assert.Equal(t, defaultModeVibration, sc.ModeVibration)
	assert.Equal(t, time.Second, cfg.ToCaptureConfig().Interval)
}

func TestParseConfig_RejectsUnknownFields(t *testing.T) {
	_, err := parseConfig([]byte("scene:\n  frame_rate: 30\n"))
	assert.Error(t, err)
}

func TestParseConfig_RejectsTrailingDocument(t *testing.T) {
	_, err := parseConfig([]byte("bridge:\n  queue_size: 8\n---\nbridge:\n  queue_size: 9\n"))
	assert.ErrorContains(t, err, "trailing document")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"queue size", func(c *Config) { c.Bridge.QueueSize = 0 }},
		{"frame hz", func(c *Config) { c.Scene.FrameHz = 0 }},
		{"scale factor", func(c *Config) { c.Scene.ScaleFactor = 0 }},
		{"negative vibration", func(c *Config) { c.Scene.WakeVibration = []int{0, -1} }},
		{"too many materials", func(c *Config) { c.Scene.Materials = []string{"a", "b", "c", "d", "e"} }},
		{"empty actor", func(c *Config) { c.Scene.Actor.Name = "" }},
		{"capture without dir", func(c *Config) { c.Capture.Enabled = true }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	base := DefaultConfig()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()
	debug := true
	hz := 120
	dev := "/dev/input/event3"
	level := "debug"

	FlagOverrides{LocalDebug: &debug, FrameHz: &hz, InputDevice: &dev, LogLevel: &level}.Apply(&cfg)

	assert.True(t, cfg.Bridge.LocalDebug)
	assert.Equal(t, 120, cfg.Scene.FrameHz)
	assert.Equal(t, []string{dev}, cfg.Input.Devices)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, defaultHTTPListen, cfg.HTTP.Listen)
}

func TestWatchConfigFile_ForwardsMaterialChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bear.yaml")
	write := func(materials string) {
		require.NoError(t, os.WriteFile(path, []byte("scene:\n  materials: "+materials+"\n"), 0o644))
	}
	write("[a]")

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, 8)
	done := make(chan error, 1)
	go func() { done <- watchConfigFile(ctx, path, events, quietLogger()) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// Alternate contents until the watcher is up and reports a change.
	sets := []string{"[b, c]", "[d]"}
	deadline := time.After(5 * time.Second)
	for i := 0; ; i++ {
		write(sets[i%len(sets)])
		select {
		case ev := <-events:
			reloaded, ok := ev.(MaterialsReloaded)
			require.True(t, ok, "got %T", ev)
			assert.NotEmpty(t, reloaded.Materials)
			return
		case <-time.After(3 * configReloadDebounce):
		case <-deadline:
			t.Fatalf("no MaterialsReloaded event")
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := parseLogLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, lvl)

	_, err = parseLogLevel("verbose")
	assert.Error(t, err)
}
