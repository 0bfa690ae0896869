package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01

	KEY_1 = 2
	KEY_2 = 3
	KEY_3 = 4
	KEY_0 = 11
	KEY_R = 19
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Scene defaults
const (
	defaultFrameHz         = 60  // Render tick frequency (Hz)
	defaultScaleFactor     = 1.2 // Peak scale multiplier during the grow phase
	defaultPhaseDurationMS = 300 // Duration of each animation phase (ms)
	defaultDegreesPerMode  = 90.0
	defaultActorName       = "BearObject"
)

// Capture defaults
const (
	defaultCaptureIntervalMS = 1000
	defaultCaptureLogEvery   = 10 // Log every Nth consecutive capture failure
	defaultAnalysisTimeoutMS = 800
	defaultInitRetryMS       = 5000
)

// Bridge defaults
const (
	defaultQueueSize  = 64
	defaultHTTPListen = "127.0.0.1:3001"
	defaultSocketPath = "/tmp/bearbridge.sock"
)

// defaultModeVibration is the pattern attached to mode_changed events.
var defaultModeVibration = []int{0, 200, 100, 200}

// defaultWakeVibration is the pattern attached to wake events.
var defaultWakeVibration = []int{0, 100, 50, 100}
