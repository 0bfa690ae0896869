package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// Capture Loop
// ============================================================================
// A fixed-interval task that, while armed, acquires one frame, base64-encodes
// it and hands it to the analysis service.
//
//   - armed is the only state shared with the rest of the process. It is set
//     by the initializer (permission + analysis init both succeeded) and
//     cleared by Teardown.
//   - Failures never stop the loop. A consecutive-failure counter is kept and
//     only every logEvery-th consecutive failure is logged. Success resets it.
//   - Teardown disarms, cancels and waits: once it returns no tick runs.
// ============================================================================

// Frame is one captured image.
type Frame struct {
	TraceID    string
	Data       []byte
	CapturedAt time.Time
	Source     string
}

// FramePayload is the transport form handed to the analyzer.
type FramePayload struct {
	TraceID    string `json:"trace_id"`
	Frame      string `json:"frame"` // base64 (std encoding)
	CapturedAt int64  `json:"captured_at"`
}

// FrameSource produces frames on demand.
type FrameSource interface {
	Acquire(ctx context.Context) (Frame, error)
}

// Analyzer is the external face-analysis service.
type Analyzer interface {
	Init(ctx context.Context) error
	Analyze(ctx context.Context, p FramePayload) error
}

// CaptureStats is exposed on the HTTP surface.
type CaptureStats struct {
	Armed               bool      `json:"armed"`
	Running             bool      `json:"running"`
	Ticks               uint64    `json:"ticks"`
	Frames              uint64    `json:"frames"`
	Failures            uint64    `json:"failures"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastFrameAt         time.Time `json:"last_frame_at"`
}

// CaptureConfig configures a CaptureLoop.
type CaptureConfig struct {
	Interval time.Duration
	LogEvery int
}

// CaptureLoop runs the periodic capture task.
type CaptureLoop struct {
	source   FrameSource
	analyzer Analyzer
	logger   *slog.Logger

	interval time.Duration
	logEvery int

	armed atomic.Bool

	runMu    sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
	tornDown bool

	statsMu     sync.Mutex
	consecutive int
	stats       CaptureStats
}

// NewCaptureLoop builds a disarmed loop. Call Start to launch the ticker.
func NewCaptureLoop(source FrameSource, analyzer Analyzer, cfg CaptureConfig, logger *slog.Logger) *CaptureLoop {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Duration(defaultCaptureIntervalMS) * time.Millisecond
	}
	logEvery := cfg.LogEvery
	if logEvery <= 0 {
		logEvery = defaultCaptureLogEvery
	}
	return &CaptureLoop{
		source:   source,
		analyzer: analyzer,
		logger:   logger,
		interval: interval,
		logEvery: logEvery,
	}
}

// Arm permits ticks to capture. Called by the initializer. After Teardown it
// is a no-op.
func (l *CaptureLoop) Arm() {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.tornDown {
		return
	}
	if !l.armed.Swap(true) {
		l.logger.Info("capture armed", "interval", l.interval)
	}
}

// Disarm stops capturing without stopping the ticker.
func (l *CaptureLoop) Disarm() {
	if l.armed.Swap(false) {
		l.logger.Info("capture disarmed")
	}
}

// Armed reports the current flag.
func (l *CaptureLoop) Armed() bool { return l.armed.Load() }

// Start launches the ticker goroutine. It returns an error if already running.
func (l *CaptureLoop) Start(ctx context.Context) error {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.running {
		return errors.New("capture loop already running")
	}
	if l.tornDown {
		return errors.New("capture loop torn down")
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running = true

	go l.run(runCtx, l.done)
	return nil
}

// Teardown disarms the loop, stops the ticker and waits for the goroutine to exit.
// The loop cannot be armed or started again. Safe to call more than once and
// before Start.
func (l *CaptureLoop) Teardown() {
	l.runMu.Lock()
	l.tornDown = true
	l.runMu.Unlock()
	l.Disarm()

	l.runMu.Lock()
	cancel, done, running := l.cancel, l.done, l.running
	l.running = false
	l.cancel = nil
	l.runMu.Unlock()

	if !running {
		return
	}
	cancel()
	<-done
	l.logger.Info("capture loop stopped")
}

func (l *CaptureLoop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// select picks randomly among ready cases; re-check cancellation.
			if ctx.Err() != nil {
				return
			}
			l.tick(ctx)
		}
	}
}

// tick runs one capture attempt if armed.
func (l *CaptureLoop) tick(ctx context.Context) {
	if !l.armed.Load() {
		return
	}

	l.statsMu.Lock()
	l.stats.Ticks++
	l.statsMu.Unlock()

	// Bound each attempt by the interval so a slow analyzer can't stack ticks.
	tickCtx, cancel := context.WithTimeout(ctx, l.interval)
	defer cancel()

	err := l.captureOnce(tickCtx)
	if err != nil {
		l.recordFailure(err)
		return
	}
	l.recordSuccess()
}

func (l *CaptureLoop) captureOnce(ctx context.Context) error {
	frame, err := l.source.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrAcquisition) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrAcquisition, err)
	}

	payload := FramePayload{
		TraceID:    frame.TraceID,
		Frame:      base64.StdEncoding.EncodeToString(frame.Data),
		CapturedAt: frame.CapturedAt.UnixMilli(),
	}

	if err := l.analyzer.Analyze(ctx, payload); err != nil {
		if errors.Is(err, ErrAnalysis) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrAnalysis, err)
	}

	l.logger.Debug("capture frame analyzed", "trace_id", frame.TraceID, "bytes", len(frame.Data))
	return nil
}

func (l *CaptureLoop) recordFailure(err error) {
	l.statsMu.Lock()
	l.consecutive++
	n := l.consecutive
	l.stats.Failures++
	l.stats.LastError = err.Error()
	l.statsMu.Unlock()

	if n%l.logEvery == 0 {
		l.logger.Warn("capture failing", "consecutive_failures", n, "error", err)
	}
}

func (l *CaptureLoop) recordSuccess() {
	l.statsMu.Lock()
	l.consecutive = 0
	l.stats.Frames++
	l.stats.LastError = ""
	l.stats.LastFrameAt = time.Now()
	l.statsMu.Unlock()
}

// Stats returns a copy of the loop's counters.
func (l *CaptureLoop) Stats() CaptureStats {
	l.statsMu.Lock()
	st := l.stats
	st.ConsecutiveFailures = l.consecutive
	l.statsMu.Unlock()

	l.runMu.Lock()
	st.Running = l.running
	l.runMu.Unlock()

	st.Armed = l.armed.Load()
	return st
}

// ============================================================================
// Initializer
// ============================================================================

// PermissionChecker reports whether the capture source may be used.
type PermissionChecker interface {
	CheckPermission(ctx context.Context) error
}

// ArmWhenReady arms loop once permission is granted and the analyzer initializes.
// Until both succeed it retries every retry interval; it returns when armed or
// when ctx is done.
func ArmWhenReady(ctx context.Context, loop *CaptureLoop, perm PermissionChecker, analyzer Analyzer, retry time.Duration, logger *slog.Logger) error {
	if retry <= 0 {
		retry = time.Duration(defaultInitRetryMS) * time.Millisecond
	}

	attempt := func() error {
		if perm != nil {
			if err := perm.CheckPermission(ctx); err != nil {
				return err
			}
		}
		if err := analyzer.Init(ctx); err != nil {
			if errors.Is(err, ErrAnalysis) {
				return err
			}
			return fmt.Errorf("%w: init: %v", ErrAnalysis, err)
		}
		return nil
	}

	for {
		err := attempt()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			loop.Arm()
			return nil
		}
		logger.Warn("capture not ready", "error", err, "retry_in", retry)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}
