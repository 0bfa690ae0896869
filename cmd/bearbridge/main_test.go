package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Keep-alive connections owned by http.DefaultTransport outlive single tests.
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}

// testDaemon is a running daemon loop with a bridge whose emitted events are
// collected on a channel.
type testDaemon struct {
	ctx     context.Context
	events  chan Event
	bridge  *Bridge
	emitted chan BridgeEvent
}

func startTestDaemon(t *testing.T, cfg Config) *testDaemon {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger := quietLogger()

	d := &testDaemon{
		ctx:     ctx,
		events:  make(chan Event, 32),
		emitted: make(chan BridgeEvent, 64),
	}
	d.bridge = NewBridge(ctx, d.events, logger, BridgeOptions{})
	d.bridge.OnEmit(func(_ []byte, ev BridgeEvent) {
		d.emitted <- ev
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		runDaemon(ctx, d.events, d.bridge, cfg.ToSceneConfig(), NewSceneState(&cfg), 100, logger)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})
	return d
}

func (d *testDaemon) next(t *testing.T) BridgeEvent {
	t.Helper()
	select {
	case ev := <-d.emitted:
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for bridge event")
		return BridgeEvent{}
	}
}

func (d *testDaemon) snapshot(t *testing.T) StateSnapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	snap, err := requestSnapshot(ctx, d.events)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}
