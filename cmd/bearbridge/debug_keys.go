package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// mapDebugKey translates an editor debug key into the raw payload a host
// would send. Only evValuePress counts: evValueRelease and the autorepeat
// evValueRepeat are dropped, so holding a key sends one command.
func mapDebugKey(ev inputEvent) (string, bool) {
	if ev.Type != EV_KEY || ev.Value != evValuePress {
		return "", false
	}
	switch ev.Code {
	case KEY_1:
		return "1", true
	case KEY_2:
		return "2", true
	case KEY_3:
		return "3", true
	case KEY_0:
		return commandResetDigit, true
	case KEY_R:
		return commandReset, true
	default:
		return "", false
	}
}

// runDebugKeys feeds key presses from evdev devices through the bridge, as if
// the host had sent them. Runs until ctx is canceled or a device fails.
func runDebugKeys(ctx context.Context, devices []string, bridge *Bridge, logger *slog.Logger) error {
	files := make([]*os.File, 0, len(devices))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	for _, dev := range devices {
		f, err := os.Open(dev)
		if err != nil {
			return fmt.Errorf("open input device %s (run as root or add user to 'input' group): %w", dev, err)
		}
		files = append(files, f)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := make(chan inputEvent, 16)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readInputEvents(ctx, files, keys)
	}()

	logger.Info("debug keys enabled", "devices", devices)

	for {
		select {
		case <-ctx.Done():
			<-readErr
			return nil

		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("input reader stopped: %w", err)
			}
			return nil

		case ev := <-keys:
			raw, ok := mapDebugKey(ev)
			if !ok {
				continue
			}
			logger.Debug("debug key", "code", ev.Code, "payload", raw)
			bridge.Receive(raw)
		}
	}
}
