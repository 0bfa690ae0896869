package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop - Reducer-driven "Scene Brain"
// ============================================================================
//
// Design rules enforced here:
//   - The reducer performs no I/O and computes: next state + effects.
//   - The daemon loop is the only place that executes effects (bridge emits,
//     snapshot replies, diagnostics).
//   - All host commands arrive on one channel, so they are reduced (and their
//     events emitted) in the order the bridge accepted them.
//   - The render clock is the loop's own ticker; the animator only ever sees Dt.
//
// ============================================================================

// runDaemon is the main daemon loop that:
//   - Announces the scene once (SceneLoaded) before anything else
//   - Receives Events from the bridge and the other transports
//   - Emits Tick events at frameHz
//   - Reduces events into (state, effects) and executes the effects in order
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the events channel is closed
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	emitter Emitter,
	cfg SceneConfig,
	state *SceneState,
	frameHz int,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("scene state is nil")
		return
	}
	if frameHz <= 0 {
		frameHz = defaultFrameHz
	}

	updateInterval := time.Second / time.Duration(frameHz)
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()

	// Allow up to ~2 frames worth of time to be integrated in one step.
	cfg.MaxDt = 2.0 / float64(frameHz)

	lastTick := time.Now()

	var eventQueue []Event
	var effectQueue []Effect

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev, cfg)
			if rr.State != nil {
				state = rr.State
			}
			effectQueue = append(effectQueue, rr.Effects...)
		}
	}

	flushEffects := func() {
		for len(effectQueue) > 0 {
			eff := effectQueue[0]
			effectQueue = effectQueue[1:]
			runEffect(emitter, eff, logger)
		}
	}

	enqueueEvent(SceneLoaded{At: time.Now()})
	flushEvents()
	flushEffects()

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			enqueueEvent(stampEvent(ev, time.Now()))
			flushEvents()
			flushEffects()

		case now := <-ticker.C:
			dt := now.Sub(lastTick).Seconds()
			lastTick = now
			enqueueEvent(Tick{Now: now, Dt: dt})
			flushEvents()
			flushEffects()
		}
	}
}

// stampEvent sets At on host-facing inputs to the time they are reduced.
// Effects run right after, so this is the emission time of the resulting event,
// however long the input waited in the queue.
func stampEvent(ev Event, now time.Time) Event {
	switch e := ev.(type) {
	case CommandReceived:
		e.At = now
		return e
	case WakeRequested:
		e.At = now
		return e
	default:
		return ev
	}
}
