package main

import (
	"context"
	"fmt"
	"log/slog"
)

// ==============================
// Effects (reducer outputs)
// ==============================

// Effect is a side effect requested by the reducer and executed by the daemon loop.
type Effect interface {
	effectMarker()
	String() string
}

// EffEmit delivers a bridge event to the host.
type EffEmit struct {
	Event BridgeEvent
}

func (EffEmit) effectMarker() {}
func (e EffEmit) String() string {
	return fmt.Sprintf("EffEmit(kind=%s)", e.Event.Kind)
}

// EffPublishSnapshot replies to a RequestStateSnapshot.
type EffPublishSnapshot struct {
	Reply    chan<- StateSnapshot
	Snapshot StateSnapshot
}

func (EffPublishSnapshot) effectMarker()  {}
func (EffPublishSnapshot) String() string { return "EffPublishSnapshot()" }

// EffLog records a reducer diagnostic. The reducer itself never logs.
type EffLog struct {
	Level slog.Level
	Msg   string
	Attrs []any
}

func (EffLog) effectMarker() {}
func (e EffLog) String() string {
	return fmt.Sprintf("EffLog(%s: %s)", e.Level, e.Msg)
}

// Emitter delivers encoded events to the host side of the bridge.
type Emitter interface {
	Emit(ev BridgeEvent)
}

// runEffect executes a single reducer-emitted Effect.
//
// Design rules:
// - This function is allowed to perform I/O.
// - It must never call Reduce(); the daemon loop owns sequencing.
func runEffect(emitter Emitter, eff Effect, logger *slog.Logger) {
	switch e := eff.(type) {
	case EffEmit:
		if emitter == nil {
			logger.Warn("bridge event dropped", "kind", e.Event.Kind, "error", ErrTransportUnavailable)
			return
		}
		emitter.Emit(e.Event)

	case EffPublishSnapshot:
		if e.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}

		// Never block the daemon loop on a slow requester.
		select {
		case e.Reply <- e.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	case EffLog:
		logger.Log(context.Background(), e.Level, e.Msg, e.Attrs...)

	default:
		logger.Warn("unknown effect type", "effect", eff.String())
	}
}
