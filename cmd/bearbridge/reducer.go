package main

import (
	"fmt"
	"log/slog"
	"time"
)

// This file implements the mode controller as a pure reducer:
//
//   - Events: inputs (host commands, render ticks, lifecycle, snapshot requests)
//   - Effects: bridge emissions, snapshot replies, diagnostics
//   - Reduce(): computes next state + effects, without performing I/O
//
// Transition table:
//
//	any + SetMode(m)    -> Mode(m): resolve appearance, start run, emit mode_changed
//	any + Reset         -> Neutral: default appearance, yaw 0, base scale, emit reset
//	any + Unrecognized  -> unchanged: diagnostic only
//
// With no bound actor, SetMode and Reset are skipped entirely (no mode change,
// no appearance change, no run, no event).

// ReduceResult is the output of Reduce(): next state plus Effects to execute.
type ReduceResult struct {
	State   *SceneState
	Effects []Effect
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not mutate the input state; the returned state is a fresh copy
func Reduce(s *SceneState, e Event, cfg SceneConfig) ReduceResult {
	if s == nil {
		s = &SceneState{}
	}
	next := *s

	var effs []Effect

	switch ev := e.(type) {
	case Tick:
		effs = reduceTick(&next, ev, cfg)

	case CommandReceived:
		effs = reduceCommand(&next, ev, cfg)

	case SceneLoaded:
		if next.Loaded {
			break
		}
		next.Loaded = true
		next.LoadedAt = ev.At
		effs = append(effs, EffEmit{Event: BridgeEvent{
			Kind:      EventLoaded,
			Message:   loadedMessage,
			Timestamp: ev.At.UnixMilli(),
		}})

	case WakeRequested:
		if !next.Actor.Bound {
			next.Counters.Skipped++
			effs = append(effs, skippedLog("wake", ev.Origin))
			break
		}
		mode := next.Mode
		effs = append(effs, EffEmit{Event: BridgeEvent{
			Kind:             EventWake,
			Message:          "wake up bear",
			Mode:             &mode,
			VibrationPattern: append([]int(nil), cfg.WakeVibration...),
			Timestamp:        ev.At.UnixMilli(),
		}})

	case ActorBound:
		name := ev.Name
		if name == "" {
			name = next.Actor.Name
		}
		next.Actor = boundActor(name, ev.BaseScale, next.Materials)
		next.Mode = ModeNeutral
		next.cancelRun()
		effs = append(effs, EffLog{Level: slog.LevelInfo, Msg: "actor bound", Attrs: []any{"actor", name, "base_scale", ev.BaseScale}})

	case ActorUnbound:
		next.Actor.Bound = false
		next.cancelRun()
		effs = append(effs, EffLog{Level: slog.LevelInfo, Msg: "actor unbound", Attrs: []any{"actor", next.Actor.Name}})

	case MaterialsReloaded:
		next.Materials = append([]string(nil), ev.Materials...)
		effs = append(effs, EffLog{Level: slog.LevelInfo, Msg: "materials reloaded", Attrs: []any{"count", len(ev.Materials)}})

	case RequestStateSnapshot:
		effs = append(effs, EffPublishSnapshot{Reply: ev.Reply, Snapshot: next.Snapshot()})

	default:
		effs = append(effs, EffLog{Level: slog.LevelWarn, Msg: "unknown event type", Attrs: []any{"event", fmt.Sprintf("%T", e)}})
	}

	return ReduceResult{State: &next, Effects: effs}
}

func reduceCommand(s *SceneState, ev CommandReceived, cfg SceneConfig) []Effect {
	switch c := ev.Command.(type) {
	case SetMode:
		if !c.Mode.Valid() {
			s.Counters.Unrecognized++
			return []Effect{EffLog{Level: slog.LevelWarn, Msg: "invalid mode", Attrs: []any{"mode", int(c.Mode)}}}
		}
		if !s.Actor.Bound {
			s.Counters.Skipped++
			return []Effect{skippedLog(c.String(), "bridge")}
		}
		return []Effect{applyMode(s, c.Mode, ev.At, cfg)}

	case Reset:
		if !s.Actor.Bound {
			s.Counters.Skipped++
			return []Effect{skippedLog(c.String(), "bridge")}
		}
		return []Effect{applyReset(s, ev.At)}

	case Unrecognized:
		s.Counters.Unrecognized++
		return []Effect{EffLog{Level: slog.LevelWarn, Msg: "unrecognized bridge command", Attrs: []any{"raw", c.Raw}}}

	default:
		return []Effect{EffLog{Level: slog.LevelWarn, Msg: "unknown command type", Attrs: []any{"command", fmt.Sprintf("%T", ev.Command)}}}
	}
}

// applyMode switches mode, swaps appearance, and supersedes any in-flight run.
func applyMode(s *SceneState, m Mode, at time.Time, cfg SceneConfig) Effect {
	s.Mode = m
	s.Actor.Appearance = ResolveAppearance(m, s.Materials)

	if s.Run != nil {
		s.Counters.RunsSuperseded++
	}
	s.RunSeq++
	s.Run = NewAnimationRun(s.RunSeq, m, s.Actor, cfg)
	s.Counters.RunsStarted++
	s.Counters.CommandsApplied++

	mode := m
	return EffEmit{Event: BridgeEvent{
		Kind:             EventModeChanged,
		Message:          fmt.Sprintf("bear %s activated", m.DisplayName()),
		Mode:             &mode,
		VibrationPattern: append([]int(nil), cfg.ModeVibration...),
		Timestamp:        at.UnixMilli(),
	}}
}

// applyReset restores the neutral pose directly, bypassing the animator.
func applyReset(s *SceneState, at time.Time) Effect {
	s.Mode = ModeNeutral
	s.Actor.Appearance = resetAppearance(s.Materials)
	s.Actor.YawDeg = 0
	s.Actor.Scale = s.Actor.BaseScale
	s.cancelRun()
	s.Counters.CommandsApplied++

	mode := ModeNeutral
	return EffEmit{Event: BridgeEvent{
		Kind:      EventReset,
		Message:   "bear reset complete",
		Mode:      &mode,
		Timestamp: at.UnixMilli(),
	}}
}

func reduceTick(s *SceneState, ev Tick, cfg SceneConfig) []Effect {
	if s.Run == nil {
		return nil
	}
	// Run-id guard: a run that is no longer current never advances.
	if s.Run.ID != s.RunSeq {
		s.Run = nil
		return nil
	}

	run, actor, done := StepAnimation(*s.Run, s.Actor, ev.Dt, cfg)
	s.Actor = actor
	if done {
		s.Run = nil
		s.Counters.RunsCompleted++
		return nil
	}
	s.Run = &run
	return nil
}

// cancelRun abandons the in-flight run and bumps the sequence so that no
// later tick can resume it.
func (s *SceneState) cancelRun() {
	if s.Run != nil {
		s.Counters.RunsSuperseded++
	}
	s.Run = nil
	s.RunSeq++
}

func skippedLog(what, origin string) Effect {
	return EffLog{
		Level: slog.LevelWarn,
		Msg:   "command skipped",
		Attrs: []any{"command", what, "origin", origin, "error", ErrActorNotBound},
	}
}
