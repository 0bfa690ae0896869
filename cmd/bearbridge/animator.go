package main

import "fmt"

// AnimationPhase is one step of a mode-change run.
//
// A run plays three phases of equal duration:
//   - Grow:   scale from the actor's current scale to BaseScale*ScaleFactor
//   - Rotate: yaw from the actor's current yaw to yaw + mode*DegreesPerMode
//   - Shrink: scale back to BaseScale, snapping exactly on completion
//
// Phases are data advanced by the tick delta, not sleeps. Rotation is not
// normalized, so repeated runs accumulate yaw until Reset.
type AnimationPhase int

const (
	PhaseGrow AnimationPhase = iota
	PhaseRotate
	PhaseShrink
	PhaseDone
)

func (p AnimationPhase) String() string {
	switch p {
	case PhaseGrow:
		return "grow"
	case PhaseRotate:
		return "rotate"
	case PhaseShrink:
		return "shrink"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// SceneConfig contains the tunables for the animator and the mode controller.
type SceneConfig struct {
	ScaleFactor    float64 // peak scale multiplier during Grow
	PhaseDuration  float64 // seconds per phase
	DegreesPerMode float64 // yaw delta per mode index

	ModeVibration []int
	WakeVibration []int

	// MaxDt is the largest dt integrated in one step (seconds). 0 disables clamping.
	MaxDt float64
}

// DefaultSceneConfig returns the built-in tunables.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		ScaleFactor:    defaultScaleFactor,
		PhaseDuration:  float64(defaultPhaseDurationMS) / 1000.0,
		DegreesPerMode: defaultDegreesPerMode,
		ModeVibration:  append([]int(nil), defaultModeVibration...),
		WakeVibration:  append([]int(nil), defaultWakeVibration...),
	}
}

// AnimationRun is one cancellable mode-change animation. Runs are values:
// StepAnimation returns the advanced copy and never mutates its input.
type AnimationRun struct {
	ID    uint64
	Mode  Mode
	Phase AnimationPhase

	// Elapsed is the time accumulated in the current phase (seconds).
	Elapsed float64

	StartScale Vec3
	PeakScale  Vec3
	BaseScale  Vec3

	StartYaw  float64
	TargetYaw float64
}

// NewAnimationRun starts a run from the actor's actual transform, so a run
// that supersedes another continues from wherever the old one left the actor.
func NewAnimationRun(id uint64, mode Mode, actor ActorState, cfg SceneConfig) *AnimationRun {
	return &AnimationRun{
		ID:         id,
		Mode:       mode,
		Phase:      PhaseGrow,
		StartScale: actor.Scale,
		PeakScale:  actor.BaseScale.Scale(cfg.ScaleFactor),
		BaseScale:  actor.BaseScale,
		StartYaw:   actor.YawDeg,
		TargetYaw:  actor.YawDeg + float64(mode)*cfg.DegreesPerMode,
	}
}

// StepAnimation advances run by dt seconds and applies the result to actor.
// It returns the advanced run, the updated actor, and whether the run finished.
//
// Per phase: elapsed += dt, t = min(elapsed/duration, 1), interpolate.
// When elapsed reaches the duration the phase's end value is applied and the
// next phase begins on the following tick.
func StepAnimation(run AnimationRun, actor ActorState, dt float64, cfg SceneConfig) (AnimationRun, ActorState, bool) {
	if dt < 0 {
		dt = 0
	}
	if cfg.MaxDt > 0 && dt > cfg.MaxDt {
		dt = cfg.MaxDt
	}

	duration := cfg.PhaseDuration
	run.Elapsed += dt

	t := 1.0
	if duration > 0 {
		t = run.Elapsed / duration
		if t > 1 {
			t = 1
		}
	}
	complete := t >= 1

	switch run.Phase {
	case PhaseGrow:
		actor.Scale = LerpVec3(run.StartScale, run.PeakScale, t)
		if complete {
			run.Phase = PhaseRotate
			run.Elapsed = 0
		}

	case PhaseRotate:
		actor.YawDeg = lerp(run.StartYaw, run.TargetYaw, t)
		if complete {
			actor.YawDeg = run.TargetYaw
			run.Phase = PhaseShrink
			run.Elapsed = 0
		}

	case PhaseShrink:
		actor.Scale = LerpVec3(run.PeakScale, run.BaseScale, t)
		if complete {
			actor.Scale = run.BaseScale
			run.Phase = PhaseDone
			run.Elapsed = 0
			return run, actor, true
		}

	case PhaseDone:
		actor.Scale = run.BaseScale
		return run, actor, true
	}

	return run, actor, false
}
